package reminders

import (
	"fmt"
	"time"

	"github.com/bestsecurity/meetman/colors"
	"github.com/bestsecurity/meetman/server/logger"
	"github.com/bestsecurity/meetman/server/models"
	"github.com/bestsecurity/meetman/server/work"
)

const (
	REMINDER_PREFIX       = "booking_reminder"
	SEND_REMINDER_HANDLER = "send_booking_reminder"
	ENQUEUE_REMINDERS_JOB = "enqueue_booking_reminders"

	// Every morning at 9, queue reminders for bookings starting within a day
	DAILY_REMINDER_SCHEDULE = "0 9 * * *"
	REMINDER_WINDOW         = 24 * time.Hour
)

var logg = logger.NewLogger()

// MessageSender delivers a reminder to a customer's phone.
type MessageSender interface {
	SendMessage(to, msg string) error
}

// ReminderScheduler queues sms reminders for upcoming confirmed bookings.
// The daily sweep & each individual send run as queue jobs, so a restart
// never drops a reminder that was already queued.
type ReminderScheduler struct {
	workerPool *work.WorkerPoolAdapter
	messenger  MessageSender
}

func NewReminderScheduler(workerPool *work.WorkerPoolAdapter, messenger MessageSender) *ReminderScheduler {
	return &ReminderScheduler{workerPool: workerPool, messenger: messenger}
}

// Start registers the reminder handlers & the daily sweep.
func (rs *ReminderScheduler) Start() error {
	err := rs.workerPool.Register(ENQUEUE_REMINDERS_JOB, rs.enqueueUpcomingReminders)
	if err != nil {
		return err
	}

	err = rs.workerPool.Register(SEND_REMINDER_HANDLER, rs.sendReminder)
	if err != nil {
		return err
	}

	return rs.workerPool.PeriodicallyPerform(DAILY_REMINDER_SCHEDULE, work.JobParams{
		Name:    ENQUEUE_REMINDERS_JOB,
		Handler: ENQUEUE_REMINDERS_JOB,
		Args:    map[string]interface{}{},
	})
}

// enqueueUpcomingReminders queues one send job per confirmed booking
// starting in the next REMINDER_WINDOW. Job names carry the booking
// reference, so a sweep that runs twice doesn't double-queue.
func (rs *ReminderScheduler) enqueueUpcomingReminders(map[string]interface{}) error {
	now := time.Now()
	bookings, err := models.BookingsStartingBetween(now, now.Add(REMINDER_WINDOW))
	if err != nil {
		return fmt.Errorf("enqueueUpcomingReminders: %v", err)
	}

	queued := 0
	for _, booking := range bookings {
		if booking.CustomerPhoneAtBooking == "" {
			continue
		}

		err = rs.workerPool.Perform(work.JobParams{
			Name:    jobName(booking.Reference),
			Handler: SEND_REMINDER_HANDLER,
			Args: map[string]interface{}{
				"phone_number":      booking.CustomerPhoneAtBooking,
				"booking_reference": booking.Reference,
				"meeting_title":     booking.MeetingTitle,
				"starts_at":         booking.StartsAt.Format("Mon, 02 Jan 2006 at 3:04 PM"),
			},
		})
		if err != nil {
			logg.Error(err)
			continue
		}
		queued++
	}

	logg.Infof(colors.Blue("%v booking reminder(s) queued"), queued)

	return nil
}

func (rs *ReminderScheduler) sendReminder(args map[string]interface{}) error {
	phoneNumber := fmt.Sprintf("%v", args["phone_number"])
	if phoneNumber == "" {
		return nil
	}

	msg := fmt.Sprintf(
		"Reminder: your booking %v(%v) starts %v.",
		args["booking_reference"], args["meeting_title"], args["starts_at"])

	err := rs.messenger.SendMessage(phoneNumber, msg)
	if err != nil {
		return fmt.Errorf("sendReminder: %v", err)
	}

	return nil
}

func jobName(bookingReference string) string {
	return fmt.Sprintf("%v_%v", REMINDER_PREFIX, bookingReference)
}
