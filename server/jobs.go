package server

import (
	"fmt"

	"github.com/bestsecurity/meetman/server/models"
	"github.com/bestsecurity/meetman/server/work"
)

const (
	BACKUP_SQLITE_HANDLER         = "backup_sqlite_db"
	BOOKING_CONFIRMATION_HANDLER  = "send_booking_confirmation"
	REFRESH_BOOKING_STATS_HANDLER = "refresh_booking_stats"
)

func registerJobHandlers(wpa *work.WorkerPoolAdapter) {
	fatalOnError(wpa.Register(BACKUP_SQLITE_HANDLER, backupSqliteDb))
	fatalOnError(wpa.Register(BOOKING_CONFIRMATION_HANDLER, sendBookingConfirmation))
	fatalOnError(wpa.Register(REFRESH_BOOKING_STATS_HANDLER, refreshBookingStats))
}

func enqueueJobs(wpa *work.WorkerPoolAdapter, backupEnabled bool) {
	if !backupEnabled {
		return
	}

	err := wpa.PeriodicallyPerform(appConfig.Google.Storage.SqliteBackupSchedule, work.JobParams{
		Name:    BACKUP_SQLITE_HANDLER,
		Handler: BACKUP_SQLITE_HANDLER,
		Args:    map[string]interface{}{},
	})
	if err != nil {
		logg.Error(err)
	}
}

// enqueuePostBookingJobs queues the follow-up work for a freshly created
// booking: confirmation sms(when the customer has a phone on file) & a
// booking stats refresh on the customer record.
func enqueuePostBookingJobs(booking *models.Booking, customer *models.Customer) {
	if booking.CustomerPhoneAtBooking != "" {
		err := workerPool.Perform(work.JobParams{
			Name:    fmt.Sprintf("%v_%v", BOOKING_CONFIRMATION_HANDLER, booking.Reference),
			Handler: BOOKING_CONFIRMATION_HANDLER,
			Args: map[string]interface{}{
				"phone_number":      booking.CustomerPhoneAtBooking,
				"customer_name":     customer.CustomerName,
				"booking_reference": booking.Reference,
				"meeting_title":     booking.MeetingTitle,
				"starts_at":         booking.StartsAt.Format("Mon, 02 Jan 2006 at 3:04 PM"),
			},
		})
		if err != nil {
			logg.Error(err)
		}
	}

	err := workerPool.Perform(work.JobParams{
		Name:    fmt.Sprintf("%v_%v", REFRESH_BOOKING_STATS_HANDLER, customer.ID),
		Handler: REFRESH_BOOKING_STATS_HANDLER,
		Args:    map[string]interface{}{"customer_id": customer.ID},
	})
	if err != nil {
		logg.Error(err)
	}
}

func backupSqliteDb(map[string]interface{}) error {
	if gStorage == nil {
		return nil
	}

	return gStorage.UploadFile(appConfig.Google.Storage.Bucket, sqliteDbPath)
}

func sendBookingConfirmation(args map[string]interface{}) error {
	phoneNumber := fmt.Sprintf("%v", args["phone_number"])
	if phoneNumber == "" {
		return nil
	}

	msg := fmt.Sprintf(
		"Hi %v,\nyour booking %v(%v) is confirmed for %v.\nSee you soon!",
		args["customer_name"], args["booking_reference"], args["meeting_title"], args["starts_at"])

	return twilioClient.SendMessage(phoneNumber, msg)
}

func refreshBookingStats(args map[string]interface{}) error {
	// json numbers decode as float64
	customerID, ok := args["customer_id"].(float64)
	if !ok {
		return fmt.Errorf("refreshBookingStats: customer_id is required, got %v", args["customer_id"])
	}

	return models.RefreshBookingStats(uint(customerID))
}
