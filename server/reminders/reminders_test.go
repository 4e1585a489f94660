package reminders

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bestsecurity/meetman/server/models"
	"github.com/bestsecurity/meetman/server/work"
	"github.com/stretchr/testify/assert"
)

type recordingMessenger struct {
	mu       sync.Mutex
	messages []string
	to       []string
}

func (m *recordingMessenger) SendMessage(to, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.to = append(m.to, to)
	m.messages = append(m.messages, msg)

	return nil
}

func (m *recordingMessenger) sent() ([]string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string{}, m.to...), append([]string{}, m.messages...)
}

func TestEnqueueUpcomingReminders(t *testing.T) {
	models.InitializeTestDb()

	workerPool := work.NewWorkerAdapter("UTC")
	messenger := &recordingMessenger{}

	scheduler := NewReminderScheduler(workerPool, messenger)
	err := scheduler.Start()
	assert.Nil(t, err)

	customer := &models.Customer{
		CustomerName: "Jane Doe",
		PrimaryEmail: "jane.doe@example.com",
		IsActive:     true,
	}
	customer.AddEmail("jane.doe@example.com", models.PRIMARY_EMAIL_TYPE, true)
	customer.AddPhone("15551234567", models.MOBILE_PHONE_TYPE, true)
	err = models.CreateCustomer(customer)
	assert.Nil(t, err)

	// Starts within the reminder window - should get a reminder
	upcoming := &models.Booking{
		Reference:              "BK-UPCOMING",
		MeetingTitle:           "Kitchen consult",
		StartsAt:               time.Now().Add(2 * time.Hour),
		EndsAt:                 time.Now().Add(3 * time.Hour),
		CustomerEmailAtBooking: "jane.doe@example.com",
		CustomerPhoneAtBooking: "15551234567",
		CustomerID:             customer.ID,
	}
	err = models.CreateBooking(upcoming)
	assert.Nil(t, err)

	// Starts after the window - no reminder yet
	farOut := &models.Booking{
		Reference:              "BK-FAR-OUT",
		MeetingTitle:           "Follow up",
		StartsAt:               time.Now().Add(72 * time.Hour),
		EndsAt:                 time.Now().Add(73 * time.Hour),
		CustomerEmailAtBooking: "jane.doe@example.com",
		CustomerPhoneAtBooking: "15551234567",
		CustomerID:             customer.ID,
	}
	err = models.CreateBooking(farOut)
	assert.Nil(t, err)

	err = scheduler.enqueueUpcomingReminders(nil)
	assert.Nil(t, err)

	// Running the sweep twice should not double-queue the same booking
	err = scheduler.enqueueUpcomingReminders(nil)
	assert.Nil(t, err)

	workerPool.Start()

	// Wait for queued reminders to be processed
	time.Sleep(2 * time.Second)

	workerPool.Stop()

	to, messages := messenger.sent()
	assert.Len(t, messages, 1, "Expected exactly 1 reminder to be sent")
	assert.Equal(t, []string{"15551234567"}, to)
	assert.Contains(t, messages[0], "BK-UPCOMING")
	assert.Contains(t, messages[0], "Kitchen consult")
	assert.NotContains(t, fmt.Sprint(messages), "BK-FAR-OUT")
}
