package cmd

import (
	"testing"
	"time"

	"github.com/bestsecurity/meetman/server/models"
	"github.com/bestsecurity/meetman/server/resolver"
	"github.com/stretchr/testify/assert"
)

func TestMigrateLegacyBookings(t *testing.T) {
	models.InitializeTestDb()

	contactResolver := resolver.New()
	assert.Nil(t, contactResolver.WarmUp())

	start := time.Now().Add(24 * time.Hour)
	records := []LegacyBookingRecord{
		{
			CustomerName:  "Jane Doe",
			CustomerEmail: "jane.doe@example.com",
			CustomerPhone: "555-123-4567",
			MeetingTitle:  "Kitchen consult",
			StartsAt:      start,
			EndsAt:        start.Add(time.Hour),
			Status:        "completed",
		},
		{
			// Same email, new phone - should reuse Jane & append the phone
			CustomerName:  "Jane D",
			CustomerEmail: "JANE.DOE@example.com",
			CustomerPhone: "555-999-0000",
			MeetingTitle:  "Follow up",
			StartsAt:      start.Add(48 * time.Hour),
			EndsAt:        start.Add(49 * time.Hour),
		},
		{
			// Phone-only record matching Jane's second phone
			CustomerPhone: "(555) 999-0000",
			MeetingTitle:  "Final walkthrough",
			StartsAt:      start.Add(96 * time.Hour),
			EndsAt:        start.Add(97 * time.Hour),
		},
		{
			// No contact details at all - skipped
			CustomerName: "Mystery Person",
			MeetingTitle: "Unknown",
			StartsAt:     start,
			EndsAt:       start.Add(time.Hour),
		},
	}

	summary := migrateLegacyBookings(contactResolver, records)

	assert.Equal(t, 1, summary.CustomersCreated, "All records should map to a single new customer")
	assert.Equal(t, 2, summary.CustomersReused)
	assert.Equal(t, 3, summary.BookingsCreated)
	assert.Len(t, summary.Skipped, 1, "The contactless record should be skipped")

	customer, err := models.FindCustomerByPrimaryEmail("jane.doe@example.com")
	assert.Nil(t, err)
	assert.Len(t, customer.PhoneNumbers, 2, "The second phone should be appended to the same customer")
	assert.Equal(t, int64(3), customer.TotalBookings, "Booking stats should be refreshed after migration")

	// Completed status from the export should survive the migration
	bookings, _, err := models.FetchBookingsByStatus(models.COMPLETED_BOOKING, 1)
	assert.Nil(t, err)
	assert.Len(t, bookings, 1)
	assert.Equal(t, "Kitchen consult", bookings[0].MeetingTitle)
}

func TestReadLegacyBookingsMissingFile(t *testing.T) {
	_, err := readLegacyBookings("no-such-export.json")
	assert.NotNil(t, err)
}
