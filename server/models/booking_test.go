package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func createTestCustomerWithBooking(t *testing.T) (*Customer, *Booking) {
	t.Helper()

	customer := &Customer{
		CustomerName: "Jane Doe",
		PrimaryEmail: "jane.doe@example.com",
	}
	customer.AddPhone("15551234567", MOBILE_PHONE_TYPE, true)
	assert.Nil(t, CreateCustomer(customer))

	booking := &Booking{
		Reference:              "BK-TEST-001",
		MeetingTitle:           "Kitchen consult",
		StartsAt:               time.Now().Add(24 * time.Hour),
		EndsAt:                 time.Now().Add(25 * time.Hour),
		CustomerEmailAtBooking: customer.GetPrimaryEmail(),
		CustomerPhoneAtBooking: customer.GetPrimaryPhone(),
		CustomerID:             customer.ID,
	}
	assert.Nil(t, CreateBooking(booking))

	return customer, booking
}

func TestCreateBookingDefaultsToConfirmed(t *testing.T) {
	InitializeTestDb()

	_, booking := createTestCustomerWithBooking(t)

	found, err := FindBookingBy("reference", booking.Reference)
	assert.Nil(t, err)
	assert.Equal(t, CONFIRMED_BOOKING, found.BookingStatus.Name)
}

func TestContactSnapshotIsWriteOnce(t *testing.T) {
	InitializeTestDb()

	customer, booking := createTestCustomerWithBooking(t)

	// The customer's contact details change after the booking was made
	err := UpdateCustomer(customer.ID, map[string]interface{}{"primary_email": "new.address@example.com"})
	assert.Nil(t, err)

	// The customer record itself keeps its invariants after the update
	updated, err := FindCustomerBy("id", customer.ID)
	assert.Nil(t, err)
	assert.Equal(t, "new.address@example.com", updated.GetPrimaryEmail())
	assert.True(t, updated.HasEmail(updated.PrimaryEmail))

	// A direct save attempt on the snapshot columns is ignored
	found, err := FindBookingBy("reference", booking.Reference)
	assert.Nil(t, err)

	found.CustomerEmailAtBooking = "tampered@example.com"
	found.CustomerPhoneAtBooking = "10000000000"
	assert.Nil(t, db.Save(found).Error)

	found, err = FindBookingBy("reference", booking.Reference)
	assert.Nil(t, err)
	assert.Equal(t, "jane.doe@example.com", found.CustomerEmailAtBooking,
		"Snapshot should reflect the contact at booking time, not later changes")
	assert.Equal(t, "15551234567", found.CustomerPhoneAtBooking)
}

func TestDuplicateBookingReferenceIsRejected(t *testing.T) {
	InitializeTestDb()

	customer, booking := createTestCustomerWithBooking(t)

	duplicate := &Booking{
		Reference:              booking.Reference,
		MeetingTitle:           "Another meeting",
		StartsAt:               time.Now().Add(48 * time.Hour),
		EndsAt:                 time.Now().Add(49 * time.Hour),
		CustomerEmailAtBooking: customer.GetPrimaryEmail(),
		CustomerID:             customer.ID,
	}

	err := CreateBooking(duplicate)
	assert.ErrorIs(t, err, ErrUniqueConstraint)
}

func TestSetBookingStatusAndStats(t *testing.T) {
	InitializeTestDb()

	customer, booking := createTestCustomerWithBooking(t)

	err := SetBookingStatus(booking.ID, COMPLETED_BOOKING)
	assert.Nil(t, err)

	stats, err := CurrentBookingsStats()
	assert.Nil(t, err)
	assert.Equal(t, int64(1), stats.CompletedBookingCount)
	assert.Equal(t, int64(0), stats.ConfirmedBookingCount)

	err = RefreshBookingStats(customer.ID)
	assert.Nil(t, err)

	refreshed, err := FindCustomerBy("id", customer.ID)
	assert.Nil(t, err)
	assert.Equal(t, int64(1), refreshed.TotalBookings)
	assert.NotNil(t, refreshed.LastBookingDate)
}

func TestBookingsStartingBetweenOnlyReturnsConfirmed(t *testing.T) {
	InitializeTestDb()

	customer, booking := createTestCustomerWithBooking(t)

	cancelled := &Booking{
		Reference:              "BK-TEST-002",
		MeetingTitle:           "Cancelled consult",
		StartsAt:               booking.StartsAt,
		EndsAt:                 booking.EndsAt,
		CustomerEmailAtBooking: customer.GetPrimaryEmail(),
		CustomerID:             customer.ID,
	}
	assert.Nil(t, CreateBooking(cancelled))
	assert.Nil(t, SetBookingStatus(cancelled.ID, CANCELLED_BOOKING))

	bookings, err := BookingsStartingBetween(time.Now(), time.Now().Add(48*time.Hour))
	assert.Nil(t, err)
	assert.Len(t, bookings, 1)
	assert.Equal(t, booking.Reference, bookings[0].Reference)
}
