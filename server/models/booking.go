package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Booking struct {
	BaseModel
	Reference    string    `json:"reference" gorm:"not null;unique"`
	MeetingTitle string    `json:"meeting_title" validate:"required"`
	StartsAt     time.Time `json:"starts_at" validate:"required"`
	EndsAt       time.Time `json:"ends_at" validate:"required"`
	Notes        string    `json:"notes,omitempty"`

	// Audit snapshot of the customer's contact details at booking time.
	// Write-once: never retro-updated when the customer record changes.
	CustomerEmailAtBooking string `json:"customer_email_at_booking" gorm:"<-:create"`
	CustomerPhoneAtBooking string `json:"customer_phone_at_booking" gorm:"<-:create"`

	CustomerID      uint           `json:"customer_id" gorm:"not null;index"`
	Customer        *Customer      `json:"customer,omitempty"`
	AssignedUserID  uint           `json:"assigned_user_id"`
	BookingStatusID uint           `json:"booking_status_id"`
	BookingStatus   *BookingStatus `json:"status,omitempty"`
}

func CreateBooking(booking *Booking) error {
	if booking.BookingStatusID == 0 {
		confirmed, err := FindBookingStatus(CONFIRMED_BOOKING)
		if err != nil {
			return err
		}
		booking.BookingStatusID = confirmed.ID
	}

	err := db.Create(booking).Error
	if isUniqueConstraintViolation(err) {
		return fmt.Errorf("%w: %v", ErrUniqueConstraint, err)
	}

	return err
}

func FindBookingBy(field string, value interface{}) (*Booking, error) {
	booking := Booking{}

	err := db.Preload("BookingStatus").Preload("Customer").
		First(&booking, fmt.Sprintf("%v = ?", field), value).Error
	if err != nil {
		return nil, err
	}

	return &booking, nil
}

// SetBookingStatus moves a booking to the named status. The contact snapshot
// columns are create-only at the gorm level, so a status change can never
// touch them.
func SetBookingStatus(bookingID uint, statusName string) error {
	status, err := FindBookingStatus(statusName)
	if err != nil {
		return err
	}

	return db.Model(&Booking{}).Where("id = ?", bookingID).
		Update("booking_status_id", status.ID).Error
}

func FetchBookings(page int) ([]Booking, *Paging, error) {
	var total int64
	bookings := []Booking{}

	err := db.Model(&Booking{}).Count(&total).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	err = db.Scopes(paginate(page, DEFAULT_PAGE_SIZE)).
		Preload("BookingStatus").Order("bookings.starts_at desc").Find(&bookings).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	return bookings, newPaging(int64(page), DEFAULT_PAGE_SIZE, total), nil
}

func FetchBookingsByStatus(status string, page int) ([]Booking, *Paging, error) {
	const JOIN_QUERY = "INNER JOIN booking_statuses ON booking_statuses.id = bookings.booking_status_id AND booking_statuses.name = ?"

	var total int64
	bookings := []Booking{}

	err := db.Joins(JOIN_QUERY, status).Model(&Booking{}).Count(&total).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	err = db.Scopes(paginate(page, DEFAULT_PAGE_SIZE)).
		Preload("BookingStatus").Order("bookings.starts_at desc").
		Joins(JOIN_QUERY, status).Find(&bookings).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	return bookings, newPaging(int64(page), DEFAULT_PAGE_SIZE, total), nil
}

// BookingsStartingBetween returns confirmed bookings whose start time falls
// in [from, to) - used by the reminder scheduler.
func BookingsStartingBetween(from, to time.Time) ([]Booking, error) {
	const JOIN_QUERY = "INNER JOIN booking_statuses ON booking_statuses.id = bookings.booking_status_id AND booking_statuses.name = ?"

	bookings := []Booking{}
	err := db.Joins(JOIN_QUERY, CONFIRMED_BOOKING).
		Where("starts_at >= ? AND starts_at < ?", from, to).
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}

	return bookings, nil
}

func CurrentBookingsStats() (*BookingStats, error) {
	const JOIN_QUERY = "INNER JOIN booking_statuses ON booking_statuses.id = bookings.booking_status_id AND booking_statuses.name = ?"
	stats := BookingStats{}

	counts := []struct {
		status string
		dest   *int64
	}{
		{PENDING_BOOKING, &stats.PendingBookingCount},
		{CONFIRMED_BOOKING, &stats.ConfirmedBookingCount},
		{CANCELLED_BOOKING, &stats.CancelledBookingCount},
		{COMPLETED_BOOKING, &stats.CompletedBookingCount},
	}

	for _, count := range counts {
		err := db.Joins(JOIN_QUERY, count.status).Model(&Booking{}).Count(count.dest).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return &stats, nil
}
