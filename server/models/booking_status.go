package models

const (
	PENDING_BOOKING   = "pending"
	CONFIRMED_BOOKING = "confirmed"
	CANCELLED_BOOKING = "cancelled"
	COMPLETED_BOOKING = "completed"
)

var BookingStatusNameMap = map[string]bool{
	PENDING_BOOKING:   true,
	CONFIRMED_BOOKING: true,
	CANCELLED_BOOKING: true,
	COMPLETED_BOOKING: true,
}

type BookingStats struct {
	PendingBookingCount   int64 `json:"pending_booking_count"`
	ConfirmedBookingCount int64 `json:"confirmed_booking_count"`
	CancelledBookingCount int64 `json:"cancelled_booking_count"`
	CompletedBookingCount int64 `json:"completed_booking_count"`
}

type BookingStatus struct {
	BaseModel
	Name     string    `json:"name"`
	Bookings []Booking `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
}

func FindBookingStatus(name string) (*BookingStatus, error) {
	bookingStatus := BookingStatus{}
	err := db.Select("id", "name").First(&bookingStatus, "name = ?", name).Error
	if err != nil {
		return nil, err
	}

	return &bookingStatus, nil
}
