package models

import (
	"errors"
	"strings"
)

const (
	MOBILE_PHONE_TYPE = "Mobile"
	WORK_PHONE_TYPE   = "Work"
	HOME_PHONE_TYPE   = "Home"

	MIN_PHONE_DIGITS = 7
)

// ErrInvalidPhoneFormat is returned when a phone number, after stripping
// formatting characters, is not an all-digit string of at least 7 characters.
var ErrInvalidPhoneFormat = errors.New("invalid phone number format")

// phoneFormattingChars are the only characters stripped before comparing
// phone numbers. Note '.' is deliberately not in this set, so a number like
// "555.123.4567" does not normalize cleanly & is rejected.
var phoneFormattingChars = []string{" ", "-", "(", ")", "+"}

type CustomerPhone struct {
	BaseModel
	PhoneNumber string `json:"phone_number" validate:"required" gorm:"not null"`
	PhoneType   string `json:"phone_type"`
	IsPrimary   bool   `json:"is_primary" gorm:"default:false"`
	CustomerID  uint   `json:"customer_id" gorm:"not null;index"`
}

// NormalizePhoneNumber strips formatting characters from a phone number &
// returns the bare digit string used for duplicate comparison. The original
// (unstripped) value is included in the error when the result is not a valid
// digit string of at least MIN_PHONE_DIGITS.
func NormalizePhoneNumber(phone string) (string, error) {
	digits := phone
	for _, char := range phoneFormattingChars {
		digits = strings.ReplaceAll(digits, char, "")
	}

	if len(digits) < MIN_PHONE_DIGITS || !isAllDigits(digits) {
		return "", wrapInvalidPhone(phone)
	}

	return digits, nil
}

// FindCustomerIDOwningPhone looks up the customer that owns the given phone
// number(compared after normalization) in the phone_numbers child table.
// Returns 0 when no customer owns it.
func FindCustomerIDOwningPhone(phone string) (uint, error) {
	digits, err := NormalizePhoneNumber(phone)
	if err != nil {
		return 0, err
	}

	record := CustomerPhone{}
	err = db.Where(
		"REPLACE(REPLACE(REPLACE(REPLACE(REPLACE(phone_number, ' ', ''), '-', ''), '(', ''), ')', ''), '+', '') = ?",
		digits).First(&record).Error
	if err != nil {
		return 0, err
	}

	return record.CustomerID, nil
}

func isAllDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}

func wrapInvalidPhone(phone string) error {
	return &invalidPhoneError{value: phone}
}

type invalidPhoneError struct {
	value string
}

func (e *invalidPhoneError) Error() string {
	return "invalid phone number format: '" + e.value + "'. A valid phone number has at least 7 digits"
}

func (e *invalidPhoneError) Is(target error) bool {
	return target == ErrInvalidPhoneFormat
}
