package models

import (
	"regexp"
	"strings"
)

const (
	PRIMARY_EMAIL_TYPE  = "Primary"
	WORK_EMAIL_TYPE     = "Work"
	PERSONAL_EMAIL_TYPE = "Personal"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type CustomerEmail struct {
	BaseModel
	EmailAddress string `json:"email_address" validate:"required,email" gorm:"not null"`
	EmailType    string `json:"email_type"`
	IsPrimary    bool   `json:"is_primary" gorm:"default:false"`
	CustomerID   uint   `json:"customer_id" gorm:"not null;index"`
}

// NormalizeEmail folds an email address into its comparable form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// FindCustomerIDOwningEmail looks up the customer that owns the given email
// in the email_addresses child table. Returns 0 when no customer owns it.
func FindCustomerIDOwningEmail(email string) (uint, error) {
	record := CustomerEmail{}

	err := db.Where("LOWER(email_address) = ?", NormalizeEmail(email)).First(&record).Error
	if err != nil {
		return 0, err
	}

	return record.CustomerID, nil
}
