package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrDuplicateContact is returned when 2 entries on the same customer
// normalize to the same email/phone.
var ErrDuplicateContact = errors.New("duplicate contact on customer")

type Customer struct {
	BaseModel
	CustomerName    string          `json:"customer_name" validate:"required"`
	PrimaryEmail    string          `json:"primary_email" validate:"required,email" gorm:"not null;unique"`
	IsActive        bool            `json:"is_active" gorm:"default:true"`
	TotalBookings   int64           `json:"total_bookings" gorm:"default:0"`
	LastBookingDate *time.Time      `json:"last_booking_date,omitempty"`
	EmailAddresses  []CustomerEmail `json:"email_addresses,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	PhoneNumbers    []CustomerPhone `json:"phone_numbers,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// Reconcile validates the customer & re-asserts the contact invariants:
//   - customer name & primary email are present/valid
//   - no 2 entries in a child list normalize to the same value
//   - primary_email always appears in the email list
//   - exactly one entry per non-empty child list is marked primary
//
// It is invoked explicitly at the end of every mutating operation
// (CreateCustomer/SaveCustomer), and is a no-op on an already valid record.
func (customer *Customer) Reconcile() error {
	if err := customer.validateCustomerName(); err != nil {
		return err
	}

	if err := customer.validatePrimaryEmail(); err != nil {
		return err
	}

	if err := customer.validateEmailAddresses(); err != nil {
		return err
	}

	if err := customer.validatePhoneNumbers(); err != nil {
		return err
	}

	customer.ensurePrimaryEmailInList()
	customer.ensureSinglePrimaryEmail()
	customer.ensureSinglePrimaryPhone()

	return nil
}

func (customer *Customer) validateCustomerName() error {
	customer.CustomerName = strings.TrimSpace(customer.CustomerName)
	if customer.CustomerName == "" {
		return errors.New("customer name is required")
	}

	return nil
}

func (customer *Customer) validatePrimaryEmail() error {
	customer.PrimaryEmail = NormalizeEmail(customer.PrimaryEmail)
	if customer.PrimaryEmail == "" {
		return errors.New("primary email is required")
	}

	if !IsValidEmail(customer.PrimaryEmail) {
		return fmt.Errorf("invalid email format for primary email: '%v'", customer.PrimaryEmail)
	}

	return nil
}

func (customer *Customer) validateEmailAddresses() error {
	seen := make(map[string]bool)

	for _, email := range customer.EmailAddresses {
		if !IsValidEmail(email.EmailAddress) {
			return fmt.Errorf("invalid email format: '%v'", email.EmailAddress)
		}

		normalized := NormalizeEmail(email.EmailAddress)
		if seen[normalized] {
			return fmt.Errorf("%w: '%v'", ErrDuplicateContact, email.EmailAddress)
		}
		seen[normalized] = true
	}

	return nil
}

func (customer *Customer) validatePhoneNumbers() error {
	seen := make(map[string]bool)

	for _, phone := range customer.PhoneNumbers {
		digits, err := NormalizePhoneNumber(phone.PhoneNumber)
		if err != nil {
			return err
		}

		if seen[digits] {
			return fmt.Errorf("%w: '%v'", ErrDuplicateContact, phone.PhoneNumber)
		}
		seen[digits] = true
	}

	return nil
}

// ensurePrimaryEmailInList synthesizes an email entry for primary_email when
// the field was set directly without a matching child entry.
func (customer *Customer) ensurePrimaryEmailInList() {
	primary := NormalizeEmail(customer.PrimaryEmail)

	for _, email := range customer.EmailAddresses {
		if NormalizeEmail(email.EmailAddress) == primary {
			return
		}
	}

	customer.EmailAddresses = append(customer.EmailAddresses, CustomerEmail{
		EmailAddress: primary,
		EmailType:    PRIMARY_EMAIL_TYPE,
		IsPrimary:    true,
	})
}

// ensureSinglePrimaryEmail keeps exactly one primary entry: with none marked,
// the first entry(insertion order) wins; with more than one marked, the first
// marked entry wins & the rest are cleared.
func (customer *Customer) ensureSinglePrimaryEmail() {
	if len(customer.EmailAddresses) == 0 {
		return
	}

	found := false
	for i := range customer.EmailAddresses {
		if !customer.EmailAddresses[i].IsPrimary {
			continue
		}

		if found {
			customer.EmailAddresses[i].IsPrimary = false
			continue
		}
		found = true
	}

	if !found {
		customer.EmailAddresses[0].IsPrimary = true
	}

	// keep the mirror intact - primary_email tracks the entry marked primary
	for _, email := range customer.EmailAddresses {
		if email.IsPrimary {
			customer.PrimaryEmail = NormalizeEmail(email.EmailAddress)
			return
		}
	}
}

func (customer *Customer) ensureSinglePrimaryPhone() {
	if len(customer.PhoneNumbers) == 0 {
		return
	}

	found := false
	for i := range customer.PhoneNumbers {
		if !customer.PhoneNumbers[i].IsPrimary {
			continue
		}

		if found {
			customer.PhoneNumbers[i].IsPrimary = false
			continue
		}
		found = true
	}

	if !found {
		customer.PhoneNumbers[0].IsPrimary = true
	}
}

// GetPrimaryEmail returns the email entry marked primary. If none is marked
// (should not happen on a reconciled record), the first entry is returned.
func (customer *Customer) GetPrimaryEmail() string {
	for _, email := range customer.EmailAddresses {
		if email.IsPrimary {
			return email.EmailAddress
		}
	}

	if len(customer.EmailAddresses) > 0 {
		return customer.EmailAddresses[0].EmailAddress
	}

	return ""
}

func (customer *Customer) GetPrimaryPhone() string {
	for _, phone := range customer.PhoneNumbers {
		if phone.IsPrimary {
			return phone.PhoneNumber
		}
	}

	if len(customer.PhoneNumbers) > 0 {
		return customer.PhoneNumbers[0].PhoneNumber
	}

	return ""
}

// setPrimaryEmail re-points the record at a new primary address. Existing
// entries are re-marked so the election in Reconcile settles on the new
// address instead of re-electing the old one.
func (customer *Customer) setPrimaryEmail(email string) {
	normalized := NormalizeEmail(email)
	customer.PrimaryEmail = normalized

	for i := range customer.EmailAddresses {
		customer.EmailAddresses[i].IsPrimary =
			NormalizeEmail(customer.EmailAddresses[i].EmailAddress) == normalized
	}
}

// HasEmail reports whether the customer already owns the given email,
// compared case-insensitively.
func (customer *Customer) HasEmail(email string) bool {
	normalized := NormalizeEmail(email)

	for _, entry := range customer.EmailAddresses {
		if NormalizeEmail(entry.EmailAddress) == normalized {
			return true
		}
	}

	return false
}

// HasPhone reports whether the customer already owns the given phone number,
// compared after normalization.
func (customer *Customer) HasPhone(phone string) bool {
	digits, err := NormalizePhoneNumber(phone)
	if err != nil {
		return false
	}

	for _, entry := range customer.PhoneNumbers {
		entryDigits, err := NormalizePhoneNumber(entry.PhoneNumber)
		if err == nil && entryDigits == digits {
			return true
		}
	}

	return false
}

func (customer *Customer) AddEmail(email, emailType string, isPrimary bool) {
	customer.EmailAddresses = append(customer.EmailAddresses, CustomerEmail{
		EmailAddress: NormalizeEmail(email),
		EmailType:    emailType,
		IsPrimary:    isPrimary,
	})
}

func (customer *Customer) AddPhone(phone, phoneType string, isPrimary bool) {
	customer.PhoneNumbers = append(customer.PhoneNumbers, CustomerPhone{
		PhoneNumber: strings.TrimSpace(phone),
		PhoneType:   phoneType,
		IsPrimary:   isPrimary,
	})
}

// ---------------------------------------------------------------------------------//
// Persistence functions
// --------------------------------------------------------------------------------//

func CreateCustomer(customer *Customer) error {
	if err := customer.Reconcile(); err != nil {
		return err
	}

	err := db.Create(customer).Error
	if isUniqueConstraintViolation(err) {
		return fmt.Errorf("%w: %v", ErrUniqueConstraint, err)
	}

	return err
}

func SaveCustomer(customer *Customer) error {
	if err := customer.Reconcile(); err != nil {
		return err
	}

	err := db.Session(&gorm.Session{FullSaveAssociations: true}).Save(customer).Error
	if isUniqueConstraintViolation(err) {
		return fmt.Errorf("%w: %v", ErrUniqueConstraint, err)
	}

	return err
}

// UpdateCustomer applies the given whitelisted fields to a stored customer
// and persists through SaveCustomer, so the contact invariants are
// re-asserted on this entry path too.
func UpdateCustomer(id interface{}, data map[string]interface{}) error {
	customer, err := FindCustomerBy("id", id)
	if err != nil {
		return err
	}

	if value, ok := data["customer_name"]; ok {
		customer.CustomerName = fmt.Sprintf("%v", value)
	}

	if value, ok := data["is_active"]; ok {
		if isActive, ok := value.(bool); ok {
			customer.IsActive = isActive
		}
	}

	if value, ok := data["primary_email"]; ok {
		customer.setPrimaryEmail(fmt.Sprintf("%v", value))
	}

	return SaveCustomer(customer)
}

func FindCustomerBy(field string, value interface{}) (*Customer, error) {
	customer := Customer{}

	err := db.Preload("EmailAddresses").Preload("PhoneNumbers").
		First(&customer, fmt.Sprintf("%v = ?", field), value).Error
	if err != nil {
		return nil, err
	}

	return &customer, nil
}

func FindCustomerByPrimaryEmail(email string) (*Customer, error) {
	customer := Customer{}

	err := db.Preload("EmailAddresses").Preload("PhoneNumbers").
		First(&customer, "LOWER(primary_email) = ?", NormalizeEmail(email)).Error
	if err != nil {
		return nil, err
	}

	return &customer, nil
}

func FetchCustomers(page int) ([]Customer, *Paging, error) {
	var total int64
	customers := []Customer{}

	err := db.Model(&Customer{}).Count(&total).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	err = db.Scopes(paginate(page, DEFAULT_PAGE_SIZE)).
		Preload("EmailAddresses").Preload("PhoneNumbers").
		Order("customers.id asc").Find(&customers).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	return customers, newPaging(int64(page), DEFAULT_PAGE_SIZE, total), nil
}

// AllCustomers loads every customer with both contact lists. Only meant for
// warming the resolver index at startup - request paths go through the index.
func AllCustomers() ([]Customer, error) {
	customers := []Customer{}

	err := db.Preload("EmailAddresses").Preload("PhoneNumbers").Find(&customers).Error
	if err != nil {
		return nil, err
	}

	return customers, nil
}

// RefreshBookingStats recomputes the cached total_bookings/last_booking_date
// fields from the bookings table. Only the booking workflow & the stats job
// call this - the identity resolver never touches these fields.
func RefreshBookingStats(customerID uint) error {
	var total int64
	err := db.Model(&Booking{}).Where("customer_id = ?", customerID).Count(&total).Error
	if err != nil {
		return err
	}

	update := map[string]interface{}{"total_bookings": total}

	lastBooking := Booking{}
	err = db.Where("customer_id = ?", customerID).Order("starts_at desc").First(&lastBooking).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil {
		update["last_booking_date"] = lastBooking.StartsAt
	}

	return db.Model(&Customer{}).Where("id = ?", customerID).Updates(update).Error
}
