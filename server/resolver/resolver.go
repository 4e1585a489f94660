package resolver

import (
	"errors"
	"strings"

	"github.com/bestsecurity/meetman/server/models"
	"gorm.io/gorm"
)

// ErrInvalidInput is returned when neither an email nor a phone number is
// submitted, or when a brand new customer would have to be created without
// an email to key it on.
var ErrInvalidInput = errors.New("an email or phone number is required to resolve a customer")

// Resolution is the outcome of ResolveOrCreate.
type Resolution struct {
	Customer *models.Customer `json:"customer"`
	Created  bool             `json:"created"`
}

// Resolver finds or creates the canonical customer record for submitted
// booking contact details. Lookups go through the contact index - the only
// full scan is the warm-up at startup.
type Resolver struct {
	index *ContactIndex
}

func New() *Resolver {
	return &Resolver{index: NewContactIndex()}
}

// WarmUp loads the contact index from the store. Call once before serving.
func (r *Resolver) WarmUp() error {
	return r.index.Warm()
}

// Index exposes the underlying contact index, for callers that mutate
// customer contacts outside the resolver & need to keep lookups fresh.
func (r *Resolver) Index() *ContactIndex {
	return r.index
}

// ResolveOrCreate returns the single canonical customer for the submitted
// contact details, creating one if none exists.
//
// Lookup priority - email dominates phone, by design:
//  1. match by email(primary or any email on file) -> reuse; a newly
//     submitted phone is appended as a non-primary entry
//  2. match by phone(compared after normalization) -> reuse; a newly
//     submitted email is appended as a non-primary entry
//  3. no match -> create, with the email as primary & the phone(if any)
//     as the primary phone entry
//
// When the email matches customer A & the phone matches customer B, A wins
// and B is never touched.
func (r *Resolver) ResolveOrCreate(email, phone, name string) (*Resolution, error) {
	email = models.NormalizeEmail(email)
	phone = strings.TrimSpace(phone)

	if email == "" && phone == "" {
		return nil, ErrInvalidInput
	}

	// 1. Match by email
	if email != "" {
		customer, err := r.customerByEmail(email)
		if err != nil {
			return nil, err
		}

		if customer != nil {
			if err := r.appendPhoneIfNew(customer, phone); err != nil {
				return nil, err
			}
			return &Resolution{Customer: customer, Created: false}, nil
		}
	}

	// 2. Match by phone
	if phone != "" {
		digits, err := models.NormalizePhoneNumber(phone)
		if err != nil {
			return nil, err
		}

		customer, err := r.customerByPhoneDigits(digits)
		if err != nil {
			return nil, err
		}

		if customer != nil {
			if err := r.appendEmailIfNew(customer, email); err != nil {
				return nil, err
			}
			return &Resolution{Customer: customer, Created: false}, nil
		}
	}

	// 3. No match - create a new customer, keyed on the email
	if email == "" {
		return nil, ErrInvalidInput
	}

	customer, created, err := r.createCustomer(email, phone, name)
	if err != nil {
		return nil, err
	}

	return &Resolution{Customer: customer, Created: created}, nil
}

func (r *Resolver) createCustomer(email, phone, name string) (*models.Customer, bool, error) {
	customer := &models.Customer{
		CustomerName: defaultCustomerName(email, name),
		PrimaryEmail: email,
		IsActive:     true,
	}
	customer.AddEmail(email, models.PRIMARY_EMAIL_TYPE, true)
	if phone != "" {
		customer.AddPhone(phone, models.MOBILE_PHONE_TYPE, true)
	}

	err := models.CreateCustomer(customer)
	if err == nil {
		r.index.Add(customer)
		return customer, true, nil
	}

	// A concurrent request may have created the same customer; re-resolve
	// once from the store & reuse the winning record.
	if errors.Is(err, models.ErrUniqueConstraint) {
		existing, lookupErr := r.relookup(email, phone)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		if existing != nil {
			r.index.Add(existing)
			return existing, false, nil
		}
	}

	return nil, false, err
}

// relookup goes straight to the store, bypassing the index, after a
// uniqueness collision. Runs exactly once per create attempt.
func (r *Resolver) relookup(email, phone string) (*models.Customer, error) {
	customer, err := models.FindCustomerByPrimaryEmail(email)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	customerID, err := models.FindCustomerIDOwningEmail(email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if customerID == 0 && phone != "" {
		customerID, err = models.FindCustomerIDOwningPhone(phone)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if customerID == 0 {
		return nil, nil
	}

	return models.FindCustomerBy("id", customerID)
}

func (r *Resolver) customerByEmail(normalizedEmail string) (*models.Customer, error) {
	customerID := r.index.CustomerIDByEmail(normalizedEmail)
	if customerID == 0 {
		return nil, nil
	}

	return models.FindCustomerBy("id", customerID)
}

func (r *Resolver) customerByPhoneDigits(digits string) (*models.Customer, error) {
	customerID := r.index.CustomerIDByPhone(digits)
	if customerID == 0 {
		return nil, nil
	}

	return models.FindCustomerBy("id", customerID)
}

// appendPhoneIfNew appends a submitted phone to a matched customer as a
// non-primary entry. Idempotent - a phone already on file is left alone.
func (r *Resolver) appendPhoneIfNew(customer *models.Customer, phone string) error {
	if phone == "" || customer.HasPhone(phone) {
		return nil
	}

	// surface bad formats before mutating the record
	if _, err := models.NormalizePhoneNumber(phone); err != nil {
		return err
	}

	customer.AddPhone(phone, models.MOBILE_PHONE_TYPE, false)
	if err := models.SaveCustomer(customer); err != nil {
		return err
	}

	r.index.Add(customer)
	return nil
}

func (r *Resolver) appendEmailIfNew(customer *models.Customer, email string) error {
	if email == "" || customer.HasEmail(email) {
		return nil
	}

	customer.AddEmail(email, models.PERSONAL_EMAIL_TYPE, false)
	if err := models.SaveCustomer(customer); err != nil {
		return err
	}

	r.index.Add(customer)
	return nil
}

// defaultCustomerName falls back to a display name derived from the email
// local part e.g. "jane.doe@example.com" -> "Jane Doe".
func defaultCustomerName(email, name string) string {
	name = strings.TrimSpace(name)
	if name != "" {
		return name
	}

	localPart := strings.SplitN(email, "@", 2)[0]
	return strings.Title(strings.ReplaceAll(localPart, ".", " "))
}
