package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestReconcileSynthesizesPrimaryEmailEntry(t *testing.T) {
	InitializeTestDb()

	customer := &Customer{
		CustomerName: "Jane Doe",
		PrimaryEmail: "Jane.Doe@Example.com",
	}

	err := CreateCustomer(customer)
	assert.Nil(t, err)

	// primary_email is normalized & mirrored into the email list
	assert.Equal(t, "jane.doe@example.com", customer.PrimaryEmail)
	assert.Len(t, customer.EmailAddresses, 1)
	assert.Equal(t, "jane.doe@example.com", customer.EmailAddresses[0].EmailAddress)
	assert.True(t, customer.EmailAddresses[0].IsPrimary)
	assert.Equal(t, PRIMARY_EMAIL_TYPE, customer.EmailAddresses[0].EmailType)
}

func TestReconcileElectsSinglePrimary(t *testing.T) {
	InitializeTestDb()

	customer := &Customer{
		CustomerName: "Jane Doe",
		PrimaryEmail: "jane.doe@example.com",
	}
	customer.AddEmail("jane.doe@example.com", PRIMARY_EMAIL_TYPE, true)
	customer.AddEmail("jane@work.example.com", WORK_EMAIL_TYPE, true)
	customer.AddPhone("15551234567", MOBILE_PHONE_TYPE, true)
	customer.AddPhone("15559990000", HOME_PHONE_TYPE, true)

	err := CreateCustomer(customer)
	assert.Nil(t, err)

	// Only the first marked entry in each list keeps the primary flag
	primaryEmails := 0
	for _, email := range customer.EmailAddresses {
		if email.IsPrimary {
			primaryEmails++
			assert.Equal(t, "jane.doe@example.com", email.EmailAddress)
		}
	}
	assert.Equal(t, 1, primaryEmails)

	primaryPhones := 0
	for _, phone := range customer.PhoneNumbers {
		if phone.IsPrimary {
			primaryPhones++
			assert.Equal(t, "15551234567", phone.PhoneNumber)
		}
	}
	assert.Equal(t, 1, primaryPhones)
}

func TestReconcileRejectsDuplicateContacts(t *testing.T) {
	InitializeTestDb()

	customer := &Customer{
		CustomerName: "Jane Doe",
		PrimaryEmail: "jane.doe@example.com",
	}
	customer.AddEmail("jane.doe@example.com", PRIMARY_EMAIL_TYPE, true)
	customer.AddEmail("JANE.DOE@EXAMPLE.COM", PERSONAL_EMAIL_TYPE, false)

	err := CreateCustomer(customer)
	assert.ErrorIs(t, err, ErrDuplicateContact)

	customer = &Customer{
		CustomerName: "John Doe",
		PrimaryEmail: "john.doe@example.com",
	}
	customer.AddPhone("555-123-4567", MOBILE_PHONE_TYPE, true)
	customer.AddPhone("(555) 123 4567", HOME_PHONE_TYPE, false)

	err = CreateCustomer(customer)
	assert.ErrorIs(t, err, ErrDuplicateContact, "Phones that normalize to the same digits are duplicates")
}

func TestReconcileValidation(t *testing.T) {
	InitializeTestDb()

	testCases := []struct {
		desc     string
		customer *Customer
	}{
		{"missing name", &Customer{PrimaryEmail: "a@b.com"}},
		{"missing primary email", &Customer{CustomerName: "Jane"}},
		{"malformed primary email", &Customer{CustomerName: "Jane", PrimaryEmail: "not-an-email"}},
	}

	for _, tcase := range testCases {
		t.Run(tcase.desc, func(t *testing.T) {
			assert.NotNil(t, CreateCustomer(tcase.customer))
		})
	}
}

func TestNormalizePhoneNumber(t *testing.T) {
	testCases := []struct {
		raw      string
		expected string
		wantErr  bool
	}{
		{"555-123-4567", "5551234567", false},
		{"+1 (555) 123-4567", "15551234567", false},
		{"5551234567", "5551234567", false},
		{"123-456", "", true},          // too few digits
		{"555.123.4567", "", true},     // '.' is not a recognized formatting char
		{"555-123-456x", "", true},     // letters never allowed
		{"", "", true},
	}

	for _, tcase := range testCases {
		t.Run(tcase.raw, func(t *testing.T) {
			digits, err := NormalizePhoneNumber(tcase.raw)

			if tcase.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhoneFormat)
				return
			}

			assert.Nil(t, err)
			assert.Equal(t, tcase.expected, digits)
		})
	}
}

func TestFindCustomerIDOwningContact(t *testing.T) {
	InitializeTestDb()

	customer := &Customer{
		CustomerName: "Jane Doe",
		PrimaryEmail: "jane.doe@example.com",
	}
	customer.AddEmail("jane.doe@example.com", PRIMARY_EMAIL_TYPE, true)
	customer.AddEmail("jane@work.example.com", WORK_EMAIL_TYPE, false)
	customer.AddPhone("555-123-4567", MOBILE_PHONE_TYPE, true)

	err := CreateCustomer(customer)
	assert.Nil(t, err)

	customerID, err := FindCustomerIDOwningEmail("JANE@WORK.EXAMPLE.COM")
	assert.Nil(t, err)
	assert.Equal(t, customer.ID, customerID, "Email lookup should be case-insensitive")

	customerID, err = FindCustomerIDOwningPhone("(555) 123-4567")
	assert.Nil(t, err)
	assert.Equal(t, customer.ID, customerID, "Phone lookup should compare normalized digits")
}

func TestGetPrimaryContactFallsBackToFirstEntry(t *testing.T) {
	customer := &Customer{
		CustomerName: "Jane Doe",
		PrimaryEmail: "jane.doe@example.com",
		EmailAddresses: []CustomerEmail{
			{EmailAddress: "jane.doe@example.com", EmailType: PRIMARY_EMAIL_TYPE},
		},
		PhoneNumbers: []CustomerPhone{
			{PhoneNumber: "5551234567", PhoneType: MOBILE_PHONE_TYPE},
			{PhoneNumber: "5559990000", PhoneType: HOME_PHONE_TYPE},
		},
	}

	assert.Equal(t, "jane.doe@example.com", customer.GetPrimaryEmail())
	assert.Equal(t, "5551234567", customer.GetPrimaryPhone())
}

func TestUpdateCustomerKeepsPrimaryEmailMirror(t *testing.T) {
	InitializeTestDb()

	customer := &Customer{
		CustomerName: "Jane Doe",
		PrimaryEmail: "jane.doe@example.com",
	}
	customer.AddPhone("15551234567", MOBILE_PHONE_TYPE, true)
	assert.Nil(t, CreateCustomer(customer))

	err := UpdateCustomer(customer.ID, map[string]interface{}{"primary_email": "New.Address@Example.COM"})
	assert.Nil(t, err)

	updated, err := FindCustomerBy("id", customer.ID)
	assert.Nil(t, err)

	assert.Equal(t, "new.address@example.com", updated.PrimaryEmail)
	assert.Equal(t, updated.PrimaryEmail, updated.GetPrimaryEmail(),
		"primary_email should always point at the entry marked primary")
	assert.True(t, updated.HasEmail("new.address@example.com"))
	assert.True(t, updated.HasEmail("jane.doe@example.com"), "Old address stays on file as non-primary")

	primaryEmails := 0
	for _, email := range updated.EmailAddresses {
		if email.IsPrimary {
			primaryEmails++
			assert.Equal(t, "new.address@example.com", email.EmailAddress)
		}
	}
	assert.Equal(t, 1, primaryEmails)

	// A later save that re-runs the invariants must not re-elect the old address
	updated.AddPhone("15559990000", HOME_PHONE_TYPE, false)
	assert.Nil(t, SaveCustomer(updated))

	reloaded, err := FindCustomerBy("id", customer.ID)
	assert.Nil(t, err)
	assert.Equal(t, "new.address@example.com", reloaded.PrimaryEmail)
	assert.Equal(t, "new.address@example.com", reloaded.GetPrimaryEmail())
}

func TestUpdateCustomerMissingRecord(t *testing.T) {
	InitializeTestDb()

	err := UpdateCustomer(99999, map[string]interface{}{"is_active": false})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
