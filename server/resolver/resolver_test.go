package resolver

import (
	"testing"

	"github.com/bestsecurity/meetman/server/models"
	"github.com/stretchr/testify/assert"
)

func newWarmResolver(t *testing.T) *Resolver {
	t.Helper()

	models.InitializeTestDb()

	r := New()
	assert.Nil(t, r.WarmUp())

	return r
}

func TestResolveOrCreateCreatesNewCustomer(t *testing.T) {
	r := newWarmResolver(t)

	resolution, err := r.ResolveOrCreate("jane.doe@example.com", "555-123-4567", "")
	assert.Nil(t, err)
	assert.True(t, resolution.Created)

	customer := resolution.Customer
	assert.Equal(t, "jane.doe@example.com", customer.PrimaryEmail)
	assert.Equal(t, "Jane Doe", customer.CustomerName, "Display name should be derived from the email local part")
	assert.True(t, customer.IsActive)

	assert.Len(t, customer.EmailAddresses, 1)
	assert.True(t, customer.EmailAddresses[0].IsPrimary)
	assert.Len(t, customer.PhoneNumbers, 1)
	assert.True(t, customer.PhoneNumbers[0].IsPrimary)
}

func TestResolveOrCreateReusesOnEmailMatch(t *testing.T) {
	r := newWarmResolver(t)

	first, err := r.ResolveOrCreate("jane.doe@example.com", "555-123-4567", "Jane Doe")
	assert.Nil(t, err)
	assert.True(t, first.Created)

	// Same email submitted with different casing & a brand new phone
	second, err := r.ResolveOrCreate("JANE.DOE@example.com", "555-999-0000", "J. Doe")
	assert.Nil(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Customer.ID, second.Customer.ID)

	// The new phone is appended as a non-primary entry
	assert.Len(t, second.Customer.PhoneNumbers, 2)
	for _, phone := range second.Customer.PhoneNumbers {
		if phone.PhoneNumber == "555-999-0000" {
			assert.False(t, phone.IsPrimary)
		}
	}

	// The existing name is never overwritten by later submissions
	assert.Equal(t, "Jane Doe", second.Customer.CustomerName)
}

func TestResolveOrCreateReusesOnPhoneMatch(t *testing.T) {
	r := newWarmResolver(t)

	first, err := r.ResolveOrCreate("jane.doe@example.com", "555-123-4567", "Jane Doe")
	assert.Nil(t, err)

	// No email this time - only a differently formatted version of the phone
	second, err := r.ResolveOrCreate("", "(555) 123-4567", "")
	assert.Nil(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Customer.ID, second.Customer.ID)

	// A new email alongside a known phone is appended as non-primary
	third, err := r.ResolveOrCreate("jane@other.example.com", "+555 123 4567", "")
	assert.Nil(t, err)
	assert.False(t, third.Created)
	assert.Equal(t, first.Customer.ID, third.Customer.ID)

	assert.Len(t, third.Customer.EmailAddresses, 2)
	for _, email := range third.Customer.EmailAddresses {
		if email.EmailAddress == "jane@other.example.com" {
			assert.False(t, email.IsPrimary)
			assert.Equal(t, models.PERSONAL_EMAIL_TYPE, email.EmailType)
		}
	}
	assert.Equal(t, "jane.doe@example.com", third.Customer.PrimaryEmail, "Primary email never changes on reuse")
}

func TestResolveOrCreateEmailWinsOverPhone(t *testing.T) {
	r := newWarmResolver(t)

	customerA, err := r.ResolveOrCreate("a@example.com", "", "Customer A")
	assert.Nil(t, err)

	customerB, err := r.ResolveOrCreate("b@example.com", "555-123-4567", "Customer B")
	assert.Nil(t, err)

	// Email matches A, phone matches B - A wins & B is left untouched
	resolution, err := r.ResolveOrCreate("a@example.com", "555-123-4567", "")
	assert.Nil(t, err)
	assert.False(t, resolution.Created)
	assert.Equal(t, customerA.Customer.ID, resolution.Customer.ID)

	// A picked up the phone; as A's only phone it gets elected primary
	assert.Len(t, resolution.Customer.PhoneNumbers, 1)
	assert.True(t, resolution.Customer.PhoneNumbers[0].IsPrimary)

	untouched, err := models.FindCustomerBy("id", customerB.Customer.ID)
	assert.Nil(t, err)
	assert.Len(t, untouched.PhoneNumbers, 1)
	assert.Len(t, untouched.EmailAddresses, 1)
}

func TestResolveOrCreateInvalidInput(t *testing.T) {
	r := newWarmResolver(t)

	// Nothing to key on at all
	_, err := r.ResolveOrCreate("", "", "Jane Doe")
	assert.ErrorIs(t, err, ErrInvalidInput)

	// A phone with no match & no email can't create a customer
	_, err = r.ResolveOrCreate("", "555-123-4567", "Jane Doe")
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Bad phone formats are rejected before anything is written
	_, err = r.ResolveOrCreate("jane.doe@example.com", "123-456", "")
	assert.ErrorIs(t, err, models.ErrInvalidPhoneFormat)
}

func TestResolveOrCreateIsIdempotent(t *testing.T) {
	r := newWarmResolver(t)

	first, err := r.ResolveOrCreate("jane.doe@example.com", "555-123-4567", "Jane Doe")
	assert.Nil(t, err)

	// Replaying the exact same submission changes nothing
	second, err := r.ResolveOrCreate("jane.doe@example.com", "555-123-4567", "Jane Doe")
	assert.Nil(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Customer.ID, second.Customer.ID)
	assert.Len(t, second.Customer.EmailAddresses, 1)
	assert.Len(t, second.Customer.PhoneNumbers, 1)
}

func TestRelookupAfterUniqueCollision(t *testing.T) {
	r := newWarmResolver(t)

	// Simulate a concurrent create: the store already has the customer,
	// but this resolver's index has never seen it.
	existing := &models.Customer{
		CustomerName: "Jane Doe",
		PrimaryEmail: "jane.doe@example.com",
	}
	err := models.CreateCustomer(existing)
	assert.Nil(t, err)

	resolution, err := r.ResolveOrCreate("jane.doe@example.com", "", "Jane Doe")
	assert.Nil(t, err)
	assert.False(t, resolution.Created, "The store's winning record should be reused")
	assert.Equal(t, existing.ID, resolution.Customer.ID)

	// And the index learned about it, so the next lookup is a plain hit
	assert.Equal(t, existing.ID, r.Index().CustomerIDByEmail("jane.doe@example.com"))
}
