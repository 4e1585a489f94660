package resolver

import (
	"sync"

	"github.com/bestsecurity/meetman/server/models"
)

// ContactIndex maps normalized contact values to customer ids, so lookups
// during booking don't have to scan the customer tables. It is maintained
// incrementally on every create/update that goes through the resolver, and
// warmed from the store once at startup.
type ContactIndex struct {
	mu     sync.RWMutex
	emails map[string]uint
	phones map[string]uint
}

func NewContactIndex() *ContactIndex {
	return &ContactIndex{
		emails: make(map[string]uint),
		phones: make(map[string]uint),
	}
}

// Warm indexes every contact entry of every customer.
func (index *ContactIndex) Warm() error {
	customers, err := models.AllCustomers()
	if err != nil {
		return err
	}

	index.mu.Lock()
	defer index.mu.Unlock()

	index.emails = make(map[string]uint)
	index.phones = make(map[string]uint)
	for i := range customers {
		index.addLocked(&customers[i])
	}

	return nil
}

// Add indexes all contact entries of the given customer, overwriting any
// previous entries that point elsewhere.
func (index *ContactIndex) Add(customer *models.Customer) {
	index.mu.Lock()
	defer index.mu.Unlock()

	index.addLocked(customer)
}

func (index *ContactIndex) addLocked(customer *models.Customer) {
	index.emails[models.NormalizeEmail(customer.PrimaryEmail)] = customer.ID

	for _, email := range customer.EmailAddresses {
		index.emails[models.NormalizeEmail(email.EmailAddress)] = customer.ID
	}

	for _, phone := range customer.PhoneNumbers {
		digits, err := models.NormalizePhoneNumber(phone.PhoneNumber)
		if err != nil {
			// a record that made it to the store always normalizes; skip if not
			continue
		}
		index.phones[digits] = customer.ID
	}
}

// CustomerIDByEmail returns the id of the customer owning the given email
// (normalized by the caller), or 0 when unknown.
func (index *ContactIndex) CustomerIDByEmail(normalizedEmail string) uint {
	index.mu.RLock()
	defer index.mu.RUnlock()

	return index.emails[normalizedEmail]
}

// CustomerIDByPhone returns the id of the customer owning the given phone
// digit string, or 0 when unknown.
func (index *ContactIndex) CustomerIDByPhone(digits string) uint {
	index.mu.RLock()
	defer index.mu.RUnlock()

	return index.phones[digits]
}
