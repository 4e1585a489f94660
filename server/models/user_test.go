package models

import (
	"testing"

	"github.com/bestsecurity/meetman/server/auth"
	"github.com/stretchr/testify/assert"
)

func TestFirstUserBecomesAdmin(t *testing.T) {
	InitializeTestDb()

	first := &User{
		FirstName: "Ada",
		LastName:  "Admin",
		Email:     "ada@example.com",
		Password:  "very-secure",
	}
	assert.Nil(t, CreateUser(first))

	second := &User{
		FirstName: "Bob",
		LastName:  "Basic",
		Email:     "bob@example.com",
		Password:  "also-secure",
	}
	assert.Nil(t, CreateUser(second))

	isAdmin, err := first.IsAdmin()
	assert.Nil(t, err)
	assert.True(t, isAdmin, "The very first account should get the admin role")

	isAdmin, err = second.IsAdmin()
	assert.Nil(t, err)
	assert.False(t, isAdmin)
}

func TestUserPasswordIsStoredHashed(t *testing.T) {
	InitializeTestDb()

	user := &User{
		FirstName: "Ada",
		LastName:  "Admin",
		Email:     "ada@example.com",
		Password:  "very-secure",
	}
	assert.Nil(t, CreateUser(user))

	passwordHash, err := FindUserPassword("ada@example.com")
	assert.Nil(t, err)
	assert.NotEqual(t, "very-secure", passwordHash)
	assert.True(t, auth.CheckPasswordHash("very-secure", passwordHash))
}
