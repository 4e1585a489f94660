package models

import (
	"errors"
	"fmt"

	"github.com/bestsecurity/meetman/server/auth"
	"gorm.io/gorm"
)

var (
	allFieldsExceptPassword = []string{"id",
		"first_name",
		"last_name",
		"email",
		"role_id",
		"created_at",
		"updated_at",
	}

	updatableFields = []string{"first_name",
		"last_name",
		"password",
	}
)

// User is a staff account that manages customers & bookings.
type User struct {
	BaseModel
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email" gorm:"not null;unique"`
	Password  string `json:"password,omitempty" validate:"required,password" gorm:"not null"`
	RoleID    uint   `json:"role_id" gorm:"null"`
}

func (user *User) Update(data map[string]interface{}) error {
	if data["password"] != nil {
		passwordHash, err := auth.HashPassword(data["password"].(string))
		if err != nil {
			return err
		}
		data["password"] = passwordHash
	}

	return db.Model(&User{}).Where("id = ?", user.ID).Select(updatableFields).Updates(data).Error
}

func (user *User) IsAdmin() (bool, error) {
	if user.RoleID == 0 {
		return false, nil
	}

	adminRole, err := FindRole(ADMIN_USER_ROLE)
	if err != nil {
		return false, err
	}

	return adminRole.ID == user.RoleID, nil
}

func FindUserBy(field string, value interface{}) (*User, error) {
	user := User{}
	err := db.Select(allFieldsExceptPassword).First(&user, fmt.Sprintf("%v = ?", field), value).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func FindUserPassword(email string) (string, error) {
	user := &User{}
	err := db.Select("Password").First(user, "email = ?", email).Error
	if err != nil {
		return "", err
	}

	return user.Password, nil
}

func CreateUser(user *User) error {
	passwordHash, err := auth.HashPassword(user.Password)
	if err != nil {
		return err
	}
	user.Password = passwordHash

	// The very first account gets the admin role
	atLeastOneUser, err := AtLeastOneUserExists()
	if err != nil {
		return err
	}

	roleName := BASIC_USER_ROLE
	if !atLeastOneUser {
		roleName = ADMIN_USER_ROLE
	}

	role, err := FindRole(roleName)
	if err != nil {
		return err
	}
	user.RoleID = role.ID

	return db.Create(user).Error
}

func DeleteUser(id interface{}) error {
	return db.Delete(&User{}, id).Error
}

func AtLeastOneUserExists() (bool, error) {
	err := db.First(&User{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}
