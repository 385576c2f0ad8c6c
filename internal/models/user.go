package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleDentist      Role = "DENTIST"
	RoleReceptionist Role = "RECEPTIONIST"
	RoleProtetico    Role = "PROTETICO"
)

// IsClinicStaff reports whether the role belongs to the clinic side of an order.
func (r Role) IsClinicStaff() bool {
	return r == RoleAdmin || r == RoleDentist || r == RoleReceptionist
}

// User represents a clinic staff member or a laboratory account
type User struct {
	BaseModel
	ClinicID     string  `gorm:"size:36;index;not null" json:"clinicId"`
	LaboratoryID *string `gorm:"size:36;index" json:"laboratoryId,omitempty"`
	Email        string  `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password     string  `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	FirstName    string  `gorm:"size:100" json:"firstName"`
	LastName     string  `gorm:"size:100" json:"lastName"`
	Role         Role    `gorm:"size:20;default:'DENTIST'" json:"role"`
	PhoneNumber  string  `json:"phoneNumber,omitempty"`
	CRO          string  `gorm:"size:30" json:"cro,omitempty"` // dental council registration
	Active       bool    `gorm:"default:true" json:"active"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID           string    `json:"id"`
	ClinicID     string    `json:"clinicId"`
	LaboratoryID *string   `json:"laboratoryId,omitempty"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Role         Role      `json:"role"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	CRO          string    `json:"cro,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// Sanitize creates a UserSanitized struct from a User model, excluding sensitive data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:           u.ID,
		ClinicID:     u.ClinicID,
		LaboratoryID: u.LaboratoryID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         u.Role,
		PhoneNumber:  u.PhoneNumber,
		CRO:          u.CRO,
		Active:       u.Active,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
