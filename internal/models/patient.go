package models

import (
	"time"
)

// Patient is a person treated by a clinic.
type Patient struct {
	BaseModel
	ClinicID  string     `gorm:"size:36;index;not null" json:"clinicId"`
	Name      string     `gorm:"size:255;not null" json:"name"`
	Email     string     `gorm:"size:255" json:"email,omitempty"`
	Phone     string     `gorm:"size:50" json:"phone,omitempty"`
	Document  string     `gorm:"size:20" json:"document,omitempty"`
	BirthDate *time.Time `json:"birthDate,omitempty"`
	Notes     string     `gorm:"type:text" json:"notes,omitempty"`
	Active    bool       `gorm:"default:true" json:"active"`
}
