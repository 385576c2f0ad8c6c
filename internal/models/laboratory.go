package models

import (
	"gorm.io/datatypes"
)

// Laboratory is an external prosthetic lab ("protético") a clinic sends orders to.
// Laboratories are never hard-deleted; Active=false hides them.
type Laboratory struct {
	BaseModel
	ClinicID        string                      `gorm:"size:36;index;not null" json:"clinicId"`
	Name            string                      `gorm:"size:255;not null" json:"name"`
	ResponsibleName string                      `gorm:"size:255" json:"responsibleName"`
	Email           string                      `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone           string                      `gorm:"size:50" json:"phone"`
	Specialties     datatypes.JSONSlice[string] `json:"specialties"`
	Active          bool                        `gorm:"default:true" json:"active"`
}
