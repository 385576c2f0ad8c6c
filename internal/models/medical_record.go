package models

import (
	"gorm.io/datatypes"
)

// Procedure is one line of a medical record.
type Procedure struct {
	Name  string `json:"name"`
	Tooth string `json:"tooth,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// MedicalRecord is the append-only clinical note written when a consultation completes
type MedicalRecord struct {
	BaseModel
	ConsultationID string                         `gorm:"size:36;uniqueIndex;not null" json:"consultationId"`
	PatientID      string                         `gorm:"size:36;index" json:"patientId"`
	DentistID      string                         `gorm:"size:36;index" json:"dentistId"`
	ClinicID       string                         `gorm:"size:36;index;not null" json:"clinicId"`
	Procedures     datatypes.JSONSlice[Procedure] `json:"procedures"`
	Observations   string                         `gorm:"type:text" json:"observations"`
}
