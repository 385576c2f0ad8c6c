package models

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentScheduled  AppointmentStatus = "SCHEDULED"
	AppointmentConfirmed  AppointmentStatus = "CONFIRMED"
	AppointmentInProgress AppointmentStatus = "IN_PROGRESS"
	AppointmentCompleted  AppointmentStatus = "COMPLETED"
	AppointmentCancelled  AppointmentStatus = "CANCELLED"
	AppointmentNoShow     AppointmentStatus = "NO_SHOW"
)

// Appointment represents a scheduled slot a consultation is started against
type Appointment struct {
	BaseModel
	ClinicID             string            `gorm:"size:36;index;not null" json:"clinicId"`
	PatientID            string            `gorm:"size:36;index" json:"patientId"`
	DentistID            string            `gorm:"size:36;index" json:"dentistId"`
	StartTime            time.Time         `gorm:"index" json:"startTime"`
	EndTime              time.Time         `json:"endTime"`
	Status               AppointmentStatus `gorm:"size:20;default:'SCHEDULED'" json:"status"`
	Reason               string            `gorm:"size:255" json:"reason"`
	Notes                string            `gorm:"type:text" json:"notes"`
	IsReturn             bool              `gorm:"default:false" json:"isReturn"`
	OriginConsultationID *string           `gorm:"size:36" json:"originConsultationId,omitempty"`

	// Relations (not always preloaded)
	Patient *Patient `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Dentist *User    `gorm:"foreignKey:DentistID" json:"dentist,omitempty"`
}
