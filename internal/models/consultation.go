package models

import (
	"time"
)

// ConsultationStatus is the timer state of a clinical encounter.
type ConsultationStatus string

const (
	ConsultationInProgress ConsultationStatus = "IN_PROGRESS"
	ConsultationPaused     ConsultationStatus = "PAUSED"
	ConsultationCompleted  ConsultationStatus = "COMPLETED"
)

// Consultation tracks one clinical encounter from start to completion.
// TotalTime and PauseTime are whole seconds. Version increments on every write.
type Consultation struct {
	BaseModel
	AppointmentID string             `gorm:"size:36;uniqueIndex;not null" json:"appointmentId"`
	PatientID     string             `gorm:"size:36;index" json:"patientId"`
	DentistID     string             `gorm:"size:36;index" json:"dentistId"`
	ClinicID      string             `gorm:"size:36;index;not null" json:"clinicId"`
	StartedAt     time.Time          `gorm:"not null" json:"startedAt"`
	PausedAt      *time.Time         `json:"pausedAt"`
	EndedAt       *time.Time         `json:"endedAt"`
	TotalTime     int64              `gorm:"not null;default:0" json:"totalTime"`
	PauseTime     int64              `gorm:"not null;default:0" json:"pauseTime"`
	Status        ConsultationStatus `gorm:"size:20;index;not null" json:"status"`
	PaymentAmount *float64           `gorm:"type:decimal(10,2)" json:"paymentAmount"`
	Version       int64              `gorm:"not null;default:1" json:"version"`
}
