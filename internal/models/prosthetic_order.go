package models

import (
	"time"
)

// OrderStatus is a position in the prosthetic fabrication pipeline.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderReceived   OrderStatus = "received"
	OrderAnalysis   OrderStatus = "analysis"
	OrderProduction OrderStatus = "production"
	OrderAssembly   OrderStatus = "assembly"
	OrderReady      OrderStatus = "ready"
	OrderDelivered  OrderStatus = "delivered"
	OrderAdjustment OrderStatus = "adjustment"
)

// OrderPipeline is the declared display order. It is not enforced on transitions.
var OrderPipeline = []OrderStatus{
	OrderPending,
	OrderReceived,
	OrderAnalysis,
	OrderProduction,
	OrderAssembly,
	OrderReady,
	OrderDelivered,
}

// Valid reports whether s is a known status, including the adjustment side state.
func (s OrderStatus) Valid() bool {
	if s == OrderAdjustment {
		return true
	}
	return s.Position() >= 0
}

// Position returns the index of s in OrderPipeline, or -1 for adjustment and unknown values.
func (s OrderStatus) Position() int {
	for i, p := range OrderPipeline {
		if p == s {
			return i
		}
	}
	return -1
}

// Progress is the percentage of the pipeline completed at status s.
// Adjustment has no pipeline position and reports -1.
func (s OrderStatus) Progress() int {
	pos := s.Position()
	if pos < 0 {
		return -1
	}
	return pos * 100 / (len(OrderPipeline) - 1)
}

// WorkType is the kind of prosthesis requested.
type WorkType string

const (
	WorkCrown           WorkType = "crown"
	WorkBridge          WorkType = "bridge"
	WorkVeneer          WorkType = "veneer"
	WorkInlay           WorkType = "inlay"
	WorkOnlay           WorkType = "onlay"
	WorkImplantCrown    WorkType = "implant_crown"
	WorkPartialDenture  WorkType = "partial_denture"
	WorkCompleteDenture WorkType = "complete_denture"
	WorkNightGuard      WorkType = "night_guard"
	WorkOrthodontic     WorkType = "orthodontic"
	WorkOther           WorkType = "other"
)

var workTypes = map[WorkType]bool{
	WorkCrown: true, WorkBridge: true, WorkVeneer: true, WorkInlay: true, WorkOnlay: true,
	WorkImplantCrown: true, WorkPartialDenture: true, WorkCompleteDenture: true,
	WorkNightGuard: true, WorkOrthodontic: true, WorkOther: true,
}

func (w WorkType) Valid() bool { return workTypes[w] }

// Urgency of a prosthetic order.
type Urgency string

const (
	UrgencyNormal  Urgency = "normal"
	UrgencyUrgent  Urgency = "urgent"
	UrgencyExpress Urgency = "express"
)

func (u Urgency) Valid() bool {
	return u == UrgencyNormal || u == UrgencyUrgent || u == UrgencyExpress
}

// ActorType identifies which side of an order performed an action.
type ActorType string

const (
	ActorDentist   ActorType = "dentist"
	ActorProtetico ActorType = "protetico"
)

// ProstheticOrder is a fabrication request sent from a clinic to a laboratory
type ProstheticOrder struct {
	BaseModel
	ClinicID       string      `gorm:"size:36;index;not null" json:"clinicId"`
	PatientID      string      `gorm:"size:36;index;not null" json:"patientId"`
	DentistID      string      `gorm:"size:36;index" json:"dentistId"`
	LaboratoryID   *string     `gorm:"size:36;index" json:"laboratoryId"`
	WorkType       WorkType    `gorm:"size:30;not null" json:"workType"`
	WorkTypeCustom string      `gorm:"size:255" json:"workTypeCustom,omitempty"`
	Material       string      `gorm:"size:100" json:"material,omitempty"`
	Shade          string      `gorm:"size:30" json:"shade,omitempty"`
	ToothNumbers   string      `gorm:"size:100" json:"toothNumbers,omitempty"`
	Observations   string      `gorm:"type:text" json:"observations,omitempty"`
	Urgency        Urgency     `gorm:"size:10;default:'normal'" json:"urgency"`
	Deadline       *time.Time  `json:"deadline,omitempty"`
	Status         OrderStatus `gorm:"size:20;index;not null" json:"status"`
	Version        int64       `gorm:"not null;default:1" json:"version"`

	// Relations (preloaded by the detail projection)
	Patient    *Patient    `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Dentist    *User       `gorm:"foreignKey:DentistID" json:"dentist,omitempty"`
	Laboratory *Laboratory `gorm:"foreignKey:LaboratoryID" json:"laboratory,omitempty"`
}

// ProstheticOrderHistoryEntry is an append-only audit row for one status change.
type ProstheticOrderHistoryEntry struct {
	BaseModel
	RequestID      string       `gorm:"size:36;index;not null" json:"requestId"`
	PreviousStatus *OrderStatus `gorm:"size:20" json:"previousStatus"`
	NewStatus      OrderStatus  `gorm:"size:20;not null" json:"newStatus"`
	ChangedByType  ActorType    `gorm:"size:20;not null" json:"changedByType"`
	ChangedByID    string       `gorm:"size:36" json:"changedById,omitempty"`
	Notes          string       `gorm:"type:text" json:"notes,omitempty"`
	// Sequence is the order version this change produced. It orders entries that share a timestamp.
	Sequence int64 `gorm:"not null;default:0" json:"sequence"`
}

// ProstheticOrderComment is an append-only message between clinic and lab.
type ProstheticOrderComment struct {
	BaseModel
	RequestID  string    `gorm:"size:36;index;not null" json:"requestId"`
	AuthorType ActorType `gorm:"size:20;not null" json:"authorType"`
	AuthorID   string    `gorm:"size:36" json:"authorId"`
	Message    string    `gorm:"type:text;not null" json:"message"`
}
