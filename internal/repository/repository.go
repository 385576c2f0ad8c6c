// Package repository is the persistence gateway consumed by the engines and handlers.
// Every clinical read takes the tenant clinicID as an explicit argument.
package repository

import (
	"context"
	"errors"
	"time"

	"dental-clinic-server/internal/models"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("duplicate record")
	ErrStaleVersion = errors.New("record was modified concurrently")
)

// Store groups the per-entity repositories. Atomic runs fn against a
// transactional view of the store; returning an error rolls every write back.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Store) error) error

	Clinics() ClinicRepository
	Users() UserRepository
	RefreshTokens() RefreshTokenRepository
	Patients() PatientRepository
	Laboratories() LaboratoryRepository
	Appointments() AppointmentRepository
	Consultations() ConsultationRepository
	MedicalRecords() MedicalRecordRepository
	Orders() ProstheticOrderRepository
	Notifications() NotificationRepository
	Outbox() OutboxRepository
}

type ClinicRepository interface {
	Create(ctx context.Context, clinic *models.Clinic) error
	FindByID(ctx context.Context, id string) (*models.Clinic, error)
}

// UserRepository. FindByEmail is the only unscoped lookup; login happens before
// the tenant is known.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, clinicID, id string) (*models.User, error)
	List(ctx context.Context, clinicID string, role models.Role) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	FindActive(ctx context.Context, token, userID string, now time.Time) (*models.RefreshToken, error)
	FindUnrevoked(ctx context.Context, token string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeForUser(ctx context.Context, userID string, at time.Time) (int64, error)
}

type PatientFilter struct {
	Search          string
	IncludeInactive bool
}

type PatientRepository interface {
	Create(ctx context.Context, patient *models.Patient) error
	FindByID(ctx context.Context, clinicID, id string) (*models.Patient, error)
	List(ctx context.Context, clinicID string, filter PatientFilter) ([]models.Patient, error)
	Update(ctx context.Context, patient *models.Patient) error
}

type LaboratoryRepository interface {
	Create(ctx context.Context, lab *models.Laboratory) error
	FindByID(ctx context.Context, clinicID, id string) (*models.Laboratory, error)
	List(ctx context.Context, clinicID string, includeInactive bool) ([]models.Laboratory, error)
	Update(ctx context.Context, lab *models.Laboratory) error
}

type AppointmentFilter struct {
	DentistID string
	PatientID string
	Status    models.AppointmentStatus
	From      *time.Time
	To        *time.Time
}

type AppointmentRepository interface {
	Create(ctx context.Context, appointment *models.Appointment) error
	FindByID(ctx context.Context, clinicID, id string) (*models.Appointment, error)
	List(ctx context.Context, clinicID string, filter AppointmentFilter) ([]models.Appointment, error)
	Update(ctx context.Context, appointment *models.Appointment) error
	UpdateStatus(ctx context.Context, clinicID, id string, status models.AppointmentStatus) error
}

// ConsultationRepository. UpdateVersioned writes the mutable fields only when the
// stored version equals expectedVersion, then bumps Version; otherwise ErrStaleVersion.
type ConsultationRepository interface {
	Create(ctx context.Context, consultation *models.Consultation) error
	FindByID(ctx context.Context, clinicID, id string) (*models.Consultation, error)
	FindByAppointment(ctx context.Context, clinicID, appointmentID string) (*models.Consultation, error)
	List(ctx context.Context, clinicID string, status models.ConsultationStatus) ([]models.Consultation, error)
	UpdateVersioned(ctx context.Context, consultation *models.Consultation, expectedVersion int64) error
}

type MedicalRecordRepository interface {
	Create(ctx context.Context, record *models.MedicalRecord) error
	FindByID(ctx context.Context, clinicID, id string) (*models.MedicalRecord, error)
	FindByConsultation(ctx context.Context, clinicID, consultationID string) (*models.MedicalRecord, error)
	ListByPatient(ctx context.Context, clinicID, patientID string) ([]models.MedicalRecord, error)
}

type OrderFilter struct {
	Statuses     []models.OrderStatus
	DentistID    string
	LaboratoryID string
}

// ProstheticOrderRepository. History and comments are returned oldest first.
type ProstheticOrderRepository interface {
	Create(ctx context.Context, order *models.ProstheticOrder) error
	FindByID(ctx context.Context, clinicID, id string) (*models.ProstheticOrder, error)
	FindDetail(ctx context.Context, clinicID, id string) (*models.ProstheticOrder, error)
	List(ctx context.Context, clinicID string, filter OrderFilter) ([]models.ProstheticOrder, error)
	UpdateVersioned(ctx context.Context, order *models.ProstheticOrder, expectedVersion int64) error

	AppendHistory(ctx context.Context, entry *models.ProstheticOrderHistoryEntry) error
	ListHistory(ctx context.Context, clinicID, orderID string) ([]models.ProstheticOrderHistoryEntry, error)
	AddComment(ctx context.Context, comment *models.ProstheticOrderComment) error
	ListComments(ctx context.Context, clinicID, orderID string) ([]models.ProstheticOrderComment, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListForRecipient(ctx context.Context, clinicID string, recipientType models.ActorType, recipientID string, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, clinicID, recipientID, id string, at time.Time) error
	MarkAllRead(ctx context.Context, clinicID, recipientID string, at time.Time) (int64, error)
}

// OutboxRepository is used by the relay, which works across tenants.
type OutboxRepository interface {
	Create(ctx context.Context, event *models.OutboxEvent) error
	ListPending(ctx context.Context, maxRetries, limit int) ([]models.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id string, publishedAt, processedAt time.Time) error
	MarkFailed(ctx context.Context, id string, message string) error
	CountPending(ctx context.Context) (int64, error)
	PurgeProcessed(ctx context.Context, before time.Time) (int64, error)
}
