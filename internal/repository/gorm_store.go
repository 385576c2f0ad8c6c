package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// GormStore implements Store on top of a gorm connection (MySQL or Postgres).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Atomic runs fn inside a database transaction.
func (s *GormStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) Clinics() ClinicRepository             { return &gormClinicRepo{db: s.db} }
func (s *GormStore) Users() UserRepository                 { return &gormUserRepo{db: s.db} }
func (s *GormStore) RefreshTokens() RefreshTokenRepository { return &gormRefreshTokenRepo{db: s.db} }
func (s *GormStore) Patients() PatientRepository           { return &gormPatientRepo{db: s.db} }
func (s *GormStore) Laboratories() LaboratoryRepository    { return &gormLaboratoryRepo{db: s.db} }
func (s *GormStore) Appointments() AppointmentRepository   { return &gormAppointmentRepo{db: s.db} }
func (s *GormStore) Consultations() ConsultationRepository { return &gormConsultationRepo{db: s.db} }
func (s *GormStore) MedicalRecords() MedicalRecordRepository {
	return &gormMedicalRecordRepo{db: s.db}
}
func (s *GormStore) Orders() ProstheticOrderRepository     { return &gormOrderRepo{db: s.db} }
func (s *GormStore) Notifications() NotificationRepository { return &gormNotificationRepo{db: s.db} }
func (s *GormStore) Outbox() OutboxRepository              { return &gormOutboxRepo{db: s.db} }

// translate maps gorm errors onto the gateway sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// affected turns a zero-row update into ErrNotFound.
func affected(res *gorm.DB) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
