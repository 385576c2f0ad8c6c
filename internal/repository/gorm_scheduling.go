package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"dental-clinic-server/internal/models"
)

type gormAppointmentRepo struct{ db *gorm.DB }

func (r *gormAppointmentRepo) Create(ctx context.Context, appointment *models.Appointment) error {
	return translate(r.db.WithContext(ctx).Omit("Patient", "Dentist").Create(appointment).Error)
}

func (r *gormAppointmentRepo) FindByID(ctx context.Context, clinicID, id string) (*models.Appointment, error) {
	var appointment models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Patient").Preload("Dentist").
		Where("id = ? AND clinic_id = ?", id, clinicID).
		First(&appointment).Error
	if err != nil {
		return nil, translate(err)
	}
	return &appointment, nil
}

func (r *gormAppointmentRepo) List(ctx context.Context, clinicID string, filter AppointmentFilter) ([]models.Appointment, error) {
	query := r.db.WithContext(ctx).Preload("Patient").Preload("Dentist").Where("clinic_id = ?", clinicID)
	if filter.DentistID != "" {
		query = query.Where("dentist_id = ?", filter.DentistID)
	}
	if filter.PatientID != "" {
		query = query.Where("patient_id = ?", filter.PatientID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("start_time >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("start_time < ?", *filter.To)
	}
	var appointments []models.Appointment
	if err := query.Order("start_time asc").Find(&appointments).Error; err != nil {
		return nil, translate(err)
	}
	return appointments, nil
}

func (r *gormAppointmentRepo) Update(ctx context.Context, appointment *models.Appointment) error {
	res := r.db.WithContext(ctx).Model(appointment).
		Where("clinic_id = ?", appointment.ClinicID).
		Select("dentist_id", "start_time", "end_time", "status", "reason", "notes").
		Updates(appointment)
	return translate(res.Error)
}

func (r *gormAppointmentRepo) UpdateStatus(ctx context.Context, clinicID, id string, status models.AppointmentStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("id = ? AND clinic_id = ?", id, clinicID).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	return affected(res)
}

type gormConsultationRepo struct{ db *gorm.DB }

func (r *gormConsultationRepo) Create(ctx context.Context, consultation *models.Consultation) error {
	return translate(r.db.WithContext(ctx).Create(consultation).Error)
}

func (r *gormConsultationRepo) FindByID(ctx context.Context, clinicID, id string) (*models.Consultation, error) {
	var consultation models.Consultation
	if err := r.db.WithContext(ctx).Where("id = ? AND clinic_id = ?", id, clinicID).First(&consultation).Error; err != nil {
		return nil, translate(err)
	}
	return &consultation, nil
}

func (r *gormConsultationRepo) FindByAppointment(ctx context.Context, clinicID, appointmentID string) (*models.Consultation, error) {
	var consultation models.Consultation
	err := r.db.WithContext(ctx).
		Where("appointment_id = ? AND clinic_id = ?", appointmentID, clinicID).
		First(&consultation).Error
	if err != nil {
		return nil, translate(err)
	}
	return &consultation, nil
}

func (r *gormConsultationRepo) List(ctx context.Context, clinicID string, status models.ConsultationStatus) ([]models.Consultation, error) {
	query := r.db.WithContext(ctx).Where("clinic_id = ?", clinicID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var consultations []models.Consultation
	if err := query.Order("started_at desc").Find(&consultations).Error; err != nil {
		return nil, translate(err)
	}
	return consultations, nil
}

func (r *gormConsultationRepo) UpdateVersioned(ctx context.Context, c *models.Consultation, expectedVersion int64) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Consultation{}).
		Where("id = ? AND clinic_id = ? AND version = ?", c.ID, c.ClinicID, expectedVersion).
		Updates(map[string]any{
			"paused_at":      c.PausedAt,
			"ended_at":       c.EndedAt,
			"total_time":     c.TotalTime,
			"pause_time":     c.PauseTime,
			"status":         c.Status,
			"payment_amount": c.PaymentAmount,
			"version":        expectedVersion + 1,
			"updated_at":     now,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	c.Version = expectedVersion + 1
	c.UpdatedAt = now
	return nil
}

type gormMedicalRecordRepo struct{ db *gorm.DB }

func (r *gormMedicalRecordRepo) Create(ctx context.Context, record *models.MedicalRecord) error {
	return translate(r.db.WithContext(ctx).Create(record).Error)
}

func (r *gormMedicalRecordRepo) FindByID(ctx context.Context, clinicID, id string) (*models.MedicalRecord, error) {
	var record models.MedicalRecord
	if err := r.db.WithContext(ctx).Where("id = ? AND clinic_id = ?", id, clinicID).First(&record).Error; err != nil {
		return nil, translate(err)
	}
	return &record, nil
}

func (r *gormMedicalRecordRepo) FindByConsultation(ctx context.Context, clinicID, consultationID string) (*models.MedicalRecord, error) {
	var record models.MedicalRecord
	err := r.db.WithContext(ctx).
		Where("consultation_id = ? AND clinic_id = ?", consultationID, clinicID).
		First(&record).Error
	if err != nil {
		return nil, translate(err)
	}
	return &record, nil
}

func (r *gormMedicalRecordRepo) ListByPatient(ctx context.Context, clinicID, patientID string) ([]models.MedicalRecord, error) {
	var records []models.MedicalRecord
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND clinic_id = ?", patientID, clinicID).
		Order("created_at desc").
		Find(&records).Error
	if err != nil {
		return nil, translate(err)
	}
	return records, nil
}
