package repository

import (
	"context"

	"gorm.io/gorm"

	"dental-clinic-server/internal/models"
)

type gormPatientRepo struct{ db *gorm.DB }

func (r *gormPatientRepo) Create(ctx context.Context, patient *models.Patient) error {
	return translate(r.db.WithContext(ctx).Create(patient).Error)
}

func (r *gormPatientRepo) FindByID(ctx context.Context, clinicID, id string) (*models.Patient, error) {
	var patient models.Patient
	if err := r.db.WithContext(ctx).Where("id = ? AND clinic_id = ?", id, clinicID).First(&patient).Error; err != nil {
		return nil, translate(err)
	}
	return &patient, nil
}

func (r *gormPatientRepo) List(ctx context.Context, clinicID string, filter PatientFilter) ([]models.Patient, error) {
	query := r.db.WithContext(ctx).Where("clinic_id = ?", clinicID)
	if !filter.IncludeInactive {
		query = query.Where("active = ?", true)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
	}
	var patients []models.Patient
	if err := query.Order("name asc").Find(&patients).Error; err != nil {
		return nil, translate(err)
	}
	return patients, nil
}

func (r *gormPatientRepo) Update(ctx context.Context, patient *models.Patient) error {
	res := r.db.WithContext(ctx).Model(patient).
		Where("clinic_id = ?", patient.ClinicID).
		Select("name", "email", "phone", "document", "birth_date", "notes", "active").
		Updates(patient)
	return translate(res.Error)
}

type gormLaboratoryRepo struct{ db *gorm.DB }

func (r *gormLaboratoryRepo) Create(ctx context.Context, lab *models.Laboratory) error {
	return translate(r.db.WithContext(ctx).Create(lab).Error)
}

func (r *gormLaboratoryRepo) FindByID(ctx context.Context, clinicID, id string) (*models.Laboratory, error) {
	var lab models.Laboratory
	if err := r.db.WithContext(ctx).Where("id = ? AND clinic_id = ?", id, clinicID).First(&lab).Error; err != nil {
		return nil, translate(err)
	}
	return &lab, nil
}

func (r *gormLaboratoryRepo) List(ctx context.Context, clinicID string, includeInactive bool) ([]models.Laboratory, error) {
	query := r.db.WithContext(ctx).Where("clinic_id = ?", clinicID)
	if !includeInactive {
		query = query.Where("active = ?", true)
	}
	var labs []models.Laboratory
	if err := query.Order("name asc").Find(&labs).Error; err != nil {
		return nil, translate(err)
	}
	return labs, nil
}

func (r *gormLaboratoryRepo) Update(ctx context.Context, lab *models.Laboratory) error {
	res := r.db.WithContext(ctx).Model(lab).
		Where("clinic_id = ?", lab.ClinicID).
		Select("name", "responsible_name", "email", "phone", "specialties", "active").
		Updates(lab)
	return translate(res.Error)
}
