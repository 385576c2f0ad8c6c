package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"dental-clinic-server/internal/models"
)

type gormOrderRepo struct{ db *gorm.DB }

func (r *gormOrderRepo) Create(ctx context.Context, order *models.ProstheticOrder) error {
	return translate(r.db.WithContext(ctx).Omit("Patient", "Dentist", "Laboratory").Create(order).Error)
}

func (r *gormOrderRepo) FindByID(ctx context.Context, clinicID, id string) (*models.ProstheticOrder, error) {
	var order models.ProstheticOrder
	if err := r.db.WithContext(ctx).Where("id = ? AND clinic_id = ?", id, clinicID).First(&order).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *gormOrderRepo) FindDetail(ctx context.Context, clinicID, id string) (*models.ProstheticOrder, error) {
	var order models.ProstheticOrder
	err := r.db.WithContext(ctx).
		Preload("Patient").Preload("Dentist").Preload("Laboratory").
		Where("id = ? AND clinic_id = ?", id, clinicID).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *gormOrderRepo) List(ctx context.Context, clinicID string, filter OrderFilter) ([]models.ProstheticOrder, error) {
	query := r.db.WithContext(ctx).
		Preload("Patient").Preload("Laboratory").
		Where("clinic_id = ?", clinicID)
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.DentistID != "" {
		query = query.Where("dentist_id = ?", filter.DentistID)
	}
	if filter.LaboratoryID != "" {
		query = query.Where("laboratory_id = ?", filter.LaboratoryID)
	}
	var orders []models.ProstheticOrder
	if err := query.Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, translate(err)
	}
	return orders, nil
}

func (r *gormOrderRepo) UpdateVersioned(ctx context.Context, o *models.ProstheticOrder, expectedVersion int64) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.ProstheticOrder{}).
		Where("id = ? AND clinic_id = ? AND version = ?", o.ID, o.ClinicID, expectedVersion).
		Updates(map[string]any{
			"laboratory_id":    o.LaboratoryID,
			"work_type":        o.WorkType,
			"work_type_custom": o.WorkTypeCustom,
			"material":         o.Material,
			"shade":            o.Shade,
			"tooth_numbers":    o.ToothNumbers,
			"observations":     o.Observations,
			"urgency":          o.Urgency,
			"deadline":         o.Deadline,
			"status":           o.Status,
			"version":          expectedVersion + 1,
			"updated_at":       now,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	o.Version = expectedVersion + 1
	o.UpdatedAt = now
	return nil
}

func (r *gormOrderRepo) AppendHistory(ctx context.Context, entry *models.ProstheticOrderHistoryEntry) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error)
}

// ListHistory joins the parent order so the tenant filter applies to child rows too.
func (r *gormOrderRepo) ListHistory(ctx context.Context, clinicID, orderID string) ([]models.ProstheticOrderHistoryEntry, error) {
	var entries []models.ProstheticOrderHistoryEntry
	err := r.db.WithContext(ctx).
		Joins("JOIN prosthetic_orders ON prosthetic_orders.id = prosthetic_order_history_entries.request_id").
		Where("prosthetic_order_history_entries.request_id = ? AND prosthetic_orders.clinic_id = ?", orderID, clinicID).
		Order("prosthetic_order_history_entries.created_at asc").
		Order("prosthetic_order_history_entries.sequence asc").
		Find(&entries).Error
	if err != nil {
		return nil, translate(err)
	}
	return entries, nil
}

func (r *gormOrderRepo) AddComment(ctx context.Context, comment *models.ProstheticOrderComment) error {
	return translate(r.db.WithContext(ctx).Create(comment).Error)
}

func (r *gormOrderRepo) ListComments(ctx context.Context, clinicID, orderID string) ([]models.ProstheticOrderComment, error) {
	var comments []models.ProstheticOrderComment
	err := r.db.WithContext(ctx).
		Joins("JOIN prosthetic_orders ON prosthetic_orders.id = prosthetic_order_comments.request_id").
		Where("prosthetic_order_comments.request_id = ? AND prosthetic_orders.clinic_id = ?", orderID, clinicID).
		Order("prosthetic_order_comments.created_at asc").
		Find(&comments).Error
	if err != nil {
		return nil, translate(err)
	}
	return comments, nil
}
