package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"dental-clinic-server/internal/models"
)

type gormClinicRepo struct{ db *gorm.DB }

func (r *gormClinicRepo) Create(ctx context.Context, clinic *models.Clinic) error {
	return translate(r.db.WithContext(ctx).Create(clinic).Error)
}

func (r *gormClinicRepo) FindByID(ctx context.Context, id string) (*models.Clinic, error) {
	var clinic models.Clinic
	if err := r.db.WithContext(ctx).First(&clinic, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &clinic, nil
}

type gormUserRepo struct{ db *gorm.DB }

func (r *gormUserRepo) Create(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *gormUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *gormUserRepo) FindByID(ctx context.Context, clinicID, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ? AND clinic_id = ?", id, clinicID).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *gormUserRepo) List(ctx context.Context, clinicID string, role models.Role) ([]models.User, error) {
	query := r.db.WithContext(ctx).Where("clinic_id = ?", clinicID)
	if role != "" {
		query = query.Where("role = ?", role)
	}
	var users []models.User
	if err := query.Order("first_name asc").Find(&users).Error; err != nil {
		return nil, translate(err)
	}
	return users, nil
}

func (r *gormUserRepo) Update(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Save(user).Error)
}

type gormRefreshTokenRepo struct{ db *gorm.DB }

func (r *gormRefreshTokenRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	return translate(r.db.WithContext(ctx).Create(token).Error)
}

func (r *gormRefreshTokenRepo) FindActive(ctx context.Context, token, userID string, now time.Time) (*models.RefreshToken, error) {
	var stored models.RefreshToken
	err := r.db.WithContext(ctx).
		Where("token = ? AND user_id = ? AND is_revoked = ? AND expires_at > ?", token, userID, false, now).
		First(&stored).Error
	if err != nil {
		return nil, translate(err)
	}
	return &stored, nil
}

func (r *gormRefreshTokenRepo) FindUnrevoked(ctx context.Context, token string) (*models.RefreshToken, error) {
	var stored models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ? AND is_revoked = ?", token, false).First(&stored).Error; err != nil {
		return nil, translate(err)
	}
	return &stored, nil
}

func (r *gormRefreshTokenRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_revoked": true, "revoked_at": at})
	return affected(res)
}

func (r *gormRefreshTokenRepo) RevokeForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Updates(map[string]any{"is_revoked": true, "revoked_at": at})
	return res.RowsAffected, translate(res.Error)
}
