package models

import "time"

// RefreshToken is an issued refresh token. Tokens are rotated on every refresh
// and revoked on logout or when the user is deactivated.
type RefreshToken struct {
	BaseModel
	UserID    string     `gorm:"size:36;index;not null" json:"userId"`
	ClinicID  string     `gorm:"size:36;index" json:"clinicId"`
	Token     string     `gorm:"type:text;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"index" json:"expiresAt"`
	IsRevoked bool       `gorm:"default:false" json:"-"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

// Usable reports whether the token can still be exchanged at now.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.IsRevoked && t.ExpiresAt.After(now)
}
