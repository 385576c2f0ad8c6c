package models

// Clinic is the tenant every other clinical row is scoped to.
type Clinic struct {
	BaseModel
	Name   string `gorm:"size:255;not null" json:"name"`
	Email  string `gorm:"size:255" json:"email"`
	Phone  string `gorm:"size:50" json:"phone"`
	Active bool   `gorm:"default:true" json:"active"`
}
