package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ClinicSettings holds per-clinic scheduling settings. A tenant database has at most one row.
type ClinicSettings struct {
	ID                uint      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name              string    `gorm:"column:name;not null" json:"name"`
	Timezone          string    `gorm:"column:timezone;not null;default:'UTC'" json:"timezone"`
	NotificationEmail string    `gorm:"column:notification_email" json:"notification_email"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ClinicSettings) TableName() string {
	return "clinic_settings"
}

// Medic model
type Medic struct {
	ID           string         `gorm:"primaryKey;column:id" json:"id"`
	FirstName    string         `gorm:"column:first_name;not null" json:"first_name"`
	LastName     string         `gorm:"column:last_name;not null;index" json:"last_name"`
	Email        string         `gorm:"column:email" json:"email"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	WorkingHours []WorkingHours `gorm:"foreignKey:MedicID;references:ID" json:"working_hours,omitempty"`
	DaysOff      []DayOff       `gorm:"foreignKey:MedicID;references:ID" json:"days_off,omitempty"`
}

func (Medic) TableName() string {
	return "medic"
}

// FullName joins first and last name.
func (m Medic) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// Patient model
type Patient struct {
	ID        string    `gorm:"primaryKey;column:id" json:"id"`
	FirstName string    `gorm:"column:first_name;not null" json:"first_name"`
	LastName  string    `gorm:"column:last_name;not null;index" json:"last_name"`
	Phone     string    `gorm:"column:phone" json:"phone"`
	Email     string    `gorm:"column:email" json:"email"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Patient) TableName() string {
	return "patient"
}

// FullName joins first and last name.
func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Treatment model. Duration is in minutes; nil counts as zero.
type Treatment struct {
	ID       uint            `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name     string          `gorm:"column:name;not null;unique" json:"name"`
	Color    string          `gorm:"column:color" json:"color"`
	Duration *int            `gorm:"column:duration" json:"duration"`
	Price    decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0" json:"price"`
}

func (Treatment) TableName() string {
	return "treatment"
}

// Minutes returns the duration, or 0 when it is not set.
func (t Treatment) Minutes() int {
	if t.Duration == nil {
		return 0
	}
	return *t.Duration
}
