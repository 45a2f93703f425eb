package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusSuspended  Status = "suspended"
	StatusTerminated Status = "terminated"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusTerminated:
		return true
	default:
		return false
	}
}

// Customer is a subscriber. MonthlyFee and CarriedDebt are in the smallest
// currency unit.
type Customer struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"not null" json:"name"`
	Phone       string       `gorm:"not null" json:"phone"`
	Address     string       `gorm:"not null" json:"address"`
	PackageName string       `gorm:"column:package_name;not null" json:"package_name"`
	MonthlyFee  int64        `gorm:"column:monthly_fee;not null" json:"monthly_fee"`
	CarriedDebt int64        `gorm:"column:carried_debt;not null" json:"carried_debt"`
	Status      Status       `gorm:"not null" json:"status"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
