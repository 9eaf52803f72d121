package models

import (
	"time"

	"github.com/mroshb/catchup/internal/streak"
	"gorm.io/gorm"
)

// StreakState is embedded in users and friendships.
type StreakState = streak.State

type User struct {
	ID          string      `gorm:"primaryKey;type:varchar(128)" json:"id"`
	DisplayName string      `gorm:"type:varchar(255);not null;default:''" json:"displayName"`
	Username    string      `gorm:"type:varchar(64);index" json:"username"`
	PhotoURL    string      `gorm:"type:varchar(500)" json:"photoURL,omitempty"`
	Timezone    string      `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`
	Streak      StreakState `gorm:"embedded;embeddedPrefix:streak_" json:"streak"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Validate checks the invariants every stored user must satisfy.
func (u *User) Validate() error {
	if err := ValidateUserID(u.ID); err != nil {
		return err
	}
	if !streak.ValidTimezone(u.Timezone) {
		return gorm.ErrInvalidData
	}
	if !u.Streak.Valid() {
		return gorm.ErrInvalidData
	}
	return nil
}

// BeforeSave hook for validation
func (u *User) BeforeSave(tx *gorm.DB) error {
	return u.Validate()
}

// AfterFind replaces a zone this host cannot load so the record still
// passes Validate on its next write.
func (u *User) AfterFind(tx *gorm.DB) error {
	u.Timezone = streak.NormalizeTimezone(u.Timezone)
	return nil
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}
