package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

type Bot struct {
	ID        string     `gorm:"primary_key;type:varchar(36)" json:"id"`
	TenantID  string     `gorm:"not null;index" json:"tenant_id"`
	Name      string     `gorm:"not null;default:''" json:"name"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

func (b *Bot) BeforeCreate(scope *gorm.Scope) error {
	return assignID(scope, b.ID)
}
