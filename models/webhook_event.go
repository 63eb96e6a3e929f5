package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

// WebhookEvent is the raw audit trail of every POST delivered to the webhook.
// Tenant and channel stay null when the phone number id is unknown.
type WebhookEvent struct {
	ID            string     `gorm:"primary_key;type:varchar(36)" json:"id"`
	TenantID      *string    `gorm:"index" json:"tenant_id"`
	ChannelID     *string    `json:"channel_id"`
	PhoneNumberID string     `gorm:"column:phone_number_id;default:''" json:"phone_number_id"`
	Payload       string     `gorm:"type:text" json:"payload"`
	CreatedAt     *time.Time `gorm:"index" json:"created_at"`
}

func (e *WebhookEvent) BeforeCreate(scope *gorm.Scope) error {
	return assignID(scope, e.ID)
}
