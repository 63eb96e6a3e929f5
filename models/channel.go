package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

const (
	CHANNEL_STATUS_PENDING    = "pending"
	CHANNEL_STATUS_REGISTERED = "registered"
	CHANNEL_STATUS_DISABLED   = "disabled"
)

// Channel is one WhatsApp Business phone number integration of a tenant.
// It is created by the channel setup flow; the webhook only reads it.
type Channel struct {
	ID                 string     `gorm:"primary_key;type:varchar(36)" json:"id"`
	TenantID           string     `gorm:"not null;index" json:"tenant_id"`
	PhoneNumberID      string     `gorm:"column:phone_number_id;not null;unique_index" json:"phone_number_id"`
	WabaID             string     `gorm:"column:waba_id" json:"waba_id"`
	TokenAlias         string     `gorm:"column:token_alias;not null;default:'default'" json:"token_alias"`
	DisplayPhoneNumber string     `gorm:"column:display_phone_number" json:"display_phone_number"`
	Status             string     `gorm:"column:status;not null;default:'pending'" json:"status"`
	CreatedAt          *time.Time `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at"`
}

func (c *Channel) BeforeCreate(scope *gorm.Scope) error {
	return assignID(scope, c.ID)
}
