package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

const TOKEN_PROVIDER_FACEBOOK = "facebook"

// MetaToken is a Graph API access token granted to a tenant under an alias.
// Rows are never updated; re-authorization inserts a newer row.
type MetaToken struct {
	ID          string     `gorm:"primary_key;type:varchar(36)" json:"id"`
	TenantID    string     `gorm:"not null;index:idx_meta_tokens_lookup" json:"tenant_id"`
	Provider    string     `gorm:"not null;index:idx_meta_tokens_lookup" json:"provider"`
	Alias       string     `gorm:"not null;index:idx_meta_tokens_lookup" json:"alias"`
	AccessToken string     `gorm:"column:access_token;type:text" json:"-"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CreatedAt   *time.Time `json:"created_at"`
}

func (t *MetaToken) BeforeCreate(scope *gorm.Scope) error {
	return assignID(scope, t.ID)
}

func (t MetaToken) IsExpired(now time.Time) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return now.After(*t.ExpiresAt)
}
