package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
)

/************************************************
/**** MARK: CONVERSATION STATUS ****/
/************************************************/
const CONVERSATION_STATUS_NEW = "new"
const CONVERSATION_STATUS_OPEN = "open"
const CONVERSATION_STATUS_PENDING_AGENT = "pending_agent"
const CONVERSATION_STATUS_CLOSED = "closed"

// Conversation holds the dialogue state of one contact on one channel.
// (tenant_id, channel_id, contact_phone) is unique, see db.Migrate.
type Conversation struct {
	ID            string      `gorm:"primary_key;type:varchar(36)" json:"id"`
	TenantID      string      `gorm:"not null;index" json:"tenant_id"`
	ChannelID     string      `gorm:"not null;index" json:"channel_id"`
	ContactPhone  string      `gorm:"not null" json:"contact_phone"`
	Status        string      `gorm:"not null;default:'new';index" json:"status"`
	AssignedAgent *string     `json:"assigned_agent"`
	LastMessageAt *time.Time  `gorm:"index" json:"last_message_at"`
	ContextState  *string     `gorm:"column:context_state" json:"context_state"`
	ContextData   ContextData `gorm:"column:context_data;type:text" json:"context_data"`
	CreatedAt     *time.Time  `json:"created_at"`
	UpdatedAt     *time.Time  `json:"updated_at"`
}

func (c *Conversation) BeforeCreate(scope *gorm.Scope) error {
	return assignID(scope, c.ID)
}

// State returns the current dialogue node, "" when no dialogue is active.
func (c Conversation) State() string {
	if c.ContextState == nil {
		return ""
	}
	return *c.ContextState
}

// ContextData is what the scripted dialogue remembers about a contact.
// Only the dialogue engine writes it.
type ContextData struct {
	Intent         string     `json:"intent,omitempty"`
	Area           string     `json:"area,omitempty"`
	AutomationType string     `json:"automation_type,omitempty"`
	ContactMode    string     `json:"contact_mode,omitempty"`
	Email          string     `json:"email,omitempty"`
	LastCommand    string     `json:"last_command,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
}

func (d ContextData) IsEmpty() bool {
	return d == ContextData{}
}

func (d ContextData) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *ContextData) Scan(src any) error {
	raw, err := scanBytes(src)
	if err != nil {
		return err
	}
	*d = ContextData{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return fmt.Errorf("scan context data: %w", err)
	}
	return nil
}
