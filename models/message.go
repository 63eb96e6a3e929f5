package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

const MESSAGE_DIRECTION_IN = "in"
const MESSAGE_DIRECTION_OUT = "out"

const SENDER_BOT = "bot"
const SENDER_SYSTEM = "system"

// Provenance tags stored in Message.Meta["source"] for outbound rows.
const (
	PROVENANCE_STATE_MACHINE = "dm-state-machine"
	PROVENANCE_RULES         = "auto-flow-rules"
	PROVENANCE_DEFAULT       = "auto-reply-default"
	PROVENANCE_AGENT         = "agent"
)

const (
	SEND_STATUS_SENT          = "sent"
	SEND_STATUS_FAILED        = "failed"
	SEND_STATUS_NO_CREDENTIAL = "no_credential"
)

// Message is an append-only log row, one per WhatsApp message in or out.
type Message struct {
	ID             string     `gorm:"primary_key;type:varchar(36)" json:"id"`
	ConversationID string     `gorm:"not null;index" json:"conversation_id"`
	TenantID       string     `gorm:"not null;index" json:"tenant_id"`
	ChannelID      string     `gorm:"not null" json:"channel_id"`
	Direction      string     `gorm:"not null" json:"direction"`
	Sender         string     `gorm:"not null" json:"sender"`
	Body           string     `gorm:"type:text" json:"body"`
	Meta           JSONMap    `gorm:"type:text" json:"meta"`
	CreatedAt      *time.Time `gorm:"index" json:"created_at"`
}

func (m *Message) BeforeCreate(scope *gorm.Scope) error {
	return assignID(scope, m.ID)
}

func (m Message) Provenance() string {
	v, _ := m.Meta["source"].(string)
	return v
}
