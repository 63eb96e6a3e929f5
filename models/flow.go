package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/gorm"
)

// Flow keys read by the webhook core.
const FLOW_KEY_AUTO_RULES = "auto_rules"
const FLOW_KEY_DEFAULT_REPLY = "default_reply"

/************************************************
/**** MARK: RULE TRIGGERS ****/
/************************************************/
const RULE_TRIGGER_WELCOME = "welcome"
const RULE_TRIGGER_KEYWORD = "keyword"
const RULE_TRIGGER_FALLBACK = "fallback"

// Flow is a bot-scoped JSON document configured from the dashboard.
type Flow struct {
	ID         string     `gorm:"primary_key;type:varchar(36)" json:"id"`
	BotID      string     `gorm:"not null;index:idx_flows_bot_key" json:"bot_id"`
	Key        string     `gorm:"not null;index:idx_flows_bot_key" json:"key"`
	Definition string     `gorm:"type:text" json:"definition"`
	CreatedAt  *time.Time `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

func (f *Flow) BeforeCreate(scope *gorm.Scope) error {
	return assignID(scope, f.ID)
}

type RuleSet struct {
	Rules []Rule `json:"rules"`
}

type Rule struct {
	ID        string         `json:"id"`
	Trigger   string         `json:"trigger"`
	Keywords  []string       `json:"keywords,omitempty"`
	Responses []RuleResponse `json:"responses"`
	Active    *bool          `json:"active,omitempty"`
}

// RuleResponse is one text the rule sends. DelayMs is kept for a paced sender;
// replies are currently sent back to back.
type RuleResponse struct {
	Text    string `json:"text"`
	DelayMs int    `json:"delay_ms,omitempty"`
}

// IsActive treats a missing flag as active.
func (r Rule) IsActive() bool {
	return r.Active == nil || *r.Active
}

func (r Rule) Texts() []string {
	out := make([]string, 0, len(r.Responses))
	for _, resp := range r.Responses {
		if strings.TrimSpace(resp.Text) == "" {
			continue
		}
		out = append(out, resp.Text)
	}
	return out
}

func (f Flow) RuleSet() (RuleSet, error) {
	var rs RuleSet
	if strings.TrimSpace(f.Definition) == "" {
		return rs, nil
	}
	if err := json.Unmarshal([]byte(f.Definition), &rs); err != nil {
		return rs, fmt.Errorf("flow %s: decode rules: %w", f.ID, err)
	}
	return rs, nil
}

type DefaultReply struct {
	Text string `json:"text"`
}

func (f Flow) DefaultReply() (DefaultReply, error) {
	var d DefaultReply
	if strings.TrimSpace(f.Definition) == "" {
		return d, nil
	}
	if err := json.Unmarshal([]byte(f.Definition), &d); err != nil {
		return d, fmt.Errorf("flow %s: decode default reply: %w", f.ID, err)
	}
	return d, nil
}
