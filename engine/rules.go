package engine

import (
	"context"
	"strings"

	"github.com/jinzhu/gorm"

	"wabiz/db"
	"wabiz/models"
)

// MatchRule picks the rule that answers text. Inactive rules never match; within
// each trigger the stored order decides.
func MatchRule(rules []models.Rule, text string, isNew bool) *models.Rule {
	var welcome, keyword, fallback []models.Rule
	for _, r := range rules {
		if !r.IsActive() {
			continue
		}
		switch r.Trigger {
		case models.RULE_TRIGGER_WELCOME:
			welcome = append(welcome, r)
		case models.RULE_TRIGGER_KEYWORD:
			keyword = append(keyword, r)
		case models.RULE_TRIGGER_FALLBACK:
			fallback = append(fallback, r)
		}
	}

	if isNew && len(welcome) > 0 {
		return &welcome[0]
	}

	lower := strings.ToLower(text)
	for i := range keyword {
		for _, kw := range keyword[i].Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if strings.Contains(lower, kw) {
				return &keyword[i]
			}
		}
	}

	if len(fallback) > 0 {
		return &fallback[0]
	}
	return nil
}

// RuleEngine answers with the bot's configured auto_rules flow.
type RuleEngine struct {
	DB     *gorm.DB
	Outbox *Outbox
}

func (e *RuleEngine) Name() string { return "rules" }

// Route loads the bot's rule set and returns the rule that matches, or nil.
func (e *RuleEngine) Route(ctx context.Context, botID, text string, isNew bool) (*models.Rule, error) {
	if botID == "" {
		return nil, nil
	}
	var flow models.Flow
	err := e.DB.Where("bot_id = ? AND key = ?", botID, models.FLOW_KEY_AUTO_RULES).
		Order("updated_at desc").First(&flow).Error
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rs, err := flow.RuleSet()
	if err != nil {
		return nil, err
	}
	return MatchRule(rs.Rules, text, isNew), nil
}

func (e *RuleEngine) TryHandle(ctx context.Context, in *Inbound) (Outcome, error) {
	if in.Bot == nil {
		return NotHandled, nil
	}
	rule, err := e.Route(ctx, in.Bot.ID, in.Text, in.IsNewConversation)
	if err != nil || rule == nil {
		return NotHandled, err
	}

	// a regra escolhida é dona da resposta, mesmo se o envio falhar
	texts := rule.Texts()
	sent := e.Outbox.Deliver(ctx, in, models.PROVENANCE_RULES, texts, models.JSONMap{
		"rule_id": rule.ID,
	})
	return Outcome{Handled: true, Replies: len(texts), Sent: sent}, nil
}
