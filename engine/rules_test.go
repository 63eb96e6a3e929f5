package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wabiz/models"
)

func rule(id, trigger string, keywords []string, texts ...string) models.Rule {
	r := models.Rule{ID: id, Trigger: trigger, Keywords: keywords}
	for _, t := range texts {
		r.Responses = append(r.Responses, models.RuleResponse{Text: t, DelayMs: 500})
	}
	return r
}

func TestMatchRule(t *testing.T) {
	inactiveWelcome := rule("w0", models.RULE_TRIGGER_WELCOME, nil, "old welcome")
	inactiveWelcome.Active = boolPtr(false)

	rules := []models.Rule{
		inactiveWelcome,
		rule("k1", models.RULE_TRIGGER_KEYWORD, []string{"precio", "Costo"}, "precios"),
		rule("w1", models.RULE_TRIGGER_WELCOME, nil, "bienvenido"),
		rule("k2", models.RULE_TRIGGER_KEYWORD, []string{"horario", "  "}, "horarios"),
		rule("f1", models.RULE_TRIGGER_FALLBACK, nil, "no entendí"),
		rule("w2", models.RULE_TRIGGER_WELCOME, nil, "segundo welcome"),
		rule("f2", models.RULE_TRIGGER_FALLBACK, nil, "otro fallback"),
	}

	tests := []struct {
		name  string
		text  string
		isNew bool
		want  string
	}{
		{"new conversation gets first active welcome", "precio", true, "w1"},
		{"keyword substring", "cuál es el PRECIO?", false, "k1"},
		{"keyword case-insensitive on both sides", "y el costo", false, "k1"},
		{"substring not whole word", "horarios de atención", false, "k2"},
		{"blank keyword ignored", "nada que ver", false, "f1"},
		{"first fallback", "xyz", false, "f1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchRule(rules, tt.text, tt.isNew)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestMatchRule_NoMatch(t *testing.T) {
	rules := []models.Rule{
		rule("k1", models.RULE_TRIGGER_KEYWORD, []string{"precio"}, "precios"),
		rule("w1", models.RULE_TRIGGER_WELCOME, nil, "hola"),
	}
	assert.Nil(t, MatchRule(rules, "otra cosa", false))
	assert.Nil(t, MatchRule(nil, "otra cosa", true))

	disabled := rule("f1", models.RULE_TRIGGER_FALLBACK, nil, "fallback")
	disabled.Active = boolPtr(false)
	assert.Nil(t, MatchRule([]models.Rule{disabled}, "x", false))
}

func TestRuleEngine_Route(t *testing.T) {
	h := newHarness(t)
	engine := &RuleEngine{DB: h.db, Outbox: h.outbox}
	ctx := context.Background()

	got, err := engine.Route(ctx, h.bot.ID, "precio", false)
	require.NoError(t, err)
	assert.Nil(t, got, "no flow configured")

	h.seedFlow(t, models.FLOW_KEY_AUTO_RULES, rulesJSON(t,
		rule("k1", models.RULE_TRIGGER_KEYWORD, []string{"precio"}, "Nuestros planes empiezan en $499"),
	))
	got, err = engine.Route(ctx, h.bot.ID, "precio?", false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "k1", got.ID)

	got, err = engine.Route(ctx, "", "precio", false)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRuleEngine_BrokenFlowIsNotHandled(t *testing.T) {
	h := newHarness(t)
	h.seedFlow(t, models.FLOW_KEY_AUTO_RULES, `{"rules": [`)

	engine := &RuleEngine{DB: h.db, Outbox: h.outbox}
	out, err := engine.TryHandle(context.Background(), &Inbound{Channel: h.channel, Bot: &h.bot, Text: "hola"})
	assert.Error(t, err)
	assert.False(t, out.Handled)
}

func TestRuleEngine_HandledEvenWhenSendFails(t *testing.T) {
	h := newHarness(t)
	h.sender.err = errors.New("graph down")
	h.seedFlow(t, models.FLOW_KEY_AUTO_RULES, rulesJSON(t,
		rule("k1", models.RULE_TRIGGER_KEYWORD, []string{"precio"}, "uno", "dos"),
	))
	conv := h.seedConversation(t, "5215533333333", StateNone, models.ContextData{})

	engine := &RuleEngine{DB: h.db, Outbox: h.outbox}
	out, err := engine.TryHandle(context.Background(), &Inbound{
		Channel:      h.channel,
		Conversation: conv,
		Bot:          &h.bot,
		Contact:      conv.ContactPhone,
		Text:         "precio",
	})
	require.NoError(t, err)
	assert.True(t, out.Handled)
	assert.Equal(t, 2, out.Replies)
	assert.Equal(t, 0, out.Sent)

	msgs := h.outbound(t)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, models.PROVENANCE_RULES, m.Provenance())
		assert.Equal(t, "k1", m.Meta["rule_id"])
		assert.Equal(t, models.SEND_STATUS_FAILED, m.Meta["send_status"])
	}
	assert.Equal(t, []string{"uno", "dos"}, []string{msgs[0].Body, msgs[1].Body})
}
