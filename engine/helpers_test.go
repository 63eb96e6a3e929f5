package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/require"

	"wabiz/credentials"
	"wabiz/db/dbtest"
	"wabiz/events"
	"wabiz/models"
	"wabiz/tools"
)

type sentText struct {
	Token, PhoneNumberID, To, Text string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentText
	err  error
}

func (f *fakeSender) SendText(_ context.Context, token, phoneNumberID, to, text string) (tools.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentText{token, phoneNumberID, to, text})
	if f.err != nil {
		return tools.SendResult{}, f.err
	}
	id := fmt.Sprintf("wamid.%d", len(f.sent))
	return tools.SendResult{MessageID: id, Response: map[string]any{"messages": []any{map[string]any{"id": id}}}}, nil
}

func (f *fakeSender) SendTemplate(ctx context.Context, token, phoneNumberID, to, name, language string) (tools.SendResult, error) {
	return f.SendText(ctx, token, phoneNumberID, to, "template:"+name+":"+language)
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.Text)
	}
	return out
}

type fakeTokens struct {
	token string
	calls int
}

func (f *fakeTokens) Resolve(context.Context, string, string) (string, error) {
	f.calls++
	if f.token == "" {
		return "", credentials.ErrNoCredential
	}
	return f.token, nil
}

type harness struct {
	db         *gorm.DB
	sender     *fakeSender
	tokens     *fakeTokens
	events     *events.Recorder
	outbox     *Outbox
	dispatcher *Dispatcher
	channel    models.Channel
	bot        models.Bot
	now        time.Time
}

const testPhoneID = "1098765"

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		db:     dbtest.Open(t),
		sender: &fakeSender{},
		tokens: &fakeTokens{token: "EAAG-token"},
		events: &events.Recorder{},
		now:    time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }

	h.channel = models.Channel{
		TenantID:      "tenant-1",
		PhoneNumberID: testPhoneID,
		TokenAlias:    "ventas",
		Status:        models.CHANNEL_STATUS_REGISTERED,
	}
	require.NoError(t, h.db.Create(&h.channel).Error)
	h.bot = models.Bot{TenantID: "tenant-1", Name: "principal"}
	require.NoError(t, h.db.Create(&h.bot).Error)

	h.outbox = &Outbox{DB: h.db, Sender: h.sender, Tokens: h.tokens, Events: h.events, Now: clock}
	chain := NewChain(
		&StateMachine{DB: h.db, Outbox: h.outbox, Script: Script{SchedulingURL: "https://agenda.example/demo"}, Now: clock},
		&RuleEngine{DB: h.db, Outbox: h.outbox},
		&DefaultResponder{DB: h.db, Outbox: h.outbox},
	)
	h.dispatcher = &Dispatcher{
		DB:            h.db,
		Conversations: &ConversationRepo{DB: h.db, Now: clock},
		Chain:         chain,
		Outbox:        h.outbox,
	}
	return h
}

// failConversationUpdates makes every UPDATE on conversations fail from now on.
func failConversationUpdates(conn *gorm.DB) {
	conn.Callback().Update().Before("gorm:update").Register("test:fail_conversation_updates", func(scope *gorm.Scope) {
		if scope.TableName() == "conversations" {
			scope.Err(errors.New("conversations update refused"))
		}
	})
}

func (h *harness) seedFlow(t *testing.T, key, definition string) {
	t.Helper()
	require.NoError(t, h.db.Create(&models.Flow{BotID: h.bot.ID, Key: key, Definition: definition}).Error)
}

// seedConversation puts a contact directly in a dialogue state.
func (h *harness) seedConversation(t *testing.T, contact string, state State, data models.ContextData) *models.Conversation {
	t.Helper()
	conv := &models.Conversation{
		TenantID:     h.channel.TenantID,
		ChannelID:    h.channel.ID,
		ContactPhone: contact,
		Status:       models.CONVERSATION_STATUS_OPEN,
		ContextState: state.Ptr(),
		ContextData:  data,
	}
	require.NoError(t, h.db.Create(conv).Error)
	return conv
}

func (h *harness) deliver(t *testing.T, messages ...string) DeliveryResult {
	t.Helper()
	raw := deliveryJSON(testPhoneID, messages...)
	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	res, err := h.dispatcher.HandleDelivery(context.Background(), []byte(raw), payload)
	require.NoError(t, err)
	return res
}

func (h *harness) conversation(t *testing.T, contact string) models.Conversation {
	t.Helper()
	var conv models.Conversation
	require.NoError(t, h.db.Where("contact_phone = ?", contact).First(&conv).Error)
	return conv
}

func (h *harness) outbound(t *testing.T) []models.Message {
	t.Helper()
	var msgs []models.Message
	require.NoError(t, h.db.Where("direction = ?", models.MESSAGE_DIRECTION_OUT).Order("created_at asc, rowid asc").Find(&msgs).Error)
	return msgs
}

func provenances(msgs []models.Message) map[string]int {
	out := map[string]int{}
	for _, m := range msgs {
		out[m.Provenance()]++
	}
	return out
}

func deliveryJSON(phoneID string, messages ...string) string {
	msgs := "[]"
	if len(messages) > 0 {
		msgs = "[" + strings.Join(messages, ",") + "]"
	}
	return `{"object":"whatsapp_business_account","entry":[{"id":"waba-1","changes":[{"field":"messages","value":{` +
		`"messaging_product":"whatsapp","metadata":{"display_phone_number":"15550001111","phone_number_id":"` + phoneID + `"},` +
		`"messages":` + msgs + `}}]}]}`
}

func textMsg(from, body string) string {
	b, _ := json.Marshal(map[string]any{
		"from": from, "id": "wamid.in." + body, "timestamp": "1700000000", "type": "text",
		"text": map[string]any{"body": body},
	})
	return string(b)
}

func listReplyMsg(from, title string) string {
	b, _ := json.Marshal(map[string]any{
		"from": from, "id": "wamid.list", "timestamp": "1700000000", "type": "interactive",
		"interactive": map[string]any{
			"type":       "list_reply",
			"list_reply": map[string]any{"id": "row-1", "title": title},
		},
	})
	return string(b)
}

func rulesJSON(t *testing.T, rules ...models.Rule) string {
	t.Helper()
	b, err := json.Marshal(models.RuleSet{Rules: rules})
	require.NoError(t, err)
	return string(b)
}

func boolPtr(b bool) *bool { return &b }
