package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wabiz/events"
	"wabiz/models"
)

const testContact = "5215512345678"

func welcomeRules(t *testing.T) string {
	return rulesJSON(t,
		rule("welcome-1", models.RULE_TRIGGER_WELCOME, nil, "¡Bienvenido a Wabiz!", msgMainMenu),
		rule("kw-precio", models.RULE_TRIGGER_KEYWORD, []string{"precio"}, "Planes desde $499"),
	)
}

func TestScenario_NewConversationWelcome(t *testing.T) {
	h := newHarness(t)
	h.seedFlow(t, models.FLOW_KEY_AUTO_RULES, welcomeRules(t))

	res := h.deliver(t, textMsg(testContact, "hola"))

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, "rules", res.Outcomes[0].Responder)

	conv := h.conversation(t, testContact)
	assert.Equal(t, models.CONVERSATION_STATUS_NEW, conv.Status)
	assert.Equal(t, string(StateMenuPrincipal), conv.State())
	require.NotNil(t, conv.ContextData.StartedAt)
	assert.True(t, conv.ContextData.StartedAt.Equal(h.now))

	msgs := h.outbound(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, map[string]int{models.PROVENANCE_RULES: 2}, provenances(msgs))
	assert.Equal(t, "welcome-1", msgs[0].Meta["rule_id"])
	assert.Equal(t, []string{"¡Bienvenido a Wabiz!", msgMainMenu}, h.sender.texts())
	assert.Equal(t, testContact, h.sender.sent[0].To)
	assert.Equal(t, testPhoneID, h.sender.sent[0].PhoneNumberID)
	assert.Equal(t, "EAAG-token", h.sender.sent[0].Token)
	assert.Equal(t, 1, h.tokens.calls, "token resolved once per reply batch")
}

func TestScenario_AreaSelection(t *testing.T) {
	h := newHarness(t)
	h.seedFlow(t, models.FLOW_KEY_AUTO_RULES, welcomeRules(t))
	h.seedConversation(t, testContact, StateEsperandoArea, models.ContextData{Intent: INTENT_AUTOMATIZAR})

	h.deliver(t, textMsg(testContact, "2"))

	conv := h.conversation(t, testContact)
	assert.Equal(t, string(StateEsperandoTipoAutomatizacion), conv.State())
	assert.Equal(t, "2️⃣ Marketing", conv.ContextData.Area)
	assert.Equal(t, INTENT_AUTOMATIZAR, conv.ContextData.Intent)

	msgs := h.outbound(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.PROVENANCE_STATE_MACHINE, msgs[0].Provenance())
	assert.Equal(t, string(StateEsperandoTipoAutomatizacion), msgs[0].Meta["state"])
	assert.Equal(t, msgTypeMenu, msgs[0].Body)
}

func TestScenario_InvalidEmail(t *testing.T) {
	h := newHarness(t)
	h.seedConversation(t, testContact, StateEsperandoEmail, models.ContextData{ContactMode: CONTACT_MODE_EMAIL})

	h.deliver(t, textMsg(testContact, "not an email"))

	conv := h.conversation(t, testContact)
	assert.Equal(t, string(StateEsperandoEmail), conv.State())

	msgs := h.outbound(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.PROVENANCE_STATE_MACHINE, msgs[0].Provenance())
	assert.Equal(t, msgEmailReprompt, msgs[0].Body)
}

func TestConversationWriteFailureStillReplies(t *testing.T) {
	h := newHarness(t)
	h.seedConversation(t, testContact, StateEsperandoEmail, models.ContextData{ContactMode: CONTACT_MODE_EMAIL})
	failConversationUpdates(h.db)

	h.deliver(t, textMsg(testContact, "not an email"))

	var inbound int
	require.NoError(t, h.db.Model(&models.Message{}).Where("direction = ?", models.MESSAGE_DIRECTION_IN).Count(&inbound).Error)
	assert.Equal(t, 1, inbound)

	msgs := h.outbound(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.PROVENANCE_STATE_MACHINE, msgs[0].Provenance())
	assert.Equal(t, msgEmailReprompt, msgs[0].Body)
	assert.Equal(t, []string{msgEmailReprompt}, h.sender.texts())
}

func TestScenario_ThanksWithoutDialogueFallsToDefault(t *testing.T) {
	h := newHarness(t)
	h.seedFlow(t, models.FLOW_KEY_AUTO_RULES, rulesJSON(t,
		rule("kw-precio", models.RULE_TRIGGER_KEYWORD, []string{"precio"}, "Planes desde $499"),
	))
	h.seedConversation(t, testContact, StateNone, models.ContextData{})

	res := h.deliver(t, textMsg(testContact, "gracias"))

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, "default", res.Outcomes[0].Responder)
	msgs := h.outbound(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.PROVENANCE_DEFAULT, msgs[0].Provenance())
	assert.Equal(t, echoReply("gracias"), msgs[0].Body)
	assert.Nil(t, h.conversation(t, testContact).ContextState)
}

func TestScenario_SalirResets(t *testing.T) {
	h := newHarness(t)
	h.seedFlow(t, models.FLOW_KEY_AUTO_RULES, welcomeRules(t))
	h.seedConversation(t, testContact, StateEsperandoTipoOtro, models.ContextData{
		Intent: INTENT_AUTOMATIZAR,
		Area:   "Logística",
	})

	h.deliver(t, textMsg(testContact, "Salir"))

	conv := h.conversation(t, testContact)
	assert.Equal(t, string(StateMenuPrincipal), conv.State())
	assert.True(t, conv.ContextData.IsEmpty())

	msgs := h.outbound(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, map[string]int{models.PROVENANCE_STATE_MACHINE: 2}, provenances(msgs))
	assert.Equal(t, msgReset, msgs[0].Body)
	assert.Equal(t, msgMainMenu, msgs[1].Body)
}

func TestScenario_ListReplyFromInfo(t *testing.T) {
	h := newHarness(t)
	h.seedConversation(t, testContact, StateInfoServicios, models.ContextData{Intent: INTENT_SERVICIOS})

	h.deliver(t, listReplyMsg(testContact, "Ventas"))

	conv := h.conversation(t, testContact)
	assert.Equal(t, string(StateEsperandoArea), conv.State())
	assert.Equal(t, INTENT_AUTOMATIZAR_DESDE_INFO, conv.ContextData.Intent)

	var in models.Message
	require.NoError(t, h.db.Where("direction = ?", models.MESSAGE_DIRECTION_IN).First(&in).Error)
	assert.Equal(t, "Ventas", in.Body)
	assert.Equal(t, testContact, in.Sender)
	assert.Equal(t, "interactive", in.Meta["type"])
	raw, ok := in.Meta["raw"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "interactive", raw["type"])
}

func TestMenuDefersToRules(t *testing.T) {
	h := newHarness(t)
	h.seedFlow(t, models.FLOW_KEY_AUTO_RULES, rulesJSON(t,
		rule("kw-menu", models.RULE_TRIGGER_KEYWORD, []string{"menu"}, msgMainMenu),
	))
	h.seedConversation(t, testContact, StateEsperandoContacto, models.ContextData{})

	res := h.deliver(t, textMsg(testContact, "menu"))

	assert.Equal(t, "rules", res.Outcomes[0].Responder)
	assert.Equal(t, string(StateMenuPrincipal), h.conversation(t, testContact).State())
	assert.Equal(t, map[string]int{models.PROVENANCE_RULES: 1}, provenances(h.outbound(t)))
}

func TestAtMostOneResponsePath(t *testing.T) {
	h := newHarness(t)
	h.seedFlow(t, models.FLOW_KEY_AUTO_RULES, rulesJSON(t,
		rule("welcome", models.RULE_TRIGGER_WELCOME, nil, msgMainMenu),
		rule("kw-precio", models.RULE_TRIGGER_KEYWORD, []string{"precio", "1"}, "Planes desde $499"),
		rule("fallback", models.RULE_TRIGGER_FALLBACK, nil, "No entendí"),
	))

	script := []string{"hola", "1", "precio", "3", "3", "ana@mail.com", "precio", "gracias", "salir", "zzz", "menu"}
	for _, text := range script {
		before := len(h.outbound(t))
		res := h.deliver(t, textMsg(testContact, text))
		require.Len(t, res.Outcomes, 1)

		added := h.outbound(t)[before:]
		assert.Len(t, provenances(added), 1, "text %q produced %v", text, provenances(added))
		for _, m := range added {
			assert.NotEqual(t, models.PROVENANCE_DEFAULT, m.Provenance(), "fallback rule owns unmatched text")
		}
	}

	var convs int
	require.NoError(t, h.db.Model(&models.Conversation{}).Count(&convs).Error)
	assert.Equal(t, 1, convs)
}

func TestBatchProcessedInOrder(t *testing.T) {
	h := newHarness(t)

	res := h.deliver(t,
		textMsg(testContact, "hola"),
		textMsg(testContact, "1"),
		textMsg(testContact, "4"),
	)

	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, "default", res.Outcomes[0].Responder, "no welcome rule configured")
	assert.Equal(t, "state_machine", res.Outcomes[1].Responder)
	assert.Equal(t, "state_machine", res.Outcomes[2].Responder)

	conv := h.conversation(t, testContact)
	assert.Equal(t, string(StateEsperandoTipoAutomatizacion), conv.State())
	assert.Equal(t, "4️⃣ Operaciones", conv.ContextData.Area)

	var inbound int
	require.NoError(t, h.db.Model(&models.Message{}).Where("direction = ?", models.MESSAGE_DIRECTION_IN).Count(&inbound).Error)
	assert.Equal(t, 3, inbound)
}

func TestUnknownChannelStoresEventOnly(t *testing.T) {
	h := newHarness(t)
	raw := deliveryJSON("no-such-phone", textMsg(testContact, "hola"))
	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	res, err := h.dispatcher.HandleDelivery(context.Background(), []byte(raw), payload)
	require.NoError(t, err)
	assert.Nil(t, res.Channel)
	assert.Empty(t, res.Outcomes)

	var ev models.WebhookEvent
	require.NoError(t, h.db.Where("id = ?", res.EventID).First(&ev).Error)
	assert.Nil(t, ev.TenantID)
	assert.Nil(t, ev.ChannelID)
	assert.Equal(t, "no-such-phone", ev.PhoneNumberID)
	assert.JSONEq(t, raw, ev.Payload)

	var convs int
	require.NoError(t, h.db.Model(&models.Conversation{}).Count(&convs).Error)
	assert.Equal(t, 0, convs)
}

func TestEventWithoutEnvelopeIsStored(t *testing.T) {
	h := newHarness(t)
	raw := []byte(`{"object":"whatsapp_business_account","entry":[]}`)

	res, err := h.dispatcher.HandleDelivery(context.Background(), raw, WebhookPayload{Object: "whatsapp_business_account"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.EventID)
	assert.Nil(t, res.Channel)
}

func TestKnownChannelEventCarriesTenant(t *testing.T) {
	h := newHarness(t)
	res := h.deliver(t)

	var ev models.WebhookEvent
	require.NoError(t, h.db.Where("id = ?", res.EventID).First(&ev).Error)
	require.NotNil(t, ev.TenantID)
	assert.Equal(t, h.channel.TenantID, *ev.TenantID)
	assert.Equal(t, h.channel.ID, *ev.ChannelID)
}

func TestRepeatedDeliveriesKeepOneConversation(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		h.deliver(t, textMsg(testContact, "hola"), textMsg("5215500000000", "hola"))
	}

	var convs int
	require.NoError(t, h.db.Model(&models.Conversation{}).Count(&convs).Error)
	assert.Equal(t, 2, convs)
}

func TestClosedConversationReopens(t *testing.T) {
	h := newHarness(t)
	conv := h.seedConversation(t, testContact, StateNone, models.ContextData{})
	require.NoError(t, h.db.Model(conv).Update("status", models.CONVERSATION_STATUS_CLOSED).Error)

	res := h.deliver(t, textMsg(testContact, "hola"))

	assert.NotEmpty(t, res.Outcomes[0].Responder)
	stored := h.conversation(t, testContact)
	assert.Equal(t, conv.ID, stored.ID)
	assert.Equal(t, models.CONVERSATION_STATUS_OPEN, stored.Status)
}

func TestMissingCredentialStillRecorded(t *testing.T) {
	h := newHarness(t)
	h.tokens.token = ""
	h.seedConversation(t, testContact, StateMenuPrincipal, models.ContextData{})

	res := h.deliver(t, textMsg(testContact, "3"))

	require.Len(t, res.Outcomes, 1)
	assert.True(t, res.Outcomes[0].Handled)
	assert.Equal(t, "state_machine", res.Outcomes[0].Responder)
	assert.Equal(t, 0, res.Outcomes[0].Sent)
	assert.Empty(t, h.sender.sent)

	msgs := h.outbound(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SEND_STATUS_NO_CREDENTIAL, msgs[0].Meta["send_status"])
	assert.Equal(t, string(StateEsperandoContacto), h.conversation(t, testContact).State())
}

func TestSendFailureDoesNotFallThrough(t *testing.T) {
	h := newHarness(t)
	h.sender.err = errors.New("status=500")
	h.seedConversation(t, testContact, StateMenuPrincipal, models.ContextData{})

	res := h.deliver(t, textMsg(testContact, "1"))

	assert.Equal(t, "state_machine", res.Outcomes[0].Responder)
	msgs := h.outbound(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SEND_STATUS_FAILED, msgs[0].Meta["send_status"])
	assert.Equal(t, "status=500", msgs[0].Meta["error"])
}

func TestDefaultReplyFlow(t *testing.T) {
	h := newHarness(t)
	h.seedFlow(t, models.FLOW_KEY_DEFAULT_REPLY, `{"text":"Gracias por escribir, te atendemos de 9 a 18h."}`)
	h.seedConversation(t, testContact, StateNone, models.ContextData{})

	h.deliver(t, textMsg(testContact, "¿abren hoy?"))

	msgs := h.outbound(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.PROVENANCE_DEFAULT, msgs[0].Provenance())
	assert.Equal(t, "Gracias por escribir, te atendemos de 9 a 18h.", msgs[0].Body)
	assert.Equal(t, models.SEND_STATUS_SENT, msgs[0].Meta["send_status"])
	assert.Equal(t, "wamid.1", msgs[0].Meta["wa_message_id"])
}

func TestLatestBotWins(t *testing.T) {
	h := newHarness(t)
	h.seedFlow(t, models.FLOW_KEY_AUTO_RULES, rulesJSON(t,
		rule("old", models.RULE_TRIGGER_FALLBACK, nil, "bot viejo"),
	))
	later := time.Now().Add(time.Hour)
	newer := models.Bot{TenantID: h.channel.TenantID, Name: "nuevo", CreatedAt: &later}
	require.NoError(t, h.db.Create(&newer).Error)
	require.NoError(t, h.db.Create(&models.Flow{BotID: newer.ID, Key: models.FLOW_KEY_AUTO_RULES,
		Definition: rulesJSON(t, rule("new", models.RULE_TRIGGER_FALLBACK, nil, "bot nuevo"))}).Error)
	h.seedConversation(t, testContact, StateNone, models.ContextData{})

	h.deliver(t, textMsg(testContact, "algo"))

	msgs := h.outbound(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "new", msgs[0].Meta["rule_id"])
}

func TestEventsPublished(t *testing.T) {
	h := newHarness(t)
	h.seedConversation(t, testContact, StateNone, models.ContextData{})

	h.deliver(t, textMsg(testContact, "hola"), textMsg(testContact, "2"))

	assert.Equal(t, 2, h.events.Count(events.KEY_MESSAGE_INBOUND))
	assert.Equal(t, 2, h.events.Count(events.KEY_MESSAGE_OUTBOUND))
	for _, env := range h.events.Events {
		require.NotNil(t, env.Meta.CorrelationID)
	}
}

func TestMessageWithoutSenderSkipped(t *testing.T) {
	h := newHarness(t)
	res := h.deliver(t, `{"id":"wamid.x","type":"text","text":{"body":"hola"}}`)

	require.Len(t, res.Outcomes, 1)
	assert.False(t, res.Outcomes[0].Handled)
	assert.Empty(t, h.outbound(t))
}
