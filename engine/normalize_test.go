package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"text", `{"type":"text","text":{"body":"Hola, quiero info"}}`, "Hola, quiero info"},
		{"text without body", `{"type":"text"}`, "[TEXT]"},
		{"blank text", `{"type":"text","text":{"body":"   "}}`, "[TEXT]"},
		{"legacy button", `{"type":"button","button":{"text":"Ver precios","payload":"p1"}}`, "Ver precios"},
		{"legacy button without label", `{"type":"button","button":{"payload":"p1"}}`, "[Botón]"},
		{"button reply", `{"type":"interactive","interactive":{"type":"button_reply","button_reply":{"id":"b1","title":"Sí"}}}`, "Sí"},
		{"button reply without title", `{"type":"interactive","interactive":{"type":"button_reply","button_reply":{"id":"b1"}}}`, "[Opción]"},
		{"list reply", `{"type":"interactive","interactive":{"type":"list_reply","list_reply":{"id":"r1","title":"Ventas"}}}`, "Ventas"},
		{"list reply without title", `{"type":"interactive","interactive":{"type":"list_reply"}}`, "[Lista]"},
		{"other interactive", `{"type":"interactive","interactive":{"type":"nfm_reply"}}`, "[Interacción]"},
		{"image", `{"type":"image","image":{"id":"media-1"}}`, "[IMAGE]"},
		{"audio", `{"type":"audio","audio":{"id":"media-2"}}`, "[AUDIO]"},
		{"location", `{"type":"location","location":{"latitude":1}}`, "[LOCATION]"},
		{"sticker", `{"type":"sticker"}`, "[STICKER]"},
		{"no type", `{}`, "[DESCONOCIDO]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg InboundMessage
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &msg))

			got := Normalize(msg)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got)
		})
	}
}

func TestInboundMessage_KeepsRawPayload(t *testing.T) {
	raw := `{"from":"5215512345678","type":"image","image":{"id":"media-1","mime_type":"image/jpeg"}}`

	var msg InboundMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	assert.JSONEq(t, raw, string(msg.Raw))
	m := msg.RawMap()
	assert.Equal(t, "image", m["type"])
	assert.Equal(t, "media-1", m["image"].(map[string]any)["id"])
}

func TestWebhookPayload_FirstValue(t *testing.T) {
	var p WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(deliveryJSON("555", textMsg("521", "hola"), textMsg("521", "1"))), &p))

	v, ok := p.FirstValue()
	require.True(t, ok)
	assert.Equal(t, "555", v.Metadata.PhoneNumberID)
	require.Len(t, v.Messages, 2)
	assert.Equal(t, "hola", v.Messages[0].Text.Body)

	_, ok = WebhookPayload{}.FirstValue()
	assert.False(t, ok)
}
