package engine

import "encoding/json"

// WebhookPayload is the envelope Meta posts to the webhook.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         WebhookMetadata  `json:"metadata"`
	Contacts         []WebhookContact `json:"contacts"`
	Messages         []InboundMessage `json:"messages"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// FirstValue returns entry[0].changes[0].value, the only envelope the core reads.
func (p WebhookPayload) FirstValue() (WebhookValue, bool) {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return WebhookValue{}, false
	}
	return p.Entry[0].Changes[0].Value, true
}

// InboundMessage is one message unit of a delivery. Raw keeps the provider JSON
// for the message log.
type InboundMessage struct {
	From        string              `json:"from"`
	ID          string              `json:"id"`
	Timestamp   string              `json:"timestamp"`
	Type        string              `json:"type"`
	Text        *TextContent        `json:"text,omitempty"`
	Button      *ButtonContent      `json:"button,omitempty"`
	Interactive *InteractiveContent `json:"interactive,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type TextContent struct {
	Body string `json:"body"`
}

type ButtonContent struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

type InteractiveContent struct {
	Type        string       `json:"type"`
	ButtonReply *ReplyOption `json:"button_reply,omitempty"`
	ListReply   *ReplyOption `json:"list_reply,omitempty"`
}

type ReplyOption struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func (m *InboundMessage) UnmarshalJSON(b []byte) error {
	type plain InboundMessage
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*m = InboundMessage(p)
	m.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// RawMap decodes Raw for storage in Message.Meta.
func (m InboundMessage) RawMap() map[string]any {
	out := map[string]any{}
	if len(m.Raw) == 0 {
		return out
	}
	_ = json.Unmarshal(m.Raw, &out)
	return out
}
