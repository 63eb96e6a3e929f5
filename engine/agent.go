package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"

	"wabiz/db"
	"wabiz/models"
	"wabiz/tools"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrChannelNotFound      = errors.New("channel not found")
	ErrInvalidPhone         = errors.New("invalid contact phone")
)

// TemplateSender is the template half of tools.GraphClient.
type TemplateSender interface {
	SendTemplate(ctx context.Context, token, phoneNumberID, to, name, language string) (tools.SendResult, error)
}

// AgentMessage is a human reply typed in the dashboard: free text or an approved template.
type AgentMessage struct {
	AgentID          string `json:"agent_id"`
	Text             string `json:"text"`
	TemplateName     string `json:"template_name"`
	TemplateLanguage string `json:"template_language"`
}

func (m AgentMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.AgentID, validation.Required, validation.Length(1, 128)),
		validation.Field(&m.Text,
			validation.When(strings.TrimSpace(m.TemplateName) == "", validation.Required.Error("text ou template_name é obrigatório")),
			validation.Length(0, 4096)),
		validation.Field(&m.TemplateName,
			validation.When(strings.TrimSpace(m.Text) != "", validation.Empty.Error("use text ou template_name, não os dois"))),
	)
}

func (m AgentMessage) isTemplate() bool {
	return strings.TrimSpace(m.TemplateName) != ""
}

func (m AgentMessage) body() string {
	if m.isTemplate() {
		return "[TEMPLATE] " + strings.TrimSpace(m.TemplateName)
	}
	return m.Text
}

// AgentDesk sends agent replies on an existing conversation. Unlike automated
// replies a missing credential is an error returned to the caller.
type AgentDesk struct {
	Outbox    *Outbox
	Templates TemplateSender
}

// Send delivers m, records it with provenance agent and hands the conversation to
// the agent (status open, assigned_agent set). A provider failure is recorded and
// returned alongside the stored row.
func (d *AgentDesk) Send(ctx context.Context, conversationID string, m AgentMessage) (*models.Message, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	conn := d.Outbox.DB

	var conv models.Conversation
	if err := conn.Where("id = ?", conversationID).First(&conv).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	var channel models.Channel
	if err := conn.Where("id = ?", conv.ChannelID).First(&channel).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}

	// contact_phone é o wa_id do webhook, enviado como veio
	to, err := tools.WhatsAppRecipient(conv.ContactPhone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}

	token, err := d.Outbox.Tokens.Resolve(ctx, channel.TenantID, channel.TokenAlias)
	if err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{
		"tenant_id":       channel.TenantID,
		"channel_id":      channel.ID,
		"conversation_id": conv.ID,
		"agent_id":        m.AgentID,
	})

	var res tools.SendResult
	var sendErr error
	if m.isTemplate() {
		res, sendErr = d.Templates.SendTemplate(ctx, token, channel.PhoneNumberID, to, strings.TrimSpace(m.TemplateName), m.TemplateLanguage)
	} else {
		res, sendErr = d.Outbox.Sender.SendText(ctx, token, channel.PhoneNumberID, to, m.Text)
	}

	meta := models.JSONMap{"source": models.PROVENANCE_AGENT}
	if m.isTemplate() {
		meta["template_name"] = strings.TrimSpace(m.TemplateName)
	}
	if sendErr != nil {
		log.WithError(sendErr).Error("[agent] send failed")
		meta["send_status"] = models.SEND_STATUS_FAILED
		meta["error"] = sendErr.Error()
	} else {
		meta["send_status"] = models.SEND_STATUS_SENT
		meta["wa_message_id"] = res.MessageID
		meta["response"] = res.Response
	}

	msg := models.Message{
		ConversationID: conv.ID,
		TenantID:       channel.TenantID,
		ChannelID:      channel.ID,
		Direction:      models.MESSAGE_DIRECTION_OUT,
		Sender:         m.AgentID,
		Body:           m.body(),
		Meta:           meta,
	}
	if err := d.Outbox.Record(ctx, "", &msg); err != nil {
		return nil, fmt.Errorf("persist agent message: %w", err)
	}

	if err := conn.Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(map[string]interface{}{
		"status":         models.CONVERSATION_STATUS_OPEN,
		"assigned_agent": m.AgentID,
		"updated_at":     d.Outbox.now(),
	}).Error; err != nil {
		log.WithError(err).Error("[agent] failed to assign conversation")
	}

	return &msg, sendErr
}
