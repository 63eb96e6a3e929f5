package engine

import (
	"context"
	"errors"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"

	"wabiz/credentials"
	"wabiz/events"
	"wabiz/metrics"
	"wabiz/models"
	"wabiz/tools"
)

// Sender is the part of tools.GraphClient the core uses.
type Sender interface {
	SendText(ctx context.Context, token, phoneNumberID, to, text string) (tools.SendResult, error)
}

// TokenResolver is satisfied by *credentials.Resolver.
type TokenResolver interface {
	Resolve(ctx context.Context, tenantID, alias string) (string, error)
}

// Outbox sends replies and records each attempt in the message log. Sends happen
// first and the row records the outcome, so a failed or skipped send still leaves a
// trace with its send_status.
type Outbox struct {
	DB      *gorm.DB
	Sender  Sender
	Tokens  TokenResolver
	Events  events.Publisher
	Metrics *metrics.Collector
	Now     func() time.Time
}

// Deliver sends texts in order to the inbound contact and returns how many the
// provider accepted. The token is resolved once for the batch.
func (o *Outbox) Deliver(ctx context.Context, in *Inbound, provenance string, texts []string, extra models.JSONMap) int {
	log := in.logger().WithField("provenance", provenance)

	token, tokenErr := o.Tokens.Resolve(ctx, in.Channel.TenantID, in.Channel.TokenAlias)
	if tokenErr != nil && !errors.Is(tokenErr, credentials.ErrNoCredential) {
		log.WithError(tokenErr).Error("[outbox] credential lookup failed")
	}

	sent := 0
	for _, text := range texts {
		meta := models.JSONMap{"source": provenance}
		for k, v := range extra {
			meta[k] = v
		}

		if tokenErr != nil {
			meta["send_status"] = models.SEND_STATUS_NO_CREDENTIAL
		} else if res, err := o.Sender.SendText(ctx, token, in.Channel.PhoneNumberID, in.Contact, text); err != nil {
			log.WithError(err).Error("[outbox] send failed")
			meta["send_status"] = models.SEND_STATUS_FAILED
			meta["error"] = err.Error()
		} else {
			sent++
			meta["send_status"] = models.SEND_STATUS_SENT
			meta["wa_message_id"] = res.MessageID
			meta["response"] = res.Response
		}

		msg := models.Message{
			ConversationID: in.Conversation.ID,
			TenantID:       in.Channel.TenantID,
			ChannelID:      in.Channel.ID,
			Direction:      models.MESSAGE_DIRECTION_OUT,
			Sender:         models.SENDER_BOT,
			Body:           text,
			Meta:           meta,
		}
		if err := o.Record(ctx, in.RequestID, &msg); err != nil {
			log.WithError(err).Error("[outbox] failed to persist outbound message")
		}
	}
	return sent
}

// Record appends an outbound row to the message log and announces it.
func (o *Outbox) Record(ctx context.Context, requestID string, msg *models.Message) error {
	if msg.CreatedAt == nil {
		msg.CreatedAt = o.now()
	}
	status, _ := msg.Meta["send_status"].(string)
	o.Metrics.RecordSend(msg.Provenance(), status)

	if err := o.DB.Create(msg).Error; err != nil {
		return err
	}
	o.publish(ctx, events.KEY_MESSAGE_OUTBOUND, requestID, *msg, status)
	return nil
}

func (o *Outbox) publish(ctx context.Context, key, requestID string, msg models.Message, status string) {
	if o.Events == nil {
		return
	}
	env := events.NewEnvelope(key, requestID, events.MessageEvent{
		MessageID:      msg.ID,
		TenantID:       msg.TenantID,
		ChannelID:      msg.ChannelID,
		ConversationID: msg.ConversationID,
		Direction:      msg.Direction,
		Sender:         msg.Sender,
		Body:           msg.Body,
		Provenance:     msg.Provenance(),
		SendStatus:     status,
	})
	if err := o.Events.Publish(ctx, key, env); err != nil {
		logrus.WithError(err).WithField("message_id", msg.ID).Warn("[outbox] publish failed")
	}
}

func (o *Outbox) now() *time.Time {
	t := time.Now()
	if o.Now != nil {
		t = o.Now()
	}
	return &t
}
