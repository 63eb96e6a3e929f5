package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"

	"wabiz/db"
	"wabiz/events"
	"wabiz/locks"
	"wabiz/metrics"
	"wabiz/models"
)

// Dispatcher takes one webhook delivery from raw payload to replies.
type Dispatcher struct {
	DB            *gorm.DB
	Conversations *ConversationRepo
	Chain         *Chain
	Outbox        *Outbox
	Locker        locks.Locker
	Metrics       *metrics.Collector
}

// DeliveryResult summarises a processed delivery for logs and tests.
type DeliveryResult struct {
	RequestID string
	EventID   string
	Channel   *models.Channel
	Outcomes  []Outcome
}

// HandleDelivery records the raw event and routes every message in it. The only
// error returned is a failure to record the raw event; per-message problems are
// logged and never stop the batch.
func (d *Dispatcher) HandleDelivery(ctx context.Context, raw []byte, payload WebhookPayload) (DeliveryResult, error) {
	res := DeliveryResult{RequestID: uuid.NewString()}
	log := logrus.WithField("request_id", res.RequestID)

	value, _ := payload.FirstValue()
	phoneID := strings.TrimSpace(value.Metadata.PhoneNumberID)

	channel, err := d.findChannel(phoneID)
	if err != nil {
		log.WithError(err).WithField("phone_number_id", phoneID).Error("[webhook] channel lookup failed")
	}

	event := models.WebhookEvent{PhoneNumberID: phoneID, Payload: string(raw)}
	if channel != nil {
		event.TenantID = &channel.TenantID
		event.ChannelID = &channel.ID
	}
	if err := d.DB.Create(&event).Error; err != nil {
		d.Metrics.RecordDelivery("persist_failed")
		return res, err
	}
	res.EventID = event.ID

	if channel == nil {
		log.WithField("phone_number_id", phoneID).Warn("[webhook] unknown channel, event stored only")
		d.Metrics.RecordDelivery("unknown_channel")
		return res, nil
	}
	res.Channel = channel
	d.Metrics.RecordDelivery("ok")

	for _, msg := range value.Messages {
		res.Outcomes = append(res.Outcomes, d.ProcessMessage(ctx, res.RequestID, *channel, msg))
	}
	return res, nil
}

func (d *Dispatcher) findChannel(phoneID string) (*models.Channel, error) {
	if phoneID == "" {
		return nil, nil
	}
	var ch models.Channel
	err := d.DB.Where("phone_number_id = ?", phoneID).First(&ch).Error
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// ProcessMessage routes one inbound message unit of a known channel.
func (d *Dispatcher) ProcessMessage(ctx context.Context, requestID string, channel models.Channel, msg InboundMessage) Outcome {
	log := logrus.WithFields(logrus.Fields{
		"request_id": requestID,
		"tenant_id":  channel.TenantID,
		"channel_id": channel.ID,
	})

	contact := strings.TrimSpace(msg.From)
	if contact == "" {
		log.Warn("[webhook] message without sender skipped")
		return NotHandled
	}
	text := Normalize(msg)
	d.Metrics.RecordInbound(msg.Type)

	release, err := d.locker().Lock(ctx, "conversation:"+channel.TenantID+":"+channel.ID+":"+contact)
	if err != nil {
		log.WithError(err).Warn("[webhook] conversation lock not acquired, processing anyway")
	}
	defer release()

	conv, isNew, err := d.Conversations.Ensure(ctx, channel.TenantID, channel.ID, contact)
	if err != nil {
		log.WithError(err).Error("[webhook] ensure conversation failed")
		return NotHandled
	}
	log = log.WithField("conversation_id", conv.ID)

	inbound := models.Message{
		ConversationID: conv.ID,
		TenantID:       channel.TenantID,
		ChannelID:      channel.ID,
		Direction:      models.MESSAGE_DIRECTION_IN,
		Sender:         contact,
		Body:           text,
		Meta: models.JSONMap{
			"type":          msg.Type,
			"wa_message_id": msg.ID,
			"raw":           msg.RawMap(),
		},
	}
	if err := d.DB.Create(&inbound).Error; err != nil {
		log.WithError(err).Error("[webhook] failed to persist inbound message")
	} else if d.Outbox != nil {
		d.Outbox.publish(ctx, events.KEY_MESSAGE_INBOUND, requestID, inbound, "")
	}

	in := &Inbound{
		RequestID:         requestID,
		Channel:           channel,
		Conversation:      conv,
		Bot:               d.latestBot(channel.TenantID, log),
		Contact:           contact,
		Text:              text,
		IsNewConversation: isNew,
	}

	out := d.Chain.Handle(ctx, in)
	d.Metrics.RecordOutcome(out.Responder)
	log.WithFields(logrus.Fields{
		"responder": out.Responder,
		"replies":   out.Replies,
		"sent":      out.Sent,
		"new":       isNew,
	}).Info("[webhook] message routed")
	return out
}

func (d *Dispatcher) latestBot(tenantID string, log *logrus.Entry) *models.Bot {
	var bot models.Bot
	err := d.DB.Where("tenant_id = ?", tenantID).Order("created_at desc").First(&bot).Error
	if err != nil {
		if !db.IsNotFound(err) {
			log.WithError(err).Warn("[webhook] bot lookup failed")
		}
		return nil
	}
	return &bot
}

func (d *Dispatcher) locker() locks.Locker {
	if d.Locker == nil {
		return locks.Noop{}
	}
	return d.Locker
}
