package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/jinzhu/gorm"

	"wabiz/db"
	"wabiz/models"
)

func echoReply(text string) string {
	return fmt.Sprintf("Recibimos tu mensaje: \"%s\". En breve te responderemos.", text)
}

// DefaultResponder always answers: the bot's default_reply flow when configured,
// an echo of the inbound text otherwise.
type DefaultResponder struct {
	DB     *gorm.DB
	Outbox *Outbox
}

func (d *DefaultResponder) Name() string { return "default" }

func (d *DefaultResponder) TryHandle(ctx context.Context, in *Inbound) (Outcome, error) {
	text := echoReply(in.Text)
	if configured, err := d.configuredReply(in); err != nil {
		in.logger().WithError(err).Warn("default reply flow unreadable, using echo")
	} else if configured != "" {
		text = configured
	}

	sent := d.Outbox.Deliver(ctx, in, models.PROVENANCE_DEFAULT, []string{text}, nil)
	return Outcome{Handled: true, Replies: 1, Sent: sent}, nil
}

func (d *DefaultResponder) configuredReply(in *Inbound) (string, error) {
	if in.Bot == nil {
		return "", nil
	}
	var flow models.Flow
	err := d.DB.Where("bot_id = ? AND key = ?", in.Bot.ID, models.FLOW_KEY_DEFAULT_REPLY).
		Order("updated_at desc").First(&flow).Error
	if db.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	reply, err := flow.DefaultReply()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply.Text), nil
}
