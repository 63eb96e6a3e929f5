package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"wabiz/models"
)

// Inbound is one normalized inbound message with everything a responder needs.
type Inbound struct {
	RequestID         string
	Channel           models.Channel
	Conversation      *models.Conversation
	Bot               *models.Bot
	Contact           string
	Text              string
	IsNewConversation bool
}

func (in *Inbound) logger() *logrus.Entry {
	fields := logrus.Fields{
		"request_id": in.RequestID,
		"tenant_id":  in.Channel.TenantID,
		"channel_id": in.Channel.ID,
	}
	if in.Conversation != nil {
		fields["conversation_id"] = in.Conversation.ID
	}
	return logrus.WithFields(fields)
}

// Outcome reports whether a responder took ownership of the inbound message.
type Outcome struct {
	Handled   bool
	Responder string
	Replies   int
	Sent      int
}

var NotHandled = Outcome{}

// Responder is one link of the response chain.
type Responder interface {
	Name() string
	TryHandle(ctx context.Context, in *Inbound) (Outcome, error)
}

// Chain runs responders in order and stops at the first one that handles the message.
type Chain struct {
	Responders []Responder
}

func NewChain(responders ...Responder) *Chain {
	return &Chain{Responders: responders}
}

func (c *Chain) Handle(ctx context.Context, in *Inbound) Outcome {
	for _, r := range c.Responders {
		out, err := r.TryHandle(ctx, in)
		if err != nil {
			in.logger().WithError(err).WithField("responder", r.Name()).Error("responder failed")
		}
		if out.Handled {
			out.Responder = r.Name()
			return out
		}
	}
	return NotHandled
}
