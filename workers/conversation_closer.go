package workers

import (
	"context"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"

	"wabiz/metrics"
	"wabiz/models"
)

const closeBatchSize = 200

var closableStatuses = []string{models.CONVERSATION_STATUS_NEW, models.CONVERSATION_STATUS_OPEN}

// ConversationCloser closes conversations nobody wrote to for Idle.
// pending_agent conversations are left for the agent.
type ConversationCloser struct {
	DB       *gorm.DB
	Idle     time.Duration
	Interval time.Duration
	Metrics  *metrics.Collector
	Now      func() time.Time
}

// StartConversationCloser starts the loop in background; it stops with ctx.
// idle <= 0 disables the worker.
func StartConversationCloser(ctx context.Context, conn *gorm.DB, idle, interval time.Duration, m *metrics.Collector) {
	if idle <= 0 {
		logrus.Info("[closer] disabled")
		return
	}
	w := &ConversationCloser{DB: conn, Idle: idle, Interval: interval, Metrics: m}
	go w.Run(ctx)
}

func (w *ConversationCloser) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.CloseIdle(); err != nil {
				logrus.WithError(err).Error("[closer] query error")
			}
		}
	}
}

// CloseIdle closes one batch and returns how many conversations it closed.
// The dialogue state is cleared so a returning contact starts from scratch.
func (w *ConversationCloser) CloseIdle() (int, error) {
	now := time.Now()
	if w.Now != nil {
		now = w.Now()
	}
	cutoff := now.Add(-w.Idle)

	var candidates []models.Conversation
	if err := w.DB.
		Where("status IN (?)", closableStatuses).
		Where("last_message_at IS NOT NULL AND last_message_at < ?", cutoff).
		Order("last_message_at asc").
		Limit(closeBatchSize).
		Find(&candidates).Error; err != nil {
		return 0, err
	}

	closed := 0
	for _, conv := range candidates {
		// lock otimista: uma mensagem nova no meio do caminho mantém a conversa aberta
		res := w.DB.Model(&models.Conversation{}).
			Where("id = ? AND status IN (?) AND last_message_at < ?", conv.ID, closableStatuses, cutoff).
			Updates(map[string]interface{}{
				"status":        models.CONVERSATION_STATUS_CLOSED,
				"context_state": nil,
				"updated_at":    now,
			})
		if res.Error != nil {
			logrus.WithError(res.Error).WithField("conversation_id", conv.ID).Error("[closer] update failed")
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}
		closed++
	}

	if closed > 0 {
		logrus.WithField("closed", closed).Info("[closer] idle conversations closed")
		w.Metrics.RecordClosed(closed)
	}
	return closed, nil
}
