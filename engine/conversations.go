package engine

import (
	"context"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"

	"wabiz/db"
	"wabiz/models"
)

// ConversationRepo keeps exactly one conversation per (tenant, channel, contact).
// The unique index created by db.Migrate is the source of truth.
type ConversationRepo struct {
	DB  *gorm.DB
	Now func() time.Time
}

// Ensure returns the contact's conversation, creating it on first contact. isNew is
// true only for the call that inserted the row. Only a failed lookup or insert is an
// error: a failed refresh of an existing row is logged and the row is still returned.
func (r *ConversationRepo) Ensure(ctx context.Context, tenantID, channelID, contact string) (*models.Conversation, bool, error) {
	now := r.now()

	conv, err := r.find(tenantID, channelID, contact)
	if err == nil {
		r.touchOrLog(conv, now)
		return conv, false, nil
	}
	if !db.IsNotFound(err) {
		return nil, false, err
	}

	conv = &models.Conversation{
		TenantID:      tenantID,
		ChannelID:     channelID,
		ContactPhone:  contact,
		Status:        models.CONVERSATION_STATUS_NEW,
		LastMessageAt: &now,
	}
	if err := r.DB.Create(conv).Error; err != nil {
		if !db.IsUniqueViolation(err) {
			return nil, false, err
		}
		// outra entrega criou primeiro: usa a dela
		conv, err = r.find(tenantID, channelID, contact)
		if err != nil {
			return nil, false, err
		}
		r.touchOrLog(conv, now)
		return conv, false, nil
	}
	return conv, true, nil
}

// Get loads a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.DB.Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepo) find(tenantID, channelID, contact string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.DB.Where("tenant_id = ? AND channel_id = ? AND contact_phone = ?", tenantID, channelID, contact).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepo) touchOrLog(conv *models.Conversation, now time.Time) {
	if err := r.touch(conv, now); err != nil {
		logrus.WithFields(logrus.Fields{
			"tenant_id":       conv.TenantID,
			"channel_id":      conv.ChannelID,
			"conversation_id": conv.ID,
		}).WithError(err).Error("[conversations] failed to refresh conversation")
	}
}

// touch refreshes last_message_at and reopens a closed conversation.
func (r *ConversationRepo) touch(conv *models.Conversation, now time.Time) error {
	updates := map[string]interface{}{"last_message_at": now}
	if conv.Status == models.CONVERSATION_STATUS_CLOSED {
		updates["status"] = models.CONVERSATION_STATUS_OPEN
	}
	if err := r.DB.Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(updates).Error; err != nil {
		return err
	}
	conv.LastMessageAt = &now
	if s, ok := updates["status"].(string); ok {
		conv.Status = s
	}
	return nil
}

func (r *ConversationRepo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
