package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wabiz/db"
	"wabiz/models"
)

// GET /api/webhook-events
// Query params:
// - tenant_id, channel_id, phone_number_id (optional)
// - unknown=true (optional) -> só entregas de números não cadastrados
// - limit (optional, default: 50, max: 200)
// - offset (optional, default: 0)
func GetWebhookEvents(c *gin.Context) {
	conn, ok := requireDB(c)
	if !ok {
		return
	}

	limit := clampInt(queryInt(c, "limit", 50), 1, 200)
	offset := clampInt(queryInt(c, "offset", 0), 0, 1_000_000)

	query := conn.Model(&models.WebhookEvent{})
	if v := strings.TrimSpace(c.Query("tenant_id")); v != "" {
		query = query.Where("tenant_id = ?", v)
	}
	if v := strings.TrimSpace(c.Query("channel_id")); v != "" {
		query = query.Where("channel_id = ?", v)
	}
	if v := strings.TrimSpace(c.Query("phone_number_id")); v != "" {
		query = query.Where("phone_number_id = ?", v)
	}
	if c.Query("unknown") == "true" {
		query = query.Where("channel_id IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	var events []models.WebhookEvent
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&events).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, gin.H{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"events": events,
	})
}

// GET /api/webhook-events/:id
func GetWebhookEventByID(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	conn, ok := requireDB(c)
	if !ok {
		return
	}

	var event models.WebhookEvent
	if err := conn.Where("id = ?", id).First(&event).Error; err != nil {
		if db.IsNotFound(err) {
			RespondError(c, "evento não encontrado", http.StatusNotFound)
			return
		}
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, gin.H{"event": event})
}
