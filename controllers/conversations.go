package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"wabiz/credentials"
	"wabiz/db"
	"wabiz/engine"
	"wabiz/models"
)

// GET /api/conversations
// Query params:
// - tenant_id, channel_id, status (optional)
// - limit (optional, default: 50, max: 200)
// - offset (optional, default: 0)
func GetConversations(c *gin.Context) {
	conn, ok := requireDB(c)
	if !ok {
		return
	}

	limit := clampInt(queryInt(c, "limit", 50), 1, 200)
	offset := clampInt(queryInt(c, "offset", 0), 0, 1_000_000)

	query := conn.Model(&models.Conversation{})
	if v := strings.TrimSpace(c.Query("tenant_id")); v != "" {
		query = query.Where("tenant_id = ?", v)
	}
	if v := strings.TrimSpace(c.Query("channel_id")); v != "" {
		query = query.Where("channel_id = ?", v)
	}
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		query = query.Where("status = ?", v)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	var conversations []models.Conversation
	if err := query.Order("last_message_at desc").Limit(limit).Offset(offset).Find(&conversations).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, gin.H{
		"total":         total,
		"limit":         limit,
		"offset":        offset,
		"conversations": conversations,
	})
}

// GET /api/conversations/:id/messages
func GetConversationMessages(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	conn, ok := requireDB(c)
	if !ok {
		return
	}

	var conv models.Conversation
	if err := conn.Where("id = ?", id).First(&conv).Error; err != nil {
		if db.IsNotFound(err) {
			RespondError(c, "conversa não encontrada", http.StatusNotFound)
			return
		}
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	limit := clampInt(queryInt(c, "limit", 200), 1, 500)
	offset := clampInt(queryInt(c, "offset", 0), 0, 1_000_000)

	var messages []models.Message
	if err := conn.Where("conversation_id = ?", conv.ID).
		Order("created_at asc").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, gin.H{
		"conversation": conv,
		"messages":     messages,
	})
}

// POST /api/conversations/:id/messages
// Body: {"agent_id": "...", "text": "..."} ou {"agent_id": "...", "template_name": "...", "template_language": "es"}
func SendAgentMessage(desk *engine.AgentDesk) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := ParamID(c, "id")
		if !ok {
			return
		}

		var body engine.AgentMessage
		if err := c.ShouldBindJSON(&body); err != nil {
			RespondError(c, "json inválido", http.StatusBadRequest)
			return
		}

		msg, err := desk.Send(c.Request.Context(), id, body)
		if err != nil {
			var verr validation.Errors
			switch {
			case errors.As(err, &verr):
				RespondError(c, verr.Error(), http.StatusBadRequest)
			case errors.Is(err, engine.ErrConversationNotFound), errors.Is(err, engine.ErrChannelNotFound):
				RespondError(c, err.Error(), http.StatusNotFound)
			case errors.Is(err, engine.ErrInvalidPhone):
				RespondError(c, err.Error(), http.StatusBadRequest)
			case errors.Is(err, credentials.ErrNoCredential):
				RespondError(c, "credencial do canal não encontrada", http.StatusFailedDependency)
			case msg != nil:
				// registrado como failed, o provedor recusou
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "message": msg})
			default:
				RespondError(c, err.Error(), http.StatusInternalServerError)
			}
			return
		}

		RespondSuccess(c, gin.H{"message": msg})
	}
}
