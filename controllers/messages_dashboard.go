package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wabiz/models"
)

// ------------------------------
// Dashboard - Stats
// ------------------------------

// GET /api/messages/dashboard/per-day
// Query params:
// - tenant_id (optional)
// - from=YYYY-MM-DD (optional, default: hoje-6)
// - to=YYYY-MM-DD   (optional, default: hoje)
// Retorna uma série diária de mensagens recebidas e enviadas (inclui dias com 0).
func GetMessagesPerDay(c *gin.Context) {
	conn, ok := requireDB(c)
	if !ok {
		return
	}

	from, to, ok := parseDateRange(c, time.Now())
	if !ok {
		return
	}
	toExclusive := to.AddDate(0, 0, 1)

	// dia em UTC conforme o dialeto
	dialect := strings.ToLower(conn.Dialect().GetName())
	dayExpr := "date(created_at)"
	if strings.Contains(dialect, "sqlite") {
		dayExpr = "strftime('%Y-%m-%d', created_at)"
	} else if strings.Contains(dialect, "postgres") {
		dayExpr = "to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
	}

	q := conn.Table("messages").
		Select(fmt.Sprintf("%s as day, direction, count(*) as count", dayExpr)).
		Where("created_at >= ? AND created_at < ?", from, toExclusive)
	if v := strings.TrimSpace(c.Query("tenant_id")); v != "" {
		q = q.Where("tenant_id = ?", v)
	}

	var rows []dailyCountRow
	if err := q.Group("day, direction").Order("day asc").Scan(&rows).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, gin.H{
		"from":   from.Format("2006-01-02"),
		"to":     to.Format("2006-01-02"),
		"series": fillDailySeries(from, to, rows),
	})
}

// ------------------------------
// Dashboard - List
// ------------------------------

// GET /api/messages/dashboard/list
// Query params:
// - tenant_id, conversation_id (optional)
// - direction=in|out (optional)
// - q=texto (optional) -> busca no body
// - sort_by=created_at|direction (optional, default: created_at)
// - order=asc|desc (optional, default: desc)
// - limit (optional, default: 200, max: 500)
// - offset (optional, default: 0)
func GetMessagesDashboardList(c *gin.Context) {
	conn, ok := requireDB(c)
	if !ok {
		return
	}

	direction := strings.TrimSpace(c.Query("direction"))
	q := strings.TrimSpace(c.Query("q"))
	sortBy := strings.TrimSpace(c.DefaultQuery("sort_by", "created_at"))
	order := strings.ToLower(strings.TrimSpace(c.DefaultQuery("order", "desc")))

	limit := clampInt(queryInt(c, "limit", 200), 1, 500)
	offset := clampInt(queryInt(c, "offset", 0), 0, 1_000_000)

	// whitelist sort fields
	switch sortBy {
	case "created_at", "direction":
	default:
		sortBy = "created_at"
	}
	if order != "asc" {
		order = "desc"
	}

	query := conn.Model(&models.Message{})
	if v := strings.TrimSpace(c.Query("tenant_id")); v != "" {
		query = query.Where("tenant_id = ?", v)
	}
	if v := strings.TrimSpace(c.Query("conversation_id")); v != "" {
		query = query.Where("conversation_id = ?", v)
	}
	if direction != "" {
		query = query.Where("direction = ?", direction)
	}
	if q != "" {
		query = query.Where("body LIKE ?", "%"+q+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	var messages []models.Message
	if err := query.Order(fmt.Sprintf("%s %s", sortBy, order)).
		Limit(limit).
		Offset(offset).
		Find(&messages).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, gin.H{
		"total":    total,
		"limit":    limit,
		"offset":   offset,
		"messages": messages,
	})
}
