package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"wabiz/models"
)

func ParamID(c *gin.Context, name string) (string, bool) {
	v := strings.TrimSpace(c.Param(name))
	if v == "" {
		RespondError(c, name+" é obrigatório", http.StatusBadRequest)
		return "", false
	}
	if _, err := uuid.Parse(v); err != nil {
		RespondError(c, name+" inválido", http.StatusBadRequest)
		return "", false
	}
	return v, true
}

func queryInt(c *gin.Context, key string, def int) int {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return def
	}
	var n int
	_, err := fmt.Sscanf(v, "%d", &n)
	if err != nil {
		return def
	}
	return n
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// parseDateRange lê from/to (YYYY-MM-DD, dias em UTC). Default: últimos 7 dias.
func parseDateRange(c *gin.Context, now time.Time) (time.Time, time.Time, bool) {
	now = now.UTC()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -6)

	var err error
	if v := strings.TrimSpace(c.Query("from")); v != "" {
		from, err = time.ParseInLocation("2006-01-02", v, time.UTC)
		if err != nil {
			RespondError(c, "from inválido (use YYYY-MM-DD)", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
	}
	if v := strings.TrimSpace(c.Query("to")); v != "" {
		to, err = time.ParseInLocation("2006-01-02", v, time.UTC)
		if err != nil {
			RespondError(c, "to inválido (use YYYY-MM-DD)", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
	}
	if from.After(to) {
		RespondError(c, "from não pode ser maior que to", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	if to.Sub(from) > 366*24*time.Hour {
		RespondError(c, "intervalo máximo é de um ano", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

type dailyCountRow struct {
	Day       string `json:"day"`
	Direction string `json:"-"`
	Count     int64  `json:"-"`
}

type dailyMessagesRow struct {
	Day      string `json:"day"`
	Inbound  int64  `json:"inbound"`
	Outbound int64  `json:"outbound"`
}

func fillDailySeries(from time.Time, to time.Time, rows []dailyCountRow) []dailyMessagesRow {
	// mapa day->linha
	m := map[string]*dailyMessagesRow{}
	for _, r := range rows {
		if r.Day == "" {
			continue
		}
		day, ok := m[r.Day]
		if !ok {
			day = &dailyMessagesRow{Day: r.Day}
			m[r.Day] = day
		}
		switch r.Direction {
		case models.MESSAGE_DIRECTION_IN:
			day.Inbound += r.Count
		case models.MESSAGE_DIRECTION_OUT:
			day.Outbound += r.Count
		}
	}

	var out []dailyMessagesRow
	// itera por dia (inclusive)
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, 1) {
		key := cur.Format("2006-01-02")
		if day, ok := m[key]; ok {
			out = append(out, *day)
			continue
		}
		out = append(out, dailyMessagesRow{Day: key})
	}
	return out
}
