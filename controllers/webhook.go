package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"wabiz/engine"
)

// DeliveryHandler is satisfied by *engine.Dispatcher.
type DeliveryHandler interface {
	HandleDelivery(ctx context.Context, raw []byte, payload engine.WebhookPayload) (engine.DeliveryResult, error)
}

// verifyMetaSignature checks X-Hub-Signature-256 (sha256=<hex>) against the App Secret.
func verifyMetaSignature(c *gin.Context, rawBody []byte, secret string) (bool, string) {
	sig := strings.TrimSpace(c.GetHeader("X-Hub-Signature-256"))
	if sig == "" {
		return false, "missing X-Hub-Signature-256"
	}
	if !strings.HasPrefix(sig, "sha256=") {
		return false, "invalid X-Hub-Signature-256 format"
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(sig, "sha256="))
	if err != nil {
		return false, "invalid signature hex"
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(rawBody)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return false, "signature mismatch"
	}
	return true, ""
}

// GET /webhook e GET /api/webhook
func WebhookVerify(verifyToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		mode := c.Query("hub.mode")
		token := c.Query("hub.verify_token")
		challenge := c.Query("hub.challenge")

		ok := verifyToken != "" && mode == "subscribe" &&
			subtle.ConstantTimeCompare([]byte(token), []byte(verifyToken)) == 1

		logrus.WithFields(logrus.Fields{
			"path":     c.FullPath(),
			"mode":     mode,
			"token_ok": ok,
		}).Info("[webhook] verify")

		if ok {
			c.String(http.StatusOK, "%s", challenge)
			return
		}
		c.String(http.StatusForbidden, "forbidden")
	}
}

// POST /webhook e POST /api/webhook
//
// Meta only needs a 2xx: once the raw event is stored the answer is always "ok",
// whatever happened to the replies.
func WebhookReceive(appSecret string, dispatcher DeliveryHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			c.String(http.StatusBadRequest, "failed to read body")
			return
		}

		if appSecret != "" {
			if ok, reason := verifyMetaSignature(c, raw, appSecret); !ok {
				logrus.WithField("reason", reason).Warn("[webhook] signature rejected")
				c.String(http.StatusForbidden, "forbidden")
				return
			}
		}

		var payload engine.WebhookPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			c.String(http.StatusBadRequest, "invalid json")
			return
		}

		res, err := dispatcher.HandleDelivery(c.Request.Context(), raw, payload)
		if err != nil {
			// sem o evento gravado deixamos a Meta reenviar
			logrus.WithError(err).WithField("request_id", res.RequestID).Error("[webhook] failed to store raw event")
			c.String(http.StatusInternalServerError, "error")
			return
		}

		c.String(http.StatusOK, "ok")
	}
}
