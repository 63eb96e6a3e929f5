package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"

	"wabiz/config"
	"wabiz/controllers"
	"wabiz/db"
	"wabiz/engine"
	"wabiz/metrics"
	"wabiz/middleware"
)

// Deps is what the routes need besides the configuration.
type Deps struct {
	DB         *gorm.DB
	Dispatcher controllers.DeliveryHandler
	Desk       *engine.AgentDesk
	Metrics    *metrics.Collector
}

// Initialize wires all routes and middlewares:
// webhook (public, Meta), health/metrics and the admin API (api key).
func Initialize(r *gin.Engine, cfg config.Configuration, deps Deps) {
	// verbo errado no webhook responde 405
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(cfg.CorsOrigins...))
	r.Use(db.SetDBtoContext(deps.DB))

	verify := controllers.WebhookVerify(cfg.Webhook.VerifyToken)
	receive := controllers.WebhookReceive(cfg.Webhook.AppSecret, deps.Dispatcher)

	// Webhook (WhatsApp Cloud API): os dois caminhos ficam ativos
	r.GET("/webhook", Logger(), verify)
	r.POST("/webhook", Logger(), receive)

	api := r.Group("/api")
	api.GET("/webhook", Logger(), verify)
	api.POST("/webhook", Logger(), receive)

	// Public (no auth)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	// Admin routes (api key)
	admin := api.Group("")
	admin.Use(Authorizer(cfg.AdminApiKey))

	// Webhook events (audit)
	admin.GET("/webhook-events", Logger(), controllers.GetWebhookEvents)
	admin.GET("/webhook-events/:id", Logger(), controllers.GetWebhookEventByID)

	// Conversations
	admin.GET("/conversations", Logger(), controllers.GetConversations)
	admin.GET("/conversations/:id/messages", Logger(), controllers.GetConversationMessages)
	admin.POST("/conversations/:id/messages", Logger(), controllers.SendAgentMessage(deps.Desk))

	// Messages Dashboard
	admin.GET("/messages/dashboard/per-day", Logger(), controllers.GetMessagesPerDay)
	admin.GET("/messages/dashboard/list", Logger(), controllers.GetMessagesDashboardList)

	logrus.Info("Routes initialized")
}
