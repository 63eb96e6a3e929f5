package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"wabiz/config"
	"wabiz/credentials"
	"wabiz/db"
	"wabiz/engine"
	"wabiz/events"
	"wabiz/locks"
	"wabiz/metrics"
	"wabiz/router"
	"wabiz/tools"
)

// App holds the wired service.
type App struct {
	Config     config.Configuration
	DB         *gorm.DB
	Metrics    *metrics.Collector
	Events     events.Publisher
	Redis      *redis.Client
	Dispatcher *engine.Dispatcher
	Desk       *engine.AgentDesk
}

// NewApp connects the database and the optional redis and amqp backends and
// builds the routing core on top of them.
func NewApp(ctx context.Context, cfg config.Configuration) (*App, error) {
	conn, err := db.Connect(cfg)
	if err != nil {
		return nil, err
	}
	return newAppWithDB(ctx, cfg, conn)
}

func newAppWithDB(ctx context.Context, cfg config.Configuration, conn *gorm.DB) (*App, error) {
	a := &App{Config: cfg, DB: conn, Metrics: metrics.NewCollector(), Events: events.Noop{}}

	var locker locks.Locker = locks.Noop{}
	if cfg.Redis.Enabled {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		locker = locks.NewRedis(a.Redis, time.Duration(cfg.Redis.LockTTLSeconds)*time.Second)
		logrus.WithField("addr", cfg.Redis.Addr).Info("conversation locks on redis")
	}

	if cfg.Amqp.URL != "" {
		pub, err := events.NewAMQP(cfg.Amqp.URL, cfg.Amqp.Exchange)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("amqp: %w", err)
		}
		a.Events = pub
		logrus.WithField("exchange", cfg.Amqp.Exchange).Info("message events on amqp")
	}

	secrets := config.NewSecretStore(cfg.Secrets)
	resolver := credentials.NewResolver(a.Metrics.RecordCredential,
		credentials.StoreStrategy{DB: conn, Provider: cfg.Credentials.Provider},
		credentials.AliasTableStrategy{Table: cfg.Credentials.AliasSecrets, Secrets: secrets},
		credentials.DerivedNameStrategy{Prefix: cfg.Credentials.DerivedPrefix, Secrets: secrets},
	)

	graph := tools.NewGraphClient(cfg.Graph.BaseURL, cfg.Graph.ApiVersion, time.Duration(cfg.Graph.TimeoutSeconds)*time.Second)

	outbox := &engine.Outbox{
		DB:      conn,
		Sender:  graph,
		Tokens:  resolver,
		Events:  a.Events,
		Metrics: a.Metrics,
	}
	chain := engine.NewChain(
		&engine.StateMachine{DB: conn, Outbox: outbox, Script: engine.Script{SchedulingURL: cfg.Dialogue.SchedulingURL}},
		&engine.RuleEngine{DB: conn, Outbox: outbox},
		&engine.DefaultResponder{DB: conn, Outbox: outbox},
	)

	a.Dispatcher = &engine.Dispatcher{
		DB:            conn,
		Conversations: &engine.ConversationRepo{DB: conn},
		Chain:         chain,
		Outbox:        outbox,
		Locker:        locker,
		Metrics:       a.Metrics,
	}
	a.Desk = &engine.AgentDesk{
		Outbox:    outbox,
		Templates: graph,
	}
	return a, nil
}

// Router builds the gin engine with every route mounted.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	router.Initialize(r, a.Config, router.Deps{
		DB:         a.DB,
		Dispatcher: a.Dispatcher,
		Desk:       a.Desk,
		Metrics:    a.Metrics,
	})
	return r
}

func (a *App) Close() {
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			logrus.WithError(err).Warn("close publisher")
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
