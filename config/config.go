package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

const envPrefix = "WABIZ"

type Configuration struct {
	ApiPort     string   `mapstructure:"api_port"`
	LogLevel    string   `mapstructure:"log_level"`
	LogFormat   string   `mapstructure:"log_format"` // "text" ou "json"
	AdminApiKey string   `mapstructure:"admin_api_key"`
	CorsOrigins []string `mapstructure:"cors_origins"`

	Database    string `mapstructure:"database"` // "sqlite3" ou "postgres"
	DbHost      string `mapstructure:"db_host"`
	DbPort      string `mapstructure:"db_port"`
	DbUser      string `mapstructure:"db_user"`
	DbName      string `mapstructure:"db_name"`
	DbPass      string `mapstructure:"db_pass"`
	DbPath      string `mapstructure:"db_path"`
	AutoMigrate bool   `mapstructure:"automigrate"`

	Webhook     WebhookConfig     `mapstructure:"webhook"`
	Graph       GraphConfig       `mapstructure:"graph"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Amqp        AmqpConfig        `mapstructure:"amqp"`
	Workers     WorkersConfig     `mapstructure:"workers"`
	Dialogue    DialogueConfig    `mapstructure:"dialogue"`

	// Secrets extra (alias -> token) lidos pelo SecretStore além do ambiente.
	Secrets map[string]string `mapstructure:"secrets"`
}

type WebhookConfig struct {
	VerifyToken string `mapstructure:"verify_token"`
	AppSecret   string `mapstructure:"app_secret"`
}

type GraphConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	ApiVersion     string `mapstructure:"api_version"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type CredentialsConfig struct {
	Provider      string            `mapstructure:"provider"`
	AliasSecrets  map[string]string `mapstructure:"alias_secrets"`
	DerivedPrefix string            `mapstructure:"derived_prefix"`
}

type RedisConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Addr           string `mapstructure:"addr"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	LockTTLSeconds int    `mapstructure:"lock_ttl_seconds"`
}

type AmqpConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type WorkersConfig struct {
	IdleCloseHours  int `mapstructure:"idle_close_hours"`
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

type DialogueConfig struct {
	SchedulingURL string `mapstructure:"scheduling_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("admin_api_key", "")
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("database", "sqlite3")
	v.SetDefault("db_host", "")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "")
	v.SetDefault("db_name", "")
	v.SetDefault("db_pass", "")
	v.SetDefault("db_path", "db/database.db")
	v.SetDefault("automigrate", false)

	v.SetDefault("webhook.verify_token", "")
	v.SetDefault("webhook.app_secret", "")

	v.SetDefault("graph.base_url", "https://graph.facebook.com")
	v.SetDefault("graph.api_version", "v20.0")
	v.SetDefault("graph.timeout_seconds", 30)

	v.SetDefault("credentials.provider", "facebook")
	v.SetDefault("credentials.alias_secrets", map[string]string{
		"default":    "META_ACCESS_TOKEN",
		"secundario": "META_ACCESS_TOKEN_SECUNDARIO",
	})
	v.SetDefault("credentials.derived_prefix", "META_TOKEN_")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl_seconds", 30)

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "wabiz.messages")

	v.SetDefault("workers.idle_close_hours", 24)
	v.SetDefault("workers.interval_seconds", 60)

	v.SetDefault("dialogue.scheduling_url", "https://calendly.com/")
}

// Load reads the JSON config file at path (optional) and overlays WABIZ_* environment variables.
func Load(path string) (Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			// arquivo ausente não é erro: tudo pode vir do ambiente
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return Configuration{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return Configuration{}, fmt.Errorf("decode config: %w", err)
	}

	c.Webhook.VerifyToken = strings.TrimSpace(c.Webhook.VerifyToken)
	c.Webhook.AppSecret = strings.TrimSpace(c.Webhook.AppSecret)
	if c.Graph.TimeoutSeconds <= 0 {
		c.Graph.TimeoutSeconds = 30
	}
	if c.Workers.IntervalSeconds <= 0 {
		c.Workers.IntervalSeconds = 60
	}

	return c, nil
}

func (c Configuration) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ApiPort, validation.Required),
		validation.Field(&c.Database, validation.Required, validation.In("sqlite3", "postgres", "postgresql")),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
		validation.Field(&c.Graph, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Graph,
				validation.Field(&c.Graph.BaseURL, validation.Required),
				validation.Field(&c.Graph.ApiVersion, validation.Required),
			)
		})),
		validation.Field(&c.Redis, validation.By(func(any) error {
			if !c.Redis.Enabled {
				return nil
			}
			return validation.ValidateStruct(&c.Redis,
				validation.Field(&c.Redis.Addr, validation.Required),
				validation.Field(&c.Redis.LockTTLSeconds, validation.Required, validation.Min(1)),
			)
		})),
	)
}
