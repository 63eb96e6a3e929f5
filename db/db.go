package db

import (
	"fmt"
	"os"
	"path/filepath"

	"wabiz/config"
	"wabiz/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/sirupsen/logrus"
)

// Connect abre conexão com o banco (sqlite3 por padrão).
func Connect(conf config.Configuration) (*gorm.DB, error) {
	var (
		conn *gorm.DB
		err  error
	)

	switch conf.Database {
	case "postgres", "postgresql":
		logrus.Info("Utilizando conexão com o postgresql...")
		path := "host=" + conf.DbHost + " port=" + conf.DbPort
		path += " user=" + conf.DbUser + " dbname=" + conf.DbName
		path += " password=" + conf.DbPass + " sslmode=disable"
		conn, err = gorm.Open("postgres", path)
	default:
		logrus.Info("Utilizando conexão com o sqlite3...")
		file := conf.DbPath
		if file == "" {
			file = "db/database.db"
		}
		if file != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		conn, err = gorm.Open("sqlite3", file)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", conf.Database, err)
	}

	conn.LogMode(logrus.IsLevelEnabled(logrus.DebugLevel))

	if conf.AutoMigrate {
		if err := Migrate(conn); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// Migrate creates or updates every table the webhook core reads or writes.
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&models.Channel{},
		&models.Conversation{},
		&models.Message{},
		&models.WebhookEvent{},
		&models.MetaToken{},
		&models.Bot{},
		&models.Flow{},
	).Error
	if err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	// unicidade (tenant, canal, contato): ensure-conversation depende dela
	err = conn.Model(&models.Conversation{}).
		AddUniqueIndex("idx_conversations_key", "tenant_id", "channel_id", "contact_phone").Error
	if err != nil {
		return fmt.Errorf("conversation unique index: %w", err)
	}
	return nil
}
