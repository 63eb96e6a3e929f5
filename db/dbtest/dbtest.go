// Package dbtest opens throwaway sqlite databases for package tests.
package dbtest

import (
	"testing"

	"wabiz/db"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

// Open returns a migrated in-memory database closed at test cleanup.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// :memory: existe por conexão; uma só conexão mantém o mesmo banco
	conn.DB().SetMaxOpenConns(1)
	conn.LogMode(false)

	if err := db.Migrate(conn); err != nil {
		conn.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}
