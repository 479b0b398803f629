package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-sms-backend/internal/domain"
	"github.com/tbourn/go-sms-backend/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection serializes writers on the shared in-memory database.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedMessage(t *testing.T, db *gorm.DB, userID, sid string, status domain.Status) *domain.Message {
	t.Helper()
	m := &domain.Message{
		UserID: userID,
		To:     "+14155550100",
		From:   "+15550001111",
		Body:   "hello",
		Type:   domain.MessageTypeSMS,
		Status: status,
	}
	if sid != "" {
		s := sid
		m.ProviderSID = &s
	}
	m.CreatedAt = time.Now().UTC().Add(-time.Hour)
	if err := repo.CreateMessage(context.Background(), db, m); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return m
}

func reload(t *testing.T, db *gorm.DB, id string) *domain.Message {
	t.Helper()
	m, err := repo.GetMessageByID(context.Background(), db, id)
	if err != nil {
		t.Fatalf("reload %s: %v", id, err)
	}
	return m
}
