package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-sms-backend/internal/domain"
)

func newIdemDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:idem_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if migrate {
		if err := db.AutoMigrate(&domain.Idempotency{}); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestGetIdempotency_BlankScopeOrKey(t *testing.T) {
	db := newIdemDB(t, true)
	now := time.Now()
	for _, tc := range [][2]string{{"  ", "k1"}, {"sms", ""}} {
		if rec, err := GetIdempotency(context.Background(), db, "u1", tc[0], tc[1], now); rec != nil || !errors.Is(err, ErrNotFound) {
			t.Fatalf("scope=%q key=%q: (%v, %v)", tc[0], tc[1], rec, err)
		}
	}
}

func TestCreateThenGetIdempotency(t *testing.T) {
	db := newIdemDB(t, true)
	ctx := context.Background()
	start := time.Now().UTC()

	rec, err := CreateIdempotency(ctx, db, "u1", "sms", "k1", "m1", time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.MessageID != "m1" || !rec.ExpiresAt.After(start) || rec.ExpiresAt.After(start.Add(2*time.Hour)) {
		t.Fatalf("record=%+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "u1", "sms", "k1", time.Now())
	if err != nil || got.MessageID != "m1" {
		t.Fatalf("get: (%+v, %v)", got, err)
	}

	// Scoped per user and per operation.
	if _, err := GetIdempotency(ctx, db, "u2", "sms", "k1", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user: %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "u1", "rcs", "k1", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other scope: %v", err)
	}

	// Not visible once expired.
	if _, err := GetIdempotency(ctx, db, "u1", "sms", "k1", start.Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired: %v", err)
	}
}

func TestCreateIdempotency_LiveKeyIsDuplicate(t *testing.T) {
	db := newIdemDB(t, true)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "sms", "k1", "m1", time.Hour); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "sms", "k1", "m2", time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second: want ErrDuplicate, got %v", err)
	}
	got, _ := GetIdempotency(ctx, db, "u1", "sms", "k1", time.Now())
	if got == nil || got.MessageID != "m1" {
		t.Fatalf("live key overwritten: %+v", got)
	}
}

func TestCreateIdempotency_ReclaimsExpiredKey(t *testing.T) {
	db := newIdemDB(t, true)
	ctx := context.Background()
	past := time.Now().UTC().Add(-2 * time.Hour)

	stale := &domain.Idempotency{UserID: "u1", Scope: "sms", Key: "k1", MessageID: "old", CreatedAt: past, ExpiresAt: past.Add(time.Hour)}
	if err := db.Create(stale).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := CreateIdempotency(ctx, db, "u1", "sms", "k1", "new", time.Hour); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	got, err := GetIdempotency(ctx, db, "u1", "sms", "k1", time.Now())
	if err != nil || got.MessageID != "new" {
		t.Fatalf("after reclaim: (%+v, %v)", got, err)
	}
	var n int64
	db.Model(&domain.Idempotency{}).Count(&n)
	if n != 1 {
		t.Fatalf("rows=%d; want 1", n)
	}
}

func TestCreateIdempotency_MissingTable(t *testing.T) {
	db := newIdemDB(t, false)
	_, err := CreateIdempotency(context.Background(), db, "u1", "sms", "k1", "m1", time.Minute)
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("want a storage error, got %v", err)
	}
}
