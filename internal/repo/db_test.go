package repo

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-sms-backend/internal/domain"
)

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "nope", "app.db")
	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error for %q, got db=%v err=%v", bad, db, err)
	}
	if !os.IsNotExist(err) {
		t.Fatalf("want not-exist error, got %v", err)
	}
}

func TestOpenSQLite_PragmasOnEveryConnection(t *testing.T) {
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if got := sqlDB.Stats().MaxOpenConnections; got != 10 {
		t.Fatalf("MaxOpenConnections=%d; want 10", got)
	}

	// Hold two connections at once so the pool cannot hand back the same one.
	ctx := context.Background()
	conns := make([]*sql.Conn, 2)
	for i := range conns {
		c, err := sqlDB.Conn(ctx)
		if err != nil {
			t.Fatalf("conn%d: %v", i+1, err)
		}
		defer c.Close()
		conns[i] = c
	}

	checks := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}
	for _, tc := range checks {
		for i, c := range conns {
			var got string
			if err := c.QueryRowContext(ctx, "PRAGMA "+tc.pragma).Scan(&got); err != nil {
				t.Fatalf("conn%d PRAGMA %s: %v", i+1, tc.pragma, err)
			}
			if strings.ToLower(got) != tc.want {
				t.Fatalf("conn%d %s=%q; want %q", i+1, tc.pragma, got, tc.want)
			}
		}
	}
}

func TestAutoMigrate_SchemaUsable(t *testing.T) {
	db, err := Open("", filepath.Join(t.TempDir(), "schema.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []string{"messages", "contacts", "send_idempotency_keys"} {
		if !m.HasTable(tbl) {
			t.Fatalf("table %s missing", tbl)
		}
	}
	if !m.HasIndex(&domain.Message{}, "ux_messages_provider_sid") {
		t.Fatalf("provider sid unique index missing")
	}

	now := time.Now().UTC()
	sid := "SM1"
	msg := &domain.Message{ID: "m1", ProviderSID: &sid, UserID: "u1", To: "+15551234567", Type: domain.MessageTypeSMS, Status: domain.StatusPending, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}
	dup := *msg
	dup.ID = "m2"
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected unique violation on provider_sid")
	}

	var got domain.Message
	if err := db.First(&got, "id = ?", "m1").Error; err != nil || got.To != "+15551234567" || got.ProviderSID == nil || *got.ProviderSID != "SM1" {
		t.Fatalf("readback: err=%v got=%+v", err, got)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "x"); err == nil || !strings.Contains(err.Error(), "unsupported driver") {
		t.Fatalf("expected unsupported driver error, got %v", err)
	}
}

func TestEnableTracing_RegistersPlugin(t *testing.T) {
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "trace.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := EnableTracing(db); err != nil {
		t.Fatalf("EnableTracing: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate with tracing: %v", err)
	}
}

var _ func(string) (*gorm.DB, error) = OpenPostgres
