package watcher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/limitwarden/limitwarden/internal/db"
	"github.com/limitwarden/limitwarden/internal/models"
	internalsettings "github.com/limitwarden/limitwarden/internal/settings"
)

func openWatcherDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "watcher-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	if errBind := internalsettings.Bind(conn); errBind != nil {
		t.Fatalf("bind settings: %v", errBind)
	}
	return conn
}

func TestPollSettings_RefreshesOnChange(t *testing.T) {
	conn := openWatcherDB(t)
	w := New(conn)

	w.pollSettings(context.Background(), true)
	if !w.hasLatest {
		t.Fatalf("expected latest row tracked after the forced poll")
	}

	// Write a new row behind the snapshot's back; the next poll picks it up.
	row := models.Setting{
		Key:       internalsettings.GateRedisAddrKey,
		Value:     datatypes.JSON(`"localhost:6379"`),
		UpdatedAt: time.Now().UTC().Add(time.Minute),
	}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("create setting: %v", errCreate)
	}

	w.pollSettings(context.Background(), false)

	raw, ok := internalsettings.DBConfigValue(internalsettings.GateRedisAddrKey)
	if !ok {
		t.Fatalf("expected snapshot refreshed after change")
	}
	if addr, okParse := internalsettings.ParseString(raw); !okParse || addr != "localhost:6379" {
		t.Fatalf("unexpected snapshot value: %s", raw)
	}
}

func TestPollSettings_NoChangeNoRefresh(t *testing.T) {
	conn := openWatcherDB(t)
	w := New(conn)

	w.pollSettings(context.Background(), true)
	before := w.latestAt

	w.pollSettings(context.Background(), false)
	if !w.latestAt.Equal(before) {
		t.Fatalf("expected tracked timestamp unchanged without writes")
	}
}

func TestStartStop_Idempotent(t *testing.T) {
	conn := openWatcherDB(t)
	w := New(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(ctx)
	w.Start(ctx) // second start is a no-op
	w.Stop()
	w.Stop() // second stop is a no-op
}
