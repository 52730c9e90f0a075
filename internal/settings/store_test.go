package settings

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/limitwarden/limitwarden/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "settings-test.db")
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := conn.AutoMigrate(&models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestBindAndUpdate_RoundTrip(t *testing.T) {
	conn := openTestDB(t)
	if errBind := Bind(conn); errBind != nil {
		t.Fatalf("bind: %v", errBind)
	}

	if _, ok := DBConfigValue(GateRedisAddrKey); ok {
		t.Fatalf("expected no value before update")
	}

	if errUpdate := Update(GateRedisAddrKey, json.RawMessage(`"localhost:6379"`)); errUpdate != nil {
		t.Fatalf("update: %v", errUpdate)
	}
	raw, ok := DBConfigValue(GateRedisAddrKey)
	if !ok {
		t.Fatalf("expected value after update")
	}
	if addr, okParse := ParseString(raw); !okParse || addr != "localhost:6379" {
		t.Fatalf("unexpected value: %s", raw)
	}

	// A second update for the same key overwrites instead of duplicating.
	if errUpdate := Update(GateRedisAddrKey, json.RawMessage(`"redis:6380"`)); errUpdate != nil {
		t.Fatalf("update again: %v", errUpdate)
	}
	var count int64
	if errCount := conn.Model(&models.Setting{}).Where("key = ?", GateRedisAddrKey).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected a single row for the key, got %d", count)
	}
}

func TestUpdate_RejectsInvalidInput(t *testing.T) {
	conn := openTestDB(t)
	if errBind := Bind(conn); errBind != nil {
		t.Fatalf("bind: %v", errBind)
	}

	if errUpdate := Update("  ", json.RawMessage(`1`)); errUpdate == nil {
		t.Fatalf("expected error for empty key")
	}
	if errUpdate := Update("k", json.RawMessage(`{broken`)); errUpdate == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

func TestParseBool(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
		ok   bool
	}{
		{`true`, true, true},
		{`false`, false, true},
		{`"yes"`, true, true},
		{`"off"`, false, true},
		{`1`, true, true},
		{`0`, false, true},
		{`"maybe"`, false, false},
		{`2`, false, false},
		{``, false, false},
	}
	for _, tc := range cases {
		got, ok := ParseBool(json.RawMessage(tc.raw))
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseBool(%q) = (%v, %v), want (%v, %v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseNonNegativeInt(t *testing.T) {
	cases := []struct {
		raw  string
		want int
		ok   bool
	}{
		{`3`, 3, true},
		{`0`, 0, true},
		{`-1`, 0, false},
		{`"42"`, 42, true},
		{`2.5`, 0, false},
		{`4.0`, 4, true},
		{`"abc"`, 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNonNegativeInt(json.RawMessage(tc.raw))
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("ParseNonNegativeInt(%q) = (%d, %v), want (%d, %v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseFloat(t *testing.T) {
	if got, ok := ParseFloat(json.RawMessage(`0.75`)); !ok || got != 0.75 {
		t.Fatalf("ParseFloat(0.75) = (%v, %v)", got, ok)
	}
	if got, ok := ParseFloat(json.RawMessage(`"1.8"`)); !ok || got != 1.8 {
		t.Fatalf("ParseFloat(\"1.8\") = (%v, %v)", got, ok)
	}
	if _, ok := ParseFloat(json.RawMessage(`"not-a-number"`)); ok {
		t.Fatalf("expected parse failure for non-numeric string")
	}
}
