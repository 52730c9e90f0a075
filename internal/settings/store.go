package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/limitwarden/limitwarden/internal/models"
)

var (
	storeMu  sync.RWMutex
	storeDB  *gorm.DB
	snapshot map[string]json.RawMessage
)

// Bind attaches the settings store to a database connection and loads the
// initial snapshot.
func Bind(conn *gorm.DB) error {
	storeMu.Lock()
	storeDB = conn
	storeMu.Unlock()
	return Refresh()
}

// Refresh reloads the settings snapshot from the database.
func Refresh() error {
	storeMu.RLock()
	conn := storeDB
	storeMu.RUnlock()
	if conn == nil {
		return fmt.Errorf("settings: store is not bound")
	}

	var rows []models.Setting
	if errFind := conn.Find(&rows).Error; errFind != nil {
		return fmt.Errorf("settings: load: %w", errFind)
	}

	next := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		next[key] = append(json.RawMessage(nil), row.Value...)
	}

	storeMu.Lock()
	snapshot = next
	storeMu.Unlock()
	return nil
}

// DBConfigValue returns the raw JSON value stored for key, if present.
func DBConfigValue(key string) (json.RawMessage, bool) {
	storeMu.RLock()
	defer storeMu.RUnlock()
	raw, ok := snapshot[key]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), raw...), true
}

// Update persists one setting value and refreshes the snapshot.
func Update(key string, value json.RawMessage) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("settings: empty key")
	}
	if !json.Valid(value) {
		return fmt.Errorf("settings: value for %s is not valid JSON", key)
	}

	storeMu.RLock()
	conn := storeDB
	storeMu.RUnlock()
	if conn == nil {
		return fmt.Errorf("settings: store is not bound")
	}

	row := models.Setting{Key: key, Value: datatypes.JSON(value)}
	errSave := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if errSave != nil {
		return fmt.Errorf("settings: save %s: %w", key, errSave)
	}
	return Refresh()
}

// ParseBool interprets a raw JSON setting value as a boolean.
func ParseBool(raw json.RawMessage) (bool, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false, false
	}
	var parsedBool bool
	if errUnmarshalBool := json.Unmarshal(raw, &parsedBool); errUnmarshalBool == nil {
		return parsedBool, true
	}
	var parsedString string
	if errUnmarshalString := json.Unmarshal(raw, &parsedString); errUnmarshalString == nil {
		switch strings.ToLower(strings.TrimSpace(parsedString)) {
		case "1", "true", "yes", "y", "on":
			return true, true
		case "0", "false", "no", "n", "off":
			return false, true
		default:
			return false, false
		}
	}
	var parsedFloat float64
	if errUnmarshalFloat := json.Unmarshal(raw, &parsedFloat); errUnmarshalFloat == nil {
		if math.IsNaN(parsedFloat) || math.IsInf(parsedFloat, 0) {
			return false, false
		}
		if parsedFloat == 1 {
			return true, true
		}
		if parsedFloat == 0 {
			return false, true
		}
	}
	return false, false
}

// ParseString interprets a raw JSON setting value as a trimmed string.
func ParseString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	var parsedString string
	if errUnmarshal := json.Unmarshal(raw, &parsedString); errUnmarshal == nil {
		return strings.TrimSpace(parsedString), true
	}
	return "", false
}

// ParseNonNegativeInt interprets a raw JSON setting value as an int >= 0.
func ParseNonNegativeInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	var parsedInt int
	if errUnmarshalInt := json.Unmarshal(raw, &parsedInt); errUnmarshalInt == nil {
		return parsedInt, parsedInt >= 0
	}
	var parsedString string
	if errUnmarshalString := json.Unmarshal(raw, &parsedString); errUnmarshalString == nil {
		parsed, errParse := strconv.Atoi(strings.TrimSpace(parsedString))
		if errParse != nil {
			return 0, false
		}
		return parsed, parsed >= 0
	}
	var parsedFloat float64
	if errUnmarshalFloat := json.Unmarshal(raw, &parsedFloat); errUnmarshalFloat == nil {
		if math.IsNaN(parsedFloat) || math.IsInf(parsedFloat, 0) {
			return 0, false
		}
		if parsedFloat < 0 || parsedFloat != math.Trunc(parsedFloat) {
			return 0, false
		}
		return int(parsedFloat), true
	}
	return 0, false
}

// ParseFloat interprets a raw JSON setting value as a finite float64.
func ParseFloat(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	var parsedFloat float64
	if errUnmarshalFloat := json.Unmarshal(raw, &parsedFloat); errUnmarshalFloat == nil {
		if math.IsNaN(parsedFloat) || math.IsInf(parsedFloat, 0) {
			return 0, false
		}
		return parsedFloat, true
	}
	var parsedString string
	if errUnmarshalString := json.Unmarshal(raw, &parsedString); errUnmarshalString == nil {
		parsed, errParse := strconv.ParseFloat(strings.TrimSpace(parsedString), 64)
		if errParse != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
