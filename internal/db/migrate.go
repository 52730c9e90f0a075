package db

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/limitwarden/limitwarden/internal/models"
	internalsettings "github.com/limitwarden/limitwarden/internal/settings"
)

// Migrate runs database migrations and seeds default settings.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.Setting{},
		&models.GovernanceEntry{},
		&models.AuditRecord{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errSeed := ensureDefaultSettings(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// ensureDefaultSettings seeds settings rows that the admin surface expects to
// exist, without overwriting operator changes.
func ensureDefaultSettings(conn *gorm.DB) error {
	defaults := map[string]any{
		internalsettings.GateRedisEnabledKey:       internalsettings.DefaultGateRedisEnabled,
		internalsettings.GateRedisPrefixKey:        internalsettings.DefaultGateRedisPrefix,
		internalsettings.GovernanceAutoApproveKey:  internalsettings.DefaultGovernanceAutoApprove,
		internalsettings.GovernanceGraceSecondsKey: internalsettings.DefaultGovernanceGraceSeconds,
		internalsettings.ArbiterIntervalSecondsKey: internalsettings.DefaultArbiterIntervalSeconds,
		internalsettings.ArbiterMinConfidenceKey:   internalsettings.DefaultArbiterMinConfidence,
		internalsettings.GovernanceThresholdKey:    internalsettings.DefaultGovernanceThreshold,
	}
	for key, value := range defaults {
		payload, errMarshal := json.Marshal(value)
		if errMarshal != nil {
			return fmt.Errorf("db: seed setting %s: %w", key, errMarshal)
		}
		var existing models.Setting
		errFind := conn.Where("key = ?", key).Take(&existing).Error
		if errFind == nil {
			continue
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("db: seed setting %s: %w", key, errFind)
		}
		record := models.Setting{Key: key, Value: datatypes.JSON(payload)}
		if errCreate := conn.Create(&record).Error; errCreate != nil {
			return fmt.Errorf("db: seed setting %s: %w", key, errCreate)
		}
	}
	return nil
}
