package governance

import (
	"time"

	internalsettings "github.com/limitwarden/limitwarden/internal/settings"
)

// SettingsConfig captures governance settings stored in DB config.
type SettingsConfig struct {
	AutoApprove bool
	GracePeriod time.Duration
	EntryTTL    time.Duration
}

// LoadSettingsConfig loads the current governance settings snapshot.
func LoadSettingsConfig() SettingsConfig {
	cfg := SettingsConfig{
		AutoApprove: internalsettings.DefaultGovernanceAutoApprove,
		GracePeriod: time.Duration(internalsettings.DefaultGovernanceGraceSeconds) * time.Second,
		EntryTTL:    time.Duration(internalsettings.DefaultGovernanceEntryTTLSeconds) * time.Second,
	}

	if raw, ok := internalsettings.DBConfigValue(internalsettings.GovernanceAutoApproveKey); ok {
		if enabled, okParse := internalsettings.ParseBool(raw); okParse {
			cfg.AutoApprove = enabled
		}
	}
	if raw, ok := internalsettings.DBConfigValue(internalsettings.GovernanceGraceSecondsKey); ok {
		if seconds, okParse := internalsettings.ParseNonNegativeInt(raw); okParse {
			cfg.GracePeriod = time.Duration(seconds) * time.Second
		}
	}
	if raw, ok := internalsettings.DBConfigValue(internalsettings.GovernanceEntryTTLSecondsKey); ok {
		if seconds, okParse := internalsettings.ParseNonNegativeInt(raw); okParse {
			cfg.EntryTTL = time.Duration(seconds) * time.Second
		}
	}
	return cfg
}
