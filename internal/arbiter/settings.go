package arbiter

import (
	"time"

	internalsettings "github.com/limitwarden/limitwarden/internal/settings"
)

// SettingsConfig captures arbiter settings stored in DB config.
type SettingsConfig struct {
	Interval            time.Duration
	MinConfidence       float64
	GovernanceThreshold float64
}

// LoadSettingsConfig loads the current arbiter settings snapshot.
func LoadSettingsConfig() SettingsConfig {
	cfg := SettingsConfig{
		Interval:            time.Duration(internalsettings.DefaultArbiterIntervalSeconds) * time.Second,
		MinConfidence:       internalsettings.DefaultArbiterMinConfidence,
		GovernanceThreshold: internalsettings.DefaultGovernanceThreshold,
	}

	if raw, ok := internalsettings.DBConfigValue(internalsettings.ArbiterIntervalSecondsKey); ok {
		if seconds, okParse := internalsettings.ParseNonNegativeInt(raw); okParse && seconds > 0 {
			cfg.Interval = time.Duration(seconds) * time.Second
		}
	}
	if raw, ok := internalsettings.DBConfigValue(internalsettings.ArbiterMinConfidenceKey); ok {
		if confidence, okParse := internalsettings.ParseFloat(raw); okParse && confidence >= 0 && confidence <= 1 {
			cfg.MinConfidence = confidence
		}
	}
	if raw, ok := internalsettings.DBConfigValue(internalsettings.GovernanceThresholdKey); ok {
		if threshold, okParse := internalsettings.ParseFloat(raw); okParse && threshold >= 1 {
			cfg.GovernanceThreshold = threshold
		}
	}
	return cfg
}
