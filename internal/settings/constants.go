package settings

// DB config keys and defaults for runtime-tunable engine settings.
const (
	// GateRedisEnabledKey toggles Redis-backed admission counting.
	GateRedisEnabledKey = "GATE_REDIS_ENABLED"
	// GateRedisAddrKey defines the Redis address for the gate backend.
	GateRedisAddrKey = "GATE_REDIS_ADDR"
	// GateRedisPasswordKey defines the Redis password for the gate backend.
	GateRedisPasswordKey = "GATE_REDIS_PASSWORD"
	// GateRedisDBKey defines the Redis DB index for the gate backend.
	GateRedisDBKey = "GATE_REDIS_DB"
	// GateRedisPrefixKey defines the Redis key prefix for the gate backend.
	GateRedisPrefixKey = "GATE_REDIS_PREFIX"
	// ArbiterIntervalSecondsKey controls the evaluation interval in seconds.
	ArbiterIntervalSecondsKey = "ARBITER_INTERVAL_SECONDS"
	// ArbiterMinConfidenceKey gates oracle decisions below this confidence.
	ArbiterMinConfidenceKey = "ARBITER_MIN_CONFIDENCE"
	// GovernanceThresholdKey is the scaling factor above which changes defer.
	GovernanceThresholdKey = "GOVERNANCE_THRESHOLD"
	// GovernanceAutoApproveKey toggles timed auto-approval of pending entries.
	GovernanceAutoApproveKey = "GOVERNANCE_AUTO_APPROVE"
	// GovernanceGraceSecondsKey is the auto-approval grace period in seconds.
	GovernanceGraceSecondsKey = "GOVERNANCE_GRACE_SECONDS"
	// GovernanceEntryTTLSecondsKey expires pending entries in manual mode; 0 keeps them forever.
	GovernanceEntryTTLSecondsKey = "GOVERNANCE_ENTRY_TTL_SECONDS"

	// DefaultGateRedisEnabled keeps admission counting in process memory.
	DefaultGateRedisEnabled = false
	// DefaultGateRedisPrefix is the fallback Redis key prefix.
	DefaultGateRedisPrefix = "lw:gate"
	// DefaultArbiterIntervalSeconds is the fallback evaluation interval.
	DefaultArbiterIntervalSeconds = 3
	// DefaultArbiterMinConfidence is the fallback confidence floor.
	DefaultArbiterMinConfidence = 0.60
	// DefaultGovernanceThreshold is the fallback scaling factor ceiling.
	DefaultGovernanceThreshold = 1.8
	// DefaultGovernanceAutoApprove keeps approval strictly manual.
	DefaultGovernanceAutoApprove = false
	// DefaultGovernanceGraceSeconds is the fallback auto-approval grace period.
	DefaultGovernanceGraceSeconds = 30
	// DefaultGovernanceEntryTTLSeconds keeps manual entries pending forever.
	DefaultGovernanceEntryTTLSeconds = 0
)
