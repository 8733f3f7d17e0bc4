package constants

import (
	"strings"
	"testing"
)

func TestTimeoutInvariants(t *testing.T) {
	timeouts := map[string]int64{
		"DefaultContextTimeout": int64(DefaultContextTimeout),
		"LongContextTimeout":    int64(LongContextTimeout),
		"LLMClientTimeout":      int64(LLMClientTimeout),
		"MongoIndexTimeout":     int64(MongoIndexTimeout),
		"HealthCheckTimeout":    int64(HealthCheckTimeout),
		"ErrorBackoff":          int64(ErrorBackoff),
		"HTTPReadTimeout":       int64(HTTPReadTimeout),
		"HTTPWriteTimeout":      int64(HTTPWriteTimeout),
		"HTTPIdleTimeout":       int64(HTTPIdleTimeout),
		"ShutdownTimeout":       int64(ShutdownTimeout),
	}

	for name, val := range timeouts {
		if val <= 0 {
			t.Errorf("timeout %s must be positive, got %d", name, val)
		}
	}
}

func TestSecretInvariants(t *testing.T) {
	if MinJWTSecretLength < 32 {
		t.Errorf("MinJWTSecretLength must be >= 32 for 256-bit security, got %d", MinJWTSecretLength)
	}
	if len(WeakSecrets) == 0 {
		t.Error("WeakSecrets list must not be empty")
	}
}

func TestLimitsInvariants(t *testing.T) {
	limits := map[string]int{
		"DefaultMaxMessageSize":   DefaultMaxMessageSize,
		"SendBufferSize":          SendBufferSize,
		"RegistryShards":          RegistryShards,
		"MaxConsecutiveErrors":    MaxConsecutiveErrors,
		"ContextMessageCount":     ContextMessageCount,
		"DefaultMaxMessageLength": DefaultMaxMessageLength,
		"DefaultAILimitPerUser":   DefaultAILimitPerUser,
		"DefaultAILimitPerGroup":  DefaultAILimitPerGroup,
		"DefaultRunnerWorkers":    DefaultRunnerWorkers,
		"DefaultRunnerQueueSize":  DefaultRunnerQueueSize,
	}

	for name, val := range limits {
		if val <= 0 {
			t.Errorf("limit %s must be positive, got %d", name, val)
		}
	}

	if DefaultAILimitPerGroup < DefaultAILimitPerUser {
		t.Errorf("room quota (%d) should not be below the user quota (%d)", DefaultAILimitPerGroup, DefaultAILimitPerUser)
	}
}

func TestTriggerPhrasesAreLowercase(t *testing.T) {
	for _, trig := range AITriggers {
		if trig != strings.ToLower(trig) {
			t.Errorf("trigger %q must be lowercase for case-insensitive matching", trig)
		}
	}
	for _, phrase := range EscalationPhrases {
		if phrase != strings.ToLower(phrase) {
			t.Errorf("escalation phrase %q must be lowercase", phrase)
		}
	}
}

func TestReservedRoomsDistinct(t *testing.T) {
	if RoomAI == RoomHelp {
		t.Fatal("reserved rooms must be distinct")
	}
	if strings.HasPrefix(RoomAI, DirectRoomPrefix) || strings.HasPrefix(RoomHelp, DirectRoomPrefix) {
		t.Error("reserved rooms must not look like direct rooms")
	}
}
