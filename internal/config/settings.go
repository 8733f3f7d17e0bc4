package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/real-rm/goconfig"
	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/util"
	"golang.org/x/sync/singleflight"
)

// Settings are the runtime switches administrators toggle without a restart.
type Settings struct {
	AIEnabled         bool
	AIAutoReply       bool
	MaintenanceMode   bool
	MaxMessageLength  int
	AILimitPerUser    int
	AILimitPerGroup   int
	AICooldownSeconds int
	AISystemPrompt    string
}

// DefaultSettings returns the built-in values.
func DefaultSettings() Settings {
	return Settings{
		AIEnabled:         constants.DefaultAIEnabled,
		AIAutoReply:       constants.DefaultAIAutoReply,
		MaintenanceMode:   constants.DefaultMaintenanceMode,
		MaxMessageLength:  constants.DefaultMaxMessageLength,
		AILimitPerUser:    constants.DefaultAILimitPerUser,
		AILimitPerGroup:   constants.DefaultAILimitPerGroup,
		AICooldownSeconds: constants.DefaultAICooldownSeconds,
	}
}

// AICooldown is the per-room spacing between assistant replies.
func (s Settings) AICooldown() time.Duration {
	return time.Duration(s.AICooldownSeconds) * time.Second
}

// Merge overlays the keys present in doc.
func (s Settings) Merge(doc *storage.SystemConfig) Settings {
	if doc == nil {
		return s
	}
	if doc.AIEnabled != nil {
		s.AIEnabled = *doc.AIEnabled
	}
	if doc.AIAutoReply != nil {
		s.AIAutoReply = *doc.AIAutoReply
	}
	if doc.MaintenanceMode != nil {
		s.MaintenanceMode = *doc.MaintenanceMode
	}
	if doc.MaxMessageLength != nil && *doc.MaxMessageLength > 0 {
		s.MaxMessageLength = *doc.MaxMessageLength
	}
	if doc.AILimitPerUser != nil && *doc.AILimitPerUser >= 0 {
		s.AILimitPerUser = *doc.AILimitPerUser
	}
	if doc.AILimitPerGroup != nil && *doc.AILimitPerGroup >= 0 {
		s.AILimitPerGroup = *doc.AILimitPerGroup
	}
	if doc.AICooldownSeconds != nil && *doc.AICooldownSeconds >= 0 {
		s.AICooldownSeconds = *doc.AICooldownSeconds
	}
	if doc.AISystemPrompt != nil {
		s.AISystemPrompt = *doc.AISystemPrompt
	}
	return s
}

func (s Settings) validate() []error {
	var errs []error
	if s.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("settings: max_message_length must be positive"))
	}
	if s.AILimitPerUser < 0 {
		errs = append(errs, errors.New("settings: ai_limit_per_user cannot be negative"))
	}
	if s.AILimitPerGroup < 0 {
		errs = append(errs, errors.New("settings: ai_limit_per_group cannot be negative"))
	}
	if s.AICooldownSeconds < 0 {
		errs = append(errs, errors.New("settings: ai_cooldown_seconds cannot be negative"))
	}
	return errs
}

// loadSettings reads [linkup.settings] over the built-in defaults.
func loadSettings(cfg *goconfig.ConfigAccessor) (Settings, error) {
	s := DefaultSettings()
	var err error

	bools := []struct {
		key string
		dst *bool
	}{
		{"linkup.settings.ai_enabled", &s.AIEnabled},
		{"linkup.settings.ai_auto_reply", &s.AIAutoReply},
		{"linkup.settings.maintenance_mode", &s.MaintenanceMode},
	}
	for _, b := range bools {
		*b.dst, err = cfg.ConfigBoolWithDefault(b.key, *b.dst)
		// No else needed: early return pattern (guard clause)
		if err != nil {
			return s, fmt.Errorf("failed to get %s: %w", b.key, err)
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"linkup.settings.max_message_length", &s.MaxMessageLength},
		{"linkup.settings.ai_limit_per_user", &s.AILimitPerUser},
		{"linkup.settings.ai_limit_per_group", &s.AILimitPerGroup},
		{"linkup.settings.ai_cooldown_seconds", &s.AICooldownSeconds},
	}
	for _, i := range ints {
		*i.dst, err = cfg.ConfigIntWithDefault(i.key, *i.dst)
		// No else needed: early return pattern (guard clause)
		if err != nil {
			return s, fmt.Errorf("failed to get %s: %w", i.key, err)
		}
	}

	s.AISystemPrompt, err = cfg.ConfigStringWithDefault("linkup.settings.ai_system_prompt", "")
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return s, fmt.Errorf("failed to get linkup.settings.ai_system_prompt: %w", err)
	}
	return s, nil
}

// SettingsSource reads the settings document on every call. There is no
// cache: a toggle in the admin console applies to the very next event.
// Concurrent callers share one in-flight read.
type SettingsSource struct {
	store    storage.ConfigStore
	fallback Settings
	logger   *golog.Logger
	sfGroup  singleflight.Group
}

// NewSettingsSource layers the system_configs document over fallback.
func NewSettingsSource(store storage.ConfigStore, fallback Settings, logger *golog.Logger) *SettingsSource {
	return &SettingsSource{store: store, fallback: fallback, logger: logger}
}

// Current returns the effective settings. Storage failures fall back to the
// static values so a flaky read never blocks chat.
func (s *SettingsSource) Current(ctx context.Context) Settings {
	if s == nil {
		return DefaultSettings()
	}
	if s.store == nil {
		return s.fallback
	}
	// The read is shared, so it must not die with the first caller's connection.
	val, err, _ := s.sfGroup.Do("settings", func() (any, error) {
		readCtx, cancel := util.NewDetachedContext(ctx, constants.DefaultContextTimeout)
		defer cancel()
		return s.store.GetSystemConfig(readCtx)
	})
	if err != nil {
		// No else needed: optional operation (missing document is the normal case)
		if !errors.Is(err, storage.ErrNotFound) && s.logger != nil {
			util.LogError(s.logger, "config", "read system settings", err)
		}
		return s.fallback
	}
	doc, _ := val.(*storage.SystemConfig)
	return s.fallback.Merge(doc)
}
