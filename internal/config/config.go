// Package config builds the validated static configuration of the router from
// goconfig, with environment overrides for secrets, and serves the runtime
// settings that administrators can change while the process runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/real-rm/goconfig"
	"github.com/real-rm/linkup/internal/constants"
)

// Config holds all static configuration
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Database  DatabaseConfig
	LLM       LLMConfig
	Assistant AssistantConfig
	Redis     RedisConfig
	// Settings are the fallback values for runtime settings absent from system_configs.
	Settings Settings
}

// ServerConfig holds HTTP surface configuration
type ServerConfig struct {
	JWTSecret              string
	PathPrefix             string        // HTTP path prefix for all routes (default: "/linkup")
	AdminRateLimit         int           // Admin endpoint rate limit (requests per window)
	AdminRateWindow        time.Duration // Admin rate limit window
	CORSAllowedOrigins     []string
	TrustedProxies         []string
	MetricsAllowedNetworks []string
}

// WebSocketConfig holds per-connection limits
type WebSocketConfig struct {
	MaxMessageSize int64
	MaxConnections int // per user
	AllowedOrigins []string
	EventRate      float64 // inbound events per second per user
	EventBurst     int
}

// DatabaseConfig names the Mongo database. The connection itself is owned by gomongo.
type DatabaseConfig struct {
	Name string
}

// LLMConfig holds the provider fallback chain in configured order
type LLMConfig struct {
	Providers []LLMProviderConfig
	// HeaderTimeout bounds the wait for response headers. Streams themselves are not time-limited.
	HeaderTimeout time.Duration
}

// LLMProviderConfig holds configuration for a single LLM provider
type LLMProviderConfig struct {
	ID       string
	Name     string
	Type     string // "gemini", "openai", "anthropic", "dify"
	Endpoint string
	APIKey   string
	Model    string
}

// AssistantConfig sizes the AI task runner
type AssistantConfig struct {
	Workers   int
	QueueSize int
}

// RedisConfig enables the shared cooldown when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// SupportedProviderTypes lists the backends the llm package can build.
var SupportedProviderTypes = []string{"gemini", "openai", "anthropic", "dify"}

// Load reads the [linkup] section and the llm.providers array.
// Priority: Environment variable > Config file > Default.
// The result is validated before it is returned.
func Load(cfg *goconfig.ConfigAccessor) (*Config, error) {
	// No else needed: early return pattern (guard clause)
	if cfg == nil {
		return nil, errors.New("config accessor is required")
	}

	c := &Config{}
	var err error

	c.Server.JWTSecret = os.Getenv("JWT_SECRET")
	if c.Server.JWTSecret == "" {
		c.Server.JWTSecret, err = cfg.ConfigStringWithDefault("linkup.jwt_secret", "")
		// No else needed: early return pattern (guard clause)
		if err != nil {
			return nil, fmt.Errorf("failed to get JWT secret: %w", err)
		}
	}
	// No else needed: early return pattern (guard clause)
	if ContainsPlaceholder(c.Server.JWTSecret) {
		return nil, errors.New("JWT_SECRET contains placeholder value, set a real secret before deploying")
	}

	c.Server.PathPrefix = os.Getenv("LINKUP_PATH_PREFIX")
	if c.Server.PathPrefix == "" {
		c.Server.PathPrefix, err = cfg.ConfigStringWithDefault("linkup.path_prefix", constants.DefaultPathPrefix)
		// No else needed: early return pattern (guard clause)
		if err != nil {
			return nil, fmt.Errorf("failed to get path prefix: %w", err)
		}
	}

	c.Server.AdminRateLimit, err = cfg.ConfigIntWithDefault("linkup.admin_rate_limit", constants.DefaultAdminRateLimit)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin rate limit: %w", err)
	}
	c.Server.AdminRateWindow, err = durationWithDefault(cfg, "linkup.admin_rate_window", constants.DefaultRateWindow)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, err
	}
	c.Server.CORSAllowedOrigins, err = listWithDefault(cfg, "linkup.cors_allowed_origins", "")
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, err
	}
	c.Server.TrustedProxies, err = listWithDefault(cfg, "linkup.trusted_proxies", constants.DefaultTrustedProxies)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, err
	}
	c.Server.MetricsAllowedNetworks, err = listWithDefault(cfg, "linkup.metrics_allowed_networks", constants.DefaultMetricsAllowedNetworks)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, err
	}

	maxSize, err := cfg.ConfigIntWithDefault("linkup.max_message_size", constants.DefaultMaxMessageSize)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, fmt.Errorf("failed to get max message size: %w", err)
	}
	c.WebSocket.MaxMessageSize = int64(getEnvAsInt("MAX_MESSAGE_SIZE", maxSize))
	c.WebSocket.MaxConnections, err = cfg.ConfigIntWithDefault("linkup.max_connections_per_user", constants.DefaultMaxConnections)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, fmt.Errorf("failed to get max connections: %w", err)
	}
	c.WebSocket.AllowedOrigins, err = listWithDefault(cfg, "linkup.allowed_origins", "")
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, err
	}
	eventRate, err := cfg.ConfigIntWithDefault("linkup.event_rate", constants.DefaultEventRate)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, fmt.Errorf("failed to get event rate: %w", err)
	}
	c.WebSocket.EventRate = float64(eventRate)
	c.WebSocket.EventBurst, err = cfg.ConfigIntWithDefault("linkup.event_burst", constants.DefaultEventBurst)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, fmt.Errorf("failed to get event burst: %w", err)
	}

	c.Database.Name, err = cfg.ConfigStringWithDefault("linkup.database", constants.DefaultDatabase)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, fmt.Errorf("failed to get database name: %w", err)
	}

	c.LLM.Providers, err = loadLLMProviders(cfg)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, fmt.Errorf("failed to load LLM providers: %w", err)
	}
	c.LLM.HeaderTimeout, err = durationWithDefault(cfg, "linkup.llm_header_timeout", constants.LLMClientTimeout)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, err
	}

	c.Assistant.Workers, err = cfg.ConfigIntWithDefault("linkup.assistant.workers", constants.DefaultRunnerWorkers)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, fmt.Errorf("failed to get assistant workers: %w", err)
	}
	c.Assistant.QueueSize, err = cfg.ConfigIntWithDefault("linkup.assistant.queue_size", constants.DefaultRunnerQueueSize)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, fmt.Errorf("failed to get assistant queue size: %w", err)
	}

	c.Redis.Addr = os.Getenv("REDIS_ADDR")
	if c.Redis.Addr == "" {
		c.Redis.Addr, err = cfg.ConfigStringWithDefault("linkup.redis.addr", "")
		// No else needed: early return pattern (guard clause)
		if err != nil {
			return nil, fmt.Errorf("failed to get redis address: %w", err)
		}
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if c.Redis.Password == "" {
		c.Redis.Password, _ = cfg.ConfigStringWithDefault("linkup.redis.password", "")
	}
	c.Redis.DB, err = cfg.ConfigIntWithDefault("linkup.redis.db", 0)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, fmt.Errorf("failed to get redis db: %w", err)
	}
	c.Redis.Prefix, _ = cfg.ConfigStringWithDefault("linkup.redis.prefix", constants.DefaultRedisPrefix)

	c.Settings, err = loadSettings(cfg)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, err
	}

	// No else needed: early return pattern (guard clause)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	if err := ValidateJWTSecret(c.Server.JWTSecret); err != nil {
		errs = append(errs, err)
	}
	if c.Server.PathPrefix == "" {
		errs = append(errs, errors.New("path prefix cannot be empty"))
	} else if !strings.HasPrefix(c.Server.PathPrefix, "/") {
		errs = append(errs, fmt.Errorf("path prefix must start with '/' (got: %s)", c.Server.PathPrefix))
	}
	if c.Server.AdminRateLimit <= 0 {
		errs = append(errs, errors.New("admin rate limit must be positive"))
	}
	if c.Server.AdminRateWindow <= 0 {
		errs = append(errs, errors.New("admin rate window must be positive"))
	}
	for _, origins := range [][]string{c.Server.CORSAllowedOrigins, c.WebSocket.AllowedOrigins} {
		for _, origin := range origins {
			if ContainsPlaceholder(origin) {
				errs = append(errs, fmt.Errorf("allowed origin contains placeholder value %q, set actual origins before deploying", origin))
			}
		}
	}

	if c.WebSocket.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("max message size must be positive"))
	}
	if c.WebSocket.MaxConnections <= 0 {
		errs = append(errs, errors.New("max connections must be positive"))
	}
	if c.WebSocket.EventRate <= 0 {
		errs = append(errs, errors.New("event rate must be positive"))
	}
	if c.WebSocket.EventBurst <= 0 {
		errs = append(errs, errors.New("event burst must be positive"))
	}

	if c.Database.Name == "" {
		errs = append(errs, errors.New("database name is required"))
	}

	if c.LLM.HeaderTimeout <= 0 {
		errs = append(errs, errors.New("LLM header timeout must be positive"))
	}
	for i, provider := range c.LLM.Providers {
		errs = append(errs, validateProvider(i, provider)...)
	}

	if c.Assistant.Workers <= 0 {
		errs = append(errs, errors.New("assistant workers must be positive"))
	}
	if c.Assistant.QueueSize <= 0 {
		errs = append(errs, errors.New("assistant queue size must be positive"))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, errors.New("redis db cannot be negative"))
	}

	errs = append(errs, c.Settings.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// ValidateJWTSecret rejects empty, short and well-known secrets.
func ValidateJWTSecret(secret string) error {
	if secret == "" {
		return errors.New("JWT secret is required")
	}

	// Check minimum length (32 characters for strong security)
	if len(secret) < constants.MinJWTSecretLength {
		return fmt.Errorf(
			"JWT secret must be at least %d characters (got %d). "+
				"Generate a strong secret with: openssl rand -base64 32",
			constants.MinJWTSecretLength, len(secret))
	}

	lowerSecret := strings.ToLower(secret)
	for _, weak := range constants.WeakSecrets {
		if strings.Contains(lowerSecret, weak) {
			return fmt.Errorf(
				"JWT secret appears to be weak (contains '%s'). "+
					"Use a cryptographically random secret generated with: openssl rand -base64 32",
				weak)
		}
	}

	return nil
}

func validateProvider(i int, provider LLMProviderConfig) []error {
	var errs []error
	if provider.ID == "" {
		errs = append(errs, fmt.Errorf("LLM provider %d: ID is required", i))
	}
	if provider.Name == "" {
		errs = append(errs, fmt.Errorf("LLM provider %d: name is required", i))
	}
	if !isSupportedProvider(provider.Type) {
		errs = append(errs, fmt.Errorf("LLM provider %d: type must be one of %s", i, strings.Join(SupportedProviderTypes, ", ")))
	}
	if provider.Endpoint == "" && provider.Type != "gemini" {
		errs = append(errs, fmt.Errorf("LLM provider %d: endpoint is required", i))
	}
	if provider.APIKey == "" {
		errs = append(errs, fmt.Errorf("LLM provider %d: API key is required", i))
	}
	return errs
}

func isSupportedProvider(t string) bool {
	for _, s := range SupportedProviderTypes {
		if s == t {
			return true
		}
	}
	return false
}

// loadLLMProviders reads the llm.providers array.
// LLM_PROVIDER_<INDEX>_API_KEY (1-based) overrides the file value so
// Kubernetes secrets never have to live in config.toml.
func loadLLMProviders(cfg *goconfig.ConfigAccessor) ([]LLMProviderConfig, error) {
	providersConfig, err := cfg.Config("llm.providers")
	if err != nil || providersConfig == nil {
		return []LLMProviderConfig{}, nil
	}

	providersSlice, ok := providersConfig.([]interface{})
	// No else needed: early return pattern (guard clause)
	if !ok {
		return nil, errors.New("llm.providers is not an array")
	}

	providers := make([]LLMProviderConfig, 0, len(providersSlice))
	for i, p := range providersSlice {
		providerMap, ok := p.(map[string]interface{})
		// No else needed: early return pattern (guard clause)
		if !ok {
			return nil, fmt.Errorf("provider %d is not a map", i)
		}

		provider := LLMProviderConfig{
			ID:       stringFromMap(providerMap, "id"),
			Name:     stringFromMap(providerMap, "name"),
			Type:     strings.ToLower(stringFromMap(providerMap, "type")),
			Endpoint: stringFromMap(providerMap, "endpoint"),
			APIKey:   stringFromMap(providerMap, "apiKey"),
			Model:    stringFromMap(providerMap, "model"),
		}

		envKey := fmt.Sprintf("LLM_PROVIDER_%d_API_KEY", i+1)
		if envAPIKey := os.Getenv(envKey); envAPIKey != "" {
			provider.APIKey = envAPIKey
		}
		providers = append(providers, provider)
	}
	return providers, nil
}

func stringFromMap(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func durationWithDefault(cfg *goconfig.ConfigAccessor, key string, def time.Duration) (time.Duration, error) {
	raw, err := cfg.ConfigStringWithDefault(key, def.String())
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return 0, fmt.Errorf("failed to get %s: %w", key, err)
	}
	d, err := time.ParseDuration(raw)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return d, nil
}

func listWithDefault(cfg *goconfig.ConfigAccessor, key, def string) ([]string, error) {
	raw, err := cfg.ConfigStringWithDefault(key, def)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return splitList(raw), nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	result := []string{}
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// ContainsPlaceholder checks if a configuration value still contains
// a deployment placeholder that should have been replaced.
func ContainsPlaceholder(value string) bool {
	upper := strings.ToUpper(value)
	return strings.Contains(upper, "REPLACE_WITH") ||
		strings.Contains(upper, "PLACEHOLDER") ||
		strings.Contains(upper, "CHANGE-ME") ||
		strings.Contains(upper, "CHANGE_ME") ||
		strings.Contains(upper, "YOUR-")
}
