// Package constants provides centralized constant definitions for the LinkUp router.
// This eliminates magic numbers and strings throughout the codebase.
package constants

import "time"

// HTTP Status Codes
const (
	StatusOK                 = 200
	StatusTooManyRequests    = 429
	StatusServiceUnavailable = 503
)

// Timeouts for various operations
const (
	DefaultContextTimeout = 10 * time.Second // Standard database operations
	LongContextTimeout    = 30 * time.Second // Complex queries and index creation
	LLMClientTimeout      = 30 * time.Second // Response header timeout for provider HTTP clients
	MongoIndexTimeout     = 30 * time.Second // MongoDB index creation
	HealthCheckTimeout    = 2 * time.Second  // Health check operations
	ErrorBackoff          = 100 * time.Millisecond
	StatusNotifyTimeout   = 5 * time.Second // Friend status fan-out
)

// Sizes and Limits
const (
	DefaultMaxMessageSize  = 1048576 // 1MB in bytes for WebSocket frames
	SendBufferSize         = 256     // Outbound frames buffered per connection
	RegistryShards         = 16
	DefaultEventRate       = 20   // Inbound events per second per user
	DefaultEventBurst      = 40   // Burst allowance for inbound events
	DefaultAdminRateLimit  = 20   // Default admin requests per minute
	MaxRetryAttempts       = 3    // Maximum retry attempts for transient errors
	MaxEventsPerUser       = 1000 // Maximum rate limit events tracked per user
	MaxUsersTracked        = 100000
	PublicEndpointRate     = 60   // Requests per minute for public endpoints (healthz, readyz, metrics)
	MaxLLMErrorBodySize    = 1024 // Max bytes to read from LLM provider error responses
	MaxConsecutiveErrors   = 10   // Connection closes once the error streak exceeds this
	ContextMessageCount    = 5    // Room messages fed to the model as context
	ReportSnippetLength    = 200
	DefaultRunnerWorkers   = 4
	DefaultRunnerQueueSize = 256
	DefaultMaxConnections  = 10 // Concurrent connections per user
)

// HTTP Server Timeouts (for standalone server mode)
const (
	HTTPReadTimeout  = 15 * time.Second
	HTTPWriteTimeout = 60 * time.Second
	HTTPIdleTimeout  = 120 * time.Second
	ShutdownTimeout  = 30 * time.Second
)

// Durations for background operations
const (
	DefaultRateWindow      = 1 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute
	RecentHumanWindow      = 5 * time.Minute // Recent human activity in help keeps the AI quiet
	InitialRetryDelay      = 100 * time.Millisecond
	MaxRetryDelay          = 2 * time.Second
	RetryMultiplier        = 2.0
)

// Role Names for authorization
const (
	RoleAdmin     = "admin"
	RoleChatAdmin = "chat_admin"
	RolePremium   = "premium"
	RoleMember    = "member"
	RoleOwner     = "owner"

	PermissionAIUnlimited = "ai_unlimited"
)

// Reserved rooms. Both are self-isolated: visibility depends on sender and receiver only.
const (
	RoomAI   = "ai"
	RoomHelp = "help"

	DirectRoomPrefix = "direct_"
)

// Room types stored on chat_rooms.type
const (
	RoomTypePublic    = "public"
	RoomTypeCommunity = "community"
	RoomTypeDirect    = "direct"
	RoomTypeGroup     = "group"
	RoomTypeBot       = "bot"
	RoomTypeSupport   = "support"
)

// Message status values
const (
	StatusSent = "sent"
	StatusSeen = "seen"
)

// Support thread states
const (
	SupportAIProcessing = "ai_processing"
	SupportWaiting      = "waiting"
	SupportResolved     = "resolved"
)

// AI usage outcomes
const (
	UsageSuccess = "success"
	UsageError   = "error"
)

// Report types and status
const (
	ReportSpam          = "spam"
	ReportHarassment    = "harassment"
	ReportInappropriate = "inappropriate"
	ReportOther         = "other"
	ReportPending       = "pending"
)

// Assistant identity
const (
	AssistantName     = "LinkUp Assistant"
	SupportAgentName  = "LinkUp Support"
	SystemSenderName  = "System"
	AssistantAvatar   = "https://api.dicebear.com/7.x/bottts/svg?seed=LinkUpAI"
	RecallPlaceholder = "This message was recalled."
	ForceLogoutText   = "An administrator has ended your session."
	GenericErrorText  = "An error occurred processing your request"
	ReportThanksText  = "Thanks for the report. Our moderators will review it shortly."
	ErrorLogType      = "ai_error"
)

// AITriggers mark an explicit call to the assistant anywhere in a message.
var AITriggers = []string{"@ai", "/ai", "@ ai", "bot ai"}

// EscalationPhrases move a support thread to waiting.
var EscalationPhrases = []string{
	"gặp admin", "nhân viên hỗ trợ", "nói chuyện với người", "gặp nhân viên",
	"talk to admin", "human agent", "talk to a human", "support staff",
}

// Runtime setting defaults, used when system_config and the static config both omit a key.
const (
	DefaultAIEnabled         = true
	DefaultAIAutoReply       = true
	DefaultMaintenanceMode   = false
	DefaultMaxMessageLength  = 2000
	DefaultAILimitPerUser    = 50
	DefaultAILimitPerGroup   = 200
	DefaultAICooldownSeconds = 30
	SystemConfigType         = "settings"
)

// Default Configuration Values
const (
	DefaultMongoURI   = "mongodb://localhost:27017"
	DefaultDatabase   = "linkup"
	DefaultPort       = 8080
	DefaultLogLevel   = "info"
	DefaultLogDir     = "logs"
	DefaultPathPrefix = "/linkup"
)

// Network defaults
const (
	DefaultTrustedProxies         = "10.0.0.0/8,172.16.0.0/12,192.168.0.0/16"
	DefaultMetricsAllowedNetworks = "10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8"
	DefaultRedisPrefix            = "linkup:cooldown:"
	MillisecondsPerSecond         = 1000
	MinRetryAfterSeconds          = 1 // Minimum retry-after value in seconds
)

// LLM provider defaults
const (
	DefaultAnthropicMaxTokens = 4096
	AnthropicAPIVersion       = "2023-06-01"
	DefaultGeminiEndpoint     = "https://generativelanguage.googleapis.com"
	SSEInitialBufferSize      = 64 * 1024
	SSEMaxLineSize            = 1024 * 1024 // Largest single SSE line accepted from a provider
)

// HTTP Headers
const (
	HeaderAuthorization = "Authorization"
	HeaderRetryAfter    = "Retry-After"
	BearerPrefix        = "Bearer "
	BearerPrefixLength  = 7
)

// Error Messages
const (
	ErrMsgInvalidAuthHeader = "Invalid or missing Authorization header"
	ErrMsgInvalidToken      = "Invalid or expired token"
	ErrMsgForbidden         = "Insufficient permissions"
	ErrMsgInternalError     = "Internal server error"
	ErrMsgRateLimitExceeded = "Too many requests. Please try again later."
)

// MongoDB collection names
const (
	CollUsers          = "users"
	CollRooms          = "chat_rooms"
	CollMembers        = "room_members"
	CollMessages       = "messages"
	CollSupportThreads = "support_threads"
	CollAIUsage        = "ai_usage"
	CollReports        = "reports"
	CollSystemLogs     = "system_logs"
	CollSystemConfig   = "system_configs"
	CollFriendRequests = "friend_requests"
)

// MongoDB Index Names
const (
	IndexMessagesRoomTime   = "idx_room_time"
	IndexMessagesReplyTo    = "idx_reply_to"
	IndexMembersRoomUser    = "idx_room_user"
	IndexUsageDayUser       = "idx_day_user"
	IndexUsageDayRoom       = "idx_day_room"
	IndexSupportThreadsUser = "idx_support_user"
	IndexFriendsFrom        = "idx_friend_from"
	IndexFriendsTo          = "idx_friend_to"
)

// Weak Secrets for validation (security check)
var WeakSecrets = []string{
	"secret", "test", "test123", "password", "admin",
	"changeme", "default", "example", "demo", "12345",
	"placeholder",
}

// Minimum Security Requirements
const (
	MinJWTSecretLength = 32 // Minimum length for JWT secret (256 bits)
)
