// Package linkup provides the service registration for the LinkUp real-time
// messaging router. It integrates with gomain by implementing a Register
// function that sets up the WebSocket entry point and the HTTP endpoints.
package linkup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/real-rm/goconfig"
	"github.com/real-rm/golog"
	"github.com/real-rm/gomongo"
	"github.com/real-rm/linkup/internal/assistant"
	"github.com/real-rm/linkup/internal/auth"
	"github.com/real-rm/linkup/internal/config"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/httperrors"
	"github.com/real-rm/linkup/internal/llm"
	"github.com/real-rm/linkup/internal/membership"
	"github.com/real-rm/linkup/internal/metrics"
	"github.com/real-rm/linkup/internal/presence"
	"github.com/real-rm/linkup/internal/ratelimit"
	"github.com/real-rm/linkup/internal/router"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/support"
	"github.com/real-rm/linkup/internal/util"
	"github.com/real-rm/linkup/internal/websocket"
	"github.com/redis/go-redis/v9"
)

var (
	// Global references for graceful shutdown
	globalService *service
	globalLogger  *golog.Logger
	shutdownMu    sync.Mutex
)

// service is one wired instance of the router and its HTTP surface.
type service struct {
	cfg    *config.Config
	store  storage.Store
	logger *golog.Logger

	// ping checks the database for readiness; nil reports it as not initialized.
	ping  func(ctx context.Context) error
	redis *redis.Client

	registry      *presence.Registry
	machine       *support.Machine
	chain         *llm.Chain
	runner        *assistant.Runner
	router        *router.MessageRouter
	validator     *auth.JWTValidator
	wsHandler     *websocket.Handler
	adminLimiter  *ratelimit.WindowLimiter
	publicLimiter *ratelimit.WindowLimiter
}

// Register registers the linkup service with the gomain router.
// This function is called by gomain during service initialization.
//
// Parameters:
//   - r: Gin router for registering HTTP and WebSocket endpoints
//   - cfg: Configuration accessor for loading service settings
//   - logger: Logger for structured logging
//   - mongo: MongoDB client for data persistence
//
// Returns:
//   - error: Any error that occurred during registration
func Register(r *gin.Engine, cfg *goconfig.ConfigAccessor, logger *golog.Logger, mongo *gomongo.Mongo) error {
	linkupLogger := logger.WithGroup("linkup")
	linkupLogger.Info("Initializing linkup service")

	// Misconfigurations are caught before serving traffic
	conf, err := config.Load(cfg)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	// No else needed: early return pattern (guard clause)
	if mongo == nil {
		return errors.New("mongo client is required")
	}

	store := storage.NewMongoStore(mongo, conf.Database.Name, linkupLogger)
	indexCtx, cancel := util.NewTimeoutContext(constants.MongoIndexTimeout)
	// No else needed: optional operation (queries still work without indexes)
	if err := store.EnsureIndexes(indexCtx); err != nil {
		linkupLogger.Warn("Failed to ensure MongoDB indexes", "error", err)
	}
	cancel()

	providers, err := llm.NewProviders(conf.LLM.Providers, conf.LLM.HeaderTimeout, linkupLogger)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return fmt.Errorf("failed to create LLM providers: %w", err)
	}
	// No else needed: optional operation (assistant degrades to error notices)
	if len(providers) == 0 {
		linkupLogger.Warn("No LLM providers configured, assistant replies will fail")
	}

	cooldown, redisClient := newCooldown(conf.Redis, linkupLogger)

	svc := newService(conf, store, providers, cooldown, linkupLogger)
	svc.ping = store.Ping
	svc.redis = redisClient

	// Background goroutines start only after all validation is complete,
	// so we don't leak goroutines if Register() returns an error.
	svc.start()

	// Stop any previously-registered instance to prevent goroutine leaks
	// when Register() is called multiple times (tests, hot-reload).
	shutdownMu.Lock()
	if globalService != nil {
		_ = globalService.shutdown(context.Background())
	}
	globalService = svc
	globalLogger = linkupLogger
	shutdownMu.Unlock()

	svc.mount(r)

	linkupLogger.Info("LinkUp service registered successfully",
		"websocket_endpoint", conf.Server.PathPrefix+"/ws",
		"admin_endpoints", conf.Server.PathPrefix+"/admin/*",
		"health_endpoints", conf.Server.PathPrefix+"/healthz, "+conf.Server.PathPrefix+"/readyz",
		"metrics_endpoint", conf.Server.PathPrefix+"/metrics/prometheus",
		"shared_cooldown", redisClient != nil,
	)
	return nil
}

// newCooldown selects the Redis cooldown when a reachable server is
// configured and the in-process one otherwise.
func newCooldown(cfg config.RedisConfig, logger *golog.Logger) (ratelimit.Cooldown, *redis.Client) {
	// No else needed: early return pattern (guard clause)
	if !cfg.Enabled() {
		logger.Info("Redis not configured, AI cooldown is per process")
		return ratelimit.NewMemoryCooldown(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := util.NewTimeoutContext(constants.HealthCheckTimeout)
	defer cancel()
	// No else needed: early return pattern (guard clause)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable, AI cooldown falls back to process memory",
			"addr", cfg.Addr,
			"error", err)
		_ = client.Close()
		return ratelimit.NewMemoryCooldown(), nil
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = constants.DefaultRedisPrefix
	}
	logger.Info("Using Redis AI cooldown", "addr", cfg.Addr, "prefix", prefix)
	return ratelimit.NewRedisCooldown(client, prefix), client
}

// newService wires every component on top of store. Nothing is started.
func newService(cfg *config.Config, store storage.Store, providers []llm.Provider, cooldown ratelimit.Cooldown, logger *golog.Logger) *service {
	settings := config.NewSettingsSource(store, cfg.Settings, logger)
	resolver := membership.NewResolver(store, logger)
	registry := presence.NewRegistry(resolver, store, logger)
	policy := membership.NewPolicy(resolver, store, registry, registry)
	machine := support.NewMachine(store, registry, logger)
	chain := llm.NewChain(providers, logger)

	orch := assistant.NewOrchestrator(assistant.OrchestratorDeps{
		Generator: chain,
		Settings:  settings,
		Rooms:     store,
		Messages:  store,
		Usage:     store,
		Support:   machine,
		Audience:  policy,
	}, logger)
	runner := assistant.NewRunner(orch, cfg.Assistant.Workers, cfg.Assistant.QueueSize, logger)
	evaluator := assistant.NewEvaluator(settings, cooldown, store, logger)
	dispatcher := assistant.NewDispatcher(evaluator, store, runner, logger)
	sweeper := support.NewSweeper(store, store, policy, settings, runner, logger)

	messageRouter := router.NewMessageRouter(router.Deps{
		Store:     store,
		Policy:    policy,
		Notifier:  registry,
		Settings:  settings,
		Support:   machine,
		Assistant: dispatcher,
	}, logger)

	validator := auth.NewJWTValidator(cfg.Server.JWTSecret)
	wsHandler := websocket.NewHandler(websocket.Deps{
		Validator: validator,
		Users:     store,
		Router:    messageRouter,
		Registry:  registry,
		Sweeper:   sweeper,
		Runner:    runner,
	}, websocket.Options{
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		MaxConnections: cfg.WebSocket.MaxConnections,
		EventRate:      cfg.WebSocket.EventRate,
		EventBurst:     cfg.WebSocket.EventBurst,
	}, logger)

	// SECURITY: When no origins are configured, ALL origins are accepted.
	// This is acceptable only in development.
	// No else needed: optional operation (development mode keeps origins open)
	if len(cfg.WebSocket.AllowedOrigins) > 0 {
		wsHandler.SetAllowedOrigins(cfg.WebSocket.AllowedOrigins)
	} else {
		logger.Warn("No allowed origins configured, allowing all origins (development mode)")
	}

	return &service{
		cfg:           cfg,
		store:         store,
		logger:        logger,
		registry:      registry,
		machine:       machine,
		chain:         chain,
		runner:        runner,
		router:        messageRouter,
		validator:     validator,
		wsHandler:     wsHandler,
		adminLimiter:  ratelimit.NewWindowLimiter(cfg.Server.AdminRateWindow, cfg.Server.AdminRateLimit, logger),
		publicLimiter: ratelimit.NewWindowLimiter(constants.DefaultRateWindow, constants.PublicEndpointRate, logger),
	}
}

func (s *service) start() {
	s.runner.Start()
	s.adminLimiter.StartCleanup()
	s.publicLimiter.StartCleanup()
}

// mount installs the middleware and routes on r.
func (s *service) mount(r *gin.Engine) {
	// No else needed: optional operation (CORS only for configured origins)
	if origins := s.cfg.Server.CORSAllowedOrigins; len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
		s.logger.Info("CORS middleware configured", "allowed_origins", origins)
	} else {
		s.logger.Warn("No CORS origins configured, CORS middleware not enabled")
	}

	// c.ClientIP() will only trust X-Forwarded-For from these networks.
	// No else needed: optional operation (proxy trust with fallback logging)
	if proxies := s.cfg.Server.TrustedProxies; len(proxies) > 0 {
		if err := r.SetTrustedProxies(proxies); err != nil {
			s.logger.Warn("Failed to set trusted proxies", "error", err)
		} else {
			s.logger.Info("Trusted proxies configured", "proxies", proxies)
		}
	}

	r.Use(securityHeadersMiddleware())
	r.Use(metricsMiddleware())

	pathPrefix := s.cfg.Server.PathPrefix
	s.logger.Info("Using HTTP path prefix", "prefix", pathPrefix)

	group := r.Group(pathPrefix)
	{
		group.GET("/ws", s.handleWebSocket)
		group.GET("/ws/:token", s.handleWebSocket)

		admin := group.Group("/admin")
		admin.Use(adminAuthMiddleware(s.validator, s.store, s.logger))
		admin.Use(adminRateLimitMiddleware(s.adminLimiter, s.logger))
		{
			admin.POST("/users/:userID/logout", handleForceLogout(s.registry, s.logger))
			admin.GET("/support/:userID/status", handleGetSupportStatus(s.machine, s.logger))
			admin.PUT("/support/:userID/status", handleSetSupportStatus(s.machine, s.logger))
			admin.GET("/presence", handlePresence(s.registry))
		}

		// Health check endpoints (rate limited to prevent abuse)
		group.GET("/healthz", publicRateLimitMiddleware(s.publicLimiter, s.logger), handleHealthCheck)
		group.GET("/readyz", publicRateLimitMiddleware(s.publicLimiter, s.logger), s.handleReadyCheck)

		group.GET("/metrics/prometheus",
			metricsNetworkMiddleware(parseNetworks(s.cfg.Server.MetricsAllowedNetworks, s.logger), s.logger),
			publicRateLimitMiddleware(s.publicLimiter, s.logger),
			gin.WrapH(promhttp.Handler()),
		)
	}
}

// handleWebSocket moves a query token into the Authorization header and
// redacts it from the URL so it never reaches the access logs.
func (s *service) handleWebSocket(c *gin.Context) {
	// No else needed: optional operation (query token redaction)
	if token := c.Query("token"); token != "" {
		if c.Request.Header.Get(constants.HeaderAuthorization) == "" {
			c.Request.Header.Set(constants.HeaderAuthorization, constants.BearerPrefix+token)
		}
		q := c.Request.URL.Query()
		q.Del("token")
		c.Request.URL.RawQuery = q.Encode()
	}
	s.wsHandler.HandleWebSocket(c.Writer, c.Request, c.Param("token"))
}

// shutdown closes connections first so their staff sweeps are queued before
// the runner drains.
func (s *service) shutdown(ctx context.Context) error {
	s.adminLimiter.StopCleanup()
	s.publicLimiter.StopCleanup()

	var errs []error
	// No else needed: optional operation (error collection)
	if err := s.wsHandler.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("websocket: %w", err))
	}
	// No else needed: optional operation (error collection)
	if err := s.runner.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("assistant runner: %w", err))
	}
	// No else needed: optional operation (shared cooldown only)
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown gracefully shuts down the linkup service.
// It closes all active WebSocket connections, drains the assistant queue and
// releases the Redis client. It respects the context deadline.
func Shutdown(ctx context.Context) error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()

	// No else needed: optional operation (nothing registered)
	if globalService == nil {
		return nil
	}
	globalLogger.Info("Starting graceful shutdown of linkup service")

	err := globalService.shutdown(ctx)
	globalService = nil
	// No else needed: early return pattern (guard clause)
	if err != nil {
		globalLogger.Warn("LinkUp shutdown incomplete", "error", err)
		return err
	}

	globalLogger.Info("LinkUp service shutdown complete")
	return nil
}

// securityHeadersMiddleware adds standard HTTP security headers to all responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Next()
	}
}

// metricsMiddleware records HTTP request duration for Prometheus monitoring
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		// No else needed: optional operation (bounded label for unknown routes)
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestDuration.With(prometheus.Labels{
			"method": c.Request.Method,
			"path":   path,
			"status": strconv.Itoa(c.Writer.Status()),
		}).Observe(time.Since(start).Seconds())
	}
}

// retryAfterSeconds converts milliseconds to whole seconds, rounding up so
// the header never reads 0.
func retryAfterSeconds(retryAfterMs int) int {
	seconds := (retryAfterMs + constants.MillisecondsPerSecond - 1) / constants.MillisecondsPerSecond
	// No else needed: optional operation (minimum retry after enforcement)
	if seconds < constants.MinRetryAfterSeconds {
		seconds = constants.MinRetryAfterSeconds
	}
	return seconds
}

// publicRateLimitMiddleware rate limits public endpoints (healthz, readyz,
// metrics) by client IP to prevent abuse.
func publicRateLimitMiddleware(limiter *ratelimit.WindowLimiter, logger *golog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Gin's ClientIP() respects trusted proxies to prevent X-Forwarded-For spoofing
		clientIP := c.ClientIP()

		ok, retryAfter := limiter.Allow(clientIP)
		// No else needed: early return pattern (guard clause)
		if !ok {
			logger.Debug("Public rate limit exceeded", "client_ip", clientIP, "path", c.Request.URL.Path)
			c.Header(constants.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(retryAfter)))
			c.JSON(constants.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": constants.ErrMsgRateLimitExceeded,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// UserLoader reads user documents for staff checks.
type UserLoader interface {
	GetUser(ctx context.Context, userID string) (*storage.User, error)
}

// adminAuthMiddleware authenticates the bearer token and requires a staff
// user. An admin role in the token is enough; otherwise the user document
// decides.
func adminAuthMiddleware(validator *auth.JWTValidator, users UserLoader, logger *golog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := util.ExtractBearerToken(c.GetHeader(constants.HeaderAuthorization))
		// No else needed: early return pattern (guard clause)
		if err != nil {
			httperrors.RespondUnauthorized(c, httperrors.MsgInvalidAuthHeader)
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(token)
		// No else needed: early return pattern (guard clause)
		if err != nil {
			logger.Warn("Token validation failed",
				"error", err,
				"component", "auth")
			httperrors.RespondInvalidToken(c)
			c.Abort()
			return
		}

		// No else needed: early return pattern (guard clause)
		if !claims.IsAdmin() && !isStaffUser(c.Request.Context(), users, claims.UserID, logger) {
			logger.Warn("Insufficient permissions for admin endpoint",
				"user_id", claims.UserID,
				"roles", claims.Roles,
				"component", "auth")
			httperrors.RespondForbidden(c)
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}

func isStaffUser(parent context.Context, users UserLoader, userID string, logger *golog.Logger) bool {
	ctx, cancel := util.NewDetachedContext(parent, constants.DefaultContextTimeout)
	defer cancel()
	user, err := users.GetUser(ctx, userID)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		// No else needed: optional operation (unknown users are simply not staff)
		if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrInvalidID) {
			util.LogError(logger, "auth", "load admin user", err, "user_id", userID)
		}
		return false
	}
	return user.IsStaff()
}

// adminRateLimitMiddleware rate limits admin endpoints per authenticated user
func adminRateLimitMiddleware(limiter *ratelimit.WindowLimiter, logger *golog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsInterface, exists := c.Get("claims")
		// No else needed: early return pattern (guard clause - let adminAuthMiddleware handle missing claims)
		if !exists {
			c.Next()
			return
		}

		claims, ok := claimsInterface.(*auth.Claims)
		// No else needed: early return pattern (guard clause)
		if !ok {
			util.LogError(logger, "admin_rate_limit", "validate claims type", fmt.Errorf("invalid claims type in context"))
			httperrors.RespondInternalError(c)
			c.Abort()
			return
		}

		allowed, retryAfter := limiter.Allow(claims.UserID)
		// No else needed: early return pattern (guard clause)
		if !allowed {
			logger.Warn("Admin rate limit exceeded",
				"user_id", claims.UserID,
				"endpoint", c.Request.URL.Path,
				"retry_after_ms", retryAfter,
				"component", "admin_rate_limit")
			c.Header(constants.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(retryAfter)))
			c.JSON(constants.StatusTooManyRequests, gin.H{
				"error":          "rate_limit_exceeded",
				"message":        constants.ErrMsgRateLimitExceeded,
				"retry_after_ms": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// parseNetworks parses CIDR network strings, skipping invalid entries.
func parseNetworks(cidrs []string, logger *golog.Logger) []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range cidrs {
		// No else needed: optional operation (skip blanks)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		// No else needed: optional operation (skip invalid entries)
		if err != nil {
			logger.Warn("Invalid CIDR in metrics_allowed_networks", "cidr", cidr, "error", err)
			continue
		}
		nets = append(nets, ipNet)
	}
	return nets
}

// metricsNetworkMiddleware restricts access to the metrics endpoint to configured networks.
func metricsNetworkMiddleware(allowedNets []*net.IPNet, logger *golog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// If no networks configured, allow all (development mode)
		if len(allowedNets) == 0 {
			c.Next()
			return
		}

		clientIP := net.ParseIP(c.ClientIP())
		// No else needed: early return pattern (guard clause)
		if clientIP == nil {
			logger.Warn("Could not parse client IP for metrics access", "ip", c.ClientIP())
			httperrors.RespondForbidden(c)
			c.Abort()
			return
		}

		for _, ipNet := range allowedNets {
			if ipNet.Contains(clientIP) {
				c.Next()
				return
			}
		}

		logger.Warn("Metrics access denied from unauthorized network",
			"client_ip", c.ClientIP(),
			"component", "metrics")
		httperrors.RespondForbidden(c)
		c.Abort()
	}
}
