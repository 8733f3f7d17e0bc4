package linkup

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/auth"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/httperrors"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/support"
	"github.com/real-rm/linkup/internal/util"
)

// PresenceAdmin is the registry surface the admin endpoints use.
type PresenceAdmin interface {
	ForceDisconnect(userID string) int
	OnlineUserIDs() []string
	Counts() map[string]int
}

// SupportAdmin reads and sets support thread states.
type SupportAdmin interface {
	Status(ctx context.Context, userID string) (string, error)
	SetStatus(ctx context.Context, userID, username, status string) error
}

// supportStatusRequest is the body of PUT /admin/support/:userID/status.
type supportStatusRequest struct {
	Status   string `json:"status" binding:"required"`
	Username string `json:"username"`
}

func adminID(c *gin.Context) string {
	// No else needed: early return pattern (guard clause)
	if claims, ok := c.Get("claims"); ok {
		if cl, ok := claims.(*auth.Claims); ok {
			return cl.UserID
		}
	}
	return ""
}

// handleForceLogout ends every session of a user. The user receives a
// force_logout notice before the close.
func handleForceLogout(registry PresenceAdmin, logger *golog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userID")
		// No else needed: early return pattern (guard clause)
		if userID == "" {
			httperrors.RespondBadRequest(c, "user ID is required")
			return
		}

		closed := registry.ForceDisconnect(userID)
		logger.Info("Admin forced logout",
			"admin_id", adminID(c),
			"user_id", userID,
			"connections", closed)

		c.JSON(constants.StatusOK, gin.H{
			"user_id":     userID,
			"connections": closed,
		})
	}
}

// handleGetSupportStatus returns a user's support thread state. A user
// without a thread reports an empty status.
func handleGetSupportStatus(machine SupportAdmin, logger *golog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userID")
		ctx, cancel := util.NewDetachedContext(c.Request.Context(), constants.DefaultContextTimeout)
		defer cancel()

		status, err := machine.Status(ctx, userID)
		// No else needed: early return pattern (guard clause)
		if err != nil {
			util.LogError(logger, "admin", "read support status", err, "user_id", userID)
			httperrors.RespondInternalError(c)
			return
		}

		c.JSON(constants.StatusOK, gin.H{
			"user_id": userID,
			"status":  status,
		})
	}
}

// handleSetSupportStatus applies an explicit support transition. It always
// writes and announces, even when the state is unchanged.
func handleSetSupportStatus(machine SupportAdmin, logger *golog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userID")

		var req supportStatusRequest
		// No else needed: early return pattern (guard clause)
		if err := c.ShouldBindJSON(&req); err != nil {
			httperrors.RespondBadRequest(c, "status is required")
			return
		}

		ctx, cancel := util.NewDetachedContext(c.Request.Context(), constants.DefaultContextTimeout)
		defer cancel()

		err := machine.SetStatus(ctx, userID, req.Username, req.Status)
		switch {
		case err == nil:
		case errors.Is(err, support.ErrInvalidStatus):
			httperrors.RespondBadRequest(c, "status must be one of ai_processing, waiting, resolved")
			return
		case errors.Is(err, storage.ErrInvalidID):
			httperrors.RespondBadRequest(c, "user ID is required")
			return
		default:
			util.LogError(logger, "admin", "set support status", err, "user_id", userID, "status", req.Status)
			httperrors.RespondInternalError(c)
			return
		}

		logger.Info("Admin set support status",
			"admin_id", adminID(c),
			"user_id", userID,
			"status", req.Status)

		c.JSON(constants.StatusOK, gin.H{
			"user_id": userID,
			"status":  req.Status,
		})
	}
}

// handlePresence lists online users and their connection counts.
func handlePresence(registry PresenceAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		users := registry.OnlineUserIDs()
		c.JSON(constants.StatusOK, gin.H{
			"online":      users,
			"count":       len(users),
			"connections": registry.Counts(),
		})
	}
}

// handleHealthCheck is the liveness probe. If we can respond, we're alive.
func handleHealthCheck(c *gin.Context) {
	c.JSON(constants.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReadyCheck is the readiness probe. MongoDB must answer a ping; the
// Redis cooldown is checked when one is in use. LLM providers are reported
// but never block readiness.
func (s *service) handleReadyCheck(c *gin.Context) {
	checks := make(map[string]interface{})
	allReady := true

	ctx, cancel := util.NewTimeoutContext(constants.HealthCheckTimeout)
	defer cancel()

	// No else needed: optional operation (MongoDB health check)
	if s.ping == nil {
		checks["mongodb"] = map[string]interface{}{
			"status": "not ready",
			"reason": "MongoDB not initialized",
		}
		allReady = false
	} else if err := s.ping(ctx); err != nil {
		// Detailed error stays server-side
		s.logger.Warn("MongoDB health check failed",
			"error", err,
			"component", "health")
		checks["mongodb"] = map[string]interface{}{
			"status": "not ready",
			"reason": "Database connectivity check failed",
		}
		allReady = false
	} else {
		checks["mongodb"] = map[string]interface{}{"status": "ready"}
	}

	// No else needed: optional operation (shared cooldown only)
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn("Redis health check failed",
				"error", err,
				"component", "health")
			checks["redis"] = map[string]interface{}{
				"status": "not ready",
				"reason": "Cooldown store connectivity check failed",
			}
			allReady = false
		} else {
			checks["redis"] = map[string]interface{}{"status": "ready"}
		}
	}

	// No else needed: optional operation (provider count reporting)
	if n := s.chain.Len(); n == 0 {
		checks["llm"] = map[string]interface{}{"status": "not configured"}
	} else {
		checks["llm"] = map[string]interface{}{
			"status":          "ready",
			"providers_count": n,
		}
	}

	status := "ready"
	statusCode := constants.StatusOK
	// No else needed: optional operation (status code adjustment based on health)
	if !allReady {
		status = "not ready"
		statusCode = constants.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
