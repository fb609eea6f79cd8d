package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"salon-magik-hub/internal/adapter/http/dto"
	"salon-magik-hub/internal/core/ports"
	"salon-magik-hub/pkg/apperror"
	"salon-magik-hub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuthHandler issues tenant-scoped API tokens. The caller is the platform
// backend, authenticated by a shared platform key.
type AuthHandler struct {
	tokens      ports.TokenService
	platformKey string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(tokens ports.TokenService, platformKey string) *AuthHandler {
	return &AuthHandler{tokens: tokens, platformKey: platformKey}
}

// Token handles POST /api/v1/auth/token.
func (h *AuthHandler) Token(c *gin.Context) {
	var req dto.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if h.platformKey == "" ||
		subtle.ConstantTimeCompare([]byte(req.PlatformKey), []byte(h.platformKey)) != 1 {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid tenant id"))
		return
	}

	token, expiresAt, err := h.tokens.Generate(tenantID)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	response.OK(c, dto.TokenResponse{
		Token:  token,
		Expiry: expiresAt.Unix(),
	})
}

// HealthCheck reports the service's own liveness plus the state of each
// registered dependency.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checkers))
		for _, checker := range checkers {
			if err := checker.Ping(ctx); err != nil {
				deps[checker.Name()] = "unhealthy: " + err.Error()
				status = http.StatusServiceUnavailable
			} else {
				deps[checker.Name()] = "healthy"
			}
		}

		body := gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		}
		if len(deps) > 0 {
			body["dependencies"] = deps
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	}
}
