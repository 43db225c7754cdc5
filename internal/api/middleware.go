package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gardenplan/internal/repository"
	"gardenplan/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Constants for context keys
const (
	ContextAdminEmailKey  = "adminEmail"
	ContextAuthContextKey = "authContext"
	ContextRequestIDKey   = "requestID"
)

// jsonError writes the error body shape shared by every endpoint:
// {"error": {"code": ..., "message": ...}}.
func jsonError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// RequestIDMiddleware tags each request with a UUID, echoed in the
// X-Request-ID response header and attached to log lines.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger logs one structured line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("requestId", c.GetString(ContextRequestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

// AdminAuthMiddleware guards privileged endpoints with the bearer session
// token issued at admin login. Stateless: only the signing secret is held
// server-side.
func AdminAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			jsonError(c, http.StatusUnauthorized, "unauthorized", "Authorization header is missing")
			return
		}

		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			jsonError(c, http.StatusUnauthorized, "unauthorized", "Authorization header format must be Bearer {token}")
			return
		}

		claims := &service.AdminClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				jsonError(c, http.StatusUnauthorized, "unauthorized", "Session has expired")
			} else {
				jsonError(c, http.StatusUnauthorized, "unauthorized", "Invalid session token")
			}
			return
		}
		if !token.Valid || claims.Email == "" {
			jsonError(c, http.StatusUnauthorized, "unauthorized", "Invalid session token")
			return
		}

		c.Set(ContextAdminEmailKey, claims.Email)
		c.Next()
	}
}

// LinkAuthMiddleware resolves the (plan, g, t) query triple into an
// AuthContext for every gardener-facing endpoint. Verification is rerun per
// request on purpose: links rotate and plans lock between requests, so a
// cached session would go stale.
func LinkAuthMiddleware(linkService service.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		plan := c.Query("plan")
		g := c.Query("g")
		t := c.Query("t")
		if plan == "" || g == "" || t == "" {
			jsonError(c, http.StatusBadRequest, "invalid_query", "plan, g and t query parameters are required")
			return
		}

		auth, err := linkService.Verify(c.Request.Context(), plan, g, t)
		if err != nil {
			status, code := verifyErrorStatus(err)
			jsonError(c, status, code, err.Error())
			return
		}

		c.Set(ContextAuthContextKey, auth)
		c.Next()
	}
}

// verifyErrorStatus maps the link verification failure taxonomy onto HTTP.
// Each outcome stays distinct: the worker UI renders "link expired" and
// "wrong link" differently.
func verifyErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidPlanKey):
		return http.StatusBadRequest, "invalid_plan"
	case errors.Is(err, service.ErrInvalidGardenerID):
		return http.StatusBadRequest, "invalid_gardener"
	case errors.Is(err, service.ErrPlanNotFound), errors.Is(err, service.ErrGardenerNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, service.ErrLinkExpired):
		return http.StatusGone, "expired"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// RateLimitMiddleware gates an operation behind the sliding-window counter,
// keyed by client IP and operation name. Counter errors fail open; the
// limiter protects against abuse, it must not take the portal down with it.
func RateLimitMiddleware(limiter repository.RateLimitRepository, op string, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + ":" + op
		allowed, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("op", op), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			jsonError(c, http.StatusTooManyRequests, "rate_limit", "Too many requests")
			return
		}
		c.Next()
	}
}

// Helper to fetch the resolved AuthContext placed by LinkAuthMiddleware.
func getAuthContext(c *gin.Context) (*service.AuthContext, error) {
	raw, exists := c.Get(ContextAuthContextKey)
	if !exists {
		return nil, errors.New("auth context not found in request context")
	}
	auth, ok := raw.(*service.AuthContext)
	if !ok {
		return nil, errors.New("invalid auth context type in request context")
	}
	return auth, nil
}

// Helper to fetch the admin email placed by AdminAuthMiddleware.
func getAdminEmail(c *gin.Context) (string, error) {
	raw, exists := c.Get(ContextAdminEmailKey)
	if !exists {
		return "", errors.New("admin email not found in request context")
	}
	email, ok := raw.(string)
	if !ok {
		return "", errors.New("invalid admin email type in request context")
	}
	return email, nil
}
