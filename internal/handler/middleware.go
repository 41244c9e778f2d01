package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/authd/internal/logging"
	"github.com/kube-rca/authd/internal/metrics"
	"github.com/kube-rca/authd/internal/model"
	"github.com/kube-rca/authd/internal/service"
	"github.com/oklog/ulid/v2"
)

const (
	authContextKey  = "auth_context"
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// AuthMiddleware accepts the access token from the accessToken cookie or a
// Bearer Authorization header and stores the caller's AuthContext.
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token := accessTokenFrom(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "Not authorized"})
			c.Abort()
			return
		}

		auth, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}

		c.Set(authContextKey, auth)
		c.Next()
	}
}

func GetAuthContext(c *gin.Context) (model.AuthContext, bool) {
	if value, ok := c.Get(authContextKey); ok {
		if auth, ok := value.(model.AuthContext); ok {
			return auth, true
		}
	}
	return model.AuthContext{}, false
}

func accessTokenFrom(c *gin.Context) string {
	if token, err := c.Cookie(accessCookieName); err == nil && token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// RequestID propagates X-Request-ID or assigns a new ULID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = ulid.Make().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func RequestLogger(logger logging.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		m.ObserveRequest(c.Request.Method, c.FullPath(), status, elapsed)

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", c.GetString(requestIDKey),
			"user_agent", c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.String())
		}

		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error(ctx, "request failed", args...)
		case status >= http.StatusBadRequest:
			logger.Info(ctx, "request rejected", args...)
		default:
			logger.Debug(ctx, "request", args...)
		}
	}
}

func CORSMiddleware(allowedOrigins []string, allowCredentials bool) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				if allowCredentials {
					c.Header("Access-Control-Allow-Credentials", "true")
				}
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
				c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
