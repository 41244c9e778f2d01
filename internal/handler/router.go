package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/authd/docs"
	"github.com/kube-rca/authd/internal/logging"
	"github.com/kube-rca/authd/internal/metrics"
	"github.com/kube-rca/authd/internal/service"
)

type RouterConfig struct {
	Auth           *service.AuthService
	Store          Pinger
	Logger         logging.Logger
	Metrics        *metrics.Metrics
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		RequestID(),
		RequestLogger(cfg.Logger, cfg.Metrics),
		CORSMiddleware(cfg.AllowedOrigins, true),
	)

	authHandler := NewAuthHandler(cfg.Auth)
	userHandler := NewUserHandler(cfg.Auth)
	healthHandler := NewHealthHandler(cfg.Store)

	r.GET("/health", healthHandler.Health)
	r.GET("/openapi.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(docs.SwaggerInfo.ReadDoc()))
	})
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/refresh", authHandler.Refresh)
		auth.GET("/logout", authHandler.Logout)
		auth.GET("/email/verify/:code", authHandler.VerifyEmail)
		auth.POST("/password/forgot", authHandler.ForgotPassword)
		auth.POST("/password/reset", authHandler.ResetPassword)
	}

	protected := r.Group("/", AuthMiddleware(cfg.Auth))
	{
		protected.GET("/user", userHandler.GetUser)
		protected.GET("/sessions", userHandler.ListSessions)
		protected.DELETE("/sessions/:id", userHandler.DeleteSession)
	}

	return r
}
