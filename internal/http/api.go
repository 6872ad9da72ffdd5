package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"direct-chat/internal/auth"
	"direct-chat/internal/service"
)

// SocketServer upgrades an authenticated request into a realtime connection.
type SocketServer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID int64)
}

// CookieOptions controls how the session cookie is written.
type CookieOptions struct {
	Name   string
	Secure bool
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.UserService
	messages service.MessageService
	tokens   *auth.TokenIssuer
	socket   SocketServer
	cookie   CookieOptions
	logger   *logrus.Logger
}

func NewHandler(users service.UserService, messages service.MessageService, tokens *auth.TokenIssuer, socket SocketServer, cookie CookieOptions, logger *logrus.Logger) *Handler {
	if cookie.Name == "" {
		cookie.Name = "jwt"
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:    users,
		messages: messages,
		tokens:   tokens,
		socket:   socket,
		cookie:   cookie,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), corsMiddleware())

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/signup", h.signup)
		authGroup.POST("/login", h.login)
		authGroup.POST("/logout", h.logout)

		protected := api.Group("", h.requireAuth)
		protected.GET("/users", h.listUsers)
		protected.POST("/messages/send/:id", h.sendMessage)
		protected.GET("/messages/:id", h.getMessages)

		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}

	router.GET("/ws", h.requireAuth, h.serveSocket)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// cookies require an explicit origin instead of "*"
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
			"ip":      c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}
