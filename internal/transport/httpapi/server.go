// Package httpapi serves the Evolution webhook, the operator admin API,
// health checks and Prometheus metrics.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/group_quiz_bot/internal/handlers"
	"github.com/mroshb/group_quiz_bot/internal/middleware"
	"github.com/mroshb/group_quiz_bot/internal/transport/evolution"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const dedupCapacity = 2048

// InstanceStatus reports the chat connection of the outbound transport.
type InstanceStatus interface {
	ConnectionState(ctx context.Context) (string, error)
}

type Server struct {
	mgr      *handlers.HandlerManager
	dedup    *evolution.MessageDeduper
	instance InstanceStatus
}

// NewRouter builds the gin engine. instance may be nil. Admin routes are
// only mounted when an admin JWT secret is configured.
func NewRouter(mgr *handlers.HandlerManager, instance InstanceStatus) *gin.Engine {
	s := &Server{
		mgr:      mgr,
		dedup:    evolution.NewMessageDeduper(dedupCapacity),
		instance: instance,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Evolution posts every chat's events from one address, so the webhook
	// relies on the per-participant limit in the dispatcher instead of an
	// IP budget.
	hooks := r.Group("/webhook")
	hooks.POST("", s.webhook(""))
	hooks.POST("/messages-upsert", s.webhook(evolution.EventMessagesUpsert))
	hooks.POST("/group-participants-update", s.webhook(evolution.EventParticipantsUpdate))

	if mgr.Config.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set, admin API disabled")
		return r
	}

	admin := r.Group("/admin", mgr.Limiter.IPLimit(), middleware.AdminAuth(mgr.Config.AdminJWTSecret))
	admin.GET("/whitelist", s.listWhitelist)
	admin.POST("/whitelist/:group", s.addWhitelist)
	admin.DELETE("/whitelist/:group", s.removeWhitelist)
	admin.GET("/groups/active", s.activeGroups)
	admin.POST("/groups/:group/reset", s.resetGroup)
	admin.GET("/groups/:group/ranking.xlsx", s.rankingExport)
	admin.GET("/groups/:group/logs", s.auditLogs)
	admin.GET("/games/:game/status", s.gameStatus)
	admin.GET("/instance", s.instanceStatus)
	admin.GET("/participants/:participant/rate", s.participantRate)
	admin.GET("/welcome/:group", s.getWelcome)
	admin.PUT("/welcome/:group", s.putWelcome)
	admin.POST("/welcome/:group/toggle", s.toggleWelcome)
	admin.GET("/welcome/:group/members", s.welcomeMembers)

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	store := "ok"
	if err := s.mgr.Store.Ping(ctx); err != nil {
		store = "unavailable"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"store":         store,
		"group_workers": s.mgr.Dispatcher.ActiveGroups(),
	})
}
