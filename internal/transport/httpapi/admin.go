package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/group_quiz_bot/internal/middleware"
	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/internal/security"
	"github.com/mroshb/group_quiz_bot/internal/services"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type activeGroup struct {
	GroupID         string            `json:"group_id"`
	GroupName       string            `json:"group_name"`
	GameID          string            `json:"quiz_id"`
	State           models.GroupState `json:"state"`
	CurrentQuestion int               `json:"current_question"`
	TotalQuestions  int               `json:"total_questions"`
	Participants    int               `json:"participants"`
}

func groupParam(c *gin.Context) (string, bool) {
	group := strings.TrimSpace(c.Param("group"))
	if !security.ValidateGroupAddress(group) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return "", false
	}
	return group, true
}

func (s *Server) listWhitelist(c *gin.Context) {
	groups, err := s.mgr.Whitelist.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(groups), "groups": groups})
}

func (s *Server) addWhitelist(c *gin.Context) {
	group, ok := groupParam(c)
	if !ok {
		return
	}
	added, err := s.mgr.Whitelist.Add(c.Request.Context(), group)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	logger.Info("Whitelist add", "group_id", group, "added", added, "operator", c.GetString(middleware.OperatorKey))
	c.JSON(http.StatusOK, gin.H{"group_id": group, "added": added})
}

func (s *Server) removeWhitelist(c *gin.Context) {
	group, ok := groupParam(c)
	if !ok {
		return
	}
	removed, err := s.mgr.Whitelist.Remove(c.Request.Context(), group)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"group_id": group, "removed": false})
		return
	}

	logger.Info("Whitelist remove", "group_id", group, "operator", c.GetString(middleware.OperatorKey))
	c.JSON(http.StatusOK, gin.H{"group_id": group, "removed": true})
}

func (s *Server) activeGroups(c *gin.Context) {
	sessions := s.mgr.Sessions.ActiveSessions(c.Request.Context())
	groups := make([]activeGroup, 0, len(sessions))
	for _, sess := range sessions {
		groups = append(groups, activeGroup{
			GroupID:         sess.GroupID,
			GroupName:       sess.GroupName,
			GameID:          sess.GameID,
			State:           sess.State,
			CurrentQuestion: sess.CurrentQuestion,
			TotalQuestions:  sess.TotalQuestions,
			Participants:    len(sess.Participants),
		})
	}
	c.JSON(http.StatusOK, gin.H{"total": len(groups), "groups": groups})
}

// resetGroup queues the reset on the group's worker so it never races a
// message being handled.
func (s *Server) resetGroup(c *gin.Context) {
	group, ok := groupParam(c)
	if !ok {
		return
	}
	ev := models.GroupEvent{
		Kind:          models.EventReset,
		GroupID:       group,
		ParticipantID: c.GetString(middleware.OperatorKey),
	}
	if !s.mgr.Dispatcher.Enqueue(ev) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"group_id": group, "status": "reset queued"})
}

func (s *Server) rankingExport(c *gin.Context) {
	group, ok := groupParam(c)
	if !ok {
		return
	}
	session := s.mgr.Sessions.Get(c.Request.Context(), group)
	if len(session.Participants) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no participants"})
		return
	}

	data, err := services.ExportRanking(session)
	if err != nil {
		logger.Error("Ranking export failed", "group_id", group, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	name := strings.TrimSuffix(group, "@g.us")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ranking-%s.xlsx"`, name))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (s *Server) auditLogs(c *gin.Context) {
	group, ok := groupParam(c)
	if !ok {
		return
	}
	if s.mgr.AuditRepo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit log not configured"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := s.mgr.AuditRepo.Recent(c.Request.Context(), group, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audit log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(entries), "entries": entries})
}

func (s *Server) gameStatus(c *gin.Context) {
	status := s.mgr.Pipeline.Status(c.Request.Context(), c.Param("game"))
	if !status.Found {
		c.JSON(http.StatusNotFound, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) instanceStatus(c *gin.Context) {
	if s.instance == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "transport has no instance status"})
		return
	}
	state, err := s.instance.ConnectionState(c.Request.Context())
	if err != nil {
		logger.Warn("Instance status failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "instance unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

// participantRate reports how many more messages a participant may send in
// the current rate window.
func (s *Server) participantRate(c *gin.Context) {
	participant := strings.TrimSpace(c.Param("participant"))
	if participant == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"participant_id": participant,
		"limit":          s.mgr.Config.RateLimitPerUser,
		"remaining":      s.mgr.Limiter.GetParticipantRemaining(participant),
	})
}

type welcomeRequest struct {
	GroupName      string `json:"group_name"`
	Enabled        *bool  `json:"enabled"`
	WelcomeMessage string `json:"welcome_message"`
	GoodbyeMessage string `json:"goodbye_message"`
	InviteLink     string `json:"invite_link"`
}

func (s *Server) getWelcome(c *gin.Context) {
	group, ok := groupParam(c)
	if !ok {
		return
	}
	cfg, err := s.mgr.Welcome.GetConfig(c.Request.Context(), group)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// putWelcome replaces the group's welcome config. Omitting enabled keeps
// the current setting.
func (s *Server) putWelcome(c *gin.Context) {
	group, ok := groupParam(c)
	if !ok {
		return
	}
	var req welcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	ctx := c.Request.Context()
	cfg, err := s.mgr.Welcome.GetConfig(ctx, group)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	cfg.GroupName = strings.TrimSpace(req.GroupName)
	cfg.WelcomeMessage = req.WelcomeMessage
	cfg.GoodbyeMessage = req.GoodbyeMessage
	cfg.InviteLink = strings.TrimSpace(req.InviteLink)
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}

	if err := s.mgr.Welcome.SaveConfig(ctx, cfg); err != nil {
		if errors.HasCode(err, errors.ErrCodeValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	logger.Info("Welcome config updated", "group_id", group, "enabled", cfg.Enabled, "operator", c.GetString(middleware.OperatorKey))
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) toggleWelcome(c *gin.Context) {
	group, ok := groupParam(c)
	if !ok {
		return
	}
	enabled, err := strconv.ParseBool(c.Query("enabled"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled must be true or false"})
		return
	}
	cfg, err := s.mgr.Welcome.SetEnabled(c.Request.Context(), group, enabled)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	logger.Info("Welcome toggled", "group_id", group, "enabled", enabled, "operator", c.GetString(middleware.OperatorKey))
	c.JSON(http.StatusOK, gin.H{"group_id": group, "enabled": cfg.Enabled})
}

func (s *Server) welcomeMembers(c *gin.Context) {
	group, ok := groupParam(c)
	if !ok {
		return
	}
	members, err := s.mgr.Welcome.Members(c.Request.Context(), group)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	active, welcomed := 0, 0
	for _, m := range members {
		if m.Active() {
			active++
		}
		if m.Welcomed {
			welcomed++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"group_id": group,
		"total":    len(members),
		"active":   active,
		"welcomed": welcomed,
		"members":  members,
	})
}
