package handlers

import (
	"time"

	"github.com/mroshb/group_quiz_bot/internal/config"
	"github.com/mroshb/group_quiz_bot/internal/knowledge"
	"github.com/mroshb/group_quiz_bot/internal/llm"
	"github.com/mroshb/group_quiz_bot/internal/middleware"
	"github.com/mroshb/group_quiz_bot/internal/repositories"
	"github.com/mroshb/group_quiz_bot/internal/services"
	"github.com/mroshb/group_quiz_bot/internal/storage"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
	"gorm.io/gorm"
)

// HandlerManager owns the quiz components shared by the chat transports and
// the admin API.
type HandlerManager struct {
	Config     *config.Config
	DB         *gorm.DB
	Store      storage.Store
	Sessions   *repositories.SessionRepository
	Whitelist  *repositories.WhitelistRepository
	Games      *repositories.GameStateRepository
	Welcome    *repositories.WelcomeRepository
	AuditRepo  *repositories.AuditRepository
	Pipeline   *services.QuestionPipeline
	Quiz       *GroupQuizHandler
	Dispatcher *Dispatcher
	Limiter    *middleware.RateLimiter
}

// NewHandlerManager wires the quiz from configuration. db and search may be
// nil; without a database audit entries only go to the log.
func NewHandlerManager(
	cfg *config.Config,
	db *gorm.DB,
	store storage.Store,
	gen llm.TextGenerator,
	search knowledge.KnowledgeSearch,
	transport MessageTransport,
) *HandlerManager {
	m := &HandlerManager{
		Config:    cfg,
		DB:        db,
		Store:     store,
		Sessions:  repositories.NewSessionRepository(store),
		Whitelist: repositories.NewWhitelistRepository(store),
		Games:     repositories.NewGameStateRepository(store),
		Welcome:   repositories.NewWelcomeRepository(store),
		Limiter:   middleware.NewRateLimiter(cfg.RateLimitPerUser, cfg.RateLimitPerUser*5, time.Minute),
	}

	var audit repositories.AuditLogger = repositories.LogAuditLogger{}
	if db != nil {
		m.AuditRepo = repositories.NewAuditRepository(db)
		audit = m.AuditRepo
	}

	m.Pipeline = services.NewQuestionPipeline(gen, search, m.Games, services.PipelineOptions{
		MaxQuestions: cfg.QuizMaxQuestions,
		ProgramName:  cfg.QuizProgramName,
		ContextQuery: cfg.QuizContextQuery,
	})

	format := &Formatter{
		ProgramName: cfg.QuizProgramName,
		RulesURL:    cfg.QuizRulesURL,
		JoinBonus:   cfg.QuizJoinBonus,
	}
	var welcome *repositories.WelcomeRepository
	if cfg.WelcomeEnabled {
		welcome = m.Welcome
	}
	m.Quiz = NewGroupQuizHandler(m.Sessions, m.Pipeline, services.NewQuizAssistant(gen, search), transport, audit, welcome, format, QuizSettings{
		PerParticipant: cfg.QuizPerParticipant,
		JoinBonus:      cfg.QuizJoinBonus,
		MaxQuestions:   cfg.QuizMaxQuestions,
		PollTimeout:    cfg.GetPollTimeout(),
		FetchRetries:   cfg.QuizFetchRetries,
		FetchBackoff:   cfg.GetFetchBackoff(),
		PauseBetween:   cfg.QuizPauseBetween,
		ContextQuery:   cfg.QuizContextQuery,
	})

	var gate GroupGate
	if cfg.WhitelistEnabled {
		gate = m.Whitelist
	} else {
		logger.Warn("Group whitelist disabled, answering in every group")
	}
	m.Dispatcher = NewDispatcher(m.Quiz, gate, m.Limiter, cfg.GetGroupIdle())

	return m
}

// Shutdown drains queued events and gives generation workers up to grace
// to finish their current game.
func (m *HandlerManager) Shutdown(grace time.Duration) {
	m.Dispatcher.Stop()
	m.Limiter.Stop()

	done := make(chan struct{})
	go func() {
		m.Pipeline.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		logger.Warn("Generation workers still running at shutdown", "grace", grace)
	}
}
