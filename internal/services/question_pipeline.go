package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mroshb/group_quiz_bot/internal/dedup"
	"github.com/mroshb/group_quiz_bot/internal/knowledge"
	"github.com/mroshb/group_quiz_bot/internal/llm"
	"github.com/mroshb/group_quiz_bot/internal/metrics"
	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotReady is returned by Get when the ordinal did not appear in time.
	ErrNotReady = errors.New(errors.ErrCodeNotReady, "question not ready")
	// ErrGameNotFound is returned when a game id is neither cached nor backed up.
	ErrGameNotFound = errors.New(errors.ErrCodeNotFound, "game not found")
)

// GameFailedError carries the terminal error of a game's generation worker.
// It matches ErrNotReady under errors.Is.
type GameFailedError struct {
	GameID string
	Reason string
}

func (e *GameFailedError) Error() string {
	return fmt.Sprintf("game %s failed: %s", e.GameID, e.Reason)
}

func (e *GameFailedError) Unwrap() error {
	return ErrNotReady
}

// difficultySequence is the tier order of ordinals 2..N, cycled when N is larger.
var difficultySequence = []models.Difficulty{
	models.DifficultyMedium, models.DifficultyEasy, models.DifficultyHard,
	models.DifficultyMedium, models.DifficultyHard, models.DifficultyMedium,
	models.DifficultyEasy, models.DifficultyHard, models.DifficultyHard,
}

// DifficultySequence returns the tiers for n background ordinals.
func DifficultySequence(n int) []models.Difficulty {
	out := make([]models.Difficulty, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, difficultySequence[i%len(difficultySequence)])
	}
	return out
}

// GameBackup is the durable, non-authoritative mirror of game states.
type GameBackup interface {
	SaveGame(ctx context.Context, snap *models.GameSnapshot) error
	LoadGame(ctx context.Context, gameID string) (*models.GameSnapshot, error)
}

// GameCache is the in-memory source of truth for running games.
type GameCache struct {
	mu    sync.RWMutex
	games map[string]*models.GameState
}

func NewGameCache() *GameCache {
	return &GameCache{games: make(map[string]*models.GameState)}
}

func (c *GameCache) Get(gameID string) (*models.GameState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.games[gameID]
	return s, ok
}

// PutIfAbsent stores s unless a state with the same id exists, returning
// the cached state and whether s was stored.
func (c *GameCache) PutIfAbsent(s *models.GameState) (*models.GameState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.games[s.ID()]; ok {
		return existing, false
	}
	c.games[s.ID()] = s
	return s, true
}

func (c *GameCache) Remove(gameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.games, gameID)
}

func (c *GameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.games)
}

type PipelineOptions struct {
	MaxQuestions    int
	ProgramName     string
	ContextQuery    string
	ContextTopK     int
	ContextPassages int
	PollInterval    time.Duration
	DefaultTimeout  time.Duration
	StoreTimeout    time.Duration
}

func (o *PipelineOptions) withDefaults() {
	if o.MaxQuestions <= 0 {
		o.MaxQuestions = 10
	}
	if o.ProgramName == "" {
		o.ProgramName = "Renda Extra Ton"
	}
	if o.ContextQuery == "" {
		o.ContextQuery = "Regras, validações, benefícios, prazos, níveis, recompensas do programa " + o.ProgramName
	}
	if o.ContextTopK <= 0 {
		o.ContextTopK = 10
	}
	if o.ContextPassages <= 0 {
		o.ContextPassages = 8
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = 30 * time.Second
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 3 * time.Second
	}
}

// GameStatus is a non-blocking snapshot of a game's generation progress.
type GameStatus struct {
	GameID         string   `json:"quiz_id"`
	Found          bool     `json:"found"`
	GeneratedCount int      `json:"generated_count"`
	TotalQuestions int      `json:"total_questions"`
	Complete       bool     `json:"complete"`
	Error          string   `json:"error,omitempty"`
	MaxScore       int      `json:"max_score"`
	QuestionsReady []int    `json:"questions_ready"`
	PreviousTopics []string `json:"previous_topics"`
}

// QuestionPipeline produces the first question of a game synchronously and
// the rest in one background worker per game. Readers poll with Get.
type QuestionPipeline struct {
	gen    llm.TextGenerator
	search knowledge.KnowledgeSearch
	backup GameBackup
	cache  *GameCache
	opts   PipelineOptions
	reload singleflight.Group
	wg     sync.WaitGroup
}

// NewQuestionPipeline wires the pipeline. search and backup may be nil.
func NewQuestionPipeline(gen llm.TextGenerator, search knowledge.KnowledgeSearch, backup GameBackup, opts PipelineOptions) *QuestionPipeline {
	opts.withDefaults()
	return &QuestionPipeline{
		gen:    gen,
		search: search,
		backup: backup,
		cache:  NewGameCache(),
		opts:   opts,
	}
}

func (p *QuestionPipeline) MaxQuestions() int {
	return p.opts.MaxQuestions
}

// Start creates a game, generates question 1 and launches the worker for
// the remaining ordinals. It never waits for ordinals 2..N.
func (p *QuestionPipeline) Start(ctx context.Context, contextQuery string) (string, *models.Question, error) {
	if contextQuery == "" {
		contextQuery = p.opts.ContextQuery
	}

	state := p.newGameState()
	log := logger.With("game_id", state.ID())
	log.Infow("Starting game")

	state.SetContext(p.fetchContext(ctx, contextQuery))
	if err := ctx.Err(); err != nil {
		p.cache.Remove(state.ID())
		log.Infow("Start abandoned", "error", err)
		return "", nil, err
	}

	first := p.generateFirst(ctx, state)
	state.AddQuestion(first)
	state.AddTopic(dedup.ExtractTopic(first.Text))

	p.backupState(ctx, state)
	metrics.GameStarted()

	p.launchWorker(context.WithoutCancel(ctx), state, contextQuery)

	log.Infow("First question ready, background generation started", "total", state.Total())
	return state.ID(), first, nil
}

func (p *QuestionPipeline) newGameState() *models.GameState {
	for {
		state := models.NewGameState(uuid.NewString()[:8], p.opts.MaxQuestions)
		if stored, ok := p.cache.PutIfAbsent(state); ok {
			return stored
		}
	}
}

func (p *QuestionPipeline) fetchContext(ctx context.Context, query string) string {
	if p.search == nil {
		return ""
	}
	passages, err := p.search.Search(ctx, query, p.opts.ContextTopK)
	if err != nil {
		logger.Warn("Knowledge search failed, continuing without context", "error", err)
		return ""
	}
	if len(passages) == 0 {
		logger.Warn("No passages found for context query", "query", query)
		return ""
	}
	return knowledge.FormatContext(passages, p.opts.ContextPassages)
}

func (p *QuestionPipeline) generateFirst(ctx context.Context, state *models.GameState) *models.Question {
	seed := rand.IntN(9000) + 1000
	text, err := p.gen.Complete(ctx, firstQuestionPrompt(p.opts.ProgramName, state.Context(), seed))
	if err == nil {
		var q *models.Question
		if q, err = ParseQuestion(text, 1, models.DifficultyEasy); err == nil {
			metrics.QuestionStored(false)
			return q
		}
	}
	logger.Error("First question generation failed, using fallback", "game_id", state.ID(), "error", err)
	metrics.QuestionStored(true)
	return FirstQuestionFallback(p.opts.ProgramName)
}

func (p *QuestionPipeline) launchWorker(ctx context.Context, state *models.GameState, contextQuery string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.generateRemaining(ctx, state, contextQuery)
	}()
}

// generateRemaining fills ordinals 2..N. It is the only writer of state
// after Start returns.
func (p *QuestionPipeline) generateRemaining(ctx context.Context, state *models.GameState, contextQuery string) {
	log := logger.With("game_id", state.ID())

	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Fatal error in generation worker", "panic", r)
			state.SetError(fmt.Sprint(r))
			p.backupState(ctx, state)
			metrics.WorkerFinished(true)
		}
	}()

	if state.Context() == "" {
		state.SetContext(p.fetchContext(ctx, contextQuery))
	}

	for i, tier := range DifficultySequence(state.Total() - 1) {
		ordinal := i + 2
		if _, ok := state.Question(ordinal); ok {
			continue
		}

		q := p.generateQuestion(ctx, state, ordinal, tier)
		if !state.AddQuestion(q) {
			log.Warnw("Ordinal already filled, keeping existing question", "ordinal", ordinal)
			continue
		}
		topic := dedup.ExtractTopic(q.Text)
		state.AddTopic(topic)
		p.backupState(ctx, state)

		log.Infow("Question stored", "ordinal", ordinal, "difficulty", q.Difficulty, "topic", topic)
	}

	state.MarkComplete()
	p.backupState(ctx, state)
	metrics.WorkerFinished(false)
	log.Infow("Generation complete", "questions", len(state.ReadyOrdinals()))
}

// generateQuestion makes a single attempt. Topic collisions are accepted
// and logged; any other failure yields the fallback question.
func (p *QuestionPipeline) generateQuestion(ctx context.Context, state *models.GameState, ordinal int, tier models.Difficulty) *models.Question {
	prompt := singleQuestionPrompt(p.opts.ProgramName, state.Context(), tier, ordinal, dedup.FormatUsedTopics(state.Topics()))

	text, err := p.gen.Complete(ctx, prompt)
	if err == nil {
		var q *models.Question
		if q, err = ParseQuestion(text, ordinal, tier); err == nil {
			if valid, topic := dedup.ValidateAndGetTopic(q.Text, state.Topics()); !valid {
				logger.Info("Similar topic detected, accepting question",
					"game_id", state.ID(), "ordinal", ordinal, "topic", topic)
				metrics.TopicCollision()
			}
			metrics.QuestionStored(false)
			return q
		}
	}

	logger.Error("Question generation failed, using fallback",
		"game_id", state.ID(), "ordinal", ordinal, "error", err)
	metrics.QuestionStored(true)
	return FallbackQuestion(ordinal, tier, p.opts.ProgramName)
}

func (p *QuestionPipeline) backupState(ctx context.Context, state *models.GameState) {
	if p.backup == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.StoreTimeout)
	defer cancel()
	if err := p.backup.SaveGame(ctx, state.Snapshot()); err != nil {
		logger.Warn("Failed to back up game state", "game_id", state.ID(), "error", err)
		metrics.StoreError("game_backup")
	}
}

// lookup returns the cached state, reloading it once from the backup when
// absent. Concurrent reloads of the same id are collapsed.
func (p *QuestionPipeline) lookup(ctx context.Context, gameID string) (*models.GameState, bool) {
	if s, ok := p.cache.Get(gameID); ok {
		return s, true
	}
	if p.backup == nil {
		return nil, false
	}

	v, err, _ := p.reload.Do(gameID, func() (interface{}, error) {
		if s, ok := p.cache.Get(gameID); ok {
			return s, nil
		}
		loadCtx, cancel := context.WithTimeout(ctx, p.opts.StoreTimeout)
		defer cancel()

		snap, err := p.backup.LoadGame(loadCtx, gameID)
		if err != nil {
			return nil, err
		}
		s, stored := p.cache.PutIfAbsent(models.GameStateFromSnapshot(snap))
		if stored {
			logger.Info("Game state reloaded from backup", "game_id", gameID, "questions", len(s.ReadyOrdinals()))
			if !s.Complete() && s.Err() == "" {
				p.launchWorker(context.WithoutCancel(ctx), s, p.opts.ContextQuery)
			}
		}
		return s, nil
	})
	if err != nil {
		logger.Warn("Failed to reload game state", "game_id", gameID, "error", err)
		return nil, false
	}
	return v.(*models.GameState), true
}

// Get waits up to timeout for ordinal to be generated, checking every poll
// interval. A timeout or terminal worker error yields ErrNotReady.
func (p *QuestionPipeline) Get(ctx context.Context, gameID string, ordinal int, timeout time.Duration) (*models.Question, error) {
	if timeout <= 0 {
		timeout = p.opts.DefaultTimeout
	}
	start := time.Now()

	state, ok := p.lookup(ctx, gameID)
	if !ok {
		metrics.ObservePoll("failed", time.Since(start))
		return nil, ErrGameNotFound
	}
	if ordinal < 1 || ordinal > state.Total() {
		return nil, errors.New(errors.ErrCodeValidation, fmt.Sprintf("ordinal %d outside 1..%d", ordinal, state.Total()))
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		if q, ok := state.Question(ordinal); ok {
			metrics.ObservePoll("ready", time.Since(start))
			return q, nil
		}
		if reason := state.Err(); reason != "" {
			metrics.ObservePoll("failed", time.Since(start))
			return nil, &GameFailedError{GameID: gameID, Reason: reason}
		}

		select {
		case <-ctx.Done():
			metrics.ObservePoll("canceled", time.Since(start))
			return nil, ctx.Err()
		case <-deadline.C:
			if q, ok := state.Question(ordinal); ok {
				metrics.ObservePoll("ready", time.Since(start))
				return q, nil
			}
			logger.Warn("Timed out waiting for question", "game_id", gameID, "ordinal", ordinal)
			metrics.ObservePoll("timeout", time.Since(start))
			return nil, ErrNotReady
		case <-ticker.C:
		}
	}
}

// Status reports generation progress without waiting.
func (p *QuestionPipeline) Status(ctx context.Context, gameID string) GameStatus {
	state, ok := p.lookup(ctx, gameID)
	if !ok {
		return GameStatus{GameID: gameID, Found: false, Error: "Quiz não encontrado"}
	}
	ready := state.ReadyOrdinals()
	return GameStatus{
		GameID:         gameID,
		Found:          true,
		GeneratedCount: len(ready),
		TotalQuestions: state.Total(),
		Complete:       state.Complete(),
		Error:          state.Err(),
		MaxScore:       state.MaxScore(),
		QuestionsReady: ready,
		PreviousTopics: state.Topics(),
	}
}

// Wait blocks until every running worker has finished. Used on shutdown and in tests.
func (p *QuestionPipeline) Wait() {
	p.wg.Wait()
}
