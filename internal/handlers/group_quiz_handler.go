package handlers

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/mroshb/group_quiz_bot/internal/metrics"
	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/internal/repositories"
	"github.com/mroshb/group_quiz_bot/internal/security"
	"github.com/mroshb/group_quiz_bot/internal/services"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
)

// QuestionSource is the part of the generation pipeline the orchestrator drives.
type QuestionSource interface {
	Start(ctx context.Context, contextQuery string) (string, *models.Question, error)
	Get(ctx context.Context, gameID string, ordinal int, timeout time.Duration) (*models.Question, error)
	MaxQuestions() int
}

// Assistant produces hints and doubt answers from the regulation.
type Assistant interface {
	Hint(ctx context.Context, q *models.Question, previous []string) (string, error)
	AnswerDoubt(ctx context.Context, doubt string) (string, error)
}

// MessageTransport delivers text to a group address. Failures are logged by
// the caller and never retried.
type MessageTransport interface {
	SendText(ctx context.Context, address, text string) error
}

type QuizSettings struct {
	PerParticipant int
	JoinBonus      int
	MaxQuestions   int
	PollTimeout    time.Duration
	FetchRetries   int
	FetchBackoff   time.Duration
	PauseBetween   bool
	ContextQuery   string
	MaxHints       int
	DoubtTimeout   time.Duration
}

func (s *QuizSettings) withDefaults() {
	if s.PerParticipant <= 0 {
		s.PerParticipant = 3
	}
	if s.MaxQuestions <= 0 {
		s.MaxQuestions = 10
	}
	if s.PollTimeout <= 0 {
		s.PollTimeout = 30 * time.Second
	}
	if s.FetchRetries <= 0 {
		s.FetchRetries = 3
	}
	if s.FetchBackoff <= 0 {
		s.FetchBackoff = time.Second
	}
	if s.MaxHints <= 0 {
		s.MaxHints = 2
	}
	if s.DoubtTimeout <= 0 {
		s.DoubtTimeout = 2 * time.Second
	}
}

// GroupQuizHandler is the per-group quiz state machine. Callers must
// serialize events of the same group; the Dispatcher does this.
type GroupQuizHandler struct {
	sessions  *repositories.SessionRepository
	questions QuestionSource
	assistant Assistant
	transport MessageTransport
	audit     repositories.AuditLogger
	welcome   *repositories.WelcomeRepository
	format    *Formatter
	settings  QuizSettings
	now       func() time.Time
}

func NewGroupQuizHandler(
	sessions *repositories.SessionRepository,
	questions QuestionSource,
	assistant Assistant,
	transport MessageTransport,
	audit repositories.AuditLogger,
	welcome *repositories.WelcomeRepository,
	format *Formatter,
	settings QuizSettings,
) *GroupQuizHandler {
	settings.withDefaults()
	if audit == nil {
		audit = repositories.LogAuditLogger{}
	}
	return &GroupQuizHandler{
		sessions:  sessions,
		questions: questions,
		assistant: assistant,
		transport: transport,
		audit:     audit,
		welcome:   welcome,
		format:    format,
		settings:  settings,
		now:       time.Now,
	}
}

// HandleEvent routes a dispatched event to its handler.
func (h *GroupQuizHandler) HandleEvent(ctx context.Context, ev models.GroupEvent) {
	switch ev.Kind {
	case models.EventMessage:
		h.OnGroupMessage(ctx, ev)
	case models.EventJoined:
		h.OnParticipantJoined(ctx, ev.GroupID, ev.ParticipantID, ev.ParticipantName)
	case models.EventLeft:
		h.OnParticipantLeft(ctx, ev.GroupID, ev.ParticipantID)
	case models.EventReset:
		h.ResetGroup(ctx, ev.GroupID, ev.ParticipantID)
	}
}

// ResetGroup forgets a group's session on operator request without
// notifying the chat. The next event starts from a fresh IDLE session.
func (h *GroupQuizHandler) ResetGroup(ctx context.Context, groupID, operator string) {
	s := h.sessions.Get(ctx, groupID)
	gameID := s.GameID
	h.sessions.Delete(ctx, groupID)

	logger.Info("Group session reset", "group_id", groupID, "game_id", gameID, "operator", operator)
	h.record(ctx, s, operator, models.LogCategoryQuiz, "session_reset", "session reset by operator", nil)
}

// OnGroupMessage interprets one chat message against the group's session.
func (h *GroupQuizHandler) OnGroupMessage(ctx context.Context, msg models.GroupEvent) {
	text := security.SanitizeMessage(msg.Text)
	name := security.SanitizeDisplayName(msg.ParticipantName)
	pid := msg.ParticipantID

	cmd := ParseCommand(text)
	s := h.sessions.Get(ctx, msg.GroupID)

	logger.Debug("Group message", "group_id", s.GroupID, "participant_id", pid, "command", cmd.Kind, "state", s.State)

	if cmd.Kind != CmdNone {
		metrics.Command(string(cmd.Kind))
		h.record(ctx, s, pid, models.LogCategoryCommand, "command", string(cmd.Kind), nil)
	}

	if s.IsPlaying() && !s.HasParticipant(pid) && cmd.Kind != CmdStop {
		h.joinMidGame(ctx, s, pid, name)
	}

	switch cmd.Kind {
	case CmdHelp:
		h.send(ctx, s.GroupID, h.format.Help())
		return
	case CmdRules:
		h.send(ctx, s.GroupID, h.format.Rules())
		return
	case CmdStatus:
		h.send(ctx, s.GroupID, h.format.Status(s))
		return
	case CmdRanking:
		h.send(ctx, s.GroupID, h.format.Ranking(s, true))
		return
	case CmdDoubt:
		h.answerDoubt(ctx, s, cmd.Text)
		return
	}

	if h.pendingAdvance(s) && cmd.Kind != CmdStop {
		h.advance(ctx, s)
		return
	}

	switch s.State {
	case models.GroupStateIdle:
		h.handleIdle(ctx, s, pid, name, cmd)
	case models.GroupStateWaitingStart:
		h.handleLobby(ctx, s, pid, name, cmd)
	case models.GroupStateActive:
		h.handleActive(ctx, s, pid, name, cmd)
	case models.GroupStateWaitingNext:
		h.handleWaitingNext(ctx, s, pid, name, cmd)
	case models.GroupStateFinished:
		switch cmd.Kind {
		case CmdStart:
			h.openLobby(ctx, s, pid, name)
		case CmdStop:
			h.cancel(ctx, s, name)
		}
	}
}

func (h *GroupQuizHandler) handleIdle(ctx context.Context, s *models.GroupSession, pid, name string, cmd Command) {
	switch cmd.Kind {
	case CmdStart:
		h.openLobby(ctx, s, pid, name)
	case CmdJoin, CmdBegin, CmdNext, CmdHint:
		h.send(ctx, s.GroupID, h.format.NoQuiz())
	}
}

func (h *GroupQuizHandler) handleLobby(ctx context.Context, s *models.GroupSession, pid, name string, cmd Command) {
	switch cmd.Kind {
	case CmdStart:
		h.send(ctx, s.GroupID, h.format.LobbyOpen())
	case CmdJoin:
		if !s.AddParticipant(pid, name) {
			h.send(ctx, s.GroupID, h.format.AlreadyJoined(name))
			return
		}
		h.sessions.Save(ctx, s)
		h.record(ctx, s, pid, models.LogCategoryParticipant, "participant_joined", name+" joined the lobby", nil)
		h.send(ctx, s.GroupID, h.format.Joined(name, s))
	case CmdBegin:
		h.begin(ctx, s, pid)
	case CmdStop:
		h.cancel(ctx, s, name)
	}
}

func (h *GroupQuizHandler) handleActive(ctx context.Context, s *models.GroupSession, pid, name string, cmd Command) {
	switch cmd.Kind {
	case CmdAnswer:
		h.answer(ctx, s, pid, cmd.Answer)
	case CmdHint:
		h.hint(ctx, s)
	case CmdStop:
		h.cancel(ctx, s, name)
	case CmdStart:
		h.send(ctx, s.GroupID, h.format.QuizInProgress())
	}
}

func (h *GroupQuizHandler) handleWaitingNext(ctx context.Context, s *models.GroupSession, pid, name string, cmd Command) {
	switch cmd.Kind {
	case CmdNext:
		h.advance(ctx, s)
	case CmdStop:
		h.cancel(ctx, s, name)
	case CmdAnswer:
		h.send(ctx, s.GroupID, h.format.WaitingNext())
	case CmdStart:
		h.send(ctx, s.GroupID, h.format.QuizInProgress())
	}
}

// openLobby starts a new lobby with the starter as its first participant.
func (h *GroupQuizHandler) openLobby(ctx context.Context, s *models.GroupSession, pid, name string) {
	s.OpenLobby(pid)
	s.AddParticipant(pid, name)
	h.sessions.Save(ctx, s)

	h.record(ctx, s, pid, models.LogCategoryQuiz, "lobby_created", name+" opened a lobby", nil)
	h.send(ctx, s.GroupID, h.format.Lobby(s))
}

func (h *GroupQuizHandler) begin(ctx context.Context, s *models.GroupSession, pid string) {
	if len(s.Participants) == 0 {
		h.send(ctx, s.GroupID, h.format.LobbyEmpty())
		return
	}

	gameID, first, err := h.questions.Start(ctx, h.settings.ContextQuery)
	if err != nil {
		logger.Error("Failed to start game", "group_id", s.GroupID, "error", err)
		h.recordError(ctx, s, pid, "start_failed", err)
		h.send(ctx, s.GroupID, h.format.StartFailed())
		return
	}

	total := models.TotalQuestionsFor(len(s.Participants), h.settings.PerParticipant, h.maxQuestions())
	s.BeginGame(gameID, total, h.now())
	h.sessions.Save(ctx, s)

	logger.Info("Quiz started", "group_id", s.GroupID, "game_id", gameID, "participants", len(s.Participants), "total", total)
	h.record(ctx, s, pid, models.LogCategoryQuiz, "quiz_started", "quiz started",
		map[string]interface{}{"participants": len(s.Participants), "total_questions": total})

	h.send(ctx, s.GroupID, h.format.Started(s))
	h.send(ctx, s.GroupID, h.format.Question(first, 1, s.TotalQuestions, h.turnName(s)))
}

// maxQuestions is the smaller of the configured cap and the pipeline's game length.
func (h *GroupQuizHandler) maxQuestions() int {
	max := h.settings.MaxQuestions
	if n := h.questions.MaxQuestions(); n > 0 && n < max {
		max = n
	}
	return max
}

func (h *GroupQuizHandler) joinMidGame(ctx context.Context, s *models.GroupSession, pid, name string) {
	if !s.JoinMidGame(pid, name, h.settings.JoinBonus, h.maxQuestions()) {
		return
	}
	h.sessions.Save(ctx, s)

	logger.Info("Participant joined mid-game", "group_id", s.GroupID, "participant_id", pid, "total", s.TotalQuestions)
	h.record(ctx, s, pid, models.LogCategoryParticipant, "participant_joined", name+" joined mid-game",
		map[string]interface{}{"total_questions": s.TotalQuestions})
	h.send(ctx, s.GroupID, h.format.MidGameJoin(name, s.TotalQuestions))
}

func (h *GroupQuizHandler) answer(ctx context.Context, s *models.GroupSession, pid string, idx int) {
	player, ok := s.Participants[pid]
	if !ok {
		return
	}
	if s.CurrentTurn() != pid {
		h.send(ctx, s.GroupID, h.format.NotYourTurn(player.Name, h.turnName(s)))
		return
	}
	if s.HasAnswered(pid) {
		h.send(ctx, s.GroupID, h.format.AlreadyAnswered(player.Name))
		return
	}

	q, err := h.fetchQuestion(ctx, s, s.CurrentQuestion)
	if err != nil {
		h.send(ctx, s.GroupID, h.format.QuestionDelayed())
		return
	}

	correct := q.IsCorrect(idx)
	if !s.RecordAnswer(pid, idx, correct, q.Points, h.now()) {
		return
	}
	s.AdvanceTurn()
	qs := s.CurrentQuestionState()

	finished := s.CurrentQuestion >= s.TotalQuestions
	switch {
	case finished:
		s.Finish(h.now())
	case h.settings.PauseBetween:
		s.State = models.GroupStateWaitingNext
	}
	h.sessions.Save(ctx, s)

	points := 0
	if correct {
		points = q.Points
	}
	h.record(ctx, s, pid, models.LogCategoryQuiz, "answer_received", "answer recorded",
		map[string]interface{}{"answer_index": idx, "correct": correct, "points": points})

	h.send(ctx, s.GroupID, h.format.AnswerFeedback(player.Name, correct, q.Points, len(qs.Answers), len(s.Participants)))
	h.send(ctx, s.GroupID, h.format.QuestionResults(qs, q, h.settings.PauseBetween && !finished))

	switch {
	case finished:
		logger.Info("Quiz finished", "group_id", s.GroupID, "game_id", s.GameID)
		h.record(ctx, s, "", models.LogCategoryQuiz, "quiz_finished", "quiz finished",
			map[string]interface{}{"participants": len(s.Participants)})
		h.send(ctx, s.GroupID, h.format.FinalResults(s))
	case !h.settings.PauseBetween:
		h.advance(ctx, s)
	}
}

// pendingAdvance reports an ACTIVE session whose current question was
// answered but whose next question could not be fetched yet.
func (h *GroupQuizHandler) pendingAdvance(s *models.GroupSession) bool {
	if s.State != models.GroupStateActive || s.CurrentQuestion >= s.TotalQuestions {
		return false
	}
	qs := s.CurrentQuestionState()
	return qs != nil && len(qs.Answers) > 0
}

// advance fetches the next question before moving the session, so a
// question that is not ready leaves the state untouched for the next event.
func (h *GroupQuizHandler) advance(ctx context.Context, s *models.GroupSession) {
	next := s.CurrentQuestion + 1
	q, err := h.fetchQuestion(ctx, s, next)
	if err != nil {
		h.send(ctx, s.GroupID, h.format.QuestionDelayed())
		return
	}

	s.AdvanceQuestion(h.now())
	s.State = models.GroupStateActive
	h.sessions.Save(ctx, s)

	h.send(ctx, s.GroupID, h.format.Question(q, s.CurrentQuestion, s.TotalQuestions, h.turnName(s)))
}

// fetchQuestion polls the pipeline with bounded retries. Not-ready results
// are expected and only logged.
func (h *GroupQuizHandler) fetchQuestion(ctx context.Context, s *models.GroupSession, ordinal int) (*models.Question, error) {
	var lastErr error
	for attempt := 1; attempt <= h.settings.FetchRetries; attempt++ {
		q, err := h.questions.Get(ctx, s.GameID, ordinal, h.settings.PollTimeout)
		if err == nil {
			return q, nil
		}
		lastErr = err

		var failed *services.GameFailedError
		if stderrors.As(err, &failed) || ctx.Err() != nil {
			break
		}
		logger.Warn("Question not ready, retrying", "group_id", s.GroupID, "game_id", s.GameID,
			"ordinal", ordinal, "attempt", attempt, "error", err)

		if attempt < h.settings.FetchRetries && !sleepCtx(ctx, h.settings.FetchBackoff) {
			break
		}
	}

	logger.Error("Question unavailable for game", "group_id", s.GroupID, "game_id", s.GameID,
		"ordinal", ordinal, "error", lastErr)
	h.recordError(ctx, s, "", "question_unavailable", lastErr)
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (h *GroupQuizHandler) hint(ctx context.Context, s *models.GroupSession) {
	if h.assistant == nil {
		h.send(ctx, s.GroupID, h.format.HintUnavailable())
		return
	}
	if len(s.HintsGiven()) >= h.settings.MaxHints {
		h.send(ctx, s.GroupID, h.format.HintLimit())
		return
	}

	q, err := h.questions.Get(ctx, s.GameID, s.CurrentQuestion, h.settings.PollTimeout)
	if err != nil {
		h.send(ctx, s.GroupID, h.format.HintUnavailable())
		return
	}
	hint, err := h.assistant.Hint(ctx, q, s.HintsGiven())
	if err != nil {
		logger.Warn("Hint generation failed", "group_id", s.GroupID, "ordinal", s.CurrentQuestion, "error", err)
		h.send(ctx, s.GroupID, h.format.HintUnavailable())
		return
	}

	s.AddHint(hint)
	h.sessions.Save(ctx, s)
	h.record(ctx, s, "", models.LogCategoryQuiz, "hint_requested", "hint issued",
		map[string]interface{}{"hints_given": len(s.HintsGiven())})
	h.send(ctx, s.GroupID, h.format.Hint(hint))
}

func (h *GroupQuizHandler) answerDoubt(ctx context.Context, s *models.GroupSession, doubt string) {
	if h.assistant == nil {
		h.send(ctx, s.GroupID, h.format.DoubtUnavailable())
		return
	}
	answer, err := h.assistant.AnswerDoubt(ctx, doubt)
	if err != nil {
		logger.Warn("Doubt answer failed", "group_id", s.GroupID, "error", err)
		h.send(ctx, s.GroupID, h.format.DoubtUnavailable())
		return
	}

	var current *models.Question
	if s.State == models.GroupStateActive && !h.pendingAdvance(s) {
		if q, err := h.questions.Get(ctx, s.GameID, s.CurrentQuestion, h.settings.DoubtTimeout); err == nil {
			current = q
		}
	}
	h.send(ctx, s.GroupID, h.format.DoubtAnswer(answer, current))
}

func (h *GroupQuizHandler) cancel(ctx context.Context, s *models.GroupSession, name string) {
	gameID := s.GameID
	h.sessions.Reset(ctx, s.GroupID)

	logger.Info("Quiz cancelled", "group_id", s.GroupID, "game_id", gameID)
	h.record(ctx, s, "", models.LogCategoryQuiz, "quiz_cancelled", name+" cancelled the quiz", nil)
	h.send(ctx, s.GroupID, h.format.Cancelled(name))
}

// OnParticipantJoined greets a member who joined the chat group, in the
// group and, once per member, in a direct message. Joining the group does
// not register them in the quiz.
func (h *GroupQuizHandler) OnParticipantJoined(ctx context.Context, groupID, pid, name string) {
	s := h.sessions.Get(ctx, groupID)
	h.record(ctx, s, pid, models.LogCategoryParticipant, "member_added", "member joined the group", nil)

	switch {
	case s.State == models.GroupStateWaitingStart:
		h.send(ctx, groupID, h.format.LobbyOpen())
	case s.IsPlaying():
		h.send(ctx, groupID, h.format.QuizInProgress())
	default:
		h.send(ctx, groupID, h.format.Welcome())
	}
	h.welcomeMember(ctx, s, pid, name)
}

func (h *GroupQuizHandler) welcomeMember(ctx context.Context, s *models.GroupSession, pid, name string) {
	if h.welcome == nil {
		return
	}
	greet, err := h.welcome.MemberJoined(ctx, s.GroupID, pid, name)
	if err != nil {
		logger.Warn("Failed to record member", "group_id", s.GroupID, "participant_id", pid, "error", err)
		return
	}
	cfg, err := h.welcome.GetConfig(ctx, s.GroupID)
	if err != nil {
		logger.Warn("Failed to load welcome config", "group_id", s.GroupID, "error", err)
		return
	}
	if !greet || !cfg.Enabled {
		return
	}

	if err := h.transport.SendText(ctx, pid, cfg.Welcome(name, pid)); err != nil {
		logger.Warn("Failed to send welcome", "group_id", s.GroupID, "participant_id", pid, "error", err)
		return
	}
	if err := h.welcome.MarkWelcomed(ctx, s.GroupID, pid); err != nil {
		logger.Warn("Failed to mark member welcomed", "group_id", s.GroupID, "participant_id", pid, "error", err)
	}
	h.record(ctx, s, pid, models.LogCategoryParticipant, "welcome_sent", "welcome message sent", nil)
}

func (h *GroupQuizHandler) farewellMember(ctx context.Context, s *models.GroupSession, pid string) {
	if h.welcome == nil {
		return
	}
	member, err := h.welcome.MemberLeft(ctx, s.GroupID, pid)
	if err != nil {
		logger.Warn("Failed to record member leaving", "group_id", s.GroupID, "participant_id", pid, "error", err)
		return
	}
	cfg, err := h.welcome.GetConfig(ctx, s.GroupID)
	if err != nil {
		logger.Warn("Failed to load welcome config", "group_id", s.GroupID, "error", err)
		return
	}
	if !cfg.Enabled {
		return
	}

	name := ""
	if member != nil {
		name = member.Name
	}
	if err := h.transport.SendText(ctx, pid, cfg.Goodbye(name, pid)); err != nil {
		logger.Warn("Failed to send goodbye", "group_id", s.GroupID, "participant_id", pid, "error", err)
		return
	}
	h.record(ctx, s, pid, models.LogCategoryParticipant, "goodbye_sent", "goodbye message sent", nil)
}

// OnParticipantLeft says goodbye to a member who left the chat group and
// removes them from the lobby or the running game. A game left without
// participants is reset.
func (h *GroupQuizHandler) OnParticipantLeft(ctx context.Context, groupID, pid string) {
	s := h.sessions.Get(ctx, groupID)
	h.farewellMember(ctx, s, pid)
	if s.State == models.GroupStateIdle || s.State == models.GroupStateFinished {
		return
	}
	player, ok := s.Participants[pid]
	if !ok {
		return
	}
	name := player.Name
	wasTurn := s.IsPlaying() && s.CurrentTurn() == pid
	s.RemoveParticipant(pid)
	h.record(ctx, s, pid, models.LogCategoryParticipant, "participant_left", name+" left", nil)

	if s.IsPlaying() && len(s.TurnOrder) == 0 {
		h.cancel(ctx, s, name)
		return
	}
	h.sessions.Save(ctx, s)
	h.send(ctx, groupID, h.format.ParticipantLeft(name))

	if wasTurn && s.State == models.GroupStateActive && !h.pendingAdvance(s) {
		if q, err := h.questions.Get(ctx, s.GameID, s.CurrentQuestion, h.settings.DoubtTimeout); err == nil {
			h.send(ctx, groupID, h.format.Question(q, s.CurrentQuestion, s.TotalQuestions, h.turnName(s)))
		}
	}
}

func (h *GroupQuizHandler) turnName(s *models.GroupSession) string {
	if p, ok := s.Participants[s.CurrentTurn()]; ok {
		return p.DisplayName()
	}
	return ""
}

func (h *GroupQuizHandler) send(ctx context.Context, groupID, text string) {
	if err := h.transport.SendText(ctx, groupID, text); err != nil {
		logger.Warn("Failed to send group message", "group_id", groupID, "error", err)
	}
}

func (h *GroupQuizHandler) record(ctx context.Context, s *models.GroupSession, pid, category, event, message string, data interface{}) {
	ordinal := 0
	if s.IsPlaying() {
		ordinal = s.CurrentQuestion
	}
	h.audit.Record(ctx, &models.QuizLogEntry{
		Level:         models.LogLevelInfo,
		Category:      category,
		Event:         event,
		Message:       message,
		GroupID:       s.GroupID,
		ParticipantID: pid,
		GameID:        s.GameID,
		Ordinal:       ordinal,
		Data:          repositories.AuditData(data),
	})
}

func (h *GroupQuizHandler) recordError(ctx context.Context, s *models.GroupSession, pid, event string, err error) {
	entry := &models.QuizLogEntry{
		Level:         models.LogLevelError,
		Category:      models.LogCategoryError,
		Event:         event,
		Message:       event,
		GroupID:       s.GroupID,
		ParticipantID: pid,
		GameID:        s.GameID,
		Ordinal:       s.CurrentQuestion,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	h.audit.Record(ctx, entry)
}
