package models

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/mroshb/group_quiz_bot/pkg/utils"
)

type GroupState string

// Group session states
const (
	GroupStateIdle         GroupState = "idle"
	GroupStateWaitingStart GroupState = "waiting_start"
	GroupStateActive       GroupState = "active"
	GroupStateWaitingNext  GroupState = "waiting_next"
	GroupStateFinished     GroupState = "finished"
)

type ParticipantAnswer struct {
	ParticipantID   string    `json:"user_id"`
	ParticipantName string    `json:"user_name"`
	AnswerIndex     int       `json:"answer_index"`
	IsCorrect       bool      `json:"is_correct"`
	PointsEarned    int       `json:"points_earned"`
	AnsweredAt      time.Time `json:"answered_at"`
}

// QuestionState is the per-ordinal answer record of a session.
type QuestionState struct {
	Ordinal    int                 `json:"question_id"`
	StartedAt  time.Time           `json:"started_at"`
	Answers    []ParticipantAnswer `json:"answers"`
	HintsGiven []string            `json:"hints_given,omitempty"`
}

func (qs *QuestionState) CorrectCount() int {
	n := 0
	for _, a := range qs.Answers {
		if a.IsCorrect {
			n++
		}
	}
	return n
}

func (qs *QuestionState) AnswerOf(participantID string) (ParticipantAnswer, bool) {
	for _, a := range qs.Answers {
		if a.ParticipantID == participantID {
			return a, true
		}
	}
	return ParticipantAnswer{}, false
}

type ParticipantScore struct {
	ParticipantID  string `json:"user_id"`
	Name           string `json:"user_name"`
	TotalScore     int    `json:"total_score"`
	CorrectAnswers int    `json:"correct_answers"`
	TotalAnswers   int    `json:"total_answers"`
	JoinOrder      int    `json:"join_order"`
}

func (p ParticipantScore) Percentage() float64 {
	if p.TotalAnswers == 0 {
		return 0
	}
	return float64(p.CorrectAnswers) / float64(p.TotalAnswers) * 100
}

var trailingDigits = regexp.MustCompile(`\(\d{4}\)$`)

// DisplayName renders "Name (1234)" using the last digits of the address so
// participants sharing a name can be told apart.
func (p ParticipantScore) DisplayName() string {
	if trailingDigits.MatchString(p.Name) {
		return p.Name
	}
	if last := utils.LastDigits(p.ParticipantID, 4); last != "" {
		return fmt.Sprintf("%s (%s)", p.Name, last)
	}
	return p.Name
}

// GroupSession is owned by the orchestrator; it is mutated only through its
// methods and persisted after every change.
type GroupSession struct {
	GroupID          string                       `json:"group_id"`
	GroupName        string                       `json:"group_name"`
	State            GroupState                   `json:"state"`
	GameID           string                       `json:"quiz_id,omitempty"`
	CurrentQuestion  int                          `json:"current_question"`
	TotalQuestions   int                          `json:"total_questions"`
	TurnOrder        []string                     `json:"turn_order"`
	CurrentTurnIndex int                          `json:"current_turn_index"`
	Participants     map[string]*ParticipantScore `json:"participants"`
	History          []*QuestionState             `json:"questions_history"`
	StartedBy        string                       `json:"started_by,omitempty"`
	StartedAt        *time.Time                   `json:"started_at,omitempty"`
	FinishedAt       *time.Time                   `json:"finished_at,omitempty"`
	UpdatedAt        time.Time                    `json:"updated_at"`
}

func NewGroupSession(groupID string) *GroupSession {
	return &GroupSession{
		GroupID:      groupID,
		GroupName:    "Quiz Group",
		State:        GroupStateIdle,
		Participants: make(map[string]*ParticipantScore),
		UpdatedAt:    time.Now(),
	}
}

// TotalQuestionsFor returns max(1, participants) * perParticipant, capped at max.
func TotalQuestionsFor(participants, perParticipant, max int) int {
	if participants < 1 {
		participants = 1
	}
	total := participants * perParticipant
	if total > max {
		total = max
	}
	if total < 1 {
		total = 1
	}
	return total
}

// IsPlaying reports whether a game run is in progress.
func (s *GroupSession) IsPlaying() bool {
	return s.State == GroupStateActive || s.State == GroupStateWaitingNext
}

func (s *GroupSession) HasParticipant(participantID string) bool {
	_, ok := s.Participants[participantID]
	return ok
}

// AddParticipant registers a participant in join order. Returns false when
// the participant was already registered.
func (s *GroupSession) AddParticipant(participantID, name string) bool {
	if s.Participants == nil {
		s.Participants = make(map[string]*ParticipantScore)
	}
	if _, ok := s.Participants[participantID]; ok {
		return false
	}
	s.Participants[participantID] = &ParticipantScore{
		ParticipantID: participantID,
		Name:          name,
		JoinOrder:     s.nextJoinOrder(),
	}
	return true
}

func (s *GroupSession) nextJoinOrder() int {
	next := 0
	for _, p := range s.Participants {
		if p.JoinOrder >= next {
			next = p.JoinOrder + 1
		}
	}
	return next
}

// ParticipantsInJoinOrder returns a copy of the score records sorted by join order.
func (s *GroupSession) ParticipantsInJoinOrder() []ParticipantScore {
	out := make([]ParticipantScore, 0, len(s.Participants))
	for _, p := range s.Participants {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].JoinOrder < out[j].JoinOrder
	})
	return out
}

// BeginGame moves the lobby into play with the given game and question count.
func (s *GroupSession) BeginGame(gameID string, total int, now time.Time) {
	s.GameID = gameID
	s.TotalQuestions = total
	s.TurnOrder = s.TurnOrder[:0]
	for _, p := range s.ParticipantsInJoinOrder() {
		s.TurnOrder = append(s.TurnOrder, p.ParticipantID)
	}
	s.CurrentTurnIndex = 0
	s.History = nil
	s.StartedAt = &now
	s.FinishedAt = nil
	s.State = GroupStateActive
	s.StartQuestion(1, now)
}

// JoinMidGame registers a late participant, appends them to the turn order
// and grants bonus questions up to max. Returns false if already present.
func (s *GroupSession) JoinMidGame(participantID, name string, bonus, max int) bool {
	if !s.AddParticipant(participantID, name) {
		return false
	}
	s.TurnOrder = append(s.TurnOrder, participantID)
	s.AddBonusQuestions(bonus, max)
	return true
}

// AddBonusQuestions raises TotalQuestions by bonus, never beyond max and
// never below its current value.
func (s *GroupSession) AddBonusQuestions(bonus, max int) {
	total := s.TotalQuestions + bonus
	if total > max {
		total = max
	}
	if total > s.TotalQuestions {
		s.TotalQuestions = total
	}
}

// RemoveParticipant drops a participant from the roster and, during play,
// from the turn order while keeping the turn index on a valid member.
func (s *GroupSession) RemoveParticipant(participantID string) bool {
	if _, ok := s.Participants[participantID]; !ok {
		return false
	}
	delete(s.Participants, participantID)

	for i, id := range s.TurnOrder {
		if id != participantID {
			continue
		}
		s.TurnOrder = append(s.TurnOrder[:i], s.TurnOrder[i+1:]...)
		if i < s.CurrentTurnIndex {
			s.CurrentTurnIndex--
		}
		if len(s.TurnOrder) == 0 || s.CurrentTurnIndex >= len(s.TurnOrder) {
			s.CurrentTurnIndex = 0
		}
		break
	}
	return true
}

// CurrentTurn returns whose answer is accepted now, or "" with no turn order.
func (s *GroupSession) CurrentTurn() string {
	if len(s.TurnOrder) == 0 {
		return ""
	}
	return s.TurnOrder[s.CurrentTurnIndex%len(s.TurnOrder)]
}

func (s *GroupSession) AdvanceTurn() {
	if len(s.TurnOrder) == 0 {
		s.CurrentTurnIndex = 0
		return
	}
	s.CurrentTurnIndex = (s.CurrentTurnIndex + 1) % len(s.TurnOrder)
}

func (s *GroupSession) CurrentQuestionState() *QuestionState {
	if len(s.History) == 0 {
		return nil
	}
	return s.History[len(s.History)-1]
}

// StartQuestion opens the answer record for ordinal.
func (s *GroupSession) StartQuestion(ordinal int, now time.Time) {
	s.CurrentQuestion = ordinal
	s.History = append(s.History, &QuestionState{Ordinal: ordinal, StartedAt: now})
}

// AdvanceQuestion moves to the next ordinal. Returns false when the session
// is already on its last question.
func (s *GroupSession) AdvanceQuestion(now time.Time) bool {
	if s.CurrentQuestion >= s.TotalQuestions {
		return false
	}
	s.StartQuestion(s.CurrentQuestion+1, now)
	return true
}

func (s *GroupSession) HasAnswered(participantID string) bool {
	qs := s.CurrentQuestionState()
	if qs == nil {
		return false
	}
	_, ok := qs.AnswerOf(participantID)
	return ok
}

// RecordAnswer appends the answer for the current ordinal and updates the
// participant's running score. Returns false for a duplicate answer.
func (s *GroupSession) RecordAnswer(participantID string, answerIndex int, correct bool, points int, now time.Time) bool {
	qs := s.CurrentQuestionState()
	p, ok := s.Participants[participantID]
	if qs == nil || !ok {
		return false
	}
	if _, dup := qs.AnswerOf(participantID); dup {
		return false
	}

	earned := 0
	if correct {
		earned = points
	}
	qs.Answers = append(qs.Answers, ParticipantAnswer{
		ParticipantID:   participantID,
		ParticipantName: p.Name,
		AnswerIndex:     answerIndex,
		IsCorrect:       correct,
		PointsEarned:    earned,
		AnsweredAt:      now,
	})

	p.TotalAnswers++
	if correct {
		p.CorrectAnswers++
		p.TotalScore += earned
	}
	return true
}

func (s *GroupSession) HintsGiven() []string {
	qs := s.CurrentQuestionState()
	if qs == nil {
		return nil
	}
	return qs.HintsGiven
}

func (s *GroupSession) AddHint(hint string) {
	if qs := s.CurrentQuestionState(); qs != nil {
		qs.HintsGiven = append(qs.HintsGiven, hint)
	}
}

func (s *GroupSession) Finish(now time.Time) {
	s.State = GroupStateFinished
	s.FinishedAt = &now
}

// Ranking orders participants by score then correct answers, both
// descending; equal keys keep join order.
func (s *GroupSession) Ranking() []ParticipantScore {
	ranking := s.ParticipantsInJoinOrder()
	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].TotalScore != ranking[j].TotalScore {
			return ranking[i].TotalScore > ranking[j].TotalScore
		}
		return ranking[i].CorrectAnswers > ranking[j].CorrectAnswers
	})
	return ranking
}

// OpenLobby clears any previous run and waits for participants.
func (s *GroupSession) OpenLobby(startedBy string) {
	s.Reset()
	s.State = GroupStateWaitingStart
	s.StartedBy = startedBy
}

// Reset returns the session to IDLE with cleared participant and turn data.
func (s *GroupSession) Reset() {
	s.State = GroupStateIdle
	s.GameID = ""
	s.CurrentQuestion = 0
	s.TotalQuestions = 0
	s.TurnOrder = nil
	s.CurrentTurnIndex = 0
	s.Participants = make(map[string]*ParticipantScore)
	s.History = nil
	s.StartedBy = ""
	s.StartedAt = nil
	s.FinishedAt = nil
}

// Clone returns a deep copy so cached sessions are never aliased by callers.
func (s *GroupSession) Clone() *GroupSession {
	c := *s
	c.TurnOrder = append([]string(nil), s.TurnOrder...)
	c.Participants = make(map[string]*ParticipantScore, len(s.Participants))
	for id, p := range s.Participants {
		cp := *p
		c.Participants[id] = &cp
	}
	c.History = make([]*QuestionState, 0, len(s.History))
	for _, qs := range s.History {
		cq := *qs
		cq.Answers = append([]ParticipantAnswer(nil), qs.Answers...)
		cq.HintsGiven = append([]string(nil), qs.HintsGiven...)
		c.History = append(c.History, &cq)
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
