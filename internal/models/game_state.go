package models

import (
	"sort"
	"sync"
	"time"
)

// GameState holds the generated questions of one game run. The generation
// worker is its only writer after Start; pollers read it concurrently.
type GameState struct {
	mu sync.RWMutex

	id        string
	context   string
	total     int
	questions map[int]*Question
	topics    []string
	complete  bool
	err       string
	createdAt time.Time
}

// GameSnapshot is the serializable form used for the durable backup.
type GameSnapshot struct {
	GameID         string            `json:"quiz_id"`
	Context        string            `json:"context"`
	TotalQuestions int               `json:"total_questions"`
	Questions      map[int]*Question `json:"questions"`
	Topics         []string          `json:"previous_topics"`
	Complete       bool              `json:"complete"`
	Error          string            `json:"error,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

func NewGameState(id string, total int) *GameState {
	return &GameState{
		id:        id,
		total:     total,
		questions: make(map[int]*Question),
		createdAt: time.Now(),
	}
}

func GameStateFromSnapshot(snap *GameSnapshot) *GameState {
	s := NewGameState(snap.GameID, snap.TotalQuestions)
	s.context = snap.Context
	for ordinal, q := range snap.Questions {
		s.questions[ordinal] = q
	}
	s.topics = append(s.topics, snap.Topics...)
	s.complete = snap.Complete
	s.err = snap.Error
	if !snap.CreatedAt.IsZero() {
		s.createdAt = snap.CreatedAt
	}
	return s
}

func (s *GameState) ID() string {
	return s.id
}

func (s *GameState) Total() int {
	return s.total
}

func (s *GameState) Context() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.context
}

func (s *GameState) SetContext(context string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context = context
}

// AddQuestion stores q under its ordinal. An ordinal is written once; later
// writes are rejected and reported as false.
func (s *GameState) AddQuestion(q *Question) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.questions[q.Ordinal]; exists {
		return false
	}
	s.questions[q.Ordinal] = q
	return true
}

func (s *GameState) Question(ordinal int) (*Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[ordinal]
	return q, ok
}

func (s *GameState) AddTopic(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topic)
}

func (s *GameState) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.topics))
	copy(out, s.topics)
	return out
}

func (s *GameState) MarkComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.complete = true
}

func (s *GameState) Complete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.complete
}

func (s *GameState) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = msg
}

func (s *GameState) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// ReadyOrdinals returns the generated ordinals in ascending order.
func (s *GameState) ReadyOrdinals() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, 0, len(s.questions))
	for ordinal := range s.questions {
		out = append(out, ordinal)
	}
	sort.Ints(out)
	return out
}

// MaxScore is the sum of point values over generated questions.
func (s *GameState) MaxScore() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, q := range s.questions {
		total += q.Points
	}
	return total
}

func (s *GameState) Snapshot() *GameSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	questions := make(map[int]*Question, len(s.questions))
	for ordinal, q := range s.questions {
		questions[ordinal] = q
	}
	topics := make([]string, len(s.topics))
	copy(topics, s.topics)

	return &GameSnapshot{
		GameID:         s.id,
		Context:        s.context,
		TotalQuestions: s.total,
		Questions:      questions,
		Topics:         topics,
		Complete:       s.complete,
		Error:          s.err,
		CreatedAt:      s.createdAt,
	}
}
