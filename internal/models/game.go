package models

import (
	"strings"
)

type Difficulty string

// Difficulty constants
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var difficultyAliases = map[string]Difficulty{
	"easy":      DifficultyEasy,
	"medium":    DifficultyMedium,
	"hard":      DifficultyHard,
	"difficult": DifficultyHard,
	"fácil":     DifficultyEasy,
	"facil":     DifficultyEasy,
	"médio":     DifficultyMedium,
	"medio":     DifficultyMedium,
	"difícil":   DifficultyHard,
	"dificil":   DifficultyHard,
}

// ParseDifficulty maps a model-provided label onto a tier, falling back when
// the label is unknown.
func ParseDifficulty(raw string, fallback Difficulty) Difficulty {
	if d, ok := difficultyAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return d
	}
	return fallback
}

// Points returns the score awarded for a correct answer at this tier.
func (d Difficulty) Points() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyHard:
		return 3
	default:
		return 2
	}
}

var OptionLabels = []string{"A", "B", "C", "D"}

type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Question is immutable once stored in a GameState.
type Question struct {
	Ordinal         int            `json:"id"`
	Text            string         `json:"question"`
	Options         []Option       `json:"options"`
	CorrectIndex    int            `json:"correct_index"`
	Difficulty      Difficulty     `json:"difficulty"`
	Points          int            `json:"points"`
	Explanation     string         `json:"explanation"`
	WrongFeedback   map[int]string `json:"wrong_feedback,omitempty"`
	LearningTip     string         `json:"learning_tip,omitempty"`
	SourceReference string         `json:"source_reference,omitempty"`
}

func (q *Question) CorrectOption() Option {
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return Option{}
	}
	return q.Options[q.CorrectIndex]
}

func (q *Question) IsCorrect(answerIndex int) bool {
	return answerIndex == q.CorrectIndex
}

// AnswerIndex converts an answer letter (A-D) to an option index.
func AnswerIndex(letter string) (int, bool) {
	for i, l := range OptionLabels {
		if strings.EqualFold(letter, l) {
			return i, true
		}
	}
	return -1, false
}
