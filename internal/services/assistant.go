package services

import (
	"context"
	"strings"

	"github.com/mroshb/group_quiz_bot/internal/knowledge"
	"github.com/mroshb/group_quiz_bot/internal/llm"
	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
)

const (
	hintTopK     = 3
	doubtTopK    = 5
	maxHintRunes = 300
)

// QuizAssistant answers hint requests and free-form doubts from the
// regulation. It never mutates session state.
type QuizAssistant struct {
	gen    llm.TextGenerator
	search knowledge.KnowledgeSearch
}

func NewQuizAssistant(gen llm.TextGenerator, search knowledge.KnowledgeSearch) *QuizAssistant {
	return &QuizAssistant{gen: gen, search: search}
}

// Hint produces a short clue for q that avoids the previous hints.
func (a *QuizAssistant) Hint(ctx context.Context, q *models.Question, previous []string) (string, error) {
	context := a.passages(ctx, q.Text, hintTopK)
	if context == "" && q.SourceReference != "" {
		context = q.SourceReference
	}

	hint, err := a.gen.Complete(ctx, hintPrompt(context, q, previous))
	if err != nil {
		return "", err
	}
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return "", errors.New(errors.ErrCodeGenerationFailed, "empty hint")
	}
	if r := []rune(hint); len(r) > maxHintRunes {
		hint = string(r[:maxHintRunes]) + "…"
	}
	return hint, nil
}

// AnswerDoubt answers a free-form question about the regulation.
func (a *QuizAssistant) AnswerDoubt(ctx context.Context, doubt string) (string, error) {
	answer, err := a.gen.Complete(ctx, doubtPrompt(a.passages(ctx, doubt, doubtTopK), doubt))
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", errors.New(errors.ErrCodeGenerationFailed, "empty answer")
	}
	return answer, nil
}

func (a *QuizAssistant) passages(ctx context.Context, query string, topK int) string {
	if a.search == nil {
		return ""
	}
	passages, err := a.search.Search(ctx, query, topK)
	if err != nil || len(passages) == 0 {
		return ""
	}
	return knowledge.FormatContext(passages, topK)
}
