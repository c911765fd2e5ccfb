package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mroshb/group_quiz_bot/internal/knowledge"
	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHint_AvoidsPreviousAndTruncates(t *testing.T) {
	var prompt string
	gen := &fakeGenerator{respond: func(_ int, p string) (string, error) {
		prompt = p
		return "  " + strings.Repeat("á", 400) + "  ", nil
	}}
	search := &fakeSearch{passages: []knowledge.Passage{{Content: "Prazo de 60 dias."}}}
	a := NewQuizAssistant(gen, search)

	q := FallbackQuestion(2, models.DifficultyMedium, "X")
	hint, err := a.Hint(context.Background(), q, []string{"pense no prazo"})
	require.NoError(t, err)

	assert.Equal(t, maxHintRunes+1, utf8.RuneCountInString(hint))
	assert.True(t, strings.HasSuffix(hint, "…"))
	assert.Contains(t, prompt, "- pense no prazo")
	assert.Contains(t, prompt, "Prazo de 60 dias.")
	assert.Contains(t, prompt, "A) Opção A")
}

func TestHint_EmptyCompletion(t *testing.T) {
	gen := &fakeGenerator{respond: func(int, string) (string, error) { return "   ", nil }}
	a := NewQuizAssistant(gen, nil)

	_, err := a.Hint(context.Background(), FirstQuestionFallback("X"), nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeGenerationFailed))
}

func TestAnswerDoubt(t *testing.T) {
	gen := &fakeGenerator{respond: func(_ int, p string) (string, error) {
		if !strings.Contains(p, "Dúvida: quando recebo?") {
			return "", fmt.Errorf("unexpected prompt")
		}
		return "Em até 30 dias.", nil
	}}
	search := &fakeSearch{err: fmt.Errorf("weaviate down")}
	a := NewQuizAssistant(gen, search)

	answer, err := a.AnswerDoubt(context.Background(), "quando recebo?")
	require.NoError(t, err)
	assert.Equal(t, "Em até 30 dias.", answer)
}

func TestAnswerDoubt_GeneratorError(t *testing.T) {
	gen := &fakeGenerator{respond: func(int, string) (string, error) {
		return "", errors.New(errors.ErrCodeGenerationFailed, "boom")
	}}
	a := NewQuizAssistant(gen, nil)

	_, err := a.AnswerDoubt(context.Background(), "?")
	assert.Error(t, err)
}
