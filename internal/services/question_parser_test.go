package services

import (
	"testing"

	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "ok\n```json\n{\"a\":1}\n```\nfim", `{"a":1}`},
		{"bare fence", "```\n{\"a\":2}\n```", `{"a":2}`},
		{"prose around object", "Aqui vai: {\"a\":3} espero que ajude", `{"a":3}`},
		{"already clean", `  {"a":4}  `, `{"a":4}`},
		{"no object", "sem json", "sem json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestParseQuestion_ObjectOptions(t *testing.T) {
	q, err := ParseQuestion(questionJSON("Qual o prazo?", "Difícil"), 4, models.DifficultyEasy)
	require.NoError(t, err)

	assert.Equal(t, 4, q.Ordinal)
	assert.Equal(t, "Qual o prazo?", q.Text)
	assert.Equal(t, models.DifficultyHard, q.Difficulty)
	assert.Equal(t, 3, q.Points)
	assert.Equal(t, 1, q.CorrectIndex)
	require.Len(t, q.Options, 4)
	assert.Equal(t, "B", q.Options[1].Label)
	assert.Equal(t, "60 dias", q.CorrectOption().Text)
}

func TestParseQuestion_StringOptionsAndFeedback(t *testing.T) {
	raw := `{"question":"Quem valida?","options":["Time","Cliente","Banco","Ninguém"],
		"correct_index":0,"wrong_feedback":{"1":"não","x":"ignorado"},"learning_tip":"leia"}`

	q, err := ParseQuestion(raw, 2, models.DifficultyMedium)
	require.NoError(t, err)

	assert.Equal(t, models.DifficultyMedium, q.Difficulty, "missing difficulty falls back to target")
	assert.Equal(t, 2, q.Points)
	assert.Equal(t, "D", q.Options[3].Label)
	assert.Equal(t, "Ninguém", q.Options[3].Text)
	assert.Equal(t, map[int]string{1: "não"}, q.WrongFeedback)
	assert.Equal(t, "leia", q.LearningTip)
}

func TestParseQuestion_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", "desculpe, não consigo"},
		{"missing question", `{"question":"","options":["a","b","c","d"],"correct_index":0}`},
		{"three options", `{"question":"q","options":["a","b","c"],"correct_index":0}`},
		{"index out of range", `{"question":"q","options":["a","b","c","d"],"correct_index":4}`},
		{"missing index", `{"question":"q","options":["a","b","c","d"]}`},
		{"empty option", `{"question":"q","options":["a","","c","d"],"correct_index":0}`},
		{"numeric option", `{"question":"q","options":[1,2,3,4],"correct_index":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseQuestion(tt.in, 1, models.DifficultyEasy)
			assert.Nil(t, q)
			assert.True(t, errors.HasCode(err, errors.ErrCodeGenerationFailed))
		})
	}
}

func TestFallbackQuestion(t *testing.T) {
	q := FallbackQuestion(7, models.DifficultyHard, "Renda Extra Ton")

	assert.Equal(t, "Pergunta 7 sobre o programa Renda Extra Ton", q.Text)
	assert.Equal(t, 0, q.CorrectIndex)
	assert.Equal(t, 3, q.Points)
	assert.Equal(t, "Opção A", q.Options[0].Text)
	assert.Equal(t, "Opção D", q.Options[3].Text)
	assert.Equal(t, "Erro ao gerar pergunta. Consulte o regulamento.", q.Explanation)
}

func TestFirstQuestionFallback(t *testing.T) {
	q := FirstQuestionFallback("X")

	assert.Equal(t, 1, q.Ordinal)
	assert.Equal(t, models.DifficultyEasy, q.Difficulty)
	assert.Equal(t, 1, q.Points)
	assert.Len(t, q.Options, 4)
}
