package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
)

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

type questionPayload struct {
	Question        string            `json:"question"`
	Options         []json.RawMessage `json:"options"`
	CorrectIndex    *int              `json:"correct_index"`
	Difficulty      string            `json:"difficulty"`
	Explanation     string            `json:"explanation"`
	WrongFeedback   map[string]string `json:"wrong_feedback"`
	LearningTip     string            `json:"learning_tip"`
	SourceReference string            `json:"source_reference"`
}

// ExtractJSON pulls the JSON object out of a completion that may wrap it in
// markdown fences or surrounding prose.
func ExtractJSON(text string) string {
	content := text
	if _, after, ok := strings.Cut(content, "```json"); ok {
		content, _, _ = strings.Cut(after, "```")
	} else if _, after, ok := strings.Cut(content, "```"); ok {
		content, _, _ = strings.Cut(after, "```")
	}

	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "{") {
		if m := jsonObject.FindString(content); m != "" {
			content = m
		}
	}
	return strings.TrimSpace(content)
}

// ParseQuestion decodes and validates a model completion into a Question.
func ParseQuestion(text string, ordinal int, target models.Difficulty) (*models.Question, error) {
	var p questionPayload
	if err := json.Unmarshal([]byte(ExtractJSON(text)), &p); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGenerationFailed, "completion is not valid JSON")
	}

	if strings.TrimSpace(p.Question) == "" {
		return nil, errors.New(errors.ErrCodeGenerationFailed, "missing question text")
	}
	if len(p.Options) != len(models.OptionLabels) {
		return nil, errors.New(errors.ErrCodeGenerationFailed,
			fmt.Sprintf("expected %d options, got %d", len(models.OptionLabels), len(p.Options)))
	}
	if p.CorrectIndex == nil || *p.CorrectIndex < 0 || *p.CorrectIndex >= len(models.OptionLabels) {
		return nil, errors.New(errors.ErrCodeGenerationFailed, "correct_index missing or out of range")
	}

	options := make([]models.Option, 0, len(p.Options))
	for i, raw := range p.Options {
		opt, err := decodeOption(raw, models.OptionLabels[i])
		if err != nil {
			return nil, err
		}
		options = append(options, opt)
	}

	difficulty := models.ParseDifficulty(p.Difficulty, target)
	return &models.Question{
		Ordinal:         ordinal,
		Text:            strings.TrimSpace(p.Question),
		Options:         options,
		CorrectIndex:    *p.CorrectIndex,
		Difficulty:      difficulty,
		Points:          difficulty.Points(),
		Explanation:     p.Explanation,
		WrongFeedback:   wrongFeedback(p.WrongFeedback),
		LearningTip:     p.LearningTip,
		SourceReference: p.SourceReference,
	}, nil
}

// decodeOption accepts either {"label","text"} objects or bare strings.
func decodeOption(raw json.RawMessage, label string) (models.Option, error) {
	var opt models.Option
	if err := json.Unmarshal(raw, &opt); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return models.Option{}, errors.Wrap(err, errors.ErrCodeGenerationFailed, "invalid option")
		}
		opt.Text = text
	}
	opt.Text = strings.TrimSpace(opt.Text)
	if opt.Text == "" {
		return models.Option{}, errors.New(errors.ErrCodeGenerationFailed, "empty option text")
	}
	opt.Label = label
	return opt, nil
}

func wrongFeedback(in map[string]string) map[int]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[int]string, len(in))
	for k, v := range in {
		if i, err := strconv.Atoi(k); err == nil {
			out[i] = v
		}
	}
	return out
}

// FallbackQuestion is the deterministic stand-in for an ordinal whose
// generation failed. The first option is always correct.
func FallbackQuestion(ordinal int, difficulty models.Difficulty, program string) *models.Question {
	options := make([]models.Option, 0, len(models.OptionLabels))
	for _, l := range models.OptionLabels {
		options = append(options, models.Option{Label: l, Text: "Opção " + l})
	}
	return &models.Question{
		Ordinal:      ordinal,
		Text:         fmt.Sprintf("Pergunta %d sobre o programa %s", ordinal, program),
		Options:      options,
		CorrectIndex: 0,
		Difficulty:   difficulty,
		Points:       difficulty.Points(),
		Explanation:  "Erro ao gerar pergunta. Consulte o regulamento.",
	}
}

// FirstQuestionFallback is used when the synchronous first question fails.
func FirstQuestionFallback(program string) *models.Question {
	return &models.Question{
		Ordinal: 1,
		Text:    fmt.Sprintf("Onde você encontra as regras oficiais do programa %s?", program),
		Options: []models.Option{
			{Label: "A", Text: "No regulamento oficial do programa"},
			{Label: "B", Text: "Em correntes de mensagens"},
			{Label: "C", Text: "Em comentários de redes sociais"},
			{Label: "D", Text: "O programa não possui regras"},
		},
		CorrectIndex: 0,
		Difficulty:   models.DifficultyEasy,
		Points:       models.DifficultyEasy.Points(),
		Explanation:  "As regras valem conforme o regulamento oficial. Digite REGULAMENTO para acessá-lo.",
	}
}
