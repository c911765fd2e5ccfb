package services

import (
	"fmt"
	"strings"

	"github.com/mroshb/group_quiz_bot/internal/models"
)

const questionSchema = `{
  "question": "texto da pergunta",
  "options": [
    {"label": "A", "text": "..."},
    {"label": "B", "text": "..."},
    {"label": "C", "text": "..."},
    {"label": "D", "text": "..."}
  ],
  "correct_index": 0,
  "difficulty": "easy|medium|hard",
  "explanation": "por que a resposta correta está certa",
  "wrong_feedback": {"1": "...", "2": "...", "3": "..."},
  "learning_tip": "dica curta de aprendizado",
  "source_reference": "trecho do regulamento usado"
}`

func firstQuestionPrompt(program, context string, seed int) string {
	return fmt.Sprintf(`Com base SOMENTE nos trechos do regulamento do programa %s abaixo, crie a PRIMEIRA pergunta de um quiz em grupo.

CONTEXTO:
%s

REGRAS:
- Pergunta fácil e introdutória, de múltipla escolha com exatamente 4 opções (A, B, C, D)
- Apenas uma opção correta
- Varie o tema usando a semente %d para escolher o trecho
- Responda APENAS com um JSON no formato:
%s`, program, contextOrPlaceholder(context), seed, questionSchema)
}

func singleQuestionPrompt(program, context string, difficulty models.Difficulty, ordinal int, usedTopics string) string {
	return fmt.Sprintf(`Com base SOMENTE nos trechos do regulamento do programa %s abaixo, crie a pergunta número %d de um quiz em grupo.

CONTEXTO:
%s

DIFICULDADE ALVO: %s

TEMAS JÁ USADOS (não repita):
%s

REGRAS:
- Múltipla escolha com exatamente 4 opções (A, B, C, D)
- Apenas uma opção correta
- Escolha um tema diferente dos já usados
- Responda APENAS com um JSON no formato:
%s`, program, ordinal, contextOrPlaceholder(context), difficulty, usedTopics, questionSchema)
}

func hintPrompt(context string, q *models.Question, previous []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pergunta do quiz:\n%s\n\n", q.Text)
	for _, opt := range q.Options {
		fmt.Fprintf(&b, "%s) %s\n", opt.Label, opt.Text)
	}
	fmt.Fprintf(&b, "\nTrechos do regulamento:\n%s\n\n", contextOrPlaceholder(context))
	b.WriteString("Escreva UMA dica curta (no máximo 2 frases) que ajude a raciocinar sem revelar a resposta nem citar a letra correta.\n")
	if len(previous) > 0 {
		b.WriteString("Não repita estas dicas já dadas:\n")
		for _, h := range previous {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	return b.String()
}

func doubtPrompt(context, doubt string) string {
	return fmt.Sprintf(`Responda à dúvida do participante usando SOMENTE os trechos do regulamento abaixo.
Se a resposta não estiver nos trechos, diga que não encontrou a informação e sugira consultar o regulamento.
Seja breve (até 4 frases).

Trechos do regulamento:
%s

Dúvida: %s`, contextOrPlaceholder(context), doubt)
}

func contextOrPlaceholder(context string) string {
	if strings.TrimSpace(context) == "" {
		return "(nenhum trecho disponível)"
	}
	return context
}
