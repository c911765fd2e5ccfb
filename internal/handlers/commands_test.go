package handlers

import (
	"testing"

	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Command
	}{
		{"start pt", "iniciar", Command{Kind: CmdStart}},
		{"start en padded", "  START ", Command{Kind: CmdStart}},
		{"join eu", "Eu", Command{Kind: CmdJoin}},
		{"begin accented", "Começar", Command{Kind: CmdBegin}},
		{"next accented", "PRÓXIMA", Command{Kind: CmdNext}},
		{"stop cancel", "cancelar", Command{Kind: CmdStop}},
		{"help symbol", "?", Command{Kind: CmdHelp}},
		{"rules", "regulamento", Command{Kind: CmdRules}},
		{"hint", "Dica", Command{Kind: CmdHint}},
		{"answer lower", "b", Command{Kind: CmdAnswer, Answer: 1}},
		{"answer paren", "D)", Command{Kind: CmdAnswer, Answer: 3}},
		{"answer dot", "c.", Command{Kind: CmdAnswer, Answer: 2}},
		{"not an option", "E", Command{Kind: CmdNone}},
		{"word starting with answer", "Acho que é A", Command{Kind: CmdNone}},
		{"doubt colon", "Dúvida: posso sacar antes?", Command{Kind: CmdDoubt, Text: "posso sacar antes?"}},
		{"doubt dash", "DOUBT - when?", Command{Kind: CmdDoubt, Text: "when?"}},
		{"doubt decomposed accent", "Du\u0301vida: posso sacar?", Command{Kind: CmdDoubt, Text: "posso sacar?"}},
		{"doubt decomposed no separator", "du\u0301vida posso sacar?", Command{Kind: CmdDoubt, Text: "posso sacar?"}},
		{"doubt without text", "duvida", Command{Kind: CmdNone}},
		{"doubt prefix of other word", "duvidas?", Command{Kind: CmdNone}},
		{"empty", "   ", Command{Kind: CmdNone}},
		{"chatter", "bom dia", Command{Kind: CmdNone}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCommand(tt.input))
		})
	}
}

func TestFormatter_Question(t *testing.T) {
	f := &Formatter{ProgramName: "Renda Extra Ton"}
	q := easyQuestion(2)
	q.Points = 1

	text := f.Question(q, 2, 6, "Ana (4321)")
	assert.Contains(t, text, "❓ *Pergunta 2/6*")
	assert.Contains(t, text, "💎 *Vale 1 ponto*")
	assert.Contains(t, text, "🎯 *Vez de:* Ana (4321)")
	assert.Contains(t, text, "*A)* Opção A")
	assert.Contains(t, text, "📱 *Ana (4321), responda:* A, B, C ou D")

	noTurn := f.Question(q, 2, 6, "")
	assert.NotContains(t, noTurn, "Vez de")
	assert.Contains(t, noTurn, "📱 *Responda com:* A, B, C ou D")
}

func TestFormatter_RankingAndFinal(t *testing.T) {
	f := &Formatter{RulesURL: "https://example.com/r"}
	s := models.NewGroupSession(testGroup)
	for _, p := range []struct {
		id    string
		name  string
		score int
	}{
		{"5511911110001@s.whatsapp.net", "Ana", 3},
		{"5511911110002@s.whatsapp.net", "Bia", 5},
		{"5511911110003@s.whatsapp.net", "Caio", 1},
		{"5511911110004@s.whatsapp.net", "Duda", 0},
	} {
		s.AddParticipant(p.id, p.name)
		s.Participants[p.id].TotalScore = p.score
	}

	short := f.Ranking(s, false)
	assert.Contains(t, short, "🥇 *Bia (0002)*")
	assert.Contains(t, short, "🥉 *Caio (0003)*")
	assert.Contains(t, short, "e mais 1 participantes")
	assert.Contains(t, f.Ranking(s, true), "4º *Duda (0004)*")

	final := f.FinalResults(s)
	assert.Contains(t, final, "🏆 *PÓDIO FINAL*")
	assert.Contains(t, final, "Média: 2 pontos")
	assert.Contains(t, final, "Melhor: 5 pontos")
	assert.Contains(t, final, "https://example.com/r")
	assert.NotContains(t, final, "Duda")
}

func TestFormatter_QuestionResults(t *testing.T) {
	f := &Formatter{}
	q := easyQuestion(1)
	qs := &models.QuestionState{Ordinal: 1, Answers: []models.ParticipantAnswer{
		{ParticipantName: "Ana", IsCorrect: true},
		{ParticipantName: "Bia"},
	}}

	text := f.QuestionResults(qs, q, true)
	assert.Contains(t, text, "Resposta correta:* A) Opção A")
	assert.Contains(t, text, "*1/2* acertaram")
	assert.Contains(t, text, "Acertaram:* Ana")
	assert.Contains(t, text, "PROXIMA")

	qs.Answers[0].IsCorrect = false
	text = f.QuestionResults(qs, q, false)
	assert.Contains(t, text, "Ninguém acertou")
	assert.NotContains(t, text, "PROXIMA")
}
