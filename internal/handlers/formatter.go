package handlers

import (
	"fmt"
	"strings"

	"github.com/mroshb/group_quiz_bot/internal/models"
)

var rankEmoji = map[int]string{1: "🥇", 2: "🥈", 3: "🥉"}

func rankMarker(pos int) string {
	if e, ok := rankEmoji[pos]; ok {
		return e
	}
	return fmt.Sprintf("%dº", pos)
}

// Formatter renders the Portuguese chat messages of the group quiz.
type Formatter struct {
	ProgramName string
	RulesURL    string
	JoinBonus   int
}

func (f *Formatter) Welcome() string {
	return fmt.Sprintf(`🎯 *Quiz %s - Modo Grupo!*

Bem-vindos ao quiz interativo! Vocês vão competir entre si respondendo perguntas sobre o programa.

📝 *Como Funciona:*
• Cada um responde na sua vez (A/B/C/D)
• Ganha quem fizer mais pontos
• Ranking atualizado em tempo real
• 🎁 Novos participantes = mais perguntas!

🏆 *Para Começar:*
Digite *INICIAR* para criar o lobby!

💡 *Comandos Úteis:*
• *RANKING* - Ver placar atual
• *STATUS* - Ver progresso
• *AJUDA* - Mostrar comandos`, f.ProgramName)
}

func (f *Formatter) Help() string {
	return `📖 *Comandos do Quiz em Grupo*

*Durante o Quiz:*
• *A, B, C, D* - Responder pergunta
• *DICA* - Receber dica do regulamento
• *RANKING* - Ver placar atual
• *STATUS* - Ver progresso
• *PROXIMA* - Avançar pergunta
• *PARAR* - Cancelar quiz

*Geral:*
• *INICIAR* - Criar lobby de um novo quiz
• *ENTRAR* - Participar do lobby
• *COMECAR* - Começar o quiz
• *DUVIDA <pergunta>* - Tirar dúvida sobre o regulamento
• *REGULAMENTO* - Link do regulamento
• *AJUDA* - Esta mensagem`
}

func (f *Formatter) Rules() string {
	return "📋 *Regulamento Oficial*\n\n" + f.RulesURL
}

func (f *Formatter) NoQuiz() string {
	return "⚠️ *Nenhum quiz ativo*\n\nDigite *INICIAR* para começar um novo quiz!"
}

func participantList(s *models.GroupSession) string {
	players := s.ParticipantsInJoinOrder()
	if len(players) == 0 {
		return "• Nenhum ainda"
	}
	lines := make([]string, 0, len(players))
	for _, p := range players {
		lines = append(lines, "• "+p.DisplayName())
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) Lobby(s *models.GroupSession) string {
	return fmt.Sprintf(`🎮 *Lobby do Quiz Criado!*

👥 *Participantes (%d):*
%s

✋ Digite *ENTRAR* para participar
🚀 Digite *COMECAR* quando todos estiverem prontos`, len(s.Participants), participantList(s))
}

func (f *Formatter) Joined(name string, s *models.GroupSession) string {
	return fmt.Sprintf("✅ *%s* entrou no lobby!\n\n👥 *Participantes (%d):*\n%s",
		name, len(s.Participants), participantList(s))
}

func (f *Formatter) AlreadyJoined(name string) string {
	return fmt.Sprintf("👍 *%s*, você já está no lobby!", name)
}

func (f *Formatter) LobbyEmpty() string {
	return "⚠️ Ninguém entrou no lobby ainda. Digite *ENTRAR* para participar!"
}

func (f *Formatter) LobbyOpen() string {
	return "🎮 Já existe um lobby aberto! Digite *ENTRAR* para participar ou *COMECAR* para iniciar."
}

func (f *Formatter) QuizInProgress() string {
	return "🎯 Já existe um quiz em andamento! Digite *STATUS* para ver o progresso."
}

func (f *Formatter) Started(s *models.GroupSession) string {
	return fmt.Sprintf(`🎯 *Quiz Iniciado!*

📊 *%d perguntas* sobre %s
🎁 _Novos participantes = +%d perguntas extras!_

👥 *Participantes (%d):*
%s

_Respondam com A, B, C ou D_`, s.TotalQuestions, f.ProgramName, f.JoinBonus, len(s.Participants), participantList(s))
}

func (f *Formatter) StartFailed() string {
	return "⚠️ Não foi possível iniciar o quiz agora. Tente *COMECAR* novamente em instantes."
}

// Question renders a question announcing whose turn it is.
func (f *Formatter) Question(q *models.Question, ordinal, total int, turnName string) string {
	lines := []string{
		fmt.Sprintf("❓ *Pergunta %d/%d*", ordinal, total),
		fmt.Sprintf("💎 *Vale %d %s*", q.Points, pontos(q.Points)),
	}
	if turnName != "" {
		lines = append(lines, "", "🎯 *Vez de:* "+turnName)
	}
	lines = append(lines, "", "*"+q.Text+"*", "")
	for _, opt := range q.Options {
		lines = append(lines, fmt.Sprintf("*%s)* %s", opt.Label, opt.Text))
	}
	lines = append(lines, "")
	if turnName != "" {
		lines = append(lines, fmt.Sprintf("📱 *%s, responda:* A, B, C ou D", turnName))
	} else {
		lines = append(lines, "📱 *Responda com:* A, B, C ou D")
	}
	return strings.Join(lines, "\n")
}

func pontos(n int) string {
	if n == 1 {
		return "ponto"
	}
	return "pontos"
}

func (f *Formatter) QuestionDelayed() string {
	return "⏳ A pergunta ainda está sendo preparada. Tente novamente em instantes!"
}

func (f *Formatter) AnswerFeedback(name string, correct bool, points, answered, participants int) string {
	emoji, status, earned := "❌", "errou", "0 pontos"
	if correct {
		emoji, status, earned = "✅", "acertou", fmt.Sprintf("+%d %s", points, pontos(points))
	}
	return fmt.Sprintf("%s *%s* %s! (%s)\n📊 %d/%d participantes responderam",
		emoji, name, status, earned, answered, participants)
}

func (f *Formatter) AlreadyAnswered(name string) string {
	return fmt.Sprintf("⚠️ *%s*, você já respondeu esta pergunta!", name)
}

func (f *Formatter) NotYourTurn(name, turnName string) string {
	return fmt.Sprintf("⏳ *%s*, aguarde sua vez! Agora é a vez de *%s*.", name, turnName)
}

func (f *Formatter) MidGameJoin(name string, total int) string {
	return fmt.Sprintf("👋 *%s* entrou no quiz!\n🎁 Agora são *%d perguntas* no total.", name, total)
}

// QuestionResults summarizes the answers of a finished question.
func (f *Formatter) QuestionResults(qs *models.QuestionState, q *models.Question, askNext bool) string {
	correct := q.CorrectOption()
	lines := []string{
		"📊 *Resultado da Pergunta*",
		"",
		fmt.Sprintf("✔️ *Resposta correta:* %s) %s", correct.Label, correct.Text),
	}
	if q.Explanation != "" {
		lines = append(lines, "", "💡 "+q.Explanation)
	}
	lines = append(lines, "", fmt.Sprintf("🎯 *%d/%d* acertaram", qs.CorrectCount(), len(qs.Answers)), "")

	var winners []string
	for _, a := range qs.Answers {
		if a.IsCorrect {
			winners = append(winners, a.ParticipantName)
		}
	}
	if len(winners) > 0 {
		lines = append(lines, "✅ *Acertaram:* "+strings.Join(winners, ", "))
	} else {
		lines = append(lines, "❌ _Ninguém acertou esta pergunta_")
	}

	if askNext {
		lines = append(lines, "", "⏭️ Digite *PROXIMA* para continuar")
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) WaitingNext() string {
	return "⏳ *Aguardando...*\n\nDigite *PROXIMA* para continuar para a próxima pergunta!"
}

func (f *Formatter) Ranking(s *models.GroupSession, full bool) string {
	ranking := s.Ranking()
	if len(ranking) == 0 {
		return "📊 *Ranking*\n\nNenhum participante ainda."
	}

	lines := []string{"🏆 *Ranking Atual*"}
	if s.CurrentQuestion > 0 {
		lines = append(lines, fmt.Sprintf("Pergunta %d/%d", s.CurrentQuestion, s.TotalQuestions))
	}
	lines = append(lines, "")

	limit := len(ranking)
	if !full && limit > 3 {
		limit = 3
	}
	for i, p := range ranking[:limit] {
		lines = append(lines, fmt.Sprintf("%s *%s*\n    🎯 %d pts | ✅ %d/%d (%.0f%%)",
			rankMarker(i+1), p.DisplayName(), p.TotalScore, p.CorrectAnswers, p.TotalAnswers, p.Percentage()))
	}
	if len(ranking) > limit {
		lines = append(lines, "", fmt.Sprintf("_... e mais %d participantes_", len(ranking)-limit))
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) FinalResults(s *models.GroupSession) string {
	ranking := s.Ranking()
	lines := []string{"🎊 *Quiz Finalizado!*", "", "🏆 *PÓDIO FINAL*", ""}

	podium := ranking
	if len(podium) > 3 {
		podium = podium[:3]
	}
	for i, p := range podium {
		lines = append(lines, fmt.Sprintf("%s *%s*\n    🎯 %d pontos\n    ✅ %d/%d corretas (%.0f%%)\n",
			rankMarker(i+1), p.DisplayName(), p.TotalScore, p.CorrectAnswers, p.TotalAnswers, p.Percentage()))
	}

	if len(ranking) > 0 {
		sum := 0
		for _, p := range ranking {
			sum += p.TotalScore
		}
		lines = append(lines,
			"",
			"📊 *Estatísticas:*",
			fmt.Sprintf("👥 %d participantes", len(ranking)),
			fmt.Sprintf("📈 Média: %.0f pontos", float64(sum)/float64(len(ranking))),
			fmt.Sprintf("🏆 Melhor: %d pontos", ranking[0].TotalScore),
		)
	}

	lines = append(lines,
		"",
		"🎯 *Quer jogar novamente?*",
		"Digite *INICIAR* para um novo quiz!",
		"",
		"📋 Consulte o regulamento:",
		f.RulesURL,
	)
	return strings.Join(lines, "\n")
}

func (f *Formatter) Status(s *models.GroupSession) string {
	switch s.State {
	case models.GroupStateIdle:
		return "⏸️ Nenhum quiz ativo. Digite *INICIAR* para começar!"
	case models.GroupStateWaitingStart:
		return fmt.Sprintf("🎮 *Lobby aberto*\n\n👥 *Participantes (%d):*\n%s\n\n🚀 Digite *COMECAR* quando todos estiverem prontos",
			len(s.Participants), participantList(s))
	}

	lines := []string{
		"📊 *Status do Quiz*",
		"",
		fmt.Sprintf("📝 Pergunta: %d/%d", s.CurrentQuestion, s.TotalQuestions),
		fmt.Sprintf("👥 Participantes: %d", len(s.Participants)),
	}
	if s.IsPlaying() {
		if turn := s.CurrentTurn(); turn != "" {
			if p, ok := s.Participants[turn]; ok {
				lines = append(lines, "🎯 Vez de: "+p.DisplayName())
			}
		}
	}

	ranking := s.Ranking()
	if len(ranking) > 3 {
		ranking = ranking[:3]
	}
	if len(ranking) > 0 {
		lines = append(lines, "", "🏆 *Top 3 Atual:*")
		for i, p := range ranking {
			lines = append(lines, fmt.Sprintf("%s %s - %d pts", rankMarker(i+1), p.DisplayName(), p.TotalScore))
		}
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) Cancelled(name string) string {
	return fmt.Sprintf("❌ *Quiz Cancelado*\n\n%s cancelou o quiz.\n\nDigite *INICIAR* para começar um novo quiz!", name)
}

func (f *Formatter) Hint(hint string) string {
	return "💡 *Dica:* " + hint
}

func (f *Formatter) HintUnavailable() string {
	return "💡 Não consegui gerar uma dica agora. Tente novamente em instantes!"
}

func (f *Formatter) HintLimit() string {
	return "💡 Já foram dadas todas as dicas desta pergunta!"
}

// DoubtAnswer replies to a free-form doubt, restating the current options
// when a question is open.
func (f *Formatter) DoubtAnswer(answer string, current *models.Question) string {
	text := "🤔 *Dúvida respondida:*\n\n" + answer
	if current == nil {
		return text
	}
	lines := []string{text, "", "↩️ *Voltando à pergunta:* " + current.Text}
	for _, opt := range current.Options {
		lines = append(lines, fmt.Sprintf("*%s)* %s", opt.Label, opt.Text))
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) DoubtUnavailable() string {
	return "🤔 Não consegui responder sua dúvida agora. Consulte o regulamento digitando *REGULAMENTO*."
}

func (f *Formatter) ParticipantLeft(name string) string {
	return fmt.Sprintf("👋 *%s* saiu do quiz.", name)
}
