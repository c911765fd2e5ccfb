package handlers

import (
	"strings"
	"unicode"

	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/pkg/utils"
)

type CommandKind string

// Group chat commands
const (
	CmdNone    CommandKind = ""
	CmdStart   CommandKind = "start"
	CmdJoin    CommandKind = "join"
	CmdBegin   CommandKind = "begin"
	CmdStop    CommandKind = "stop"
	CmdNext    CommandKind = "next"
	CmdStatus  CommandKind = "status"
	CmdRanking CommandKind = "ranking"
	CmdHint    CommandKind = "hint"
	CmdHelp    CommandKind = "help"
	CmdRules   CommandKind = "rules"
	CmdDoubt   CommandKind = "doubt"
	CmdAnswer  CommandKind = "answer"
)

var commandAliases = map[string]CommandKind{
	"INICIAR":     CmdStart,
	"START":       CmdStart,
	"ENTRAR":      CmdJoin,
	"JOIN":        CmdJoin,
	"EU":          CmdJoin,
	"COMECAR":     CmdBegin,
	"BEGIN":       CmdBegin,
	"PARAR":       CmdStop,
	"STOP":        CmdStop,
	"CANCELAR":    CmdStop,
	"PROXIMA":     CmdNext,
	"NEXT":        CmdNext,
	"STATUS":      CmdStatus,
	"RANKING":     CmdRanking,
	"DICA":        CmdHint,
	"HINT":        CmdHint,
	"AJUDA":       CmdHelp,
	"HELP":        CmdHelp,
	"?":           CmdHelp,
	"REGULAMENTO": CmdRules,
	"RULES":       CmdRules,
}

var doubtPrefixes = []string{"DUVIDA", "DOUBT"}

// Command is a parsed chat message. Answer is set for CmdAnswer and Text
// for CmdDoubt.
type Command struct {
	Kind   CommandKind
	Answer int
	Text   string
}

// ParseCommand recognizes commands case-insensitively and ignoring accents.
// Anything else parses as CmdNone.
func ParseCommand(text string) Command {
	normalized := utils.NormalizeCommand(text)
	if normalized == "" {
		return Command{Kind: CmdNone}
	}

	if kind, ok := commandAliases[normalized]; ok {
		return Command{Kind: kind}
	}

	letter := strings.TrimRight(normalized, ").")
	if len(letter) == 1 {
		if idx, ok := models.AnswerIndex(letter); ok {
			return Command{Kind: CmdAnswer, Answer: idx}
		}
	}

	for _, prefix := range doubtPrefixes {
		if !strings.HasPrefix(normalized, prefix) {
			continue
		}
		rest := cutNormalizedPrefix(strings.TrimSpace(text), len(prefix))
		rest = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(rest), ":-"))
		if rest == "" || !isWordBoundary(normalized, len(prefix)) {
			continue
		}
		return Command{Kind: CmdDoubt, Text: rest}
	}

	return Command{Kind: CmdNone}
}

// cutNormalizedPrefix drops the shortest head of text whose normalized form
// is n bytes long, together with any combining marks that follow it. Input
// may be composed or decomposed, so rune counts of text and its normalized
// form differ.
func cutNormalizedPrefix(text string, n int) string {
	for i := range text {
		if i > 0 && len(utils.NormalizeCommand(text[:i])) >= n {
			return strings.TrimLeftFunc(text[i:], func(r rune) bool {
				return unicode.Is(unicode.Mn, r)
			})
		}
	}
	return ""
}

func isWordBoundary(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	switch s[i] {
	case ' ', ':', '-', '\t', '\n':
		return true
	}
	return false
}
