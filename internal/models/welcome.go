package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mroshb/group_quiz_bot/pkg/errors"
)

const (
	DefaultWelcomeMessage = "Olá {name}! 👋\n\nVi que você entrou no grupo *{group}*.\n\n" +
		"Aqui a gente joga quizzes sobre o programa. Digite *INICIAR* no grupo para abrir uma partida ou *AJUDA* para ver os comandos.\n\n" +
		"Boa sorte! 🎯"
	DefaultGoodbyeMessage = "Oi {name}! 👋\n\nVi que você saiu do grupo.\n\nSentiremos sua falta! 😢"
	defaultGoodbyeInvite  = "\n\nSe quiser voltar a qualquer momento, é só clicar no link abaixo:\n👉 {invite_link}\n\nEstaremos te esperando! 🎮"

	// MaxWelcomeMessageLength bounds operator supplied templates, in runes.
	MaxWelcomeMessageLength = 2000

	defaultGreetingName = "amigo(a)"
	defaultGroupName    = "do quiz"
)

// WelcomeConfig is the per-group setting for the direct messages sent to
// members who join or leave. Templates accept {name}, {group}, {phone} and
// {invite_link}; an empty template falls back to the default text.
type WelcomeConfig struct {
	GroupID        string    `json:"group_id"`
	GroupName      string    `json:"group_name"`
	Enabled        bool      `json:"enabled"`
	WelcomeMessage string    `json:"welcome_message"`
	GoodbyeMessage string    `json:"goodbye_message"`
	InviteLink     string    `json:"invite_link"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefaultWelcomeConfig is the config of a group no operator has edited.
func DefaultWelcomeConfig(groupID string) *WelcomeConfig {
	return &WelcomeConfig{GroupID: groupID, Enabled: true}
}

// Validate rejects templates too long to send as one chat message.
func (c *WelcomeConfig) Validate() error {
	if utf8.RuneCountInString(c.WelcomeMessage) > MaxWelcomeMessageLength {
		return errors.New(errors.ErrCodeValidation, "welcome_message is too long")
	}
	if utf8.RuneCountInString(c.GoodbyeMessage) > MaxWelcomeMessageLength {
		return errors.New(errors.ErrCodeValidation, "goodbye_message is too long")
	}
	if c.InviteLink != "" && !strings.HasPrefix(c.InviteLink, "https://") {
		return errors.New(errors.ErrCodeValidation, "invite_link must be an https URL")
	}
	return nil
}

// Welcome renders the greeting for a member.
func (c *WelcomeConfig) Welcome(name, phone string) string {
	tmpl := c.WelcomeMessage
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultWelcomeMessage
	}
	return c.render(tmpl, name, phone)
}

// Goodbye renders the farewell for a member. The default text carries the
// invite link only when one is configured.
func (c *WelcomeConfig) Goodbye(name, phone string) string {
	tmpl := c.GoodbyeMessage
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultGoodbyeMessage
		if c.InviteLink != "" {
			tmpl += defaultGoodbyeInvite
		}
	}
	return c.render(tmpl, name, phone)
}

func (c *WelcomeConfig) render(tmpl, name, phone string) string {
	if strings.TrimSpace(name) == "" {
		name = defaultGreetingName
	}
	group := c.GroupName
	if group == "" {
		group = defaultGroupName
	}
	return strings.NewReplacer(
		"{name}", name,
		"{group}", group,
		"{phone}", phone,
		"{invite_link}", c.InviteLink,
	).Replace(tmpl)
}

// GroupMember is the membership record kept per group to greet each member
// only once.
type GroupMember struct {
	ParticipantID string     `json:"participant_id"`
	Name          string     `json:"name"`
	JoinedAt      time.Time  `json:"joined_at"`
	LeftAt        *time.Time `json:"left_at,omitempty"`
	Welcomed      bool       `json:"welcomed"`
}

// Active reports whether the member is currently in the group.
func (m *GroupMember) Active() bool {
	return m.LeftAt == nil
}
