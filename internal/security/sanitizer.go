package security

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const maxMessageLength = 1000

var (
	htmlPolicy = bluemonday.StrictPolicy()
	jidRegex   = regexp.MustCompile(`^[0-9]{6,20}(-[0-9]+)?@(g\.us|s\.whatsapp\.net)$`)
	chatRegex  = regexp.MustCompile(`^-[0-9]{5,20}$`)
	spaceRegex = regexp.MustCompile(`[ \t]+`)
)

// SanitizeString removes potentially dangerous characters
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")

	if len(input) > maxMessageLength {
		input = truncateRunes(input, maxMessageLength)
	}

	return input
}

// SanitizeMessage cleans inbound chat text before it reaches command parsing
// or any prompt. Markup is stripped and runs of spaces collapse to one.
func SanitizeMessage(input string) string {
	input = SanitizeString(input)
	input = htmlPolicy.Sanitize(input)
	input = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&#34;", `"`, "&lt;", "<", "&gt;", ">").Replace(input)
	input = spaceRegex.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// SanitizeDisplayName bounds a participant's push name.
func SanitizeDisplayName(name string) string {
	name = SanitizeMessage(name)
	name = strings.ReplaceAll(name, "\n", " ")
	if name == "" {
		return "Participante"
	}
	return truncateRunes(name, 40)
}

// ValidateGroupJID checks a WhatsApp group or user address.
func ValidateGroupJID(jid string) bool {
	return jidRegex.MatchString(jid)
}

// ValidateGroupAddress accepts a WhatsApp group JID or a Telegram group
// chat id, which is always negative.
func ValidateGroupAddress(id string) bool {
	if strings.HasSuffix(id, "@g.us") {
		return jidRegex.MatchString(id)
	}
	return chatRegex.MatchString(id)
}

// truncateRunes cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}
