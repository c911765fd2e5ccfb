// Package evolution connects the quiz to WhatsApp groups through an
// Evolution API instance: inbound webhook events and outbound text.
package evolution

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/mroshb/group_quiz_bot/internal/models"
)

const (
	groupSuffix = "@g.us"
	userSuffix  = "@s.whatsapp.net"

	EventMessagesUpsert     = "messages.upsert"
	EventParticipantsUpdate = "group-participants.update"
)

// WebhookPayload is the envelope Evolution posts for every subscribed event.
type WebhookPayload struct {
	Event    string          `json:"event"`
	Instance string          `json:"instance"`
	Data     json.RawMessage `json:"data"`
}

type messageKey struct {
	RemoteJID   string `json:"remoteJid"`
	FromMe      bool   `json:"fromMe"`
	ID          string `json:"id"`
	Participant string `json:"participant"`
}

type messageContent struct {
	Conversation        string `json:"conversation"`
	ExtendedTextMessage *struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
}

type messageData struct {
	Key      messageKey      `json:"key"`
	PushName string          `json:"pushName"`
	Message  *messageContent `json:"message"`
}

type participantsData struct {
	ID           string            `json:"id"`
	GroupJID     string            `json:"groupJid"`
	Action       string            `json:"action"`
	Participants []json.RawMessage `json:"participants"`
}

// CanonicalEvent maps "MESSAGES_UPSERT", "messages-upsert" and similar
// spellings onto the dotted event names.
func CanonicalEvent(event string) string {
	e := strings.ToLower(strings.TrimSpace(event))
	e = strings.NewReplacer("_", ".", "-", ".").Replace(e)
	if e == "group.participants.update" {
		return EventParticipantsUpdate
	}
	return e
}

// ParticipantID strips the WhatsApp user suffix from an address.
func ParticipantID(jid string) string {
	return strings.TrimSuffix(jid, userSuffix)
}

// Normalize converts a webhook payload into group events. Events from the
// bot itself, private chats, non-text messages and unknown event types
// produce no events.
func Normalize(p WebhookPayload) ([]models.GroupEvent, error) {
	switch CanonicalEvent(p.Event) {
	case EventMessagesUpsert:
		ev, ok, err := normalizeMessage(p.Data)
		if err != nil || !ok {
			return nil, err
		}
		return []models.GroupEvent{ev}, nil
	case EventParticipantsUpdate:
		return normalizeParticipants(p.Data)
	}
	return nil, nil
}

func normalizeMessage(raw json.RawMessage) (models.GroupEvent, bool, error) {
	var data messageData
	if err := json.Unmarshal(raw, &data); err != nil {
		return models.GroupEvent{}, false, err
	}

	key := data.Key
	if key.FromMe || !strings.HasSuffix(key.RemoteJID, groupSuffix) {
		return models.GroupEvent{}, false, nil
	}

	text := ""
	if data.Message != nil {
		text = data.Message.Conversation
		if text == "" && data.Message.ExtendedTextMessage != nil {
			text = data.Message.ExtendedTextMessage.Text
		}
	}
	if strings.TrimSpace(text) == "" {
		return models.GroupEvent{}, false, nil
	}

	sender := key.Participant
	if sender == "" {
		sender = key.RemoteJID
	}

	return models.GroupEvent{
		Kind:            models.EventMessage,
		GroupID:         key.RemoteJID,
		ParticipantID:   ParticipantID(sender),
		ParticipantName: data.PushName,
		Text:            text,
		MessageID:       key.ID,
	}, true, nil
}

func normalizeParticipants(raw json.RawMessage) ([]models.GroupEvent, error) {
	var data participantsData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}

	groupID := data.GroupJID
	if groupID == "" {
		groupID = data.ID
	}
	if !strings.HasSuffix(groupID, groupSuffix) {
		return nil, nil
	}

	var kind models.EventKind
	switch strings.ToLower(data.Action) {
	case "add", "join", "invite":
		kind = models.EventJoined
	case "remove", "leave":
		kind = models.EventLeft
	default:
		return nil, nil
	}

	events := make([]models.GroupEvent, 0, len(data.Participants))
	for _, p := range data.Participants {
		jid, name := participantJID(p)
		if jid == "" {
			continue
		}
		events = append(events, models.GroupEvent{
			Kind:            kind,
			GroupID:         groupID,
			ParticipantID:   ParticipantID(jid),
			ParticipantName: name,
		})
	}
	return events, nil
}

// participantJID accepts both the plain string and the object forms
// Evolution versions send. Objects with a phoneNumber use it over id, since
// id may be a linked-device address that cannot receive direct messages.
func participantJID(raw json.RawMessage) (string, string) {
	var jid string
	if err := json.Unmarshal(raw, &jid); err == nil {
		return jid, ""
	}
	var obj struct {
		ID          string `json:"id"`
		PhoneNumber string `json:"phoneNumber"`
		Name        string `json:"name"`
		PushName    string `json:"pushName"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", ""
	}
	name := obj.Name
	if name == "" {
		name = obj.PushName
	}
	if obj.PhoneNumber != "" {
		return obj.PhoneNumber, name
	}
	return obj.ID, name
}

// MessageDeduper remembers the last capacity message ids so webhook
// redeliveries are handled once.
type MessageDeduper struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	next  int
}

func NewMessageDeduper(capacity int) *MessageDeduper {
	if capacity < 1 {
		capacity = 1
	}
	return &MessageDeduper{
		seen:  make(map[string]struct{}, capacity),
		order: make([]string, capacity),
	}
}

// Seen records id and reports whether it was already recorded. Empty ids
// are never considered duplicates.
func (d *MessageDeduper) Seen(id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if old := d.order[d.next]; old != "" {
		delete(d.seen, old)
	}
	d.order[d.next] = id
	d.next = (d.next + 1) % len(d.order)
	d.seen[id] = struct{}{}
	return false
}
