package models

type EventKind string

// Inbound group event kinds
const (
	EventMessage EventKind = "message"
	EventJoined  EventKind = "joined"
	EventLeft    EventKind = "left"
	EventReset   EventKind = "reset"
)

// GroupEvent is a transport-neutral inbound event for one group.
// Text is empty for membership and reset events, and ParticipantName may
// be empty for them.
type GroupEvent struct {
	Kind            EventKind
	GroupID         string
	ParticipantID   string
	ParticipantName string
	Text            string
	MessageID       string
}
