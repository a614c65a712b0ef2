package domain

import "time"

// StatusBroadcastChat is the pseudo chat that carries status updates
const StatusBroadcastChat = "status@broadcast"

// ChatType represents the chat type
type ChatType string

const (
	ChatTypeGroup ChatType = "group"
	ChatTypeP2P   ChatType = "p2p"
)

// EventKind names a ChatEvent variant
type EventKind string

const (
	EventMessageReceived   EventKind = "message_received"
	EventMessageDeleted    EventKind = "message_deleted"
	EventMessageEdited     EventKind = "message_edited"
	EventCallReceived      EventKind = "call_received"
	EventParticipantUpdate EventKind = "participant_update"
)

// ChatEvent is one inbound event from the transport.
// The set of variants is closed: only types in this package implement it.
type ChatEvent interface {
	Kind() EventKind
	// ChatID returns the chat the event belongs to, used for ordering
	ChatID() string
	sealed()
}

// MediaKind is the kind of an attached media payload
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Extension returns the file extension used when the media is saved
func (k MediaKind) Extension() string {
	if k == MediaVideo {
		return ".mp4"
	}
	return ".jpg"
}

// ViewOnceMedia describes a single-view payload attached to a message
type ViewOnceMedia struct {
	Kind    MediaKind
	Caption string
	// Key is the transport handle used to download the bytes
	Key string
}

// MessageReceived is a new inbound (or self-sent) message
type MessageReceived struct {
	ID        string
	Chat      string
	ChatType  ChatType
	Sender    string
	FromSelf  bool
	Content   string // human-readable summary, see DescribeContent
	MsgType   string // transport message type: text, image, post, ...
	Mentions  []string
	ViewOnce  *ViewOnceMedia
	Timestamp time.Time
}

func (e *MessageReceived) Kind() EventKind { return EventMessageReceived }
func (e *MessageReceived) ChatID() string  { return e.Chat }
func (*MessageReceived) sealed()           {}

// IsGroup reports whether the message arrived in a group chat
func (e *MessageReceived) IsGroup() bool {
	return e.ChatType == ChatTypeGroup
}

// IsStatus reports whether the message is a status broadcast
func (e *MessageReceived) IsStatus() bool {
	return e.Chat == StatusBroadcastChat
}

// Mentioned reports whether id is among the message mentions
func (e *MessageReceived) Mentioned(id string) bool {
	if id == "" {
		return false
	}
	for _, m := range e.Mentions {
		if m == id {
			return true
		}
	}
	return false
}

// MessageDeleted reports that a message was revoked
type MessageDeleted struct {
	ID      string
	Chat    string
	Deleter string
}

func (e *MessageDeleted) Kind() EventKind { return EventMessageDeleted }
func (e *MessageDeleted) ChatID() string  { return e.Chat }
func (*MessageDeleted) sealed()           {}

// MessageEdited reports that a message body was replaced
type MessageEdited struct {
	ID         string
	Chat       string
	Editor     string
	NewContent string
}

func (e *MessageEdited) Kind() EventKind { return EventMessageEdited }
func (e *MessageEdited) ChatID() string  { return e.Chat }
func (*MessageEdited) sealed()           {}

// CallReceived is an incoming voice or video call offer
type CallReceived struct {
	CallID string
	From   string
}

func (e *CallReceived) Kind() EventKind { return EventCallReceived }
func (e *CallReceived) ChatID() string  { return e.From }
func (*CallReceived) sealed()           {}

// ParticipantAction is a group membership change
type ParticipantAction string

const (
	ActionPromote ParticipantAction = "promote"
	ActionDemote  ParticipantAction = "demote"
	ActionAdd     ParticipantAction = "add"
	ActionRemove  ParticipantAction = "remove"
)

// ParticipantUpdate reports a membership change in a group
type ParticipantUpdate struct {
	Chat         string
	Action       ParticipantAction
	Participants []string
}

func (e *ParticipantUpdate) Kind() EventKind { return EventParticipantUpdate }
func (e *ParticipantUpdate) ChatID() string  { return e.Chat }
func (*ParticipantUpdate) sealed()           {}

// Includes reports whether id is one of the affected participants
func (e *ParticipantUpdate) Includes(id string) bool {
	for _, p := range e.Participants {
		if p == id {
			return true
		}
	}
	return false
}
