package api

import (
	"fmt"
	"time"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
)

// EventRequest is the JSON form of an injected chat event.
// Kind selects which of the remaining fields apply.
type EventRequest struct {
	Kind string `json:"kind"`

	// message_received, message_deleted, message_edited
	ID       string           `json:"id,omitempty"`
	Chat     string           `json:"chat,omitempty"`
	ChatType string           `json:"chat_type,omitempty"`
	Sender   string           `json:"sender,omitempty"`
	FromSelf bool             `json:"from_self,omitempty"`
	Content  string           `json:"content,omitempty"`
	MsgType  string           `json:"msg_type,omitempty"`
	Mentions []string         `json:"mentions,omitempty"`
	ViewOnce *ViewOnceRequest `json:"view_once,omitempty"`

	Deleter    string `json:"deleter,omitempty"`
	Editor     string `json:"editor,omitempty"`
	NewContent string `json:"new_content,omitempty"`

	// call_received
	CallID string `json:"call_id,omitempty"`
	From   string `json:"from,omitempty"`

	// participant_update
	Action       string   `json:"action,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

// ViewOnceRequest marks an injected message as view-once media
type ViewOnceRequest struct {
	Kind    string `json:"kind"`
	Caption string `json:"caption,omitempty"`
	Key     string `json:"key,omitempty"`
}

// ToEvent validates the request and builds the chat event
func (r *EventRequest) ToEvent(now time.Time) (domain.ChatEvent, error) {
	switch domain.EventKind(r.Kind) {
	case domain.EventMessageReceived:
		if r.ID == "" || r.Chat == "" {
			return nil, fmt.Errorf("id and chat are required")
		}
		msg := &domain.MessageReceived{
			ID:        r.ID,
			Chat:      r.Chat,
			ChatType:  domain.ChatTypeP2P,
			Sender:    r.Sender,
			FromSelf:  r.FromSelf,
			Content:   r.Content,
			MsgType:   r.MsgType,
			Mentions:  r.Mentions,
			Timestamp: now,
		}
		if r.ChatType == string(domain.ChatTypeGroup) {
			msg.ChatType = domain.ChatTypeGroup
		}
		if msg.MsgType == "" {
			msg.MsgType = "text"
		}
		if r.ViewOnce != nil {
			kind := domain.MediaKind(r.ViewOnce.Kind)
			if kind != domain.MediaImage && kind != domain.MediaVideo {
				return nil, fmt.Errorf("unknown view_once kind %q", r.ViewOnce.Kind)
			}
			msg.ViewOnce = &domain.ViewOnceMedia{Kind: kind, Caption: r.ViewOnce.Caption, Key: r.ViewOnce.Key}
		}
		return msg, nil

	case domain.EventMessageDeleted:
		if r.ID == "" || r.Chat == "" {
			return nil, fmt.Errorf("id and chat are required")
		}
		return &domain.MessageDeleted{ID: r.ID, Chat: r.Chat, Deleter: r.Deleter}, nil

	case domain.EventMessageEdited:
		if r.ID == "" || r.Chat == "" {
			return nil, fmt.Errorf("id and chat are required")
		}
		return &domain.MessageEdited{ID: r.ID, Chat: r.Chat, Editor: r.Editor, NewContent: r.NewContent}, nil

	case domain.EventCallReceived:
		if r.CallID == "" || r.From == "" {
			return nil, fmt.Errorf("call_id and from are required")
		}
		return &domain.CallReceived{CallID: r.CallID, From: r.From}, nil

	case domain.EventParticipantUpdate:
		action := domain.ParticipantAction(r.Action)
		switch action {
		case domain.ActionPromote, domain.ActionDemote, domain.ActionAdd, domain.ActionRemove:
		default:
			return nil, fmt.Errorf("unknown action %q", r.Action)
		}
		if r.Chat == "" || len(r.Participants) == 0 {
			return nil, fmt.Errorf("chat and participants are required")
		}
		return &domain.ParticipantUpdate{Chat: r.Chat, Action: action, Participants: r.Participants}, nil

	default:
		return nil, fmt.Errorf("unknown event kind %q", r.Kind)
	}
}
