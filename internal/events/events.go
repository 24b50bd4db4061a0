// Package events defines the closed set of domain events fanned out to
// connected dashboard sessions. Events are immutable once constructed; the
// Kind tag selects the browser-side handler.
package events

import "telephony-bridge/internal/models"

type Kind string

const (
	KindConnected           Kind = "connected"
	KindNewMessage          Kind = "message.new"
	KindConversationUpdated Kind = "conversation.updated"
	KindCallCreated         Kind = "call.created"
	KindCallUpdated         Kind = "call.updated"
	KindExtensionStatus     Kind = "extension.status"
	KindAgentPresence       Kind = "agent.presence"
	KindChatMessage         Kind = "chat.message"
	KindChatReaction        Kind = "chat.reaction"
)

// Event is the tagged-variant interface implemented by every payload below.
type Event interface {
	EventKind() Kind
}

type Connected struct {
	ClientID string `json:"client_id"`
}

func (Connected) EventKind() Kind { return KindConnected }

type NewMessage struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	From           string `json:"from"`
	Body           string `json:"body,omitempty"`
	MediaType      string `json:"media_type,omitempty"`
}

func (NewMessage) EventKind() Kind { return KindNewMessage }

type ConversationUpdated struct {
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status,omitempty"`
	AssignedAgent  string `json:"assigned_agent,omitempty"`
}

func (ConversationUpdated) EventKind() Kind { return KindConversationUpdated }

type CallCreated struct {
	Call models.CallRecord `json:"call"`
}

func (CallCreated) EventKind() Kind { return KindCallCreated }

type CallUpdated struct {
	Call models.CallRecord `json:"call"`
}

func (CallUpdated) EventKind() Kind { return KindCallUpdated }

type ExtensionStatusChanged struct {
	Statuses []models.ExtensionStatus `json:"statuses"`
}

func (ExtensionStatusChanged) EventKind() Kind { return KindExtensionStatus }

type AgentPresenceChanged struct {
	AgentID   string          `json:"agent_id"`
	Extension string          `json:"extension,omitempty"`
	Presence  models.Presence `json:"presence"`
}

func (AgentPresenceChanged) EventKind() Kind { return KindAgentPresence }

type ChatMessage struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	AgentID   string `json:"agent_id"`
	Body      string `json:"body"`
}

func (ChatMessage) EventKind() Kind { return KindChatMessage }

type ChatReaction struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	AgentID   string `json:"agent_id"`
	Emoji     string `json:"emoji"`
}

func (ChatReaction) EventKind() Kind { return KindChatReaction }
