package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"telephony-bridge/internal/events"
	"telephony-bridge/internal/hub"
)

// WebhookPayload is the chat-channel callback shape. Message persistence is
// handled by the CRUD layer before this endpoint is called; here the change
// is only fanned out to open dashboard sessions.
type WebhookPayload struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	From           string `json:"from"`
	Body           string `json:"body"`
	MediaType      string `json:"media_type"`
	Status         string `json:"status"`
	AssignedAgent  string `json:"assigned_agent"`
	Emoji          string `json:"emoji"`
}

func WebhookMessageHandler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		switch p.Type {
		case "message":
			h.Broadcast(events.NewMessage{
				ConversationID: p.ConversationID,
				MessageID:      p.MessageID,
				From:           p.From,
				Body:           p.Body,
				MediaType:      p.MediaType,
			})
		case "conversation":
			h.Broadcast(events.ConversationUpdated{
				ConversationID: p.ConversationID,
				Status:         p.Status,
				AssignedAgent:  p.AssignedAgent,
			})
		case "reaction":
			h.Broadcast(events.ChatReaction{
				ChannelID: p.ConversationID,
				MessageID: p.MessageID,
				AgentID:   p.From,
				Emoji:     p.Emoji,
			})
		default:
			slog.Warn("unknown webhook payload type", "type", p.Type)
			http.Error(w, "unknown type", http.StatusBadRequest)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
