package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"telephony-bridge/internal/config"
	"telephony-bridge/internal/events"
)

func TestWebhookMessageHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantEvent  events.Kind
	}{
		{
			name:       "message",
			body:       `{"type":"message","conversation_id":"c1","message_id":"m1","from":"0611111111","body":"hello"}`,
			wantStatus: http.StatusOK,
			wantEvent:  events.KindNewMessage,
		},
		{
			name:       "conversation",
			body:       `{"type":"conversation","conversation_id":"c1","status":"closed"}`,
			wantStatus: http.StatusOK,
			wantEvent:  events.KindConversationUpdated,
		},
		{
			name:       "reaction",
			body:       `{"type":"reaction","conversation_id":"c1","message_id":"m1","from":"agent-1","emoji":"👍"}`,
			wantStatus: http.StatusOK,
			wantEvent:  events.KindChatReaction,
		},
		{
			name:       "unknown type",
			body:       `{"type":"presence"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := testHub()
			sink := h.Add("viewer")

			handler := WebhookMessageHandler(h)
			req := httptest.NewRequest(http.MethodPost, "/webhooks/messages", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			handler(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}

			select {
			case msg := <-sink:
				if tc.wantEvent == "" {
					t.Fatalf("unexpected broadcast: %q", msg)
				}
				if !strings.HasPrefix(string(msg), "event: "+string(tc.wantEvent)+"\n") {
					t.Errorf("broadcast = %q, want kind %s", msg, tc.wantEvent)
				}
			default:
				if tc.wantEvent != "" {
					t.Error("expected a broadcast, got none")
				}
			}
		})
	}
}

func TestWebhookTokenAuth(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{WebhookToken: "tok-1"}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := WebhookTokenAuth(cfg)(next)

	tests := []struct {
		name       string
		bearer     string
		header     string
		wantStatus int
	}{
		{"valid bearer", "tok-1", "", http.StatusNoContent},
		{"valid custom header", "", "tok-1", http.StatusNoContent},
		{"missing", "", "", http.StatusForbidden},
		{"wrong", "nope", "", http.StatusForbidden},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/webhooks/messages", nil)
			if tc.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tc.bearer)
			}
			if tc.header != "" {
				req.Header.Set("X-Webhook-Token", tc.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}
