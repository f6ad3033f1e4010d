package services

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	ws "github.com/interviewhelper/backend/websocket"
)

const socketTurnTimeout = 2 * time.Minute

// WebSocketHandler lets a candidate answer questions over a socket bound
// to one interview. Turn results are broadcast to every socket of that
// interview, hints only to the socket that asked.
type WebSocketHandler struct {
	interviews *InterviewService
	hub        *ws.Hub
	upgrader   websocket.Upgrader
}

func NewWebSocketHandler(interviews *InterviewService, hub *ws.Hub, allowedOrigins string) *WebSocketHandler {
	return &WebSocketHandler{
		interviews: interviews,
		hub:        hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, allowedOrigins)
			},
		},
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		slog.Error("WebSocket connection failed - user not found in context")
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	interviewID, err := parseID(chi.URLParam(r, "interviewId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid interview id")
		return
	}
	interview, err := h.interviews.GetInterview(r.Context(), user.ID, interviewID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !interview.IsActive() {
		writeServiceError(w, ErrInterviewClosed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("WebSocket connection established", "user_id", user.ID, "interview_id", interviewID)

	client := h.hub.RegisterClient(conn, user.ID, interviewID)
	client.MessageHandler = h.HandleMessage

	go client.WritePump()
	client.ReadPump()
}

// HandleMessage runs one frame received from a client
func (h *WebSocketHandler) HandleMessage(client *ws.Client, msg ws.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), socketTurnTimeout)
	defer cancel()

	switch msg.Type {
	case ws.MessageTypeAnswer:
		if strings.TrimSpace(msg.UserAnswer) == "" {
			client.SendEvent(ws.Event{Type: ws.MessageTypeError, Error: "userAnswer is required"})
			return
		}
		result, err := h.interviews.SubmitAnswer(ctx, SubmitAnswerInput{
			UserID:              client.UserID,
			InterviewID:         client.InterviewID,
			QuestionID:          msg.QuestionID,
			UserAnswer:          msg.UserAnswer,
			ResponseTimeSeconds: msg.ResponseTimeSeconds,
		})
		if err != nil {
			client.SendEvent(socketError(err))
			return
		}
		eventType := ws.MessageTypeEvaluation
		if result.Completed {
			eventType = ws.MessageTypeCompleted
		}
		h.hub.Broadcast(client.InterviewID, ws.Event{Type: eventType, Data: result})

	case ws.MessageTypeHint:
		hint, err := h.interviews.Hint(ctx, client.UserID, client.InterviewID, msg.QuestionID)
		if err != nil {
			client.SendEvent(socketError(err))
			return
		}
		client.SendEvent(ws.Event{Type: ws.MessageTypeHint, Data: HintResponse{Hint: hint}})

	default:
		slog.Warn("Unknown message type", "type", msg.Type, "connection_id", client.ConnectionID)
		client.SendEvent(ws.Event{Type: ws.MessageTypeError, Error: "Unknown message type"})
	}
}

// socketError hides unexpected failures the same way the HTTP handlers do
func socketError(err error) ws.Event {
	if statusForError(err) == 0 {
		slog.Error("Unexpected socket failure", "error", err)
		return ws.Event{Type: ws.MessageTypeError, Error: http.StatusText(http.StatusInternalServerError)}
	}
	return ws.Event{Type: ws.MessageTypeError, Error: err.Error()}
}
