package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	defaultPongWait   = 60 * time.Second
	defaultPingPeriod = 54 * time.Second
	maxMessageSize    = 64 * 1024
	sendBufferSize    = 64
	inboxSize         = 16
)

// Incoming frame types
const (
	MessageTypeAnswer = "answer"
	MessageTypeHint   = "hint"
)

// Outgoing frame types
const (
	MessageTypeEvaluation = "evaluation"
	MessageTypeCompleted  = "completed"
	MessageTypeError      = "error"
)

// Message is a frame sent by the client
type Message struct {
	Type                string `json:"type"`
	QuestionID          uint   `json:"questionId,omitempty"`
	UserAnswer          string `json:"userAnswer,omitempty"`
	ResponseTimeSeconds *int   `json:"responseTimeSeconds,omitempty"`
}

// Event is a frame sent by the server
type Event struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type broadcast struct {
	interviewID uint
	payload     []byte
}

// Hub groups connections by interview so that a turn result reaches
// every tab the candidate has open on that interview
type Hub struct {
	rooms      map[uint]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcast
	done       chan struct{}
	mu         sync.RWMutex

	// PongWait and PingPeriod apply to clients registered after they are set.
	// PingPeriod must be shorter than PongWait.
	PongWait   time.Duration
	PingPeriod time.Duration
}

type Client struct {
	Hub            *Hub
	Conn           *websocket.Conn
	Send           chan []byte
	UserID         uint
	InterviewID    uint
	ConnectionID   string
	MessageHandler func(*Client, Message) // Function to handle incoming messages
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcast, 16),
		done:       make(chan struct{}),
		PongWait:   defaultPongWait,
		PingPeriod: defaultPingPeriod,
	}
}

// Run serves registrations and broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			room, ok := h.rooms[client.InterviewID]
			if !ok {
				room = make(map[*Client]bool)
				h.rooms[client.InterviewID] = room
			}
			room[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "user_id", client.UserID, "interview_id", client.InterviewID, "connection_id", client.ConnectionID)

		case client := <-h.unregister:
			h.remove(client)
			slog.Info("Client unregistered", "user_id", client.UserID, "interview_id", client.InterviewID, "connection_id", client.ConnectionID)

		case message := <-h.broadcast:
			h.mu.RLock()
			var stale []*Client
			for client := range h.rooms[message.interviewID] {
				select {
				case client.Send <- message.payload:
				default:
					stale = append(stale, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range stale {
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[client.InterviewID]
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	close(client.Send)
	if len(room) == 0 {
		delete(h.rooms, client.InterviewID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		for client := range room {
			close(client.Send)
		}
		delete(h.rooms, id)
	}
}

// Connections reports how many clients are attached to an interview
func (h *Hub) Connections(interviewID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[interviewID])
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID, interviewID uint) *Client {
	client := &Client{
		Hub:          h,
		Conn:         conn,
		Send:         make(chan []byte, sendBufferSize),
		UserID:       userID,
		InterviewID:  interviewID,
		ConnectionID: uuid.New().String(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
	return client
}

// Broadcast sends an event to every client of the interview
func (h *Hub) Broadcast(interviewID uint, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event", "error", err, "type", event.Type)
		return
	}
	select {
	case h.broadcast <- broadcast{interviewID: interviewID, payload: payload}:
	case <-h.done:
	}
}

// SendEvent queues an event for this client only
func (c *Client) SendEvent(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event", "error", err, "type", event.Type)
		return
	}

	defer func() {
		// Send is closed once the hub drops the client
		if recover() != nil {
			slog.Warn("Dropped event for closed connection", "connection_id", c.ConnectionID)
		}
	}()
	select {
	case c.Send <- payload:
	default:
		slog.Warn("Send buffer full, dropping event", "connection_id", c.ConnectionID)
	}
}

// ReadPump decodes frames until the connection closes. Frames are handed to
// a worker so pongs keep being read while a slow turn runs. Messages of one
// connection are still handled in order.
func (c *Client) ReadPump() {
	pongWait := c.Hub.PongWait
	inbox := make(chan Message, inboxSize)
	go c.handleMessages(inbox)

	defer func() {
		close(inbox)
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Error("Failed to unmarshal message", "error", err)
			c.SendEvent(Event{Type: MessageTypeError, Error: "Invalid message format"})
			continue
		}

		slog.Info("Message received", "type", msg.Type, "interview_id", c.InterviewID, "connection_id", c.ConnectionID)

		select {
		case inbox <- msg:
		default:
			slog.Warn("Inbox full, dropping message", "connection_id", c.ConnectionID)
			c.SendEvent(Event{Type: MessageTypeError, Error: "Too many pending messages"})
		}
	}
}

func (c *Client) handleMessages(inbox <-chan Message) {
	for msg := range inbox {
		if c.MessageHandler == nil {
			slog.Warn("No message handler set", "connection_id", c.ConnectionID)
			continue
		}
		c.MessageHandler(c, msg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Hub.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
