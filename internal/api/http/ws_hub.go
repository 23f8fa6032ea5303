package apihttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mediafetch/internal/domain"
	"mediafetch/internal/metrics"
)

// wsInbound is the client-to-server message envelope.
type wsInbound struct {
	Type  string `json:"type"`
	JobID string `json:"job_id,omitempty"`
	TS    int64  `json:"ts,omitempty"`
}

type wsClient struct {
	hub  *wsHub
	conn *websocket.Conn
	send chan []byte
	id   string
}

func newWSClient(hub *wsHub, conn *websocket.Conn) *wsClient {
	return &wsClient{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
		id:   uuid.NewString(),
	}
}

type roomChange struct {
	client *wsClient
	room   string
}

type roomMessage struct {
	room    string
	payload []byte
}

// wsHub owns all client and room state; only its run goroutine touches
// the maps. Rooms are keyed by job id.
type wsHub struct {
	clients     map[*wsClient]bool
	rooms       map[string]map[*wsClient]bool
	memberships map[*wsClient]map[string]bool

	register   chan *wsClient
	unregister chan *wsClient
	join       chan roomChange
	leave      chan roomChange
	roomCast   chan roomMessage
	done       chan struct{}

	cancel func(ctx context.Context, id domain.JobID) (bool, error)
	logger *slog.Logger
}

func newWSHub(logger *slog.Logger, cancel func(ctx context.Context, id domain.JobID) (bool, error)) *wsHub {
	return &wsHub{
		clients:     make(map[*wsClient]bool),
		rooms:       make(map[string]map[*wsClient]bool),
		memberships: make(map[*wsClient]map[string]bool),
		register:    make(chan *wsClient),
		unregister:  make(chan *wsClient),
		join:        make(chan roomChange),
		leave:       make(chan roomChange),
		roomCast:    make(chan roomMessage, 64),
		done:        make(chan struct{}),
		cancel:      cancel,
		logger:      logger,
	}
}

func (h *wsHub) run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				_ = client.conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(2*time.Second),
				)
				h.drop(client)
			}
			h.logger.Debug("ws hub stopped, all clients disconnected")
			return
		case client := <-h.register:
			h.clients[client] = true
			metrics.WSClientsConnected.Set(float64(len(h.clients)))
			client.enqueue(wsPayload("connected", map[string]any{"client_id": client.id}))
			h.logger.Debug("ws client connected", slog.Int("total", len(h.clients)))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				metrics.WSClientsConnected.Set(float64(len(h.clients)))
				h.logger.Debug("ws client disconnected", slog.Int("total", len(h.clients)))
			}
		case change := <-h.join:
			if _, ok := h.clients[change.client]; !ok {
				continue
			}
			if h.rooms[change.room] == nil {
				h.rooms[change.room] = make(map[*wsClient]bool)
			}
			h.rooms[change.room][change.client] = true
			if h.memberships[change.client] == nil {
				h.memberships[change.client] = make(map[string]bool)
			}
			h.memberships[change.client][change.room] = true
			change.client.enqueue(wsPayload("subscribed", map[string]any{"job_id": change.room}))
		case change := <-h.leave:
			h.removeFromRoom(change.client, change.room)
			change.client.enqueue(wsPayload("unsubscribed", map[string]any{"job_id": change.room}))
		case msg := <-h.roomCast:
			for client := range h.rooms[msg.room] {
				select {
				case client.send <- msg.payload:
				default:
					h.drop(client)
				}
			}
		}
	}
}

func (h *wsHub) drop(client *wsClient) {
	for room := range h.memberships[client] {
		h.removeFromRoom(client, room)
	}
	delete(h.memberships, client)
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *wsHub) removeFromRoom(client *wsClient, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.memberships[client]; ok {
		delete(rooms, room)
	}
}

// Close signals the hub to stop and disconnect all clients.
func (h *wsHub) Close() {
	close(h.done)
}

// castToRoom delivers a prebuilt message to one job room. Never blocks
// the caller.
func (h *wsHub) castToRoom(room string, payload []byte) {
	select {
	case h.roomCast <- roomMessage{room: room, payload: payload}:
	default:
	}
}

// The emitters swallow marshal failures with a warning: a push problem
// must never disturb the download workflow that raised the event.
func (h *wsHub) emit(room, msgType string, fields map[string]any) {
	if h == nil {
		return
	}
	payload, err := marshalEvent(msgType, fields)
	if err != nil {
		h.logger.Warn("ws emit failed",
			slog.String("type", msgType),
			slog.String("error", err.Error()),
		)
		return
	}
	h.castToRoom(room, payload)
}

func (h *wsHub) emitProgress(e domain.JobProgressUpdatedEvent) {
	h.emit(string(e.JobID), "job_progress", e.Fields())
}

func (h *wsHub) emitCompleted(e domain.JobCompletedEvent) {
	fields := e.Fields()
	fields["status"] = "completed"
	h.emit(string(e.JobID), "job_completed", fields)
}

func (h *wsHub) emitFailed(e domain.JobFailedEvent) {
	fields := e.Fields()
	fields["status"] = "failed"
	h.emit(string(e.JobID), "job_failed", fields)
}

func (h *wsHub) emitCancelled(e domain.JobCancelledEvent) {
	fields := e.Fields()
	fields["status"] = "cancelled"
	h.emit(string(e.JobID), "job_cancelled", fields)
}

func marshalEvent(msgType string, fields map[string]any) ([]byte, error) {
	out := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		out[key] = value
	}
	out["type"] = msgType
	return json.Marshal(out)
}

func wsPayload(msgType string, fields map[string]any) []byte {
	payload, err := marshalEvent(msgType, fields)
	if err != nil {
		return []byte(`{"type":"error","message":"internal encoding failure"}`)
	}
	return payload
}

func (c *wsClient) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		c.handleMessage(raw)
	}
}

func (c *wsClient) handleMessage(raw []byte) {
	var msg wsInbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.enqueue(wsPayload("error", map[string]any{"message": "malformed message"}))
		return
	}
	switch msg.Type {
	case "subscribe_job":
		if msg.JobID == "" {
			c.enqueue(wsPayload("error", map[string]any{"message": "job_id is required"}))
			return
		}
		c.hub.join <- roomChange{client: c, room: msg.JobID}
	case "unsubscribe_job":
		if msg.JobID == "" {
			c.enqueue(wsPayload("error", map[string]any{"message": "job_id is required"}))
			return
		}
		c.hub.leave <- roomChange{client: c, room: msg.JobID}
	case "ping":
		c.enqueue(wsPayload("pong", map[string]any{"timestamp": time.Now().UTC().Unix()}))
	case "cancel_job":
		if msg.JobID == "" {
			c.enqueue(wsPayload("error", map[string]any{"message": "job_id is required"}))
			return
		}
		c.cancelJob(domain.JobID(msg.JobID))
	default:
		c.enqueue(wsPayload("error", map[string]any{"message": "unknown message type"}))
	}
}

// cancelJob deletes the job; the cancellation broadcast to the room
// arrives through the event-bus bridge.
func (c *wsClient) cancelJob(id domain.JobID) {
	if c.hub.cancel == nil {
		c.enqueue(wsPayload("error", map[string]any{"message": "cancellation unavailable"}))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	deleted, err := c.hub.cancel(ctx, id)
	if err != nil {
		c.hub.logger.Warn("ws cancel failed",
			slog.String("jobId", string(id)),
			slog.String("error", err.Error()),
		)
		c.enqueue(wsPayload("error", map[string]any{"message": "cancellation failed"}))
		return
	}
	if !deleted {
		c.enqueue(wsPayload("error", map[string]any{"message": "job not found"}))
	}
}
