// Package ws tracks live observer connections and fans replies out to them.
// One Hub instance is shared by the whole process and injected into every
// component that delivers messages.
package ws

import (
	"log/slog"
	"sync"
)

// Conn is the minimal surface the hub needs from a connection. Satisfied by
// *websocket.Conn.
type Conn interface {
	WriteJSON(v any) error
}

// Hub holds customer connections per session and the admin connections that
// observe every session. All collections are guarded by mu; broadcasts sweep
// out connections that fail delivery.
type Hub struct {
	logger    *slog.Logger
	mu        sync.Mutex
	customers map[int64][]Conn
	admins    []Conn
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		logger:    log.With(slog.String("service", "ws_hub")),
		customers: make(map[int64][]Conn),
	}
}

// RegisterCustomer adds a customer connection under its session id.
func (h *Hub) RegisterCustomer(conn Conn, sessionID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.customers[sessionID] = append(h.customers[sessionID], conn)
}

// UnregisterCustomer removes a customer connection, dropping the session's
// entry once its list is empty.
func (h *Hub) UnregisterCustomer(conn Conn, sessionID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.customers[sessionID] = removeConn(h.customers[sessionID], conn)
	if len(h.customers[sessionID]) == 0 {
		delete(h.customers, sessionID)
	}
}

// RegisterAdmin adds an admin connection observing all sessions.
func (h *Hub) RegisterAdmin(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.admins = append(h.admins, conn)
}

// UnregisterAdmin removes an admin connection.
func (h *Hub) UnregisterAdmin(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.admins = removeConn(h.admins, conn)
}

// DeliverToSession sends message to every customer connection of a session.
// Connections that fail delivery are removed after the sweep.
func (h *Hub) DeliverToSession(sessionID int64, message any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var failed []Conn
	for _, conn := range h.customers[sessionID] {
		if err := conn.WriteJSON(message); err != nil {
			h.logger.Warn("customer delivery failed",
				slog.Int64("session_id", sessionID), slog.Any("error", err))
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		h.customers[sessionID] = removeConn(h.customers[sessionID], conn)
	}
	if len(h.customers[sessionID]) == 0 {
		delete(h.customers, sessionID)
	}
}

// BroadcastToAdmins sends message to every admin connection.
func (h *Hub) BroadcastToAdmins(message any) {
	h.broadcastAdmins(nil, message)
}

// BroadcastToAdminsExcept sends message to every admin connection except the
// sender, so a sender does not receive its own message back.
func (h *Hub) BroadcastToAdminsExcept(sender Conn, message any) {
	h.broadcastAdmins(sender, message)
}

func (h *Hub) broadcastAdmins(exclude Conn, message any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var failed []Conn
	for _, conn := range h.admins {
		if conn == exclude {
			continue
		}
		if err := conn.WriteJSON(message); err != nil {
			h.logger.Warn("admin delivery failed", slog.Any("error", err))
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		h.admins = removeConn(h.admins, conn)
	}
}

func removeConn(conns []Conn, target Conn) []Conn {
	for i, conn := range conns {
		if conn == target {
			return append(conns[:i], conns[i+1:]...)
		}
	}
	return conns
}
