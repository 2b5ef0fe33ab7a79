// Package collab tracks live document sessions and broadcasts accepted
// updates to their members.
//
// A session is the ephemeral set of connections currently joined to one
// document. Sessions are created on first join and released when the last
// member leaves; nothing here is persisted. Authorization is re-derived from
// the document store on every join and every update, never cached, since
// sharing can be revoked between join and update.
package collab

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/collabd/internal/note"
)

// Message is the server-to-client payload fanned out to session members.
type Message struct {
	Type       string         `json:"type"`
	DocumentID string         `json:"document_id,omitempty"`
	Message    string         `json:"message,omitempty"`
	Document   *note.Document `json:"document,omitempty"`
}

// Server-to-client message types.
const (
	MessageJoined    = "joined"
	MessageUpdated   = "updated"
	MessageAuthError = "authError"
	MessageError     = "error"
)

// Conn is a live client connection. Send must be safe for concurrent use;
// the websocket layer serializes writes behind it.
type Conn interface {
	// ID uniquely identifies the connection for the lifetime of the socket.
	ID() string
	// Send delivers a message to the client.
	Send(msg Message) error
}

// Manager owns the session registry. All state is scoped to the instance;
// there is no package-level registry.
type Manager struct {
	store  note.Store
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]map[string]Conn // document id -> connection id -> conn
	byConn   map[string]map[string]bool // connection id -> joined document ids

	locksMu  sync.Mutex
	docLocks map[string]*docLock
}

// docLock serializes the write-then-broadcast sequence per document.
// Refcounted so entries are released once no update is in flight.
type docLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a session manager over the given document store.
func NewManager(store note.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		logger:   logger.Named("collab"),
		sessions: make(map[string]map[string]Conn),
		byConn:   make(map[string]map[string]bool),
		docLocks: make(map[string]*docLock),
	}
}

// Join adds conn to the session for documentID after verifying the user is
// owner or collaborator. On success the client receives a join
// acknowledgment only; content sync is the client's responsibility via a
// subsequent fetch. A connection may belong to multiple document sessions.
//
// Unauthorized joins receive an authError on the requesting connection and
// never enter the session.
func (m *Manager) Join(ctx context.Context, conn Conn, documentID, userID string) error {
	doc, err := m.store.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, note.ErrNotFound) {
			m.sendAuthError(conn, documentID, "You don't have permission to join this note.")
			return fmt.Errorf("join %s: %w", documentID, note.ErrUnauthorized)
		}
		m.sendError(conn, documentID, "Failed to join note.")
		return fmt.Errorf("join %s: %w", documentID, err)
	}

	if !doc.CanAccess(userID) {
		m.logger.Info("join denied",
			zap.String("document_id", documentID),
			zap.String("user_id", userID))
		m.sendAuthError(conn, documentID, "You don't have permission to join this note.")
		return fmt.Errorf("join %s: %w", documentID, note.ErrUnauthorized)
	}

	m.mu.Lock()
	members, ok := m.sessions[documentID]
	if !ok {
		members = make(map[string]Conn)
		m.sessions[documentID] = members
	}
	members[conn.ID()] = conn

	joined, ok := m.byConn[conn.ID()]
	if !ok {
		joined = make(map[string]bool)
		m.byConn[conn.ID()] = joined
	}
	joined[documentID] = true
	m.mu.Unlock()

	m.logger.Debug("connection joined session",
		zap.String("document_id", documentID),
		zap.String("connection_id", conn.ID()),
		zap.String("user_id", userID))

	if err := conn.Send(Message{Type: MessageJoined, DocumentID: documentID}); err != nil {
		m.logger.Warn("join ack send failed",
			zap.String("connection_id", conn.ID()),
			zap.Error(err))
	}
	return nil
}

// Leave removes conn from every session it belongs to, releasing sessions
// whose membership becomes empty. It is called on explicit leave and on
// every connection-closed event, so cleanup needs no client cooperation.
func (m *Manager) Leave(conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	joined := m.byConn[conn.ID()]
	delete(m.byConn, conn.ID())

	for documentID := range joined {
		members := m.sessions[documentID]
		delete(members, conn.ID())
		if len(members) == 0 {
			delete(m.sessions, documentID)
		}
	}
}

// SubmitUpdate persists newContent for documentID and broadcasts the stored
// document to every session member, including the originating connection,
// so all clients converge on the single authoritative copy.
//
// Authorization is re-checked at call time. On auth failure the requester
// alone receives an authError and nothing is persisted or broadcast. On a
// store failure the requester alone receives an error and no fan-out occurs.
//
// Updates to one document are serialized: the write-then-broadcast sequence
// is atomic at document granularity, and the last write to complete wins.
// ctx should be server-scoped, not connection-scoped: a connection dropping
// mid-update must not cancel an in-flight store write.
func (m *Manager) SubmitUpdate(ctx context.Context, conn Conn, documentID, userID, newContent string) error {
	unlock := m.lockDocument(documentID)
	defer unlock()

	doc, err := m.store.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, note.ErrNotFound) {
			m.sendAuthError(conn, documentID, "You don't have permission to edit this note.")
			return fmt.Errorf("update %s: %w", documentID, note.ErrUnauthorized)
		}
		m.sendError(conn, documentID, "Failed to update note.")
		return fmt.Errorf("update %s: %w", documentID, err)
	}

	if !doc.CanAccess(userID) {
		m.logger.Info("update denied",
			zap.String("document_id", documentID),
			zap.String("user_id", userID))
		m.sendAuthError(conn, documentID, "You don't have permission to edit this note.")
		return fmt.Errorf("update %s: %w", documentID, note.ErrUnauthorized)
	}

	doc.Content = newContent
	stored, err := m.store.Save(ctx, doc)
	if err != nil {
		m.sendError(conn, documentID, "Failed to save note.")
		return fmt.Errorf("update %s: %w", documentID, err)
	}

	m.broadcast(documentID, Message{
		Type:       MessageUpdated,
		DocumentID: documentID,
		Document:   stored,
	})
	return nil
}

// broadcast fans msg out to a snapshot of the session's members. The
// snapshot is taken under the read lock so concurrent join/leave never
// exposes a torn membership set; sends happen outside the lock.
func (m *Manager) broadcast(documentID string, msg Message) {
	m.mu.RLock()
	members := make([]Conn, 0, len(m.sessions[documentID]))
	for _, c := range m.sessions[documentID] {
		members = append(members, c)
	}
	m.mu.RUnlock()

	for _, c := range members {
		out := msg
		if msg.Document != nil {
			out.Document = msg.Document.Clone()
		}
		if err := c.Send(out); err != nil {
			// A failed send after a successful write is a best-effort
			// notification gap; the store remains authoritative.
			m.logger.Warn("broadcast send failed",
				zap.String("document_id", documentID),
				zap.String("connection_id", c.ID()),
				zap.Error(err))
		}
	}
}

// lockDocument acquires the per-document serialization lock and returns the
// release func.
func (m *Manager) lockDocument(documentID string) func() {
	m.locksMu.Lock()
	l, ok := m.docLocks[documentID]
	if !ok {
		l = &docLock{}
		m.docLocks[documentID] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.docLocks, documentID)
		}
		m.locksMu.Unlock()
	}
}

// SessionCount returns the number of active sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// MemberCount returns the number of connections in documentID's session.
func (m *Manager) MemberCount(documentID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions[documentID])
}

func (m *Manager) sendAuthError(conn Conn, documentID, message string) {
	if err := conn.Send(Message{Type: MessageAuthError, DocumentID: documentID, Message: message}); err != nil {
		m.logger.Warn("auth error send failed",
			zap.String("connection_id", conn.ID()),
			zap.Error(err))
	}
}

func (m *Manager) sendError(conn Conn, documentID, message string) {
	if err := conn.Send(Message{Type: MessageError, DocumentID: documentID, Message: message}); err != nil {
		m.logger.Warn("error send failed",
			zap.String("connection_id", conn.ID()),
			zap.Error(err))
	}
}
