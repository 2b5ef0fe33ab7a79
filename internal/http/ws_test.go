package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/collabd/internal/collab"
	"github.com/fyrsmithlabs/collabd/internal/note"
)

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) collab.Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg collab.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketCollaboration(t *testing.T) {
	server, store := setupTestServer(t)

	doc, err := store.Save(context.Background(), &note.Document{
		OwnerID:    "u1",
		Title:      "Shared note",
		Content:    "initial",
		SharedWith: []string{"u2"},
	})
	require.NoError(t, err)

	ts := httptest.NewServer(server.echo)
	defer ts.Close()

	owner := dialWS(t, ts)
	collaborator := dialWS(t, ts)

	join := func(conn *websocket.Conn, user string) {
		require.NoError(t, conn.WriteJSON(ClientMessage{
			Type:       clientJoin,
			DocumentID: doc.ID,
			UserID:     user,
		}))
		msg := readMessage(t, conn)
		require.Equal(t, collab.MessageJoined, msg.Type)
		assert.Equal(t, doc.ID, msg.DocumentID)
	}

	join(owner, "u1")
	join(collaborator, "u2")

	// A collaborator's update reaches every member, the sender included.
	require.NoError(t, collaborator.WriteJSON(ClientMessage{
		Type:       clientUpdate,
		DocumentID: doc.ID,
		UserID:     "u2",
		Content:    "X",
	}))

	for _, conn := range []*websocket.Conn{owner, collaborator} {
		msg := readMessage(t, conn)
		require.Equal(t, collab.MessageUpdated, msg.Type)
		require.NotNil(t, msg.Document)
		assert.Equal(t, "X", msg.Document.Content)
	}

	stored, err := store.FindByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "X", stored.Content)
}

func TestWebSocketUnauthorized(t *testing.T) {
	server, store := setupTestServer(t)

	doc, err := store.Save(context.Background(), &note.Document{
		OwnerID: "u1",
		Content: "private",
	})
	require.NoError(t, err)

	ts := httptest.NewServer(server.echo)
	defer ts.Close()

	outsider := dialWS(t, ts)

	require.NoError(t, outsider.WriteJSON(ClientMessage{
		Type:       clientJoin,
		DocumentID: doc.ID,
		UserID:     "u3",
	}))
	msg := readMessage(t, outsider)
	assert.Equal(t, collab.MessageAuthError, msg.Type)

	// An unauthorized update is refused and nothing is persisted.
	require.NoError(t, outsider.WriteJSON(ClientMessage{
		Type:       clientUpdate,
		DocumentID: doc.ID,
		UserID:     "u3",
		Content:    "hijacked",
	}))
	msg = readMessage(t, outsider)
	assert.Equal(t, collab.MessageAuthError, msg.Type)

	stored, err := store.FindByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "private", stored.Content)
}

func TestWebSocketDisconnectLeavesSessions(t *testing.T) {
	server, store := setupTestServer(t)

	doc, err := store.Save(context.Background(), &note.Document{
		OwnerID: "u1",
		Content: "initial",
	})
	require.NoError(t, err)

	ts := httptest.NewServer(server.echo)
	defer ts.Close()

	conn := dialWS(t, ts)
	require.NoError(t, conn.WriteJSON(ClientMessage{
		Type:       clientJoin,
		DocumentID: doc.ID,
		UserID:     "u1",
	}))
	msg := readMessage(t, conn)
	require.Equal(t, collab.MessageJoined, msg.Type)

	conn.Close()

	// Leave is driven by the read pump observing the close.
	require.Eventually(t, func() bool {
		return server.sessions.MemberCount(doc.ID) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketInvalidMessage(t *testing.T) {
	server, _ := setupTestServer(t)

	ts := httptest.NewServer(server.echo)
	defer ts.Close()

	conn := dialWS(t, ts)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	msg := readMessage(t, conn)
	assert.Equal(t, collab.MessageError, msg.Type)
}
