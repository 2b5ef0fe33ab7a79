package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/collabd/internal/ai"
	"github.com/fyrsmithlabs/collabd/internal/collab"
	"github.com/fyrsmithlabs/collabd/internal/note"
)

// stubProvider is a canned ai.Provider for handler tests.
type stubProvider struct {
	summary string
	rawTags string
	vector  []float32
	err     error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Summarize(context.Context, string) (string, error) {
	return p.summary, p.err
}

func (p *stubProvider) RawTags(context.Context, string) (string, error) {
	return p.rawTags, p.err
}

func (p *stubProvider) Embed(context.Context, string) ([]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.vector, nil
}

// setupTestServer creates a server over a temp sqlite store and the given
// providers.
func setupTestServer(t *testing.T, providers ...ai.Provider) (*Server, *note.SQLiteStore) {
	t.Helper()

	store, err := note.NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	gateway := ai.NewGateway(providers, time.Second, 0, zap.NewNop())
	sessions := collab.NewManager(store, zap.NewNop())

	server, err := NewServer(store, store, gateway, sessions, zap.NewNop(), &Config{
		Host: "localhost",
		Port: 9090,
	})
	require.NoError(t, err)
	return server, store
}

func doJSON(t *testing.T, server *Server, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		server, _ := setupTestServer(t)
		assert.NotNil(t, server.echo)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		store, err := note.NewSQLiteStore(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })

		gateway := ai.NewGateway(nil, time.Second, 0, zap.NewNop())
		server, err := NewServer(store, store, gateway, collab.NewManager(store, zap.NewNop()), zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 9090, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		store, err := note.NewSQLiteStore(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })

		gateway := ai.NewGateway(nil, time.Second, 0, zap.NewNop())
		_, err = NewServer(store, store, gateway, collab.NewManager(store, zap.NewNop()), nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when store is nil", func(t *testing.T) {
		gateway := ai.NewGateway(nil, time.Second, 0, zap.NewNop())
		_, err := NewServer(nil, nil, gateway, nil, zap.NewNop(), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "store cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
}

func TestNoteCRUD(t *testing.T) {
	server, _ := setupTestServer(t, &stubProvider{vector: []float32{1, 0, 0}})

	t.Run("requires user header", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/notes", "", NoteRequest{Content: "x"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	rec := doJSON(t, server, http.MethodPost, "/api/notes", "u1", NoteRequest{
		Title:   "Meeting notes",
		Content: "Discussed the roadmap.",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[*note.Document](t, rec)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "u1", created.OwnerID)
	assert.Equal(t, []float32{1, 0, 0}, created.Embedding)

	t.Run("owner can fetch", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/notes/"+created.ID, "u1", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("outsider is forbidden", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/notes/"+created.ID, "u3", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("list returns own notes", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/notes", "u1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		docs := decode[[]*note.Document](t, rec)
		require.Len(t, docs, 1)
		assert.Equal(t, created.ID, docs[0].ID)
	})

	t.Run("update overwrites content", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPut, "/api/notes/"+created.ID, "u1", NoteRequest{
			Content: "Revised roadmap.",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		updated := decode[*note.Document](t, rec)
		assert.Equal(t, "Revised roadmap.", updated.Content)
	})

	t.Run("missing note is 404", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/notes/nope", "u1", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("only owner deletes", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodDelete, "/api/notes/"+created.ID, "u3", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = doJSON(t, server, http.MethodDelete, "/api/notes/"+created.ID, "u1", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, server, http.MethodGet, "/api/notes/"+created.ID, "u1", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUpdateKeepsEmbeddingOnAIFailure(t *testing.T) {
	provider := &stubProvider{vector: []float32{1, 0, 0}}
	server, store := setupTestServer(t, provider)

	rec := doJSON(t, server, http.MethodPost, "/api/notes", "u1", NoteRequest{Content: "original"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[*note.Document](t, rec)
	require.Equal(t, []float32{1, 0, 0}, created.Embedding)

	provider.err = assert.AnError

	rec = doJSON(t, server, http.MethodPut, "/api/notes/"+created.ID, "u1", NoteRequest{Content: "changed"})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := store.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", stored.Content)
	assert.Equal(t, []float32{1, 0, 0}, stored.Embedding)
}

func TestShareAndUnshare(t *testing.T) {
	server, _ := setupTestServer(t, &stubProvider{})

	rec := doJSON(t, server, http.MethodPost, "/api/notes", "u1", NoteRequest{Content: "shared doc"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[*note.Document](t, rec)

	t.Run("unknown collaborator is 404", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/notes/"+created.ID+"/share", "u1", ShareRequest{UserID: "u2"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	rec = doJSON(t, server, http.MethodPost, "/api/users", "", CreateUserRequest{ID: "u2", Name: "Collaborator"})
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("only owner shares", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/notes/"+created.ID+"/share", "u2", ShareRequest{UserID: "u2"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	rec = doJSON(t, server, http.MethodPost, "/api/notes/"+created.ID+"/share", "u1", ShareRequest{UserID: "u2"})
	require.Equal(t, http.StatusOK, rec.Code)
	shared := decode[*note.Document](t, rec)
	assert.Contains(t, shared.SharedWith, "u2")

	t.Run("collaborator can fetch and list", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/notes/"+created.ID, "u2", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, server, http.MethodGet, "/api/notes", "u2", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		docs := decode[[]*note.Document](t, rec)
		assert.Len(t, docs, 1)
	})

	rec = doJSON(t, server, http.MethodPost, "/api/notes/"+created.ID+"/unshare", "u1", ShareRequest{UserID: "u2"})
	require.Equal(t, http.StatusOK, rec.Code)
	unshared := decode[*note.Document](t, rec)
	assert.NotContains(t, unshared.SharedWith, "u2")

	rec = doJSON(t, server, http.MethodGet, "/api/notes/"+created.ID, "u2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAIEndpoints(t *testing.T) {
	t.Run("summarize returns provider summary", func(t *testing.T) {
		server, _ := setupTestServer(t, &stubProvider{summary: "a short summary"})

		rec := doJSON(t, server, http.MethodPost, "/api/ai/summarize", "", AIRequest{Content: "long text"})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[SummarizeResponse](t, rec)
		assert.Equal(t, "a short summary", resp.Summary)
	})

	t.Run("tags are normalized", func(t *testing.T) {
		server, _ := setupTestServer(t, &stubProvider{rawTags: " go, notes ,go, "})

		rec := doJSON(t, server, http.MethodPost, "/api/ai/tags", "", AIRequest{Content: "long text"})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[TagsResponse](t, rec)
		assert.Equal(t, []string{"go", "notes"}, resp.Tags)
	})

	t.Run("empty content is 400", func(t *testing.T) {
		server, _ := setupTestServer(t, &stubProvider{summary: "s"})

		rec := doJSON(t, server, http.MethodPost, "/api/ai/summarize", "", AIRequest{Content: "   "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no providers is 502", func(t *testing.T) {
		server, _ := setupTestServer(t)

		rec := doJSON(t, server, http.MethodPost, "/api/ai/summarize", "", AIRequest{Content: "text"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestHandleSearch(t *testing.T) {
	server, store := setupTestServer(t, &stubProvider{vector: []float32{1, 0}})
	ctx := context.Background()

	seed := func(content string, vec []float32) *note.Document {
		doc, err := store.Save(ctx, &note.Document{
			OwnerID:   "u1",
			Content:   content,
			Embedding: vec,
		})
		require.NoError(t, err)
		return doc
	}

	near := seed("close to the query", []float32{0.9, 0.1})
	far := seed("far from the query", []float32{0, 1})
	seed("never embedded", nil)

	t.Run("ranks accessible notes, skipping unembedded", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/ai/search", "u1", SearchRequest{Query: "roadmap"})
		require.Equal(t, http.StatusOK, rec.Code)

		results := decode[[]SearchResult](t, rec)
		require.Len(t, results, 2)
		assert.Equal(t, near.ID, results[0].Document.ID)
		assert.Equal(t, far.ID, results[1].Document.ID)
		assert.Greater(t, results[0].Similarity, results[1].Similarity)
	})

	t.Run("empty query is 400", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/ai/search", "u1", SearchRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("embed failure is 502, never an unranked list", func(t *testing.T) {
		failing, _ := setupTestServer(t)
		rec := doJSON(t, failing, http.MethodPost, "/api/ai/search", "u1", SearchRequest{Query: "roadmap"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestServerLifecycle(t *testing.T) {
	t.Run("starts and shuts down gracefully", func(t *testing.T) {
		store, err := note.NewSQLiteStore(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })

		gateway := ai.NewGateway(nil, time.Second, 0, zap.NewNop())
		server, err := NewServer(store, store, gateway, collab.NewManager(store, zap.NewNop()), zap.NewNop(), &Config{
			Host: "localhost",
			Port: 0, // Use random available port
		})
		require.NoError(t, err)

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Start()
		}()

		time.Sleep(100 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err = server.Shutdown(ctx)
		assert.NoError(t, err)

		select {
		case err := <-errChan:
			assert.True(t, err == nil || err == http.ErrServerClosed)
		case <-time.After(6 * time.Second):
			t.Fatal("server did not shut down in time")
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("adds request ID to response", func(t *testing.T) {
		server, _ := setupTestServer(t)

		rec := doJSON(t, server, http.MethodGet, "/health", "", nil)
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("recovers from panic", func(t *testing.T) {
		server, _ := setupTestServer(t)

		server.echo.GET("/panic", func(c echo.Context) error {
			panic("test panic")
		})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		assert.NotPanics(t, func() {
			server.echo.ServeHTTP(rec, req)
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
