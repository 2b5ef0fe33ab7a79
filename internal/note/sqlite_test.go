package note

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveAndFind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, &Document{
		OwnerID:   "u1",
		Title:     "meeting notes",
		Content:   "discuss roadmap",
		Tags:      []string{"work", "planning"},
		Embedding: []float32{0.1, 0.2, 0.3},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())
	assert.False(t, saved.UpdatedAt.IsZero())

	found, err := store.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "meeting notes", found.Title)
	assert.Equal(t, []string{"work", "planning"}, found.Tags)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, found.Embedding)
	assert.Nil(t, found.SharedWith)
}

func TestSQLiteStore_FindMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SaveRequiresOwner(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(context.Background(), &Document{Content: "orphan"})
	assert.Error(t, err)
}

func TestSQLiteStore_LastWriterWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, &Document{OwnerID: "u1", Content: "first"})
	require.NoError(t, err)

	saved.Content = "second"
	_, err = store.Save(ctx, saved)
	require.NoError(t, err)

	saved.Content = "third"
	_, err = store.Save(ctx, saved)
	require.NoError(t, err)

	found, err := store.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "third", found.Content)
	assert.Equal(t, saved.CreatedAt.Unix(), found.CreatedAt.Unix())
}

func TestSQLiteStore_EmbeddingAbsentUntilSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, &Document{OwnerID: "u1", Content: "no vector yet"})
	require.NoError(t, err)

	found, err := store.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Nil(t, found.Embedding)
}

func TestSQLiteStore_ListForUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	owned, err := store.Save(ctx, &Document{OwnerID: "u1", Title: "mine"})
	require.NoError(t, err)
	shared, err := store.Save(ctx, &Document{OwnerID: "u2", Title: "theirs", SharedWith: []string{"u1"}})
	require.NoError(t, err)
	_, err = store.Save(ctx, &Document{OwnerID: "u3", Title: "private"})
	require.NoError(t, err)

	docs, err := store.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	ids := []string{docs[0].ID, docs[1].ID}
	assert.Contains(t, ids, owned.ID)
	assert.Contains(t, ids, shared.ID)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, &Document{OwnerID: "u1"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, saved.ID))
	_, err = store.FindByID(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, saved.ID), ErrNotFound)
}

func TestSQLiteStore_UserDirectory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.PutUser(ctx, "u1", "Alice"))

	exists, err = store.Exists(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, exists)
}
