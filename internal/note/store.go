package note

import "context"

// Store persists documents. Save is a full last-writer-wins overwrite:
// the write that reaches the store last replaces prior content, no merge.
type Store interface {
	// FindByID returns the document or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Document, error)

	// Save writes the document, assigning an ID if empty, and returns the
	// stored record with timestamps set.
	Save(ctx context.Context, doc *Document) (*Document, error)

	// Delete removes the document. Missing documents are ErrNotFound.
	Delete(ctx context.Context, id string) error

	// ListForUser returns documents owned by or shared with userID,
	// newest first.
	ListForUser(ctx context.Context, userID string) ([]*Document, error)

	// ListAll returns every document, newest first. Administrative
	// surface; user-facing paths go through ListForUser.
	ListAll(ctx context.Context) ([]*Document, error)
}

// UserDirectory answers existence queries for user identifiers. Sharing
// consults it before adding a collaborator; richer account lifecycle lives
// elsewhere.
type UserDirectory interface {
	// Exists reports whether userID is known.
	Exists(ctx context.Context, userID string) (bool, error)

	// PutUser registers or updates a user entry.
	PutUser(ctx context.Context, userID, name string) error
}
