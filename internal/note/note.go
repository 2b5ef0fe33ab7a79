// Package note defines the document model and its persistence contracts.
//
// A Document is owned by exactly one user and may be shared with any number
// of collaborators. Authorization is derived per request from the stored
// ownership metadata, never cached: sharing can be revoked between a check
// and the next operation.
package note

import (
	"errors"
	"slices"
	"time"
)

var (
	// ErrNotFound indicates the document or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the user is neither owner nor collaborator.
	ErrUnauthorized = errors.New("unauthorized")
)

// Document is a note record.
//
// Embedding is nil until the first successful embed and always holds a
// vector produced by a single provider generation; provider vector spaces
// are never mixed within one stored value.
type Document struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Summary    string    `json:"summary,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
	SharedWith []string  `json:"shared_with,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsOwner reports whether userID owns the document.
func (d *Document) IsOwner(userID string) bool {
	return d.OwnerID == userID
}

// CanAccess reports the authorization fact: owner or collaborator.
func (d *Document) CanAccess(userID string) bool {
	return d.IsOwner(userID) || slices.Contains(d.SharedWith, userID)
}

// Share adds userID to the collaborator set. No-op if already present.
func (d *Document) Share(userID string) {
	if !slices.Contains(d.SharedWith, userID) {
		d.SharedWith = append(d.SharedWith, userID)
	}
}

// Unshare removes userID from the collaborator set.
func (d *Document) Unshare(userID string) {
	d.SharedWith = slices.DeleteFunc(d.SharedWith, func(id string) bool {
		return id == userID
	})
}

// Clone returns a deep copy. Broadcast paths hand copies to each member so
// a receiver can never observe a concurrent mutation.
func (d *Document) Clone() *Document {
	c := *d
	c.Tags = slices.Clone(d.Tags)
	c.Embedding = slices.Clone(d.Embedding)
	c.SharedWith = slices.Clone(d.SharedWith)
	return &c
}
