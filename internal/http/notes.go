package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/collabd/internal/note"
)

// CreateUserRequest is the request body for POST /api/users.
type CreateUserRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// handleCreateUser registers a user in the directory so shares can be
// validated against known accounts.
func (s *Server) handleCreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id field is required")
	}

	if err := s.users.PutUser(c.Request().Context(), req.ID, req.Name); err != nil {
		s.logger.Error("create user failed", zap.Error(err))
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": req.ID})
}

// NoteRequest is the request body for note create and update.
type NoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// handleCreateNote creates a note owned by the requesting user. The content
// is embedded when a provider is reachable; embedding failure is logged and
// the note is stored without a vector, so it is simply skipped by search.
func (s *Server) handleCreateNote(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	var req NoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	ctx := c.Request().Context()
	doc := &note.Document{
		OwnerID: uid,
		Title:   req.Title,
		Content: req.Content,
	}

	if vec, err := s.gateway.Embed(ctx, req.Content); err != nil {
		s.logger.Warn("embedding skipped for new note", zap.Error(err))
	} else {
		doc.Embedding = vec
	}

	stored, err := s.store.Save(ctx, doc)
	if err != nil {
		s.logger.Error("create note failed", zap.Error(err))
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, stored)
}

// handleListNotes returns the notes the requesting user owns or has been
// shared, newest first.
func (s *Server) handleListNotes(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	docs, err := s.store.ListForUser(c.Request().Context(), uid)
	if err != nil {
		s.logger.Error("list notes failed", zap.Error(err))
		return domainError(err)
	}
	if docs == nil {
		docs = []*note.Document{}
	}
	return c.JSON(http.StatusOK, docs)
}

// handleGetNote returns a single note if the user is owner or collaborator.
func (s *Server) handleGetNote(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	doc, err := s.store.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return domainError(err)
	}
	if !doc.CanAccess(uid) {
		return domainError(note.ErrUnauthorized)
	}
	return c.JSON(http.StatusOK, doc)
}

// handleUpdateNote overwrites title and content for owner or collaborator.
// Changed content is re-embedded; if embedding fails the prior vector is
// kept so search does not regress on an AI outage.
func (s *Server) handleUpdateNote(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	var req NoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	doc, err := s.store.FindByID(ctx, c.Param("id"))
	if err != nil {
		return domainError(err)
	}
	if !doc.CanAccess(uid) {
		return domainError(note.ErrUnauthorized)
	}

	if req.Title != "" {
		doc.Title = req.Title
	}
	if req.Content != "" && req.Content != doc.Content {
		doc.Content = req.Content
		if vec, err := s.gateway.Embed(ctx, req.Content); err != nil {
			s.logger.Warn("re-embedding skipped on update",
				zap.String("note_id", doc.ID), zap.Error(err))
		} else {
			doc.Embedding = vec
		}
	}

	stored, err := s.store.Save(ctx, doc)
	if err != nil {
		s.logger.Error("update note failed", zap.Error(err))
		return domainError(err)
	}
	return c.JSON(http.StatusOK, stored)
}

// handleDeleteNote removes a note. Only the owner may delete.
func (s *Server) handleDeleteNote(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	doc, err := s.store.FindByID(ctx, c.Param("id"))
	if err != nil {
		return domainError(err)
	}
	if !doc.IsOwner(uid) {
		return domainError(note.ErrUnauthorized)
	}

	if err := s.store.Delete(ctx, doc.ID); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ShareRequest is the request body for share and unshare.
type ShareRequest struct {
	UserID string `json:"user_id"`
}

// handleShareNote grants a collaborator access. Only the owner may share,
// and the target user must exist in the directory.
func (s *Server) handleShareNote(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	var req ShareRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id field is required")
	}

	ctx := c.Request().Context()
	doc, err := s.store.FindByID(ctx, c.Param("id"))
	if err != nil {
		return domainError(err)
	}
	if !doc.IsOwner(uid) {
		return domainError(note.ErrUnauthorized)
	}

	known, err := s.users.Exists(ctx, req.UserID)
	if err != nil {
		s.logger.Error("user lookup failed", zap.Error(err))
		return domainError(err)
	}
	if !known {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}

	doc.Share(req.UserID)
	stored, err := s.store.Save(ctx, doc)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, stored)
}

// handleUnshareNote revokes a collaborator's access. Only the owner may
// unshare; revoking an absent collaborator is a no-op.
func (s *Server) handleUnshareNote(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	var req ShareRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id field is required")
	}

	ctx := c.Request().Context()
	doc, err := s.store.FindByID(ctx, c.Param("id"))
	if err != nil {
		return domainError(err)
	}
	if !doc.IsOwner(uid) {
		return domainError(note.ErrUnauthorized)
	}

	doc.Unshare(req.UserID)
	stored, err := s.store.Save(ctx, doc)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, stored)
}
