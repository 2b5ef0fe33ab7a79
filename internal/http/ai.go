package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/collabd/internal/note"
	"github.com/fyrsmithlabs/collabd/internal/similarity"
)

// AIRequest is the request body for POST /api/ai/summarize and /api/ai/tags.
type AIRequest struct {
	Content string `json:"content"`
}

// SummarizeResponse is the response body for POST /api/ai/summarize.
type SummarizeResponse struct {
	Summary string `json:"summary"`
}

// TagsResponse is the response body for POST /api/ai/tags.
type TagsResponse struct {
	Tags []string `json:"tags"`
}

// handleSummarize returns a provider-generated summary of the content.
func (s *Server) handleSummarize(c echo.Context) error {
	var req AIRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	summary, err := s.gateway.Summarize(c.Request().Context(), req.Content)
	if err != nil {
		s.logger.Warn("summarize failed", zap.Error(err))
		return domainError(err)
	}
	return c.JSON(http.StatusOK, SummarizeResponse{Summary: summary})
}

// handleTags returns provider-generated tags for the content.
func (s *Server) handleTags(c echo.Context) error {
	var req AIRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	tags, err := s.gateway.Tags(c.Request().Context(), req.Content)
	if err != nil {
		s.logger.Warn("tag generation failed", zap.Error(err))
		return domainError(err)
	}
	if tags == nil {
		tags = []string{}
	}
	return c.JSON(http.StatusOK, TagsResponse{Tags: tags})
}

// SearchRequest is the request body for POST /api/ai/search.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchResult pairs a note with its similarity to the query.
type SearchResult struct {
	Document   *note.Document `json:"document"`
	Similarity float64        `json:"similarity"`
}

// handleSearch ranks the requesting user's notes by semantic similarity to
// the query. A query that cannot be embedded is an error, never an unranked
// list; notes without a stored embedding are skipped.
func (s *Server) handleSearch(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	ctx := c.Request().Context()
	queryVec, err := s.gateway.Embed(ctx, req.Query)
	if err != nil {
		s.logger.Warn("query embedding failed", zap.Error(err))
		return domainError(err)
	}

	docs, err := s.store.ListForUser(ctx, uid)
	if err != nil {
		s.logger.Error("search listing failed", zap.Error(err))
		return domainError(err)
	}

	byID := make(map[string]*note.Document, len(docs))
	candidates := make([]similarity.Candidate, 0, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
		candidates = append(candidates, similarity.Candidate{ID: doc.ID, Vector: doc.Embedding})
	}

	ranked, err := similarity.Rank(queryVec, candidates)
	if err != nil {
		s.logger.Warn("ranking failed", zap.Error(err))
		return domainError(err)
	}

	results := make([]SearchResult, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, SearchResult{Document: byID[r.ID], Similarity: r.Score})
	}
	return c.JSON(http.StatusOK, results)
}
