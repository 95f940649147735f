package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dombearx/VoiceBot/internal/storage"
)

func (s *Server) listMetrics(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		s.abort(c, err)
		return
	}
	page, err := s.deps.Usage.ListMetrics(c.Request.Context(), q)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) listErrors(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		s.abort(c, err)
		return
	}
	page, err := s.deps.Usage.ListErrors(c.Request.Context(), q)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// parseQuery reads the listing filters. Range and whitelist checks happen
// in the store.
func parseQuery(c *gin.Context) (storage.Query, error) {
	q := storage.Query{
		VoiceID: c.Query("voiceId"),
		SortBy:  c.Query("sortBy"),
		Order:   c.Query("order"),
	}

	if v := c.Query("apiType"); v != "" {
		t, err := storage.ParseAPIType(v)
		if err != nil {
			return q, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
		}
		q.APIType = t
	}

	var err error
	if q.From, err = timeParam(c, "from"); err != nil {
		return q, err
	}
	if q.To, err = timeParam(c, "to"); err != nil {
		return q, err
	}
	if q.Page, err = intParam(c, "page"); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(c, "limit"); err != nil {
		return q, err
	}
	if q.Limit > storage.MaxLimit {
		return q, fmt.Errorf("%w: limit must be at most %d", storage.ErrInvalidQuery, storage.MaxLimit)
	}
	if q.Page > storage.MaxPage {
		return q, fmt.Errorf("%w: page must be at most %d", storage.ErrInvalidQuery, storage.MaxPage)
	}
	return q, nil
}

func timeParam(c *gin.Context, name string) (time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be an RFC3339 timestamp", storage.ErrInvalidQuery, name)
	}
	return t, nil
}

func intParam(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", storage.ErrInvalidQuery, name)
	}
	return n, nil
}
