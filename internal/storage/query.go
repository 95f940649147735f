package storage

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	// MaxPage keeps the row offset well inside a Postgres bigint.
	MaxPage = 1_000_000
)

// Query filters and pages a listing. Zero values mean "no filter".
type Query struct {
	VoiceID string
	APIType APIType
	From    time.Time
	To      time.Time
	Page    int
	Limit   int
	SortBy  string
	Order   string
}

// normalize fills defaults and rejects unknown sort columns.
func (q Query) normalize(sortable []string) (Query, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Page > MaxPage {
		return q, fmt.Errorf("page must be at most %d", MaxPage)
	}
	if q.SortBy == "" {
		q.SortBy = "created_at"
	}
	if !contains(sortable, q.SortBy) {
		return q, fmt.Errorf("cannot sort by %q", q.SortBy)
	}
	switch strings.ToLower(q.Order) {
	case "", "desc":
		q.Order = "DESC"
	case "asc":
		q.Order = "ASC"
	default:
		return q, fmt.Errorf("invalid order %q", q.Order)
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return q, fmt.Errorf("from must not be after to")
	}
	return q, nil
}

type listSQL struct {
	list  string
	count string
	args  []any // shared prefix, list adds limit and offset
}

// buildList renders a filtered, sorted, paged SELECT and its COUNT. q must
// be normalized.
func buildList(table string, columns []string, q Query) listSQL {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.VoiceID != "" {
		add("voice_id = $%d", q.VoiceID)
	}
	if q.APIType != "" {
		add("api_type = $%d", string(q.APIType))
	}
	if !q.From.IsZero() {
		add("created_at >= $%d", q.From)
	}
	if !q.To.IsZero() {
		add("created_at <= $%d", q.To)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	n := len(args)
	return listSQL{
		list: fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d",
			strings.Join(columns, ", "), table, clause, q.SortBy, q.Order, q.Order, n+1, n+2),
		count: fmt.Sprintf("SELECT COUNT(*) FROM %s%s", table, clause),
		args:  args,
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
