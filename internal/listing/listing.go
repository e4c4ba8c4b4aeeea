// Package listing holds the paging shape shared by product listings and search.
package listing

import (
	"math"
	"strings"
)

const (
	DefaultOnPage = 10
	MaxOnPage     = 100

	// MaxPage keeps Offset from overflowing.
	MaxPage = math.MaxInt32 / MaxOnPage
)

type Query struct {
	Page   int
	OnPage int
	Q      string
}

// Normalize clamps paging to sane values and trims the search text.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.OnPage < 1 {
		q.OnPage = DefaultOnPage
	}
	if q.OnPage > MaxOnPage {
		q.OnPage = MaxOnPage
	}
	q.Q = strings.TrimSpace(q.Q)
	return q
}

func (q Query) Offset() int { return (q.Page - 1) * q.OnPage }

type Page[T any] struct {
	Objects    []T `json:"objects"`
	Total      int `json:"total"`
	TotalPages int `json:"totalpages"`
}

func NewPage[T any](objects []T, total, onPage int) Page[T] {
	if objects == nil {
		objects = []T{}
	}
	pages := 0
	if onPage > 0 {
		pages = (total + onPage - 1) / onPage
	}
	return Page[T]{Objects: objects, Total: total, TotalPages: pages}
}

// Slice pages through an already filtered, ordered slice.
func Slice[T any](all []T, q Query) Page[T] {
	total := len(all)
	from := q.Offset()
	if from > total {
		from = total
	}
	to := from + q.OnPage
	if to > total {
		to = total
	}
	return NewPage(append([]T(nil), all[from:to]...), total, q.OnPage)
}

// Matches is the in-memory twin of LikePattern: case-insensitive substring.
func Matches(q string, fields ...string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// LikePattern escapes q for an ILIKE '%q%' match.
func LikePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
