package arxiv

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sajari/fuzzy"
)

// Valid arXiv category prefixes.
var categoryPrefixes = []string{
	"cs", "econ", "eess", "math", "physics", "q-bio", "q-fin", "stat",
	"astro-ph", "cond-mat", "gr-qc", "hep-ex", "hep-lat", "hep-ph", "hep-th",
	"math-ph", "nlin", "nucl-ex", "nucl-th", "quant-ph",
}

// SortBy selects the upstream result order.
type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortDate      SortBy = "date"
)

// SearchQuery describes an upstream paper search.
type SearchQuery struct {
	Query      string
	Categories []string
	// DateFrom and DateTo are inclusive YYYY-MM-DD bounds on the
	// publication date, applied to results client-side.
	DateFrom   string
	DateTo     string
	MaxResults int
	SortBy     SortBy
}

// DefaultMaxResults is used when SearchQuery.MaxResults is unset.
const DefaultMaxResults = 10

// Search runs q against the arXiv API. limit caps MaxResults.
func (c *Client) Search(ctx context.Context, q SearchQuery, limit int) ([]*Paper, error) {
	if limit <= 0 {
		limit = 50
	}
	n := q.MaxResults
	if n <= 0 {
		n = DefaultMaxResults
	}
	if n > limit {
		n = limit
	}

	from, to, err := parseDateRange(q.DateFrom, q.DateTo)
	if err != nil {
		return nil, err
	}
	searchQuery, err := buildSearchQuery(q)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("search_query", searchQuery)
	params.Set("start", "0")
	// A few extra results leave room for the client-side date filter.
	params.Set("max_results", fmt.Sprint(min(n+5, limit)))
	if q.SortBy == SortDate {
		params.Set("sortBy", "submittedDate")
	} else {
		params.Set("sortBy", "relevance")
	}
	params.Set("sortOrder", "descending")

	papers, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	var out []*Paper
	for _, p := range papers {
		if len(out) >= n {
			break
		}
		if !from.IsZero() && p.Published.Before(from) {
			continue
		}
		if !to.IsZero() && p.Published.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func buildSearchQuery(q SearchQuery) (string, error) {
	var parts []string
	if base := strings.TrimSpace(q.Query); base != "" {
		parts = append(parts, "("+base+")")
	}
	if len(q.Categories) > 0 {
		if err := ValidateCategories(q.Categories); err != nil {
			return "", err
		}
		terms := make([]string, len(q.Categories))
		for i, cat := range q.Categories {
			terms[i] = "cat:" + cat
		}
		parts = append(parts, "("+strings.Join(terms, " OR ")+")")
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no search criteria provided")
	}
	return strings.Join(parts, " "), nil
}

func parseDateRange(fromStr, toStr string) (from, to time.Time, err error) {
	if fromStr != "" {
		from, err = time.Parse(time.DateOnly, fromStr)
		if err != nil {
			return from, to, fmt.Errorf("invalid date_from %q: use YYYY-MM-DD", fromStr)
		}
	}
	if toStr != "" {
		to, err = time.Parse(time.DateOnly, toStr)
		if err != nil {
			return from, to, fmt.Errorf("invalid date_to %q: use YYYY-MM-DD", toStr)
		}
		// Inclusive: the whole day counts.
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("date_to is before date_from")
	}
	return from, to, nil
}

// ValidateCategories checks every category's archive prefix ("cs" in
// "cs.AI") against the known arXiv archives. The error names the
// closest known prefix when there is one.
func ValidateCategories(categories []string) error {
	for _, cat := range categories {
		prefix, _, _ := strings.Cut(cat, ".")
		if isCategoryPrefix(prefix) {
			continue
		}
		if s := suggestCategory(prefix); s != "" {
			return fmt.Errorf("unknown category %q (did you mean %q?)", cat, s)
		}
		return fmt.Errorf("unknown category %q", cat)
	}
	return nil
}

func isCategoryPrefix(p string) bool {
	for _, v := range categoryPrefixes {
		if v == p {
			return true
		}
	}
	return false
}

var (
	categoryModelOnce sync.Once
	categoryModel     *fuzzy.Model
)

func suggestCategory(prefix string) string {
	categoryModelOnce.Do(func() {
		categoryModel = fuzzy.NewModel()
		categoryModel.SetThreshold(1)
		categoryModel.SetDepth(2)
		categoryModel.Train(categoryPrefixes)
	})
	input := strings.ToLower(prefix)
	if isCategoryPrefix(input) {
		return input
	}
	suggestions := categoryModel.Suggestions(input, false)
	if len(suggestions) == 0 {
		return ""
	}
	sort.Strings(suggestions)
	return suggestions[0]
}
