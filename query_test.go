package arxiv

import (
	"context"
	"strings"
	"testing"
)

func TestBuildSearchQuery(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		q       SearchQuery
		want    string
		wantErr string
	}{
		{
			name: "plain",
			q:    SearchQuery{Query: "transformer"},
			want: "(transformer)",
		},
		{
			name: "with categories",
			q:    SearchQuery{Query: `ti:"attention"`, Categories: []string{"cs.CL", "cs.LG"}},
			want: `(ti:"attention") (cat:cs.CL OR cat:cs.LG)`,
		},
		{
			name: "categories only",
			q:    SearchQuery{Categories: []string{"quant-ph"}},
			want: "(cat:quant-ph)",
		},
		{
			name:    "empty",
			q:       SearchQuery{Query: "   "},
			wantErr: "no search criteria",
		},
		{
			name:    "bad category",
			q:       SearchQuery{Query: "x", Categories: []string{"mth.CO"}},
			wantErr: `did you mean "math"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildSearchQuery(tt.q)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateCategories(t *testing.T) {
	t.Parallel()
	if err := ValidateCategories([]string{"cs.AI", "astro-ph.CO", "stat"}); err != nil {
		t.Errorf("valid categories rejected: %v", err)
	}
	err := ValidateCategories([]string{"cz.AI"})
	if err == nil || !strings.Contains(err.Error(), `"cs"`) {
		t.Errorf("ValidateCategories(cz.AI) = %v, want suggestion cs", err)
	}
	if err := ValidateCategories([]string{"zzzzzzzz"}); err == nil {
		t.Error("nonsense category accepted")
	}
}

func TestParseDateRange(t *testing.T) {
	t.Parallel()
	from, to, err := parseDateRange("2023-01-01", "2023-01-31")
	if err != nil {
		t.Fatal(err)
	}
	if from.Format("2006-01-02") != "2023-01-01" || to.Format("2006-01-02T15:04") != "2023-01-31T23:59" {
		t.Errorf("range = %v .. %v", from, to)
	}
	for _, tt := range [][2]string{{"01/01/2023", ""}, {"", "yesterday"}, {"2023-02-01", "2023-01-01"}} {
		if _, _, err := parseDateRange(tt[0], tt[1]); err == nil {
			t.Errorf("parseDateRange(%q, %q) accepted", tt[0], tt[1])
		}
	}
}

func TestClientSearch(t *testing.T) {
	t.Parallel()
	f := &fakeArxiv{feed: testFeed}
	c := newTestClient(t, f)

	papers, err := c.Search(context.Background(), SearchQuery{
		Query:      "attention",
		Categories: []string{"cs.CL"},
		MaxResults: 5,
		SortBy:     SortDate,
	}, 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("got %d papers, want 2", len(papers))
	}

	q := f.lastQuery()
	if got := q.Get("search_query"); got != "(attention) (cat:cs.CL)" {
		t.Errorf("search_query = %q", got)
	}
	if got := q.Get("max_results"); got != "10" {
		t.Errorf("max_results = %q, want 10 (5 plus headroom)", got)
	}
	if got := q.Get("sortBy"); got != "submittedDate" {
		t.Errorf("sortBy = %q", got)
	}
	if got := q.Get("sortOrder"); got != "descending" {
		t.Errorf("sortOrder = %q", got)
	}
}

func TestClientSearchLimits(t *testing.T) {
	t.Parallel()
	f := &fakeArxiv{feed: testFeed}
	c := newTestClient(t, f)

	papers, err := c.Search(context.Background(), SearchQuery{Query: "x", MaxResults: 500}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(papers) != 1 {
		t.Errorf("got %d papers, want the limit of 1", len(papers))
	}
	if got := f.lastQuery().Get("max_results"); got != "1" {
		t.Errorf("max_results = %q, want 1", got)
	}
	if got := f.lastQuery().Get("sortBy"); got != "relevance" {
		t.Errorf("default sortBy = %q", got)
	}
}

func TestClientSearchDateFilter(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, &fakeArxiv{feed: testFeed})

	tests := []struct {
		from, to string
		want     []string
	}{
		{"2017-06-12", "", []string{"1706.03762"}},
		{"", "1999-01-01", []string{"hep-th/9901001"}},
		{"2000-01-01", "2017-06-11", nil},
		{"", "", []string{"1706.03762", "hep-th/9901001"}},
	}
	for _, tt := range tests {
		papers, err := c.Search(context.Background(), SearchQuery{Query: "x", DateFrom: tt.from, DateTo: tt.to}, 50)
		if err != nil {
			t.Fatalf("Search(%s..%s): %v", tt.from, tt.to, err)
		}
		var ids []string
		for _, p := range papers {
			ids = append(ids, p.ID)
		}
		if strings.Join(ids, ",") != strings.Join(tt.want, ",") {
			t.Errorf("Search(%s..%s) = %v, want %v", tt.from, tt.to, ids, tt.want)
		}
	}
}

func TestClientSearchRejectsBadInput(t *testing.T) {
	t.Parallel()
	f := &fakeArxiv{feed: testFeed}
	c := newTestClient(t, f)

	if _, err := c.Search(context.Background(), SearchQuery{Query: "x", DateFrom: "June"}, 50); err == nil {
		t.Error("bad date accepted")
	}
	if _, err := c.Search(context.Background(), SearchQuery{Query: "x", Categories: []string{"nope.XX"}}, 50); err == nil {
		t.Error("bad category accepted")
	}
	if q := f.lastQuery(); q != nil {
		t.Error("invalid searches reached the API")
	}
}
