package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	apiBaseURL = "https://export.arxiv.org/api/query"
	pdfBaseURL = "https://arxiv.org/pdf/"

	// maxPDFSize caps a single download.
	maxPDFSize = 100 << 20

	// DefaultRateLimit spaces API queries per arXiv's usage guidelines.
	DefaultRateLimit = 3 * time.Second
)

// Client talks to the arXiv Atom API and PDF endpoint.
type Client struct {
	HTTP       *http.Client
	APIURL     string
	PDFBaseURL string
	UserAgent  string

	// RateLimit is the minimum delay between API queries. PDF downloads
	// are not throttled.
	RateLimit time.Duration

	mu   sync.Mutex
	next time.Time
}

// NewClient returns a client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		HTTP:       &http.Client{Timeout: timeout},
		APIURL:     apiBaseURL,
		PDFBaseURL: pdfBaseURL,
		UserAgent:  "arxiv-mcp/1.0 (+https://github.com/tmc/arxiv-mcp)",
		RateLimit:  DefaultRateLimit,
	}
}

// Lookup fetches metadata for ids in a single API call.
// Ids unknown upstream are simply absent from the result.
func (c *Client) Lookup(ctx context.Context, ids ...string) ([]*Paper, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("id_list", strings.Join(ids, ","))
	params.Set("max_results", fmt.Sprint(len(ids)))
	return c.query(ctx, params)
}

// DownloadPDF fetches the PDF for id.
func (c *Client) DownloadPDF(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.get(ctx, c.PDFBaseURL+id)
	if err != nil {
		return nil, newError(ErrUnavailable, id, err)
	}
	defer resp.Body.Close()

	if err := statusError(id, resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFSize+1))
	if err != nil {
		return nil, newError(ErrUnavailable, id, fmt.Errorf("read body: %w", err))
	}
	if len(data) > maxPDFSize {
		return nil, errorf(ErrUnavailable, id, "pdf larger than %d bytes", maxPDFSize)
	}
	return data, nil
}

func (c *Client) query(ctx context.Context, params url.Values) ([]*Paper, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, newError(ErrUnavailable, "", err)
	}
	resp, err := c.get(ctx, c.APIURL+"?"+params.Encode())
	if err != nil {
		return nil, newError(ErrUnavailable, "", err)
	}
	defer resp.Body.Close()

	if err := statusError("", resp); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(ErrUnavailable, "", fmt.Errorf("read body: %w", err))
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, newError(ErrUnavailable, "", fmt.Errorf("parse xml: %w", err))
	}

	var papers []*Paper
	for _, entry := range feed.Entries {
		// Malformed ids come back as a single entry pointing at /api/errors.
		if strings.Contains(entry.ID, "/api/errors") {
			continue
		}
		if p := parseAtomEntry(entry); p.ID != "" {
			papers = append(papers, p)
		}
	}
	return papers, nil
}

// throttle blocks until the next API query slot is free.
func (c *Client) throttle(ctx context.Context) error {
	if c.RateLimit <= 0 {
		return nil
	}
	c.mu.Lock()
	now := time.Now()
	at := c.next
	if at.Before(now) {
		at = now
	}
	c.next = at.Add(c.RateLimit)
	c.mu.Unlock()

	wait := time.Until(at)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

func statusError(id string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return errorf(ErrNotFound, id, "http %s", resp.Status)
	default:
		// 429 and 5xx are the usual suspects; arXiv asks clients to back off.
		return errorf(ErrUnavailable, id, "http %s", resp.Status)
	}
}

// Atom feed structures for arXiv API

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Authors    []atomAuthor   `xml:"author"`
	Categories []atomCategory `xml:"category"`
	Published  string         `xml:"published"`
	Updated    string         `xml:"updated"`
	Comment    string         `xml:"comment"`
	JournalRef string         `xml:"journal_ref"`
	DOI        string         `xml:"doi"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// parseAtomEntry converts an atom entry to a Paper.
func parseAtomEntry(entry atomEntry) *Paper {
	// http://arxiv.org/abs/2301.00001v1 -> 2301.00001
	paperID := ""
	if idx := strings.LastIndex(entry.ID, "/abs/"); idx >= 0 {
		paperID = stripVersion(entry.ID[idx+5:])
	}

	var authors []string
	for _, a := range entry.Authors {
		authors = append(authors, strings.TrimSpace(a.Name))
	}

	var categories []string
	for _, c := range entry.Categories {
		categories = append(categories, c.Term)
	}

	paper := &Paper{
		ID:         paperID,
		Title:      collapseSpace(entry.Title),
		Abstract:   collapseSpace(entry.Summary),
		Authors:    strings.Join(authors, ", "),
		Categories: strings.Join(categories, " "),
		Comments:   entry.Comment,
		JournalRef: entry.JournalRef,
		DOI:        entry.DOI,
	}
	paper.Published, _ = time.Parse(time.RFC3339, entry.Published)
	paper.Updated, _ = time.Parse(time.RFC3339, entry.Updated)
	return paper
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
