package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/tmc/arxiv-mcp"
)

// Searcher runs upstream searches and metadata lookups. *arxiv.Client implements it.
type Searcher interface {
	Search(ctx context.Context, q arxiv.SearchQuery, limit int) ([]*arxiv.Paper, error)
	Lookup(ctx context.Context, ids ...string) ([]*arxiv.Paper, error)
}

type tools struct {
	lib        *arxiv.Library
	search     Searcher
	maxResults int
	log        zerolog.Logger
}

var searchTool = mcp.NewTool("search_papers",
	mcp.WithDescription(`Search for papers on arXiv.

Use quoted phrases for exact matches ("multi-agent systems"), field prefixes
for precision (ti:"title phrase", au:"author", abs:"keyword") and ANDNOT to
exclude terms. Category filters (e.g. cs.AI, cs.LG, cs.CL) greatly improve
relevance. Dates use YYYY-MM-DD and filter on the publication date.`),
	mcp.WithString("query", mcp.Required(),
		mcp.Description(`Search query, e.g. '"machine learning" OR "deep learning"'.`)),
	mcp.WithNumber("max_results",
		mcp.Description("Maximum number of results (default 10, capped by server config).")),
	mcp.WithString("date_from", mcp.Description("Earliest publication date, YYYY-MM-DD.")),
	mcp.WithString("date_to", mcp.Description("Latest publication date, YYYY-MM-DD.")),
	mcp.WithArray("categories", mcp.WithStringItems(),
		mcp.Description("arXiv categories to restrict to, e.g. ['cs.AI', 'cs.MA'].")),
	mcp.WithString("sort_by", mcp.Enum(string(arxiv.SortRelevance), string(arxiv.SortDate)),
		mcp.Description("'relevance' (default) or 'date' (newest first).")),
)

var downloadTool = mcp.NewTool("download_paper",
	mcp.WithDescription(`Download a paper and convert it to markdown.

Conversion runs in the background: the first call returns while the paper
is still converting. Call again with check_status=true to poll.`),
	mcp.WithString("paper_id", mcp.Required(), mcp.Description("arXiv id, e.g. 1706.03762.")),
	mcp.WithBoolean("check_status",
		mcp.Description("Only report the status of an earlier download.")),
)

var listTool = mcp.NewTool("list_papers",
	mcp.WithDescription("List all papers that have been downloaded and converted."),
)

var readTool = mcp.NewTool("read_paper",
	mcp.WithDescription("Read the markdown of a downloaded paper."),
	mcp.WithString("paper_id", mcp.Required(), mcp.Description("arXiv id, e.g. 1706.03762.")),
)

// newMCPServer registers the tools and the arxiv:// resource template.
func newMCPServer(t *tools, version string) *server.MCPServer {
	s := server.NewMCPServer("arxiv-mcp", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	)
	s.AddTool(searchTool, t.handleSearch)
	s.AddTool(downloadTool, t.handleDownload)
	s.AddTool(listTool, t.handleList)
	s.AddTool(readTool, t.handleRead)
	s.AddResourceTemplate(
		mcp.NewResourceTemplate("arxiv://{paper_id}", "paper",
			mcp.WithTemplateDescription("Markdown of a downloaded arXiv paper"),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		t.handleResource,
	)
	return s
}

// paperJSON is the shape papers take in tool results.
type paperJSON struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	Abstract    string   `json:"abstract,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Published   string   `json:"published,omitempty"`
	URL         string   `json:"url"`
	ResourceURI string   `json:"resource_uri"`
}

func toPaperJSON(p *arxiv.Paper) paperJSON {
	out := paperJSON{
		ID:          p.ID,
		Title:       p.Title,
		Authors:     p.AuthorList(),
		Abstract:    p.Abstract,
		Categories:  p.CategoryList(),
		URL:         p.PDFURL(),
		ResourceURI: p.ResourceURI(),
	}
	if !p.Published.IsZero() {
		out.Published = p.Published.Format(time.RFC3339)
	}
	return out
}

func (t *tools) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := arxiv.SearchQuery{
		Query:      request.GetString("query", ""),
		Categories: request.GetStringSlice("categories", nil),
		DateFrom:   request.GetString("date_from", ""),
		DateTo:     request.GetString("date_to", ""),
		MaxResults: request.GetInt("max_results", arxiv.DefaultMaxResults),
		SortBy:     arxiv.SortBy(request.GetString("sort_by", string(arxiv.SortRelevance))),
	}
	if strings.TrimSpace(q.Query) == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	papers, err := t.search.Search(ctx, q, t.maxResults)
	if err != nil {
		t.log.Warn().Err(err).Str("query", q.Query).Msg("search failed")
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	t.log.Info().Str("query", q.Query).Int("results", len(papers)).Msg("search completed")

	out := struct {
		TotalResults int         `json:"total_results"`
		Papers       []paperJSON `json:"papers"`
	}{Papers: make([]paperJSON, 0, len(papers))}
	for _, p := range papers {
		out.Papers = append(out.Papers, toPaperJSON(p))
	}
	out.TotalResults = len(out.Papers)
	return jsonResult(out)
}

func (t *tools) handleDownload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := arxiv.NormalizeID(request.GetString("paper_id", ""))
	if id == "" {
		return mcp.NewToolResultError("paper_id parameter is required"), nil
	}
	st, err := t.lib.Acquire(ctx, id, request.GetBool("check_status", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := jsonResult(st)
	if err == nil && st.Phase == arxiv.PhaseFailed {
		res.IsError = true
	}
	return res, err
}

func (t *tools) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	papers, err := t.lib.List(ctx, t.lookup)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	out := struct {
		TotalPapers int         `json:"total_papers"`
		Papers      []paperJSON `json:"papers"`
	}{TotalPapers: len(papers), Papers: make([]paperJSON, 0, len(papers))}
	for _, p := range papers {
		out.Papers = append(out.Papers, toPaperJSON(p))
	}
	return jsonResult(out)
}

func (t *tools) handleRead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := arxiv.NormalizeID(request.GetString("paper_id", ""))
	if id == "" {
		return mcp.NewToolResultError("paper_id parameter is required"), nil
	}
	_, content, err := t.lib.Read(id)
	if err != nil {
		if errors.Is(err, arxiv.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("Paper %s not available: %v", id, err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("read failed: %v", err)), nil
	}
	return jsonResult(struct {
		Status  string `json:"status"`
		PaperID string `json:"paper_id"`
		Content string `json:"content"`
	}{"success", id, content})
}

func (t *tools) handleResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id := arxiv.NormalizeID(strings.TrimPrefix(request.Params.URI, "arxiv://"))
	_, content, err := t.lib.Read(id)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "text/markdown",
			Text:     content,
		},
	}, nil
}

// lookup fetches metadata for one stored paper that is missing from the catalog.
func (t *tools) lookup(ctx context.Context, id string) (*arxiv.Paper, error) {
	papers, err := t.search.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(papers) == 0 {
		return nil, arxiv.ErrNotFound
	}
	return papers[0], nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
