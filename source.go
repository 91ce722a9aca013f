package arxiv

import (
	"context"
	"errors"
)

// Resource is a downloaded document plus whatever metadata came with it.
type Resource struct {
	PaperID string
	PDF     []byte
	// Paper is nil when the provider has no metadata.
	Paper *Paper
}

// Source fetches the binary document for a paper id.
// Failures wrap ErrNotFound or ErrUnavailable.
type Source interface {
	Fetch(ctx context.Context, id string) (*Resource, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, id string) (*Resource, error)

func (f SourceFunc) Fetch(ctx context.Context, id string) (*Resource, error) { return f(ctx, id) }

// ArxivSource fetches papers from arxiv.org: metadata from the Atom API
// first (so unknown ids fail fast as NotFound), then the PDF.
type ArxivSource struct {
	Client *Client
}

// NewArxivSource returns a Source backed by c.
func NewArxivSource(c *Client) *ArxivSource {
	return &ArxivSource{Client: c}
}

func (s *ArxivSource) Fetch(ctx context.Context, id string) (*Resource, error) {
	papers, err := s.Client.Lookup(ctx, id)
	if err != nil {
		return nil, withPaperID(err, id)
	}
	if len(papers) == 0 {
		return nil, newError(ErrNotFound, id, nil)
	}
	paper := papers[0]
	// The API reports the unversioned id; keep the one that was asked for.
	paper.ID = id

	pdf, err := s.Client.DownloadPDF(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Resource{PaperID: id, PDF: pdf, Paper: paper}, nil
}

func withPaperID(err error, id string) error {
	var e *Error
	if errors.As(err, &e) && e.PaperID == "" {
		return &Error{Kind: e.Kind, PaperID: id, Err: e.Err}
	}
	return err
}
