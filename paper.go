package arxiv

import (
	"strings"
	"time"
)

// Paper represents an arXiv paper's metadata.
type Paper struct {
	// ID is the arXiv identifier (e.g., "2301.00001" or "hep-th/9901001")
	ID string `gorm:"primaryKey" json:"id"`

	// Published is when the first version was submitted
	Published time.Time `gorm:"index" json:"published"`

	// Updated is when the paper was last updated
	Updated time.Time `json:"updated"`

	Title string `json:"title"`

	Abstract string `json:"abstract"`

	// Authors as a single comma separated string
	Authors string `json:"-"`

	// Categories is a space-separated list of arXiv categories
	Categories string `gorm:"index" json:"-"`

	// Comments from the submitter (e.g., "10 pages, 3 figures")
	Comments string `json:"comments,omitempty"`

	// JournalRef is the journal reference if published
	JournalRef string `json:"journal_ref,omitempty"`

	// DOI is the Digital Object Identifier if available
	DOI string `json:"doi,omitempty"`

	// Converted is set once the markdown artifact has been written.
	Converted bool `gorm:"column:converted" json:"-"`

	// ArtifactPath is the local path of the markdown artifact.
	ArtifactPath string `gorm:"column:artifact_path" json:"-"`

	ConvertedAt *time.Time `gorm:"column:converted_at" json:"-"`

	// MetadataUpdated is when this row was last refreshed from upstream.
	MetadataUpdated *time.Time `gorm:"column:metadata_updated" json:"-"`
}

func (Paper) TableName() string {
	return "papers"
}

// PrimaryCategory returns the primary (first) category.
func (p *Paper) PrimaryCategory() string {
	cats := strings.Fields(p.Categories)
	if len(cats) == 0 {
		return ""
	}
	return cats[0]
}

// CategoryList returns all categories as a slice.
func (p *Paper) CategoryList() []string {
	return strings.Fields(p.Categories)
}

// AuthorList splits Authors into individual names.
func (p *Paper) AuthorList() []string {
	var out []string
	for _, a := range strings.Split(p.Authors, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// PDFURL returns the arXiv PDF download URL.
func (p *Paper) PDFURL() string {
	return PDFURL(p.ID)
}

// AbstractURL returns the arXiv abstract page URL.
func (p *Paper) AbstractURL() string {
	return "https://arxiv.org/abs/" + p.ID
}

// ResourceURI returns the arxiv:// URI the tool surface serves the paper under.
func (p *Paper) ResourceURI() string {
	return ResourceURI(p.ID)
}

// PDFURL returns the arXiv PDF download URL for id.
func PDFURL(id string) string {
	return "https://arxiv.org/pdf/" + id
}

// ResourceURI returns the arxiv:// URI for id.
func ResourceURI(id string) string {
	return "arxiv://" + id
}

var idPrefixes = []string{
	"https://arxiv.org/abs/",
	"http://arxiv.org/abs/",
	"https://arxiv.org/pdf/",
	"http://arxiv.org/pdf/",
	"arxiv.org/abs/",
	"arxiv.org/pdf/",
	"arxiv://",
	"arxiv:",
}

// NormalizeID cleans up the common ways people paste an arXiv id
// (URLs, "arXiv:" prefixes, a trailing ".pdf"). Versions are kept:
// 2301.00001v2 and 2301.00001 name different documents.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	lower := strings.ToLower(id)
	for _, p := range idPrefixes {
		if strings.HasPrefix(lower, p) {
			id = id[len(p):]
			break
		}
	}
	id = strings.TrimSuffix(id, ".pdf")
	return strings.Trim(id, "/")
}

// ValidateID reports whether id can be used as a storage key.
func ValidateID(id string) error {
	switch {
	case id == "":
		return newError(ErrInvalidID, id, nil)
	case strings.Contains(id, ".."), strings.ContainsAny(id, "\\\x00_"):
		return errorf(ErrInvalidID, id, "contains a reserved character sequence")
	case strings.HasPrefix(id, "/"):
		return errorf(ErrInvalidID, id, "absolute path")
	}
	return nil
}

// stripVersion strips version suffixes (e.g., "2301.00001v2" -> "2301.00001").
func stripVersion(id string) string {
	idx := strings.LastIndex(id, "v")
	if idx <= 0 {
		return id
	}
	suffix := id[idx+1:]
	if suffix == "" {
		return id
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return id
		}
	}
	return id[:idx]
}
