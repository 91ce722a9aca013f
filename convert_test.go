package arxiv

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestMarkdown(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "empty",
			in:   "  \n\f\n ",
			want: "",
		},
		{
			name: "trailing space and crlf",
			in:   "Title   \r\nBody\t\r\n",
			want: "Title\nBody\n",
		},
		{
			name: "blank runs collapse",
			in:   "a\n\n\n\n\nb\n",
			want: "a\n\nb\n",
		},
		{
			name: "hyphenated word joined",
			in:   "atten-\ntion is all\n",
			want: "attention is all\n",
		},
		{
			name: "hyphen before capital kept",
			in:   "Multi-\nHead\n",
			want: "Multi-\nHead\n",
		},
		{
			name: "hyphen join keeps rest of line",
			in:   "trans-\nformer models work\n",
			want: "transformer\nmodels work\n",
		},
		{
			name: "pages",
			in:   "one\fTwo\f\f",
			want: "one\n\n-----\n\nTwo\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Markdown(tt.in); got != tt.want {
				t.Errorf("Markdown(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMarkdownDeterministic(t *testing.T) {
	t.Parallel()
	in := "Abstract\n\nWe pro-\npose a new\fSection 2\n\n\n"
	if a, b := Markdown(in), Markdown(in); a != b {
		t.Errorf("Markdown not deterministic: %q vs %q", a, b)
	}
}

func TestPDFToTextRejectsNonPDF(t *testing.T) {
	t.Parallel()
	_, err := PDFToText{Command: "/nonexistent"}.Convert([]byte("<html>not a pdf</html>"))
	if !errors.Is(err, ErrConversion) {
		t.Fatalf("Convert(html) = %v, want ErrConversion", err)
	}
}

// fakePDFToText writes a shell script standing in for pdftotext.
func fakePDFToText(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script converter")
	}
	path := filepath.Join(t.TempDir(), "pdftotext")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPDFToTextConvert(t *testing.T) {
	t.Parallel()
	cmd := fakePDFToText(t, `printf 'Hello wor-\nld\n\n\n\nBye\f Page two\n'`)
	got, err := PDFToText{Command: cmd}.Convert([]byte("%PDF-1.5 fake"))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := "Hello world\n\nBye\n\n-----\n\nPage two\n"
	if got != want {
		t.Errorf("Convert = %q, want %q", got, want)
	}
}

func TestPDFToTextFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{"command fails", "echo 'Syntax Error: broken xref' >&2; exit 1"},
		{"no text", "printf '\\f\\n  \\n'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := fakePDFToText(t, tt.body)
			_, err := PDFToText{Command: cmd}.Convert([]byte("%PDF-1.5 fake"))
			if !errors.Is(err, ErrConversion) {
				t.Errorf("Convert = %v, want ErrConversion", err)
			}
		})
	}
}
