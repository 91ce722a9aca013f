package arxiv

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Converter turns a downloaded PDF into normalized markdown text.
// Implementations must not touch shared state; they run on pool workers.
type Converter interface {
	Convert(pdf []byte) (string, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(pdf []byte) (string, error)

func (f ConverterFunc) Convert(pdf []byte) (string, error) { return f(pdf) }

// PDFToText converts PDFs with poppler's pdftotext.
type PDFToText struct {
	// Command is the pdftotext binary (default "pdftotext").
	Command string
}

var pdfMagic = []byte("%PDF-")

// Convert extracts the text of pdf and normalizes it with Markdown.
func (c PDFToText) Convert(pdf []byte) (string, error) {
	if !bytes.HasPrefix(pdf, pdfMagic) {
		return "", newError(ErrConversion, "", fmt.Errorf("input is not a PDF"))
	}

	tmp, err := os.CreateTemp("", "arxiv-pdf-*.pdf")
	if err != nil {
		return "", newError(ErrConversion, "", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, err = tmp.Write(pdf)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", newError(ErrConversion, "", err)
	}

	raw, err := ExtractPDFText(c.command(), tmpPath)
	if err != nil {
		return "", newError(ErrConversion, "", err)
	}
	text := Markdown(raw)
	if text == "" {
		return "", newError(ErrConversion, "", fmt.Errorf("no extractable text"))
	}
	return text, nil
}

func (c PDFToText) command() string {
	if c.Command == "" {
		return "pdftotext"
	}
	return c.Command
}

// ExtractPDFText runs pdftotext on the file at pdfPath and returns its output.
func ExtractPDFText(command, pdfPath string) (string, error) {
	cmd := exec.Command(command, "-enc", "UTF-8", pdfPath, "-")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out.String(), nil
}

const pageRule = "-----"

// Markdown normalizes raw extracted text:
// form feeds become page rules, trailing whitespace is dropped, words
// hyphenated across a line break are joined, and blank-line runs collapse
// to a single blank line. Output is deterministic for a given input.
func Markdown(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "�")
	}

	var pages []string
	for _, page := range strings.Split(raw, "\f") {
		if p := normalizePage(page); p != "" {
			pages = append(pages, p)
		}
	}
	if len(pages) == 0 {
		return ""
	}
	return strings.Join(pages, "\n\n"+pageRule+"\n\n") + "\n"
}

func normalizePage(page string) string {
	lines := strings.Split(page, "\n")
	for i := range lines {
		lines[i] = strings.TrimRightFunc(lines[i], unicode.IsSpace)
	}

	var b strings.Builder
	blank := 0
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			blank++
			continue
		}
		if b.Len() > 0 {
			if blank > 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		blank = 0

		// Join "exam-\nple" into "example" when the next line continues the word.
		for strings.HasSuffix(line, "-") && i+1 < len(lines) && startsLower(lines[i+1]) {
			next := strings.TrimLeftFunc(lines[i+1], unicode.IsSpace)
			word, rest, _ := strings.Cut(next, " ")
			line = strings.TrimSuffix(line, "-") + word
			lines[i+1] = rest
			if rest != "" {
				break
			}
			i++
		}
		b.WriteString(line)
	}
	return strings.TrimSpace(b.String())
}

func startsLower(s string) bool {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsLower(r)
}
