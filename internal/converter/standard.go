package converter

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// Standard performs format-specific structural extraction without any
// external calls. Deterministic and offline.
type Standard struct {
	logger *slog.Logger
}

// NewStandard creates a standard converter. A nil logger falls back to
// slog.Default.
func NewStandard(logger *slog.Logger) *Standard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Standard{logger: logger}
}

// Name identifies the standard variant.
func (*Standard) Name() string { return "standard" }

// Convert extracts plain text from content according to the filename's
// extension. Unknown extensions return ErrUnsupportedFormat; malformed
// content returns ErrConversionFailed wrapping the underlying cause.
func (s *Standard) Convert(ctx context.Context, content []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !supportedExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	var (
		text string
		err  error
	)
	switch ext {
	case ".txt", ".md", ".json":
		text = string(content)
	case ".html":
		text, err = extractHTML(content)
	case ".xml":
		text, err = extractXML(content)
	case ".csv":
		text, err = extractCSV(content)
	case ".pdf":
		text, err = extractPDF(content)
	case ".docx":
		text, err = extractOOXML(content, isWordPart)
	case ".pptx":
		text, err = extractOOXML(content, isSlidePart)
	case ".xlsx":
		text, err = extractOOXML(content, isSharedStringsPart)
	}
	if err != nil {
		s.logger.Warn("document conversion failed", "filename", filename, "error", err)
		return "", fmt.Errorf("%w: %s: %w", ErrConversionFailed, filename, err)
	}

	return text, nil
}

// extractHTML strips markup and returns the visible text of the document.
func extractHTML(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	doc.Find("body").Each(func(_ int, sel *goquery.Selection) {
		b.WriteString(sel.Text())
	})
	text := b.String()
	if text == "" {
		// Fragment without a body element.
		text = doc.Text()
	}
	return normalizeWhitespace(text), nil
}

// extractXML concatenates character data, one line per text node.
func extractXML(content []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if cd, ok := tok.(xml.CharData); ok {
			if t := strings.TrimSpace(string(cd)); t != "" {
				b.WriteString(t)
				b.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// extractCSV renders each record as a comma-separated line.
func extractCSV(content []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1 // tolerate ragged rows

	var b strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		b.WriteString(strings.Join(record, ", "))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}

// extractPDF extracts plain text from a PDF document.
func extractPDF(content []byte) (string, error) {
	if len(content) == 0 {
		return "", nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// partFilter selects the OOXML archive members that carry document text.
type partFilter func(name string) bool

func isWordPart(name string) bool          { return name == "word/document.xml" }
func isSharedStringsPart(name string) bool { return name == "xl/sharedStrings.xml" }

func isSlidePart(name string) bool {
	return strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml")
}

// extractOOXML pulls the character data out of the text-bearing XML parts
// of an Office Open XML archive (.docx, .pptx, .xlsx). The packages are
// plain zip files; text runs live in character data of the selected parts.
func extractOOXML(content []byte, keep partFilter) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	found := false
	for _, f := range zr.File {
		if !keep(f.Name) {
			continue
		}
		found = true
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		part, err := io.ReadAll(rc)
		closeErr := rc.Close()
		if err != nil {
			return "", err
		}
		if closeErr != nil {
			return "", closeErr
		}
		text, err := extractXML(part)
		if err != nil {
			return "", err
		}
		if text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
	}
	if !found {
		return "", fmt.Errorf("no text-bearing parts in archive")
	}
	return strings.TrimSpace(b.String()), nil
}

// normalizeWhitespace collapses runs of blank lines and trims each line,
// keeping paragraph structure usable for the chunker.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
