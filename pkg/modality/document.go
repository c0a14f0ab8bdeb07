package modality

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/soundprediction/medinsight/pkg/utils"
)

// DefaultMaxDocumentChars bounds extracted document text.
const DefaultMaxDocumentChars = 10000

var pdfMagic = []byte("%PDF-")

// DocumentAnalyzer extracts text from PDF and plain-text documents.
type DocumentAnalyzer struct {
	fetcher  *Fetcher
	maxChars int
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDocumentAnalyzer creates a DocumentAnalyzer. A non-positive maxChars
// uses DefaultMaxDocumentChars.
func NewDocumentAnalyzer(fetcher *Fetcher, maxChars int, timeout time.Duration, logger *slog.Logger) *DocumentAnalyzer {
	if maxChars <= 0 {
		maxChars = DefaultMaxDocumentChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentAnalyzer{fetcher: fetcher, maxChars: maxChars, timeout: timeout, logger: logger}
}

// Analyze fetches the document at ref and returns its text, truncated to
// the configured character budget.
func (a *DocumentAnalyzer) Analyze(ctx context.Context, ref string) (res Result) {
	defer utils.RecoverWithCallback(func(err error) { res = Degrade(DocumentFailed, err.Error()) })

	if strings.TrimSpace(ref) == "" {
		return Degrade(NoDocument, "no document reference")
	}

	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	payload, err := a.fetcher.Fetch(ctx, ref)
	if err != nil {
		a.logger.Warn("Document fetch failed", "ref", ref, "error", err)
		return Degrade(DocumentFailed, err.Error())
	}

	text, err := ExtractText(payload)
	if err != nil {
		a.logger.Error("Document extraction failed", "ref", ref, "error", err)
		return Degrade(DocumentFailed, err.Error())
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Degrade(DocumentFailed, "document has no text")
	}
	return OK(utils.Truncate(text, a.maxChars))
}

// ExtractText returns the text content of a PDF or text payload.
func ExtractText(p *Payload) (string, error) {
	switch {
	case p.ContentType == "application/pdf" || bytes.HasPrefix(p.Data, pdfMagic):
		return extractPDF(p.Data)
	case strings.HasPrefix(p.ContentType, "text/"):
		return string(p.Data), nil
	case p.ContentType == "" && utf8.Valid(p.Data):
		return string(p.Data), nil
	default:
		return "", fmt.Errorf("unsupported document type %q", p.ContentType)
	}
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	return string(text), nil
}
