package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sanjeevkumarraob/pdf-text-service/internal/document/extractor"
)

// pageSeparator is placed between consecutive pages of a document
const pageSeparator = "\n\n"

// ErrorKind classifies extraction failures
type ErrorKind string

const (
	KindInvalidInput     ErrorKind = "InvalidInput"
	KindExtractionFailed ErrorKind = "ExtractionFailed"
)

// Error is the failure outcome of an extraction
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an extraction Error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// UploadedDocument is the request-scoped input to an extraction
type UploadedDocument struct {
	Data      []byte
	MediaType string
	FileName  string
}

// Size returns the document size in bytes
func (d UploadedDocument) Size() int64 {
	return int64(len(d.Data))
}

// Result is the success outcome of an extraction
type Result struct {
	Text      string
	PageCount int
}

// Processor validates, parses and assembles uploaded PDFs. It keeps no
// per-request state, so one Processor serves concurrent requests.
type Processor struct {
	parser extractor.Parser
	limits Limits
	logger *slog.Logger
}

// NewProcessor creates a new document processor
func NewProcessor(parser extractor.Parser, limits Limits, logger *slog.Logger) *Processor {
	return &Processor{
		parser: parser,
		limits: limits,
		logger: logger,
	}
}

// Limits returns the upload limits the processor validates against
func (p *Processor) Limits() Limits {
	return p.limits
}

// Extract turns an uploaded PDF into document text. Pages are joined by a blank
// line. Any failure is returned as an *Error and no partial text is produced.
func (p *Processor) Extract(ctx context.Context, doc UploadedDocument) (*Result, error) {
	logger := p.logger.With("fileName", doc.FileName, "size", doc.Size())
	start := time.Now()

	if err := Validate(doc.Data, doc.MediaType, doc.FileName, p.limits); err != nil {
		logger.Info("upload rejected", "reason", err)
		return nil, &Error{Kind: KindInvalidInput, Message: err.Error(), Err: err}
	}

	pages, err := p.parser.Parse(doc.Data)
	if err != nil {
		logger.Warn("PDF parsing failed", "error", err)
		return nil, &Error{
			Kind:    KindExtractionFailed,
			Message: fmt.Sprintf("Failed to parse PDF: %v", err),
			Err:     err,
		}
	}

	texts := make([]string, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, &Error{Kind: KindExtractionFailed, Message: "extraction cancelled", Err: err}
		}
		texts = append(texts, Assemble(page.Index, page.Runs).Text)
	}

	result := &Result{
		Text:      strings.Join(texts, pageSeparator),
		PageCount: len(pages),
	}
	logger.Debug("extraction complete",
		"pages", result.PageCount,
		"chars", len(result.Text),
		"elapsed", time.Since(start))
	return result, nil
}
