package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextRun is one fragment of text shown by a single text-showing operator
type TextRun struct {
	Content      string
	HasLineBreak bool
	X            float64
	Y            float64
}

// Page holds the text runs of one page in content-stream order
type Page struct {
	Index int // 1-based
	Runs  []TextRun
}

// Parser decodes a PDF container into per-page text runs
type Parser interface {
	Parse(data []byte) ([]Page, error)
}

// LineBreakMode selects how the end of a visual line is detected
type LineBreakMode string

const (
	// LineBreaksExplicit takes line ends from line-moving operators in the content stream.
	LineBreaksExplicit LineBreakMode = "explicit"
	// LineBreaksGeometry infers line ends from vertical movement between consecutive runs.
	LineBreaksGeometry LineBreakMode = "geometry"
)

// Options configures a PDFParser
type Options struct {
	LineBreaks        LineBreakMode
	GeometryTolerance float64 // points
	WordGap           float64 // TJ adjustment, thousandths of an em
	RepairXref        bool
	Logger            *slog.Logger
}

// DefaultOptions returns the parser defaults
func DefaultOptions() Options {
	return Options{
		LineBreaks:        LineBreaksExplicit,
		GeometryTolerance: 2,
		WordGap:           250,
		RepairXref:        true,
	}
}

// ParseError reports a PDF that could not be turned into text runs
type ParseError struct {
	Reason string
	Err    error

	repairable bool
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var (
	pdfHeader  = []byte("%PDF-")
	eofMarker  = []byte("%%EOF")
	encryptKey = []byte("/Encrypt")
)

// PDFParser walks page content streams with github.com/ledongthuc/pdf
type PDFParser struct {
	opts     Options
	repairer *Repairer
	logger   *slog.Logger
}

var _ Parser = (*PDFParser)(nil)

// NewPDFParser creates a parser; options are fixed for its lifetime
func NewPDFParser(opts Options) *PDFParser {
	defaults := DefaultOptions()
	if opts.LineBreaks == "" {
		opts.LineBreaks = defaults.LineBreaks
	}
	if opts.GeometryTolerance <= 0 {
		opts.GeometryTolerance = defaults.GeometryTolerance
	}
	if opts.WordGap <= 0 {
		opts.WordGap = defaults.WordGap
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	p := &PDFParser{
		opts:   opts,
		logger: logger,
	}
	if opts.RepairXref {
		p.repairer = NewRepairer()
	}
	return p
}

// Parse decodes data into pages of text runs. A zero-page document yields an empty slice.
func (p *PDFParser) Parse(data []byte) ([]Page, error) {
	pages, err := p.parse(data)
	if err == nil {
		return pages, nil
	}

	if p.repairer == nil || !repairable(data, err) {
		return nil, err
	}

	p.logger.Debug("cross-reference data rejected, attempting repair", "error", err)
	fixed, rerr := p.repairer.Repair(data)
	if rerr != nil {
		return nil, &ParseError{Reason: "document could not be repaired", Err: errors.Join(err, rerr)}
	}

	pages, err = p.parse(fixed)
	if err != nil {
		return nil, &ParseError{Reason: "repaired document still unreadable", Err: err}
	}
	p.logger.Info("parsed document after cross-reference repair", "pages", len(pages))
	return pages, nil
}

func (p *PDFParser) parse(data []byte) (pages []Page, err error) {
	// ledongthuc/pdf reports most structural problems by panicking
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &ParseError{Reason: "malformed PDF content", Err: fmt.Errorf("%v", r), repairable: true}
		}
	}()

	if !bytes.HasPrefix(data, pdfHeader) {
		return nil, &ParseError{Reason: "not a PDF container: missing %PDF- header"}
	}

	// only the empty user password is tried
	r, err := pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), noPassword)
	if err != nil {
		return nil, openError(err)
	}

	pagesRoot, err := pageTreeRoot(r)
	if err != nil {
		return nil, err
	}
	leaves, err := collectPages(pagesRoot)
	if err != nil {
		return nil, err
	}
	count := pagesRoot.Key("Count")
	if count.Kind() != pdf.Integer || count.Int64() != int64(len(leaves)) {
		return nil, &ParseError{
			Reason:     fmt.Sprintf("page tree declares %s pages but holds %d", count, len(leaves)),
			repairable: true,
		}
	}

	// pages with identical dictionaries share one Runs slice
	walked := make(map[string][]TextRun)
	pages = make([]Page, 0, len(leaves))
	for i, leaf := range leaves {
		key := leaf.v.String()
		runs, ok := walked[key]
		if !ok {
			runs = newWalker(leaf, p.opts).walk()
			walked[key] = runs
		}
		pages = append(pages, Page{Index: i + 1, Runs: runs})
	}
	return pages, nil
}

func noPassword() string { return "" }

func openError(err error) *ParseError {
	msg := err.Error()
	switch {
	case errors.Is(err, pdf.ErrInvalidPassword), strings.Contains(msg, "encrypt"):
		return &ParseError{Reason: "encrypted document requires a password", Err: err}
	case strings.Contains(msg, "invalid header"):
		return &ParseError{Reason: "not a PDF container", Err: err}
	case strings.Contains(msg, "%%EOF"):
		return &ParseError{Reason: "truncated PDF container", Err: err}
	default:
		return &ParseError{Reason: "invalid cross-reference data", Err: err, repairable: true}
	}
}

// repairable reports whether a failed parse is worth a pdfcpu rewrite. Truncated and
// encrypted inputs are excluded: a rewrite cannot restore missing bytes or a password.
func repairable(data []byte, err error) bool {
	var pe *ParseError
	if !errors.As(err, &pe) || !pe.repairable {
		return false
	}
	tail := data
	if len(tail) > 1024 {
		tail = tail[len(tail)-1024:]
	}
	return bytes.Contains(tail, eofMarker) && !bytes.Contains(data, encryptKey)
}
