// Package pdftest builds small, well-formed PDF documents in memory for tests.
package pdftest

import (
	"fmt"
	"strings"
)

// Builder assembles a PDF whose pages use a single Helvetica font named /F1
type Builder struct {
	pages [][]string // content streams per page
}

// New creates an empty builder
func New() *Builder {
	return &Builder{}
}

// AddPage appends a page with one content stream
func (b *Builder) AddPage(content string) *Builder {
	b.pages = append(b.pages, []string{content})
	return b
}

// AddSplitPage appends a page whose /Contents is an array of streams
func (b *Builder) AddSplitPage(contents ...string) *Builder {
	b.pages = append(b.pages, contents)
	return b
}

// Bytes renders the document with a correct xref table
func (b *Builder) Bytes() []byte {
	// 1 catalog, 2 page tree, 3 font, then per page: page object followed by its streams
	var pageObjs []string
	kids := make([]string, 0, len(b.pages))
	next := 4
	for _, streams := range b.pages {
		pageNum := next
		refs := make([]string, 0, len(streams))
		for i := range streams {
			refs = append(refs, fmt.Sprintf("%d 0 R", pageNum+1+i))
		}
		next += 1 + len(streams)

		contents := refs[0]
		if len(refs) != 1 {
			contents = "[" + strings.Join(refs, " ") + "]"
		}
		pageObjs = append(pageObjs, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %s /Resources << /Font << /F1 3 0 R >> >> >>",
			contents))
		for _, s := range streams {
			pageObjs = append(pageObjs, Stream(s))
		}
		kids = append(kids, fmt.Sprintf("%d 0 R", pageNum))
	}

	return Objects(append([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(b.pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}, pageObjs...)...)
}

// Stream returns the body of a stream object holding content
func Stream(content string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
}

// Objects renders bodies as objects 1..n with a correct xref table. Object 1
// is the catalog named by the trailer.
func Objects(bodies ...string) []byte {
	var sb strings.Builder
	sb.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(bodies))
	for i, body := range bodies {
		offsets[i] = sb.Len()
		fmt.Fprintf(&sb, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := sb.Len()
	size := len(bodies) + 1
	fmt.Fprintf(&sb, "xref\n0 %d\n", size)
	sb.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&sb, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&sb, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, xref)
	return []byte(sb.String())
}

// TextLine returns a content stream showing each run with Tj on one baseline,
// separated horizontally with Td and no vertical movement.
func TextLine(runs ...string) string {
	var sb strings.Builder
	sb.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
	for i, run := range runs {
		if i > 0 {
			sb.WriteString("60 0 Td\n")
		}
		fmt.Fprintf(&sb, "(%s) Tj\n", Escape(run))
	}
	sb.WriteString("ET")
	return sb.String()
}

// TextLines returns a content stream showing each line on its own baseline using T*
func TextLines(lines ...string) string {
	var sb strings.Builder
	sb.WriteString("BT\n/F1 12 Tf\n14 TL\n72 720 Td\n")
	for i, line := range lines {
		if i > 0 {
			sb.WriteString("T*\n")
		}
		fmt.Fprintf(&sb, "(%s) Tj\n", Escape(line))
	}
	sb.WriteString("ET")
	return sb.String()
}

// Escape escapes a string for use inside a PDF literal string
func Escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}

// Truncate cuts a document in the middle of its first content stream
func Truncate(doc []byte) []byte {
	i := strings.Index(string(doc), "stream\n")
	if i < 0 {
		return doc[:len(doc)/2]
	}
	return doc[:i+len("stream\n")+4]
}
