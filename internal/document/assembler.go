package document

import (
	"strings"

	"github.com/sanjeevkumarraob/pdf-text-service/internal/document/extractor"
)

// PageText is the reconstructed text of one page
type PageText struct {
	Index int // 1-based
	Text  string
}

// Assemble joins the runs of one page in the order given. A single space is
// inserted between runs unless the text so far already ends in a space or a
// newline, and a newline follows every run flagged as ending its line.
func Assemble(pageIndex int, runs []extractor.TextRun) PageText {
	var b strings.Builder
	var last byte
	for _, run := range runs {
		if b.Len() > 0 && last != ' ' && last != '\n' {
			b.WriteByte(' ')
			last = ' '
		}
		b.WriteString(run.Content)
		if n := len(run.Content); n > 0 {
			last = run.Content[n-1]
		}
		if run.HasLineBreak {
			b.WriteByte('\n')
			last = '\n'
		}
	}
	return PageText{Index: pageIndex, Text: b.String()}
}
