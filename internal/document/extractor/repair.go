package extractor

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Repairer rewrites PDFs with damaged cross-reference data using pdfcpu,
// which rebuilds the xref table by scanning object headers.
type Repairer struct{}

// NewRepairer creates a new repairer
func NewRepairer() *Repairer {
	return &Repairer{}
}

// Repair returns a rewritten copy of data with a freshly generated xref table
func (r *Repairer) Repair(data []byte) ([]byte, error) {
	// pdfcpu mutates its configuration while processing, so each call gets its own
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("pdfcpu write: %w", err)
	}
	return buf.Bytes(), nil
}
