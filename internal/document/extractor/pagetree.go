package extractor

import (
	"github.com/ledongthuc/pdf"
)

// maxPageTreeDepth bounds how deeply /Pages nodes may nest.
const maxPageTreeDepth = 64

// pageLeaf is a page dictionary together with the resources it inherits
type pageLeaf struct {
	v         pdf.Value
	resources pdf.Value
}

// pageTreeRoot returns the /Pages node of the catalog. A catalog or page tree
// the cross-reference data cannot resolve is reported as repairable, never as
// an empty document.
func pageTreeRoot(r *pdf.Reader) (pdf.Value, error) {
	root := r.Trailer().Key("Root")
	if root.Kind() != pdf.Dict {
		return pdf.Value{}, &ParseError{Reason: "document catalog unreadable", repairable: true}
	}
	pages := root.Key("Pages")
	if pages.Kind() != pdf.Dict || pages.Key("Type").Name() != "Pages" {
		return pdf.Value{}, &ParseError{Reason: "page tree root unreadable", repairable: true}
	}
	return pages, nil
}

// collectPages walks the page tree depth first and returns its leaves in
// document order. Resources are inherited down the walk rather than looked up
// through /Parent.
//
// Resolved values carry no object identity, so /Pages nodes are keyed by their
// serialized dictionary, which includes the /Kids references. A node seen twice
// means a cycle or a shared subtree and fails the parse.
func collectPages(root pdf.Value) ([]pageLeaf, error) {
	var leaves []pageLeaf
	seen := make(map[string]bool)

	var visit func(node, resources pdf.Value, depth int) error
	visit = func(node, resources pdf.Value, depth int) error {
		if node.Kind() != pdf.Dict {
			return &ParseError{Reason: "page tree references a missing object", repairable: true}
		}
		if depth > maxPageTreeDepth {
			return &ParseError{Reason: "page tree nested too deeply"}
		}
		if res := node.Key("Resources"); !res.IsNull() {
			resources = res
		}

		kids := node.Key("Kids")
		if node.Key("Type").Name() != "Pages" && kids.Kind() != pdf.Array {
			leaves = append(leaves, pageLeaf{v: node, resources: resources})
			return nil
		}

		if kids.Len() == 0 {
			return nil
		}
		key := node.String()
		if seen[key] {
			return &ParseError{Reason: "page tree node appears more than once"}
		}
		seen[key] = true

		for i := 0; i < kids.Len(); i++ {
			if err := visit(kids.Index(i), resources, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := visit(root, pdf.Value{}, 0); err != nil {
		return nil, err
	}
	return leaves, nil
}
