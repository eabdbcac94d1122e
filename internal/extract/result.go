package extract

import (
	"errors"
	"fmt"

	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/document"
)

// Merge folds the documents of successful results into one, in result order.
// Struct names are derived from offsets and only unique within one file, so
// with more than one document every struct name gets the prefix
// "f<index>." where index is the position of the input in results. Type
// layout conflicts are returned.
func Merge(results []Result) (*document.Document, []string) {
	var ok []int
	for i, r := range results {
		if r.Err == nil && r.Document != nil {
			ok = append(ok, i)
		}
	}

	doc := document.New()
	var conflicts []string
	for _, i := range ok {
		d := results[i].Document
		if len(ok) > 1 {
			d = d.Namespaced(InputPrefix(i))
		}
		conflicts = append(conflicts, doc.Merge(d)...)
	}
	return doc, conflicts
}

// InputPrefix is the struct name prefix Merge gives the input at index.
func InputPrefix(index int) string {
	return fmt.Sprintf("f%d.", index)
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Err joins the errors of all failed results.
func Err(results []Result) error {
	var errs []error
	for _, r := range Failed(results) {
		errs = append(errs, r.Err)
	}
	return errors.Join(errs...)
}
