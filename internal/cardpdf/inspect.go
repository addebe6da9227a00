package cardpdf

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// InspectPages parses a PDF and returns each page's MediaBox size in points.
// A page without its own MediaBox inherits its parent's.
func InspectPages(data []byte) ([]PageSize, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	pages := make([]PageSize, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		box := p.V.Key("MediaBox")
		if box.IsNull() {
			box = p.V.Key("Parent").Key("MediaBox")
		}
		if box.Len() != 4 {
			return nil, fmt.Errorf("page %d: no media box", i)
		}
		pages = append(pages, PageSize{
			Width:  box.Index(2).Float64() - box.Index(0).Float64(),
			Height: box.Index(3).Float64() - box.Index(1).Float64(),
		})
	}
	return pages, nil
}
