package cardpdf

import (
	"bytes"
	"fmt"
	"image"

	"github.com/jung-kurt/gofpdf"
)

// PageSize is a page's size in points. Images are placed at one point per
// pixel, so it also equals the source image's pixel dimensions.
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Document is an assembled PDF and its page sizes.
type Document struct {
	PDF   []byte
	Pages []PageSize
}

type pageImage struct {
	data   []byte
	kind   string
	width  int
	height int
}

// Assemble builds a two-page PDF: the front image on page one and the back
// image on page two. Each page takes its image's size and the image covers
// it with no margin. JPEG and PNG bytes are accepted and embedded unchanged.
func Assemble(front, back []byte) (*Document, error) {
	var pages []pageImage
	for i, data := range [][]byte{front, back} {
		p, err := inspectImage(data)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		pages = append(pages, p)
	}

	first := gofpdf.SizeType{Wd: float64(pages[0].width), Ht: float64(pages[0].height)}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           first,
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	doc := &Document{}
	for i, p := range pages {
		w, h := float64(p.width), float64(p.height)
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
		name := fmt.Sprintf("page-%d", i+1)
		opt := gofpdf.ImageOptions{ImageType: p.kind}
		pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(p.data))
		pdf.ImageOptions(name, 0, 0, w, h, false, opt, 0, "")
		doc.Pages = append(doc.Pages, PageSize{Width: w, Height: h})
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	doc.PDF = buf.Bytes()
	return doc, nil
}

func inspectImage(data []byte) (pageImage, error) {
	if len(data) == 0 {
		return pageImage{}, &ValidationError{Field: "image", Reason: "is empty"}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return pageImage{}, fmt.Errorf("read image header: %w", err)
	}
	var kind string
	switch format {
	case "jpeg":
		kind = "JPG"
	case "png":
		kind = "PNG"
	default:
		return pageImage{}, fmt.Errorf("unsupported image format %q", format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return pageImage{}, fmt.Errorf("image has no pixels")
	}
	return pageImage{data: data, kind: kind, width: cfg.Width, height: cfg.Height}, nil
}
