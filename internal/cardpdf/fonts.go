package cardpdf

import (
	"fmt"
	"os"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/opentype"
)

// Fonts holds the parsed faces used by the renderer: a display face for the
// holder name and card number, and a plain face for the validity line.
type Fonts struct {
	Display *opentype.Font
	Plain   *opentype.Font
}

// LoadFonts parses the configured font files, falling back to Go Bold and
// Go Medium for empty paths.
func LoadFonts(cfg FontConfig) (*Fonts, error) {
	display, err := parseFont(cfg.Display, gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("display font: %w", err)
	}
	plain, err := parseFont(cfg.Plain, gomedium.TTF)
	if err != nil {
		return nil, fmt.Errorf("plain font: %w", err)
	}
	return &Fonts{Display: display, Plain: plain}, nil
}

func parseFont(path string, fallback []byte) (*opentype.Font, error) {
	data := fallback
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", path, err)
	}
	return f, nil
}
