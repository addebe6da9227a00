package cardpdf

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"
	"net/url"
	"os"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"cardapi/internal/card"
)

const defaultJPEGQuality = 95

// Overlay is the text drawn on a card front.
type Overlay struct {
	Name     string
	Number   string
	Validity card.ValidityWindow
}

// RenderedImage is a card front with its overlay applied. Width and Height
// always equal the template's.
type RenderedImage struct {
	Image  *image.RGBA
	JPEG   []byte
	Width  int
	Height int
}

// Renderer draws overlay text onto template images.
type Renderer struct {
	fonts      *Fonts
	verifyBase string
	quality    int
}

type RendererOption func(*Renderer)

// WithVerifyURL enables the verification QR code for layouts that place one.
// The encoded content is base followed by the escaped card number.
func WithVerifyURL(base string) RendererOption {
	return func(r *Renderer) { r.verifyBase = base }
}

// WithJPEGQuality sets the quality of the encoded front image.
func WithJPEGQuality(q int) RendererOption {
	return func(r *Renderer) {
		if q >= 1 && q <= 100 {
			r.quality = q
		}
	}
}

func NewRenderer(fonts *Fonts, opts ...RendererOption) (*Renderer, error) {
	if fonts == nil || fonts.Display == nil || fonts.Plain == nil {
		return nil, fmt.Errorf("renderer fonts are required")
	}
	r := &Renderer{fonts: fonts, quality: defaultJPEGQuality}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ValidityLine returns the two validity strings printed on the card.
func ValidityLine(w card.ValidityWindow) (from, thru string) {
	return "VALID FROM: " + w.ValidFrom.Display(), "VALID THRU: " + w.ValidThru.Display()
}

// Render draws text onto a copy of front. The template image is not modified.
func (r *Renderer) Render(front image.Image, layout Layout, text Overlay) (*RenderedImage, error) {
	if front == nil {
		return nil, &ValidationError{Field: "front", Reason: "template image is required"}
	}
	if err := layout.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownLayout, err)
	}

	b := front.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), front, b.Min, draw.Src)
	w, h := float64(b.Dx()), float64(b.Dy())

	if err := r.drawText(canvas, r.fonts.Display, *layout.Name, text.Name, w, h); err != nil {
		return nil, err
	}
	if err := r.drawText(canvas, r.fonts.Display, *layout.Number, text.Number, w, h); err != nil {
		return nil, err
	}

	from, thru := ValidityLine(text.Validity)
	v := layout.Validity
	left := FieldLayout{X: v.XLeft, Y: v.Y, Size: v.Size, Tracking: v.Tracking, Align: AlignStart}
	right := FieldLayout{X: v.XRight, Y: v.Y, Size: v.Size, Tracking: v.Tracking, Align: AlignEnd}
	if err := r.drawText(canvas, r.fonts.Plain, left, from, w, h); err != nil {
		return nil, err
	}
	if err := r.drawText(canvas, r.fonts.Plain, right, thru, w, h); err != nil {
		return nil, err
	}

	if layout.QR != nil && r.verifyBase != "" && text.Number != "" {
		if err := r.drawQR(canvas, *layout.QR, text.Number, w, h); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, fmt.Errorf("encode front image: %w", err)
	}
	return &RenderedImage{Image: canvas, JPEG: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

func (r *Renderer) drawText(dst *image.RGBA, f *opentype.Font, fl FieldLayout, s string, w, h float64) error {
	if s == "" {
		return nil
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: fl.Size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	tracking := fixed.Int26_6(math.Round(fl.Tracking * 64))
	x := fixed.Int26_6(math.Round(fl.X*w) * 64)
	if fl.Align == AlignEnd {
		x -= advance(face, s, tracking)
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		Dot:  fixed.Point26_6{X: x, Y: fixed.I(int(math.Round(fl.Y * h)))},
	}
	for _, ch := range s {
		d.DrawString(string(ch))
		d.Dot.X += tracking
	}
	return nil
}

// advance is the drawn width of s including tracking between glyphs.
func advance(face font.Face, s string, tracking fixed.Int26_6) fixed.Int26_6 {
	var total fixed.Int26_6
	n := 0
	for _, ch := range s {
		if a, ok := face.GlyphAdvance(ch); ok {
			total += a
		}
		n++
	}
	if n > 1 {
		total += tracking * fixed.Int26_6(n-1)
	}
	return total
}

func (r *Renderer) drawQR(dst *image.RGBA, q QRLayout, number string, w, h float64) error {
	code, err := qrcode.New(r.verifyBase+url.PathEscape(number), qrcode.Medium)
	if err != nil {
		return fmt.Errorf("encode verification code: %w", err)
	}
	img := code.Image(int(math.Round(q.Size * w)))
	x, y := int(math.Round(q.X*w)), int(math.Round(q.Y*h))
	rect := image.Rect(x, y, x+img.Bounds().Dx(), y+img.Bounds().Dy())
	draw.Draw(dst, rect, img, img.Bounds().Min, draw.Src)
	return nil
}

// LoadImage reads and decodes a JPEG or PNG file.
func LoadImage(path string) (image.Image, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMissingTemplateAsset, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, raw, nil
}
