package cardpdf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Align anchors a text run at its x coordinate.
type Align string

const (
	AlignStart Align = "start"
	AlignEnd   Align = "end"
)

// FieldLayout places one text run. X and Y are fractions of the template
// width and height; Y is the text baseline. Size is in template pixels.
type FieldLayout struct {
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Size     float64 `yaml:"size"`
	Tracking float64 `yaml:"tracking"`
	Align    Align   `yaml:"align"`
}

// ValidityLayout places the "VALID FROM" run starting at XLeft and the
// "VALID THRU" run ending at XRight, on one baseline.
type ValidityLayout struct {
	XLeft    float64 `yaml:"x_left"`
	XRight   float64 `yaml:"x_right"`
	Y        float64 `yaml:"y"`
	Size     float64 `yaml:"size"`
	Tracking float64 `yaml:"tracking"`
}

// QRLayout places a square verification code. Size is a fraction of the width.
type QRLayout struct {
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	Size float64 `yaml:"size"`
}

// Layout is the full overlay placement for one card type.
type Layout struct {
	Name     *FieldLayout    `yaml:"name"`
	Number   *FieldLayout    `yaml:"number"`
	Validity *ValidityLayout `yaml:"validity"`
	QR       *QRLayout       `yaml:"qr,omitempty"`
}

// TemplateConfig is the registry file entry for one card type.
type TemplateConfig struct {
	Front  string `yaml:"front"`
	Back   string `yaml:"back"`
	Layout Layout `yaml:"layout"`
}

// FontConfig holds optional TrueType/OpenType font paths. Empty paths select
// the embedded Go fonts.
type FontConfig struct {
	Display string `yaml:"display"`
	Plain   string `yaml:"plain"`
}

// RegistryConfig is the on-disk shape of the template registry.
type RegistryConfig struct {
	AssetDir  string                    `yaml:"asset_dir"`
	Fonts     FontConfig                `yaml:"fonts"`
	Templates map[string]TemplateConfig `yaml:"templates"`
}

// CardTemplate is a resolved registry entry with absolute asset paths.
type CardTemplate struct {
	CardType  string
	FrontPath string
	BackPath  string
	Layout    Layout
}

func defaultLayout(validitySize float64) Layout {
	return Layout{
		Name:     &FieldLayout{X: 0.10, Y: 0.68, Size: 40, Tracking: 1, Align: AlignStart},
		Number:   &FieldLayout{X: 0.10, Y: 0.78, Size: 38, Tracking: 3, Align: AlignStart},
		Validity: &ValidityLayout{XLeft: 0.10, XRight: 0.90, Y: 0.86, Size: validitySize, Tracking: 0.5},
	}
}

// DefaultRegistryConfig returns the built-in edupass, scholarpass and
// infinitepass templates resolved against assetDir.
func DefaultRegistryConfig(assetDir string) RegistryConfig {
	return RegistryConfig{
		AssetDir: assetDir,
		Templates: map[string]TemplateConfig{
			"edupass":      {Front: "edu_front.jpg", Back: "edu_back.jpg", Layout: defaultLayout(24)},
			"scholarpass":  {Front: "scholar_front.jpg", Back: "scholar_back.jpg", Layout: defaultLayout(24)},
			"infinitepass": {Front: "infinite_front.jpg", Back: "infinite_back.jpg", Layout: defaultLayout(30)},
		},
	}
}

// LoadRegistryConfig reads a YAML registry file. A relative asset_dir is
// resolved against the file's directory.
func LoadRegistryConfig(path string) (RegistryConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RegistryConfig{}, fmt.Errorf("read registry file: %w", err)
	}
	var cfg RegistryConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return RegistryConfig{}, fmt.Errorf("parse registry file %s: %w", path, err)
	}
	if len(cfg.Templates) == 0 {
		return RegistryConfig{}, fmt.Errorf("registry file %s defines no templates", path)
	}
	if cfg.AssetDir != "" && !filepath.IsAbs(cfg.AssetDir) {
		cfg.AssetDir = filepath.Join(filepath.Dir(path), cfg.AssetDir)
	}
	return cfg, nil
}

// LoadRegistry builds the registry from file, or from the built-in table
// resolved against templateDir when file is empty.
func LoadRegistry(file, templateDir string) (*Registry, error) {
	cfg := DefaultRegistryConfig(templateDir)
	if file != "" {
		var err error
		if cfg, err = LoadRegistryConfig(file); err != nil {
			return nil, err
		}
	}
	return NewRegistry(cfg)
}

// Registry is the read-only card type → template table. It is built once at
// startup and safe for concurrent use.
type Registry struct {
	templates map[string]CardTemplate
	fonts     FontConfig
}

// NewRegistry copies cfg into an immutable registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if len(cfg.Templates) == 0 {
		return nil, errors.New("registry has no templates")
	}
	r := &Registry{templates: make(map[string]CardTemplate, len(cfg.Templates)), fonts: cfg.Fonts}
	for name, tc := range cfg.Templates {
		key := normalizeType(name)
		if key == "" {
			return nil, errors.New("registry template with empty card type")
		}
		if _, dup := r.templates[key]; dup {
			return nil, fmt.Errorf("duplicate registry template %q", key)
		}
		r.templates[key] = CardTemplate{
			CardType:  key,
			FrontPath: resolveAsset(cfg.AssetDir, tc.Front),
			BackPath:  resolveAsset(cfg.AssetDir, tc.Back),
			Layout:    copyLayout(tc.Layout),
		}
	}
	return r, nil
}

// Fonts returns the configured font paths.
func (r *Registry) Fonts() FontConfig { return r.fonts }

// Lookup resolves cardType and verifies that its layout is complete and both
// image assets exist.
func (r *Registry) Lookup(cardType string) (*CardTemplate, error) {
	tpl, ok := r.templates[normalizeType(cardType)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, cardType)
	}
	if err := tpl.Layout.validate(); err != nil {
		return nil, fmt.Errorf("%w for %q: %v", ErrUnknownLayout, tpl.CardType, err)
	}
	for _, p := range []string{tpl.FrontPath, tpl.BackPath} {
		if err := assetExists(p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMissingTemplateAsset, tpl.CardType, err)
		}
	}
	tpl.Layout = copyLayout(tpl.Layout)
	return &tpl, nil
}

// CardTypes lists the registered card types in sorted order.
func (r *Registry) CardTypes() []string {
	types := make([]string, 0, len(r.templates))
	for k := range r.templates {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

// Check looks up every registered card type and reports all failures.
func (r *Registry) Check() error {
	var errs []error
	for _, t := range r.CardTypes() {
		if _, err := r.Lookup(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l Layout) validate() error {
	if l.Name == nil || l.Number == nil || l.Validity == nil {
		return errors.New("name, number and validity placements are required")
	}
	for field, fl := range map[string]*FieldLayout{"name": l.Name, "number": l.Number} {
		if !inUnit(fl.X) || !inUnit(fl.Y) || fl.Size <= 0 {
			return fmt.Errorf("%s placement out of range", field)
		}
		if fl.Align != "" && fl.Align != AlignStart && fl.Align != AlignEnd {
			return fmt.Errorf("%s alignment %q", field, fl.Align)
		}
	}
	v := l.Validity
	if !inUnit(v.XLeft) || !inUnit(v.XRight) || !inUnit(v.Y) || v.Size <= 0 {
		return errors.New("validity placement out of range")
	}
	if l.QR != nil && (!inUnit(l.QR.X) || !inUnit(l.QR.Y) || l.QR.Size <= 0 || l.QR.Size > 1) {
		return errors.New("qr placement out of range")
	}
	return nil
}

func copyLayout(l Layout) Layout {
	out := Layout{}
	if l.Name != nil {
		n := *l.Name
		out.Name = &n
	}
	if l.Number != nil {
		n := *l.Number
		out.Number = &n
	}
	if l.Validity != nil {
		v := *l.Validity
		out.Validity = &v
	}
	if l.QR != nil {
		q := *l.QR
		out.QR = &q
	}
	return out
}

func assetExists(path string) error {
	if path == "" {
		return errors.New("path is empty")
	}
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func resolveAsset(dir, name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func inUnit(f float64) bool { return f >= 0 && f <= 1 }

func normalizeType(cardType string) string {
	return strings.ToLower(strings.TrimSpace(cardType))
}
