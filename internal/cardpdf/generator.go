package cardpdf

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cardapi/internal/card"
)

const (
	stageLookup   = "lookup"
	stageRender   = "render"
	stageAssemble = "assemble"
	stagePublish  = "publish"
)

// RenderRequest carries everything printed on one card.
type RenderRequest struct {
	CardType   string
	HolderName string
	CardNumber string
	Validity   card.ValidityWindow
}

func (r RenderRequest) validate() error {
	if strings.TrimSpace(r.CardType) == "" {
		return &ValidationError{Field: "card_type", Reason: "is required"}
	}
	if strings.TrimSpace(r.CardNumber) == "" {
		return &ValidationError{Field: "card_number", Reason: "is required"}
	}
	return nil
}

// GeneratedDocument is the result of one pipeline run.
type GeneratedDocument struct {
	CardNumber  string
	CardType    string
	Validity    card.ValidityWindow
	StoragePath string
	PublicURL   *string
	Pages       []PageSize
	Size        int
}

// Pipeline is the card document pipeline as seen by callers.
type Pipeline interface {
	// Lookup resolves and verifies the template for cardType.
	Lookup(cardType string) (*CardTemplate, error)
	// Generate renders, assembles and publishes one card document.
	Generate(ctx context.Context, req RenderRequest) (*GeneratedDocument, error)
}

// Generator runs lookup, render, assemble and publish in sequence.
type Generator struct {
	registry  *Registry
	renderer  *Renderer
	publisher *Publisher
	metrics   *Metrics
	log       logrus.FieldLogger
	tracer    trace.Tracer
}

type GeneratorOption func(*Generator)

func WithMetrics(m *Metrics) GeneratorOption {
	return func(g *Generator) { g.metrics = m }
}

func WithLogger(log logrus.FieldLogger) GeneratorOption {
	return func(g *Generator) { g.log = log }
}

// NewGenerator wires a pipeline. publisher may be nil when only Build is used.
func NewGenerator(registry *Registry, renderer *Renderer, publisher *Publisher, opts ...GeneratorOption) *Generator {
	g := &Generator{
		registry:  registry,
		renderer:  renderer,
		publisher: publisher,
		log:       logrus.StandardLogger(),
		tracer:    otel.Tracer("cardapi/cardpdf"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Lookup(cardType string) (*CardTemplate, error) {
	return g.registry.Lookup(cardType)
}

// Build renders and assembles a card document without publishing it.
func (g *Generator) Build(ctx context.Context, req RenderRequest) (*Document, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	template, err := runStage(ctx, g, stageLookup, func(context.Context) (*CardTemplate, error) {
		return g.registry.Lookup(req.CardType)
	})
	if err != nil {
		return nil, err
	}

	rendered, err := runStage(ctx, g, stageRender, func(context.Context) (*RenderedImage, error) {
		front, _, err := LoadImage(template.FrontPath)
		if err != nil {
			return nil, err
		}
		return g.renderer.Render(front, template.Layout, Overlay{
			Name:     req.HolderName,
			Number:   req.CardNumber,
			Validity: req.Validity,
		})
	})
	if err != nil {
		return nil, err
	}

	return runStage(ctx, g, stageAssemble, func(context.Context) (*Document, error) {
		back, err := os.ReadFile(template.BackPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingTemplateAsset, err)
		}
		return Assemble(rendered.JPEG, back)
	})
}

// Generate builds the card document and publishes it under the card number.
// Re-running for the same number replaces the stored document.
func (g *Generator) Generate(ctx context.Context, req RenderRequest) (*GeneratedDocument, error) {
	if g.publisher == nil {
		return nil, fmt.Errorf("generator has no publisher")
	}
	ctx, span := g.tracer.Start(ctx, "cardpdf.Generate", trace.WithAttributes(
		attribute.String("card.type", req.CardType),
		attribute.String("card.number", req.CardNumber),
	))
	defer span.End()

	label := g.metricLabel(req.CardType)
	doc, err := g.Build(ctx, req)
	if err != nil {
		g.metrics.result(label, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	published, err := runStage(ctx, g, stagePublish, func(ctx context.Context) (*Published, error) {
		return g.publisher.Publish(ctx, doc.PDF, req.CardNumber)
	})
	if err != nil {
		g.metrics.result(label, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	g.metrics.result(label, "success")
	g.log.WithFields(logrus.Fields{
		"card_number":  req.CardNumber,
		"card_type":    label,
		"storage_path": published.StoragePath,
	}).Debug("card document published")

	return &GeneratedDocument{
		CardNumber:  req.CardNumber,
		CardType:    label,
		Validity:    req.Validity,
		StoragePath: published.StoragePath,
		PublicURL:   published.PublicURL,
		Pages:       doc.Pages,
		Size:        len(doc.PDF),
	}, nil
}

func runStage[T any](ctx context.Context, g *Generator, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := g.tracer.Start(ctx, "cardpdf."+name)
	defer span.End()
	start := time.Now()
	out, err := fn(ctx)
	g.metrics.observe(name, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

// metricLabel keeps label cardinality bounded to registered card types.
func (g *Generator) metricLabel(cardType string) string {
	t := normalizeType(cardType)
	if _, ok := g.registry.templates[t]; ok {
		return t
	}
	return "unknown"
}
