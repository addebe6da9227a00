package cardpdf

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardapi/internal/card"
)

func testGenerator(t *testing.T, store *memoryStore) (*Generator, *Metrics) {
	t.Helper()
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	g := NewGenerator(testRegistry(t), testRenderer(t), NewPublisher(store, "cards/", nil), WithMetrics(m))
	return g, m
}

func janeDoe(t *testing.T) RenderRequest {
	return RenderRequest{
		CardType:   "edupass",
		HolderName: "Jane Doe",
		CardNumber: "ISMLE1234A",
		Validity: card.ValidityWindow{
			ValidFrom: mustDate(t, "2024-01-01"),
			ValidThru: mustDate(t, "2025-01-01"),
		},
	}
}

func TestGenerator_Generate(t *testing.T) {
	store := newMemoryStore()
	g, m := testGenerator(t, store)

	out, err := g.Generate(context.Background(), janeDoe(t))
	require.NoError(t, err)

	assert.Equal(t, "ISMLE1234A", out.CardNumber)
	assert.Equal(t, "edupass", out.CardType)
	assert.Equal(t, "cards/ISMLE1234A.pdf", out.StoragePath)
	require.NotNil(t, out.PublicURL)
	assert.Equal(t, "https://cdn.example.com/elite-cards/cards/ISMLE1234A.pdf", *out.PublicURL)

	stored := store.objects["cards/ISMLE1234A.pdf"]
	require.NotEmpty(t, stored)
	assert.Equal(t, len(stored), out.Size)

	pages := pdfPages(t, stored)
	assert.Equal(t, []PageSize{{Width: 600, Height: 380}, {Width: 640, Height: 400}}, pages)
	assert.Equal(t, pages, out.Pages)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("edupass", "success")))
	assert.Equal(t, 4, testutil.CollectAndCount(m.duration))
}

func TestGenerator_RegenerateOverwrites(t *testing.T) {
	store := newMemoryStore()
	g, _ := testGenerator(t, store)
	req := janeDoe(t)

	_, err := g.Generate(context.Background(), req)
	require.NoError(t, err)
	req.HolderName = "Jane Q. Doe"
	_, err = g.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, store.objects, 1)
	assert.Equal(t, 2, store.puts)
}

func TestGenerator_UnknownTypePublishesNothing(t *testing.T) {
	store := newMemoryStore()
	g, m := testGenerator(t, store)
	req := janeDoe(t)
	req.CardType = "goldpass"

	out, err := g.Generate(context.Background(), req)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
	assert.Zero(t, store.puts)
	assert.Empty(t, store.objects)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("unknown", "error")))
}

func TestGenerator_Validation(t *testing.T) {
	store := newMemoryStore()
	g, _ := testGenerator(t, store)

	tests := []struct {
		name  string
		edit  func(*RenderRequest)
		field string
	}{
		{name: "missing card type", edit: func(r *RenderRequest) { r.CardType = " " }, field: "card_type"},
		{name: "missing card number", edit: func(r *RenderRequest) { r.CardNumber = "" }, field: "card_number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := janeDoe(t)
			tt.edit(&req)
			_, err := g.Generate(context.Background(), req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Zero(t, store.puts)
}

func TestGenerator_EmptyHolderName(t *testing.T) {
	store := newMemoryStore()
	g, _ := testGenerator(t, store)
	req := janeDoe(t)
	req.HolderName = ""

	_, err := g.Generate(context.Background(), req)
	assert.NoError(t, err)
}

func TestGenerator_StorageFailure(t *testing.T) {
	store := newMemoryStore()
	store.putErr = errors.New("quota exceeded")
	g, m := testGenerator(t, store)

	_, err := g.Generate(context.Background(), janeDoe(t))
	var se *StorageError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("edupass", "error")))
}

func TestGenerator_Build(t *testing.T) {
	g := NewGenerator(testRegistry(t), testRenderer(t), nil)

	doc, err := g.Build(context.Background(), janeDoe(t))
	require.NoError(t, err)
	assert.Len(t, doc.Pages, 2)

	_, err = g.Generate(context.Background(), janeDoe(t))
	assert.Error(t, err)
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)

	var m *Metrics
	assert.NotPanics(t, func() { m.result("edupass", "success") })
}
