package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"cardapi/internal/card"
	"cardapi/internal/cardpdf"
	pipeMocks "cardapi/internal/cardpdf/mocks"
	"cardapi/internal/events"
	eventMocks "cardapi/internal/events/mocks"
	"cardapi/internal/model"
	"cardapi/internal/repository"
	repoMocks "cardapi/internal/repository/mocks"
	"cardapi/internal/storage"
	storeMocks "cardapi/internal/storage/mocks"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type allocatorFunc func(ctx context.Context, cardType string) (string, error)

func (f allocatorFunc) Allocate(ctx context.Context, cardType string) (string, error) {
	return f(ctx, cardType)
}

type fixture struct {
	cards    *repoMocks.MockCardRepository
	sources  *repoMocks.MockSourceRepository
	numbers  *repoMocks.MockNumberRegistry
	pipeline *pipeMocks.MockPipeline
	store    *storeMocks.MockStorage
	events   *eventMocks.MockPublisher
	hook     *test.Hook
	svc      CardService
	// allocated records every card type passed to the allocator.
	allocated []string
}

var issueDay = time.Date(2024, 1, 1, 15, 4, 5, 0, time.UTC)

func newFixture(t *testing.T, policy card.Policy, number string, allocErr error) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	f := &fixture{
		cards:    new(repoMocks.MockCardRepository),
		sources:  new(repoMocks.MockSourceRepository),
		numbers:  new(repoMocks.MockNumberRegistry),
		pipeline: new(pipeMocks.MockPipeline),
		store:    new(storeMocks.MockStorage),
		events:   new(eventMocks.MockPublisher),
		hook:     hook,
	}
	f.svc = NewCardService(CardDeps{
		Cards:   f.cards,
		Sources: f.sources,
		Numbers: f.numbers,
		Allocator: allocatorFunc(func(_ context.Context, cardType string) (string, error) {
			f.allocated = append(f.allocated, cardType)
			return number, allocErr
		}),
		Tiers:      card.DefaultTiers(policy),
		Pipeline:   f.pipeline,
		Store:      f.store,
		Events:     f.events,
		PathPrefix: "cards/",
		Log:        logger,
		Now:        func() time.Time { return issueDay },
	})
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.cards.AssertExpectations(t)
	f.sources.AssertExpectations(t)
	f.numbers.AssertExpectations(t)
	f.pipeline.AssertExpectations(t)
	f.store.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func strPtr(s string) *string { return &s }

func approvedPayment(cardType string) *model.SourceRecord {
	return &model.SourceRecord{
		ID:             "17",
		Kind:           model.SourcePayment,
		CardType:       cardType,
		HolderName:     "Jane Doe",
		ContactEmail:   "jane@example.com",
		ApprovalStatus: "Approved",
	}
}

func publishedDoc(number string) *cardpdf.GeneratedDocument {
	return &cardpdf.GeneratedDocument{
		CardNumber:  number,
		StoragePath: "cards/" + number + ".pdf",
		PublicURL:   strPtr("https://cdn.example.com/elite-cards/cards/" + number + ".pdf"),
	}
}

func TestCardService_GenerateFromPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, card.PolicyFallback, "ISMLS1234A", nil)

	f.sources.On("FindPayment", ctx, "pay_1").Return(approvedPayment("scholarpass"), nil)
	f.pipeline.On("Lookup", "scholarpass").Return(&cardpdf.CardTemplate{CardType: "scholarpass"}, nil)
	f.pipeline.On("Generate", ctx, mock.MatchedBy(func(r cardpdf.RenderRequest) bool {
		return r.CardNumber == "ISMLS1234A" &&
			r.HolderName == "Jane Doe" &&
			r.Validity.ValidFrom.String() == "2024-01-01" &&
			r.Validity.ValidThru.String() == "2026-01-01"
	})).Return(publishedDoc("ISMLS1234A"), nil)
	f.cards.On("Create", ctx, mock.MatchedBy(func(c *model.GeneratedCard) bool {
		return c.CardNumber == "ISMLS1234A" &&
			c.Status == model.CardStatusGenerated &&
			c.PaymentID != nil && *c.PaymentID == "17" &&
			c.GiveawayID == nil &&
			c.StoragePath == "cards/ISMLS1234A.pdf" &&
			c.CreatedAt.Equal(issueDay) &&
			c.ID != ""
	})).Return(func(_ context.Context, c *model.GeneratedCard) *model.GeneratedCard { return c }, nil)
	f.events.On("PublishCardGenerated", ctx, mock.MatchedBy(func(e events.CardGenerated) bool {
		return e.CardNumber == "ISMLS1234A" && e.SourceKind == "payment" && e.SourceID == "17" && !e.Regenerated
	})).Return(nil)

	got, err := f.svc.GenerateFromPayment(ctx, " pay_1 ")

	require.NoError(t, err)
	assert.Equal(t, "ISMLS1234A", got.CardNumber)
	assert.Equal(t, "2026-01-01", got.ValidThru.String())
	require.NotNil(t, got.PDFURL)
	assert.Equal(t, []string{"scholarpass"}, f.allocated)
	f.assertExpectations(t)
}

func TestCardService_GenerateFromGiveaway(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, card.PolicyFallback, "ISMLI0001Z", nil)

	src := approvedPayment("infinitepass")
	src.Kind = model.SourceGiveaway
	src.ID = "5"
	f.sources.On("FindGiveaway", ctx, "5").Return(src, nil)
	f.pipeline.On("Lookup", "infinitepass").Return(&cardpdf.CardTemplate{}, nil)
	f.pipeline.On("Generate", ctx, mock.Anything).Return(publishedDoc("ISMLI0001Z"), nil)
	f.cards.On("Create", ctx, mock.MatchedBy(func(c *model.GeneratedCard) bool {
		return c.GiveawayID != nil && *c.GiveawayID == "5" && c.PaymentID == nil &&
			c.ValidThru.String() == "2027-01-01"
	})).Return(func(_ context.Context, c *model.GeneratedCard) *model.GeneratedCard { return c }, nil)
	f.events.On("PublishCardGenerated", ctx, mock.Anything).Return(errors.New("broker down"))

	got, err := f.svc.GenerateFromGiveaway(ctx, "5")

	require.NoError(t, err, "event failures do not fail generation")
	assert.Equal(t, "ISMLI0001Z", got.CardNumber)
	assert.Equal(t, "publish card event failed", f.hook.LastEntry().Message)
	f.assertExpectations(t)
}

func TestCardService_GenerateErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		policy    card.Policy
		allocErr  error
		setup     func(f *fixture)
		call      func(svc CardService) (*model.GeneratedCard, error)
		wantErr   error
		wantMsg   string
		allocates bool
	}{
		{
			name:    "missing payment id",
			call:    func(svc CardService) (*model.GeneratedCard, error) { return svc.GenerateFromPayment(ctx, " ") },
			wantErr: ErrIDRequired,
		},
		{
			name:    "missing giveaway id",
			call:    func(svc CardService) (*model.GeneratedCard, error) { return svc.GenerateFromGiveaway(ctx, "") },
			wantErr: ErrIDRequired,
		},
		{
			name: "payment not found",
			setup: func(f *fixture) {
				f.sources.On("FindPayment", ctx, "nope").Return(nil, repository.ErrNotFound)
			},
			call:    func(svc CardService) (*model.GeneratedCard, error) { return svc.GenerateFromPayment(ctx, "nope") },
			wantErr: ErrNotFound,
		},
		{
			name: "source lookup failure",
			setup: func(f *fixture) {
				f.sources.On("FindGiveaway", ctx, "9").Return(nil, errors.New("conn reset"))
			},
			call:    func(svc CardService) (*model.GeneratedCard, error) { return svc.GenerateFromGiveaway(ctx, "9") },
			wantMsg: "load giveaway: conn reset",
		},
		{
			name: "payment not approved",
			setup: func(f *fixture) {
				src := approvedPayment("edupass")
				src.ApprovalStatus = "success"
				f.sources.On("FindPayment", ctx, "pay_2").Return(src, nil)
			},
			call:    func(svc CardService) (*model.GeneratedCard, error) { return svc.GenerateFromPayment(ctx, "pay_2") },
			wantErr: ErrNotApproved,
		},
		{
			name:   "strict policy rejects unknown tier",
			policy: card.PolicyStrict,
			setup: func(f *fixture) {
				f.sources.On("FindPayment", ctx, "pay_3").Return(approvedPayment("goldpass"), nil)
			},
			call:    func(svc CardService) (*model.GeneratedCard, error) { return svc.GenerateFromPayment(ctx, "pay_3") },
			wantErr: card.ErrUnknownTier,
		},
		{
			name: "unknown template fails before allocation",
			setup: func(f *fixture) {
				f.sources.On("FindPayment", ctx, "pay_4").Return(approvedPayment("goldpass"), nil)
				f.pipeline.On("Lookup", "goldpass").Return(nil, cardpdf.ErrUnknownTemplate)
			},
			call:    func(svc CardService) (*model.GeneratedCard, error) { return svc.GenerateFromPayment(ctx, "pay_4") },
			wantErr: cardpdf.ErrUnknownTemplate,
		},
		{
			name:     "allocation exhausted",
			allocErr: card.ErrAllocationExhausted,
			setup: func(f *fixture) {
				f.sources.On("FindPayment", ctx, "pay_5").Return(approvedPayment("edupass"), nil)
				f.pipeline.On("Lookup", "edupass").Return(&cardpdf.CardTemplate{}, nil)
			},
			call:      func(svc CardService) (*model.GeneratedCard, error) { return svc.GenerateFromPayment(ctx, "pay_5") },
			wantErr:   card.ErrAllocationExhausted,
			allocates: true,
		},
		{
			name: "pipeline failure releases number",
			setup: func(f *fixture) {
				f.sources.On("FindPayment", ctx, "pay_6").Return(approvedPayment("edupass"), nil)
				f.pipeline.On("Lookup", "edupass").Return(&cardpdf.CardTemplate{}, nil)
				f.pipeline.On("Generate", ctx, mock.Anything).
					Return(nil, &cardpdf.StorageError{Op: "put", Key: "cards/ISMLE0000A.pdf", Err: errors.New("offline")})
				f.numbers.On("Release", ctx, "ISMLE0000A").Return(nil)
			},
			call:      func(svc CardService) (*model.GeneratedCard, error) { return svc.GenerateFromPayment(ctx, "pay_6") },
			wantMsg:   "generate card document: storage put",
			allocates: true,
		},
		{
			name: "db failure deletes document and releases number",
			setup: func(f *fixture) {
				f.sources.On("FindPayment", ctx, "pay_7").Return(approvedPayment("edupass"), nil)
				f.pipeline.On("Lookup", "edupass").Return(&cardpdf.CardTemplate{}, nil)
				f.pipeline.On("Generate", ctx, mock.Anything).Return(publishedDoc("ISMLE0000A"), nil)
				f.cards.On("Create", ctx, mock.Anything).Return(nil, errors.New("unique violation"))
				f.store.On("Delete", ctx, "cards/ISMLE0000A.pdf").Return(nil)
				f.numbers.On("Release", ctx, "ISMLE0000A").Return(nil)
			},
			call:      func(svc CardService) (*model.GeneratedCard, error) { return svc.GenerateFromPayment(ctx, "pay_7") },
			wantMsg:   "db save failed: unique violation",
			allocates: true,
		},
		{
			name: "db failure with rollback delete failure",
			setup: func(f *fixture) {
				f.sources.On("FindPayment", ctx, "pay_8").Return(approvedPayment("edupass"), nil)
				f.pipeline.On("Lookup", "edupass").Return(&cardpdf.CardTemplate{}, nil)
				f.pipeline.On("Generate", ctx, mock.Anything).Return(publishedDoc("ISMLE0000A"), nil)
				f.cards.On("Create", ctx, mock.Anything).Return(nil, errors.New("db down"))
				f.store.On("Delete", ctx, "cards/ISMLE0000A.pdf").Return(errors.New("storage down"))
				f.numbers.On("Release", ctx, "ISMLE0000A").Return(errors.New("db down"))
			},
			call:      func(svc CardService) (*model.GeneratedCard, error) { return svc.GenerateFromPayment(ctx, "pay_8") },
			wantMsg:   "db save failed: db down; rollback delete failed: storage down",
			allocates: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := tt.policy
			if policy == "" {
				policy = card.PolicyFallback
			}
			f := newFixture(t, policy, "ISMLE0000A", tt.allocErr)
			if tt.setup != nil {
				tt.setup(f)
			}

			got, err := tt.call(f.svc)

			assert.Nil(t, got)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
			if tt.allocates {
				assert.Len(t, f.allocated, 1)
			} else {
				assert.Empty(t, f.allocated)
			}
			f.events.AssertNotCalled(t, "PublishCardGenerated", mock.Anything, mock.Anything)
			f.assertExpectations(t)
		})
	}
}

func TestCardService_Regenerate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, card.PolicyFallback, "", nil)

	from, err := card.ParseDate("2023-05-01")
	require.NoError(t, err)
	existing := &model.GeneratedCard{
		CardName:      "edupass",
		NameOnThePass: "Jane Doe",
		CardNumber:    "ISMLE1234A",
		ValidFrom:     from,
		ValidThru:     from.AddYears(1),
		GiveawayID:    strPtr("5"),
	}
	f.cards.On("FindByNumber", ctx, "ISMLE1234A").Return(existing, nil)
	f.pipeline.On("Generate", ctx, cardpdf.RenderRequest{
		CardType:   "edupass",
		HolderName: "Jane Doe",
		CardNumber: "ISMLE1234A",
		Validity:   card.ValidityWindow{ValidFrom: from, ValidThru: from.AddYears(1)},
	}).Return(publishedDoc("ISMLE1234A"), nil)
	f.cards.On("UpdateDocument", ctx, "ISMLE1234A", "cards/ISMLE1234A.pdf", mock.AnythingOfType("*string")).Return(nil)
	f.events.On("PublishCardGenerated", ctx, mock.MatchedBy(func(e events.CardGenerated) bool {
		return e.Regenerated && e.SourceKind == "giveaway" && e.SourceID == "5"
	})).Return(nil)

	got, err := f.svc.Regenerate(ctx, "ISMLE1234A")

	require.NoError(t, err)
	assert.Equal(t, "cards/ISMLE1234A.pdf", got.StoragePath)
	assert.Equal(t, "2023-05-01", got.ValidFrom.String(), "validity is kept")
	assert.Empty(t, f.allocated)
	f.assertExpectations(t)
}

func TestCardService_RegenerateKeepsStoredURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, card.PolicyFallback, "", nil)

	from, err := card.ParseDate("2023-05-01")
	require.NoError(t, err)
	stored := "https://cdn.example.com/elite-cards/cards/ISMLE1234A.pdf"
	existing := &model.GeneratedCard{
		CardName:      "edupass",
		NameOnThePass: "Jane Doe",
		CardNumber:    "ISMLE1234A",
		ValidFrom:     from,
		ValidThru:     from.AddYears(1),
		PaymentID:     strPtr("17"),
		PDFURL:        strPtr(stored),
	}
	doc := publishedDoc("ISMLE1234A")
	doc.PublicURL = nil

	f.cards.On("FindByNumber", ctx, "ISMLE1234A").Return(existing, nil)
	f.pipeline.On("Generate", ctx, mock.Anything).Return(doc, nil)
	f.cards.On("UpdateDocument", ctx, "ISMLE1234A", "cards/ISMLE1234A.pdf", mock.MatchedBy(func(u *string) bool {
		return u != nil && *u == stored
	})).Return(nil)
	f.events.On("PublishCardGenerated", ctx, mock.MatchedBy(func(e events.CardGenerated) bool {
		return e.PDFURL != nil && *e.PDFURL == stored
	})).Return(nil)

	got, err := f.svc.Regenerate(ctx, "ISMLE1234A")

	require.NoError(t, err)
	require.NotNil(t, got.PDFURL)
	assert.Equal(t, stored, *got.PDFURL)
	f.assertExpectations(t)
}

func TestCardService_RegenerateNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, card.PolicyFallback, "", nil)
	f.cards.On("FindByNumber", ctx, "NOPE").Return(nil, repository.ErrNotFound)

	_, err := f.svc.Regenerate(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
	f.pipeline.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestCardService_Get(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, card.PolicyFallback, "", nil)

	f.cards.On("FindByNumber", ctx, "ISMLE1234A").Return(&model.GeneratedCard{CardNumber: "ISMLE1234A"}, nil)
	f.cards.On("FindByNumber", ctx, "BROKEN").Return(nil, errors.New("db error"))

	got, err := f.svc.Get(ctx, "ISMLE1234A")
	require.NoError(t, err)
	assert.Equal(t, "ISMLE1234A", got.CardNumber)

	_, err = f.svc.Get(ctx, "")
	assert.ErrorIs(t, err, ErrIDRequired)

	_, err = f.svc.Get(ctx, "BROKEN")
	assert.EqualError(t, err, "db error")
}

func TestCardService_List(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		limit      int
		offset     int
		wantQuery  repository.PageQuery
		repoErr    error
		wantResult *CardListResult
	}{
		{
			name:       "defaults",
			limit:      0,
			offset:     -5,
			wantQuery:  repository.PageQuery{Limit: 10, Offset: 0},
			wantResult: &CardListResult{Items: []model.GeneratedCard{{CardNumber: "A"}}, Total: 1},
		},
		{
			name:       "capped",
			limit:      1000,
			offset:     20,
			wantQuery:  repository.PageQuery{Limit: 100, Offset: 20},
			wantResult: &CardListResult{Items: []model.GeneratedCard{{CardNumber: "A"}}, Total: 1},
		},
		{
			name:      "repo error",
			limit:     10,
			wantQuery: repository.PageQuery{Limit: 10},
			repoErr:   errors.New("boom"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, card.PolicyFallback, "", nil)
			if tt.repoErr != nil {
				f.cards.On("List", ctx, tt.wantQuery).Return(nil, tt.repoErr)
			} else {
				f.cards.On("List", ctx, tt.wantQuery).Return(&repository.PageResult[model.GeneratedCard]{
					Items: []model.GeneratedCard{{CardNumber: "A"}},
					Total: 1,
				}, nil)
			}

			res, err := f.svc.List(ctx, tt.limit, tt.offset)

			if tt.repoErr != nil {
				assert.ErrorIs(t, err, tt.repoErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantResult, res)
			f.cards.AssertExpectations(t)
		})
	}
}

func TestCardService_Download(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, card.PolicyFallback, "", nil)

	f.cards.On("FindByNumber", ctx, "ISMLE1234A").
		Return(&model.GeneratedCard{CardNumber: "ISMLE1234A", StoragePath: "cards/ISMLE1234A.pdf"}, nil)
	f.cards.On("FindByNumber", ctx, "ISMLS0001B").
		Return(&model.GeneratedCard{CardNumber: "ISMLS0001B"}, nil)
	f.store.On("Get", ctx, "cards/ISMLE1234A.pdf").
		Return(io.NopCloser(strings.NewReader("%PDF")), storage.ObjectInfo{Size: 4, ContentType: "application/pdf"}, nil)
	f.store.On("Get", ctx, "cards/ISMLS0001B.pdf").
		Return(nil, storage.ObjectInfo{}, errors.New("connection reset"))
	f.cards.On("FindByNumber", ctx, "ISMLI0002C").
		Return(&model.GeneratedCard{CardNumber: "ISMLI0002C", StoragePath: "cards/ISMLI0002C.pdf"}, nil)
	f.store.On("Get", ctx, "cards/ISMLI0002C.pdf").
		Return(nil, storage.ObjectInfo{}, fmt.Errorf("cards/ISMLI0002C.pdf: %w", storage.ErrObjectNotFound))

	rc, info, err := f.svc.Download(ctx, "ISMLE1234A")
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF", string(body))
	assert.Equal(t, int64(4), info.Size)

	_, _, err = f.svc.Download(ctx, "ISMLS0001B")
	var se *cardpdf.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "cards/ISMLS0001B.pdf", se.Key)

	_, _, err = f.svc.Download(ctx, "ISMLI0002C")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCardService_DownloadURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, card.PolicyFallback, "", nil)

	f.cards.On("FindByNumber", ctx, "ISMLE1234A").
		Return(&model.GeneratedCard{CardNumber: "ISMLE1234A", StoragePath: "cards/ISMLE1234A.pdf"}, nil)
	f.cards.On("FindByNumber", ctx, "MISSING").Return(nil, repository.ErrNotFound)
	f.store.On("PresignGet", ctx, "cards/ISMLE1234A.pdf", 15*time.Minute).Return("https://signed/x", nil)

	u, err := f.svc.DownloadURL(ctx, "ISMLE1234A", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://signed/x", u)

	_, err = f.svc.DownloadURL(ctx, "MISSING", time.Minute)
	assert.ErrorIs(t, err, ErrNotFound)
}
