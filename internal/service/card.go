package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cardapi/internal/card"
	"cardapi/internal/cardpdf"
	"cardapi/internal/events"
	"cardapi/internal/model"
	"cardapi/internal/repository"
	"cardapi/internal/storage"
)

var (
	ErrIDRequired  = errors.New("id is required")
	ErrNotFound    = errors.New("not found")
	ErrNotApproved = errors.New("not approved yet")
)

// CardListResult is the service-level DTO for paginated cards.
type CardListResult struct {
	Items []model.GeneratedCard `json:"data"`
	Total int                   `json:"total"`
}

// CardService defines the card issuing use cases.
type CardService interface {
	// GenerateFromPayment issues a card for an approved payment, looked up by its payment_id.
	GenerateFromPayment(ctx context.Context, paymentID string) (*model.GeneratedCard, error)

	// GenerateFromGiveaway issues a card for an approved giveaway.
	GenerateFromGiveaway(ctx context.Context, giveawayID string) (*model.GeneratedCard, error)

	// Regenerate re-renders and re-publishes an issued card's document with
	// its stored number and validity, replacing the previous document.
	Regenerate(ctx context.Context, number string) (*model.GeneratedCard, error)

	// Get returns a card by its number.
	Get(ctx context.Context, number string) (*model.GeneratedCard, error)

	// List returns cards using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*CardListResult, error)

	// Download streams a card's stored document.
	Download(ctx context.Context, number string) (io.ReadCloser, storage.ObjectInfo, error)

	// DownloadURL returns a time-limited link to a card's document.
	DownloadURL(ctx context.Context, number string, expiry time.Duration) (string, error)
}

// NumberAllocator draws a fresh, reserved card number.
type NumberAllocator interface {
	Allocate(ctx context.Context, cardType string) (string, error)
}

// CardDeps groups the collaborators of the card service.
type CardDeps struct {
	Cards      repository.CardRepository
	Sources    repository.SourceRepository
	Numbers    repository.NumberRegistry
	Allocator  NumberAllocator
	Tiers      *card.Tiers
	Pipeline   cardpdf.Pipeline
	Store      storage.Storage
	Events     events.Publisher
	PathPrefix string
	Log        logrus.FieldLogger
	// Now defaults to time.Now. The issue date is its calendar date.
	Now func() time.Time
}

type cardService struct {
	CardDeps
}

// NewCardService constructs a new CardService.
func NewCardService(d CardDeps) CardService {
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &cardService{CardDeps: d}
}

func (s *cardService) GenerateFromPayment(ctx context.Context, paymentID string) (*model.GeneratedCard, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, fmt.Errorf("payment_id: %w", ErrIDRequired)
	}
	src, err := s.Sources.FindPayment(ctx, paymentID)
	if err != nil {
		return nil, sourceError("payment", paymentID, err)
	}
	return s.generate(ctx, src)
}

func (s *cardService) GenerateFromGiveaway(ctx context.Context, giveawayID string) (*model.GeneratedCard, error) {
	giveawayID = strings.TrimSpace(giveawayID)
	if giveawayID == "" {
		return nil, fmt.Errorf("giveaway_id: %w", ErrIDRequired)
	}
	src, err := s.Sources.FindGiveaway(ctx, giveawayID)
	if err != nil {
		return nil, sourceError("giveaway", giveawayID, err)
	}
	return s.generate(ctx, src)
}

func sourceError(kind, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", kind, err)
}

// generate allocates a number, publishes the document and persists the card.
// A failed insert deletes the document and releases the number.
func (s *cardService) generate(ctx context.Context, src *model.SourceRecord) (*model.GeneratedCard, error) {
	if !src.Approved() {
		return nil, fmt.Errorf("%s %s: %w", src.Kind, src.ID, ErrNotApproved)
	}

	tier, err := s.Tiers.Resolve(src.CardType)
	if err != nil {
		return nil, err
	}
	// Fail before a number is reserved for a type that cannot be rendered.
	if _, err := s.Pipeline.Lookup(src.CardType); err != nil {
		return nil, err
	}

	number, err := s.Allocator.Allocate(ctx, src.CardType)
	if err != nil {
		return nil, err
	}
	log := s.Log.WithFields(logrus.Fields{
		"card_number": number,
		"card_type":   src.CardType,
		"source_kind": src.Kind,
		"source_id":   src.ID,
	})

	validity := card.ComputeValidity(tier, s.Now())
	doc, err := s.Pipeline.Generate(ctx, cardpdf.RenderRequest{
		CardType:   src.CardType,
		HolderName: src.HolderName,
		CardNumber: number,
		Validity:   validity,
	})
	if err != nil {
		s.release(ctx, log, number)
		return nil, fmt.Errorf("generate card document: %w", err)
	}

	rec := &model.GeneratedCard{
		ID:            uuid.New().String(),
		CardName:      src.CardType,
		NameOnThePass: src.HolderName,
		Email:         src.ContactEmail,
		CardNumber:    number,
		ValidFrom:     validity.ValidFrom,
		ValidThru:     validity.ValidThru,
		Status:        model.CardStatusGenerated,
		StoragePath:   doc.StoragePath,
		PDFURL:        doc.PublicURL,
		CreatedAt:     s.Now().UTC(),
	}
	srcID := src.ID
	switch src.Kind {
	case model.SourcePayment:
		rec.PaymentID = &srcID
	case model.SourceGiveaway:
		rec.GiveawayID = &srcID
	}

	stored, err := s.Cards.Create(ctx, rec)
	if err != nil {
		// Rollback: delete the document and free the number
		if delErr := s.Store.Delete(ctx, doc.StoragePath); delErr != nil {
			log.WithError(delErr).Error("rollback delete failed")
			s.release(ctx, log, number)
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		s.release(ctx, log, number)
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	log.WithField("storage_path", stored.StoragePath).Info("card generated")
	s.notify(ctx, log, stored, src.Kind, src.ID, false)
	return stored, nil
}

func (s *cardService) release(ctx context.Context, log logrus.FieldLogger, number string) {
	if err := s.Numbers.Release(ctx, number); err != nil {
		log.WithError(err).Warn("release card number failed")
	}
}

func (s *cardService) notify(ctx context.Context, log logrus.FieldLogger, c *model.GeneratedCard, kind model.SourceKind, sourceID string, regenerated bool) {
	err := s.Events.PublishCardGenerated(ctx, events.CardGenerated{
		CardNumber:  c.CardNumber,
		CardType:    c.CardName,
		HolderName:  c.NameOnThePass,
		Email:       c.Email,
		ValidFrom:   c.ValidFrom,
		ValidThru:   c.ValidThru,
		PDFURL:      c.PDFURL,
		SourceKind:  string(kind),
		SourceID:    sourceID,
		Regenerated: regenerated,
	})
	if err != nil {
		log.WithError(err).Warn("publish card event failed")
	}
}

func (s *cardService) Regenerate(ctx context.Context, number string) (*model.GeneratedCard, error) {
	c, err := s.Get(ctx, number)
	if err != nil {
		return nil, err
	}

	doc, err := s.Pipeline.Generate(ctx, cardpdf.RenderRequest{
		CardType:   c.CardName,
		HolderName: c.NameOnThePass,
		CardNumber: c.CardNumber,
		Validity:   c.Validity(),
	})
	if err != nil {
		return nil, fmt.Errorf("generate card document: %w", err)
	}
	// The key is unchanged, so a previously stored link stays valid.
	pdfURL := doc.PublicURL
	if pdfURL == nil {
		pdfURL = c.PDFURL
	}
	if err := s.Cards.UpdateDocument(ctx, c.CardNumber, doc.StoragePath, pdfURL); err != nil {
		return nil, fmt.Errorf("update card document: %w", err)
	}
	c.StoragePath = doc.StoragePath
	c.PDFURL = pdfURL

	kind, sourceID := model.SourcePayment, ""
	switch {
	case c.PaymentID != nil:
		sourceID = *c.PaymentID
	case c.GiveawayID != nil:
		kind, sourceID = model.SourceGiveaway, *c.GiveawayID
	}
	log := s.Log.WithFields(logrus.Fields{"card_number": c.CardNumber, "card_type": c.CardName})
	log.Info("card regenerated")
	s.notify(ctx, log, c, kind, sourceID, true)
	return c, nil
}

// Get returns a card by number.
func (s *cardService) Get(ctx context.Context, number string) (*model.GeneratedCard, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, fmt.Errorf("card_number: %w", ErrIDRequired)
	}
	c, err := s.Cards.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("card %q: %w", number, ErrNotFound)
		}
		return nil, err
	}
	return c, nil
}

// List returns paginated cards without exposing repository types.
func (s *cardService) List(ctx context.Context, limit, offset int) (*CardListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.Cards.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &CardListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *cardService) Download(ctx context.Context, number string) (io.ReadCloser, storage.ObjectInfo, error) {
	key, err := s.documentKey(ctx, number)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	rc, info, err := s.Store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectInfo{}, fmt.Errorf("card %q document: %w", number, ErrNotFound)
		}
		return nil, storage.ObjectInfo{}, &cardpdf.StorageError{Op: "get", Key: key, Err: err}
	}
	return rc, info, nil
}

func (s *cardService) DownloadURL(ctx context.Context, number string, expiry time.Duration) (string, error) {
	key, err := s.documentKey(ctx, number)
	if err != nil {
		return "", err
	}
	u, err := s.Store.PresignGet(ctx, key, expiry)
	if err != nil {
		return "", &cardpdf.StorageError{Op: "presign", Key: key, Err: err}
	}
	return u, nil
}

// documentKey prefers the recorded storage path and falls back to the
// derived key for cards recorded without one.
func (s *cardService) documentKey(ctx context.Context, number string) (string, error) {
	c, err := s.Get(ctx, number)
	if err != nil {
		return "", err
	}
	if c.StoragePath != "" {
		return c.StoragePath, nil
	}
	return cardpdf.StoragePath(s.PathPrefix, c.CardNumber), nil
}
