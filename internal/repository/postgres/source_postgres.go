package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"cardapi/internal/model"
	"cardapi/internal/repository"
)

// SourcePostgres reads elite_card_payment and giveaway rows. It never writes.
type SourcePostgres struct {
	db *sql.DB
}

func NewSourcePostgres(db *sql.DB) *SourcePostgres {
	return &SourcePostgres{db: db}
}

var _ repository.SourceRepository = (*SourcePostgres)(nil)

// FindPayment fetches a payment by its external payment_id.
func (r *SourcePostgres) FindPayment(ctx context.Context, paymentID string) (*model.SourceRecord, error) {
	const q = `
		SELECT id::text, card_name, COALESCE(name_on_the_pass, ''), COALESCE(customer_email, ''),
			COALESCE(status, ''), COALESCE(amount, 0)
		FROM elite_card_payment
		WHERE payment_id = $1
	`
	s := model.SourceRecord{Kind: model.SourcePayment}
	err := r.db.QueryRowContext(ctx, q, paymentID).Scan(
		&s.ID,
		&s.CardType,
		&s.HolderName,
		&s.ContactEmail,
		&s.ApprovalStatus,
		&s.Amount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindGiveaway fetches a giveaway by id.
func (r *SourcePostgres) FindGiveaway(ctx context.Context, id string) (*model.SourceRecord, error) {
	const q = `
		SELECT id::text, card_name, COALESCE(name_on_the_pass, ''), COALESCE(customer_email, ''),
			COALESCE(status, '')
		FROM giveaway
		WHERE id::text = $1
	`
	s := model.SourceRecord{Kind: model.SourceGiveaway, Amount: decimal.Zero}
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID,
		&s.CardType,
		&s.HolderName,
		&s.ContactEmail,
		&s.ApprovalStatus,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
