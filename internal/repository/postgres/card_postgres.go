package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cardapi/internal/model"
	"cardapi/internal/repository"
)

const cardColumns = `id, card_name, name_on_the_pass, email, card_number, valid_from, valid_thru,
		status, payment_id, giveaway_id, storage_path, pdf_url, created_at`

// CardPostgres is a PostgreSQL implementation of repository.CardRepository.
type CardPostgres struct {
	db *sql.DB
}

// NewCardPostgres creates a new CardPostgres repository.
func NewCardPostgres(db *sql.DB) *CardPostgres {
	return &CardPostgres{db: db}
}

var _ repository.CardRepository = (*CardPostgres)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(s rowScanner) (*model.GeneratedCard, error) {
	var (
		c           model.GeneratedCard
		paymentID   sql.NullString
		giveawayID  sql.NullString
		storagePath sql.NullString
		pdfURL      sql.NullString
	)
	if err := s.Scan(
		&c.ID,
		&c.CardName,
		&c.NameOnThePass,
		&c.Email,
		&c.CardNumber,
		&c.ValidFrom,
		&c.ValidThru,
		&c.Status,
		&paymentID,
		&giveawayID,
		&storagePath,
		&pdfURL,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	c.PaymentID = nullString(paymentID)
	c.GiveawayID = nullString(giveawayID)
	c.StoragePath = storagePath.String
	c.PDFURL = nullString(pdfURL)
	return &c, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Create inserts a new card row and returns the stored record.
func (r *CardPostgres) Create(ctx context.Context, c *model.GeneratedCard) (*model.GeneratedCard, error) {
	q := `
		INSERT INTO elite_card_generate (id, card_name, name_on_the_pass, email, card_number, valid_from, valid_thru,
			status, payment_id, giveaway_id, storage_path, pdf_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + cardColumns
	row := r.db.QueryRowContext(ctx, q,
		c.ID,
		c.CardName,
		c.NameOnThePass,
		c.Email,
		c.CardNumber,
		c.ValidFrom,
		c.ValidThru,
		c.Status,
		c.PaymentID,
		c.GiveawayID,
		c.StoragePath,
		c.PDFURL,
		c.CreatedAt,
	)
	out, err := scanCard(row)
	if err != nil {
		return nil, fmt.Errorf("insert card %s: %w", c.CardNumber, err)
	}
	return out, nil
}

// FindByNumber fetches a single card by its number.
func (r *CardPostgres) FindByNumber(ctx context.Context, number string) (*model.GeneratedCard, error) {
	q := `SELECT ` + cardColumns + ` FROM elite_card_generate WHERE card_number = $1`
	c, err := scanCard(r.db.QueryRowContext(ctx, q, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// UpdateDocument records where a card's document was published.
func (r *CardPostgres) UpdateDocument(ctx context.Context, number, storagePath string, pdfURL *string) error {
	const q = `UPDATE elite_card_generate SET storage_path = $2, pdf_url = $3 WHERE card_number = $1`
	res, err := r.db.ExecContext(ctx, q, number, storagePath, pdfURL)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns cards using LIMIT/OFFSET pagination and a total count.
func (r *CardPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.GeneratedCard], error) {
	const qCount = `SELECT COUNT(*) FROM elite_card_generate`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	qList := `SELECT ` + cardColumns + `
		FROM elite_card_generate
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.GeneratedCard, 0)
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.GeneratedCard]{
		Items: items,
		Total: total,
	}, nil
}
