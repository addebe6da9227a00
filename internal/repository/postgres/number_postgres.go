package postgres

import (
	"context"
	"database/sql"

	"cardapi/internal/repository"
)

// NumberPostgres keeps the issued card number set in card_number_reservations.
type NumberPostgres struct {
	db *sql.DB
}

func NewNumberPostgres(db *sql.DB) *NumberPostgres {
	return &NumberPostgres{db: db}
}

var _ repository.NumberRegistry = (*NumberPostgres)(nil)

// Reserve inserts number unless it is already reserved or already on a card.
// The primary key makes concurrent reservations of one number race-free.
func (r *NumberPostgres) Reserve(ctx context.Context, number string) (bool, error) {
	const q = `
		INSERT INTO card_number_reservations (card_number)
		SELECT $1
		WHERE NOT EXISTS (SELECT 1 FROM elite_card_generate WHERE card_number = $1)
		ON CONFLICT (card_number) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, q, number)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release deletes a reservation. Releasing an unknown number is not an error.
func (r *NumberPostgres) Release(ctx context.Context, number string) error {
	const q = `DELETE FROM card_number_reservations WHERE card_number = $1`
	_, err := r.db.ExecContext(ctx, q, number)
	return err
}
