package repository

import (
	"context"
	"errors"

	"cardapi/internal/model"
)

// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g., postgres) inside this directory.

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// CardRepository defines data access for generated cards using SQL queries only.
type CardRepository interface {
	// Create inserts a new card record and returns the stored row.
	Create(ctx context.Context, c *model.GeneratedCard) (*model.GeneratedCard, error)

	// FindByNumber returns a card by its card number.
	FindByNumber(ctx context.Context, number string) (*model.GeneratedCard, error)

	// UpdateDocument sets the storage path and public URL of a card's document.
	UpdateDocument(ctx context.Context, number, storagePath string, pdfURL *string) error

	// List returns a page of cards, newest first, and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.GeneratedCard], error)
}

// NumberRegistry is the set of issued card numbers.
type NumberRegistry interface {
	// Reserve claims number. It reports false if the number is already issued.
	Reserve(ctx context.Context, number string) (bool, error)

	// Release frees a reserved number that never reached a card record.
	Release(ctx context.Context, number string) error
}

// SourceRepository reads the records cards are generated from.
type SourceRepository interface {
	// FindPayment looks a payment up by its external payment id.
	FindPayment(ctx context.Context, paymentID string) (*model.SourceRecord, error)

	// FindGiveaway looks a giveaway up by its id.
	FindGiveaway(ctx context.Context, id string) (*model.SourceRecord, error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
