package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SourceKind names the record a card is generated from.
type SourceKind string

const (
	SourcePayment  SourceKind = "payment"
	SourceGiveaway SourceKind = "giveaway"
)

// SourceRecord is the read-only view of an approved payment or giveaway.
// Amount is zero for giveaways.
type SourceRecord struct {
	ID             string          `json:"id"`
	Kind           SourceKind      `json:"kind"`
	CardType       string          `json:"card_name"`
	HolderName     string          `json:"name_on_the_pass"`
	ContactEmail   string          `json:"customer_email"`
	ApprovalStatus string          `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
}

// Approved reports whether the record's status is "approved", ignoring case.
func (s *SourceRecord) Approved() bool {
	return strings.EqualFold(strings.TrimSpace(s.ApprovalStatus), "approved")
}
