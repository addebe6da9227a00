package model

import (
	"time"

	"cardapi/internal/card"
)

// CardStatusGenerated is the status of a card whose document has been issued.
const CardStatusGenerated = "card_generated"

// GeneratedCard is one issued membership card. Exactly one of PaymentID and
// GiveawayID is set.
type GeneratedCard struct {
	ID            string    `json:"id"`
	CardName      string    `json:"card_name"`
	NameOnThePass string    `json:"name_on_the_pass"`
	Email         string    `json:"email"`
	CardNumber    string    `json:"card_number"`
	ValidFrom     card.Date `json:"valid_from"`
	ValidThru     card.Date `json:"valid_thru"`
	Status        string    `json:"status"`
	PaymentID     *string   `json:"payment_id"`
	GiveawayID    *string   `json:"giveaway_id"`
	StoragePath   string    `json:"storage_path"`
	PDFURL        *string   `json:"pdf_url"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validity returns the card's validity window.
func (c *GeneratedCard) Validity() card.ValidityWindow {
	return card.ValidityWindow{ValidFrom: c.ValidFrom, ValidThru: c.ValidThru}
}
