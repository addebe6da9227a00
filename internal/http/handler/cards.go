package handler

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"cardapi/internal/model"
	"cardapi/internal/service"
)

const (
	defaultLinkExpiry = 15 * time.Minute
	// S3 presigned URLs are capped at seven days.
	maxLinkExpiry = 7 * 24 * time.Hour
)

var cardNumberParam = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// sourceID accepts a JSON string or number; source tables key rows either way.
type sourceID string

func (s *sourceID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = sourceID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*s = sourceID(n.String())
	return nil
}

type generateFromPaymentRequest struct {
	PaymentID sourceID `json:"payment_id"`
}

type generateFromGiveawayRequest struct {
	GiveawayID sourceID `json:"giveaway_id"`
}

type cardResponse struct {
	Message string               `json:"message"`
	Card    *model.GeneratedCard `json:"card"`
}

type downloadLinkResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// GenerateFromPayment issues a card for an approved payment.
func GenerateFromPayment(svc service.CardService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req generateFromPaymentRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
		}
		if req.PaymentID == "" {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "payment_id is required")
		}

		card, err := svc.GenerateFromPayment(c.UserContext(), string(req.PaymentID))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(cardResponse{Message: "card generated", Card: card})
	}
}

// GenerateFromGiveaway issues a card for an approved giveaway.
func GenerateFromGiveaway(svc service.CardService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req generateFromGiveawayRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
		}
		if req.GiveawayID == "" {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "giveaway_id is required")
		}

		card, err := svc.GenerateFromGiveaway(c.UserContext(), string(req.GiveawayID))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(cardResponse{Message: "giveaway card generated", Card: card})
	}
}

// RegenerateCard re-renders an issued card's document in place.
func RegenerateCard(svc service.CardService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		number, ok := cardNumber(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_CARD_NUMBER", "invalid card number")
		}
		card, err := svc.Regenerate(c.UserContext(), number)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(cardResponse{Message: "card regenerated", Card: card})
	}
}

// ListCards lists issued cards with limit & offset.
func ListCards(svc service.CardService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// GetCard returns one card by number.
func GetCard(svc service.CardService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		number, ok := cardNumber(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_CARD_NUMBER", "invalid card number")
		}
		card, err := svc.Get(c.UserContext(), number)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(card)
	}
}

// DownloadCard streams the card's PDF from object storage.
func DownloadCard(svc service.CardService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		number, ok := cardNumber(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_CARD_NUMBER", "invalid card number")
		}
		rc, info, err := svc.Download(c.UserContext(), number)
		if err != nil {
			return writeServiceError(c, err)
		}

		ct := info.ContentType
		if ct == "" {
			ct = "application/pdf"
		}
		c.Set(fiber.HeaderContentType, ct)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="%s.pdf"`, number))

		size := -1
		if info.Size > 0 {
			size = int(info.Size)
		}
		// fasthttp closes rc once the body has been written.
		return c.SendStream(rc, size)
	}
}

// DownloadCardURL returns a presigned link to the card's PDF. The optional
// "expires" query parameter is the link lifetime in seconds.
func DownloadCardURL(svc service.CardService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		number, ok := cardNumber(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_CARD_NUMBER", "invalid card number")
		}

		expiry := defaultLinkExpiry
		if raw := c.Query("expires"); raw != "" {
			secs, err := strconv.Atoi(raw)
			if err != nil || secs <= 0 || time.Duration(secs)*time.Second > maxLinkExpiry {
				return writeError(c, fiber.StatusBadRequest, "INVALID_EXPIRES", "expires must be between 1 and 604800 seconds")
			}
			expiry = time.Duration(secs) * time.Second
		}

		u, err := svc.DownloadURL(c.UserContext(), number, expiry)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(downloadLinkResponse{URL: u, ExpiresIn: int(expiry / time.Second)})
	}
}

func cardNumber(c *fiber.Ctx) (string, bool) {
	n := c.Params("number")
	return n, cardNumberParam.MatchString(n)
}
