package cardpdf

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"

	"github.com/sirupsen/logrus"

	"cardapi/internal/storage"
)

const pdfContentType = "application/pdf"

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// StoragePath returns the object key for a card document.
func StoragePath(prefix, cardNumber string) string {
	return prefix + unsafeKeyChars.ReplaceAllString(cardNumber, "_") + ".pdf"
}

// Published is the location of an uploaded card document. PublicURL is nil
// when the store could not produce one.
type Published struct {
	StoragePath string  `json:"storage_path"`
	PublicURL   *string `json:"public_url"`
}

// Publisher writes card documents to object storage.
type Publisher struct {
	store  storage.Storage
	prefix string
	log    logrus.FieldLogger
}

func NewPublisher(store storage.Storage, prefix string, log logrus.FieldLogger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{store: store, prefix: prefix, log: log}
}

// Path returns the key Publish writes cardNumber to.
func (p *Publisher) Path(cardNumber string) string {
	return StoragePath(p.prefix, cardNumber)
}

// Publish uploads pdf under the card's key, replacing any previous document.
func (p *Publisher) Publish(ctx context.Context, pdf []byte, cardNumber string) (*Published, error) {
	if cardNumber == "" {
		return nil, &ValidationError{Field: "card_number", Reason: "is required"}
	}
	key := p.Path(cardNumber)
	_, err := p.store.Put(ctx, key, bytes.NewReader(pdf), storage.PutObjectOptions{
		Size:               int64(len(pdf)),
		ContentType:        pdfContentType,
		ContentDisposition: fmt.Sprintf(`inline; filename="%s"`, path.Base(key)),
		// Regeneration rewrites the same key behind a permanent public URL.
		CacheControl: "no-cache",
		Metadata:     map[string]string{"card-number": cardNumber},
	})
	if err != nil {
		return nil, &StorageError{Op: "put", Key: key, Err: err}
	}

	out := &Published{StoragePath: key}
	u, err := p.store.PublicURL(key)
	if err != nil {
		p.log.WithError(err).WithField("storage_path", key).Warn("public url unavailable")
		return out, nil
	}
	out.PublicURL = &u
	return out, nil
}
