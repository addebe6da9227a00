package card

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
)

const (
	digits  = "0123456789"
	letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	numberDigits = 4

	// DefaultMaxAttempts bounds the number of draws per allocation.
	DefaultMaxAttempts = 50
)

// NumberRegistry is the set of issued card numbers.
//
// Reserve must be atomic: it records number as issued and returns true only if
// no card and no earlier reservation holds it yet.
type NumberRegistry interface {
	Reserve(ctx context.Context, number string) (bool, error)
}

// Allocator draws type-prefixed card numbers until the registry accepts one.
type Allocator struct {
	tiers       *Tiers
	registry    NumberRegistry
	maxAttempts int

	mu  sync.Mutex
	rnd *rand.Rand
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithMaxAttempts overrides DefaultMaxAttempts. Values below 1 are ignored.
func WithMaxAttempts(n int) AllocatorOption {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithRand replaces the random source, mostly for tests.
func WithRand(r *rand.Rand) AllocatorOption {
	return func(a *Allocator) {
		if r != nil {
			a.rnd = r
		}
	}
}

// NewAllocator builds an allocator over the given tier table and registry.
func NewAllocator(tiers *Tiers, registry NumberRegistry, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		tiers:       tiers,
		registry:    registry,
		maxAttempts: DefaultMaxAttempts,
		rnd:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate returns a card number that the registry has accepted as new.
// It fails with ErrAllocationExhausted once maxAttempts candidates were rejected.
func (a *Allocator) Allocate(ctx context.Context, cardType string) (string, error) {
	tier, err := a.tiers.Resolve(cardType)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := a.candidate(tier.Prefix)
		ok, err := a.registry.Reserve(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("reserve card number: %w", err)
		}
		if ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %d attempts with prefix %s", ErrAllocationExhausted, a.maxAttempts, tier.Prefix)
}

func (a *Allocator) candidate(prefix string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	b := make([]byte, 0, len(prefix)+numberDigits+1)
	b = append(b, prefix...)
	for i := 0; i < numberDigits; i++ {
		b = append(b, digits[a.rnd.IntN(len(digits))])
	}
	b = append(b, letters[a.rnd.IntN(len(letters))])
	return string(b)
}

// NumberPattern matches card numbers issued under prefix.
func NumberPattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `[0-9]{4}[A-Z]$`)
}
