package card

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownTier         = errors.New("unknown card tier")
	ErrAllocationExhausted = errors.New("card number allocation exhausted")
)

// Tier is a card product level with its own number prefix and validity length.
type Tier struct {
	Name          string
	Prefix        string
	ValidityYears int
}

var (
	EduPass      = Tier{Name: "edupass", Prefix: "ISMLE", ValidityYears: 1}
	ScholarPass  = Tier{Name: "scholarpass", Prefix: "ISMLS", ValidityYears: 2}
	InfinitePass = Tier{Name: "infinitepass", Prefix: "ISMLI", ValidityYears: 3}
)

// Policy decides how card types without a registered tier are treated.
type Policy string

const (
	// PolicyStrict rejects unknown card types with ErrUnknownTier.
	PolicyStrict Policy = "strict"
	// PolicyFallback resolves unknown card types to the default tier.
	PolicyFallback Policy = "fallback"
)

// ParsePolicy accepts "strict" or "fallback" (case-insensitive).
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyStrict:
		return PolicyStrict, nil
	case PolicyFallback:
		return PolicyFallback, nil
	default:
		return "", fmt.Errorf("invalid prefix policy %q", s)
	}
}

// Tiers is an immutable lookup table of tiers keyed by card type.
type Tiers struct {
	byName   map[string]Tier
	fallback Tier
	policy   Policy
}

// NewTiers builds a table. The fallback tier is used for unknown card types
// when the policy is PolicyFallback.
func NewTiers(policy Policy, fallback Tier, tiers ...Tier) *Tiers {
	byName := make(map[string]Tier, len(tiers)+1)
	byName[normalize(fallback.Name)] = fallback
	for _, t := range tiers {
		byName[normalize(t.Name)] = t
	}
	return &Tiers{byName: byName, fallback: fallback, policy: policy}
}

// DefaultTiers returns the edupass / scholarpass / infinitepass table with
// edupass as the fallback tier.
func DefaultTiers(policy Policy) *Tiers {
	return NewTiers(policy, EduPass, ScholarPass, InfinitePass)
}

// Policy reports the configured unknown-type policy.
func (t *Tiers) Policy() Policy { return t.policy }

// Resolve returns the tier registered for cardType.
func (t *Tiers) Resolve(cardType string) (Tier, error) {
	if tier, ok := t.byName[normalize(cardType)]; ok {
		return tier, nil
	}
	if t.policy == PolicyFallback {
		return t.fallback, nil
	}
	return Tier{}, fmt.Errorf("%w: %q", ErrUnknownTier, cardType)
}

// Names returns the registered card types in sorted order.
func (t *Tiers) Names() []string {
	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(cardType string) string {
	return strings.ToLower(strings.TrimSpace(cardType))
}
