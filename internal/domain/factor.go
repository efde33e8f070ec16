package domain

import (
	"context"
	"sort"
	"strings"
)

// FactorType is the closed set of contact channels a pin can travel through.
type FactorType string

const (
	FactorEmail FactorType = "email"
	FactorPhone FactorType = "phone"
)

// ParseFactorType validates a factor type coming from a caller.
func ParseFactorType(s string) (FactorType, error) {
	switch FactorType(strings.ToLower(strings.TrimSpace(s))) {
	case FactorEmail:
		return FactorEmail, nil
	case FactorPhone:
		return FactorPhone, nil
	}
	return "", ErrInvalidFactorType
}

// InferFactorType guesses the factor type of an identity claim.
func InferFactorType(claim string) FactorType {
	if strings.Contains(claim, "@") {
		return FactorEmail
	}
	return FactorPhone
}

// Mask hides most of a factor value so it can be shown to the user.
func (t FactorType) Mask(value string) string {
	switch t {
	case FactorEmail:
		at := strings.LastIndex(value, "@")
		if at <= 0 {
			return strings.Repeat("*", len(value))
		}
		return value[:1] + "***" + value[at:]
	default:
		if len(value) <= 4 {
			return strings.Repeat("*", len(value))
		}
		return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
	}
}

// AccountFactor is a registered contact channel bound to an account.
type AccountFactor struct {
	AccountID string     `json:"account_id"`
	Type      FactorType `json:"type"`
	Value     string     `json:"value"`
	Confirmed bool       `json:"confirmed"`
}

// FactorSet is a small ordered set of factor types.
type FactorSet []FactorType

// Has reports whether t is in the set.
func (s FactorSet) Has(t FactorType) bool {
	for _, f := range s {
		if f == t {
			return true
		}
	}
	return false
}

// With returns a copy of the set including t.
func (s FactorSet) With(t FactorType) FactorSet {
	if s.Has(t) {
		return s.Clone()
	}
	out := append(s.Clone(), t)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Without returns a copy of the set excluding t.
func (s FactorSet) Without(t FactorType) FactorSet {
	out := make(FactorSet, 0, len(s))
	for _, f := range s {
		if f != t {
			out = append(out, f)
		}
	}
	return out
}

// Clone copies the set.
func (s FactorSet) Clone() FactorSet {
	out := make(FactorSet, len(s))
	copy(out, s)
	return out
}

// FactorResolver maps identity claims to registered account factors.
type FactorResolver interface {
	// Resolve finds the factor matching claim. It returns ErrFactorNotFound
	// when no account owns the claim.
	Resolve(ctx context.Context, claim string, hint FactorType) (*AccountFactor, error)

	// ListFactors returns every factor registered for the account
	ListFactors(ctx context.Context, accountID string) ([]AccountFactor, error)
}
