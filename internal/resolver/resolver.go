// Package resolver turns the issue tokens operators type into canonical
// issue identifiers. A token is either a canonical id (a UUID) or a
// human-readable key such as DEMO-1. The form is decided once, here, so
// nothing downstream has to guess.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mrz1836/berth/internal/domain"
	berrors "github.com/mrz1836/berth/internal/errors"
)

// Kind classifies a parsed token.
type Kind int

// Token kinds.
const (
	KindInvalid Kind = iota
	KindCanonical
	KindKey
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCanonical:
		return "canonical"
	case KindKey:
		return "key"
	case KindInvalid:
		return "invalid"
	}
	return "unknown"
}

// keyPattern matches PREFIX-N where N has no leading zero.
var keyPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9]*)-([1-9][0-9]*)$`)

// Reference is a classified issue token.
//
//	Parse("DEMO-1")                               -> {Kind: KindKey, Prefix: "DEMO", Number: 1}
//	Parse("7c1e9f2a-0b4d-4e8a-9c3f-5a6b7c8d9e0f") -> {Kind: KindCanonical, ID: "7c1e9f2a-..."}
//	Parse("hello")                                -> {Kind: KindInvalid}
type Reference struct {
	Kind Kind
	// ID is the lowercase canonical id, set for KindCanonical.
	ID string
	// Prefix is the upper-cased key prefix, set for KindKey.
	Prefix string
	// Number is the key sequence number, set for KindKey.
	Number int
	// Raw is the token as given.
	Raw string
}

// Key returns the normalized key form, or "" when the reference is not a key.
func (r Reference) Key() string {
	if r.Kind != KindKey {
		return ""
	}
	return r.Prefix + "-" + strconv.Itoa(r.Number)
}

// Parse classifies token. It never touches storage.
func Parse(token string) Reference {
	raw := token
	token = strings.TrimSpace(token)

	if id, err := uuid.Parse(token); err == nil && len(token) == 36 {
		return Reference{Kind: KindCanonical, ID: id.String(), Raw: raw}
	}

	if m := keyPattern.FindStringSubmatch(token); m != nil {
		n, err := strconv.Atoi(m[2])
		if err == nil {
			return Reference{
				Kind:   KindKey,
				Prefix: strings.ToUpper(m[1]),
				Number: n,
				Raw:    raw,
			}
		}
	}

	return Reference{Kind: KindInvalid, Raw: raw}
}

// Lookup is the read-only slice of the tracker the resolver needs.
type Lookup interface {
	GetIssue(ctx context.Context, id string) (*domain.Issue, error)
	ResolveKey(ctx context.Context, prefix string, number int) (*domain.Issue, error)
}

// Resolver maps tokens to issues through a Lookup.
type Resolver struct {
	lookup Lookup
}

// New creates a Resolver.
func New(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns the canonical id for token.
func (r *Resolver) Resolve(ctx context.Context, token string) (string, error) {
	issue, err := r.ResolveIssue(ctx, token)
	if err != nil {
		return "", err
	}
	return issue.ID, nil
}

// ResolveIssue returns the issue token refers to. Unknown tokens yield
// ErrIssueNotFound; malformed ones ErrInvalidReference.
func (r *Resolver) ResolveIssue(ctx context.Context, token string) (*domain.Issue, error) {
	ref := Parse(token)

	var (
		issue *domain.Issue
		err   error
	)
	switch ref.Kind {
	case KindCanonical:
		issue, err = r.lookup.GetIssue(ctx, ref.ID)
	case KindKey:
		issue, err = r.lookup.ResolveKey(ctx, ref.Prefix, ref.Number)
	case KindInvalid:
		return nil, fmt.Errorf("%q is neither an issue key nor an id: %w", token, berrors.ErrInvalidReference)
	}

	if err != nil {
		if errors.Is(err, berrors.ErrIssueNotFound) || errors.Is(err, berrors.ErrProjectNotFound) {
			return nil, fmt.Errorf("%s: %w", strings.TrimSpace(token), berrors.ErrIssueNotFound)
		}
		return nil, fmt.Errorf("failed to resolve %s: %w", strings.TrimSpace(token), err)
	}
	return issue, nil
}
