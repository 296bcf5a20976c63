package hier

import (
	"errors"
	"fmt"
	"strings"

	"strictparent/internal/source"
)

// Rule names the override-discipline rule a class violated.
type Rule uint8

const (
	// RuleUnjustifiedOverride: member claims to override but no ancestor declares the name.
	RuleUnjustifiedOverride Rule = iota + 1
	// RuleUndeclaredOverride: member shadows a base member without an override declaration.
	RuleUndeclaredOverride
	// RuleFinalizedOverride: member overrides a finalized ancestor member without force.
	RuleFinalizedOverride
)

func (r Rule) String() string {
	switch r {
	case RuleUnjustifiedOverride:
		return "unjustified-override"
	case RuleUndeclaredOverride:
		return "undeclared-override"
	case RuleFinalizedOverride:
		return "finalized-override"
	}
	return "unknown"
}

// ShadowScope selects how far the undeclared-override check looks.
type ShadowScope uint8

const (
	// ShadowDirect consults only names declared directly by the immediate bases.
	ShadowDirect ShadowScope = iota
	// ShadowAncestry consults the full ancestry of every immediate base,
	// except the implicit root.
	ShadowAncestry
)

func (s ShadowScope) String() string {
	switch s {
	case ShadowDirect:
		return "direct"
	case ShadowAncestry:
		return "ancestry"
	}
	return "unknown"
}

// ParseShadowScope converts a config/flag value.
func ParseShadowScope(s string) (ShadowScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct":
		return ShadowDirect, nil
	case "ancestry", "full":
		return ShadowAncestry, nil
	}
	return ShadowDirect, fmt.Errorf("invalid shadow scope %q (expected direct|ancestry)", s)
}

// Policy configures validation.
type Policy struct {
	Shadow   ShadowScope
	Baseline Baseline
}

// ErrInheritance matches every *InheritanceError via errors.Is.
var ErrInheritance = errors.New("inheritance error")

// InheritanceError reports the first override-discipline violation of a class.
type InheritanceError struct {
	Rule   Rule
	Class  string
	Member string
	// Base is the direct base through which the conflicting ancestor member was found.
	Base string
	// Owner is the class that declares the conflicting ancestor member.
	Owner string
	// Span points at the offending member; OwnerSpan at the ancestor member.
	Span      source.Span
	OwnerSpan source.Span
}

func (e *InheritanceError) Error() string {
	switch e.Rule {
	case RuleUnjustifiedOverride:
		return fmt.Sprintf("`%s` of %s claims to override a parent class member, but no parent class member with that name was found",
			e.Member, e.Class)
	case RuleUndeclaredOverride:
		return fmt.Sprintf("`%s` of %s is overriding a member of %s, but does not have an override declaration",
			e.Member, e.Class, e.Owner)
	case RuleFinalizedOverride:
		return fmt.Sprintf("`%s` is finalized in `%s`; %s cannot override it unless it is declared with force_override",
			e.Member, e.Owner, e.Class)
	}
	return fmt.Sprintf("`%s` of %s violates override discipline", e.Member, e.Class)
}

func (e *InheritanceError) Is(target error) bool {
	return target == ErrInheritance
}

// Validate runs both phases for one class.
// Phase 1 (override legitimacy) completes over all candidates before
// Phase 2 (final violations) starts; each phase stops at its first violation.
func Validate(class string, in *Inspector, store *Store, policy Policy) error {
	candidates := in.Candidates()

	for _, m := range candidates {
		if err := checkLegitimacy(class, m, in, store, policy); err != nil {
			return err
		}
	}
	for _, m := range candidates {
		if err := checkFinal(class, m, in, store); err != nil {
			return err
		}
	}
	return nil
}

func checkLegitimacy(class string, m Entry, in *Inspector, store *Store, policy Policy) error {
	name := m.Name()
	marks := store.Markers(m)

	if marks.Any(MarkerDeclaredOverride, MarkerForcedOverride) {
		for _, b := range in.bases {
			if _, _, ok := in.ResolveInBase(b, name); ok {
				return nil
			}
		}
		return &InheritanceError{
			Rule:   RuleUnjustifiedOverride,
			Class:  class,
			Member: name,
			Span:   m.Span(),
		}
	}

	if in.IsBaseline(name) {
		return nil
	}
	if owner, ok := in.OwnsDirectly(name); ok {
		decl, _ := owner.Own(name)
		return &InheritanceError{
			Rule:      RuleUndeclaredOverride,
			Class:     class,
			Member:    name,
			Base:      owner.name,
			Owner:     owner.name,
			Span:      m.Span(),
			OwnerSpan: decl.Span(),
		}
	}
	if policy.Shadow == ShadowAncestry {
		for _, b := range in.bases {
			decl, owner, ok := in.ResolveInBase(b, name)
			if !ok || owner.root {
				continue
			}
			return &InheritanceError{
				Rule:      RuleUndeclaredOverride,
				Class:     class,
				Member:    name,
				Base:      b.name,
				Owner:     owner.name,
				Span:      m.Span(),
				OwnerSpan: decl.Span(),
			}
		}
	}
	return nil
}

func checkFinal(class string, m Entry, in *Inspector, store *Store) error {
	name := m.Name()
	if store.Has(m, MarkerForcedOverride) {
		return nil
	}
	for _, b := range in.bases {
		decl, owner, ok := in.ResolveInBase(b, name)
		if !ok {
			continue
		}
		if store.Has(decl, MarkerFinalized) {
			return &InheritanceError{
				Rule:      RuleFinalizedOverride,
				Class:     class,
				Member:    name,
				Base:      b.name,
				Owner:     owner.name,
				Span:      m.Span(),
				OwnerSpan: decl.Span(),
			}
		}
	}
	return nil
}
