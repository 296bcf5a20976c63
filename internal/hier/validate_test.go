package hier

import (
	"errors"
	"testing"
)

// method creates a method and applies markers in order.
func method(t *testing.T, reg *Registry, name string, markers ...Marker) Entry {
	t.Helper()
	e, err := reg.Store().Apply(NewMember(name, KindMethod), markers...)
	if err != nil {
		t.Fatalf("apply markers to %s: %v", name, err)
	}
	return e
}

func derive(t *testing.T, reg *Registry, name string, bases []*Class, members ...Entry) *Class {
	t.Helper()
	c, err := reg.Derive(Decl{Name: name, Bases: bases, Members: members})
	if err != nil {
		t.Fatalf("derive %s: unexpected error: %v", name, err)
	}
	return c
}

func expectRule(t *testing.T, err error, rule Rule, member string) *InheritanceError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s violation for %s, got nil", rule, member)
	}
	var ie *InheritanceError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InheritanceError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrInheritance) {
		t.Fatalf("expected errors.Is(err, ErrInheritance)")
	}
	if ie.Rule != rule {
		t.Fatalf("expected rule %s, got %s (%v)", rule, ie.Rule, err)
	}
	if ie.Member != member {
		t.Fatalf("expected member %q, got %q", member, ie.Member)
	}
	return ie
}

func TestNoBasesAlwaysPasses(t *testing.T) {
	tests := []struct {
		name    string
		markers []Marker
	}{
		{"plain", nil},
		{"final", []Marker{MarkerFinalized}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(Options{})
			derive(t, reg, "Solo", nil, method(t, reg, "run", tt.markers...), method(t, reg, "__doc__"))
		})
	}
}

func TestBaselessOverrideClaimsResolveThroughRoot(t *testing.T) {
	reg := NewRegistry(Options{})
	derive(t, reg, "Solo", nil, method(t, reg, "__init__", MarkerDeclaredOverride))
	derive(t, reg, "Plain", nil, method(t, reg, "__init__"), method(t, reg, "__repr__"))
	derive(t, reg, "Explicit", []*Class{reg.Root()}, method(t, reg, "__init__"))

	_, err := reg.Derive(Decl{Name: "Lonely", Members: []Entry{method(t, reg, "run", MarkerDeclaredOverride)}})
	expectRule(t, err, RuleUnjustifiedOverride, "run")

	custom := NewRegistry(Options{RootMembers: []string{}})
	_, err = custom.Derive(Decl{Name: "Solo", Members: []Entry{method(t, custom, "__init__", MarkerForcedOverride)}})
	expectRule(t, err, RuleUnjustifiedOverride, "__init__")
}

func TestFinalizedMemberRequiresForce(t *testing.T) {
	reg := NewRegistry(Options{})
	animal := derive(t, reg, "Animal", nil, method(t, reg, "speak", MarkerFinalized))

	_, err := reg.Derive(Decl{
		Name:    "Dog",
		Bases:   []*Class{animal},
		Members: []Entry{method(t, reg, "speak", MarkerDeclaredOverride)},
	})
	ie := expectRule(t, err, RuleFinalizedOverride, "speak")
	if ie.Owner != "Animal" || ie.Class != "Dog" || ie.Base != "Animal" {
		t.Fatalf("unexpected error context: %+v", ie)
	}
	if reg.State("Dog") != StateRejected {
		t.Fatalf("expected Dog to be rejected, got %s", reg.State("Dog"))
	}
	if _, ok := reg.Lookup("Dog"); ok {
		t.Fatalf("rejected class must not be visible")
	}

	dog := derive(t, reg, "Dog2", []*Class{animal}, method(t, reg, "speak", MarkerForcedOverride))
	if dog.Name() != "Dog2" {
		t.Fatalf("unexpected class %s", dog.Name())
	}
}

func TestFinalizedDeepAncestor(t *testing.T) {
	reg := NewRegistry(Options{})
	a := derive(t, reg, "A", nil, method(t, reg, "run", MarkerFinalized))
	b := derive(t, reg, "B", []*Class{a})
	_, err := reg.Derive(Decl{Name: "C", Bases: []*Class{b}, Members: []Entry{method(t, reg, "run", MarkerDeclaredOverride)}})
	ie := expectRule(t, err, RuleFinalizedOverride, "run")
	if ie.Owner != "A" || ie.Base != "B" {
		t.Fatalf("expected owner A via base B, got owner=%s base=%s", ie.Owner, ie.Base)
	}
}

func TestShadowRequiresDeclaration(t *testing.T) {
	reg := NewRegistry(Options{})
	shape := derive(t, reg, "Shape", nil, method(t, reg, "area"))

	_, err := reg.Derive(Decl{Name: "Circle", Bases: []*Class{shape}, Members: []Entry{method(t, reg, "area")}})
	ie := expectRule(t, err, RuleUndeclaredOverride, "area")
	if ie.Owner != "Shape" {
		t.Fatalf("expected owner Shape, got %s", ie.Owner)
	}

	derive(t, reg, "Circle2", []*Class{shape}, method(t, reg, "area", MarkerDeclaredOverride))
}

func TestUnjustifiedOverrideClaim(t *testing.T) {
	reg := NewRegistry(Options{})
	shape := derive(t, reg, "Shape", nil, method(t, reg, "area"))
	mid := derive(t, reg, "Polygon", []*Class{shape})
	_, err := reg.Derive(Decl{
		Name:    "Square",
		Bases:   []*Class{mid},
		Members: []Entry{method(t, reg, "perimeter", MarkerDeclaredOverride)},
	})
	expectRule(t, err, RuleUnjustifiedOverride, "perimeter")
}

func TestOverrideClaimIsAncestryWide(t *testing.T) {
	reg := NewRegistry(Options{})
	a := derive(t, reg, "A", nil, method(t, reg, "run"))
	b := derive(t, reg, "B", []*Class{a})
	derive(t, reg, "C", []*Class{b}, method(t, reg, "run", MarkerDeclaredOverride))
}

func TestGrandparentShadowDependsOnPolicy(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		reg := NewRegistry(Options{})
		a := derive(t, reg, "A", nil, method(t, reg, "run"))
		b := derive(t, reg, "B", []*Class{a})
		derive(t, reg, "C", []*Class{b}, method(t, reg, "run"))
	})
	t.Run("ancestry", func(t *testing.T) {
		reg := NewRegistry(Options{Policy: Policy{Shadow: ShadowAncestry}})
		a := derive(t, reg, "A", nil, method(t, reg, "run"))
		b := derive(t, reg, "B", []*Class{a})
		_, err := reg.Derive(Decl{Name: "C", Bases: []*Class{b}, Members: []Entry{method(t, reg, "run")}})
		ie := expectRule(t, err, RuleUndeclaredOverride, "run")
		if ie.Owner != "A" || ie.Base != "B" {
			t.Fatalf("expected owner A via B, got %+v", ie)
		}
	})
	t.Run("ancestry ignores root", func(t *testing.T) {
		reg := NewRegistry(Options{Policy: Policy{Shadow: ShadowAncestry}})
		a := derive(t, reg, "A", nil)
		derive(t, reg, "B", []*Class{a}, method(t, reg, "__init__"))
	})
}

func TestForcedImpliesDeclaredForLegitimacy(t *testing.T) {
	reg := NewRegistry(Options{})
	base := derive(t, reg, "Base", nil, method(t, reg, "run"))
	derive(t, reg, "Sub", []*Class{base}, method(t, reg, "run", MarkerForcedOverride))

	_, err := reg.Derive(Decl{Name: "Bad", Bases: []*Class{base}, Members: []Entry{method(t, reg, "walk", MarkerForcedOverride)}})
	expectRule(t, err, RuleUnjustifiedOverride, "walk")
}

func TestLegitimacyPhaseRunsBeforeFinalPhase(t *testing.T) {
	reg := NewRegistry(Options{})
	base := derive(t, reg, "Base", nil, method(t, reg, "sealed", MarkerFinalized))
	// the first member breaks final, the second legitimacy; legitimacy wins
	_, err := reg.Derive(Decl{
		Name:  "Sub",
		Bases: []*Class{base},
		Members: []Entry{
			method(t, reg, "sealed", MarkerDeclaredOverride),
			method(t, reg, "ghost", MarkerDeclaredOverride),
		},
	})
	expectRule(t, err, RuleUnjustifiedOverride, "ghost")
}

func TestFirstViolationFollowsDeclarationOrder(t *testing.T) {
	reg := NewRegistry(Options{})
	base := derive(t, reg, "Base", nil, method(t, reg, "a"), method(t, reg, "b"))
	for i := 0; i < 5; i++ {
		_, err := reg.Derive(Decl{
			Name:    "Sub" + string(rune('0'+i)),
			Bases:   []*Class{base},
			Members: []Entry{method(t, reg, "b"), method(t, reg, "a")},
		})
		expectRule(t, err, RuleUndeclaredOverride, "b")
	}
}

func TestBaselineNamesNeverNeedDeclaration(t *testing.T) {
	reg := NewRegistry(Options{})
	doc := NewMember("__doc__", KindProperty)
	base := derive(t, reg, "Base", nil, doc)
	derive(t, reg, "Sub", []*Class{base}, method(t, reg, "__doc__"))
}

func TestConfiguredBaselineExtendsDefault(t *testing.T) {
	reg := NewRegistry(Options{Policy: Policy{Baseline: DefaultBaseline.With("__slots__")}})
	base := derive(t, reg, "Base", nil, method(t, reg, "__slots__"))
	derive(t, reg, "Sub", []*Class{base}, method(t, reg, "__slots__"), method(t, reg, "__module__"))
}

func TestRootMembersJustifyOverrides(t *testing.T) {
	reg := NewRegistry(Options{})
	base := derive(t, reg, "Base", nil)
	derive(t, reg, "Sub", []*Class{base}, method(t, reg, "__init__", MarkerDeclaredOverride), method(t, reg, "__repr__"))

	custom := NewRegistry(Options{RootName: "Any", RootMembers: []string{}})
	cb := derive(t, custom, "Base", nil)
	_, err := custom.Derive(Decl{Name: "Sub", Bases: []*Class{cb}, Members: []Entry{method(t, custom, "__init__", MarkerDeclaredOverride)}})
	expectRule(t, err, RuleUnjustifiedOverride, "__init__")
}

func TestLaterBaseWinsInventoryMerge(t *testing.T) {
	reg := NewRegistry(Options{})
	left := derive(t, reg, "Left", nil, method(t, reg, "run"))
	right := derive(t, reg, "Right", nil, method(t, reg, "run"))
	_, err := reg.Derive(Decl{Name: "Both", Bases: []*Class{left, right}, Members: []Entry{method(t, reg, "run")}})
	ie := expectRule(t, err, RuleUndeclaredOverride, "run")
	if ie.Owner != "Right" {
		t.Fatalf("expected later base Right to own run, got %s", ie.Owner)
	}
}

func TestFinalCheckConsultsEveryBase(t *testing.T) {
	reg := NewRegistry(Options{})
	left := derive(t, reg, "Left", nil, method(t, reg, "run"))
	right := derive(t, reg, "Right", nil, method(t, reg, "run", MarkerFinalized))
	_, err := reg.Derive(Decl{Name: "Both", Bases: []*Class{left, right}, Members: []Entry{method(t, reg, "run", MarkerDeclaredOverride)}})
	ie := expectRule(t, err, RuleFinalizedOverride, "run")
	if ie.Base != "Right" {
		t.Fatalf("expected violation through Right, got %s", ie.Base)
	}
}

func TestDataMembersAreInvisibleCandidates(t *testing.T) {
	reg := NewRegistry(Options{})
	base := derive(t, reg, "Base", nil, method(t, reg, "size", MarkerFinalized), NewMember("label", KindData))

	// a data attribute with the same name is not checked
	derive(t, reg, "Shadow", []*Class{base}, NewMember("size", KindData))

	// base data still enters the inventory
	_, err := reg.Derive(Decl{Name: "Sub", Bases: []*Class{base}, Members: []Entry{method(t, reg, "label")}})
	expectRule(t, err, RuleUndeclaredOverride, "label")

	// and justifies a declared override
	derive(t, reg, "Sub2", []*Class{base}, method(t, reg, "label", MarkerDeclaredOverride))
}

func TestInspectorViews(t *testing.T) {
	reg := NewRegistry(Options{})
	a := derive(t, reg, "A", nil, method(t, reg, "run"))
	b := derive(t, reg, "B", []*Class{a}, method(t, reg, "walk"))
	in := Inspect([]*Class{b}, nil, nil)

	names := in.InventoryNames()
	if len(names) != 1 || names[0] != "walk" {
		t.Fatalf("inventory must hold only B's own names, got %v", names)
	}
	if _, ok := in.OwnsDirectly("run"); ok {
		t.Fatalf("run is inherited, not owned by B")
	}
	_, owner, ok := in.ResolveInBase(b, "run")
	if !ok || owner != a {
		t.Fatalf("expected run to resolve to A, got %v %v", owner, ok)
	}
	if _, _, ok := in.ResolveInBase(b, "missing"); ok {
		t.Fatalf("missing name resolved")
	}
	_, owner, ok = in.ResolveInBase(b, "__init__")
	if !ok || !owner.IsRoot() {
		t.Fatalf("expected __init__ to resolve to root")
	}
	if !in.IsBaseline("__module__") || in.IsBaseline("run") {
		t.Fatalf("baseline mismatch")
	}
}
