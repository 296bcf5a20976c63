// Package hier models class hierarchies and enforces override discipline on them.
//
// A class body is a list of entries (members or marker proxies). Members are
// annotated against a Store with Final, Overrides and ForceOverride before the
// class is derived. Registry.Derive then runs two ordered checks:
//
//   - override legitimacy: a member declared as an override must be reachable
//     through the ancestry of some direct base, and a member that shadows a
//     name owned by a direct base must be declared as an override;
//   - final violation: a member may not replace a finalized ancestor member
//     unless it carries a forced override.
//
// The first violation rejects the class; a rejected class is never returned
// and cannot be used as a base.
//
//	reg := hier.NewRegistry(hier.Options{})
//	speak, _ := reg.Store().Final(hier.NewMember("speak", hier.KindMethod))
//	animal, _ := reg.Derive(hier.Decl{Name: "Animal", Members: []hier.Entry{speak}})
//	bark, _ := reg.Store().ForceOverride(hier.NewMember("speak", hier.KindMethod))
//	_, err := reg.Derive(hier.Decl{Name: "Dog", Bases: []*hier.Class{animal}, Members: []hier.Entry{bark}})
package hier
