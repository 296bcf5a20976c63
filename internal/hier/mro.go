package hier

import (
	"strings"
)

// linearize computes the C3 linearization for a class with the given bases.
// The implicit root (when non-nil) ends every chain.
// On conflict it returns nil and the names of the heads that could not be ordered.
func linearize(c *Class, bases []*Class, root *Class) ([]*Class, []string) {
	if len(bases) == 0 {
		if root == nil || root == c {
			return []*Class{c}, nil
		}
		return []*Class{c, root}, nil
	}

	seqs := make([][]*Class, 0, len(bases)+1)
	for _, b := range bases {
		seqs = append(seqs, append([]*Class(nil), b.mro...))
	}
	seqs = append(seqs, append([]*Class(nil), bases...))

	out := []*Class{c}
	for {
		seqs = dropEmpty(seqs)
		if len(seqs) == 0 {
			return out, nil
		}
		var head *Class
		for _, seq := range seqs {
			cand := seq[0]
			if !inAnyTail(cand, seqs) {
				head = cand
				break
			}
		}
		if head == nil {
			return nil, pendingHeads(seqs)
		}
		out = append(out, head)
		for i, seq := range seqs {
			if seq[0] == head {
				seqs[i] = seq[1:]
			}
		}
	}
}

func dropEmpty(seqs [][]*Class) [][]*Class {
	out := seqs[:0]
	for _, s := range seqs {
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func inAnyTail(c *Class, seqs [][]*Class) bool {
	for _, s := range seqs {
		for _, k := range s[1:] {
			if k == c {
				return true
			}
		}
	}
	return false
}

func pendingHeads(seqs [][]*Class) []string {
	seen := make(map[*Class]bool, len(seqs))
	names := make([]string, 0, len(seqs))
	for _, s := range seqs {
		if seen[s[0]] {
			continue
		}
		seen[s[0]] = true
		names = append(names, s[0].name)
	}
	return names
}

func formatMRO(mro []*Class) string {
	names := make([]string, len(mro))
	for i, c := range mro {
		names[i] = c.name
	}
	return strings.Join(names, " -> ")
}

// Ancestry renders the linearized ancestry, e.g. "Dog -> Animal -> object".
func (c *Class) Ancestry() string {
	return formatMRO(c.mro)
}
