package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка
	UnknownCode Code = 0

	// Манифест классов
	ManInfo             Code = 1000
	ManParse            Code = 1001
	ManMissingName      Code = 1002
	ManUnknownKind      Code = 1003
	ManUnknownMarker    Code = 1004
	ManDuplicateClass   Code = 1005
	ManRedefinedMember  Code = 1006
	ManUnknownBase      Code = 1007
	ManRejectedBase     Code = 1008
	ManEmptyManifest    Code = 1009
	ManUnknownKey       Code = 1010
	ManOpaqueWithMarker Code = 1011

	// Иерархия
	HierInfo                Code = 3000
	HierUnjustifiedOverride Code = 3001
	HierUndeclaredOverride  Code = 3002
	HierFinalizedOverride   Code = 3003
	HierMarkerAttach        Code = 3004
	HierDuplicateBase       Code = 3005
	HierInconsistentMRO     Code = 3006
	HierDuplicateClass      Code = 3007

	// IO
	IOLoadFileError Code = 4001
	IOCacheError    Code = 4002

	// Проект
	ProjInvalidConfig Code = 5001
)

var (
	codeDescription = map[Code]string{
		UnknownCode:             "Unknown error",
		ManInfo:                 "Manifest information",
		ManParse:                "Malformed class manifest",
		ManMissingName:          "Missing name",
		ManUnknownKind:          "Unknown member kind",
		ManUnknownMarker:        "Unknown marker",
		ManDuplicateClass:       "Duplicate class declaration",
		ManRedefinedMember:      "Member redefined in class body",
		ManUnknownBase:          "Unknown base class",
		ManRejectedBase:         "Base class was rejected",
		ManEmptyManifest:        "Manifest declares no classes",
		ManUnknownKey:           "Unknown manifest key",
		ManOpaqueWithMarker:     "Override claims of an opaque class are never validated",
		HierInfo:                "Hierarchy information",
		HierUnjustifiedOverride: "Override claim without ancestor member",
		HierUndeclaredOverride:  "Shadowing without override declaration",
		HierFinalizedOverride:   "Override of finalized member",
		HierMarkerAttach:        "Marker cannot be attached",
		HierDuplicateBase:       "Duplicate base class",
		HierInconsistentMRO:     "Inconsistent ancestry order",
		HierDuplicateClass:      "Class already defined",
		IOLoadFileError:         "Failed to load file",
		IOCacheError:            "Disk cache failure",
		ProjInvalidConfig:       "Invalid project configuration",
	}

	codeExplanation = map[Code]string{
		HierUnjustifiedOverride: "A member declared with `overrides` or `force_override` must name a member " +
			"reachable through the ancestry of at least one direct base. Remove the marker or fix the name.",
		HierUndeclaredOverride: "A member that replaces a member declared directly by a base class must be " +
			"declared with `overrides`. Shadowing without the marker is treated as accidental.",
		HierFinalizedOverride: "An ancestor declared this member with `final`. Only a member marked " +
			"`force_override` may replace it; `overrides` alone is not enough.",
		HierMarkerAttach: "The member refuses in-place markers (frozen). Only `overrides` has a proxy " +
			"fallback; put `overrides` first or drop the other markers.",
		HierInconsistentMRO: "The bases cannot be ordered so that every class precedes its own bases.",
		ManRejectedBase:     "A class rejected earlier in the file can be neither instantiated nor subclassed.",
	}
)

// Codes returns every known code in ascending order.
func Codes() []Code {
	out := make([]Code, 0, len(codeDescription))
	for c := range codeDescription {
		out = append(out, c)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// ParseCode resolves a code ID such as "HIE3002".
func ParseCode(id string) (Code, bool) {
	for c := range codeDescription {
		if c.ID() == id {
			return c, true
		}
	}
	return UnknownCode, false
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("MAN%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("HIE%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("PRJ%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

// Explain returns the long-form description of the rule behind c, if any.
func (c Code) Explain() string {
	return codeExplanation[c]
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
