package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
)

var kindNames = [...]string{KindSpanBegin: "begin", KindSpanEnd: "end", KindPoint: "point"}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Scope is the granularity of an event. Coarser scopes have lower values.
type Scope uint8

const (
	// ScopeDriver covers a whole check run.
	ScopeDriver Scope = iota + 1
	// ScopePass covers pipeline phases: discover, load, parse, derive.
	ScopePass
	// ScopeFile covers one manifest.
	ScopeFile
	// ScopeClass covers the derivation of one class.
	ScopeClass
)

var scopeNames = [...]string{ScopeDriver: "driver", ScopePass: "pass", ScopeFile: "file", ScopeClass: "class"}

func (s Scope) String() string {
	if int(s) < len(scopeNames) && scopeNames[s] != "" {
		return scopeNames[s]
	}
	return "unknown"
}

// Event is a single trace record. File and Class name the manifest and
// class being checked when the event was emitted, if any.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	File     string
	Class    string
	Name     string
	Detail   string
	Extra    map[string]string
}
