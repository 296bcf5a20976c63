// Package trace records what a check run is doing, to diagnose slow or
// hanging runs over large manifest trees. It doubles as the tool's debug
// log: there is no other logger.
//
//	strictparent --trace=- --trace-level=detail check ./classes
//
// StreamTracer writes events as they happen, RingTracer keeps the last N
// in memory and is dumped when the process panics, MultiTracer feeds both.
// Nop is used when tracing is off.
//
// LevelPhase emits ScopeDriver and ScopePass events. LevelDetail adds one
// span per manifest, LevelDebug one span per derived class. Spans opened
// with StartFile and StartClass tag every nested event with the manifest
// path and class name.
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.StartFile(ctx, path)
//	defer span.End("")
package trace
