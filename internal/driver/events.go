package driver

import "time"

// Stage describes a high-level check phase.
type Stage string

const (
	// StageDiscover is the manifest discovery stage.
	StageDiscover Stage = "discover"
	// StageLoad reads manifest files from disk.
	StageLoad Stage = "load"
	// StageParse decodes one manifest.
	StageParse Stage = "parse"
	// StageDerive derives and validates the classes of one manifest.
	StageDerive Stage = "derive"
	// StageCache is reported when a verdict comes from the disk cache.
	StageCache Stage = "cache"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the file is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the file is currently being checked.
	StatusWorking Status = "working"
	// StatusDone indicates the file passed.
	StatusDone Status = "done"
	// StatusError indicates the file has error diagnostics or failed to load.
	StatusError Status = "error"
)

// Event reports progress for a file (or for the whole run when File is empty).
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
	// Classes is the number of classes derived so far (StageDerive only).
	Classes int
}

// ProgressSink consumes progress events. Implementations must be safe for
// concurrent use; CheckDir emits from worker goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(Event)

func (f SinkFunc) OnEvent(evt Event) {
	if f != nil {
		f(evt)
	}
}

func emit(sink ProgressSink, evt Event) {
	if sink != nil {
		sink.OnEvent(evt)
	}
}
