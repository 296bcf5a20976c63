package ui

import (
	"strings"
	"testing"
	"time"

	"strictparent/internal/driver"
)

func newTestModel(files ...string) *progressModel {
	return NewProgressModel("checking", files, make(chan driver.Event)).(*progressModel)
}

func TestApplyEventStatuses(t *testing.T) {
	m := newTestModel("a.classes.toml", "b.classes.toml")

	m.applyEvent(driver.Event{File: "a.classes.toml", Stage: driver.StageDerive, Status: driver.StatusWorking, Classes: 3})
	if got := m.items[0].status; got != "deriving" {
		t.Fatalf("status = %q, want deriving", got)
	}
	if got := m.items[0].detail(); got != "  3 classes" {
		t.Errorf("detail = %q", got)
	}

	m.applyEvent(driver.Event{File: "a.classes.toml", Stage: driver.StageDerive, Status: driver.StatusError, Classes: 3, Elapsed: 2 * time.Millisecond})
	m.applyEvent(driver.Event{File: "b.classes.toml", Stage: driver.StageCache, Status: driver.StatusDone})
	if m.items[0].status != "failed" || m.items[1].status != "cached" {
		t.Fatalf("unexpected statuses: %+v", m.items)
	}
	if m.failed != 1 || m.finished() != 2 {
		t.Errorf("failed=%d finished=%d", m.failed, m.finished())
	}
	if m.percent() != 1.0 {
		t.Errorf("percent = %v, want 1", m.percent())
	}

	// final statuses stick
	m.applyEvent(driver.Event{File: "a.classes.toml", Stage: driver.StageParse, Status: driver.StatusWorking})
	if m.items[0].status != "failed" {
		t.Errorf("final status overwritten: %q", m.items[0].status)
	}
	// unknown files are ignored
	if cmd := m.applyEvent(driver.Event{File: "c.classes.toml", Status: driver.StatusDone}); cmd != nil {
		t.Error("unknown file should be ignored")
	}
}

func TestPercentFromStages(t *testing.T) {
	m := newTestModel("a", "b")
	m.applyEvent(driver.Event{File: "a", Stage: driver.StageParse, Status: driver.StatusWorking})
	if got, want := m.percent(), 0.15; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("percent = %v, want %v", got, want)
	}
}

func TestViewAfterDone(t *testing.T) {
	m := newTestModel("a.classes.toml")
	m.applyEvent(driver.Event{File: "a.classes.toml", Stage: driver.StageDerive, Status: driver.StatusDone, Classes: 2, Elapsed: time.Millisecond})
	m.Update(doneMsg{})
	view := m.View()
	for _, want := range []string{"done: checking (1/1)", "a.classes.toml", "ok", "2 classes"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}
