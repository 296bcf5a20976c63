package main

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"strictparent/internal/driver"
	"strictparent/internal/ui"
)

type checkOutcome struct {
	result *driver.Result
	err    error
}

// runCheckWithUI checks dir while a progress view renders events to out.
func runCheckWithUI(ctx context.Context, out io.Writer, title, dir string, files []string, opts driver.Options) (*driver.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan driver.Event, 256)
	outcomeCh := make(chan checkOutcome, 1)

	go func() {
		o := opts
		o.Sink = driver.ChannelSink{Ch: events}
		res, err := driver.CheckDir(ctx, dir, o)
		close(events)
		outcomeCh <- checkOutcome{result: res, err: err}
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(out), tea.WithContext(ctx))
	_, uiErr := program.Run()
	uiFailed := uiErr != nil && ctx.Err() == nil

	// the UI may quit first (Ctrl+C): cancel the check and drain events
	cancel()
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if outcome.err != nil {
		return outcome.result, outcome.err
	}
	if uiFailed {
		return outcome.result, uiErr
	}
	return outcome.result, nil
}
