package service

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Events emitted by CheckService.
const (
	EventCheckStarted   = "check:started"
	EventCheckFinished  = "check:finished"
	EventConfigReloaded = "config:reloaded"
)

// EventEmitter receives run lifecycle events. Watch mode uses it to print
// reports as scheduled runs complete.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, string, any) {}

// WriterEmitter prints the report of every finished run to W.
type WriterEmitter struct {
	mu sync.Mutex
	W  io.Writer
}

func (e *WriterEmitter) Emit(_ context.Context, event string, data any) {
	rr, ok := data.(*RunResult)
	if event != EventCheckFinished || !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(e.W, "\n[%s] %s (%s)\n", rr.Run.FinishedAt.Format("2006-01-02 15:04:05"), rr.Run.Check, rr.Run.Outcome)
	rr.Report(e.W)
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Recorded returns a copy of the events seen so far.
func (m *MockEmitter) Recorded() []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EmittedEvent(nil), m.Events...)
}
