// Package event implements the typed event bus the build and traversal
// engines publish to: a closed set of event kinds describing the lifecycle
// of one build, fanned out to one or more Sink implementations (a
// console progress reporter, a durable binary log, ...), the way the
// teacher's scheduler reports progress from internal/batch.
package event

import (
	"fmt"
	"time"

	"github.com/distr1/button/internal/buildgraph"
)

// Kind discriminates the closed set of events a build emits.
type Kind uint8

const (
	KindBeginBuild Kind = iota
	KindBeginTask
	KindTaskOutput
	KindEndTask
	KindDelete
	KindChecksumError
	KindEndBuild
)

func (k Kind) String() string {
	switch k {
	case KindBeginBuild:
		return "begin-build"
	case KindBeginTask:
		return "begin-task"
	case KindTaskOutput:
		return "task-output"
	case KindEndTask:
		return "end-task"
	case KindDelete:
		return "delete"
	case KindChecksumError:
		return "checksum-error"
	case KindEndBuild:
		return "end-build"
	default:
		return "unknown"
	}
}

// Event is one entry in the build's event stream. Only the fields relevant
// to Kind are populated; the rest are zero.
type Event struct {
	Kind Kind
	Time time.Time

	// Worker identifies which traversal worker emitted the event, for
	// BeginTask/TaskOutput/EndTask; 0 for events not tied to a worker.
	Worker int

	// Node names the Resource or Task the event concerns, for every kind
	// except BeginBuild/EndBuild.
	Node buildgraph.Node

	// Output carries one chunk of a task's combined stdout/stderr, for
	// TaskOutput only.
	Output []byte

	// Err carries the failure, for EndTask (non-nil on failure) and
	// ChecksumError.
	Err error

	// Total/Done report aggregate progress, for BeginBuild/EndBuild.
	Total, Done int
}

func (e Event) String() string {
	switch e.Kind {
	case KindBeginBuild:
		return fmt.Sprintf("begin build: %d node(s)", e.Total)
	case KindBeginTask:
		return fmt.Sprintf("begin: %s", e.Node)
	case KindTaskOutput:
		return fmt.Sprintf("output: %s: %q", e.Node, e.Output)
	case KindEndTask:
		if e.Err != nil {
			return fmt.Sprintf("failed: %s: %v", e.Node, e.Err)
		}
		return fmt.Sprintf("done: %s", e.Node)
	case KindDelete:
		return fmt.Sprintf("delete: %s", e.Node)
	case KindChecksumError:
		return fmt.Sprintf("checksum error: %s: %v", e.Node, e.Err)
	case KindEndBuild:
		if e.Err != nil {
			return fmt.Sprintf("end build: %d/%d done: %v", e.Done, e.Total, e.Err)
		}
		return fmt.Sprintf("end build: %d/%d done", e.Done, e.Total)
	default:
		return "unknown event"
	}
}

// Sink receives events as they are published. Handle must not block the
// publisher for long; sinks that do expensive work (writing to disk,
// redrawing a terminal) should buffer internally.
type Sink interface {
	Handle(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Handle(e Event) { f(e) }

// busQueueDepth is the event channel's buffer: large enough that a
// publishing traversal worker essentially never blocks on a slow sink
// (zstd-compressing the log, redrawing the console) catching up.
const busQueueDepth = 4096

// Bus fans out published events to every registered Sink, in publish
// order, on a single dedicated dispatcher goroutine — a multi-producer,
// single-consumer channel, the same shape as the teacher's event pipeline
// but generalized from one scheduler to an arbitrary set of sinks. This is
// what lets a slow sink never block a traversal worker: Publish only
// enqueues, it never runs a Sink's Handle itself.
type Bus struct {
	sinks []Sink
	ch    chan Event
	done  chan struct{}
}

// NewBus returns a Bus delivering to sinks, in order, for every event, and
// starts its dispatcher goroutine.
func NewBus(sinks ...Sink) *Bus {
	b := &Bus{sinks: sinks, ch: make(chan Event, busQueueDepth), done: make(chan struct{})}
	go b.dispatch()
	return b
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for e := range b.ch {
		for _, s := range b.sinks {
			s.Handle(e)
		}
	}
}

// Publish enqueues e for the dispatcher goroutine and returns without
// waiting for any sink to handle it.
func (b *Bus) Publish(e Event) {
	b.ch <- e
}

// Close stops the bus from accepting further events and blocks until the
// dispatcher has finished delivering every event already published, so a
// caller that Closes the bus before reading a log/state file is
// guaranteed to see every event that preceded the Close call.
func (b *Bus) Close() {
	close(b.ch)
	<-b.done
}
