package event

import (
	"encoding/gob"
	"io"
	"os"
	"sync"
	"time"

	"github.com/distr1/button/internal/buildgraph"
	"github.com/distr1/button/internal/task"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/xerrors"
)

func init() {
	gob.Register(task.Command{})
	gob.Register(task.BatchScript{})
	gob.Register(task.Download{})
	gob.Register(task.Mkdir{})
	gob.Register(task.Copy{})
	gob.Register(task.List{})
}

// record is the gob-encoded form of one Event. Err is flattened to a
// string since error is not itself gob-encodable in general.
type record struct {
	Kind   Kind
	Time   time.Time
	Worker int
	Node   buildgraph.Node
	Output []byte
	ErrMsg string
	Total  int
	Done   int
}

func toRecord(e Event) record {
	r := record{
		Kind:   e.Kind,
		Time:   e.Time,
		Worker: e.Worker,
		Node:   e.Node,
		Output: e.Output,
		Total:  e.Total,
		Done:   e.Done,
	}
	if e.Err != nil {
		r.ErrMsg = e.Err.Error()
	}
	return r
}

func fromRecord(r record) Event {
	e := Event{
		Kind:   r.Kind,
		Time:   r.Time,
		Worker: r.Worker,
		Node:   r.Node,
		Output: r.Output,
		Total:  r.Total,
		Done:   r.Done,
	}
	if r.ErrMsg != "" {
		e.Err = xerrors.New(r.ErrMsg)
	}
	return e
}

// Log is a durable binary record of every event published during one
// build, written one record at a time as Handle is called rather than
// buffered until Close: a build killed mid-write (SIGKILL, OOM) leaves a
// log readable up through its last flushed record instead of losing the
// whole thing, matching the original logger's header-then-stream format.
//
// Unlike state.Save, Log does not go through renameio's temp-file-then-
// rename: that pattern atomically replaces a single finished blob, but a
// log's whole point is to be readable while still being written, so it
// opens and writes its final path directly.
type Log struct {
	mu   sync.Mutex
	path string
	f    *os.File
	zw   *zstd.Encoder
	enc  *gob.Encoder
	err  error // first write error; subsequent Handle calls become no-ops
}

// NewLog creates (truncating any existing file) the log at path, writes
// its header, and returns a Log ready for Handle calls.
func NewLog(path string) (*Log, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, xerrors.Errorf("event: create log %s: %w", path, err)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, xerrors.Errorf("event: create zstd writer: %w", err)
	}
	l := &Log{path: path, f: f, zw: zw, enc: gob.NewEncoder(zw)}

	// The header is a single timestamp, serialized once up front, the way
	// the original logger always writes the moment of its own construction
	// before any events arrive.
	if err := l.enc.Encode(time.Now()); err != nil {
		zw.Close()
		f.Close()
		return nil, xerrors.Errorf("event: write log header: %w", err)
	}
	if err := zw.Flush(); err != nil {
		zw.Close()
		f.Close()
		return nil, xerrors.Errorf("event: flush log header: %w", err)
	}
	return l, nil
}

// Handle encodes e as one record and flushes it to disk immediately, so
// it survives a crash before the log is ever Close'd.
func (l *Log) Handle(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return
	}
	if err := l.enc.Encode(toRecord(e)); err != nil {
		l.err = err
		return
	}
	if err := l.zw.Flush(); err != nil {
		l.err = err
	}
}

// Close finalizes the log's compressed stream and closes the underlying
// file. It reports the first error encountered by any Handle call, if
// one occurred, ahead of any error closing the stream itself.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	closeErr := l.zw.Close()
	fileErr := l.f.Close()

	if l.err != nil {
		return xerrors.Errorf("event: write log record: %w", l.err)
	}
	if closeErr != nil {
		return xerrors.Errorf("event: close zstd writer for %s: %w", l.path, closeErr)
	}
	if fileErr != nil {
		return xerrors.Errorf("event: close log %s: %w", l.path, fileErr)
	}
	return nil
}

// ReadLog loads every event recorded at path, in publish order, stopping
// cleanly at the first record it cannot decode (a clean EOF after the
// last complete record, or a truncated final record left behind by a
// build that never reached Close).
func ReadLog(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("event: open log %s: %w", path, err)
	}
	defer f.Close()
	return decodeLog(f)
}

func decodeLog(r io.Reader) ([]Event, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, xerrors.Errorf("event: create zstd reader: %w", err)
	}
	defer zr.Close()
	dec := gob.NewDecoder(zr)

	var start time.Time
	if err := dec.Decode(&start); err != nil {
		return nil, xerrors.Errorf("event: read log header: %w", err)
	}

	var events []Event
	for {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			break
		}
		events = append(events, fromRecord(rec))
	}
	return events, nil
}

// Replay re-publishes a previously recorded event stream to sinks, in
// order. When realtime is true, Replay sleeps between events by the
// originally observed timestamp delta, reproducing the build's pacing for
// a human watching it rather than firing the whole log instantaneously.
func Replay(events []Event, sinks []Sink, realtime bool) {
	bus := NewBus(sinks...)
	defer bus.Close()
	var last time.Time
	for i, e := range events {
		if realtime && i > 0 && !last.IsZero() && !e.Time.IsZero() {
			if d := e.Time.Sub(last); d > 0 {
				time.Sleep(d)
			}
		}
		if !e.Time.IsZero() {
			last = e.Time
		}
		bus.Publish(e)
	}
}
