// Package trace collects dispatch events emitted by a vm.VM. A Recorder
// keeps the most recent events in memory; a Store persists them to SQLite
// so redirect statistics can be queried after the run.
package trace

import (
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/virtualmethods/vm"
)

var log = commonlog.GetLogger("virtualmethods.trace")

// DefaultBuffer is the Recorder capacity used when none is given.
const DefaultBuffer = 4096

// Recorder is a fixed-size ring of the most recent events. It is safe for
// concurrent use.
type Recorder struct {
	mu      sync.Mutex
	buf     []vm.Event
	next    int
	full    bool
	dropped uint64
}

// NewRecorder returns a Recorder holding at most size events. A
// non-positive size selects DefaultBuffer.
func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &Recorder{buf: make([]vm.Event, size)}
}

// Record implements vm.Tracer.
func (r *Recorder) Record(e vm.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		r.dropped++
	}
	r.buf[r.next] = e
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// Events returns the buffered events, oldest first.
func (r *Recorder) Events() []vm.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]vm.Event(nil), r.buf[:r.next]...)
	}
	out := make([]vm.Event, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// Len returns the number of buffered events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Dropped returns how many events were overwritten.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Reset discards all buffered events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.buf)
	r.next = 0
	r.full = false
	r.dropped = 0
}

// Redirects returns the buffered events that were bound to the calling
// class's view.
func (r *Recorder) Redirects() []vm.Event {
	var out []vm.Event
	for _, e := range r.Events() {
		if e.Redirected() {
			out = append(out, e)
		}
	}
	return out
}

// Tee fans each event out to every non-nil tracer in order.
func Tee(tracers ...vm.Tracer) vm.Tracer {
	var live []vm.Tracer
	for _, t := range tracers {
		if t != nil {
			live = append(live, t)
		}
	}
	if len(live) == 1 {
		return live[0]
	}
	return vm.TracerFunc(func(e vm.Event) {
		for _, t := range live {
			t.Record(e)
		}
	})
}
