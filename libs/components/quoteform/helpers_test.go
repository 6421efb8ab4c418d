package quoteform

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func validFields() map[string]string {
	return map[string]string{
		"fullName":        "Jane Doe",
		"email":           "jane@example.com",
		"phone":           "5551234",
		"serviceInterest": "Directional Boring",
		"projectType":     "Commercial",
		"timeline":        "1-3 months",
		"location":        "Baton Rouge, LA",
		"message":         "Need a quote",
	}
}

func validRecord(t *testing.T) Record {
	t.Helper()
	r, err := RecordFromMap(validFields())
	if err != nil {
		t.Fatalf("build valid record: %v", err)
	}
	return r
}

func validStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	if err := s.SetFields(validFields()); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return s
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// fakeTimers captures scheduled resets so tests decide when time passes.
type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) Timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{delay: d, fn: f}
	ft.timers = append(ft.timers, t)
	return &fakeTimerHandle{owner: ft, timer: t}
}

type fakeTimerHandle struct {
	owner *fakeTimers
	timer *fakeTimer
}

func (h *fakeTimerHandle) Stop() bool {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()
	active := !h.timer.stopped && !h.timer.fired
	h.timer.stopped = true
	return active
}

// active returns the delays of timers that have neither fired nor been stopped.
func (ft *fakeTimers) active() []time.Duration {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	var out []time.Duration
	for _, t := range ft.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.delay)
		}
	}
	return out
}

func (ft *fakeTimers) fire() {
	ft.mu.Lock()
	var due []func()
	for _, t := range ft.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t.fn)
		}
	}
	ft.mu.Unlock()
	for _, fn := range due {
		fn()
	}
}

type sendResult struct {
	ack Ack
	err error
}

// gateSender blocks every Send until the test releases a result.
type gateSender struct {
	calls   atomic.Int32
	release chan sendResult
}

func newGateSender() *gateSender {
	return &gateSender{release: make(chan sendResult, 1)}
}

func (g *gateSender) Send(ctx context.Context, _ Record) (Ack, error) {
	g.calls.Add(1)
	select {
	case res := <-g.release:
		return res.ack, res.err
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	invalid  [][]string
	opened   int
	closed   int
}

func (o *recordingObserver) SubmissionFinished(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) ValidationFailed(fields []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.invalid = append(o.invalid, fields)
}

func (o *recordingObserver) SessionOpened() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened++
}

func (o *recordingObserver) SessionClosed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
}

func (o *recordingObserver) snapshot() (outcomes []string, invalid [][]string, opened, closed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.outcomes...), append([][]string(nil), o.invalid...), o.opened, o.closed
}
