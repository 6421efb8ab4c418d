package quoteform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the phase of the submission lifecycle.
type Status int

const (
	Idle Status = iota
	Submitting
	Success
	Error
)

var statusNames = [...]string{
	Idle:       "idle",
	Submitting: "submitting",
	Success:    "success",
	Error:      "error",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrorPolicy decides what happens after a failed send.
type ErrorPolicy int

const (
	// ErrorStays keeps the Error status until the user edits a field or retries.
	ErrorStays ErrorPolicy = iota
	// ErrorAutoReset returns to Idle after the reset delay. The record is kept.
	ErrorAutoReset
)

// ParseErrorPolicy accepts "stay" or "reset".
func ParseErrorPolicy(value string) (ErrorPolicy, error) {
	switch value {
	case "", "stay", "stays":
		return ErrorStays, nil
	case "reset", "auto-reset", "autoreset":
		return ErrorAutoReset, nil
	default:
		return ErrorStays, fmt.Errorf("unknown error policy %q", value)
	}
}

// DefaultResetDelay is how long Success stays visible.
const DefaultResetDelay = 3 * time.Second

// DefaultCloseWait bounds how long Close waits for an in-flight send.
const DefaultCloseWait = 5 * time.Second

const defaultRetryBackoff = 500 * time.Millisecond

// Observer receives lifecycle events, typically to feed metrics.
type Observer interface {
	SubmissionFinished(outcome string, elapsed time.Duration)
	ValidationFailed(fields []string)
	SessionOpened()
	SessionClosed()
}

type nopObserver struct{}

func (nopObserver) SubmissionFinished(string, time.Duration) {}
func (nopObserver) ValidationFailed([]string)               {}
func (nopObserver) SessionOpened()                          {}
func (nopObserver) SessionClosed()                          {}

// Timer is the part of *time.Timer the controller relies on.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Snapshot is the observable state of a controller.
type Snapshot struct {
	Status    Status
	Record    Record
	Errors    ValidationErrors
	LastError *SubmissionError
	Ack       *Ack
	Revision  uint64
}

// Outcome is the result of one Submit call.
type Outcome struct {
	Status    Status
	Ack       *Ack
	Errors    ValidationErrors
	Err       error
	Duplicate bool
}

type options struct {
	resetDelay   time.Duration
	policy       ErrorPolicy
	timeout      time.Duration
	retries      int
	retryBackoff time.Duration
	closeWait    time.Duration
	observer     Observer
	log          *zap.Logger
	afterFunc    AfterFunc
}

// Option configures a Controller.
type Option func(*options)

// WithResetDelay sets how long Success (and Error under ErrorAutoReset) is shown.
func WithResetDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.resetDelay = d
		}
	}
}

// WithErrorPolicy selects the behaviour after a failed send.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithSendTimeout bounds every send attempt. Zero waits indefinitely.
func WithSendTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.timeout = d
		}
	}
}

// WithRetries allows n automatic retries after a failed attempt.
func WithRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// WithRetryBackoff sets the base pause between attempts; attempt k waits k times it.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.retryBackoff = d
		}
	}
}

// WithCloseWait bounds how long Close waits for the sender to return after
// cancelling it. Zero returns immediately. A send still running afterwards has
// its result discarded.
func WithCloseWait(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.closeWait = d
		}
	}
}

// WithObserver attaches lifecycle hooks.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithAfterFunc replaces time.AfterFunc, mostly for tests.
func WithAfterFunc(fn AfterFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.afterFunc = fn
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		resetDelay:   DefaultResetDelay,
		policy:       ErrorStays,
		retryBackoff: defaultRetryBackoff,
		closeWait:    DefaultCloseWait,
		observer:     nopObserver{},
		log:          zap.NewNop(),
		afterFunc:    realAfterFunc,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Controller drives the submission lifecycle of one form session.
type Controller struct {
	store  *Store
	sender Sender
	opts   options

	mu       sync.Mutex
	status   Status
	errs     ValidationErrors
	lastErr  *SubmissionError
	ack      *Ack
	errRev   uint64
	gen      uint64
	cancel   context.CancelFunc
	timer    Timer
	closed   bool
	subs     map[int]func(Snapshot)
	nextSub  int
	inflight sync.WaitGroup
}

// NewController builds a controller over store that delivers through sender.
func NewController(store *Store, sender Sender, opts ...Option) *Controller {
	if store == nil {
		store = NewStore()
	}
	return &Controller{
		store:  store,
		sender: sender,
		opts:   newOptions(opts),
		subs:   make(map[int]func(Snapshot)),
	}
}

// Store returns the record store the controller submits from.
func (c *Controller) Store() *Store {
	return c.store
}

// Submit validates the current record and, when valid, starts the send in
// the background. It never blocks on the send. The returned channel receives
// exactly one Outcome and is then closed.
//
// ctx only supplies values to the send; cancelling it does not abort the
// send. Close does.
func (c *Controller) Submit(ctx context.Context) <-chan Outcome {
	out := make(chan Outcome, 1)

	c.mu.Lock()
	if c.closed {
		status := c.status
		c.mu.Unlock()
		out <- Outcome{Status: status, Err: ErrSessionClosed}
		close(out)
		return out
	}
	c.settleLocked()

	if c.status == Submitting || c.status == Success {
		status := c.status
		c.mu.Unlock()
		c.opts.log.Debug("submit ignored", zap.Stringer("status", status))
		out <- Outcome{Status: status, Duplicate: true}
		close(out)
		return out
	}

	record := c.store.Snapshot()
	result := Validate(record)
	if !result.OK() {
		c.errs = result.Errors()
		status := c.status
		snap := c.snapshotLocked()
		c.mu.Unlock()

		c.opts.observer.ValidationFailed(snap.Errors.Fields())
		c.opts.log.Info("submission rejected", zap.Strings("fields", snap.Errors.Fields()))
		c.notify(snap)
		out <- Outcome{Status: status, Errors: snap.Errors, Err: result.Err()}
		close(out)
		return out
	}

	c.stopTimerLocked()
	c.gen++
	gen := c.gen
	c.status = Submitting
	c.errs = nil
	c.lastErr = nil
	c.ack = nil

	if ctx == nil {
		ctx = context.Background()
	}
	sendCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.inflight.Add(1)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	go c.run(sendCtx, cancel, gen, record, out)
	return out
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, gen uint64, record Record, out chan<- Outcome) {
	defer c.inflight.Done()
	defer close(out)
	defer cancel()

	started := time.Now()
	ack, attempts, err := c.send(ctx, record)
	elapsed := time.Since(started)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		status := c.status
		c.mu.Unlock()
		c.opts.log.Debug("discarding late send result", zap.Error(err))
		out <- Outcome{Status: status, Err: ErrSessionClosed}
		return
	}
	c.cancel = nil

	var outcome Outcome
	if err == nil {
		c.status = Success
		c.ack = &ack
		c.timer = c.opts.afterFunc(c.opts.resetDelay, func() { c.expire(gen, Success) })
		outcome = Outcome{Status: Success, Ack: &ack}
	} else {
		c.status = Error
		c.lastErr = &SubmissionError{Cause: err, Attempts: attempts}
		c.errRev = c.store.Revision()
		if c.opts.policy == ErrorAutoReset {
			c.timer = c.opts.afterFunc(c.opts.resetDelay, func() { c.expire(gen, Error) })
		}
		outcome = Outcome{Status: Error, Err: c.lastErr}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if err == nil {
		c.opts.observer.SubmissionFinished("success", elapsed)
		c.opts.log.Info("submission sent",
			zap.String("ack", ack.ID),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", elapsed),
		)
	} else {
		c.opts.observer.SubmissionFinished("error", elapsed)
		c.opts.log.Warn("submission failed",
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	}
	c.notify(snap)
	out <- outcome
}

func (c *Controller) send(ctx context.Context, record Record) (Ack, int, error) {
	if c.sender == nil {
		return Ack{}, 1, errors.New("no sender configured")
	}
	for attempt := 1; ; attempt++ {
		ack, err := c.attempt(ctx, record)
		if err == nil {
			return ack, attempt, nil
		}
		if attempt > c.opts.retries || ctx.Err() != nil {
			return Ack{}, attempt, err
		}

		wait := c.opts.retryBackoff * time.Duration(attempt)
		c.opts.log.Warn("send attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Ack{}, attempt, err
		case <-timer.C:
		}
	}
}

func (c *Controller) attempt(parent context.Context, record Record) (ack Ack, err error) {
	ctx := parent
	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, c.opts.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			ack, err = Ack{}, fmt.Errorf("sender panicked: %v", r)
		}
	}()

	ack, err = c.sender.Send(ctx, record)
	if err != nil && parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", errSendTimeout, c.opts.timeout, err)
	}
	return ack, err
}

func (c *Controller) expire(gen uint64, from Status) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.status != from {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if from == Success {
		c.store.Reset()
		c.ack = nil
	}
	c.status = Idle
	c.lastErr = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.opts.log.Debug("status reset", zap.Stringer("from", from))
	c.notify(snap)
}

// SetField updates one field. Editing clears a visible Error.
func (c *Controller) SetField(name, value string) error {
	if err := c.store.SetField(name, value); err != nil {
		return err
	}
	c.edited()
	return nil
}

// SetFields updates several fields at once; see Store.SetFields.
func (c *Controller) SetFields(values map[string]string) error {
	if err := c.store.SetFields(values); err != nil {
		return err
	}
	c.edited()
	return nil
}

func (c *Controller) edited() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	before := c.status
	c.settleLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if before != snap.Status {
		c.notify(snap)
	}
}

// settleLocked leaves Error once the record changed since the failure.
func (c *Controller) settleLocked() {
	if c.status == Error && c.store.Revision() != c.errRev {
		c.stopTimerLocked()
		c.status = Idle
		c.lastErr = nil
	}
}

// Reset clears the record and returns to Idle. It is refused while a send is
// in flight.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	if c.status == Submitting {
		c.mu.Unlock()
		return ErrSubmitting
	}
	c.stopTimerLocked()
	c.gen++
	c.store.Reset()
	c.status = Idle
	c.errs = nil
	c.lastErr = nil
	c.ack = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// Close tears the controller down. It cancels an in-flight send, stops any
// pending reset and waits up to the close wait for the send goroutine to
// return. No state changes after Close.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	c.stopTimerLocked()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.subs = make(map[int]func(Snapshot))
	c.mu.Unlock()

	c.waitInflight()
}

func (c *Controller) waitInflight() {
	if c.opts.closeWait <= 0 {
		return
	}
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	timer := time.NewTimer(c.opts.closeWait)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		c.opts.log.Warn("sender still running after close, abandoning its result",
			zap.Duration("waited", c.opts.closeWait))
	}
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// State returns the current observable state.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.settleLocked()
	}
	return c.snapshotLocked()
}

// Subscribe registers fn for every state change. Snapshots are delivered
// synchronously from the goroutine that caused the change; fn must not call
// back into mutating controller methods.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify(snap Snapshot) {
	c.mu.Lock()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:   c.status,
		Record:   c.store.Snapshot(),
		Errors:   append(ValidationErrors(nil), c.errs...),
		Revision: c.store.Revision(),
	}
	if c.lastErr != nil {
		copied := *c.lastErr
		snap.LastError = &copied
	}
	if c.ack != nil {
		copied := *c.ack
		snap.Ack = &copied
	}
	return snap
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
