package quoteform

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSessionManagerLifecycle(t *testing.T) {
	obs := &recordingObserver{}
	mgr := NewSessionManager(okSender("x"), WithSessionObserver(obs))
	defer mgr.Shutdown()

	session, err := mgr.Create(map[string]string{"fullName": "Jane Doe"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID())
	assert.Equal(t, "Jane Doe", session.Controller().State().Record.Get(FullName))
	assert.Equal(t, 1, mgr.Len())

	got, err := mgr.Get(session.ID())
	require.NoError(t, err)
	assert.Same(t, session, got)

	require.NoError(t, mgr.Close(session.ID()))
	assert.Equal(t, 0, mgr.Len())
	assert.True(t, session.Controller().Closed())

	_, err = mgr.Get(session.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, mgr.Close(session.ID()), ErrSessionNotFound)

	_, _, opened, closed := obs.snapshot()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestSessionManagerRejectsUnknownInitialField(t *testing.T) {
	mgr := NewSessionManager(okSender("x"))
	defer mgr.Shutdown()

	_, err := mgr.Create(map[string]string{"fullName": "Jane", "shoeSize": "9"})
	var unknown *UnknownFieldError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "shoeSize", unknown.Name)
	assert.Equal(t, 0, mgr.Len())
}

func TestSessionsAreIndependent(t *testing.T) {
	mgr := NewSessionManager(okSender("x"))
	defer mgr.Shutdown()

	a, err := mgr.Create(nil)
	require.NoError(t, err)
	b, err := mgr.Create(nil)
	require.NoError(t, err)
	require.NotEqual(t, a.ID(), b.ID())

	require.NoError(t, a.Controller().SetField("fullName", "Jane"))
	assert.Equal(t, "", b.Controller().State().Record.Get(FullName))
}

func TestSweepClosesIdleSessions(t *testing.T) {
	clock := &manualClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	sender := newGateSender()
	mgr := NewSessionManager(sender, WithSessionTTL(10*time.Minute), WithClock(clock.Now))
	defer mgr.Shutdown()

	stale, err := mgr.Create(validFields())
	require.NoError(t, err)
	results := stale.Controller().Submit(context.Background())

	clock.Advance(6 * time.Minute)
	fresh, err := mgr.Create(nil)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, mgr.Sweep())
	assert.Equal(t, 1, mgr.Len())

	out := <-results
	assert.ErrorIs(t, out.Err, ErrSessionClosed, "in-flight send of an expired session is discarded")

	_, err = mgr.Get(fresh.ID())
	assert.NoError(t, err)
	_, err = mgr.Get(stale.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSweepDisabledWithoutTTL(t *testing.T) {
	clock := &manualClock{now: time.Now()}
	mgr := NewSessionManager(okSender("x"), WithSessionTTL(0), WithClock(clock.Now))
	defer mgr.Shutdown()

	_, err := mgr.Create(nil)
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	assert.Zero(t, mgr.Sweep())
	assert.Equal(t, 1, mgr.Len())
}

func TestRunClosesSessionsOnShutdown(t *testing.T) {
	mgr := NewSessionManager(okSender("x"), WithSessionTTL(time.Hour))
	_, err := mgr.Create(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
	assert.Equal(t, 0, mgr.Len())
}

func TestSessionLoggerSurvivesControllerLoggerOption(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	mgr := NewSessionManager(okSender("ack-1"),
		WithSessionLogger(zap.New(core)),
		WithControllerOptions(WithLogger(zap.NewNop()), WithAfterFunc((&fakeTimers{}).AfterFunc)),
	)
	t.Cleanup(mgr.Shutdown)

	session, err := mgr.Create(validFields())
	require.NoError(t, err)
	require.Equal(t, Success, (<-session.Controller().Submit(context.Background())).Status)

	sent := logs.FilterMessage("submission sent").All()
	require.Len(t, sent, 1)
	assert.Equal(t, session.ID(), sent[0].ContextMap()["session"])
}
