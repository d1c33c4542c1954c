package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meandu-go/internal/events"
)

type fakeSession struct {
	mu       sync.Mutex
	calls    []string
	fetchErr error
}

func (f *fakeSession) record(c string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeSession) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSession) RoomID() string { return "room-1" }

func (f *fakeSession) FetchHistory(context.Context) error {
	f.record("fetch")
	return f.fetchErr
}

func (f *fakeSession) Subscribe(context.Context) error {
	f.record("subscribe")
	return nil
}

func (f *fakeSession) Resubscribe(context.Context) error {
	f.record("resubscribe")
	return nil
}

func (f *fakeSession) Close() { f.record("close") }

func startBus(t *testing.T) *events.Bus {
	t.Helper()
	bus := events.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go bus.Run(ctx)
	return bus
}

func TestViewAppeared_FetchesThenSubscribes(t *testing.T) {
	s := &fakeSession{}
	g := New(context.Background(), s, startBus(t))

	require.NoError(t, g.ViewAppeared(context.Background()))
	assert.Equal(t, []string{"fetch", "subscribe"}, s.snapshot())
	assert.True(t, g.Visible())
}

func TestViewAppeared_SubscribesDespiteHistoryFailure(t *testing.T) {
	s := &fakeSession{fetchErr: errors.New("503")}
	g := New(context.Background(), s, startBus(t))

	require.NoError(t, g.ViewAppeared(context.Background()))
	assert.Equal(t, []string{"fetch", "subscribe"}, s.snapshot())
}

func TestForegroundWhileVisible_RefreshesAndResubscribes(t *testing.T) {
	s := &fakeSession{}
	bus := startBus(t)
	g := New(context.Background(), s, bus)
	require.NoError(t, g.ViewAppeared(context.Background()))

	bus.Publish(events.Event{Topic: events.TopicAppBackground})
	bus.Publish(events.Event{Topic: events.TopicAppForeground})

	want := []string{"fetch", "subscribe", "close", "fetch", "resubscribe"}
	require.Eventually(t, func() bool { return len(s.snapshot()) == len(want) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, s.snapshot())
	assert.True(t, g.Visible())
}

func TestTransitionsIgnoredWhenNotVisible(t *testing.T) {
	s := &fakeSession{}
	bus := startBus(t)
	g := New(context.Background(), s, bus)
	require.NoError(t, g.ViewAppeared(context.Background()))
	g.ViewDisappeared()

	bus.Publish(events.Event{Topic: events.TopicAppForeground})
	bus.Publish(events.Event{Topic: events.TopicAppBackground})

	assert.Never(t, func() bool { return len(s.snapshot()) > 3 }, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, []string{"fetch", "subscribe", "close"}, s.snapshot())
}

func TestStop_DetachesFromBus(t *testing.T) {
	s := &fakeSession{}
	bus := startBus(t)
	g := New(context.Background(), s, bus)
	require.NoError(t, g.ViewAppeared(context.Background()))

	g.Stop()
	bus.Publish(events.Event{Topic: events.TopicAppForeground})

	assert.Never(t, func() bool { return len(s.snapshot()) > 3 }, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, []string{"fetch", "subscribe", "close"}, s.snapshot())
	assert.False(t, g.Visible())
}
