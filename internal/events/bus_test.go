package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu   sync.Mutex
	seen []Topic
}

func (c *collector) handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, ev.Topic)
}

func (c *collector) topics() []Topic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Topic(nil), c.seen...)
}

func runBus(t *testing.T) *Bus {
	t.Helper()
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go b.Run(ctx)
	return b
}

func TestBus_DispatchesInPublishOrder(t *testing.T) {
	b := runBus(t)
	c := &collector{}
	b.Subscribe(TopicAppBackground, c.handle)
	b.Subscribe(TopicAppForeground, c.handle)

	b.Publish(Event{Topic: TopicAppBackground})
	b.Publish(Event{Topic: TopicAppForeground})
	b.Publish(Event{Topic: TopicAppBackground})

	require.Eventually(t, func() bool { return len(c.topics()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []Topic{TopicAppBackground, TopicAppForeground, TopicAppBackground}, c.topics())
}

func TestBus_Unsubscribe(t *testing.T) {
	b := runBus(t)
	kept, dropped := &collector{}, &collector{}
	b.Subscribe(TopicAppForeground, kept.handle)
	unsubscribe := b.Subscribe(TopicAppForeground, dropped.handle)
	unsubscribe()

	b.Publish(Event{Topic: TopicAppForeground})

	require.Eventually(t, func() bool { return len(kept.topics()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, dropped.topics())
}

func TestBus_HandlerPanicDoesNotStopDispatch(t *testing.T) {
	b := runBus(t)
	c := &collector{}
	b.Subscribe(TopicAppForeground, func(Event) { panic("boom") })
	b.Subscribe(TopicAppForeground, c.handle)

	b.Publish(Event{Topic: TopicAppForeground})
	b.Publish(Event{Topic: TopicAppForeground})

	require.Eventually(t, func() bool { return len(c.topics()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestBus_PendingDeepLinkIsConsumedOnce(t *testing.T) {
	b := New()

	_, ok := b.PendingDeepLink()
	assert.False(t, ok)

	b.Publish(Event{Topic: TopicDeepLink, Target: "room-1"})
	b.Publish(Event{Topic: TopicDeepLink, Target: "room-2"})

	target, ok := b.PendingDeepLink()
	assert.True(t, ok)
	assert.Equal(t, "room-2", target)

	_, ok = b.PendingDeepLink()
	assert.False(t, ok)
}
