package router

import (
	"runtime"
	"sync"
	"testing"

	"github.com/life-stream-dev/life-stream-go-bus/internal/config"
	"github.com/life-stream-dev/life-stream-go-bus/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	id string

	mu       sync.Mutex
	received [][]byte
	subs     []string
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Deliver(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, data)
}

func (f *fakeSubscriber) Subscriptions() []string { return f.subs }

func (f *fakeSubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func newTestRouter() *Router {
	return NewRouter(config.RouterConfig{MatchCacheSize: 16})
}

func TestSubscribeIsIdempotent(t *testing.T) {
	r := newTestRouter()
	a := &fakeSubscriber{id: "a"}

	r.Subscribe([]string{"news"}, a)
	r.Subscribe([]string{"news"}, a)

	assert.Equal(t, 1, r.SubscriberCount("news"))
	assert.Equal(t, 1, r.Publish(nil, []string{"news"}, []byte("x")))
	assert.Equal(t, 1, a.count())
}

func TestPrefixFanout(t *testing.T) {
	r := newTestRouter()
	root := &fakeSubscriber{id: "root"}
	leaf := &fakeSubscriber{id: "leaf"}

	r.Subscribe([]string{"orders"}, root)
	r.Subscribe([]string{"orders.us"}, leaf)

	r.Publish(nil, []string{"orders.us.west"}, []byte("1"))
	assert.Equal(t, 1, root.count())
	assert.Equal(t, 1, leaf.count())

	r.Publish(nil, []string{"orders"}, []byte("2"))
	assert.Equal(t, 2, root.count())
	assert.Equal(t, 1, leaf.count())

	r.Publish(nil, []string{"ord"}, []byte("3"))
	assert.Equal(t, 2, root.count())
}

func TestPublishDeduplicates(t *testing.T) {
	r := newTestRouter()
	a := &fakeSubscriber{id: "a"}

	r.Subscribe([]string{"a", "a.b"}, a)

	n := r.Publish(nil, []string{"a.b", "a.c", "a"}, []byte("x"))
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, a.count())
}

func TestPublishSkipsSender(t *testing.T) {
	r := newTestRouter()
	a := &fakeSubscriber{id: "a"}
	b := &fakeSubscriber{id: "b"}

	r.Subscribe([]string{"chat"}, a)
	r.Subscribe([]string{"chat"}, b)

	assert.Equal(t, 1, r.Publish(a, []string{"chat"}, []byte("hi")))
	assert.Equal(t, 0, a.count())
	assert.Equal(t, 1, b.count())
}

func TestUnsubscribeDeletesEmptyChannel(t *testing.T) {
	r := newTestRouter()
	a := &fakeSubscriber{id: "a"}
	b := &fakeSubscriber{id: "b"}

	r.Subscribe([]string{"x", "y"}, a)
	r.Subscribe([]string{"x"}, b)
	require.Equal(t, []string{"x", "y"}, r.Channels())

	r.Unsubscribe([]string{"x", "y"}, a)
	assert.Equal(t, []string{"x"}, r.Channels())
	assert.Equal(t, 1, r.SubscriberCount("x"))

	r.Unsubscribe([]string{"x"}, b)
	assert.Empty(t, r.Channels())
}

func TestUnsubscribeUnknownIsNoop(t *testing.T) {
	r := newTestRouter()
	a := &fakeSubscriber{id: "a"}
	b := &fakeSubscriber{id: "b"}

	r.Subscribe([]string{"x"}, a)
	r.Unsubscribe([]string{"missing"}, a)
	r.Unsubscribe([]string{"x"}, b)

	assert.Equal(t, 1, r.SubscriberCount("x"))
}

func TestEmptyChannelNamesIgnored(t *testing.T) {
	r := newTestRouter()
	a := &fakeSubscriber{id: "a"}

	r.Subscribe([]string{""}, a)
	assert.Empty(t, r.Channels())
}

func TestRemoveSession(t *testing.T) {
	r := newTestRouter()
	a := &fakeSubscriber{id: "a", subs: []string{"p", "q"}}
	b := &fakeSubscriber{id: "b"}

	r.Subscribe(a.subs, a)
	r.Subscribe([]string{"q"}, b)

	r.RemoveSession(a)
	assert.Equal(t, []string{"q"}, r.Channels())
	assert.Equal(t, 0, r.Publish(b, []string{"p.q"}, []byte("x")))
}

func TestCacheInvalidatedOnIndexChange(t *testing.T) {
	r := newTestRouter()
	a := &fakeSubscriber{id: "a"}
	b := &fakeSubscriber{id: "b"}

	r.Subscribe([]string{"m"}, a)
	assert.Equal(t, 1, r.Publish(nil, []string{"m.n"}, []byte("1")))

	r.Subscribe([]string{"m.n"}, b)
	assert.Equal(t, 2, r.Publish(nil, []string{"m.n"}, []byte("2")))

	delivered := a.count()
	require.Equal(t, 2, delivered)

	r.Unsubscribe([]string{"m"}, a)
	assert.Equal(t, 1, r.Publish(nil, []string{"m.n"}, []byte("3")))
	assert.Equal(t, delivered, a.count(), "removed subscriber must not be reached through a cached match")
	assert.Equal(t, 2, b.count())
}

func TestRouterWithoutCache(t *testing.T) {
	for _, size := range []int{0, -1} {
		r := NewRouter(config.RouterConfig{MatchCacheSize: size})
		assert.Nil(t, r.cache)

		a := &fakeSubscriber{id: "a"}
		r.Subscribe([]string{"k"}, a)
		assert.Equal(t, 1, r.Publish(nil, []string{"k.v"}, []byte("x")))
	}
}

func TestNewRouterStartsNoGoroutines(t *testing.T) {
	before := runtime.NumGoroutine()
	routers := make([]*Router, 0, 100)
	for i := 0; i < 100; i++ {
		routers = append(routers, newTestRouter())
	}

	assert.Less(t, runtime.NumGoroutine()-before, 10)
	assert.Len(t, routers, 100)
}

func TestChannelsMetric(t *testing.T) {
	r := newTestRouter()
	a := &fakeSubscriber{id: "a"}
	before := metrics.Count(metrics.Channels)

	r.Subscribe([]string{"metric.1", "metric.2"}, a)
	assert.Equal(t, before+2, metrics.Count(metrics.Channels))

	r.Unsubscribe([]string{"metric.1", "metric.2"}, a)
	assert.Equal(t, before, metrics.Count(metrics.Channels))
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	r := newTestRouter()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		s := &fakeSubscriber{id: string(rune('a' + i))}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Subscribe([]string{"c"}, s)
				r.Publish(s, []string{"c.d"}, []byte("x"))
				r.Unsubscribe([]string{"c"}, s)
			}
		}()
	}
	wg.Wait()
	assert.Empty(t, r.Channels())
}
