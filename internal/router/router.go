// Package router keeps the channel subscription index and fans published
// payloads out to subscribers.
//
// Channels are matched by prefix: a subscription to "orders" receives every
// publish to "orders", "orders.us" or "orders.us.west", while a publish to
// "orders" never reaches a subscriber of "orders.us".
package router

import (
	"sync"

	"github.com/armon/go-radix"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/life-stream-dev/life-stream-go-bus/internal/config"
	"github.com/life-stream-dev/life-stream-go-bus/internal/logger"
	"github.com/life-stream-dev/life-stream-go-bus/internal/metrics"
)

// Subscriber is a live connection as seen by the router.
type Subscriber interface {
	// ID identifies the connection; two subscribers never share one.
	ID() string
	// Deliver hands a published payload to the connection. It must not block.
	Deliver(data []byte)
	// Subscriptions lists the channels the connection holds.
	Subscriptions() []string
}

type subscribers map[string]Subscriber

// Router is safe for concurrent use. Index mutations take the write lock;
// publish snapshots its targets under the read lock and delivers after
// releasing it.
type Router struct {
	mu    sync.RWMutex
	index *radix.Tree
	cache *lru.Cache[string, []string]
}

// NewRouter returns an empty router. The match cache is kept only when
// cfg.MatchCacheSize is positive. Cached matches never expire on their own;
// any change to the set of indexed channels purges them.
func NewRouter(cfg config.RouterConfig) *Router {
	r := &Router{index: radix.New()}
	if cfg.MatchCacheSize > 0 {
		cache, err := lru.New[string, []string](cfg.MatchCacheSize)
		if err != nil {
			logger.WarnF("Match cache disabled, details: %v", err)
		}
		r.cache = cache
	}
	return r
}

// Subscribe adds s to every named channel. Repeating a subscription has no
// further effect.
func (r *Router) Subscribe(names []string, s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		if name == "" {
			continue
		}
		value, ok := r.index.Get(name)
		if !ok {
			value = make(subscribers)
			r.index.Insert(name, value)
			r.invalidate()
			metrics.Incr(metrics.Channels, 1)
		}
		value.(subscribers)[s.ID()] = s
		logger.DebugF("[%s] Subscribed to %s", s.ID(), name)
	}
}

// Unsubscribe removes s from every named channel. Channels left without
// subscribers are dropped from the index. Unknown pairs are ignored.
func (r *Router) Unsubscribe(names []string, s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unsubscribe(names, s.ID())
}

func (r *Router) unsubscribe(names []string, id string) {
	for _, name := range names {
		value, ok := r.index.Get(name)
		if !ok {
			continue
		}
		subs := value.(subscribers)
		if _, ok := subs[id]; !ok {
			continue
		}
		delete(subs, id)
		logger.DebugF("[%s] Unsubscribed from %s", id, name)
		if len(subs) == 0 {
			r.index.Delete(name)
			r.invalidate()
			metrics.Decr(metrics.Channels, 1)
		}
	}
}

// RemoveSession drops every subscription s recorded for itself.
func (r *Router) RemoveSession(s Subscriber) {
	r.Unsubscribe(s.Subscriptions(), s)
}

// Publish delivers data once to every subscriber of a channel that is a
// prefix of any of names, except sender. sender may be nil. It returns the
// number of deliveries attempted.
func (r *Router) Publish(sender Subscriber, names []string, data []byte) int {
	targets := r.targets(names)

	metrics.Incr(metrics.Publishes, 1)

	delivered := 0
	for id, target := range targets {
		if sender != nil && id == sender.ID() {
			continue
		}
		target.Deliver(data)
		delivered++
	}
	metrics.Incr(metrics.Deliveries, int64(delivered))
	return delivered
}

func (r *Router) targets(names []string) subscribers {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make(subscribers)
	for _, name := range names {
		for _, key := range r.matches(name) {
			value, ok := r.index.Get(key)
			if !ok {
				continue
			}
			for id, s := range value.(subscribers) {
				targets[id] = s
			}
		}
	}
	return targets
}

// matches lists the indexed channels that are prefixes of name. Callers
// hold at least the read lock.
func (r *Router) matches(name string) []string {
	if r.cache != nil {
		if keys, ok := r.cache.Get(name); ok {
			return keys
		}
	}

	var keys []string
	r.index.WalkPath(name, func(key string, _ interface{}) bool {
		keys = append(keys, key)
		return false
	})

	if r.cache != nil {
		r.cache.Add(name, keys)
	}
	return keys
}

// invalidate forgets cached matches. Called with the write lock held,
// whenever a channel enters or leaves the index.
func (r *Router) invalidate() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

// Channels returns the indexed channel names in byte order.
func (r *Router) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, r.index.Len())
	r.index.Walk(func(key string, _ interface{}) bool {
		keys = append(keys, key)
		return false
	})
	return keys
}

// SubscriberCount returns the number of subscribers of exactly name.
func (r *Router) SubscriberCount(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.index.Get(name)
	if !ok {
		return 0
	}
	return len(value.(subscribers))
}
