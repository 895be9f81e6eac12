// ABOUTME: Thread-safe TTL cache for suppressing repeated chat lines.
// ABOUTME: Size-bounded with oldest-first eviction; time comes from an injectable clock.

package dedupe

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/2389/lobby-scout/internal/clock"
)

const cleanupInterval = time.Minute

type cacheEntry struct {
	timestamp time.Time
	element   *list.Element
}

// Cache remembers keys for ttl. The oldest key is evicted once maxSize
// keys are held.
type Cache struct {
	clock clock.Clock

	mu      sync.Mutex
	seen    map[string]*cacheEntry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache and starts its background cleanup. clk defaults to
// clock.Real().
func New(ttl time.Duration, maxSize int, clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.Real()
	}
	if maxSize < 1 {
		maxSize = 1
	}
	c := &Cache{
		clock:   clk,
		seen:    make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// EchoKey builds the key for a chat line heard in a lobby.
func EchoKey(lobby, text string) string {
	return lobby + "\x00" + strings.TrimSpace(text)
}

// Check reports whether key was marked within the window.
func (c *Cache) Check(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(key, c.clock.Now())
}

// CheckAndMark reports whether key was already marked within the window
// and marks it if it was not. The check and the mark are atomic.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.liveLocked(key, now) {
		return true
	}
	c.markLocked(key, now)
	return false
}

// Mark records key, refreshing its window if already present.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key, c.clock.Now())
}

// Len returns the number of keys held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) liveLocked(key string, now time.Time) bool {
	entry, ok := c.seen[key]
	return ok && now.Sub(entry.timestamp) < c.ttl
}

func (c *Cache) markLocked(key string, now time.Time) {
	if entry, exists := c.seen[key]; exists {
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &cacheEntry{timestamp: now, element: elem}
}

func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

func (c *Cache) cleanup() {
	for {
		select {
		case <-c.clock.After(cleanupInterval):
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup drops every expired key.
func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for key, entry := range c.seen {
		if now.Sub(entry.timestamp) >= c.ttl {
			c.order.Remove(entry.element)
			delete(c.seen, key)
		}
	}
}

// Close stops the background cleanup. It is safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
