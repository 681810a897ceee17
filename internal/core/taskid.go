package core

import (
	"strconv"
	"sync"
	"time"
)

// IDGenerator defines the interface for generating client-side document keys.
type IDGenerator interface {
	NewID() string
}

// timestampIDGenerator produces unix-millisecond tokens. When two ids are
// requested within the same millisecond the later one is bumped so tokens stay
// unique and strictly increasing for the life of the generator.
type timestampIDGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewIDGenerator creates an IDGenerator backed by the wall clock. A nil now
// uses time.Now.
func NewIDGenerator(now func() time.Time) IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &timestampIDGenerator{now: now}
}

// NewID returns the next token, for example "1767225600000".
func (g *timestampIDGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return strconv.FormatInt(ms, 10)
}
