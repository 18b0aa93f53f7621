package publish

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Sink receives each snapshot exactly once, in publish order per instance.
type Sink interface {
	OnSnapshot(s *Snapshot)
	OnTeardown(id uuid.UUID)
}

type MultiSink []Sink

func (m MultiSink) OnSnapshot(s *Snapshot) {
	for _, k := range m {
		k.OnSnapshot(s)
	}
}

func (m MultiSink) OnTeardown(id uuid.UUID) {
	for _, k := range m {
		k.OnTeardown(id)
	}
}

// Consumer drains a Queue, remembers the latest snapshot per instance and
// forwards everything to an optional Sink. Pump and Run must not be called
// concurrently; Latest and Instances are safe from any goroutine.
type Consumer struct {
	q    *Queue
	sink Sink

	mu     sync.RWMutex
	latest map[uuid.UUID]*Snapshot

	buf []Message
}

func NewConsumer(q *Queue, sink Sink) *Consumer {
	return &Consumer{q: q, sink: sink, latest: map[uuid.UUID]*Snapshot{}}
}

// Pump handles everything queued so far and returns how many messages it saw.
func (c *Consumer) Pump() int {
	c.buf = c.q.Drain(c.buf[:0])
	for i := range c.buf {
		m := c.buf[i]
		switch m.Kind {
		case MsgSnapshot:
			c.mu.Lock()
			c.latest[m.Instance] = m.Snapshot
			c.mu.Unlock()
			if c.sink != nil {
				c.sink.OnSnapshot(m.Snapshot)
			}
		case MsgTeardown:
			c.mu.Lock()
			delete(c.latest, m.Instance)
			c.mu.Unlock()
			if c.sink != nil {
				c.sink.OnTeardown(m.Instance)
			}
		}
		c.buf[i] = Message{}
	}
	return len(c.buf)
}

// Run pumps whenever the queue signals until ctx is done, then pumps once more
// so a teardown sent during shutdown is not lost.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.Pump()
			return ctx.Err()
		case <-c.q.Ready():
			c.Pump()
		}
	}
}

func (c *Consumer) Latest(id uuid.UUID) (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.latest[id]
	return s, ok
}

func (c *Consumer) Instances() []uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(c.latest))
	for id := range c.latest {
		out = append(out, id)
	}
	return out
}
