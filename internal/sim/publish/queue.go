package publish

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"debrisfx/internal/sim/spawn"
)

var ErrTornDown = errors.New("publish: instance torn down")

type MessageKind uint8

const (
	MsgSnapshot MessageKind = iota
	MsgTeardown
)

type Message struct {
	Kind     MessageKind
	Instance uuid.UUID
	Snapshot *Snapshot
}

// Queue is an unbounded FIFO. Send never blocks; the consumer waits on Ready
// and takes everything queued with Drain.
type Queue struct {
	mu    sync.Mutex
	items []Message
	ready chan struct{}
}

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

func (q *Queue) Send(m Message) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Ready fires at least once after any Send.
func (q *Queue) Ready() <-chan struct{} { return q.ready }

// Drain appends every queued message to dst in send order.
func (q *Queue) Drain(dst []Message) []Message {
	q.mu.Lock()
	dst = append(dst, q.items...)
	clear(q.items)
	q.items = q.items[:0]
	q.mu.Unlock()
	return dst
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Publisher is the producer side for one instance.
type Publisher struct {
	id       uuid.UUID
	q        *Queue
	tornDown bool
}

func NewPublisher(id uuid.UUID, q *Queue) *Publisher {
	return &Publisher{id: id, q: q}
}

func (p *Publisher) ID() uuid.UUID { return p.id }

// Publish moves seeds into a new snapshot and enqueues it. seeds is left empty
// and the caller must not keep references to its previous arrays.
func (p *Publisher) Publish(seeds *spawn.Seeds, tick uint64, lastSpawnedPointID int64, solverTime float64) (*Snapshot, error) {
	if p.tornDown {
		return nil, ErrTornDown
	}
	snap := &Snapshot{
		Instance:           p.id,
		Tick:               tick,
		LastSpawnedPointID: lastSpawnedPointID,
		SolverTime:         solverTime,
		Seeds:              seeds.Take(),
	}
	p.q.Send(Message{Kind: MsgSnapshot, Instance: p.id, Snapshot: snap})
	return snap, nil
}

// Teardown enqueues the release message behind every pending snapshot. Later
// calls to Publish or Teardown fail with ErrTornDown.
func (p *Publisher) Teardown() error {
	if p.tornDown {
		return ErrTornDown
	}
	p.tornDown = true
	p.q.Send(Message{Kind: MsgTeardown, Instance: p.id})
	return nil
}
