package router

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/ethbridge/bridge-router/program"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// Delivery is a program handed to the routing fabric for execution on another chain.
type Delivery struct {
	MessageID common.Hash     `json:"messageID"`
	Dest      types.Origin    `json:"dest"`
	Assets    []program.Asset `json:"assets"`
	Program   program.Program `json:"program"`
}

// Dispatcher is the routing fabric. Deliveries are handed over in order, after the state change
// that produced them is committed. The fabric delivers them at least once.
type Dispatcher interface {
	Dispatch(d *Delivery) error
}

// QueueDispatcher keeps deliveries in memory, in order, until they are drained.
type QueueDispatcher struct {
	mu    sync.Mutex
	queue []*Delivery
}

var _ Dispatcher = (*QueueDispatcher)(nil)

func NewQueueDispatcher() *QueueDispatcher {
	return &QueueDispatcher{}
}

func (q *QueueDispatcher) Dispatch(d *Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, d)
	return nil
}

// Drain removes and returns all queued deliveries, oldest first.
func (q *QueueDispatcher) Drain() []*Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.queue
	q.queue = nil
	return out
}

func (q *QueueDispatcher) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}
