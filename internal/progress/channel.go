package progress

import (
	"context"
	"sync"
)

const defaultCapacity = 512

// Channel stores recent events and wakes waiters when new events arrive.
type Channel struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	subs     map[int]chan Event
	nextSub  int
	dropped  uint64
}

// NewChannel constructs a bounded in-memory event buffer.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	c := &Channel{capacity: capacity, subs: make(map[int]chan Event)}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Emit implements Sink. It assigns the next sequence number, evicts the
// oldest event when full, and hands the event to subscribers without
// blocking.
func (c *Channel) Emit(evt Event) {
	if c == nil {
		return
	}
	evt = stamp(evt)
	c.mu.Lock()
	c.nextSeq++
	evt.Seq = c.nextSeq
	if len(c.buffer) == c.capacity {
		copy(c.buffer, c.buffer[1:])
		c.buffer = c.buffer[:c.capacity-1]
	}
	c.buffer = append(c.buffer, evt)
	for _, sub := range c.subs {
		select {
		case sub <- evt:
		default:
			c.dropped++
		}
	}
	c.cond.Broadcast()
	c.mu.Unlock()
}

// Subscribe registers a live reader with a buffer of size events. Events
// that do not fit are dropped for that reader. cancel unregisters the reader
// and closes its channel.
func (c *Channel) Subscribe(size int) (<-chan Event, func()) {
	if size <= 0 {
		size = 64
	}
	ch := make(chan Event, size)
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// Dropped reports how many subscriber deliveries were skipped.
func (c *Channel) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Fetch returns events with sequence greater than since. When wait is true,
// Fetch blocks until at least one event is available or the context ends.
func (c *Channel) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if c == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > c.capacity {
		limit = c.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				c.mu.Lock()
				c.cond.Broadcast()
				c.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		events, next := c.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		c.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Tail returns the most recent limit events without blocking.
func (c *Channel) Tail(limit int) ([]Event, uint64) {
	if c == nil {
		return nil, 0
	}
	if limit <= 0 || limit > c.capacity {
		limit = c.capacity
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	start := max(0, len(c.buffer)-limit)
	out := make([]Event, len(c.buffer)-start)
	copy(out, c.buffer[start:])
	return out, c.nextSeq
}

// FirstSequence reports the smallest sequence number still buffered.
func (c *Channel) FirstSequence() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buffer) == 0 {
		return c.nextSeq
	}
	return c.buffer[0].Seq
}

func (c *Channel) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	start := len(c.buffer)
	for i, evt := range c.buffer {
		if evt.Seq > since {
			start = i
			break
		}
	}
	if start == len(c.buffer) {
		return nil, c.nextSeq
	}
	end := min(len(c.buffer), start+limit)
	out := make([]Event, end-start)
	copy(out, c.buffer[start:end])
	return out, out[len(out)-1].Seq
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
