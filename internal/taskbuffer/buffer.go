// Package taskbuffer bounds how many tasks run at once. Tasks are admitted in
// submission order; when one finishes, its callback runs and the next queued
// task starts.
package taskbuffer

import "sync"

// Buffer is a FIFO admission queue with a concurrency limit. The zero value
// is not usable; construct with New.
type Buffer struct {
	mu      sync.Mutex
	limit   int
	running int
	queue   []func()
	wg      sync.WaitGroup
}

// New returns a buffer admitting at most limit tasks concurrently. A limit
// below one is treated as one.
func New(limit int) *Buffer {
	return &Buffer{limit: max(1, limit)}
}

// SetLimit changes the concurrency limit. Running tasks are unaffected;
// raising the limit admits queued tasks immediately.
func (b *Buffer) SetLimit(limit int) {
	b.mu.Lock()
	b.limit = max(1, limit)
	b.mu.Unlock()
	b.dispatch()
}

// Limit returns the current concurrency limit.
func (b *Buffer) Limit() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit
}

// Running returns the number of tasks currently executing.
func (b *Buffer) Running() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Pending returns the number of queued tasks not yet started.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Wait blocks until every submitted task and its callback have finished.
func (b *Buffer) Wait() {
	b.wg.Wait()
}

// Enqueue submits task(arg). When it returns, callback receives the result on
// the task's goroutine before the next queued task is admitted. callback may
// be nil.
func Enqueue[A, R any](b *Buffer, task func(A) R, arg A, callback func(R)) {
	b.wg.Add(1)
	b.mu.Lock()
	b.queue = append(b.queue, func() {
		result := task(arg)
		if callback != nil {
			callback(result)
		}
	})
	b.mu.Unlock()
	b.dispatch()
}

func (b *Buffer) dispatch() {
	for {
		b.mu.Lock()
		if b.running >= b.limit || len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		next := b.queue[0]
		b.queue[0] = nil
		b.queue = b.queue[1:]
		b.running++
		b.mu.Unlock()

		go b.run(next)
	}
}

func (b *Buffer) run(job func()) {
	defer b.wg.Done()
	job()
	b.mu.Lock()
	b.running--
	b.mu.Unlock()
	b.dispatch()
}
