// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "sync"

// callbackQueue runs queued functions one at a time, in push order, on
// a goroutine that exists only while the queue is non-empty. It gives
// each connection serial, ordered handler delivery regardless of which
// pion goroutine produced the callback.
type callbackQueue struct {
	mu      sync.Mutex
	pending []func()
	running bool
	sealed  bool
}

// push enqueues f. Pushes after seal are dropped.
func (q *callbackQueue) push(f func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueueLocked(f)
}

// seal enqueues f as the final function; every later push is dropped.
// Returns false if the queue was already sealed (f is not enqueued).
func (q *callbackQueue) seal(f func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sealed {
		return false
	}
	q.enqueueLocked(f)
	q.sealed = true
	return true
}

func (q *callbackQueue) enqueueLocked(f func()) {
	if q.sealed {
		return
	}
	q.pending = append(q.pending, f)
	if !q.running {
		q.running = true
		go q.drain()
	}
}

func (q *callbackQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		f := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		f()
	}
}

// dispatcher adapts Handlers onto a callbackQueue, skipping nil
// handlers.
type dispatcher struct {
	handlers Handlers
	queue    callbackQueue
}

func (d *dispatcher) signal(signal Signal) {
	if d.handlers.OnSignal != nil {
		d.queue.push(func() { d.handlers.OnSignal(signal) })
	}
}

func (d *dispatcher) connect() {
	if d.handlers.OnConnect != nil {
		d.queue.push(d.handlers.OnConnect)
	}
}

func (d *dispatcher) fail(err error) {
	if d.handlers.OnError != nil {
		d.queue.push(func() { d.handlers.OnError(err) })
	}
}

func (d *dispatcher) data(payload []byte) {
	if d.handlers.OnData != nil {
		d.queue.push(func() { d.handlers.OnData(payload) })
	}
}

// close delivers OnClose once and drops everything after it. Returns
// false if the connection had already closed.
func (d *dispatcher) close() bool {
	onClose := d.handlers.OnClose
	if onClose == nil {
		onClose = func() {}
	}
	return d.queue.seal(onClose)
}
