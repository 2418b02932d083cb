// Package cbqueue runs callbacks one at a time, in push order, on a single
// dispatch goroutine.
package cbqueue

import (
	"sync"
	"time"
)

type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	head   *entry
	tail   *entry
	closed bool
}

type entry struct {
	fn     func(lag time.Duration)
	queued time.Time
	next   *entry
}

func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Dispatch runs queued callbacks until Close; callbacks pushed before
// Close still run. lag is the time the callback spent queued.
func (q *Queue) Dispatch() {
	for {
		q.mu.Lock()
		for q.head == nil {
			q.cond.Wait()
		}
		curr := q.head
		q.head = curr.next
		if curr == q.tail {
			q.tail = nil
		}
		q.mu.Unlock()

		if curr.fn == nil {
			return
		}
		curr.fn(time.Since(curr.queued))
	}
}

// Push reports false once the queue is closed.
func (q *Queue) Push(fn func(lag time.Duration)) bool {
	if fn == nil {
		panic("cbqueue: nil callback")
	}
	return q.push(fn)
}

func (q *Queue) push(fn func(time.Duration)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	e := &entry{fn: fn, queued: time.Now()}
	if q.tail != nil {
		q.tail.next = e
	} else {
		q.head = e
	}
	q.tail = e
	if fn == nil {
		q.closed = true
		q.cond.Broadcast()
	} else {
		q.cond.Signal()
	}
	return true
}

// Close makes Dispatch return after the callbacks already queued.
func (q *Queue) Close() {
	q.push(nil)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for e := q.head; e != nil; e = e.next {
		if e.fn != nil {
			n++
		}
	}
	return n
}
