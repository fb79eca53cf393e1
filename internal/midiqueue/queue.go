// Package midiqueue implements the bounded FIFO of midi.Message used to
// hand messages between the runloop and the protocol layers.
package midiqueue

import (
	"github.com/midigateway/rtpmidi/internal/apperr"
	"github.com/midigateway/rtpmidi/internal/midi"
)

// DefaultCapacity is used by New(0).
const DefaultCapacity = 16

// Queue is a bounded FIFO of midi.Message. Message is a small value type,
// so Push/Pop move it by value — there is no separate ownership transfer
// step to model in Go.
type Queue struct {
	buf   []midi.Message
	cap   int
	head  int
	count int
}

// New returns an empty queue with the given capacity. A capacity of 0
// selects DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{buf: make([]midi.Message, capacity), cap: capacity}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int { return q.count }

// Cap returns the queue's fixed capacity.
func (q *Queue) Cap() int { return q.cap }

// Push appends msg to the queue. It fails with apperr.QueueFull once Len
// reaches Cap.
func (q *Queue) Push(msg midi.Message) error {
	if q.count == q.cap {
		return apperr.New(apperr.QueueFull, "midiqueue.Push", nil)
	}
	tail := (q.head + q.count) % q.cap
	q.buf[tail] = msg
	q.count++
	return nil
}

// Peek returns the oldest queued message without removing it. ok is false
// if the queue is empty.
func (q *Queue) Peek() (msg midi.Message, ok bool) {
	if q.count == 0 {
		return midi.Message{}, false
	}
	return q.buf[q.head], true
}

// Pop removes and returns the oldest queued message. ok is false if the
// queue is empty.
func (q *Queue) Pop() (msg midi.Message, ok bool) {
	if q.count == 0 {
		return midi.Message{}, false
	}
	msg = q.buf[q.head]
	q.buf[q.head] = midi.Message{}
	q.head = (q.head + 1) % q.cap
	q.count--
	return msg, true
}
