package midiqueue

import (
	"testing"

	"github.com/midigateway/rtpmidi/internal/apperr"
	"github.com/midigateway/rtpmidi/internal/midi"
)

func noteOn(key uint8) midi.Message {
	m, _ := midi.Create(midi.NoteOn)
	m.SetKey(key)
	return m
}

func TestPushPopFIFOOrder(t *testing.T) {
	q := New(4)
	for _, k := range []uint8{1, 2, 3} {
		if err := q.Push(noteOn(k)); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range []uint8{1, 2, 3} {
		got, ok := q.Pop()
		if !ok || got.Key() != want {
			t.Fatalf("Pop() = %v, %v; want key %d", got, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop() on empty queue returned ok=true")
	}
}

func TestPushOverCapacityFails(t *testing.T) {
	q := New(2)
	if err := q.Push(noteOn(1)); err != nil {
		t.Fatal(err)
	}
	if err := q.Push(noteOn(2)); err != nil {
		t.Fatal(err)
	}
	if err := q.Push(noteOn(3)); !apperr.Has(err, apperr.QueueFull) {
		t.Fatalf("expected QueueFull, got %v", err)
	}
}

func TestPeekDoesNotRemove(t *testing.T) {
	q := New(2)
	q.Push(noteOn(5))
	if got, ok := q.Peek(); !ok || got.Key() != 5 {
		t.Fatalf("Peek() = %v, %v", got, ok)
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d after Peek, want 1", q.Len())
	}
}

func TestWrapAroundAfterDrain(t *testing.T) {
	q := New(2)
	q.Push(noteOn(1))
	q.Pop()
	q.Push(noteOn(2))
	q.Push(noteOn(3))
	if err := q.Push(noteOn(4)); !apperr.Has(err, apperr.QueueFull) {
		t.Fatalf("expected QueueFull after wraparound fill, got %v", err)
	}
	got, _ := q.Pop()
	if got.Key() != 2 {
		t.Fatalf("Pop() = key %d, want 2", got.Key())
	}
}

func TestDefaultCapacity(t *testing.T) {
	q := New(0)
	if q.Cap() != DefaultCapacity {
		t.Fatalf("Cap() = %d, want %d", q.Cap(), DefaultCapacity)
	}
}
