package runloop

import (
	"os"
	"testing"
	"time"

	"github.com/midigateway/rtpmidi/internal/apperr"
)

func TestStepInvokesReadWhenPipeIsReadable(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	var readCalled bool
	loop := New()
	src := &Source{
		ReadFds: []int{int(r.Fd())},
		Timeout: time.Hour,
		Read: func() error {
			readCalled = true
			buf := make([]byte, 1)
			r.Read(buf)
			return nil
		},
	}
	if err := loop.AddSource(src); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	if _, err := loop.Step(time.Now()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !readCalled {
		t.Fatalf("Read callback was not invoked for a readable pipe")
	}
}

func TestStepFiresIdleAfterTimeoutElapses(t *testing.T) {
	var idleCalls int
	loop := New()
	src := &Source{Timeout: 5 * time.Millisecond, Idle: func(time.Duration) error {
		idleCalls++
		return nil
	}}
	if err := loop.AddSource(src); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	last := time.Now().Add(-10 * time.Millisecond)
	if _, err := loop.Step(last); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if idleCalls != 1 {
		t.Fatalf("want 1 idle call, got %d", idleCalls)
	}
}

func TestAddSourceRejectsBeyondCapacity(t *testing.T) {
	loop := New()
	for i := 0; i < MaxSources; i++ {
		if err := loop.AddSource(&Source{}); err != nil {
			t.Fatalf("AddSource %d: %v", i, err)
		}
	}
	err := loop.AddSource(&Source{})
	if !apperr.Has(err, apperr.TooManyPeers) {
		t.Fatalf("want TooManyPeers, got %v", err)
	}
}

func TestRemoveSourceDropsIt(t *testing.T) {
	loop := New()
	src := &Source{}
	loop.AddSource(src)
	loop.RemoveSource(src)
	if len(loop.sources) != 0 {
		t.Fatalf("source was not removed")
	}
}

func TestStopEndsStart(t *testing.T) {
	loop := New()
	src := &Source{Timeout: time.Millisecond, Idle: func(time.Duration) error {
		loop.Stop()
		return nil
	}}
	loop.AddSource(src)

	done := make(chan error, 1)
	go func() { done <- loop.Start() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Start did not return after Stop")
	}
}
