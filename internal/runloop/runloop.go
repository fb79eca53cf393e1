// Package runloop implements a fixed-capacity, select(2)-driven
// cooperative scheduler: a small table of I/O sources, each with
// read/write/idle callbacks and its own timeout, driven by a single
// unix.Select call per step.
package runloop

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/midigateway/rtpmidi/internal/apperr"
)

// MaxSources is the fixed capacity of a Loop's source table.
const MaxSources = 16

// ReadyFunc is invoked when a source's fd is readable.
type ReadyFunc func() error

// IdleFunc is invoked when a source's remain runs out, whether or not its
// descriptors were ready in the same step. elapsed is the wall interval
// since the previous Step's sample.
type IdleFunc func(elapsed time.Duration) error

// Source is one runloop member: a set of descriptors, its readiness
// callbacks, and its own idle timeout/remain bookkeeping. A source may
// aggregate more than one fd (e.g. a driver's control and RTP sockets)
// under one set of callbacks.
type Source struct {
	ReadFds  []int
	WriteFds []int
	Timeout  time.Duration
	remain   time.Duration

	Read  ReadyFunc
	Write ReadyFunc
	Idle  IdleFunc

	Info any
}

// Loop holds up to MaxSources sources and drives them via step/start/stop.
type Loop struct {
	sources []*Source
	stopped bool
}

// New returns an empty Loop.
func New() *Loop { return &Loop{} }

// AddSource registers src, initializing its remain to its Timeout. It
// fails with apperr.TooManyPeers once MaxSources sources are registered —
// the loop reuses that resource-exhaustion code rather than inventing a
// parallel one, since the shape (fixed-capacity table, no more room) is
// identical.
func (l *Loop) AddSource(src *Source) error {
	if len(l.sources) >= MaxSources {
		return apperr.New(apperr.TooManyPeers, "runloop.AddSource", nil)
	}
	src.remain = src.Timeout
	l.sources = append(l.sources, src)
	return nil
}

// RemoveSource drops src from the loop, if present.
func (l *Loop) RemoveSource(src *Source) {
	for i, s := range l.sources {
		if s == src {
			l.sources = append(l.sources[:i], l.sources[i+1:]...)
			return
		}
	}
}

// minPositiveTimeout returns the smallest remain among sources with a
// positive Timeout (clamped at zero), or fallback if no source has one.
func (l *Loop) minPositiveTimeout(fallback time.Duration) time.Duration {
	min := fallback
	found := false
	for _, s := range l.sources {
		if s.Timeout <= 0 {
			continue
		}
		if !found || s.remain < min {
			min = s.remain
			found = true
		}
	}
	if min < 0 {
		min = 0
	}
	return min
}

// Step performs one select(2) over the union of all source fds, using the
// minimum positive remain as the timeout, then dispatches read/write/idle
// callbacks. lastSample is the wall-clock instant of the previous Step
// (for the first Step, the caller's choice; Start passes the time it was
// called); Step returns the sample it took so
// callers can thread elapsed-time accounting across calls.
func (l *Loop) Step(lastSample time.Time) (time.Time, error) {
	now := time.Now()
	elapsed := now.Sub(lastSample)
	if elapsed < 0 {
		elapsed = 0
	}

	var rfds, wfds unix.FdSet
	nfds := 0
	for _, s := range l.sources {
		for _, fd := range s.ReadFds {
			fdset(&rfds, fd)
			if fd+1 > nfds {
				nfds = fd + 1
			}
		}
		for _, fd := range s.WriteFds {
			fdset(&wfds, fd)
			if fd+1 > nfds {
				nfds = fd + 1
			}
		}
	}

	timeout := l.minPositiveTimeout(100 * time.Millisecond)
	tv := unix.NsecToTimeval(timeout.Nanoseconds())

	if nfds > 0 {
		if _, err := unix.Select(nfds, &rfds, &wfds, nil, &tv); err != nil && err != unix.EINTR {
			return now, apperr.New(apperr.DriverIoError, "runloop.Step", err)
		}
	}

	for _, s := range l.sources {
		s.remain -= elapsed
		if s.Timeout > 0 && s.remain <= 0 {
			s.remain = s.Timeout
			if s.Idle != nil {
				if err := s.Idle(elapsed); err != nil {
					return now, err
				}
			}
		}
		if s.Read != nil && anyReady(&rfds, s.ReadFds) {
			if err := s.Read(); err != nil {
				return now, err
			}
		}
		if s.Write != nil && anyReady(&wfds, s.WriteFds) {
			if err := s.Write(); err != nil {
				return now, err
			}
		}
	}
	return now, nil
}

// Start calls Step in a loop until Stop is called or a Step returns a
// fatal (non-nil) error.
func (l *Loop) Start() error {
	l.stopped = false
	last := time.Now()
	for !l.stopped {
		var err error
		last, err = l.Step(last)
		if err != nil {
			return err
		}
	}
	return nil
}

// Stop requests that a running Start return after its current Step.
func (l *Loop) Stop() { l.stopped = true }

func fdset(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdisset(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

func anyReady(set *unix.FdSet, fds []int) bool {
	for _, fd := range fds {
		if fdisset(set, fd) {
			return true
		}
	}
	return false
}
