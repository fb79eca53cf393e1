// Package portgraph implements the message-routing port graph: typed
// ports wired into a directed graph, with explicit invalidation to break
// cycles. The invalidation contract: an invalid port is still reachable
// from peers' connection lists until the next traversal prunes it, and it
// never again dereferences its target.
package portgraph

import "sync"

// Mode is a port's bitmask of directionality/validity flags.
type Mode uint8

const (
	ModeIn      Mode = 1 << iota // accepts inbound Send calls
	ModeOut                      // may be the src of a Send
	ModeThru                     // forwards whatever it receives to its own connected ports
	ModeInvalid                  // permanently dead; pruned from peers on next traversal
)

// Has reports whether m carries every bit in flags.
func (m Mode) Has(flags Mode) bool { return m&flags == flags }

// TypeSpec identifies one payload kind carried over the graph. There are
// no retain/release hooks: Go values are owned by whichever goroutine
// holds a reference, and the garbage collector reclaims them once
// unreachable.
type TypeSpec struct {
	ID     int
	Encode func(v any) ([]byte, error)
	Decode func([]byte) (any, error)
}

// ReceiveFunc is a port's receive callback: target is the receiving
// port's own opaque target object, source is the sending port's target,
// and data is the payload.
type ReceiveFunc func(target, source any, spec TypeSpec, data any)

// Observer is an optional interceptor invoked with everything a port's
// ReceiveFunc sees, before the receive callback runs.
type Observer func(target, source any, spec TypeSpec, data any)

// Port is one node in the routing graph.
type Port struct {
	mu sync.Mutex

	Name     string
	mode     Mode
	target   any
	receive  ReceiveFunc
	observer Observer
	peers    []*Port
}

// New returns a port named name in the given initial mode, delivering to
// receive on target.
func New(name string, mode Mode, target any, receive ReceiveFunc) *Port {
	return &Port{Name: name, mode: mode, target: target, receive: receive}
}

// Mode returns the port's current mode bits.
func (p *Port) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// SetObserver installs or clears (nil) an interceptor.
func (p *Port) SetObserver(obs Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observer = obs
}

// Connect appends dst to src's peer list. Go needs no explicit retain:
// the slice entry itself keeps dst reachable.
func Connect(src, dst *Port) {
	src.mu.Lock()
	defer src.mu.Unlock()
	src.peers = append(src.peers, dst)
}

// Disconnect removes dst from src's peer list, if present.
func Disconnect(src, dst *Port) {
	src.mu.Lock()
	defer src.mu.Unlock()
	src.peers = pruneOne(src.peers, dst)
}

func pruneOne(peers []*Port, dst *Port) []*Port {
	for i, p := range peers {
		if p == dst {
			return append(peers[:i], peers[i+1:]...)
		}
	}
	return peers
}

// Invalidate marks p permanently dead: its mode gains ModeInvalid and its
// target/receive callback are cleared so it never again dereferences
// them. p remains in any peer's connection list until that peer's next
// Send prunes it.
func (p *Port) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode |= ModeInvalid
	p.target = nil
	p.receive = nil
}

// Send delivers data, tagged by spec, from src to every port connected
// to src. Invalid peers are pruned from src's list as they're encountered
// rather than being visited.
func Send(src *Port, spec TypeSpec, data any) {
	src.mu.Lock()
	peers := src.peers
	live := peers[:0:0]
	target := src.target
	src.mu.Unlock()

	for _, dst := range peers {
		if receiveFrom(dst, target, spec, data) {
			live = append(live, dst)
		}
	}

	src.mu.Lock()
	src.peers = live
	src.mu.Unlock()
}

// receiveFrom returns false if dst was invalid (so the caller prunes it), otherwise
// true after delivering to dst's receive callback (and observer, and any
// Thru forwarding).
func receiveFrom(dst *Port, srcTarget any, spec TypeSpec, data any) bool {
	dst.mu.Lock()
	if dst.mode.Has(ModeInvalid) {
		dst.mu.Unlock()
		return false
	}
	receive := dst.receive
	observer := dst.observer
	target := dst.target
	isThru := dst.mode.Has(ModeThru)
	dst.mu.Unlock()

	if observer != nil {
		observer(target, srcTarget, spec, data)
	}
	if receive != nil {
		receive(target, srcTarget, spec, data)
	}
	if isThru {
		Send(dst, spec, data)
	}
	return true
}
