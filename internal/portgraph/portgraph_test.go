package portgraph

import "testing"

var noteType = TypeSpec{ID: 1}

func TestSendDeliversToConnectedPort(t *testing.T) {
	var got any
	dst := New("dst", ModeIn, "dst-target", func(target, source any, spec TypeSpec, data any) {
		got = data
	})
	src := New("src", ModeOut, "src-target", nil)
	Connect(src, dst)

	Send(src, noteType, 42)

	if got != 42 {
		t.Fatalf("dst did not receive payload, got %v", got)
	}
}

func TestThruPortForwardsToItsOwnPeers(t *testing.T) {
	var gotAtLeaf any
	leaf := New("leaf", ModeIn, nil, func(target, source any, spec TypeSpec, data any) {
		gotAtLeaf = data
	})
	mid := New("mid", ModeIn|ModeThru, nil, nil)
	src := New("src", ModeOut, nil, nil)
	Connect(mid, leaf)
	Connect(src, mid)

	Send(src, noteType, "hello")

	if gotAtLeaf != "hello" {
		t.Fatalf("Thru port did not forward to its peers, got %v", gotAtLeaf)
	}
}

func TestInvalidatedPortIsPrunedOnNextSend(t *testing.T) {
	calls := 0
	dst := New("dst", ModeIn, nil, func(target, source any, spec TypeSpec, data any) {
		calls++
	})
	src := New("src", ModeOut, nil, nil)
	Connect(src, dst)

	dst.Invalidate()
	Send(src, noteType, 1)
	if calls != 0 {
		t.Fatalf("invalidated port's receive callback ran")
	}

	src.mu.Lock()
	remaining := len(src.peers)
	src.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("invalidated port was not pruned, %d peers remain", remaining)
	}
}

func TestObserverSeesEveryDelivery(t *testing.T) {
	var observed any
	dst := New("dst", ModeIn, nil, func(any, any, TypeSpec, any) {})
	dst.SetObserver(func(target, source any, spec TypeSpec, data any) {
		observed = data
	})
	src := New("src", ModeOut, nil, nil)
	Connect(src, dst)

	Send(src, noteType, "observed-value")

	if observed != "observed-value" {
		t.Fatalf("observer did not see delivery, got %v", observed)
	}
}

func TestDisconnectRemovesPeer(t *testing.T) {
	dst := New("dst", ModeIn, nil, nil)
	src := New("src", ModeOut, nil, nil)
	Connect(src, dst)
	Disconnect(src, dst)

	src.mu.Lock()
	n := len(src.peers)
	src.mu.Unlock()
	if n != 0 {
		t.Fatalf("Disconnect did not remove the peer")
	}
}
