package applemidi

import (
	"net"
	"testing"
	"time"

	"github.com/midigateway/rtpmidi/internal/metrics"
	"github.com/midigateway/rtpmidi/internal/midi"
	"github.com/midigateway/rtpmidi/internal/portgraph"
)

func mustDriver(t *testing.T, name string, port uint16, opts ...Option) *Driver {
	t.Helper()
	d, err := New(name, port, opts...)
	if err != nil {
		t.Fatalf("New(%q, %d): %v", name, port, err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

func TestFullHandshakeReachesEstablished(t *testing.T) {
	host := mustDriver(t, "host", 19100, WithAcceptPolicy(AcceptFromAny()))
	guest := mustDriver(t, "guest", 19110)

	if err := guest.AddPeer("127.0.0.1", 19100); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}

	drive := func(d *Driver) {
		for i := 0; i < 5; i++ {
			d.Receive()
		}
	}

	waitUntil(t, time.Second, func() bool {
		drive(host)
		drive(guest)
		c := guest.candidatesByAddr["127.0.0.1:19100"]
		return c != nil && c.State == Established
	})

	var cursor int
	if _, ok := host.engine.Table.NextPeer(&cursor); !ok {
		t.Fatalf("host never inserted guest into its peer table")
	}
}

func TestAcceptNoneRejectsInvitation(t *testing.T) {
	host := mustDriver(t, "host", 19200) // default policy is AcceptFromNone
	guest := mustDriver(t, "guest", 19210)

	if err := guest.AddPeer("127.0.0.1", 19200); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}

	waitUntil(t, time.Second, func() bool {
		host.Receive()
		guest.Receive()
		c := guest.candidatesByAddr["127.0.0.1:19200"]
		return c == nil // dropped on NO
	})
}

func TestAcceptOnlyPeerRejectsOtherSources(t *testing.T) {
	onlyAddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 19310}
	host := mustDriver(t, "host", 19300, WithAcceptPolicy(AcceptFromPeer(onlyAddr)))
	guest := mustDriver(t, "guest", 19320) // different source port than onlyAddr

	if err := guest.AddPeer("127.0.0.1", 19300); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}

	waitUntil(t, time.Second, func() bool {
		host.Receive()
		guest.Receive()
		c := guest.candidatesByAddr["127.0.0.1:19300"]
		return c == nil
	})
}

func TestRemovePeerSendsEndSession(t *testing.T) {
	host := mustDriver(t, "host", 19400, WithAcceptPolicy(AcceptFromAny()))
	guest := mustDriver(t, "guest", 19410)

	if err := guest.AddPeer("127.0.0.1", 19400); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		host.Receive()
		guest.Receive()
		c := guest.candidatesByAddr["127.0.0.1:19400"]
		return c != nil && c.State == Established
	})

	if err := guest.RemovePeer("127.0.0.1", 19400); err != nil {
		t.Fatalf("RemovePeer: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		host.Receive()
		_, ok := host.candidatesByAddr["127.0.0.1:19410"]
		return !ok
	})
}

func TestInvitationLimiterRejectsFlood(t *testing.T) {
	cfg := RateLimitConfig{Rate: 0, Burst: 1, CleanupInterval: time.Minute, MaxAge: time.Minute}
	l := NewInvitationLimiter(cfg)
	defer l.Stop()

	if !l.Allow("10.0.0.1:5004") {
		t.Fatalf("first invitation from a source should be allowed")
	}
	if l.Allow("10.0.0.1:5004") {
		t.Fatalf("second invitation within the same burst window should be rejected")
	}
	if !l.Allow("10.0.0.2:5004") {
		t.Fatalf("a different source should have its own bucket")
	}
}

func TestClockSyncCompletesRoundTrip(t *testing.T) {
	host := mustDriver(t, "host", 19500, WithAcceptPolicy(AcceptFromAny()))
	guest := mustDriver(t, "guest", 19510)

	if err := guest.AddPeer("127.0.0.1", 19500); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}

	drive := func(d *Driver) {
		d.Receive()
		d.Idle()
	}

	waitUntil(t, 2*time.Second, func() bool {
		drive(host)
		drive(guest)
		gc := guest.candidatesByAddr["127.0.0.1:19500"]
		hc := host.candidatesByAddr["127.0.0.1:19510"]
		return gc != nil && gc.sync.Complete && hc != nil && hc.sync.Complete
	})
}

func TestGetRunloopSourceExposesBothSockets(t *testing.T) {
	d := mustDriver(t, "solo", 19600)
	src, err := d.GetRunloopSource(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("GetRunloopSource: %v", err)
	}
	if len(src.ReadFds) != 2 {
		t.Fatalf("want 2 read fds, got %d", len(src.ReadFds))
	}
	if len(src.WriteFds) != 1 {
		t.Fatalf("want 1 write fd, got %d", len(src.WriteFds))
	}
}

func TestAddPeerRejectsUnresolvableAddress(t *testing.T) {
	d := mustDriver(t, "solo", 19700)
	err := d.AddPeer("[::1", 1) // malformed literal, fails host/port parsing locally
	if err == nil {
		t.Fatalf("expected a resolution error")
	}
}

func TestInvitationsNOCounterIncrementsOnReject(t *testing.T) {
	counters := &metrics.Counters{}
	host := mustDriver(t, "host", 19800, WithCounters(counters)) // default policy rejects everything
	guest := mustDriver(t, "guest", 19810)

	if err := guest.AddPeer("127.0.0.1", 19800); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}

	waitUntil(t, time.Second, func() bool {
		host.Receive()
		guest.Receive()
		return counters.InvitationsNO.Load() > 0
	})
}

func TestActivePeerCountReflectsEstablishedCandidates(t *testing.T) {
	host := mustDriver(t, "host", 19900, WithAcceptPolicy(AcceptFromAny()))
	guest := mustDriver(t, "guest", 19910)

	if got := host.ActivePeerCount(); got != 0 {
		t.Fatalf("ActivePeerCount before handshake = %d, want 0", got)
	}

	if err := guest.AddPeer("127.0.0.1", 19900); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		host.Receive()
		guest.Receive()
		return guest.ActivePeerCount() == 1
	})

	if got := host.ActivePeerCount(); got != 1 {
		t.Fatalf("host ActivePeerCount after handshake = %d, want 1", got)
	}
}

func TestSendMessageReachesPeerMessagePort(t *testing.T) {
	host := mustDriver(t, "host", 19930, WithAcceptPolicy(AcceptFromAny()))
	guest := mustDriver(t, "guest", 19940)

	if err := guest.AddPeer("127.0.0.1", 19930); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		host.Receive()
		guest.Receive()
		c := guest.candidatesByAddr["127.0.0.1:19930"]
		return c != nil && c.State == Established
	})

	var got []midi.Message
	sink := portgraph.New("sink", portgraph.ModeIn, nil, func(_, _ any, _ portgraph.TypeSpec, data any) {
		if batch, ok := data.([]midi.Message); ok {
			got = append(got, batch...)
		}
	})
	portgraph.Connect(host.MessagePort(), sink)

	msg, _ := midi.Create(midi.NoteOn)
	msg.SetChannel(1)
	msg.SetKey(0x40)
	msg.SetVelocity(0x50)
	if err := guest.SendMessage(msg); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	waitUntil(t, 2*time.Second, func() bool {
		guest.Send()
		host.Receive()
		return len(got) >= 1
	})
	if got[0].Key() != 0x40 || got[0].Channel() != 1 || got[0].Velocity() != 0x50 {
		t.Fatalf("delivered message = %+v", got[0])
	}
}

func TestMeanMediaDelayReportsZeroSamplesBeforeSync(t *testing.T) {
	d := mustDriver(t, "solo", 19920)
	delay, samples := d.MeanMediaDelay()
	if samples != 0 || delay != 0 {
		t.Fatalf("MeanMediaDelay on a fresh driver = (%v, %d), want (0, 0)", delay, samples)
	}
}
