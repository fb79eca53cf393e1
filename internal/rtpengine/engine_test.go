package rtpengine

import (
	"bytes"
	"net"
	"testing"
)

func newLoopbackEngine(t *testing.T, ssrc uint32) (*Engine, *net.UDPAddr) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return New(conn, ssrc), conn.LocalAddr().(*net.UDPAddr)
}

func TestSendReceivePacketRoundTrip(t *testing.T) {
	sender, _ := newLoopbackEngine(t, 1)
	receiver, receiverAddr := newLoopbackEngine(t, 2)

	peer, err := sender.Table.Insert(2, receiverAddr)
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte{0x90, 0x40, 0x7F}
	if err := sender.SendPacket(peer, PacketInfo{PayloadType: 97, Timestamp: 1000, Payload: payload}); err != nil {
		t.Fatal(err)
	}
	if peer.OutSeqnum != 1 {
		t.Fatalf("OutSeqnum = %d, want 1", peer.OutSeqnum)
	}

	info, rpeer, err := receiver.ReceivePacket()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(info.Payload, payload) {
		t.Fatalf("received payload = % X, want % X", info.Payload, payload)
	}
	if info.SSRC != sender.SSRC() {
		t.Fatalf("received SSRC = %d, want %d", info.SSRC, sender.SSRC())
	}
	if rpeer.InSeqnum != 1 {
		t.Fatalf("peer.InSeqnum = %d, want 1 (first packet has sequence 1)", rpeer.InSeqnum)
	}
}

func TestReceiveOutOfOrderDoesNotAdvance(t *testing.T) {
	sender, _ := newLoopbackEngine(t, 10)
	receiver, receiverAddr := newLoopbackEngine(t, 11)
	peer, _ := sender.Table.Insert(11, receiverAddr)

	sender.SendPacket(peer, PacketInfo{Timestamp: 1, Payload: []byte{0x01}})
	if _, rpeer, err := receiver.ReceivePacket(); err != nil || rpeer.InSeqnum != 1 {
		t.Fatalf("first packet: seq=%d err=%v", rpeer.InSeqnum, err)
	}

	// Skip ahead on the wire by bumping the sender's OutSeqnum before the
	// next SendPacket, so the second packet is non-consecutive.
	peer.OutSeqnum = 5 // simulate a gap: next send will carry sequence 6, not 2
	sender.SendPacket(peer, PacketInfo{Timestamp: 2, Payload: []byte{0x02}})
	_, rpeer, err := receiver.ReceivePacket()
	if err != nil {
		t.Fatal(err)
	}
	if rpeer.InSeqnum != 1 {
		t.Fatalf("out-of-order packet advanced InSeqnum to %d, want unchanged 1", rpeer.InSeqnum)
	}
}
