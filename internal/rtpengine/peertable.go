package rtpengine

import (
	"net"

	"github.com/midigateway/rtpmidi/internal/apperr"
)

// slots is the fixed peer table size.
const slots = 16

// Peer tracks one RTP/RTP-MIDI session partner: its address and the
// sequence/timestamp bookkeeping send_packet/receive_packet maintain.
type Peer struct {
	SSRC uint32
	Addr *net.UDPAddr

	OutSeqnum    uint16
	OutTimestamp uint32
	InSeqnum     uint16
	InTimestamp  uint32
}

// Table is the 16-slot open-addressing peer table: insert scans for the
// first empty slot starting at ssrc mod 16 (step 1), lookup by ssrc scans
// up to 16 slots from the same offset, lookup by address is linear.
type Table struct {
	slots [slots]*Peer
}

// Insert adds a new peer for ssrc/addr. It fails with apperr.TooManyPeers
// if all 16 slots starting at ssrc mod 16 are occupied.
func (t *Table) Insert(ssrc uint32, addr *net.UDPAddr) (*Peer, error) {
	start := int(ssrc % slots)
	for i := 0; i < slots; i++ {
		idx := (start + i) % slots
		if t.slots[idx] == nil {
			p := &Peer{SSRC: ssrc, Addr: addr}
			t.slots[idx] = p
			return p, nil
		}
	}
	return nil, apperr.New(apperr.TooManyPeers, "rtpengine.Insert", nil)
}

// LookupBySSRC scans up to 16 slots starting at ssrc mod 16.
func (t *Table) LookupBySSRC(ssrc uint32) (*Peer, bool) {
	start := int(ssrc % slots)
	for i := 0; i < slots; i++ {
		idx := (start + i) % slots
		p := t.slots[idx]
		if p != nil && p.SSRC == ssrc {
			return p, true
		}
	}
	return nil, false
}

// LookupByAddr is a linear scan over all occupied slots.
func (t *Table) LookupByAddr(addr *net.UDPAddr) (*Peer, bool) {
	for _, p := range t.slots {
		if p != nil && udpAddrEqual(p.Addr, addr) {
			return p, true
		}
	}
	return nil, false
}

// Remove clears the slot holding ssrc, if any.
func (t *Table) Remove(ssrc uint32) {
	for i, p := range t.slots {
		if p != nil && p.SSRC == ssrc {
			t.slots[i] = nil
			return
		}
	}
}

// NextPeer yields every occupied slot in index order. Initialize cursor to
// 0 and call repeatedly until ok is false.
func (t *Table) NextPeer(cursor *int) (*Peer, bool) {
	for *cursor < slots {
		idx := *cursor
		*cursor++
		if t.slots[idx] != nil {
			return t.slots[idx], true
		}
	}
	return nil, false
}

func udpAddrEqual(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
