// Package rtpengine implements the RTP packet engine: a peer
// table, header codec, and send/receive operations layered on top of
// github.com/pion/rtp's wire codec.
package rtpengine

import (
	"net"

	"github.com/midigateway/rtpmidi/internal/apperr"
	"github.com/midigateway/rtpmidi/internal/metrics"
)

// scratchSize is the minimum scratch buffer size.
const scratchSize = 512

// Engine owns one UDP socket, a self SSRC, and the peer table for packets
// exchanged over it.
type Engine struct {
	conn    *net.UDPConn
	ssrc    uint32
	Table   Table
	scratch []byte
	sendBuf []byte

	// Counters is optional; when set, SendPacket/ReceivePacket update it.
	Counters *metrics.Counters
}

// New wraps conn. ssrc identifies this engine's outbound packets.
func New(conn *net.UDPConn, ssrc uint32) *Engine {
	return &Engine{
		conn:    conn,
		ssrc:    ssrc,
		scratch: make([]byte, scratchSize),
		sendBuf: make([]byte, scratchSize),
	}
}

// SSRC returns this engine's self SSRC.
func (e *Engine) SSRC() uint32 { return e.ssrc }

// SendPacket implements send_packet: it stamps info with
// this engine's SSRC and the peer's next outbound sequence number,
// assembles the packet, and writes it as a single datagram to peer.Addr.
func (e *Engine) SendPacket(peer *Peer, info PacketInfo) error {
	info.SSRC = e.ssrc
	info.SequenceNumber = peer.OutSeqnum + 1

	buf := e.sendBuf
	need := fixedHeaderSize + len(info.Extension) + len(info.Payload) + int(info.PaddingSize)
	if need > len(buf) {
		buf = make([]byte, need)
	}
	n, err := encodePacket(&info, buf)
	if err != nil {
		return err
	}

	written, err := e.conn.WriteToUDP(buf[:n], peer.Addr)
	if err != nil {
		return apperr.New(apperr.SendTruncated, "rtpengine.SendPacket", err).WithPeer(peer.Addr.String())
	}
	if written != n {
		return apperr.New(apperr.SendTruncated, "rtpengine.SendPacket", nil).WithPeer(peer.Addr.String())
	}

	peer.OutSeqnum = info.SequenceNumber
	peer.OutTimestamp = info.Timestamp
	if e.Counters != nil {
		e.Counters.PacketsSent.Add(1)
	}
	return nil
}

// ReceivePacket implements receive_packet: it reads one
// datagram, decodes the fixed header, resolves (or creates) the sending
// peer, and advances the peer's inbound sequence/timestamp only when the
// packet is the immediate successor of the last one seen.
func (e *Engine) ReceivePacket() (PacketInfo, *Peer, error) {
	n, addr, err := e.conn.ReadFromUDP(e.scratch)
	if err != nil {
		return PacketInfo{}, nil, apperr.New(apperr.RecvError, "rtpengine.ReceivePacket", err)
	}
	return e.ProcessDatagram(e.scratch[:n], addr)
}

// ProcessDatagram runs receive_packet's decode and peer bookkeeping on a
// datagram that was already read off the socket (a driver that probe-reads
// to classify packets hands the bytes here instead of reading twice).
func (e *Engine) ProcessDatagram(buf []byte, addr *net.UDPAddr) (PacketInfo, *Peer, error) {
	info, err := decodePacket(buf)
	if err != nil {
		if e.Counters != nil {
			e.Counters.PacketsDropped.Add(1)
		}
		return PacketInfo{}, nil, err
	}

	peer, ok := e.Table.LookupBySSRC(info.SSRC)
	if !ok {
		peer, err = e.Table.Insert(info.SSRC, addr)
		if err != nil {
			return PacketInfo{}, nil, err
		}
	}

	if info.SequenceNumber == peer.InSeqnum+1 {
		peer.InSeqnum = info.SequenceNumber
		peer.InTimestamp = info.Timestamp
	}

	out := info
	out.Payload = append([]byte(nil), info.Payload...)
	if len(info.Extension) > 0 {
		out.Extension = append([]byte(nil), info.Extension...)
	}
	if e.Counters != nil {
		e.Counters.PacketsReceived.Add(1)
	}
	return out, peer, nil
}
