package rtpmidi

import (
	"net"

	"github.com/midigateway/rtpmidi/internal/apperr"
	"github.com/midigateway/rtpmidi/internal/midi"
	"github.com/midigateway/rtpmidi/internal/rtpengine"
)

// payloadType is the RTP payload type reserved for RTP-MIDI.
const payloadType = 97

// Session binds an RTP engine to RTP-MIDI's command-list codec and
// recovery journal.
type Session struct {
	Engine  *rtpengine.Engine
	Journal *Journal

	buf []byte
}

// NewSession wraps engine. journal may be shared across sessions keyed by
// peer SSRC.
func NewSession(engine *rtpengine.Engine, journal *Journal) *Session {
	return &Session{Engine: engine, Journal: journal, buf: make([]byte, 1500)}
}

// Send assembles messages into an RTP-MIDI payload and sends it to peer,
// using the first message's timestamp as the RTP timestamp.
// On success it stores the batch in the journal under the sequence number
// send_packet issued. A send-truncation failure drops the batch without
// updating the journal.
func (s *Session) Send(peer *rtpengine.Peer, messages []midi.Message) error {
	if len(messages) == 0 {
		return nil
	}

	baseTs := messages[0].Timestamp
	cmdLen, firstHasDelta, err := EncodeCommandList(messages, s.buf, baseTs)
	if err != nil {
		return err
	}

	hdr := Header{FirstHasDelta: firstHasDelta, Length: cmdLen}
	hdrBuf := make([]byte, 2)
	hdrLen, err := EncodeHeader(hdr, hdrBuf)
	if err != nil {
		return err
	}

	payload := make([]byte, hdrLen+cmdLen)
	copy(payload, hdrBuf[:hdrLen])
	copy(payload[hdrLen:], s.buf[:cmdLen])

	info := rtpengine.PacketInfo{
		PayloadType: payloadType,
		Timestamp:   uint32(messages[0].Timestamp),
		Payload:     payload,
	}
	if err := s.Engine.SendPacket(peer, info); err != nil {
		return err
	}

	s.Journal.Store(peer.SSRC, uint32(peer.OutSeqnum), messages)
	return nil
}

// Receive reads one RTP-MIDI packet, decoding its command list into
// messages. If the peer's inbound sequence number did not advance by
// exactly one (a detected gap) and the packet's journal bit is set, the
// journal's recovered messages are prepended.
func (s *Session) Receive() (peer *rtpengine.Peer, messages []midi.Message, err error) {
	info, p, err := s.Engine.ReceivePacket()
	if err != nil {
		return nil, nil, err
	}
	return s.process(info, p)
}

// ReceiveDatagram is Receive for a datagram that was already read off the
// socket by a caller that probe-reads to classify packets.
func (s *Session) ReceiveDatagram(buf []byte, from *net.UDPAddr) (peer *rtpengine.Peer, messages []midi.Message, err error) {
	info, p, err := s.Engine.ProcessDatagram(buf, from)
	if err != nil {
		return nil, nil, err
	}
	return s.process(info, p)
}

func (s *Session) process(info rtpengine.PacketInfo, p *rtpengine.Peer) (peer *rtpengine.Peer, messages []midi.Message, err error) {
	if info.PayloadType != payloadType {
		return nil, nil, apperr.New(apperr.MalformedCommandList, "rtpmidi.Receive", nil)
	}

	gap := p.InSeqnum != 0 && info.SequenceNumber != p.InSeqnum

	hdr, n, err := DecodeHeader(info.Payload)
	if err != nil {
		return nil, nil, err
	}
	decoded, err := DecodeCommandList(info.Payload[n:], hdr.Length, hdr.FirstHasDelta, int64(info.Timestamp))
	if err != nil {
		return nil, nil, err
	}

	messages = decoded
	if gap && hdr.Journal {
		recovered := s.Journal.Recover(p.SSRC)
		messages = append(recovered, messages...)
	}
	return p, messages, nil
}
