package rtpengine

import (
	"github.com/pion/rtp"

	"github.com/midigateway/rtpmidi/internal/apperr"
)

// PacketInfo describes one RTP packet to send, or one that was received.
// Payload is a single contiguous slice in both directions; a header
// extension, when present, is carried separately in ExtensionProfile and
// Extension.
type PacketInfo struct {
	PayloadType    uint8
	Marker         bool
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32

	ExtensionProfile uint16
	Extension        []byte // raw extension words, already padded to 4 bytes

	Payload []byte

	PaddingSize uint8
}

// fixedHeaderSize is the 12-byte fixed RTP header with no CSRC.
const fixedHeaderSize = 12

func toPionHeader(info *PacketInfo) rtp.Header {
	h := rtp.Header{
		Version:        2,
		Marker:         info.Marker,
		PayloadType:    info.PayloadType,
		SequenceNumber: info.SequenceNumber,
		Timestamp:      info.Timestamp,
		SSRC:           info.SSRC,
	}
	if len(info.Extension) > 0 {
		_ = h.SetExtension(0, info.Extension)
		h.ExtensionProfile = info.ExtensionProfile
	}
	return h
}

// encodePacket assembles info's header and payload into buf, returning
// the bytes written. Go's net.PacketConn has no vectored WriteTo, so the
// header, extension and payload are written contiguously into one scratch
// buffer instead of being submitted as separate iovecs.
func encodePacket(info *PacketInfo, buf []byte) (int, error) {
	h := toPionHeader(info)
	n, err := h.MarshalTo(buf)
	if err != nil {
		return 0, apperr.New(apperr.SendTruncated, "rtpengine.encodePacket", err)
	}
	n += copy(buf[n:], info.Payload)
	if info.PaddingSize > 0 {
		if n+int(info.PaddingSize) > len(buf) {
			return 0, apperr.New(apperr.SendTruncated, "rtpengine.encodePacket", nil)
		}
		for i := 0; i < int(info.PaddingSize)-1; i++ {
			buf[n+i] = 0
		}
		buf[n+int(info.PaddingSize)-1] = info.PaddingSize
		n += int(info.PaddingSize)
	}
	return n, nil
}

// decodePacket parses a received datagram into a PacketInfo. The payload
// references buf directly; callers that need to retain it past the next
// receive must copy it. Extension bytes, when present, are copied out of
// buf.
func decodePacket(buf []byte) (PacketInfo, error) {
	var h rtp.Header
	n, err := h.Unmarshal(buf)
	if err != nil {
		return PacketInfo{}, apperr.New(apperr.ShortPacket, "rtpengine.decodePacket", err)
	}
	if h.Version != 2 {
		return PacketInfo{}, apperr.New(apperr.BadRtpVersion, "rtpengine.decodePacket", nil)
	}
	info := PacketInfo{
		PayloadType:    h.PayloadType,
		Marker:         h.Marker,
		SequenceNumber: h.SequenceNumber,
		Timestamp:      h.Timestamp,
		SSRC:           h.SSRC,
	}
	payload := buf[n:]
	if h.Padding && len(payload) > 0 {
		padLen := int(payload[len(payload)-1])
		if padLen > 0 && padLen <= len(payload) {
			payload = payload[:len(payload)-padLen]
		}
	}
	if h.Extension {
		info.ExtensionProfile = h.ExtensionProfile
		for _, id := range h.GetExtensionIDs() {
			info.Extension = append(info.Extension, h.GetExtension(id)...)
		}
	}
	info.Payload = payload
	return info, nil
}
