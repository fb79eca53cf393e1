package rtpmidi

import (
	"github.com/midigateway/rtpmidi/internal/apperr"
	"github.com/midigateway/rtpmidi/internal/midi"
	"github.com/midigateway/rtpmidi/internal/varlen"
)

// EncodeCommandList writes messages as a running-status command list
// into buf, returning the bytes written and whether the first message
// carried an explicit delta time (the header's Z flag). baseTs is
// the RTP timestamp the first message's delta is computed against — in
// rtpmidi.Session.Send this is always messages[0].Timestamp itself, so the
// first delta is always zero, but the codec stays general for callers that
// track their own running baseline across packets.
func EncodeCommandList(messages []midi.Message, buf []byte, baseTs int64) (n int, firstHasDelta bool, err error) {
	var rs byte
	prevTs := baseTs
	for i, m := range messages {
		delta := m.Timestamp - prevTs
		if delta < 0 {
			delta = 0
		}
		writeDelta := i > 0 || delta != 0
		if i == 0 {
			firstHasDelta = delta != 0
		}
		if writeDelta {
			dn := varlen.Write(uint32(delta), buf[n:])
			if dn == 0 {
				return 0, false, apperr.New(apperr.ShortPacket, "rtpmidi.EncodeCommandList", nil)
			}
			n += dn
		}
		mn, err := midi.EncodeRS(&rs, m, buf[n:])
		if err != nil {
			return 0, false, err
		}
		n += mn
		prevTs = m.Timestamp
	}
	return n, firstHasDelta, nil
}

// DecodeCommandList reads a running-status command list of exactly length
// bytes from buf, reconstructing each message's absolute Timestamp from
// baseTs (the packet's RTP timestamp) plus the accumulated deltas.
// firstHasDelta must match the header's Z flag. Bytes left over after the
// last complete message fail with apperr.MalformedCommandList; a message
// cut off at length fails with the message decoder's error (typically
// apperr.ShortPacket).
func DecodeCommandList(buf []byte, length int, firstHasDelta bool, baseTs int64) ([]midi.Message, error) {
	if length > len(buf) {
		return nil, apperr.New(apperr.ShortPacket, "rtpmidi.DecodeCommandList", nil)
	}
	body := buf[:length]
	var messages []midi.Message
	var rs byte
	ts := baseTs
	pos := 0
	for i := 0; pos < length; i++ {
		hasDelta := i > 0 || firstHasDelta
		if hasDelta {
			delta, consumed, err := varlen.Read(body[pos:])
			if err != nil {
				return nil, err
			}
			pos += consumed
			ts += int64(delta)
		}
		if pos >= length {
			return nil, apperr.New(apperr.MalformedCommandList, "rtpmidi.DecodeCommandList", nil)
		}
		m, consumed, err := midi.DecodeRS(&rs, body[pos:])
		if err != nil {
			return nil, err
		}
		m.Timestamp = ts
		messages = append(messages, m)
		pos += consumed
	}
	if pos != length {
		return nil, apperr.New(apperr.MalformedCommandList, "rtpmidi.DecodeCommandList", nil)
	}
	return messages, nil
}
