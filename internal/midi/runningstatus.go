package midi

import "github.com/midigateway/rtpmidi/internal/apperr"

// EncodeRS writes m to buf using running status: if m is a channel message
// and its wire status byte equals *rs, the status byte is omitted. System
// common messages (0xF0..0xF7) always write their status byte and clear
// *rs; system real-time messages (0xF8..0xFF) are written in full and never
// touch *rs.
func EncodeRS(rs *byte, m Message, buf []byte) (int, error) {
	status := m.status
	switch {
	case status.IsRealTime():
		return m.Encode(buf)
	case status.IsSystemCommon():
		*rs = 0
		return m.Encode(buf)
	default: // channel message
		wire := byte(status) | m.channel
		if wire == *rs {
			full := make([]byte, m.Size())
			written, err := m.Encode(full)
			if err != nil {
				return 0, err
			}
			n := copy(buf, full[1:written])
			return n, nil
		}
		n, err := m.Encode(buf)
		if err != nil {
			return 0, err
		}
		*rs = wire
		return n, nil
	}
}

// DecodeRS reads one message from buf under running status, updating *rs
// as EncodeRS would have. It fails with apperr.NoRunningStatus if buf
// begins with a data byte and *rs is zero.
func DecodeRS(rs *byte, buf []byte) (Message, int, error) {
	if len(buf) < 1 {
		return Message{}, 0, apperr.New(apperr.ShortPacket, "midi.DecodeRS", nil)
	}
	if buf[0] >= 0x80 {
		status := statusByteOf(buf[0])
		if !isKnownStatus(status) {
			return Message{}, 0, apperr.New(apperr.BadStatus, "midi.DecodeRS", nil)
		}
		m, err := Create(status)
		if err != nil {
			return Message{}, 0, err
		}
		if status.IsChannelMessage() {
			m.channel = buf[0] & 0x0f
		}
		mm, n, err := decodeBody(m, status, buf)
		if err != nil {
			return Message{}, 0, err
		}
		switch {
		case status.IsRealTime():
			// *rs untouched
		case status.IsSystemCommon():
			*rs = 0
		default:
			*rs = buf[0]
		}
		return mm, n, nil
	}

	if *rs == 0 {
		return Message{}, 0, apperr.New(apperr.NoRunningStatus, "midi.DecodeRS", nil)
	}
	status := statusByteOf(*rs)
	m, err := Create(status)
	if err != nil {
		return Message{}, 0, err
	}
	m.channel = *rs & 0x0f

	synth := make([]byte, 1+len(buf))
	synth[0] = *rs
	copy(synth[1:], buf)
	mm, n, err := decodeBody(m, status, synth)
	if err != nil {
		return Message{}, 0, err
	}
	return mm, n - 1, nil
}
