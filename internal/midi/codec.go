package midi

import "github.com/midigateway/rtpmidi/internal/apperr"

// DataLength returns the number of data bytes that follow status's status
// byte on the wire, or -1 for SystemExclusive, whose length is determined
// by its 0xF7 terminator. Reserved/unknown statuses return 0.
func DataLength(status Status) int {
	switch status {
	case NoteOff, NoteOn, PolyphonicKeyPressure, ControlChange, PitchWheelChange, SongPositionPointer:
		return 2
	case ProgramChange, ChannelPressure, TimeCodeQuarterFrame, SongSelect:
		return 1
	case SystemExclusive:
		return -1
	default:
		return 0
	}
}

// Encode writes m to buf in its full (non-running-status) wire form and
// returns the number of bytes written. buf must be large enough; callers
// decoding untrusted sizes should use Size first.
func (m Message) Encode(buf []byte) (int, error) {
	if len(buf) < m.Size() {
		return 0, apperr.New(apperr.ShortPacket, "midi.Encode", nil)
	}
	n := 0
	statusByte := byte(m.status)
	if m.status.IsChannelMessage() {
		statusByte |= m.channel
	}
	buf[n] = statusByte
	n++

	switch m.status {
	case NoteOff, NoteOn:
		buf[n] = m.key
		buf[n+1] = m.velocity
		n += 2
	case PolyphonicKeyPressure:
		buf[n] = m.key
		buf[n+1] = m.pressure
		n += 2
	case ControlChange:
		buf[n] = m.control
		buf[n+1] = uint8(m.value16)
		n += 2
	case ProgramChange:
		buf[n] = m.program
		n++
	case ChannelPressure:
		buf[n] = m.pressure
		n++
	case PitchWheelChange, SongPositionPointer:
		buf[n] = m.ValueLSB()
		buf[n+1] = m.ValueMSB()
		n += 2
	case TimeCodeQuarterFrame:
		buf[n] = m.timeCodeType
		n++
	case SongSelect:
		buf[n] = uint8(m.value16)
		n++
	case TuneRequest, EndOfExclusive, TimingClock, Start, Continue, Stop, ActiveSensing, Reset:
		// no data bytes
	case SystemExclusive:
		written, err := m.encodeSysexBody(buf[n:])
		if err != nil {
			return 0, err
		}
		n += written
	}
	return n, nil
}

// Size returns the number of bytes Encode would write.
func (m Message) Size() int {
	switch m.status {
	case SystemExclusive:
		idLen := 1
		if m.manufacturerID.Extended {
			idLen = 3
		}
		return 1 + idLen + len(m.sysexData) + 1 // status + id + data + terminator
	default:
		dl := DataLength(m.status)
		if dl < 0 {
			dl = 0
		}
		return 1 + dl
	}
}

func (m Message) encodeSysexBody(buf []byte) (int, error) {
	idLen := 1
	if m.manufacturerID.Extended {
		idLen = 3
	}
	need := idLen + len(m.sysexData) + 1
	if len(buf) < need {
		return 0, apperr.New(apperr.ShortPacket, "midi.Encode", nil)
	}
	n := 0
	if m.manufacturerID.Extended {
		buf[0], buf[1], buf[2] = m.manufacturerID.Bytes[0], m.manufacturerID.Bytes[1], m.manufacturerID.Bytes[2]
		n = 3
	} else {
		buf[0] = m.manufacturerID.Short
		n = 1
	}
	n += copy(buf[n:], m.sysexData)
	buf[n] = byte(EndOfExclusive)
	n++
	return n, nil
}

// Decode reads one message from buf in its full (non-running-status) wire
// form and returns it along with the number of bytes consumed.
func Decode(buf []byte) (Message, int, error) {
	if len(buf) < 1 {
		return Message{}, 0, apperr.New(apperr.ShortPacket, "midi.Decode", nil)
	}
	raw := buf[0]
	if raw < 0x80 {
		return Message{}, 0, apperr.New(apperr.NoRunningStatus, "midi.Decode", nil)
	}
	status := statusByteOf(raw)
	if !isKnownStatus(status) {
		return Message{}, 0, apperr.New(apperr.BadStatus, "midi.Decode", nil)
	}
	m, err := Create(status)
	if err != nil {
		return Message{}, 0, err
	}
	if status.IsChannelMessage() {
		m.channel = raw & 0x0f
	}
	return decodeBody(m, status, buf)
}

func decodeBody(m Message, status Status, buf []byte) (Message, int, error) {
	n := 1
	need := func(k int) error {
		if len(buf) < n+k {
			return apperr.New(apperr.ShortPacket, "midi.Decode", nil)
		}
		return nil
	}
	switch status {
	case NoteOff, NoteOn:
		if err := need(2); err != nil {
			return Message{}, 0, err
		}
		m.key, m.velocity = buf[n], buf[n+1]
		n += 2
	case PolyphonicKeyPressure:
		if err := need(2); err != nil {
			return Message{}, 0, err
		}
		m.key, m.pressure = buf[n], buf[n+1]
		n += 2
	case ControlChange:
		if err := need(2); err != nil {
			return Message{}, 0, err
		}
		m.control, m.value16 = buf[n], uint16(buf[n+1])
		n += 2
	case ProgramChange:
		if err := need(1); err != nil {
			return Message{}, 0, err
		}
		m.program = buf[n]
		n++
	case ChannelPressure:
		if err := need(1); err != nil {
			return Message{}, 0, err
		}
		m.pressure = buf[n]
		n++
	case PitchWheelChange, SongPositionPointer:
		if err := need(2); err != nil {
			return Message{}, 0, err
		}
		lsb, msb := buf[n], buf[n+1]
		m.value16 = uint16(lsb&0x7f) | uint16(msb&0x7f)<<7
		n += 2
	case TimeCodeQuarterFrame:
		if err := need(1); err != nil {
			return Message{}, 0, err
		}
		m.timeCodeType = buf[n]
		n++
	case SongSelect:
		if err := need(1); err != nil {
			return Message{}, 0, err
		}
		m.value16 = uint16(buf[n])
		n++
	case TuneRequest, EndOfExclusive, TimingClock, Start, Continue, Stop, ActiveSensing, Reset:
		// no data bytes
	case SystemExclusive:
		consumed, err := decodeSysexBody(&m, buf[n:])
		if err != nil {
			return Message{}, 0, err
		}
		n += consumed
	}
	return m, n, nil
}

func decodeSysexBody(m *Message, buf []byte) (int, error) {
	if len(buf) < 1 {
		return 0, apperr.New(apperr.ShortPacket, "midi.Decode", nil)
	}
	n := 0
	if buf[0] == 0x00 {
		if len(buf) < 3 {
			return 0, apperr.New(apperr.ShortPacket, "midi.Decode", nil)
		}
		m.manufacturerID = ManufacturerID{Extended: true, Bytes: [3]uint8{buf[0], buf[1], buf[2]}}
		n = 3
	} else {
		m.manufacturerID = ManufacturerID{Short: buf[0]}
		n = 1
	}
	start := n
	for n < len(buf) && buf[n] < 0x80 {
		n++
	}
	if n >= len(buf) || buf[n] != byte(EndOfExclusive) {
		return 0, apperr.New(apperr.MalformedCommandList, "midi.Decode", nil)
	}
	m.sysexData = append([]byte(nil), buf[start:n]...)
	n++ // consume the terminator
	return n, nil
}
