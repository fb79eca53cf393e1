package midi

import "github.com/midigateway/rtpmidi/internal/apperr"

// Message is an owned MIDI message value: a status plus the fields that
// apply to it, carrying a timestamp assigned by whichever component is
// about to queue or encode it.
//
// Message needs no manual retain bit on its sysex payload: a Go slice is
// already owned by whoever holds it, and the garbage collector frees it
// once unreferenced.
type Message struct {
	status  Status
	channel uint8 // 0..15, channel messages only

	key      uint8 // NoteOn/NoteOff/PolyphonicKeyPressure
	velocity uint8 // NoteOn/NoteOff
	pressure uint8 // PolyphonicKeyPressure/ChannelPressure

	control uint8  // ControlChange controller number
	value16 uint16 // ControlChange value (0..127) / PitchWheelChange & SongPositionPointer (0..16383) / SongSelect (0..127)
	program uint8  // ProgramChange

	timeCodeType uint8 // TimeCodeQuarterFrame data byte (0..127)

	manufacturerID ManufacturerID
	sysexData      []byte
	sysexFragment  uint32

	Timestamp int64
}

// ManufacturerID is a MIDI sysex manufacturer identifier: either a 7-bit
// short form, or a three-byte extended form flagged by Extended.
type ManufacturerID struct {
	Extended bool
	Short    uint8
	Bytes    [3]uint8
}

// Create returns a new owned Message for status with all variant-specific
// fields zeroed. It fails with apperr.BadStatus if status is reserved or
// otherwise unrecognized.
func Create(status Status) (Message, error) {
	if !isKnownStatus(status) {
		return Message{}, apperr.New(apperr.BadStatus, "midi.Create", nil)
	}
	return Message{status: status}, nil
}

// Status returns the message's status family.
func (m Message) Status() Status { return m.status }

// Channel returns the message's channel. Only meaningful when
// m.Status().IsChannelMessage().
func (m Message) Channel() uint8 { return m.channel }

func rangeErr(op string) error {
	return apperr.New(apperr.BadProperty, op, nil)
}

// SetChannel sets the channel (0..15). Channel 16 ("ALL"/"BASE") is
// reserved and is always rejected, as is any value on a non-channel
// message.
func (m *Message) SetChannel(ch uint8) error {
	if !m.status.IsChannelMessage() {
		return rangeErr("midi.SetChannel")
	}
	if ch > 15 {
		return rangeErr("midi.SetChannel")
	}
	m.channel = ch
	return nil
}

func (m *Message) setSevenBit(dst *uint8, v uint8, op string, applies bool) error {
	if !applies || v > 127 {
		return rangeErr(op)
	}
	*dst = v
	return nil
}

// SetKey sets the note/key number (0..127). Applies to NoteOn, NoteOff,
// PolyphonicKeyPressure.
func (m *Message) SetKey(v uint8) error {
	applies := m.status == NoteOn || m.status == NoteOff || m.status == PolyphonicKeyPressure
	return m.setSevenBit(&m.key, v, "midi.SetKey", applies)
}

// Key returns the note/key number.
func (m Message) Key() uint8 { return m.key }

// SetVelocity sets the velocity (0..127). Applies to NoteOn, NoteOff.
func (m *Message) SetVelocity(v uint8) error {
	applies := m.status == NoteOn || m.status == NoteOff
	return m.setSevenBit(&m.velocity, v, "midi.SetVelocity", applies)
}

// Velocity returns the velocity.
func (m Message) Velocity() uint8 { return m.velocity }

// SetPressure sets the pressure (0..127). Applies to PolyphonicKeyPressure
// (per-key aftertouch) and ChannelPressure.
func (m *Message) SetPressure(v uint8) error {
	applies := m.status == PolyphonicKeyPressure || m.status == ChannelPressure
	return m.setSevenBit(&m.pressure, v, "midi.SetPressure", applies)
}

// Pressure returns the pressure.
func (m Message) Pressure() uint8 { return m.pressure }

// SetControl sets the controller number (0..127). Applies to ControlChange.
func (m *Message) SetControl(v uint8) error {
	return m.setSevenBit(&m.control, v, "midi.SetControl", m.status == ControlChange)
}

// Control returns the controller number.
func (m Message) Control() uint8 { return m.control }

// SetProgram sets the program number (0..127). Applies to ProgramChange.
func (m *Message) SetProgram(v uint8) error {
	return m.setSevenBit(&m.program, v, "midi.SetProgram", m.status == ProgramChange)
}

// Program returns the program number.
func (m Message) Program() uint8 { return m.program }

// SetTimeCodeType sets the raw quarter-frame data byte (0..127). Applies
// to TimeCodeQuarterFrame.
func (m *Message) SetTimeCodeType(v uint8) error {
	return m.setSevenBit(&m.timeCodeType, v, "midi.SetTimeCodeType", m.status == TimeCodeQuarterFrame)
}

// TimeCodeType returns the raw quarter-frame data byte.
func (m Message) TimeCodeType() uint8 { return m.timeCodeType }

// SetValue sets the message's value. For ControlChange and SongSelect this
// is a 7-bit value (0..127); for PitchWheelChange and SongPositionPointer
// it is a 14-bit value (0..16383).
func (m *Message) SetValue(v uint16) error {
	switch m.status {
	case ControlChange, SongSelect:
		if v > 127 {
			return rangeErr("midi.SetValue")
		}
	case PitchWheelChange, SongPositionPointer:
		if v > 16383 {
			return rangeErr("midi.SetValue")
		}
	default:
		return rangeErr("midi.SetValue")
	}
	m.value16 = v
	return nil
}

// Value returns the message's value (see SetValue).
func (m Message) Value() uint16 { return m.value16 }

// SetValueLSB sets the low 7 bits of a 14-bit value directly, leaving the
// high bits untouched. Applies to PitchWheelChange and SongPositionPointer.
func (m *Message) SetValueLSB(v uint8) error {
	if (m.status != PitchWheelChange && m.status != SongPositionPointer) || v > 127 {
		return rangeErr("midi.SetValueLSB")
	}
	m.value16 = (m.value16 &^ 0x7f) | uint16(v)
	return nil
}

// ValueLSB returns the low 7 bits of the 14-bit value.
func (m Message) ValueLSB() uint8 { return uint8(m.value16 & 0x7f) }

// SetValueMSB sets the high 7 bits of a 14-bit value directly, leaving the
// low bits untouched. Applies to PitchWheelChange and SongPositionPointer.
func (m *Message) SetValueMSB(v uint8) error {
	if (m.status != PitchWheelChange && m.status != SongPositionPointer) || v > 127 {
		return rangeErr("midi.SetValueMSB")
	}
	m.value16 = (m.value16 & 0x7f) | (uint16(v) << 7)
	return nil
}

// ValueMSB returns the high 7 bits of the 14-bit value.
func (m Message) ValueMSB() uint8 { return uint8((m.value16 >> 7) & 0x7f) }

// SetManufacturerID sets the sysex manufacturer identifier. Applies to
// SystemExclusive only.
func (m *Message) SetManufacturerID(id ManufacturerID) error {
	if m.status != SystemExclusive {
		return rangeErr("midi.SetManufacturerID")
	}
	if !id.Extended && id.Short > 127 {
		return rangeErr("midi.SetManufacturerID")
	}
	m.manufacturerID = id
	return nil
}

// ManufacturerID returns the sysex manufacturer identifier.
func (m Message) ManufacturerID() ManufacturerID { return m.manufacturerID }

// SetSysexData sets the sysex payload and its fragment index. data is
// retained by reference, not copied; the caller must not mutate it after
// the call. Applies to SystemExclusive only.
func (m *Message) SetSysexData(data []byte, fragment uint32) error {
	if m.status != SystemExclusive {
		return rangeErr("midi.SetSysexData")
	}
	m.sysexData = data
	m.sysexFragment = fragment
	return nil
}

// SysexData returns the sysex payload.
func (m Message) SysexData() []byte { return m.sysexData }

// SysexSize returns len(m.SysexData()).
func (m Message) SysexSize() int { return len(m.sysexData) }

// SysexFragment returns the sysex fragment index.
func (m Message) SysexFragment() uint32 { return m.sysexFragment }
