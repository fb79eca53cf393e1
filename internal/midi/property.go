package midi

import "github.com/midigateway/rtpmidi/internal/apperr"

// Property names one addressable field of a Message. Get/Set route
// through a switch-based dispatch per status family.
type Property int

const (
	PropStatus Property = iota
	PropChannel
	PropKey
	PropVelocity
	PropPressure
	PropControl
	PropValue
	PropProgram
	PropValueLsb
	PropValueMsb
	PropManufacturerID
	PropSysexData
	PropSysexSize
	PropSysexFragment
	PropTimeCodeType
)

// Set assigns property from a 16-bit value. It fails with
// apperr.BadProperty if the value is out of range or the property does
// not apply to the message's status. PropManufacturerID, PropSysexData
// and PropSysexFragment are not settable through Set; use
// SetManufacturerID and SetSysexData directly.
func (m *Message) Set(prop Property, v uint16) error {
	switch prop {
	case PropChannel:
		return m.SetChannel(uint8(v))
	case PropKey:
		return m.SetKey(uint8(v))
	case PropVelocity:
		return m.SetVelocity(uint8(v))
	case PropPressure:
		return m.SetPressure(uint8(v))
	case PropControl:
		return m.SetControl(uint8(v))
	case PropValue:
		return m.SetValue(v)
	case PropProgram:
		return m.SetProgram(uint8(v))
	case PropValueLsb:
		return m.SetValueLSB(uint8(v))
	case PropValueMsb:
		return m.SetValueMSB(uint8(v))
	case PropTimeCodeType:
		return m.SetTimeCodeType(uint8(v))
	default:
		return apperr.New(apperr.BadProperty, "midi.Set", nil)
	}
}

// Get reads property as a 16-bit value. It fails with apperr.BadProperty
// if the property does not apply to the message's status.
func (m Message) Get(prop Property) (uint16, error) {
	switch prop {
	case PropStatus:
		return uint16(m.status), nil
	case PropChannel:
		if !m.status.IsChannelMessage() {
			return 0, rangeErr("midi.Get")
		}
		return uint16(m.channel), nil
	case PropKey:
		if m.status != NoteOn && m.status != NoteOff && m.status != PolyphonicKeyPressure {
			return 0, rangeErr("midi.Get")
		}
		return uint16(m.key), nil
	case PropVelocity:
		if m.status != NoteOn && m.status != NoteOff {
			return 0, rangeErr("midi.Get")
		}
		return uint16(m.velocity), nil
	case PropPressure:
		if m.status != PolyphonicKeyPressure && m.status != ChannelPressure {
			return 0, rangeErr("midi.Get")
		}
		return uint16(m.pressure), nil
	case PropControl:
		if m.status != ControlChange {
			return 0, rangeErr("midi.Get")
		}
		return uint16(m.control), nil
	case PropValue:
		switch m.status {
		case ControlChange, SongSelect, PitchWheelChange, SongPositionPointer:
			return m.value16, nil
		default:
			return 0, rangeErr("midi.Get")
		}
	case PropProgram:
		if m.status != ProgramChange {
			return 0, rangeErr("midi.Get")
		}
		return uint16(m.program), nil
	case PropValueLsb:
		if m.status != PitchWheelChange && m.status != SongPositionPointer {
			return 0, rangeErr("midi.Get")
		}
		return uint16(m.ValueLSB()), nil
	case PropValueMsb:
		if m.status != PitchWheelChange && m.status != SongPositionPointer {
			return 0, rangeErr("midi.Get")
		}
		return uint16(m.ValueMSB()), nil
	case PropTimeCodeType:
		if m.status != TimeCodeQuarterFrame {
			return 0, rangeErr("midi.Get")
		}
		return uint16(m.timeCodeType), nil
	case PropSysexSize:
		if m.status != SystemExclusive {
			return 0, rangeErr("midi.Get")
		}
		return uint16(len(m.sysexData)), nil
	case PropSysexFragment:
		if m.status != SystemExclusive {
			return 0, rangeErr("midi.Get")
		}
		return uint16(m.sysexFragment), nil
	default:
		return 0, apperr.New(apperr.BadProperty, "midi.Get", nil)
	}
}
