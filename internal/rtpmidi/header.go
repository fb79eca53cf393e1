// Package rtpmidi implements the RTP-MIDI payload layer: the
// MIDI-list header, the running-status command-list codec built on
// internal/midi and internal/varlen, and a channel-voice recovery journal.
package rtpmidi

import "github.com/midigateway/rtpmidi/internal/apperr"

// Header is the decoded MIDI-list header.
type Header struct {
	Journal       bool // J
	FirstHasDelta bool // Z
	Phantom       bool // P
	Length        int  // command-list byte count
}

const (
	flagB = 0x80 // long-form marker, high bit of the first byte
	flagJ = 0x40
	flagZ = 0x20
	flagP = 0x10

	shortLenMask = 0x0f
	maxShortLen  = 0x0f
	maxLongLen   = 0x0fff
)

// EncodeHeader writes hdr in short form when hdr.Length <= 15, long form
// otherwise, returning the bytes written. It fails with
// apperr.MalformedCommandList if Length exceeds the long-form limit.
func EncodeHeader(hdr Header, buf []byte) (int, error) {
	if hdr.Length > maxLongLen {
		return 0, apperr.New(apperr.MalformedCommandList, "rtpmidi.EncodeHeader", nil)
	}
	flags := byte(0)
	if hdr.Journal {
		flags |= flagJ
	}
	if hdr.FirstHasDelta {
		flags |= flagZ
	}
	if hdr.Phantom {
		flags |= flagP
	}
	if hdr.Length <= maxShortLen {
		if len(buf) < 1 {
			return 0, apperr.New(apperr.ShortPacket, "rtpmidi.EncodeHeader", nil)
		}
		buf[0] = flags | byte(hdr.Length&shortLenMask)
		return 1, nil
	}
	if len(buf) < 2 {
		return 0, apperr.New(apperr.ShortPacket, "rtpmidi.EncodeHeader", nil)
	}
	buf[0] = flagB | flags | byte((hdr.Length>>8)&0x0f)
	buf[1] = byte(hdr.Length & 0xff)
	return 2, nil
}

// DecodeHeader reads a MIDI-list header from buf, returning the header and
// the number of bytes consumed (1 for short form, 2 for long form).
func DecodeHeader(buf []byte) (Header, int, error) {
	if len(buf) < 1 {
		return Header{}, 0, apperr.New(apperr.ShortPacket, "rtpmidi.DecodeHeader", nil)
	}
	b0 := buf[0]
	hdr := Header{
		Journal:       b0&flagJ != 0,
		FirstHasDelta: b0&flagZ != 0,
		Phantom:       b0&flagP != 0,
	}
	if b0&flagB == 0 {
		hdr.Length = int(b0 & shortLenMask)
		return hdr, 1, nil
	}
	if len(buf) < 2 {
		return Header{}, 0, apperr.New(apperr.ShortPacket, "rtpmidi.DecodeHeader", nil)
	}
	hdr.Length = int(b0&0x0f)<<8 | int(buf[1])
	return hdr, 2, nil
}
