// Package applemidi implements the AppleMIDI session driver:
// the session-command wire codec, per-candidate handshake state machine,
// three-way clock sync, and the runloop-facing I/O integration.
package applemidi

import (
	"encoding/binary"

	"github.com/midigateway/rtpmidi/internal/apperr"
)

// signature is the fixed first two bytes of every session command.
const signature = 0xFFFF

// Tag identifies a session command.
type Tag string

const (
	TagInvitation       Tag = "IN"
	TagAccepted         Tag = "OK"
	TagRejected         Tag = "NO"
	TagEndSession       Tag = "BY"
	TagClockSync        Tag = "CK"
	TagReceiverFeedback Tag = "RS"
)

var knownTags = map[Tag]bool{
	TagInvitation: true, TagAccepted: true, TagRejected: true,
	TagEndSession: true, TagClockSync: true, TagReceiverFeedback: true,
}

// maxNameLen is the maximum session-name length on the wire.
const maxNameLen = 63

// Command is a decoded session command. Only the fields relevant to Tag
// are meaningful.
type Command struct {
	Tag Tag

	Version uint32
	Token   uint32
	SSRC    uint32
	Name    string

	Count uint8
	TS1   uint64
	TS2   uint64
	TS3   uint64

	Seqnum uint32
}

// IsSessionCommand reports whether buf begins with the session-command
// signature followed by a known tag.
// Packets that don't match are treated as RTP-MIDI.
func IsSessionCommand(buf []byte) bool {
	if len(buf) < 4 {
		return false
	}
	if binary.BigEndian.Uint16(buf[0:2]) != signature {
		return false
	}
	return knownTags[Tag(buf[2:4])]
}

// EncodeCommand writes cmd to buf, returning the bytes written.
func EncodeCommand(cmd Command, buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, apperr.New(apperr.ShortPacket, "applemidi.EncodeCommand", nil)
	}
	binary.BigEndian.PutUint16(buf[0:2], signature)
	copy(buf[2:4], cmd.Tag)
	n := 4

	switch cmd.Tag {
	case TagInvitation, TagAccepted, TagRejected, TagEndSession:
		if len(cmd.Name) > maxNameLen {
			return 0, apperr.New(apperr.BadSessionCommand, "applemidi.EncodeCommand", nil)
		}
		need := n + 12 + len(cmd.Name)
		if len(buf) < need {
			return 0, apperr.New(apperr.ShortPacket, "applemidi.EncodeCommand", nil)
		}
		binary.BigEndian.PutUint32(buf[n:], cmd.Version)
		binary.BigEndian.PutUint32(buf[n+4:], cmd.Token)
		binary.BigEndian.PutUint32(buf[n+8:], cmd.SSRC)
		n += 12
		n += copy(buf[n:], cmd.Name)
	case TagClockSync:
		need := n + 4 + 4 + 8 + 8 + 8
		if len(buf) < need {
			return 0, apperr.New(apperr.ShortPacket, "applemidi.EncodeCommand", nil)
		}
		binary.BigEndian.PutUint32(buf[n:], cmd.SSRC)
		n += 4
		buf[n] = cmd.Count
		buf[n+1], buf[n+2], buf[n+3] = 0, 0, 0
		n += 4
		binary.BigEndian.PutUint64(buf[n:], cmd.TS1)
		n += 8
		binary.BigEndian.PutUint64(buf[n:], cmd.TS2)
		n += 8
		binary.BigEndian.PutUint64(buf[n:], cmd.TS3)
		n += 8
	case TagReceiverFeedback:
		need := n + 8
		if len(buf) < need {
			return 0, apperr.New(apperr.ShortPacket, "applemidi.EncodeCommand", nil)
		}
		binary.BigEndian.PutUint32(buf[n:], cmd.SSRC)
		n += 4
		binary.BigEndian.PutUint32(buf[n:], cmd.Seqnum)
		n += 4
	default:
		return 0, apperr.New(apperr.BadSessionCommand, "applemidi.EncodeCommand", nil)
	}
	return n, nil
}

// DecodeCommand parses a session command from buf. Callers should first
// check IsSessionCommand.
func DecodeCommand(buf []byte) (Command, error) {
	if len(buf) < 4 {
		return Command{}, apperr.New(apperr.ShortPacket, "applemidi.DecodeCommand", nil)
	}
	if binary.BigEndian.Uint16(buf[0:2]) != signature {
		return Command{}, apperr.New(apperr.BadSessionCommand, "applemidi.DecodeCommand", nil)
	}
	tag := Tag(buf[2:4])
	if !knownTags[tag] {
		return Command{}, apperr.New(apperr.BadSessionCommand, "applemidi.DecodeCommand", nil)
	}
	cmd := Command{Tag: tag}
	body := buf[4:]

	switch tag {
	case TagInvitation, TagAccepted, TagRejected, TagEndSession:
		if len(body) < 12 {
			return Command{}, apperr.New(apperr.ShortPacket, "applemidi.DecodeCommand", nil)
		}
		cmd.Version = binary.BigEndian.Uint32(body[0:])
		cmd.Token = binary.BigEndian.Uint32(body[4:])
		cmd.SSRC = binary.BigEndian.Uint32(body[8:])
		name := body[12:]
		if len(name) > maxNameLen {
			name = name[:maxNameLen]
		}
		cmd.Name = string(name)
	case TagClockSync:
		if len(body) < 32 {
			return Command{}, apperr.New(apperr.ShortPacket, "applemidi.DecodeCommand", nil)
		}
		cmd.SSRC = binary.BigEndian.Uint32(body[0:])
		cmd.Count = body[4]
		cmd.TS1 = binary.BigEndian.Uint64(body[8:])
		cmd.TS2 = binary.BigEndian.Uint64(body[16:])
		cmd.TS3 = binary.BigEndian.Uint64(body[24:])
	case TagReceiverFeedback:
		if len(body) < 8 {
			return Command{}, apperr.New(apperr.ShortPacket, "applemidi.DecodeCommand", nil)
		}
		cmd.SSRC = binary.BigEndian.Uint32(body[0:])
		cmd.Seqnum = binary.BigEndian.Uint32(body[4:])
	}
	return cmd, nil
}
