package rtpmidi

import (
	"bytes"
	"testing"

	"github.com/midigateway/rtpmidi/internal/midi"
)

func noteOn(ts int64, ch, key, vel uint8) midi.Message {
	m, _ := midi.Create(midi.NoteOn)
	m.SetChannel(ch)
	m.SetKey(key)
	m.SetVelocity(vel)
	m.Timestamp = ts
	return m
}

func TestCommandListRoundTripPreservesTimestampsAndRunningStatus(t *testing.T) {
	const baseTs = 100
	messages := []midi.Message{
		noteOn(baseTs, 7, 0x3F, 0x7F),
		noteOn(110, 7, 0x36, 0x4C), // same status/channel: running status omits the byte
		noteOn(200, 6, 0x10, 0x20), // different channel: full status byte re-emitted
	}
	buf := make([]byte, 64)
	n, firstHasDelta, err := EncodeCommandList(messages, buf, baseTs)
	if err != nil {
		t.Fatal(err)
	}
	if firstHasDelta {
		t.Fatal("first message's delta from baseTs is zero; Z should be false")
	}

	got, err := DecodeCommandList(buf, n, firstHasDelta, baseTs)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(messages) {
		t.Fatalf("decoded %d messages, want %d", len(got), len(messages))
	}
	for i, want := range messages {
		if got[i].Channel() != want.Channel() || got[i].Key() != want.Key() || got[i].Velocity() != want.Velocity() {
			t.Fatalf("message %d: got %+v, want %+v", i, got[i], want)
		}
		if got[i].Timestamp != want.Timestamp {
			t.Fatalf("message %d: timestamp = %d, want %d", i, got[i].Timestamp, want.Timestamp)
		}
	}
}

func TestCommandListEncodesRunningStatusSavings(t *testing.T) {
	messages := []midi.Message{
		noteOn(0, 7, 0x3F, 0x7F),
		noteOn(0, 7, 0x36, 0x4C),
	}
	buf := make([]byte, 64)
	n, _, err := EncodeCommandList(messages, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	// message 1: first message, zero delta from baseTs is omitted; status+key+vel = 3 bytes
	// message 2: delta(1, always written past the first message) + key+vel
	// only, status byte omitted under running status = 2 bytes
	if n != 6 {
		t.Fatalf("encoded length = %d, want 6", n)
	}
}

func TestPayloadBytesForZeroDeltaBatch(t *testing.T) {
	on, _ := midi.Create(midi.NoteOn)
	on.SetChannel(0)
	on.SetKey(0x42)
	on.SetVelocity(0x68)
	pressure, _ := midi.Create(midi.PolyphonicKeyPressure)
	pressure.SetChannel(0)
	pressure.SetKey(0x42)
	pressure.SetPressure(0x78)
	off, _ := midi.Create(midi.NoteOff)
	off.SetChannel(0)
	off.SetKey(0x42)
	off.SetVelocity(0x68)
	messages := []midi.Message{on, pressure, off}

	buf := make([]byte, 64)
	n, firstHasDelta, err := EncodeCommandList(messages, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	hdrBuf := make([]byte, 2)
	hdrLen, err := EncodeHeader(Header{FirstHasDelta: firstHasDelta, Length: n}, hdrBuf)
	if err != nil {
		t.Fatal(err)
	}

	// Identical timestamps: the first delta is elided (Z=0), the later
	// deltas are a single 0x00, and each status change re-emits its byte.
	want := []byte{0x0B, 0x90, 0x42, 0x68, 0x00, 0xA0, 0x42, 0x78, 0x00, 0x80, 0x42, 0x68}
	got := append(hdrBuf[:hdrLen], buf[:n]...)
	if !bytes.Equal(got, want) {
		t.Fatalf("payload = % X, want % X", got, want)
	}
}

func TestDecodeCommandListExcessDataIsMalformed(t *testing.T) {
	messages := []midi.Message{noteOn(0, 0, 0x10, 0x20)}
	buf := make([]byte, 64)
	n, firstHasDelta, err := EncodeCommandList(messages, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeCommandList(buf, n+1, firstHasDelta, 0); err == nil {
		t.Fatal("expected error decoding with an inflated length")
	}
}

func TestEmptyCommandList(t *testing.T) {
	got, err := DecodeCommandList(nil, 0, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d messages, want 0", len(got))
	}
}
