package applemidi

import (
	"bytes"
	"testing"
)

func TestInvitationRoundTrip(t *testing.T) {
	cmd := Command{Tag: TagInvitation, Version: 2, Token: 0xCAFEBABE, SSRC: 0x12345678, Name: "studio"}
	buf := make([]byte, 128)
	n, err := EncodeCommand(cmd, buf)
	if err != nil {
		t.Fatal(err)
	}
	if !IsSessionCommand(buf[:n]) {
		t.Fatal("IsSessionCommand = false for an encoded invitation")
	}
	got, err := DecodeCommand(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	if got != cmd {
		t.Fatalf("got %+v, want %+v", got, cmd)
	}
}

func TestClockSyncRoundTrip(t *testing.T) {
	cmd := Command{Tag: TagClockSync, SSRC: 42, Count: 1, TS1: 100, TS2: 200, TS3: 0}
	buf := make([]byte, 64)
	n, err := EncodeCommand(cmd, buf)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeCommand(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	if got != cmd {
		t.Fatalf("got %+v, want %+v", got, cmd)
	}
}

func TestReceiverFeedbackRoundTrip(t *testing.T) {
	cmd := Command{Tag: TagReceiverFeedback, SSRC: 7, Seqnum: 1000}
	buf := make([]byte, 32)
	n, err := EncodeCommand(cmd, buf)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeCommand(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	if got != cmd {
		t.Fatalf("got %+v, want %+v", got, cmd)
	}
}

func TestIsSessionCommandRejectsRTPMIDI(t *testing.T) {
	rtpLike := []byte{0x80, 0x61, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	if IsSessionCommand(rtpLike) {
		t.Fatal("an RTP-shaped packet was classified as a session command")
	}
}

func TestIsSessionCommandRejectsUnknownTag(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 'Z', 'Z'}
	if IsSessionCommand(buf) {
		t.Fatal("an unknown tag was classified as a session command")
	}
}

func TestDecodeRejectsBadSignature(t *testing.T) {
	buf := []byte{0x00, 0x00, 'I', 'N'}
	if _, err := DecodeCommand(buf); err == nil {
		t.Fatal("expected an error for a missing signature")
	}
}

func TestEncodeRejectsOversizedName(t *testing.T) {
	long := bytes.Repeat([]byte{'a'}, maxNameLen+10)
	cmd := Command{Tag: TagInvitation, Name: string(long)}
	buf := make([]byte, 128)
	// EncodeCommand rejects names over the limit outright.
	if _, err := EncodeCommand(cmd, buf); err == nil {
		t.Fatal("expected EncodeCommand to reject an oversized name")
	}
}
