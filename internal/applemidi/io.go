package applemidi

import (
	"net"
	"time"

	"github.com/midigateway/rtpmidi/internal/apperr"
	"github.com/midigateway/rtpmidi/internal/midi"
	"github.com/midigateway/rtpmidi/internal/portgraph"
	"github.com/midigateway/rtpmidi/internal/runloop"
)

// probeBufSize is large enough for any session command or RTP-MIDI
// datagram this driver handles in one read.
const probeBufSize = 1500

// readWindow bounds each socket read. Receive is driven by the runloop's
// readiness signal, so a queued datagram is returned immediately; the
// window only caps how long an empty socket can stall the step.
const readWindow = time.Millisecond

// Receive performs one step of inbound processing: it reads at most one
// pending datagram on the control socket (always session commands) and
// at most one pending datagram on the RTP socket (session command or
// RTP-MIDI, disambiguated by IsSessionCommand).
func (d *Driver) Receive() error {
	if err := d.receiveControl(); err != nil {
		return err
	}
	return d.receiveRtp()
}

func (d *Driver) receiveControl() error {
	buf := make([]byte, probeBufSize)
	d.controlConn.SetReadDeadline(time.Now().Add(readWindow))
	n, from, err := d.controlConn.ReadFromUDP(buf)
	d.controlConn.SetReadDeadline(time.Time{})
	if err != nil {
		if isTimeout(err) {
			return nil
		}
		return apperr.New(apperr.RecvError, "applemidi.Receive", err)
	}
	if !IsSessionCommand(buf[:n]) {
		return nil
	}
	cmd, err := DecodeCommand(buf[:n])
	if err != nil {
		d.logErr(err)
		return nil
	}
	if err := d.HandleControlCommand(cmd, from); err != nil {
		d.logErr(err)
	}
	return nil
}

func (d *Driver) receiveRtp() error {
	buf := make([]byte, probeBufSize)
	d.rtpConn.SetReadDeadline(time.Now().Add(readWindow))
	n, from, err := d.rtpConn.ReadFromUDP(buf)
	d.rtpConn.SetReadDeadline(time.Time{})
	if err != nil {
		if isTimeout(err) {
			return nil
		}
		return apperr.New(apperr.RecvError, "applemidi.Receive", err)
	}
	if IsSessionCommand(buf[:n]) {
		cmd, err := DecodeCommand(buf[:n])
		if err != nil {
			d.logErr(err)
			return nil
		}
		if err := d.HandleRtpCommand(cmd, from); err != nil {
			d.logErr(err)
		}
		return nil
	}

	_, messages, err := d.session.ReceiveDatagram(buf[:n], from)
	if err != nil {
		d.logErr(err)
		return nil
	}
	if len(messages) > 0 {
		portgraph.Send(d.msgPort, MessageBatchType, messages)
	}
	return nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// Send drains up to outboundDrainMax queued messages and issues one
// rtpmidi.Session.Send per peer in the RTP engine's peer table.
func (d *Driver) Send() error {
	if d.outbound.Len() == 0 {
		return nil
	}

	messages := make([]midi.Message, 0, outboundDrainMax)
	for i := 0; i < outboundDrainMax; i++ {
		msg, ok := d.outbound.Pop()
		if !ok {
			break
		}
		messages = append(messages, msg)
	}
	if len(messages) == 0 {
		return nil
	}
	var cursor int
	for {
		p, ok := d.engine.Table.NextPeer(&cursor)
		if !ok {
			break
		}
		if err := d.session.Send(p, messages); err != nil {
			d.logErr(err)
		}
	}
	return nil
}

// Idle starts a fresh clock-sync exchange toward the next Established
// candidate whose sync is incomplete, if no exchange is in flight.
func (d *Driver) Idle() error {
	return d.maybeStartSync()
}

// GetRunloopSource builds the driver's single runloop.Source: its
// readiness sets are both UDP sockets, dispatching through
// Receive/Send/Idle.
func (d *Driver) GetRunloopSource(timeout time.Duration) (*runloop.Source, error) {
	ctrlFd, err := sysFd(d.controlConn)
	if err != nil {
		return nil, err
	}
	rtpFd, err := sysFd(d.rtpConn)
	if err != nil {
		return nil, err
	}
	return &runloop.Source{
		ReadFds:  []int{ctrlFd, rtpFd},
		WriteFds: []int{rtpFd},
		Timeout:  timeout,
		Read: func() error {
			return d.Receive()
		},
		Write: func() error {
			return d.Send()
		},
		Idle: func(time.Duration) error {
			return d.Idle()
		},
		Info: d,
	}, nil
}

func sysFd(conn *net.UDPConn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, apperr.New(apperr.SocketError, "applemidi.sysFd", err)
	}
	var fd int
	ctrlErr := raw.Control(func(descriptor uintptr) {
		fd = int(descriptor)
	})
	if ctrlErr != nil {
		return 0, apperr.New(apperr.SocketError, "applemidi.sysFd", ctrlErr)
	}
	return fd, nil
}
