package applemidi

import (
	"net"
	"strconv"

	"github.com/midigateway/rtpmidi/internal/apperr"
)

func (d *Driver) nextToken() uint32 {
	d.tokenCounter++
	return d.tokenCounter
}

// AddPeer begins the invitation handshake toward addr:port by sending IN
// on the control socket.
func (d *Driver) AddPeer(addr string, port uint16) error {
	udpAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(addr, strconv.Itoa(int(port))))
	if err != nil {
		return apperr.New(apperr.NameResolutionFailed, "applemidi.AddPeer", err)
	}
	return d.addPeerAddr(udpAddr)
}

func (d *Driver) addPeerAddr(controlAddr *net.UDPAddr) error {
	c := &Candidate{ControlAddr: controlAddr, Token: d.nextToken(), State: InvitingControl}
	d.candidatesByAddr[controlAddr.String()] = c
	d.candidateOrder = append(d.candidateOrder, c)

	cmd := Command{Tag: TagInvitation, Version: 2, Token: c.Token, SSRC: d.ssrc, Name: d.name}
	return d.sendControlCommand(cmd, controlAddr)
}

// RemovePeer locates the peer at addr:port, drops it from the RTP
// session, and sends BY to its control address.
func (d *Driver) RemovePeer(addr string, port uint16) error {
	udpAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(addr, strconv.Itoa(int(port))))
	if err != nil {
		return apperr.New(apperr.NameResolutionFailed, "applemidi.RemovePeer", err)
	}
	key := udpAddr.String()
	c, ok := d.candidatesByAddr[key]
	if !ok {
		return apperr.New(apperr.PeerUnknown, "applemidi.RemovePeer", nil)
	}
	d.dropCandidate(c)
	cmd := Command{Tag: TagEndSession, Version: 2, Token: c.Token, SSRC: d.ssrc, Name: d.name}
	return d.sendControlCommand(cmd, c.ControlAddr)
}

func (d *Driver) dropCandidate(c *Candidate) {
	delete(d.candidatesByAddr, c.ControlAddr.String())
	for i, cc := range d.candidateOrder {
		if cc == c {
			d.candidateOrder = append(d.candidateOrder[:i], d.candidateOrder[i+1:]...)
			break
		}
	}
	d.engine.Table.Remove(c.SSRC)
	c.State = Idle
}

func (d *Driver) sendControlCommand(cmd Command, addr *net.UDPAddr) error {
	buf := make([]byte, 128)
	n, err := EncodeCommand(cmd, buf)
	if err != nil {
		return err
	}
	if _, err := d.controlConn.WriteToUDP(buf[:n], addr); err != nil {
		return apperr.New(apperr.SendTruncated, "applemidi.sendControlCommand", err)
	}
	return nil
}

func (d *Driver) sendRtpCommand(cmd Command, addr *net.UDPAddr) error {
	buf := make([]byte, 128)
	n, err := EncodeCommand(cmd, buf)
	if err != nil {
		return err
	}
	if _, err := d.rtpConn.WriteToUDP(buf[:n], addr); err != nil {
		return apperr.New(apperr.SendTruncated, "applemidi.sendRtpCommand", err)
	}
	return nil
}

// HandleControlCommand processes one session command received on the
// control socket from from.
func (d *Driver) HandleControlCommand(cmd Command, from *net.UDPAddr) error {
	switch cmd.Tag {
	case TagAccepted:
		return d.handleOKControl(cmd, from)
	case TagRejected:
		return d.handleNO(cmd, from)
	case TagInvitation:
		return d.handleInvitation(cmd, from, false)
	case TagEndSession:
		return d.handleBY(cmd, from)
	default:
		return apperr.New(apperr.BadSessionCommand, "applemidi.HandleControlCommand", nil)
	}
}

// HandleRtpCommand processes one session command received on the RTP
// socket from from.
func (d *Driver) HandleRtpCommand(cmd Command, from *net.UDPAddr) error {
	switch cmd.Tag {
	case TagAccepted:
		return d.handleOKRtp(cmd, from)
	case TagRejected:
		return d.handleNO(cmd, from)
	case TagInvitation:
		return d.handleInvitation(cmd, from, true)
	case TagEndSession:
		return d.handleBY(cmd, from)
	case TagClockSync:
		return d.handleClockSync(cmd, from)
	case TagReceiverFeedback:
		return d.handleReceiverFeedback(cmd)
	default:
		return apperr.New(apperr.BadSessionCommand, "applemidi.HandleRtpCommand", nil)
	}
}

func (d *Driver) handleOKControl(cmd Command, from *net.UDPAddr) error {
	c, ok := d.candidatesByAddr[from.String()]
	if !ok || c.Token != cmd.Token || c.State != InvitingControl {
		return nil
	}
	c.RtpAddr = rtpAddrFor(from)
	c.State = InvitingRtp
	invite := Command{Tag: TagInvitation, Version: 2, Token: c.Token, SSRC: d.ssrc, Name: d.name}
	return d.sendRtpCommand(invite, c.RtpAddr)
}

func (d *Driver) handleOKRtp(cmd Command, from *net.UDPAddr) error {
	controlAddr := &net.UDPAddr{IP: from.IP, Port: from.Port - 1, Zone: from.Zone}
	c, ok := d.candidatesByAddr[controlAddr.String()]
	if !ok || c.Token != cmd.Token || c.State != InvitingRtp {
		return nil
	}
	c.SSRC = cmd.SSRC
	c.State = Established
	if _, err := d.engine.Table.Insert(c.SSRC, from); err != nil {
		return err
	}
	d.emit(PeerDidAcceptInvitation, c)
	return d.maybeStartSync()
}

// candidateForSource resolves the candidate a command from addr belongs
// to: addr is either the candidate's control address or its RTP address
// (control port + 1), depending on which socket the command arrived on.
func (d *Driver) candidateForSource(addr *net.UDPAddr) (*Candidate, bool) {
	if c, ok := d.candidatesByAddr[addr.String()]; ok {
		return c, true
	}
	ctrl := &net.UDPAddr{IP: addr.IP, Port: addr.Port - 1, Zone: addr.Zone}
	c, ok := d.candidatesByAddr[ctrl.String()]
	return c, ok
}

func (d *Driver) handleNO(cmd Command, from *net.UDPAddr) error {
	c, ok := d.candidateForSource(from)
	if !ok || c.Token != cmd.Token {
		return nil
	}
	d.dropCandidate(c)
	d.emit(PeerDidRejectInvitation, c)
	return nil
}

func (d *Driver) handleInvitation(cmd Command, from *net.UDPAddr, isRtp bool) error {
	if !d.limiter.Allow(from.String()) {
		return apperr.New(apperr.InvitationRejected, "applemidi.handleInvitation", nil).WithPeer(from.String())
	}

	// The policy always judges the peer's control address; an IN on the
	// RTP socket originates from control port + 1.
	controlAddr := from
	if isRtp {
		controlAddr = &net.UDPAddr{IP: from.IP, Port: from.Port - 1, Zone: from.Zone}
	}
	key := controlAddr.String()
	c, ok := d.candidatesByAddr[key]
	if !ok {
		c = &Candidate{ControlAddr: controlAddr, State: Idle}
		if isRtp {
			c.RtpAddr = from
		}
		d.candidatesByAddr[key] = c
		d.candidateOrder = append(d.candidateOrder, c)
	}
	d.emit(PeerDidSendInvitation, c)

	if !d.policy.Allows(controlAddr) {
		if d.counters != nil {
			d.counters.InvitationsNO.Add(1)
		}
		d.errSink.Log(apperr.New(apperr.InvitationRejected, "applemidi.handleInvitation", nil).WithPeer(from.String()))
		reply := Command{Tag: TagRejected, Version: 2, Token: cmd.Token, SSRC: d.ssrc, Name: d.name}
		if isRtp {
			return d.sendRtpCommand(reply, from)
		}
		return d.sendControlCommand(reply, from)
	}

	reply := Command{Tag: TagAccepted, Version: 2, Token: cmd.Token, SSRC: d.ssrc, Name: d.name}
	if isRtp {
		c.RtpAddr = from
		c.SSRC = cmd.SSRC
		c.State = Established
		if _, err := d.engine.Table.Insert(c.SSRC, from); err != nil {
			return err
		}
		return d.sendRtpCommand(reply, from)
	}
	return d.sendControlCommand(reply, from)
}

func (d *Driver) handleBY(cmd Command, from *net.UDPAddr) error {
	c, ok := d.candidateForSource(from)
	if !ok {
		if p, found := d.engine.Table.LookupBySSRC(cmd.SSRC); found {
			d.engine.Table.Remove(p.SSRC)
		}
		return nil
	}
	d.dropCandidate(c)
	d.emit(PeerDidEndSession, c)
	return nil
}

func (d *Driver) handleReceiverFeedback(cmd Command) error {
	d.session.Journal.Truncate(cmd.SSRC, cmd.Seqnum)
	return nil
}
