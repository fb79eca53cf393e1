package applemidi

import "net"

// maybeStartSync advances the round-robin cursor over candidateOrder
// looking for the next Established candidate whose sync is incomplete,
// and starts a fresh three-way exchange toward it. It is a no-op if a sync is already in flight or no
// eligible candidate exists.
func (d *Driver) maybeStartSync() error {
	if d.inFlightSync || len(d.candidateOrder) == 0 {
		return nil
	}
	n := len(d.candidateOrder)
	for i := 0; i < n; i++ {
		idx := (d.syncCursor + i) % n
		c := d.candidateOrder[idx]
		if c.State != Established || c.sync.Complete {
			continue
		}
		d.syncCursor = (idx + 1) % n
		d.inFlightSync = true
		cmd := startSyncCommand(d.ssrc, uint64(d.clock.Now()))
		return d.sendRtpCommand(cmd, c.RtpAddr)
	}
	return nil
}

// handleClockSync dispatches an inbound CK to the candidate addressed by
// its RTP socket peer and, when the exchange resolves or restarts,
// updates inFlightSync so maybeStartSync can pick the next peer.
func (d *Driver) handleClockSync(cmd Command, from *net.UDPAddr) error {
	c := d.candidateByRtpAddr(from)
	if c == nil {
		return nil
	}
	reply, send := nextSyncCommand(c, cmd, d.ssrc, uint64(d.clock.Now()))
	if cmd.Count == 0 {
		d.inFlightSync = true
	}
	if !send {
		d.inFlightSync = false
		return d.maybeStartSync()
	}
	if err := d.sendRtpCommand(reply, from); err != nil {
		return err
	}
	if reply.Count == 2 {
		d.inFlightSync = false
		return d.maybeStartSync()
	}
	return nil
}

func (d *Driver) candidateByRtpAddr(addr *net.UDPAddr) *Candidate {
	for _, c := range d.candidateOrder {
		if c.RtpAddr != nil && c.RtpAddr.IP.Equal(addr.IP) && c.RtpAddr.Port == addr.Port {
			return c
		}
	}
	return nil
}
