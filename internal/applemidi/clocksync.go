package applemidi

// syncState holds one candidate's three-way clock sync result.
// MediaDelay and PeerOffset are in the same tick units as the
// CK timestamps exchanged (100 microsecond units per the AppleMIDI wire
// convention); callers needing a different unit convert via
// internal/midiclock.
type syncState struct {
	Complete   bool
	MediaDelay int64
	PeerOffset int64
}

// nextSyncCommand computes the driver's response (if any) to an inbound
// CK addressed to candidate c, and updates c's sync estimate once the
// exchange resolves. selfSSRC identifies this driver; now is the current
// clock reading in CK's tick units. It returns (reply, send) — send is
// false when no reply is needed (the exchange just completed).
func nextSyncCommand(c *Candidate, cmd Command, selfSSRC uint32, now uint64) (reply Command, send bool) {
	if cmd.SSRC == selfSSRC || cmd.Count > 2 {
		return Command{Tag: TagClockSync, SSRC: selfSSRC, Count: 0, TS1: now}, true
	}
	switch cmd.Count {
	case 0: // we are the responder starting a fresh exchange
		return Command{Tag: TagClockSync, SSRC: selfSSRC, Count: 1, TS1: cmd.TS1, TS2: now}, true
	case 1: // we are the initiator completing the exchange
		ts3 := now
		mediaDelay := int64(ts3-cmd.TS1) / 2
		c.sync.MediaDelay = mediaDelay
		c.sync.PeerOffset = int64(cmd.TS2) + mediaDelay - int64(ts3)
		c.sync.Complete = true
		return Command{Tag: TagClockSync, SSRC: selfSSRC, Count: 2, TS1: cmd.TS1, TS2: cmd.TS2, TS3: ts3}, true
	case 2: // we are the responder; exchange complete, no reply
		mediaDelay := int64(cmd.TS3-cmd.TS1) / 2
		c.sync.MediaDelay = mediaDelay
		c.sync.PeerOffset = int64(cmd.TS3) + mediaDelay - int64(now)
		c.sync.Complete = true
		return Command{}, false
	}
	return Command{}, false
}

// startSyncCommand builds the initiating CK(count=0) for c.
func startSyncCommand(selfSSRC uint32, now uint64) Command {
	return Command{Tag: TagClockSync, SSRC: selfSSRC, Count: 0, TS1: now}
}
