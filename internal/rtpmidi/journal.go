package rtpmidi

import (
	"sort"
	"sync"

	"github.com/midigateway/rtpmidi/internal/metrics"
	"github.com/midigateway/rtpmidi/internal/midi"
)

// channelState is the rolling channel-voice state the journal can
// replay after a loss: the last program change, the control values
// touched since the last full state, the pitch wheel position, and the
// set of notes currently sounding.
type channelState struct {
	hasProgram bool
	program    uint8

	controls map[uint8]uint8

	hasPitch bool
	pitch    uint16

	notesOn map[uint8]uint8 // key -> velocity
}

func newChannelState() *channelState {
	return &channelState{controls: make(map[uint8]uint8), notesOn: make(map[uint8]uint8)}
}

func (cs *channelState) apply(m midi.Message) {
	switch m.Status() {
	case midi.ProgramChange:
		cs.hasProgram = true
		cs.program = m.Program()
	case midi.ControlChange:
		cs.controls[m.Control()] = uint8(m.Value())
	case midi.PitchWheelChange:
		cs.hasPitch = true
		cs.pitch = m.Value()
	case midi.NoteOn:
		if m.Velocity() == 0 {
			delete(cs.notesOn, m.Key())
		} else {
			cs.notesOn[m.Key()] = m.Velocity()
		}
	case midi.NoteOff:
		delete(cs.notesOn, m.Key())
	}
}

// peerJournal is one peer's journal: the live rolling state per channel,
// plus the set of outbound sequence numbers still held.
type peerJournal struct {
	channels [16]*channelState
	seqnums  []uint32 // ascending, the seqnums stored and not yet truncated
}

func newPeerJournal() *peerJournal {
	pj := &peerJournal{}
	for i := range pj.channels {
		pj.channels[i] = newChannelState()
	}
	return pj
}

// Journal is the channel-voice recovery journal. Only the channel-voice
// chapter is implemented; system/extended chapters are out of scope.
type Journal struct {
	mu    sync.Mutex
	peers map[uint32]*peerJournal

	// Counters is optional; when set, Recover increments it on every call
	// that returns a non-empty replacement.
	Counters *metrics.Counters
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{peers: make(map[uint32]*peerJournal)}
}

// Store folds messages into peer's rolling channel-voice state and records
// seqnum as held. Callers must call Store only after a successful send,
// with the sequence number that send issued.
func (j *Journal) Store(peerSSRC uint32, seqnum uint32, messages []midi.Message) {
	j.mu.Lock()
	defer j.mu.Unlock()
	pj, ok := j.peers[peerSSRC]
	if !ok {
		pj = newPeerJournal()
		j.peers[peerSSRC] = pj
	}
	for _, m := range messages {
		if !m.Status().IsChannelMessage() {
			continue
		}
		pj.channels[m.Channel()].apply(m)
	}
	pj.seqnums = append(pj.seqnums, seqnum)
}

// Truncate removes all held seqnum bookkeeping for peer at or below
// upToSeqnum. The rolling channel-voice state itself is never discarded
// by truncation — it always reflects the latest known state, which is
// what Recover replays.
func (j *Journal) Truncate(peerSSRC uint32, upToSeqnum uint32) {
	j.mu.Lock()
	defer j.mu.Unlock()
	pj, ok := j.peers[peerSSRC]
	if !ok {
		return
	}
	kept := pj.seqnums[:0]
	for _, s := range pj.seqnums {
		if s > upToSeqnum {
			kept = append(kept, s)
		}
	}
	pj.seqnums = kept
}

// Recover synthesizes the minimum set of messages needed to restore
// peer's channel-voice state after a detected sequence gap. It returns
// nil if the peer is unknown. Consumers must not assume this is a
// lossless replay of the messages that were actually lost — it
// reconstructs current state, not history.
func (j *Journal) Recover(peerSSRC uint32) []midi.Message {
	j.mu.Lock()
	defer j.mu.Unlock()
	pj, ok := j.peers[peerSSRC]
	if !ok {
		return nil
	}
	var out []midi.Message
	for ch := 0; ch < 16; ch++ {
		cs := pj.channels[ch]
		if cs.hasProgram {
			m, _ := midi.Create(midi.ProgramChange)
			m.SetChannel(uint8(ch))
			m.SetProgram(cs.program)
			out = append(out, m)
		}
		controlNums := make([]uint8, 0, len(cs.controls))
		for k := range cs.controls {
			controlNums = append(controlNums, k)
		}
		sort.Slice(controlNums, func(i, j int) bool { return controlNums[i] < controlNums[j] })
		for _, k := range controlNums {
			m, _ := midi.Create(midi.ControlChange)
			m.SetChannel(uint8(ch))
			m.SetControl(k)
			m.SetValue(uint16(cs.controls[k]))
			out = append(out, m)
		}
		if cs.hasPitch {
			m, _ := midi.Create(midi.PitchWheelChange)
			m.SetChannel(uint8(ch))
			m.SetValue(cs.pitch)
			out = append(out, m)
		}
		keys := make([]uint8, 0, len(cs.notesOn))
		for k := range cs.notesOn {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			m, _ := midi.Create(midi.NoteOn)
			m.SetChannel(uint8(ch))
			m.SetKey(k)
			m.SetVelocity(cs.notesOn[k])
			out = append(out, m)
		}
	}
	if len(out) > 0 && j.Counters != nil {
		j.Counters.JournalRecoveries.Add(1)
	}
	return out
}
