package applemidi

import (
	"fmt"
	"net"
)

// CandidateState is a peer candidate's position in the invitation
// handshake.
type CandidateState int

const (
	Idle CandidateState = iota
	InvitingControl
	InvitingRtp
	Established
	Ending
)

var candidateStateNames = map[CandidateState]string{
	Idle:            "Idle",
	InvitingControl: "InvitingControl",
	InvitingRtp:     "InvitingRtp",
	Established:     "Established",
	Ending:          "Ending",
}

// String implements fmt.Stringer.
func (s CandidateState) String() string {
	if name, ok := candidateStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CandidateState(%d)", int(s))
}

// Candidate is one peer moving through the invitation handshake. Once
// Established it corresponds 1:1 with an rtpengine.Peer keyed by SSRC.
type Candidate struct {
	ControlAddr *net.UDPAddr
	RtpAddr     *net.UDPAddr

	Token uint32
	SSRC  uint32 // remote SSRC, known once OK(rtp) arrives

	State CandidateState

	sync syncState
}

// rtpAddrFor derives a peer's RTP address from its control address: same
// host, port + 1.
func rtpAddrFor(addr *net.UDPAddr) *net.UDPAddr {
	return &net.UDPAddr{IP: addr.IP, Port: addr.Port + 1, Zone: addr.Zone}
}
