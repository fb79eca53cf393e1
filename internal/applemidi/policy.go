package applemidi

import "net"

// AcceptKind selects which inbound invitations a driver honors.
type AcceptKind int

const (
	AcceptNone AcceptKind = iota
	AcceptAny
	AcceptOnlyPeer
)

// AcceptPolicy governs whether an inbound IN is answered OK or NO.
// AcceptOnlyPeer enforces an exact address+port match against Peer; there
// is no subnet or wildcard-port matching.
type AcceptPolicy struct {
	Kind AcceptKind
	Peer *net.UDPAddr
}

// AcceptFromNone rejects every inbound invitation.
func AcceptFromNone() AcceptPolicy { return AcceptPolicy{Kind: AcceptNone} }

// AcceptFromAny accepts every inbound invitation.
func AcceptFromAny() AcceptPolicy { return AcceptPolicy{Kind: AcceptAny} }

// AcceptFromPeer accepts only invitations whose source exactly matches
// addr (IP and port both).
func AcceptFromPeer(addr *net.UDPAddr) AcceptPolicy {
	return AcceptPolicy{Kind: AcceptOnlyPeer, Peer: addr}
}

// Allows reports whether source may be accepted under p.
func (p AcceptPolicy) Allows(source *net.UDPAddr) bool {
	switch p.Kind {
	case AcceptAny:
		return true
	case AcceptOnlyPeer:
		return p.Peer != nil && p.Peer.IP.Equal(source.IP) && p.Peer.Port == source.Port
	default:
		return false
	}
}
