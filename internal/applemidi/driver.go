package applemidi

import (
	"encoding/binary"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/midigateway/rtpmidi/internal/apperr"
	"github.com/midigateway/rtpmidi/internal/metrics"
	"github.com/midigateway/rtpmidi/internal/midi"
	"github.com/midigateway/rtpmidi/internal/midiclock"
	"github.com/midigateway/rtpmidi/internal/midiqueue"
	"github.com/midigateway/rtpmidi/internal/portgraph"
	"github.com/midigateway/rtpmidi/internal/rtpengine"
	"github.com/midigateway/rtpmidi/internal/rtpmidi"
)

// MessageBatchType tags the []midi.Message payloads the driver sends over
// its message port.
var MessageBatchType = portgraph.TypeSpec{ID: 1}

// maxNameWireLen caps the advertised session name.
const maxNameWireLen = 31

// outboundDrainMax caps how many queued messages one RTP packet carries.
const outboundDrainMax = 16

// Driver is the AppleMIDI session driver: two adjacent UDP
// sockets, the invitation handshake state machine, clock sync, and the
// queues that feed and drain the RTP-MIDI session.
type Driver struct {
	name string
	ssrc uint32
	id   uuid.UUID

	controlConn *net.UDPConn
	rtpConn     *net.UDPConn
	closeCtrl   sync.Once
	closeRtp    sync.Once

	engine  *rtpengine.Engine
	session *rtpmidi.Session

	policy  AcceptPolicy
	limiter *InvitationLimiter

	candidatesByAddr map[string]*Candidate
	candidateOrder   []*Candidate
	syncCursor       int
	inFlightSync     bool
	tokenCounter     uint32

	outbound *midiqueue.Queue
	msgPort  *portgraph.Port
	clock    *midiclock.Clock

	delegate Delegate
	logger   *slog.Logger
	errSink  apperr.Sink
	counters *metrics.Counters
}

// New creates a driver named name, bound to basePort (control) and
// basePort+1 (RTP) on all interfaces.
func New(name string, basePort uint16, opts ...Option) (*Driver, error) {
	if len(name) > maxNameWireLen {
		return nil, apperr.New(apperr.BadSessionCommand, "applemidi.New", nil)
	}

	controlConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(basePort)})
	if err != nil {
		return nil, apperr.New(apperr.BindError, "applemidi.New", err)
	}
	rtpConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(basePort) + 1})
	if err != nil {
		controlConn.Close()
		return nil, apperr.New(apperr.BindError, "applemidi.New", err)
	}

	id := uuid.New()
	d := &Driver{
		name:             name,
		ssrc:             ssrcFromID(id),
		id:               id,
		controlConn:      controlConn,
		rtpConn:          rtpConn,
		candidatesByAddr: make(map[string]*Candidate),
		outbound:         midiqueue.New(0),
		clock:            midiclock.New(10000), // CK timestamps are 100us ticks
		policy:           AcceptFromNone(),
		limiter:          NewInvitationLimiter(DefaultRateLimitConfig()),
		logger:           slog.Default(),
		errSink:          apperr.NopSink(),
	}
	d.msgPort = portgraph.New(name, portgraph.ModeOut, d, nil)
	d.engine = rtpengine.New(rtpConn, d.ssrc)
	d.session = rtpmidi.NewSession(d.engine, rtpmidi.NewJournal())

	for _, opt := range opts {
		opt(d)
	}
	if d.counters != nil {
		d.engine.Counters = d.counters
		d.session.Journal.Counters = d.counters
	}
	d.logger.Debug("driver created",
		"instance", d.id.String(), "ssrc", d.ssrc, "base_port", basePort)
	return d, nil
}

// Option configures a Driver at construction.
type Option func(*Driver)

// WithDelegate installs the driver's event delegate.
func WithDelegate(del Delegate) Option { return func(d *Driver) { d.delegate = del } }

// WithLogger installs a structured logger, overriding slog.Default.
func WithLogger(l *slog.Logger) Option { return func(d *Driver) { d.logger = l } }

// WithErrSink installs an apperr.Sink, overriding the no-op default.
func WithErrSink(s apperr.Sink) Option { return func(d *Driver) { d.errSink = s } }

// WithAcceptPolicy sets the initial accept policy.
func WithAcceptPolicy(p AcceptPolicy) Option { return func(d *Driver) { d.policy = p } }

// WithCounters installs the operational counters the driver updates as it
// sends/receives packets, rejects invitations, and recovers journal state.
// The same Counters should be passed to metrics.NewCollector.
func WithCounters(c *metrics.Counters) Option { return func(d *Driver) { d.counters = c } }

// WithRateLimit overrides the default invitation flood-protection config.
func WithRateLimit(cfg RateLimitConfig) Option {
	return func(d *Driver) {
		d.limiter.Stop()
		d.limiter = NewInvitationLimiter(cfg)
	}
}

// ssrcFromID derives the driver's 32-bit SSRC from its random instance
// ID, avoiding a separate math/rand seed for session identity.
func ssrcFromID(id uuid.UUID) uint32 {
	return binary.BigEndian.Uint32(id[:4])
}

// SSRC returns the driver's self SSRC.
func (d *Driver) SSRC() uint32 { return d.ssrc }

// SetAcceptPolicy updates which inbound invitations are honored.
func (d *Driver) SetAcceptPolicy(p AcceptPolicy) { d.policy = p }

// Close shuts down both sockets and the invitation rate limiter. Each
// socket is closed exactly once, guarded by sync.Once per socket, so a
// repeated Close is harmless.
func (d *Driver) Close() error {
	var err error
	d.closeCtrl.Do(func() { err = d.controlConn.Close() })
	d.closeRtp.Do(func() {
		if e := d.rtpConn.Close(); e != nil && err == nil {
			err = e
		}
	})
	d.limiter.Stop()
	return err
}

func (d *Driver) emit(kind EventKind, c *Candidate) {
	if d.delegate != nil {
		d.delegate.Handle(Event{Kind: kind, Candidate: c})
	}
}

func (d *Driver) logErr(err error) {
	if ae, ok := err.(*apperr.Error); ok {
		d.errSink.Log(ae)
	}
}

// SendMessage enqueues msg for the next outbound drain.
func (d *Driver) SendMessage(msg midi.Message) error {
	return d.outbound.Push(msg)
}

// MessagePort returns the port over which decoded inbound message batches
// ([]midi.Message, tagged MessageBatchType) are delivered. Connect a
// receiving port to subscribe.
func (d *Driver) MessagePort() *portgraph.Port { return d.msgPort }

// Healthy implements debugsrv.HealthProvider. It does not inspect the
// sockets: it always reports healthy, including after Close.
func (d *Driver) Healthy() (bool, string) {
	return true, ""
}

// ActivePeerCount implements metrics.PeerCountProvider: the number of
// candidates that have completed the invitation handshake.
func (d *Driver) ActivePeerCount() int {
	n := 0
	for _, c := range d.candidateOrder {
		if c.State == Established {
			n++
		}
	}
	return n
}

// MeanMediaDelay implements metrics.SyncEstimateProvider: the mean
// one-way media delay (in seconds) across peers with a completed clock
// sync, and the number of peers that contributed to the average.
func (d *Driver) MeanMediaDelay() (seconds float64, samples int) {
	var total int64
	for _, c := range d.candidateOrder {
		if c.State == Established && c.sync.Complete {
			total += c.sync.MediaDelay
			samples++
		}
	}
	if samples == 0 {
		return 0, 0
	}
	meanTicks := total / int64(samples)
	return d.clock.ToSeconds(meanTicks), samples
}
