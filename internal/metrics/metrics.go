// Package metrics exposes the rtpmidi engine's operational counters as a
// prometheus.Collector, scraped by internal/debugsrv.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PeerCountProvider exposes how many peers are currently established.
type PeerCountProvider interface {
	ActivePeerCount() int
}

// SyncEstimateProvider exposes the driver's latest clock-sync estimate,
// averaged across established peers.
type SyncEstimateProvider interface {
	MeanMediaDelay() (seconds float64, samples int)
}

// Counters holds the monotonic counters a running engine updates from its
// runloop thread; Collect reads them with atomic loads since the debug
// HTTP server scrapes from a different goroutine.
type Counters struct {
	PacketsSent       atomic.Uint64
	PacketsReceived   atomic.Uint64
	PacketsDropped    atomic.Uint64
	JournalRecoveries atomic.Uint64
	InvitationsNO     atomic.Uint64
}

// Collector is a prometheus.Collector gathering rtpmidi engine metrics at
// scrape time.
type Collector struct {
	counters  *Counters
	peers     PeerCountProvider
	sync      SyncEstimateProvider
	startTime time.Time

	peersDesc             *prometheus.Desc
	packetsSentDesc       *prometheus.Desc
	packetsReceivedDesc   *prometheus.Desc
	packetsDroppedDesc    *prometheus.Desc
	journalRecoveriesDesc *prometheus.Desc
	invitationsNODesc     *prometheus.Desc
	mediaDelayDesc        *prometheus.Desc
	uptimeDesc            *prometheus.Desc
}

// NewCollector creates a collector reading counters and, when non-nil,
// peers/sync providers.
func NewCollector(counters *Counters, peers PeerCountProvider, sync SyncEstimateProvider, startTime time.Time) *Collector {
	return &Collector{
		counters:  counters,
		peers:     peers,
		sync:      sync,
		startTime: startTime,

		peersDesc: prometheus.NewDesc(
			"rtpmidi_peers_active", "Number of established RTP-MIDI peers", nil, nil),
		packetsSentDesc: prometheus.NewDesc(
			"rtpmidi_packets_sent_total", "Total RTP packets sent", nil, nil),
		packetsReceivedDesc: prometheus.NewDesc(
			"rtpmidi_packets_received_total", "Total RTP packets received", nil, nil),
		packetsDroppedDesc: prometheus.NewDesc(
			"rtpmidi_packets_dropped_total", "Total inbound packets dropped because the RTP header failed to decode", nil, nil),
		journalRecoveriesDesc: prometheus.NewDesc(
			"rtpmidi_journal_recoveries_total", "Total times the recovery journal synthesized replacement messages", nil, nil),
		invitationsNODesc: prometheus.NewDesc(
			"rtpmidi_invitations_rejected_total", "Total inbound invitations answered NO", nil, nil),
		mediaDelayDesc: prometheus.NewDesc(
			"rtpmidi_mean_media_delay_seconds", "Mean estimated one-way media delay across synced peers", nil, nil),
		uptimeDesc: prometheus.NewDesc(
			"rtpmidi_uptime_seconds", "Seconds since the engine process started", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.peersDesc
	ch <- c.packetsSentDesc
	ch <- c.packetsReceivedDesc
	ch <- c.packetsDroppedDesc
	ch <- c.journalRecoveriesDesc
	ch <- c.invitationsNODesc
	ch <- c.mediaDelayDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.peers != nil {
		ch <- prometheus.MustNewConstMetric(c.peersDesc, prometheus.GaugeValue, float64(c.peers.ActivePeerCount()))
	}

	ch <- prometheus.MustNewConstMetric(c.packetsSentDesc, prometheus.CounterValue, float64(c.counters.PacketsSent.Load()))
	ch <- prometheus.MustNewConstMetric(c.packetsReceivedDesc, prometheus.CounterValue, float64(c.counters.PacketsReceived.Load()))
	ch <- prometheus.MustNewConstMetric(c.packetsDroppedDesc, prometheus.CounterValue, float64(c.counters.PacketsDropped.Load()))
	ch <- prometheus.MustNewConstMetric(c.journalRecoveriesDesc, prometheus.CounterValue, float64(c.counters.JournalRecoveries.Load()))
	ch <- prometheus.MustNewConstMetric(c.invitationsNODesc, prometheus.CounterValue, float64(c.counters.InvitationsNO.Load()))

	if c.sync != nil {
		if delay, samples := c.sync.MeanMediaDelay(); samples > 0 {
			ch <- prometheus.MustNewConstMetric(c.mediaDelayDesc, prometheus.GaugeValue, delay)
		}
	}

	ch <- prometheus.MustNewConstMetric(c.uptimeDesc, prometheus.GaugeValue, time.Since(c.startTime).Seconds())
}
