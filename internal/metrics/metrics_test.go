package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type fakePeers struct{ n int }

func (f fakePeers) ActivePeerCount() int { return f.n }

type fakeSync struct {
	delay   float64
	samples int
}

func (f fakeSync) MeanMediaDelay() (float64, int) { return f.delay, f.samples }

func collect(t *testing.T, c *Collector) map[string]*dto.Metric {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	out := make(map[string]*dto.Metric)
	for _, fam := range families {
		out[fam.GetName()] = fam.Metric[0]
	}
	return out
}

func TestCollectorReportsCounters(t *testing.T) {
	counters := &Counters{}
	counters.PacketsSent.Store(10)
	counters.PacketsReceived.Store(7)
	counters.PacketsDropped.Store(1)
	counters.JournalRecoveries.Store(2)

	c := NewCollector(counters, fakePeers{n: 3}, fakeSync{delay: 0.012, samples: 2}, time.Now().Add(-time.Minute))
	metrics := collect(t, c)

	if got := metrics["rtpmidi_peers_active"].GetGauge().GetValue(); got != 3 {
		t.Errorf("peers_active = %v, want 3", got)
	}
	if got := metrics["rtpmidi_packets_sent_total"].GetCounter().GetValue(); got != 10 {
		t.Errorf("packets_sent_total = %v, want 10", got)
	}
	if got := metrics["rtpmidi_mean_media_delay_seconds"].GetGauge().GetValue(); got != 0.012 {
		t.Errorf("mean_media_delay_seconds = %v, want 0.012", got)
	}
	if metrics["rtpmidi_uptime_seconds"].GetGauge().GetValue() <= 0 {
		t.Errorf("uptime_seconds should be positive")
	}
}

func TestCollectorOmitsMediaDelayWithoutSamples(t *testing.T) {
	c := NewCollector(&Counters{}, nil, fakeSync{samples: 0}, time.Now())
	metrics := collect(t, c)
	if _, ok := metrics["rtpmidi_mean_media_delay_seconds"]; ok {
		t.Errorf("media delay metric should be absent with zero samples")
	}
}
