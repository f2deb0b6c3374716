// Package metrics exports orbit and transport metrics to Prometheus. A
// Recorder subscribes to the session's event bus and mirrors every state
// change and rate sample into gauges and counters.
package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/illum/orbitsim/pkg/event"
)

const namespace = "orbitsim"

// Edit results used as the "result" label of the edits counter.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
)

// Recorder holds the orbitsim collectors.
type Recorder struct {
	gatherer prometheus.Gatherer

	PeriodYears      prometheus.Gauge
	MaxSpeedKms      prometheus.Gauge
	MinSpeedKms      prometheus.Gauge
	CurrentSpeedKms  prometheus.Gauge
	RateRatio        prometheus.Gauge
	Eccentricity     prometheus.Gauge
	Epoch            prometheus.Gauge
	RateRatios       prometheus.Histogram
	SampleTicks      prometheus.Counter
	Edits            *prometheus.CounterVec
	ConnectedClients prometheus.Gauge
	MessagesDropped  *prometheus.CounterVec

	mu   sync.Mutex
	subs []*event.Subscription
}

// NewRecorder registers the collectors against reg, defaulting to the global
// registry when nil. Registering twice against the same registry reuses the
// existing collectors.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	r := &Recorder{gatherer: gatherer}

	gauges := []struct {
		target *prometheus.Gauge
		name   string
		help   string
	}{
		{&r.PeriodYears, "period_years", "Orbital period of the current orbit in years."},
		{&r.MaxSpeedKms, "max_speed_kms", "Periapsis speed of the current orbit in km/s."},
		{&r.MinSpeedKms, "min_speed_kms", "Apoapsis speed of the current orbit in km/s."},
		{&r.CurrentSpeedKms, "current_speed_kms", "Speed at the most recent sample in km/s."},
		{&r.RateRatio, "rate_ratio", "Playback rate applied after the most recent sample."},
		{&r.Eccentricity, "eccentricity", "Eccentricity of the current orbit."},
		{&r.Epoch, "geometry_epoch", "Epoch of the current orbit state."},
		{&r.ConnectedClients, "connected_clients", "Number of connected WebSocket clients."},
	}
	for _, g := range gauges {
		gauge, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      g.name,
			Help:      g.help,
		}), g.name)
		if err != nil {
			return nil, err
		}
		*g.target = gauge
	}

	var err error
	r.RateRatios, err = registerCollector(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rate_ratio_distribution",
		Help:      "Distribution of sampled playback rates.",
		Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
	}), "rate_ratio_distribution")
	if err != nil {
		return nil, err
	}

	r.SampleTicks, err = registerCollector(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sample_ticks_total",
		Help:      "Total number of rate samples produced.",
	}), "sample_ticks_total")
	if err != nil {
		return nil, err
	}

	r.Edits, err = registerCollector(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "edits_total",
		Help:      "Orbit edits, labeled by kind and result.",
	}, []string{"kind", "result"}), "edits_total")
	if err != nil {
		return nil, err
	}

	r.MessagesDropped, err = registerCollector(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_dropped_total",
		Help:      "Outbound WebSocket messages dropped, labeled by reason.",
	}, []string{"reason"}), "messages_dropped_total")
	if err != nil {
		return nil, err
	}

	return r, nil
}

// Attach subscribes the recorder to bus.
func (r *Recorder) Attach(bus *event.Bus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs = append(r.subs,
		bus.Subscribe(event.StateChanged, r.onStateChanged),
		bus.Subscribe(event.RateSampled, r.onRateSampled),
		bus.Subscribe(event.EditRejected, r.onEditRejected),
	)
}

// Detach cancels every subscription made by Attach.
func (r *Recorder) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range r.subs {
		sub.Cancel()
	}
	r.subs = nil
}

// Handler exposes the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

func (r *Recorder) onStateChanged(e event.Event) {
	se, ok := e.(*event.StateEvent)
	if !ok {
		return
	}
	r.PeriodYears.Set(se.Quantities.PeriodYears)
	r.MaxSpeedKms.Set(se.Quantities.MaxSpeedKms)
	r.MinSpeedKms.Set(se.Quantities.MinSpeedKms)
	r.Eccentricity.Set(se.Quantities.Eccentricity)
	r.Epoch.Set(float64(se.Epoch))
	r.Edits.WithLabelValues(EditKind(se.Cause), ResultAccepted).Inc()
}

func (r *Recorder) onRateSampled(e event.Event) {
	re, ok := e.(*event.RateEvent)
	if !ok {
		return
	}
	r.CurrentSpeedKms.Set(re.SpeedKms)
	r.RateRatio.Set(re.RateRatio)
	r.RateRatios.Observe(re.RateRatio)
	r.SampleTicks.Inc()
}

func (r *Recorder) onEditRejected(e event.Event) {
	re, ok := e.(*event.RejectedEvent)
	if !ok {
		return
	}
	r.Edits.WithLabelValues(EditKind(re.Edit), ResultRejected).Inc()
}

// EditKind strips the detail from an edit cause ("preset:earth" → "preset").
func EditKind(cause string) string {
	kind, _, _ := strings.Cut(cause, ":")
	if kind == "" {
		return "unknown"
	}
	return kind
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge, name string) (prometheus.Gauge, error) {
	return registerCollector(reg, g, name)
}

// registerCollector registers c, returning the already registered collector
// of the same type when there is one.
func registerCollector[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
