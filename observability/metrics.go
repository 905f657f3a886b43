package observability

import (
	"fmt"
	"net/http"
	"time"

	"nominatim-proxy/geocode/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector agrupa as métricas do proxy. Todos os métodos aceitam receptor nil.
type Collector struct {
	gatherer prometheus.Gatherer
	reg      prometheus.Registerer

	Requests         *prometheus.CounterVec
	FeaturesReturned *prometheus.HistogramVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	GateWait         prometheus.Histogram
	InboundRejected  *prometheus.CounterVec
}

// NewCollector registra as métricas no registerer informado (o global quando nil).
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocode_requests_total",
		Help: "Geocoding requests handled, labeled by operation and outcome.",
	}, []string{"operation", "outcome"}), "geocode_requests_total")
	if err != nil {
		return nil, err
	}

	features, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geocode_features_returned",
		Help:    "Number of features returned per successful request.",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 40},
	}, []string{"operation"}), "geocode_features_returned")
	if err != nil {
		return nil, err
	}

	upstream, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Calls issued to the Nominatim upstream, labeled by endpoint and outcome.",
	}, []string{"endpoint", "outcome"}), "upstream_requests_total")
	if err != nil {
		return nil, err
	}

	latency, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Nominatim call latency in seconds, excluding time spent waiting at the gate.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"}), "upstream_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	gateWait, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "upstream_gate_wait_seconds",
		Help:    "Time a request waited for its turn at the upstream interval gate.",
		Buckets: []float64{0, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}), "upstream_gate_wait_seconds")
	if err != nil {
		return nil, err
	}

	rejected, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inbound_rejected_total",
		Help: "Inbound requests refused by the proxy protection, labeled by reason (rate or concurrency).",
	}, []string{"reason"}), "inbound_rejected_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:         gatherer,
		reg:              reg,
		Requests:         requests,
		FeaturesReturned: features,
		UpstreamRequests: upstream,
		UpstreamLatency:  latency,
		GateWait:         gateWait,
		InboundRejected:  rejected,
	}, nil
}

// ObserveRequest implementa application.RequestRecorder.
func (c *Collector) ObserveRequest(op domain.Operation, outcome domain.Outcome, features int) {
	if c == nil {
		return
	}
	c.Requests.WithLabelValues(string(op), string(outcome)).Inc()
	if outcome == domain.OutcomeOK || outcome == domain.OutcomeEmpty {
		c.FeaturesReturned.WithLabelValues(string(op)).Observe(float64(features))
	}
}

// ObserveUpstream implementa infra.UpstreamRecorder.
func (c *Collector) ObserveUpstream(endpoint, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	c.UpstreamLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveGateWait implementa infra.UpstreamRecorder.
func (c *Collector) ObserveGateWait(d time.Duration) {
	if c == nil {
		return
	}
	c.GateWait.Observe(d.Seconds())
}

// ObserveRejected conta uma requisição recusada na entrada.
func (c *Collector) ObserveRejected(reason string) {
	if c == nil {
		return
	}
	c.InboundRejected.WithLabelValues(reason).Inc()
}

// TrackInFlight expõe quantas requisições ocupam vaga no limite de concorrência.
func (c *Collector) TrackInFlight(fn func() int) error {
	if c == nil || fn == nil {
		return nil
	}
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "inbound_in_flight",
		Help: "Requests currently holding a concurrency slot (queued at the gate or calling upstream).",
	}, func() float64 { return float64(fn()) })
	if err := c.reg.Register(gauge); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// Handler expõe o endpoint /metrics.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}
