package metrics

import (
	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus is a Sink backed by one collector per observation kind: a
// plain Counter for totals and rate-limited drops, a CounterVec labeled
// by proto or rcode for the others, grounded on the teacher's
// middleware/metrics registration pattern.
type Prometheus struct {
	total       prometheus.Counter
	byProto     *prometheus.CounterVec
	byRcode     *prometheus.CounterVec
	rateLimited prometheus.Counter
}

// NewPrometheus builds a Prometheus sink and registers its collectors
// against reg. Pass prometheus.DefaultRegisterer for the global
// registry.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		total: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authnsd_queries_total",
			Help: "Total queries received.",
		}),
		byProto: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authnsd_queries_by_proto_total",
			Help: "Queries received, labeled by transport.",
		}, []string{"proto"}),
		byRcode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authnsd_responses_by_rcode_total",
			Help: "Responses sent, labeled by RCODE.",
		}, []string{"rcode"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authnsd_rate_limited_total",
			Help: "Queries dropped by the rate limiter.",
		}),
	}

	reg.MustRegister(p.total, p.byProto, p.byRcode, p.rateLimited)

	return p
}

func (p *Prometheus) IncTotal() { p.total.Inc() }

func (p *Prometheus) IncUDP() { p.byProto.WithLabelValues("udp").Inc() }

func (p *Prometheus) IncTCP() { p.byProto.WithLabelValues("tcp").Inc() }

func (p *Prometheus) IncByRcode(rcode int) {
	name, ok := dns.RcodeToString[rcode]
	if !ok {
		name = dns.RcodeToString[dns.RcodeServerFailure]
	}
	p.byRcode.WithLabelValues(name).Inc()
}

func (p *Prometheus) IncRateLimited() { p.rateLimited.Inc() }
