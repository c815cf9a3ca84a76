package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what handlers and middleware report to. Nop satisfies it when
// metrics are off.
type Recorder interface {
	RecordAuth(flow, outcome string)
	RecordRateLimited(path string)
}

type Collector struct {
	authTotal   *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	gatherer    prometheus.Gatherer
}

func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		authTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhub_auth_requests_total",
			Help: "Auth flow invocations by flow and outcome code.",
		}, []string{"flow", "outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhub_rate_limited_total",
			Help: "Requests rejected by the auth rate limiter.",
		}, []string{"path"}),
		gatherer: reg,
	}
	reg.MustRegister(c.authTotal, c.rateLimited)
	return c
}

func (c *Collector) RecordAuth(flow, outcome string) {
	c.authTotal.WithLabelValues(flow, outcome).Inc()
}

func (c *Collector) RecordRateLimited(path string) {
	c.rateLimited.WithLabelValues(path).Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

type nop struct{}

func (nop) RecordAuth(string, string) {}
func (nop) RecordRateLimited(string)  {}

var Nop Recorder = nop{}
