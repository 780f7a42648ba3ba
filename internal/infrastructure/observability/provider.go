package observability

import (
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
)

// Provider hands use cases and HTTP middleware one tracer, one request logger
// and the standard instrument set.
type Provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

var _ observability.Observability = (*Provider)(nil)

// New registers the standard instruments on reg. A nil reg reports nothing,
// and nil tracer or logger fall back to no-ops.
func New(tracer observability.Tracer, logger observability.Logger, reg prometrics.Registry) *Provider {
	p := &Provider{tracer: tracer, logger: logger, metrics: observability.NopMetrics()}
	if p.tracer == nil {
		p.tracer = observability.NopTracer()
	}
	if p.logger == nil {
		p.logger = observability.NopLogger()
	}
	if reg != nil {
		p.metrics = prometrics.Standard(reg)
	}
	return p
}

func (p *Provider) Tracer() observability.Tracer   { return p.tracer }
func (p *Provider) Logger() observability.Logger   { return p.logger }
func (p *Provider) Metrics() observability.Metrics { return p.metrics }
