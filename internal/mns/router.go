package mns

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mnsd/internal/eventreport"
	"mnsd/internal/registry"
)

// Dispatcher accepts decoded event reports for routing. Sessions hold a
// Dispatcher, never the registry itself.
type Dispatcher interface {
	Dispatch(instanceID int, report eventreport.Report)
}

// Router forwards reports to the listener registered for their instance id.
// Reports for unknown instances are dropped with a warning: a message server
// may still reference an instance that has since unregistered.
type Router struct {
	reg    *registry.Registry
	log    zerolog.Logger
	pub    EventPublisher
	tracer trace.Tracer

	detached atomic.Bool
}

func newRouter(reg *registry.Registry, log zerolog.Logger, pub EventPublisher) *Router {
	return &Router{
		reg:    reg,
		log:    log,
		pub:    pub,
		tracer: otel.Tracer("mnsd/mns"),
	}
}

// Dispatch never blocks beyond the listener's enqueue and never panics on an
// unknown id.
func (r *Router) Dispatch(instanceID int, report eventreport.Report) {
	_, span := r.tracer.Start(context.Background(), "mns.dispatch",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.Int("mns.instance_id", instanceID),
			attribute.Int("mns.event_count", len(report.Events)),
		))
	defer span.End()

	if r.detached.Load() {
		reportsDropped.WithLabelValues("shutdown").Inc()
		span.SetAttributes(attribute.String("mns.dropped", "shutdown"))
		return
	}
	if r.reg.Dispatch(instanceID, report) {
		reportsRouted.Inc()
		r.log.Debug().Int("instance", instanceID).Int("events", len(report.Events)).Msg("event report routed")
		return
	}
	reportsDropped.WithLabelValues("unregistered").Inc()
	span.SetAttributes(attribute.String("mns.dropped", "unregistered"))
	r.log.Warn().Int("instance", instanceID).Msg("event report for instance which is not registered")
	r.pub.Publish(Event{Name: EventReportDropped, InstanceID: instanceID, Fields: map[string]any{"events": len(report.Events)}})
}

// detach invalidates the router; sessions still draining after shutdown
// can no longer reach listeners.
func (r *Router) detach() { r.detached.Store(true) }
