package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/PabloGalante/farum-sos"

// Metrics are the counters the conversation core reports. With no meter
// provider installed they are no-ops.
type Metrics struct {
	sessionsStarted  metric.Int64Counter
	aiHelpOffered    metric.Int64Counter
	sendFailures     metric.Int64Counter
	inboundMessages  metric.Int64Counter
	submissionErrors metric.Int64Counter
}

func NewMetrics() *Metrics {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	// Instrument creation only fails on invalid names; the returned no-op
	// instruments are still safe to use.
	m.sessionsStarted, _ = meter.Int64Counter("farum.sessions.started",
		metric.WithDescription("Sessions created, by origin"))
	m.aiHelpOffered, _ = meter.Int64Counter("farum.escalation.ai_help_offered",
		metric.WithDescription("Times the AI help offer was surfaced"))
	m.sendFailures, _ = meter.Int64Counter("farum.messages.send_failures",
		metric.WithDescription("Chat round trips that failed"))
	m.inboundMessages, _ = meter.Int64Counter("farum.channel.inbound_messages",
		metric.WithDescription("Messages delivered by the realtime channel"))
	m.submissionErrors, _ = meter.Int64Counter("farum.checkin.submission_failures",
		metric.WithDescription("Mood submissions that failed"))
	return m
}

func (m *Metrics) SessionStarted(ctx context.Context, origin string) {
	m.sessionsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("origin", origin)))
}

func (m *Metrics) AIHelpOffered(ctx context.Context) {
	m.aiHelpOffered.Add(ctx, 1)
}

func (m *Metrics) SendFailed(ctx context.Context) {
	m.sendFailures.Add(ctx, 1)
}

func (m *Metrics) InboundMessage(ctx context.Context) {
	m.inboundMessages.Add(ctx, 1)
}

func (m *Metrics) SubmissionFailed(ctx context.Context) {
	m.submissionErrors.Add(ctx, 1)
}
