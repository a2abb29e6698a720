// Package observe records OpenTelemetry metrics about play: actions taken and refused, points spent, clues found,
// endings reached and HTTP request latency.
//
// Metrics are exported to Prometheus through [InitProvider]. Tests should use [NewMetrics] with their own
// [metric.MeterProvider].
package observe

import (
	"context"

	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/event"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/myrjola/casefile"

// Metrics holds the instruments. All methods are safe for concurrent use.
type Metrics struct {
	// Actions counts player actions by action and outcome, "ok" or the refusal code.
	Actions metric.Int64Counter
	// PointsSpent counts action points spent by action.
	PointsSpent metric.Int64Counter
	// CluesDiscovered counts discovered clues by importance.
	CluesDiscovered metric.Int64Counter
	// Deductions counts recorded deductions, split by whether a rule drew them automatically.
	Deductions metric.Int64Counter
	// Endings counts closed cases by tier.
	Endings metric.Int64Counter
	// ChaptersCompleted counts completed chapters by chapter id.
	ChaptersCompleted metric.Int64Counter
	// FreeformFallbacks counts free-form replies that fell back to a canned answer.
	FreeformFallbacks metric.Int64Counter
	// HTTPRequestDuration tracks request latency by method and route.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&met.Actions, "casefile.actions", "Player actions by action and outcome."},
		{&met.PointsSpent, "casefile.points.spent", "Action points spent by action."},
		{&met.CluesDiscovered, "casefile.clues.discovered", "Clues discovered by importance."},
		{&met.Deductions, "casefile.deductions", "Deductions recorded."},
		{&met.Endings, "casefile.endings", "Cases closed by ending tier."},
		{&met.ChaptersCompleted, "casefile.chapters.completed", "Chapters completed."},
		{&met.FreeformFallbacks, "casefile.freeform.fallbacks", "Free-form replies answered with a fallback."},
	}
	for _, c := range counters {
		if *c.target, err = m.Int64Counter(c.name, metric.WithDescription(c.description)); err != nil {
			return nil, errors.Wrap(err, "create counter")
		}
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("casefile.http.request.duration",
		metric.WithDescription("Latency of HTTP requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, errors.Wrap(err, "create histogram")
	}
	return met, nil
}

// RecordAction counts a settled action. Refused actions have the refusal code as outcome and cost nothing.
func (m *Metrics) RecordAction(action string, outcome string, cost int) {
	ctx := context.Background()
	m.Actions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
	if cost > 0 {
		m.PointsSpent.Add(ctx, int64(cost), metric.WithAttributes(attribute.String("action", action)))
	}
}

// Handle records the game events that have a metric. Subscribe it to an event bus.
func (m *Metrics) Handle(e event.Event) {
	ctx := context.Background()
	switch e := e.(type) {
	case event.ClueDiscovered:
		m.CluesDiscovered.Add(ctx, 1, metric.WithAttributes(attribute.String("importance", e.Importance)))
	case event.DeductionMade:
		m.Deductions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("automatic", e.Rule != "")))
	case event.ChapterCompleted:
		m.ChaptersCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("chapter", e.Chapter)))
	case event.EndingReached:
		m.Endings.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tier", e.Tier),
			attribute.Bool("correct_culprit", e.CorrectCulprit),
		))
	case event.FreeformReplied:
		if e.Fallback {
			m.FreeformFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("npc", e.NPC)))
		}
	}
}
