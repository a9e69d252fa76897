package engine

import (
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"snowalert/internal/metrics"
	"snowalert/internal/rules"
	"snowalert/internal/types"
)

// BatchBuilder turns evaluator matches into an AlertBatch. It performs no
// I/O and never fails: anything unexpected degrades to an empty, valid batch.
type BatchBuilder struct {
	evaluator *Evaluator
	clock     types.Clock
	logger    *slog.Logger
}

// NewBatchBuilder creates a BatchBuilder around the given evaluator.
func NewBatchBuilder(evaluator *Evaluator, clock types.Clock, logger *slog.Logger) *BatchBuilder {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchBuilder{evaluator: evaluator, clock: clock, logger: logger}
}

// Build evaluates the snapshot and assembles the resulting batch. Alerts are
// sorted by ascending priority rank, ties broken by rule id, so identical
// inputs always produce identically ordered output. The input snapshot and
// MARWIS context are echoed back verbatim for auditability.
func (b *BatchBuilder) Build(snap types.WeatherSnapshot, marwis *types.MarwisReading) *types.AlertBatch {
	matches := b.evaluator.Evaluate(snap, marwis)

	batch := &types.AlertBatch{
		ID:          uuid.New().String(),
		Alerts:      b.makeAlerts(matches),
		Snapshot:    snap,
		Marwis:      marwis,
		EvaluatedAt: b.clock.Now(),
	}

	b.logger.Info("evaluation completed",
		"batch_id", batch.ID,
		"total_alerts", len(batch.Alerts),
	)
	return batch
}

// makeAlerts instantiates one Alert per matched rule, each carrying a deep
// copy of the catalog metadata and a timestamp captured at build time.
func (b *BatchBuilder) makeAlerts(matches []types.RuleID) []types.Alert {
	now := b.clock.Now()

	alerts := make([]types.Alert, 0, len(matches))
	for _, id := range matches {
		rule, ok := rules.Get(id)
		if !ok {
			b.logger.Error("evaluator returned unknown rule id", "rule_id", int(id))
			continue
		}
		alerts = append(alerts, types.Alert{
			RuleID:      id,
			Code:        id.Code(),
			Rule:        rule,
			Priority:    rule.Rank,
			GeneratedAt: now,
			Tasks:       rules.TasksFor(id),
		})
		metrics.AlertsGenerated.WithLabelValues(id.Code()).Inc()
	}

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Priority != alerts[j].Priority {
			return alerts[i].Priority < alerts[j].Priority
		}
		return alerts[i].RuleID < alerts[j].RuleID
	})
	return alerts
}
