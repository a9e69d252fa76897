// Package engine implements the alert decision core: a rule evaluator that
// maps a weather snapshot (plus optional MARWIS surface-sensor context) to
// matched rule identifiers, and a batch builder that turns matches into a
// sorted, audit-ready AlertBatch.
package engine

import (
	"log/slog"
	"time"

	"snowalert/internal/metrics"
	"snowalert/internal/rules"
	"snowalert/internal/types"
)

// Sensor-context recency windows.
const (
	// marwisStaleAfter is how long without a MARWIS reading before the
	// condition-change rule considers the station silent.
	marwisStaleAfter = 2 * time.Hour
	// surfaceRecentWindow is how fresh a surface-condition reading must be
	// for the ice rule.
	surfaceRecentWindow = 15 * time.Minute
)

// Evaluator checks the rule catalog against a snapshot. It is stateless
// aside from reading the immutable catalog and is safe for concurrent use.
type Evaluator struct {
	clock  types.Clock
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator. A nil clock defaults to the system
// clock; a nil logger defaults to slog.Default().
func NewEvaluator(clock types.Clock, logger *slog.Logger) *Evaluator {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{clock: clock, logger: logger}
}

// Evaluate returns the identifiers of every rule whose full predicate
// conjunction holds for the snapshot, ordered by ascending priority rank.
// Rules are independent: the sub-zero rule neither suppresses nor is
// suppressed by any other, so multiple rules can match one snapshot.
// Evaluate never panics; a failure inside one rule is logged and treated as
// non-matching without aborting the remaining rules.
func (e *Evaluator) Evaluate(snap types.WeatherSnapshot, marwis *types.MarwisReading) []types.RuleID {
	now := e.clock.Now()

	var matched []types.RuleID
	for _, rule := range rules.All() {
		if e.ruleMatches(rule, snap, marwis, now) {
			matched = append(matched, rule.ID)
			e.logger.Info("rule matched",
				"rule", rule.ID.Code(),
				"name", rule.Name,
				"rank", rule.Rank,
			)
		}
	}
	return matched
}

// ruleMatches runs one rule's predicate with panic isolation.
func (e *Evaluator) ruleMatches(rule types.AlertRule, snap types.WeatherSnapshot, marwis *types.MarwisReading, now time.Time) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("rule evaluation panicked, treating as non-match",
				"rule", rule.ID.Code(),
				"panic", r,
			)
			metrics.RuleEvaluationPanics.Inc()
			ok = false
		}
	}()

	switch rule.ID {
	case types.RuleSubZero:
		return matchSubZero(snap, rule.Thresholds)
	case types.RuleAlertThreshold:
		return matchAlertThreshold(snap, rule.Thresholds)
	case types.RuleContingency:
		return matchContingency(snap, rule.Thresholds)
	case types.RuleConditionChange:
		return matchFreezingBase(snap, rule.Thresholds) &&
			!marwis.ReceivedWithin(now, marwisStaleAfter)
	case types.RuleIce:
		return matchFreezingBase(snap, rule.Thresholds) &&
			surfaceWetWithin(marwis, now)
	case types.RuleRain:
		return matchFreezingBase(snap, rule.Thresholds) &&
			exceeds(snap.RainProbPct, rule.Thresholds.RainProbMinPct)
	case types.RuleSnow:
		return matchFreezingBase(snap, rule.Thresholds) &&
			exceeds(snap.SnowProbPct, rule.Thresholds.SnowProbMinPct)
	default:
		return false
	}
}

// matchSubZero: ambient strictly below 0°C and wind below the (non-binding)
// 100 km/h cap. This is the only predicate where an absent wind reading
// counts as 0; an absent ambient temperature never matches.
func matchSubZero(snap types.WeatherSnapshot, t types.Thresholds) bool {
	if snap.AmbientTempC == nil {
		return false
	}
	wind := 0.0
	if snap.WindSpeedKmh != nil {
		wind = *snap.WindSpeedKmh
	}
	return *snap.AmbientTempC < *t.AmbientMaxC && wind < *t.WindMaxKmh
}

// matchAlertThreshold: ambient in the half-open interval (min, max], plus the
// dew-point, pavement, humidity and wind bounds. Every field must be present.
func matchAlertThreshold(snap types.WeatherSnapshot, t types.Thresholds) bool {
	if snap.AmbientTempC == nil {
		return false
	}
	amb := *snap.AmbientTempC
	return amb > *t.AmbientMinC && amb <= *t.AmbientMaxC &&
		dewPointHolds(snap, t) &&
		pavementBelow(snap, t) &&
		atLeast(snap.HumidityPct, t.HumidityMinPct) &&
		windBelow(snap, t)
}

// matchContingency: ambient in the closed interval [min, max]; the lower
// bound of −50°C deliberately overlaps the sub-zero rule, so both can fire
// for ambient below 0°C.
func matchContingency(snap types.WeatherSnapshot, t types.Thresholds) bool {
	if snap.AmbientTempC == nil {
		return false
	}
	amb := *snap.AmbientTempC
	return amb >= *t.AmbientMinC && amb <= *t.AmbientMaxC &&
		dewPointHolds(snap, t) &&
		pavementBelow(snap, t) &&
		atLeast(snap.HumidityPct, t.HumidityMinPct) &&
		windBelow(snap, t)
}

// matchFreezingBase is the conjunction shared by the condition-change, ice,
// rain and snow rules: ambient at or below 0°C, dew-point depression bound,
// pavement below 0°C, minimum humidity and maximum wind.
func matchFreezingBase(snap types.WeatherSnapshot, t types.Thresholds) bool {
	if snap.AmbientTempC == nil {
		return false
	}
	return *snap.AmbientTempC <= *t.AmbientMaxC &&
		dewPointHolds(snap, t) &&
		pavementBelow(snap, t) &&
		atLeast(snap.HumidityPct, t.HumidityMinPct) &&
		windBelow(snap, t)
}

// dewPointHolds: dew point >= ambient + delta (delta is negative, so this is
// a dew-point depression bound). Absent dew point or ambient fails.
func dewPointHolds(snap types.WeatherSnapshot, t types.Thresholds) bool {
	if snap.DewPointC == nil || snap.AmbientTempC == nil {
		return false
	}
	return *snap.DewPointC >= *snap.AmbientTempC+*t.DewPointDeltaC
}

func pavementBelow(snap types.WeatherSnapshot, t types.Thresholds) bool {
	return snap.PavementTempC != nil && *snap.PavementTempC < *t.PavementMaxC
}

func windBelow(snap types.WeatherSnapshot, t types.Thresholds) bool {
	return snap.WindSpeedKmh != nil && *snap.WindSpeedKmh < *t.WindMaxKmh
}

func atLeast(v, min *float64) bool {
	return v != nil && min != nil && *v >= *min
}

func exceeds(v, min *float64) bool {
	return v != nil && min != nil && *v > *min
}

// surfaceWetWithin reports whether MARWIS delivered a WET or DAMP surface
// condition inside the recency window.
func surfaceWetWithin(marwis *types.MarwisReading, now time.Time) bool {
	if !marwis.ReceivedWithin(now, surfaceRecentWindow) {
		return false
	}
	cond, ok := marwis.SurfaceCondition()
	if !ok {
		return false
	}
	return cond == types.SurfaceWet || cond == types.SurfaceDamp
}
