package types

import (
	"fmt"
	"time"
)

// RuleID identifies one of the seven pavement alert rules. Identifiers are
// stable wire values: AVISO_0 through AVISO_6.
type RuleID int

const (
	// RuleSubZero is the maximum-severity rule, triggered purely by ambient
	// temperature below 0°C.
	RuleSubZero RuleID = iota
	// RuleAlertThreshold is the moderate temperature/dew-point/humidity rule.
	RuleAlertThreshold
	// RuleContingency is the severe combination rule with an extended
	// temperature range overlapping RuleSubZero.
	RuleContingency
	// RuleConditionChange fires when freezing conditions hold and the MARWIS
	// station has not reported within the trailing two hours.
	RuleConditionChange
	// RuleIce fires when freezing conditions hold and MARWIS reports a
	// wet or damp surface within the trailing fifteen minutes.
	RuleIce
	// RuleRain fires when freezing conditions hold and rain is forecast.
	RuleRain
	// RuleSnow fires when freezing conditions hold and snow is forecast.
	RuleSnow

	ruleCount
)

// NumRules is the size of the closed rule set.
const NumRules = int(ruleCount)

// Code returns the stable wire identifier, e.g. "AVISO_0".
func (id RuleID) Code() string {
	return fmt.Sprintf("AVISO_%d", int(id))
}

// Valid reports whether id belongs to the closed rule set.
func (id RuleID) Valid() bool {
	return id >= 0 && id < ruleCount
}

// RoutingMetadata carries the SAP PM notification fields attached to each
// rule. The evaluator treats these as opaque; they are passed through
// verbatim to the integration endpoint.
type RoutingMetadata struct {
	NotificationClass  string `json:"QMART"` // class of notification
	Description        string `json:"QMTXT"`
	FunctionalLocation string `json:"TPLNR"`
	Plant              string `json:"SWERK"`
	PlannerGroup       string `json:"INGRP"`
	WorkCenter         string `json:"GEWRK"`
	Priority           string `json:"PRIOK"`
	CodeGroup          string `json:"QMGRP"` // failure group
	Code               string `json:"QMCOD"` // failure mode
}

// Thresholds holds the numeric bounds a rule evaluates against the snapshot.
// Nil means the rule does not constrain that variable. Strictness of each
// comparison is fixed per rule in the evaluator, not encoded here.
type Thresholds struct {
	AmbientMinC    *float64
	AmbientMaxC    *float64
	DewPointDeltaC *float64 // dew point >= ambient + delta
	PavementMaxC   *float64 // pavement strictly below
	HumidityMinPct *float64
	WindMaxKmh     *float64 // wind strictly below
	RainProbMinPct *float64 // strictly above
	SnowProbMinPct *float64 // strictly above

	// Sensor-context requirements (nullable side-input, not snapshot fields).
	RequiresSurfaceWet   bool // WET/DAMP within the trailing 15 minutes
	RequiresNoRecentRead bool // no MARWIS reading within the trailing 2 hours
}

// AlertRule is one entry of the closed rule catalog: thresholds plus the
// static metadata an Alert instance snapshots at build time.
type AlertRule struct {
	ID         RuleID
	Name       string
	Class      string // severity class tag as sent downstream
	Rank       int    // fixed priority rank, 0 = most urgent
	Note       string
	Thresholds Thresholds
	Routing    RoutingMetadata
	Tasks      []string // remediation procedure for this rule type
}

// Clone returns a deep copy of the rule so that alert construction never
// aliases catalog-owned slices.
func (r AlertRule) Clone() AlertRule {
	out := r
	if r.Tasks != nil {
		out.Tasks = make([]string, len(r.Tasks))
		copy(out.Tasks, r.Tasks)
	}
	return out
}

// Alert is a single generated notice. Created once per evaluation pass that
// matched its rule; never mutated afterwards.
type Alert struct {
	RuleID      RuleID    `json:"rule_id"`
	Code        string    `json:"code"` // e.g. "AVISO_4"
	Rule        AlertRule `json:"rule"`
	Priority    int       `json:"priority"` // rank at generation time
	GeneratedAt time.Time `json:"generated_at"`
	Tasks       []string  `json:"tasks"`
}

// AlertBatch is the result of one evaluation pass: matched alerts sorted by
// ascending priority rank, plus the inputs echoed back for auditability.
// Batches have no persisted identity across calls; ID is assigned fresh on
// every build.
type AlertBatch struct {
	ID          string          `json:"id"`
	Alerts      []Alert         `json:"alerts"`
	Snapshot    WeatherSnapshot `json:"snapshot"`
	Marwis      *MarwisReading  `json:"marwis,omitempty"`
	EvaluatedAt time.Time       `json:"evaluated_at"`
}

// Empty reports whether the batch contains no alerts.
func (b *AlertBatch) Empty() bool {
	return b == nil || len(b.Alerts) == 0
}
