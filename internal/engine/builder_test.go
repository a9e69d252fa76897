package engine

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowalert/internal/metrics"
	"snowalert/internal/rules"
	"snowalert/internal/types"
)

func newTestBuilder() *BatchBuilder {
	clock := &mockClock{now: testNow}
	return NewBatchBuilder(NewEvaluator(clock, nil), clock, nil)
}

func TestBuild_EmptyBatch(t *testing.T) {
	b := newTestBuilder()

	batch := b.Build(types.WeatherSnapshot{}, nil)

	require.NotNil(t, batch)
	assert.True(t, batch.Empty())
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, testNow, batch.EvaluatedAt)
}

func TestBuild_AlertsCarryRuleMetadata(t *testing.T) {
	b := newTestBuilder()

	snap := types.WeatherSnapshot{AmbientTempC: types.Float(-5)}
	batch := b.Build(snap, nil)

	require.Len(t, batch.Alerts, 1)
	a := batch.Alerts[0]
	assert.Equal(t, types.RuleSubZero, a.RuleID)
	assert.Equal(t, "AVISO_0", a.Code)
	assert.Equal(t, 0, a.Priority)
	assert.Equal(t, testNow, a.GeneratedAt)
	assert.Equal(t, "Y116", a.Rule.Routing.Code)
	assert.NotEmpty(t, a.Tasks)
	assert.Equal(t, snap, batch.Snapshot)
}

func TestBuild_AlertsSortedByPriority(t *testing.T) {
	b := newTestBuilder()

	snap := freezingSnapshot()
	snap.SnowProbPct = types.Float(40)
	snap.RainProbPct = types.Float(60)
	batch := b.Build(snap, nil)

	require.Greater(t, len(batch.Alerts), 1)
	for i := 1; i < len(batch.Alerts); i++ {
		prev, cur := batch.Alerts[i-1], batch.Alerts[i]
		if prev.Priority == cur.Priority {
			assert.Less(t, prev.RuleID, cur.RuleID)
		} else {
			assert.Less(t, prev.Priority, cur.Priority)
		}
	}
}

func TestBuild_FreshBatchIdentityPerCall(t *testing.T) {
	b := newTestBuilder()

	snap := types.WeatherSnapshot{AmbientTempC: types.Float(-5)}
	first := b.Build(snap, nil)
	second := b.Build(snap, nil)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, len(first.Alerts), len(second.Alerts))
}

func TestBuild_TasksAreIsolatedCopies(t *testing.T) {
	b := newTestBuilder()

	snap := types.WeatherSnapshot{AmbientTempC: types.Float(-5)}
	batch := b.Build(snap, nil)

	require.NotEmpty(t, batch.Alerts)
	batch.Alerts[0].Tasks[0] = "mutated"

	fromCatalog := rules.TasksFor(types.RuleSubZero)
	assert.NotEqual(t, "mutated", fromCatalog[0])
}

func TestBuild_CountsGeneratedAlerts(t *testing.T) {
	b := newTestBuilder()
	counter := metrics.AlertsGenerated.WithLabelValues(types.RuleSubZero.Code())

	before := testutil.ToFloat64(counter)
	b.Build(types.WeatherSnapshot{AmbientTempC: types.Float(-5)}, nil)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestBuild_EchoesMarwisContext(t *testing.T) {
	b := newTestBuilder()

	marwis := marwisSurface("WET", testNow.Add(-5*time.Minute))
	batch := b.Build(freezingSnapshot(), marwis)

	assert.Same(t, marwis, batch.Marwis)
}
