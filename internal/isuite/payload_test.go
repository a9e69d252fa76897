package isuite

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowalert/internal/rules"
	"snowalert/internal/types"
)

func TestMapBatch_Header(t *testing.T) {
	batch := testBatch(t)
	p := MapBatch(batch)

	assert.Equal(t, "MVP1_SNOW", p.Header.SourceSystem)
	assert.Equal(t, "AVISO_METEOROLOGICO", p.Header.MessageType)
	assert.Equal(t, "1.0", p.Header.Version)
	assert.Equal(t, batch.EvaluatedAt.Format(time.RFC3339), p.Header.Timestamp)
}

func TestMapBatch_AlertFields(t *testing.T) {
	batch := testBatch(t)
	p := MapBatch(batch)

	require.Len(t, p.Alerts, 1)
	a := p.Alerts[0]
	assert.Equal(t, "AVISO_0", a.AlertType)
	assert.Equal(t, "O1", a.NotificationClass)
	assert.Equal(t, "RGA-INF-PAVIM", a.FunctionalLocation)
	assert.Equal(t, "Y116", a.Code)
	assert.Equal(t, "1", a.Priority)
	assert.Equal(t, 0, a.InternalPriority)
	assert.Equal(t, batch.Alerts[0].GeneratedAt.Format(time.RFC3339), a.GeneratedAt)
	assert.NotEmpty(t, a.Tasks)
}

func TestMapBatch_WireKeys(t *testing.T) {
	rule, ok := rules.Get(types.RuleSnow)
	require.True(t, ok)

	batch := &types.AlertBatch{
		ID: "batch-wire",
		Alerts: []types.Alert{{
			RuleID:      types.RuleSnow,
			Code:        "AVISO_6",
			Rule:        rule,
			Priority:    rule.Rank,
			GeneratedAt: testNow,
			Tasks:       rule.Tasks,
		}},
		Snapshot: types.WeatherSnapshot{
			AmbientTempC: types.Float(-1),
			SnowProbPct:  types.Float(40),
		},
		EvaluatedAt: testNow,
	}

	raw, err := json.Marshal(MapBatch(batch))
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "header")
	assert.Contains(t, doc, "avisos")
	assert.Contains(t, doc, "condiciones_meteorologicas")
	assert.Contains(t, doc, "datos_marwis")
	// log_decisiones is part of the deployed schema even when empty.
	assert.JSONEq(t, "[]", string(doc["log_decisiones"]))

	var alerts []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["avisos"], &alerts))
	require.Len(t, alerts, 1)
	for _, key := range []string{"QMART", "QMTXT", "TPLNR", "SWERK", "INGRP", "GEWRK", "PRIOK", "QMGRP", "QMCOD", "tipo_aviso", "prioridad_interna", "tareas_procedimiento"} {
		assert.Contains(t, alerts[0], key)
	}

	var weather map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["condiciones_meteorologicas"], &weather))
	assert.Contains(t, weather, "temperatura_ambiente")
	assert.Contains(t, weather, "prob_nieve")
	// Unreported values stay null on the wire.
	assert.Equal(t, "null", string(weather["viento"]))
}

func TestMapBatch_AbsentMarwisIsEmptyObject(t *testing.T) {
	batch := testBatch(t)
	batch.Marwis = nil

	raw, err := json.Marshal(MapBatch(batch))
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.JSONEq(t, "{}", string(doc["datos_marwis"]))
}

func TestMapBatch_NilTasksBecomeEmptyList(t *testing.T) {
	batch := testBatch(t)
	batch.Alerts[0].Tasks = nil

	p := MapBatch(batch)
	require.Len(t, p.Alerts, 1)
	assert.NotNil(t, p.Alerts[0].Tasks)
	assert.Empty(t, p.Alerts[0].Tasks)
}

func TestMapBatch_EmptyBatch(t *testing.T) {
	batch := &types.AlertBatch{ID: "none", EvaluatedAt: testNow}
	p := MapBatch(batch)

	assert.NotNil(t, p.Alerts)
	assert.Empty(t, p.Alerts)
}
