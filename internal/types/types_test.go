package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretString_Redaction(t *testing.T) {
	s := SecretString("super-secret")

	assert.Equal(t, "***REDACTED***", s.String())
	assert.Equal(t, "super-secret", s.Unmask())
	assert.True(t, s.IsSet())
	assert.False(t, SecretString("").IsSet())

	raw, err := json.Marshal(struct {
		Secret SecretString `json:"secret"`
	}{Secret: s})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "super-secret")
	assert.Contains(t, string(raw), "***REDACTED***")
}

func TestRuleID_CodeAndValid(t *testing.T) {
	assert.Equal(t, "AVISO_0", RuleSubZero.Code())
	assert.Equal(t, "AVISO_6", RuleSnow.Code())

	assert.True(t, RuleSubZero.Valid())
	assert.True(t, RuleSnow.Valid())
	assert.False(t, RuleID(-1).Valid())
	assert.False(t, RuleID(NumRules).Valid())
}

func TestAppError_CodeOf(t *testing.T) {
	base := errors.New("boom")
	appErr := NewAppError(ErrCodeAuthTokenFailed, "token request failed", base)

	assert.Equal(t, ErrCodeAuthTokenFailed, CodeOf(appErr))
	assert.ErrorIs(t, appErr, base)

	// Wrapping preserves the code.
	wrapped := NewAppError(ErrCodeDeliveryFailed, "delivery failed", appErr)
	assert.Equal(t, ErrCodeDeliveryFailed, CodeOf(wrapped))

	assert.Equal(t, ErrCodeInternal, CodeOf(base))
	assert.Equal(t, ErrCodeInternal, CodeOf(nil))
}

func TestMarwisReading_SurfaceCondition(t *testing.T) {
	var nilReading *MarwisReading
	_, ok := nilReading.SurfaceCondition()
	assert.False(t, ok)

	reading := &MarwisReading{
		Measurements: []MarwisMeasurement{
			{SensorChannelName: "Water Film Height", Value: "0.2"},
			{SensorChannelName: "Road Surface Condition", Value: " damp "},
		},
	}
	cond, ok := reading.SurfaceCondition()
	require.True(t, ok)
	assert.Equal(t, "DAMP", cond)

	noChannel := &MarwisReading{
		Measurements: []MarwisMeasurement{{SensorChannelName: "Friction", Value: "0.8"}},
	}
	_, ok = noChannel.SurfaceCondition()
	assert.False(t, ok)
}

func TestMarwisReading_ReceivedWithin(t *testing.T) {
	now := time.Date(2026, 7, 14, 6, 0, 0, 0, time.UTC)
	reading := &MarwisReading{
		Measurements: []MarwisMeasurement{{SensorChannelName: "Surface Condition", Value: "DRY"}},
		ReceivedAt:   now.Add(-10 * time.Minute),
	}

	assert.True(t, reading.ReceivedWithin(now, 15*time.Minute))
	assert.False(t, reading.ReceivedWithin(now, 5*time.Minute))

	var nilReading *MarwisReading
	assert.False(t, nilReading.ReceivedWithin(now, time.Hour))

	empty := &MarwisReading{ReceivedAt: now}
	assert.False(t, empty.ReceivedWithin(now, time.Hour))
}

func TestAlertBatch_Empty(t *testing.T) {
	var nilBatch *AlertBatch
	assert.True(t, nilBatch.Empty())
	assert.True(t, (&AlertBatch{}).Empty())
	assert.False(t, (&AlertBatch{Alerts: []Alert{{}}}).Empty())
}

func TestAlertRule_CloneIsolatesTasks(t *testing.T) {
	rule := AlertRule{ID: RuleIce, Tasks: []string{"a", "b"}}
	clone := rule.Clone()
	clone.Tasks[0] = "mutated"

	assert.Equal(t, "a", rule.Tasks[0])
}
