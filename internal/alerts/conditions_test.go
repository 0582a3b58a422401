package alerts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/ts-alert-engine/internal/data"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func testRule(conditions string) *data.AlertRule {
	return &data.AlertRule{
		ID:         uuid.New(),
		Name:       "test rule",
		Enabled:    true,
		Severity:   data.SeverityMedium,
		Conditions: []byte(conditions),
	}
}

func testEvent(camera string, risk *int) *data.Event {
	return &data.Event{
		ID:        uuid.New(),
		CameraID:  camera,
		StartedAt: time.Now().UTC().Add(-time.Minute),
		RiskScore: risk,
	}
}

func personDetection(conf float64) *data.Detection {
	return &data.Detection{ID: uuid.New(), ObjectType: strPtr("person"), Confidence: floatPtr(conf)}
}

func TestEvaluateConditions_NoConditionsAlwaysMatches(t *testing.T) {
	for _, raw := range []string{"", "{}"} {
		res := evaluateConditions(testRule(raw), testEvent("front_door", nil), nil, time.Now().UTC())
		assert.Equal(t, outcomeMatched, res.outcome)
		assert.Equal(t, []string{"no_conditions (always matches)"}, res.matched)
	}
}

func TestEvaluateConditions_RiskThreshold(t *testing.T) {
	rule := testRule(`{"risk_threshold": 70}`)
	now := time.Now().UTC()

	tests := []struct {
		name string
		risk *int
		want matchOutcome
	}{
		{"above threshold", intPtr(80), outcomeMatched},
		{"at threshold", intPtr(70), outcomeMatched},
		{"below threshold", intPtr(69), outcomeNotMatched},
		{"no risk score", nil, outcomeNotMatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evaluateConditions(rule, testEvent("cam-1", tt.risk), nil, now)
			assert.Equal(t, tt.want, res.outcome)
			if tt.want == outcomeMatched {
				assert.Equal(t, []string{"risk_score >= 70"}, res.matched)
			}
		})
	}
}

func TestEvaluateConditions_CameraAndObjectType(t *testing.T) {
	rule := testRule(`{"camera_ids": ["front_door"], "object_types": ["person"]}`)
	now := time.Now().UTC()
	dets := []*data.Detection{personDetection(0.9)}

	res := evaluateConditions(rule, testEvent("front_door", nil), dets, now)
	require.Equal(t, outcomeMatched, res.outcome)
	assert.Equal(t, []string{"camera_id in ['front_door']", "object_type in ['person']"}, res.matched)

	res = evaluateConditions(rule, testEvent("back_door", nil), dets, now)
	assert.Equal(t, outcomeNotMatched, res.outcome)

	car := &data.Detection{ID: uuid.New(), ObjectType: strPtr("car")}
	res = evaluateConditions(rule, testEvent("front_door", nil), []*data.Detection{car}, now)
	assert.Equal(t, outcomeNotMatched, res.outcome)
}

func TestEvaluateConditions_MinConfidence(t *testing.T) {
	rule := testRule(`{"min_confidence": 0.8}`)
	now := time.Now().UTC()

	res := evaluateConditions(rule, testEvent("cam-1", nil), []*data.Detection{personDetection(0.85)}, now)
	assert.Equal(t, outcomeMatched, res.outcome)
	assert.Equal(t, []string{"confidence >= 0.8"}, res.matched)

	res = evaluateConditions(rule, testEvent("cam-1", nil), []*data.Detection{personDetection(0.5)}, now)
	assert.Equal(t, outcomeNotMatched, res.outcome)

	// Nil confidence cannot satisfy the predicate
	noConf := &data.Detection{ID: uuid.New(), ObjectType: strPtr("person")}
	res = evaluateConditions(rule, testEvent("cam-1", nil), []*data.Detection{noConf}, now)
	assert.Equal(t, outcomeNotMatched, res.outcome)
}

func TestEvaluateConditions_ZoneIDsNeverFail(t *testing.T) {
	// Zones are reserved: present in the document but not enforced.
	rule := testRule(`{"zone_ids": ["lobby"]}`)
	res := evaluateConditions(rule, testEvent("cam-1", nil), nil, time.Now().UTC())
	assert.Equal(t, outcomeMatched, res.outcome)
	assert.NotContains(t, res.matched, "zone_ids")
}

func TestEvaluateConditions_FixedPredicateOrder(t *testing.T) {
	rule := testRule(`{"risk_threshold": 50, "camera_ids": ["front_door"], "object_types": ["person"], "min_confidence": 0.5, "schedule": {}}`)
	dets := []*data.Detection{personDetection(0.9)}

	res := evaluateConditions(rule, testEvent("front_door", intPtr(80)), dets, time.Now().UTC())
	require.Equal(t, outcomeMatched, res.outcome)
	assert.Equal(t, []string{
		"risk_score >= 50",
		"camera_id in ['front_door']",
		"object_type in ['person']",
		"confidence >= 0.5",
		"schedule matched",
	}, res.matched)
}

func TestEvaluateConditions_MalformedDocumentIsError(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"wrong type", `{"risk_threshold": "high"}`},
		{"not json", `{{{`},
		{"unknown field", `{"risk_treshold": 70}`},
		{"risk out of range", `{"risk_threshold": 150}`},
		{"confidence out of range", `{"min_confidence": 1.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evaluateConditions(testRule(tt.raw), testEvent("cam-1", intPtr(80)), nil, time.Now().UTC())
			assert.Equal(t, outcomeError, res.outcome)
			assert.NotEmpty(t, res.detail)
		})
	}
}

func TestQuoteList(t *testing.T) {
	assert.Equal(t, "['person']", quoteList([]string{"person"}))
	assert.Equal(t, "['a', 'b']", quoteList([]string{"a", "b"}))
}
