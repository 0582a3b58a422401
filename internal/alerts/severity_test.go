package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/technosupport/ts-alert-engine/internal/data"
)

func TestEscalate_OneStepSaturating(t *testing.T) {
	assert.Equal(t, data.SeverityMedium, escalate(data.SeverityLow))
	assert.Equal(t, data.SeverityHigh, escalate(data.SeverityMedium))
	assert.Equal(t, data.SeverityCritical, escalate(data.SeverityHigh))
	assert.Equal(t, data.SeverityCritical, escalate(data.SeverityCritical))
}

func TestAdjustSeverity_Untrusted(t *testing.T) {
	untrusted := data.TrustUntrusted
	tr := &TriggeredRule{EffectiveSeverity: data.SeverityMedium}

	adjustSeverity(tr, &untrusted)

	assert.Equal(t, data.SeverityHigh, tr.EffectiveSeverity)
	assert.True(t, tr.TrustAdjusted)
	if assert.NotNil(t, tr.OriginalSeverity) {
		assert.Equal(t, data.SeverityMedium, *tr.OriginalSeverity)
	}
	assert.Contains(t, tr.MatchedConditions, "severity escalated medium -> high (untrusted entity)")
}

func TestAdjustSeverity_CriticalStaysCritical(t *testing.T) {
	untrusted := data.TrustUntrusted
	tr := &TriggeredRule{EffectiveSeverity: data.SeverityCritical}

	adjustSeverity(tr, &untrusted)

	assert.Equal(t, data.SeverityCritical, tr.EffectiveSeverity)
	assert.False(t, tr.TrustAdjusted)
	assert.Nil(t, tr.OriginalSeverity)
	assert.Empty(t, tr.MatchedConditions)
}

func TestAdjustSeverity_UnknownOrAbsentNoChange(t *testing.T) {
	unknown := data.TrustUnknown
	for _, trust := range []*data.TrustStatus{nil, &unknown} {
		tr := &TriggeredRule{EffectiveSeverity: data.SeverityLow}
		adjustSeverity(tr, trust)
		assert.Equal(t, data.SeverityLow, tr.EffectiveSeverity)
		assert.False(t, tr.TrustAdjusted)
	}
}

func TestSeverityPriorityOrdering(t *testing.T) {
	assert.Greater(t, data.SeverityCritical.Priority(), data.SeverityHigh.Priority())
	assert.Greater(t, data.SeverityHigh.Priority(), data.SeverityMedium.Priority())
	assert.Greater(t, data.SeverityMedium.Priority(), data.SeverityLow.Priority())
	assert.Equal(t, -1, data.Severity("bogus").Priority())
}
