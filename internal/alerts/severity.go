package alerts

import (
	"fmt"

	"github.com/technosupport/ts-alert-engine/internal/data"
)

// escalate bumps a severity one level, saturating at critical.
func escalate(s data.Severity) data.Severity {
	switch s {
	case data.SeverityLow:
		return data.SeverityMedium
	case data.SeverityMedium:
		return data.SeverityHigh
	case data.SeverityHigh, data.SeverityCritical:
		return data.SeverityCritical
	}
	return s
}

// adjustSeverity applies the trust-based transform to a triggered rule.
// Trusted never reaches here (the engine short-circuits the whole event).
// Untrusted escalates one step; unknown or absent trust leaves it alone.
func adjustSeverity(tr *TriggeredRule, trust *data.TrustStatus) {
	if trust == nil || *trust != data.TrustUntrusted {
		return
	}
	original := tr.EffectiveSeverity
	adjusted := escalate(original)
	if adjusted == original {
		return
	}
	tr.OriginalSeverity = &original
	tr.EffectiveSeverity = adjusted
	tr.TrustAdjusted = true
	tr.MatchedConditions = append(tr.MatchedConditions,
		fmt.Sprintf("severity escalated %s -> %s (untrusted entity)", original, adjusted))
}
