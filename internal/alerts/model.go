package alerts

import (
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/ts-alert-engine/internal/data"
)

const (
	SkipReasonCooldown = "in_cooldown"

	// evaluation_error reasons are prefixed with this plus the detail.
	skipReasonErrorPrefix = "evaluation_error: "
)

// TriggeredRule is a matched rule that survived cooldown, ready to be
// materialized as an Alert.
type TriggeredRule struct {
	Rule              *data.AlertRule `json:"rule"`
	EffectiveSeverity data.Severity   `json:"effective_severity"`
	MatchedConditions []string        `json:"matched_conditions"`
	DedupKey          string          `json:"dedup_key"`
	OriginalSeverity  *data.Severity  `json:"original_severity,omitempty"`
	TrustAdjusted     bool            `json:"trust_adjusted"`
}

type SkippedRule struct {
	Rule   *data.AlertRule `json:"rule"`
	Reason string          `json:"reason"`
}

// EvaluationResult is the outcome of evaluating one event against all
// enabled rules. TriggeredRules is ordered by descending severity; ties
// keep rule evaluation order.
type EvaluationResult struct {
	TriggeredRules       []*TriggeredRule  `json:"triggered_rules"`
	SkippedRules         []*SkippedRule    `json:"skipped_rules"`
	HighestSeverity      *data.Severity    `json:"highest_severity,omitempty"`
	EntityTrustStatus    *data.TrustStatus `json:"entity_trust_status,omitempty"`
	TrustedEntitySkipped bool              `json:"trusted_entity_skipped"`
}

// RulePreview is one row of the offline rule-testing output.
type RulePreview struct {
	EventID           uuid.UUID `json:"event_id"`
	CameraID          string    `json:"camera_id"`
	RiskScore         *int      `json:"risk_score,omitempty"`
	ObjectTypes       []string  `json:"object_types"`
	Matches           bool      `json:"matches"`
	MatchedConditions []string  `json:"matched_conditions"`
	StartedAt         time.Time `json:"started_at"`
}
