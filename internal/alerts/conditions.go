package alerts

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/technosupport/ts-alert-engine/internal/data"
)

// RuleConditions is the parsed form of a rule's conditions document.
// Every predicate is optional; an absent predicate is vacuously true and
// a rule with no predicates at all always matches.
type RuleConditions struct {
	RiskThreshold *int      `json:"risk_threshold,omitempty" yaml:"risk_threshold"`
	ObjectTypes   []string  `json:"object_types,omitempty" yaml:"object_types"`
	CameraIDs     []string  `json:"camera_ids,omitempty" yaml:"camera_ids"`
	ZoneIDs       []string  `json:"zone_ids,omitempty" yaml:"zone_ids"`
	MinConfidence *float64  `json:"min_confidence,omitempty" yaml:"min_confidence"`
	Schedule      *Schedule `json:"schedule,omitempty" yaml:"schedule"`
}

func (c *RuleConditions) empty() bool {
	return c.RiskThreshold == nil && len(c.ObjectTypes) == 0 && len(c.CameraIDs) == 0 &&
		len(c.ZoneIDs) == 0 && c.MinConfidence == nil && c.Schedule == nil
}

// ParseConditions decodes and validates a conditions document. A failure
// here is a per-rule evaluation error, never a reason to abort the
// evaluation of other rules.
func ParseConditions(raw []byte) (*RuleConditions, error) {
	var c RuleConditions
	if len(raw) > 0 {
		dec := json.NewDecoder(strings.NewReader(string(raw)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("parse conditions: %w", err)
		}
	}
	if c.RiskThreshold != nil && (*c.RiskThreshold < 0 || *c.RiskThreshold > 100) {
		return nil, fmt.Errorf("risk_threshold %d out of range [0, 100]", *c.RiskThreshold)
	}
	if c.MinConfidence != nil && (*c.MinConfidence < 0 || *c.MinConfidence > 1) {
		return nil, fmt.Errorf("min_confidence %g out of range [0.0, 1.0]", *c.MinConfidence)
	}
	return &c, nil
}

type matchOutcome int

const (
	outcomeMatched matchOutcome = iota
	outcomeNotMatched
	outcomeError
)

// conditionResult is the tagged per-rule outcome. Errors are data, not
// control flow: the engine records them and moves on to the next rule.
type conditionResult struct {
	outcome matchOutcome
	matched []string
	detail  string
}

func matchFailed() conditionResult {
	return conditionResult{outcome: outcomeNotMatched}
}

func matchError(err error) conditionResult {
	return conditionResult{outcome: outcomeError, detail: err.Error()}
}

// evaluateConditions tests one rule's predicates against one event.
// Predicates are ANDed in a fixed order: risk_threshold, camera_ids,
// object_types, min_confidence, zone_ids, schedule.
func evaluateConditions(rule *data.AlertRule, event *data.Event, detections []*data.Detection, now time.Time) conditionResult {
	cond, err := ParseConditions(rule.Conditions)
	if err != nil {
		return matchError(err)
	}

	if cond.empty() {
		return conditionResult{outcome: outcomeMatched, matched: []string{"no_conditions (always matches)"}}
	}

	var matched []string

	if cond.RiskThreshold != nil {
		if event.RiskScore == nil || *event.RiskScore < *cond.RiskThreshold {
			return matchFailed()
		}
		matched = append(matched, fmt.Sprintf("risk_score >= %d", *cond.RiskThreshold))
	}

	if len(cond.CameraIDs) > 0 {
		if !containsString(cond.CameraIDs, event.CameraID) {
			return matchFailed()
		}
		matched = append(matched, fmt.Sprintf("camera_id in %s", quoteList(cond.CameraIDs)))
	}

	if len(cond.ObjectTypes) > 0 {
		if !anyObjectType(detections, cond.ObjectTypes) {
			return matchFailed()
		}
		matched = append(matched, fmt.Sprintf("object_type in %s", quoteList(cond.ObjectTypes)))
	}

	if cond.MinConfidence != nil {
		if !anyConfidenceAtLeast(detections, *cond.MinConfidence) {
			return matchFailed()
		}
		matched = append(matched, fmt.Sprintf("confidence >= %g", *cond.MinConfidence))
	}

	if len(cond.ZoneIDs) > 0 {
		// Reserved field: zones are defined on rules but evaluation does not
		// enforce them yet. Never fails the rule.
		log.Printf("Rule %s: zone matching not implemented, ignoring zone_ids", rule.ID)
	}

	if cond.Schedule != nil {
		if !scheduleMatches(cond.Schedule, now) {
			return matchFailed()
		}
		matched = append(matched, "schedule matched")
	}

	return conditionResult{outcome: outcomeMatched, matched: matched}
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func anyObjectType(detections []*data.Detection, types []string) bool {
	for _, d := range detections {
		if d.ObjectType != nil && containsString(types, *d.ObjectType) {
			return true
		}
	}
	return false
}

func anyConfidenceAtLeast(detections []*data.Detection, min float64) bool {
	for _, d := range detections {
		if d.Confidence != nil && *d.Confidence >= min {
			return true
		}
	}
	return false
}

// quoteList renders a string set as ['a', 'b'] for matched-condition text.
func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
