package alerts

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/ts-alert-engine/internal/data"
	"github.com/technosupport/ts-alert-engine/internal/metrics"
)

// EventTypeAlertFired is the dispatch event type for a fired alert.
const EventTypeAlertFired = "ALERT_FIRED"

// Notifier is the fire-and-forget dispatch sink. Trigger errors are
// logged by the engine and never surfaced to its callers.
type Notifier interface {
	Trigger(eventType string, payload map[string]any, correlationID uuid.UUID) error
}

// Engine evaluates security events against the enabled rule set and
// materializes alerts. All collaborators are injected; the engine holds
// no process-wide state.
type Engine struct {
	Rules    data.RuleRepository
	Events   data.EventRepository
	Alerts   data.AlertRepository
	Trust    *TrustResolver
	Notifier Notifier

	// Optional, nil-safe.
	Cooldowns *CooldownCache
	Metrics   *metrics.Collector
}

func NewEngine(rules data.RuleRepository, events data.EventRepository, entities data.EntityRepository, alerts data.AlertRepository, notifier Notifier) *Engine {
	return &Engine{
		Rules:    rules,
		Events:   events,
		Alerts:   alerts,
		Trust:    NewTrustResolver(entities),
		Notifier: notifier,
	}
}

// Evaluate runs one event through the rule set. detections may be nil, in
// which case they are loaded via the junction table; a zero now means the
// current UTC time. Cooldown row locks taken during the check are
// released when the internal transaction commits at return.
func (e *Engine) Evaluate(ctx context.Context, event *data.Event, detections []*data.Detection, now time.Time) (*EvaluationResult, error) {
	res, tx, err := e.evaluate(ctx, event, detections, now)
	if err != nil {
		if tx != nil {
			_ = tx.Rollback()
		}
		return nil, err
	}
	if tx != nil {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit evaluation: %w", err)
		}
	}
	return res, nil
}

// EvaluateAndCreateAlerts evaluates the event and persists alerts for the
// triggered rules in the same transaction as the cooldown checks, closing
// the check-then-insert race. Dispatch runs strictly after commit.
func (e *Engine) EvaluateAndCreateAlerts(ctx context.Context, event *data.Event, detections []*data.Detection) (*EvaluationResult, []*data.Alert, error) {
	res, tx, err := e.evaluate(ctx, event, detections, time.Time{})
	if err != nil {
		if tx != nil {
			_ = tx.Rollback()
		}
		return nil, nil, err
	}

	var created []*data.Alert
	if len(res.TriggeredRules) > 0 {
		for _, tr := range res.TriggeredRules {
			created = append(created, newAlert(event, tr))
		}
		if err := tx.InsertBatch(ctx, created); err != nil {
			_ = tx.Rollback()
			return nil, nil, fmt.Errorf("insert alerts: %w", err)
		}
	}
	if tx != nil {
		if err := tx.Commit(); err != nil {
			return nil, nil, fmt.Errorf("commit alerts: %w", err)
		}
	}

	e.afterCommit(ctx, event, res.TriggeredRules, created)
	return res, created, nil
}

// CreateAlertsForEvent materializes pre-computed triggered rules. The
// cooldown is re-verified under lock inside this transaction, so the
// (dedup_key, rule_id) uniqueness invariant holds even when evaluation
// happened in an earlier transaction.
func (e *Engine) CreateAlertsForEvent(ctx context.Context, event *data.Event, triggered []*TriggeredRule) ([]*data.Alert, error) {
	if len(triggered) == 0 {
		return nil, nil
	}

	tx, err := e.Alerts.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin alert tx: %w", err)
	}

	now := time.Now().UTC()
	var kept []*TriggeredRule
	var created []*data.Alert
	for _, tr := range triggered {
		hit, err := tx.InCooldown(ctx, tr.DedupKey, tr.Rule.ID, now.Add(-tr.Rule.Cooldown()))
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("cooldown check: %w", err)
		}
		if hit {
			log.Printf("Engine: rule %s (%s) entered cooldown before materialization, skipping", tr.Rule.ID, tr.DedupKey)
			continue
		}
		kept = append(kept, tr)
		created = append(created, newAlert(event, tr))
	}

	if len(created) > 0 {
		if err := tx.InsertBatch(ctx, created); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("insert alerts: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit alerts: %w", err)
	}

	e.afterCommit(ctx, event, kept, created)
	return created, nil
}

// TestRuleAgainstEvents previews one candidate rule against historical
// events, for rule authoring. Detections are loaded with a single batch
// query across all events. No trust, cooldown, or persistence involved.
func (e *Engine) TestRuleAgainstEvents(ctx context.Context, rule *data.AlertRule, events []*data.Event, now time.Time) ([]*RulePreview, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ids := make([]uuid.UUID, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	byEvent, err := e.Events.BatchLoadDetections(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("batch load detections: %w", err)
	}

	out := make([]*RulePreview, 0, len(events))
	for _, ev := range events {
		dets := byEvent[ev.ID]
		cond := evaluateConditions(rule, ev, dets, now)

		p := &RulePreview{
			EventID:           ev.ID,
			CameraID:          ev.CameraID,
			RiskScore:         ev.RiskScore,
			ObjectTypes:       distinctObjectTypes(dets),
			Matches:           cond.outcome == outcomeMatched,
			MatchedConditions: cond.matched,
			StartedAt:         ev.StartedAt,
		}
		if cond.outcome == outcomeError {
			p.MatchedConditions = []string{skipReasonErrorPrefix + cond.detail}
		}
		out = append(out, p)
	}
	return out, nil
}

// evaluate is the shared core. The returned AlertTx (nil if no cooldown
// check ran) is still open; the caller commits or rolls back.
func (e *Engine) evaluate(ctx context.Context, event *data.Event, detections []*data.Detection, now time.Time) (*EvaluationResult, data.AlertTx, error) {
	start := time.Now()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if detections == nil {
		var err error
		detections, err = e.Events.LoadDetections(ctx, event.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("load detections: %w", err)
		}
	}

	res := &EvaluationResult{}

	trust, err := e.Trust.Resolve(ctx, detections)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve trust: %w", err)
	}
	res.EntityTrustStatus = trust

	// Hard short-circuit: one trusted entity suppresses the whole event,
	// no rule evaluation at all.
	if trust != nil && *trust == data.TrustTrusted {
		res.TrustedEntitySkipped = true
		e.Metrics.IncTrustedSkip()
		e.Metrics.ObserveEvaluation(time.Since(start).Seconds())
		return res, nil, nil
	}

	rules, err := e.Rules.ListEnabled(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load rules: %w", err)
	}

	var tx data.AlertTx
	for _, rule := range rules {
		cond := evaluateConditions(rule, event, detections, now)
		switch cond.outcome {
		case outcomeError:
			res.SkippedRules = append(res.SkippedRules, &SkippedRule{
				Rule:   rule,
				Reason: skipReasonErrorPrefix + cond.detail,
			})
			e.Metrics.IncSkipped("evaluation_error")
			continue
		case outcomeNotMatched:
			continue
		}

		dedupKey := buildDedupKey(rule, event, detections)

		if e.Cooldowns.Hit(ctx, rule.ID, dedupKey) {
			res.SkippedRules = append(res.SkippedRules, &SkippedRule{Rule: rule, Reason: SkipReasonCooldown})
			e.Metrics.IncCooldownCacheHit()
			e.Metrics.IncSkipped(SkipReasonCooldown)
			continue
		}

		if tx == nil {
			tx, err = e.Alerts.Begin(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("begin alert tx: %w", err)
			}
		}
		hit, err := tx.InCooldown(ctx, dedupKey, rule.ID, now.Add(-rule.Cooldown()))
		if err != nil {
			return nil, tx, fmt.Errorf("cooldown check: %w", err)
		}
		if hit {
			res.SkippedRules = append(res.SkippedRules, &SkippedRule{Rule: rule, Reason: SkipReasonCooldown})
			e.Metrics.IncSkipped(SkipReasonCooldown)
			continue
		}

		tr := &TriggeredRule{
			Rule:              rule,
			EffectiveSeverity: rule.Severity,
			MatchedConditions: cond.matched,
			DedupKey:          dedupKey,
		}
		adjustSeverity(tr, trust)
		res.TriggeredRules = append(res.TriggeredRules, tr)
		e.Metrics.IncTriggered(string(tr.EffectiveSeverity))
	}

	// Descending severity; stable so ties keep rule evaluation order.
	sort.SliceStable(res.TriggeredRules, func(i, j int) bool {
		return res.TriggeredRules[i].EffectiveSeverity.Priority() > res.TriggeredRules[j].EffectiveSeverity.Priority()
	})
	if len(res.TriggeredRules) > 0 {
		top := res.TriggeredRules[0].EffectiveSeverity
		res.HighestSeverity = &top
	}

	e.Metrics.ObserveEvaluation(time.Since(start).Seconds())
	return res, tx, nil
}

func newAlert(event *data.Event, tr *TriggeredRule) *data.Alert {
	ruleID := tr.Rule.ID
	return &data.Alert{
		EventID:  event.ID,
		RuleID:   &ruleID,
		Severity: tr.EffectiveSeverity,
		Status:   data.AlertStatusPending,
		DedupKey: tr.DedupKey,
		Channels: tr.Rule.Channels,
		Metadata: data.AlertMetadata{
			MatchedConditions: tr.MatchedConditions,
			RuleName:          tr.Rule.Name,
		},
	}
}

// afterCommit marks cooldowns and dispatches notifications for freshly
// committed alerts. triggered and alerts are parallel slices.
func (e *Engine) afterCommit(ctx context.Context, event *data.Event, triggered []*TriggeredRule, alerts []*data.Alert) {
	for i, a := range alerts {
		tr := triggered[i]
		e.Cooldowns.Mark(ctx, tr.Rule.ID, tr.DedupKey, tr.Rule.Cooldown())
		e.dispatch(event, a)
	}
	if len(alerts) > 0 {
		e.Metrics.AddAlertsCreated(len(alerts))
	}
}

// dispatch triggers the downstream notification for one alert. Failures
// are logged and counted; the alert row is already committed and delivery
// is retryable by its own subsystem.
func (e *Engine) dispatch(event *data.Event, a *data.Alert) {
	if e.Notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Engine: dispatch panic for alert %s: %v", a.ID, r)
			e.Metrics.IncDispatchFailure()
		}
	}()

	payload := map[string]any{
		"alert_id":  a.ID.String(),
		"event_id":  a.EventID.String(),
		"severity":  string(a.Severity),
		"dedup_key": a.DedupKey,
		"channels":  a.Channels,
		"camera_id": event.CameraID,
	}
	if a.RuleID != nil {
		payload["rule_id"] = a.RuleID.String()
	}
	if event.RiskScore != nil {
		payload["risk_score"] = *event.RiskScore
	}

	if err := e.Notifier.Trigger(EventTypeAlertFired, payload, a.EventID); err != nil {
		log.Printf("Engine: dispatch failed for alert %s: %v", a.ID, err)
		e.Metrics.IncDispatchFailure()
	}
}

func distinctObjectTypes(detections []*data.Detection) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range detections {
		if d.ObjectType == nil || *d.ObjectType == "" {
			continue
		}
		if _, ok := seen[*d.ObjectType]; ok {
			continue
		}
		seen[*d.ObjectType] = struct{}{}
		out = append(out, *d.ObjectType)
	}
	return out
}
