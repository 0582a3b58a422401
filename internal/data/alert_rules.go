package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Severity levels ordered low -> critical
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityPriority = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Priority returns the sort rank of a severity. Unknown values rank below low.
func (s Severity) Priority() int {
	if p, ok := severityPriority[s]; ok {
		return p
	}
	return -1
}

const DefaultCooldownSeconds = 300

// AlertRule is a user-configured alerting rule. Predicates live in the
// conditions JSONB document and are parsed at evaluation time, so a
// malformed document disables that one rule, never the whole evaluation.
type AlertRule struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Enabled          bool      `json:"enabled"`
	Severity         Severity  `json:"severity"`
	Conditions       []byte    `json:"conditions"`
	DedupKeyTemplate string    `json:"dedup_key_template,omitempty"`
	CooldownSeconds  int       `json:"cooldown_seconds"`
	Channels         []string  `json:"channels"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Cooldown returns the rule's cooldown window. The schema defaults
// cooldown_seconds to 300 and allows an explicit 0, which means no
// cooldown at all; only a negative value (never stored) falls back.
func (r *AlertRule) Cooldown() time.Duration {
	secs := r.CooldownSeconds
	if secs < 0 {
		secs = DefaultCooldownSeconds
	}
	return time.Duration(secs) * time.Second
}

type RuleModel struct {
	DB DBTX
}

func (m RuleModel) ListEnabled(ctx context.Context) ([]*AlertRule, error) {
	query := `
		SELECT id, name, enabled, severity, conditions, dedup_key_template, cooldown_seconds, channels, created_at, updated_at
		FROM alert_rules
		WHERE enabled = true
		ORDER BY created_at`

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*AlertRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (m RuleModel) GetByID(ctx context.Context, id uuid.UUID) (*AlertRule, error) {
	query := `
		SELECT id, name, enabled, severity, conditions, dedup_key_template, cooldown_seconds, channels, created_at, updated_at
		FROM alert_rules
		WHERE id = $1`

	var r AlertRule
	var tpl sql.NullString
	var channels []string

	err := m.DB.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.Name, &r.Enabled, &r.Severity, &r.Conditions, &tpl,
		&r.CooldownSeconds, pq.Array(&channels), &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	if tpl.Valid {
		r.DedupKeyTemplate = tpl.String
	}
	r.Channels = channels
	return &r, nil
}

func scanRule(rows *sql.Rows) (*AlertRule, error) {
	var r AlertRule
	var tpl sql.NullString
	var channels []string

	err := rows.Scan(
		&r.ID, &r.Name, &r.Enabled, &r.Severity, &r.Conditions, &tpl,
		&r.CooldownSeconds, pq.Array(&channels), &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tpl.Valid {
		r.DedupKeyTemplate = tpl.String
	}
	r.Channels = channels
	return &r, nil
}
