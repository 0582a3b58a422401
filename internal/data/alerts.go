package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type AlertStatus string

const (
	AlertStatusPending      AlertStatus = "pending"
	AlertStatusDelivered    AlertStatus = "delivered"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusDismissed    AlertStatus = "dismissed"
)

// AlertMetadata snapshots what matched at firing time. RuleName is kept
// here because rule_id is nulled if the rule is later deleted.
type AlertMetadata struct {
	MatchedConditions []string `json:"matched_conditions"`
	RuleName          string   `json:"rule_name"`
}

// Alert is created exclusively by the engine with status pending.
// Status transitions happen in the delivery subsystem.
type Alert struct {
	ID        uuid.UUID     `json:"id"`
	EventID   uuid.UUID     `json:"event_id"`
	RuleID    *uuid.UUID    `json:"rule_id,omitempty"`
	Severity  Severity      `json:"severity"`
	Status    AlertStatus   `json:"status"`
	DedupKey  string        `json:"dedup_key"`
	Channels  []string      `json:"channels"`
	Metadata  AlertMetadata `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"`
}

type AlertModel struct {
	DB *sql.DB
}

func (m AlertModel) Begin(ctx context.Context) (AlertTx, error) {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &alertTx{tx: tx}, nil
}

type alertTx struct {
	tx *sql.Tx
}

// InCooldown reports whether an alert with the same (dedup_key, rule_id)
// was created within the cooldown window.
//
// Two-step check, both inside the enclosing transaction:
//  1. A transaction-scoped advisory lock on a hash of the key pair.
//     Row locks cannot serialize two first-firers when no matching row
//     exists yet, so this is what closes the check-then-insert race.
//     Unrelated key pairs hash to different locks and never contend.
//  2. FOR UPDATE SKIP LOCKED over matching recent rows, so rows being
//     decided elsewhere do not block checks against other keys.
func (t *alertTx) InCooldown(ctx context.Context, dedupKey string, ruleID uuid.UUID, since time.Time) (bool, error) {
	lockKey := dedupKey + "|" + ruleID.String()
	if _, err := t.tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return false, fmt.Errorf("acquire cooldown lock: %w", err)
	}

	query := `
		SELECT id
		FROM alerts
		WHERE dedup_key = $1 AND rule_id = $2 AND created_at >= $3
		FOR UPDATE SKIP LOCKED`

	rows, err := t.tx.QueryContext(ctx, query, dedupKey, ruleID, since)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	hit := rows.Next()
	if err := rows.Err(); err != nil {
		return false, err
	}
	return hit, nil
}

// InsertBatch persists the alerts in this transaction, filling in
// id and created_at from the database.
func (t *alertTx) InsertBatch(ctx context.Context, alerts []*Alert) error {
	query := `
		INSERT INTO alerts (event_id, rule_id, severity, status, dedup_key, channels, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	for _, a := range alerts {
		meta, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("marshal alert metadata: %w", err)
		}
		var ruleID any
		if a.RuleID != nil {
			ruleID = *a.RuleID
		}
		err = t.tx.QueryRowContext(ctx, query,
			a.EventID, ruleID, a.Severity, a.Status, a.DedupKey, pq.Array(a.Channels), meta,
		).Scan(&a.ID, &a.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *alertTx) Commit() error {
	return t.tx.Commit()
}

func (t *alertTx) Rollback() error {
	return t.tx.Rollback()
}
