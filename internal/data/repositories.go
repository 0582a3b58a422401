package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRecordNotFound = errors.New("record not found")
)

// DBTX is a common interface for *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// RuleRepository is the engine's read-only view of rule configuration.
// Rules are authored elsewhere; the engine never writes them.
type RuleRepository interface {
	ListEnabled(ctx context.Context) ([]*AlertRule, error)
}

type EventRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	// LoadDetections resolves the event->detection junction for one event.
	LoadDetections(ctx context.Context, eventID uuid.UUID) ([]*Detection, error)
	// BatchLoadDetections resolves the junction for many events in a single query.
	BatchLoadDetections(ctx context.Context, eventIDs []uuid.UUID) (map[uuid.UUID][]*Detection, error)
	ListRecent(ctx context.Context, limit int) ([]*Event, error)
}

type EntityRepository interface {
	// TrustStatusesForDetections returns the distinct trust statuses of all
	// entities whose primary detection is among the given detection ids.
	TrustStatusesForDetections(ctx context.Context, detectionIDs []uuid.UUID) ([]TrustStatus, error)
}

// AlertRepository opens alert transactions. The cooldown check and the
// insert that depends on it must share one transaction so the row locks
// taken by InCooldown are held until commit.
type AlertRepository interface {
	Begin(ctx context.Context) (AlertTx, error)
}

type AlertTx interface {
	// InCooldown reports whether an equivalent alert fired since the given
	// time. It serializes concurrent checks of the same (dedupKey, ruleID)
	// and locks matching rows until the transaction ends.
	InCooldown(ctx context.Context, dedupKey string, ruleID uuid.UUID, since time.Time) (bool, error)
	InsertBatch(ctx context.Context, alerts []*Alert) error
	Commit() error
	Rollback() error
}
