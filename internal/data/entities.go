package data

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// TrustStatus classifies a recognized entity.
type TrustStatus string

const (
	TrustTrusted   TrustStatus = "trusted"
	TrustUntrusted TrustStatus = "untrusted"
	TrustUnknown   TrustStatus = "unknown"
)

// Entity is a recognized person/object profile linked to at most one
// primary detection. Read-only to the engine.
type Entity struct {
	ID                 uuid.UUID   `json:"id"`
	Name               string      `json:"name"`
	TrustStatus        TrustStatus `json:"trust_status"`
	PrimaryDetectionID *uuid.UUID  `json:"primary_detection_id,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
}

type EntityModel struct {
	DB DBTX
}

func (m EntityModel) TrustStatusesForDetections(ctx context.Context, detectionIDs []uuid.UUID) ([]TrustStatus, error) {
	if len(detectionIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT trust_status
		FROM entities
		WHERE primary_detection_id = ANY($1)`

	rows, err := m.DB.QueryContext(ctx, query, pq.Array(detectionIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []TrustStatus
	for rows.Next() {
		var s TrustStatus
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}
