package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Event is an analyzed security event produced by the enrichment pipeline.
// Read-only to the alert engine.
type Event struct {
	ID        uuid.UUID  `json:"id"`
	CameraID  string     `json:"camera_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	RiskScore *int       `json:"risk_score,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Detection is a single detected object within an event.
type Detection struct {
	ID         uuid.UUID `json:"id"`
	ObjectType *string   `json:"object_type,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type EventModel struct {
	DB DBTX
}

func (m EventModel) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	query := `
		SELECT id, camera_id, started_at, ended_at, risk_score, created_at
		FROM events
		WHERE id = $1`

	var e Event
	var endedAt sql.NullTime
	var risk sql.NullInt64

	err := m.DB.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.CameraID, &e.StartedAt, &endedAt, &risk, &e.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		e.EndedAt = &endedAt.Time
	}
	if risk.Valid {
		v := int(risk.Int64)
		e.RiskScore = &v
	}
	return &e, nil
}

// LoadDetections resolves detections via the event_detections junction.
// Always an explicit query; there is no lazy association to trip over.
func (m EventModel) LoadDetections(ctx context.Context, eventID uuid.UUID) ([]*Detection, error) {
	query := `
		SELECT d.id, d.object_type, d.confidence, d.created_at
		FROM detections d
		JOIN event_detections ed ON ed.detection_id = d.id
		WHERE ed.event_id = $1
		ORDER BY d.created_at`

	rows, err := m.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Detection
	for rows.Next() {
		d, err := scanDetection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// BatchLoadDetections loads detections for many events with one query.
// Used by the rule-testing path, which would otherwise be an N+1 hotspot.
func (m EventModel) BatchLoadDetections(ctx context.Context, eventIDs []uuid.UUID) (map[uuid.UUID][]*Detection, error) {
	out := make(map[uuid.UUID][]*Detection, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT ed.event_id, d.id, d.object_type, d.confidence, d.created_at
		FROM detections d
		JOIN event_detections ed ON ed.detection_id = d.id
		WHERE ed.event_id = ANY($1)
		ORDER BY d.created_at`

	rows, err := m.DB.QueryContext(ctx, query, pq.Array(eventIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var eventID uuid.UUID
		var d Detection
		var objType sql.NullString
		var conf sql.NullFloat64

		if err := rows.Scan(&eventID, &d.ID, &objType, &conf, &d.CreatedAt); err != nil {
			return nil, err
		}
		if objType.Valid {
			d.ObjectType = &objType.String
		}
		if conf.Valid {
			d.Confidence = &conf.Float64
		}
		out[eventID] = append(out[eventID], &d)
	}
	return out, rows.Err()
}

func (m EventModel) ListRecent(ctx context.Context, limit int) ([]*Event, error) {
	query := `
		SELECT id, camera_id, started_at, ended_at, risk_score, created_at
		FROM events
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := m.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var endedAt sql.NullTime
		var risk sql.NullInt64
		if err := rows.Scan(&e.ID, &e.CameraID, &e.StartedAt, &endedAt, &risk, &e.CreatedAt); err != nil {
			return nil, err
		}
		if endedAt.Valid {
			e.EndedAt = &endedAt.Time
		}
		if risk.Valid {
			v := int(risk.Int64)
			e.RiskScore = &v
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func scanDetection(rows *sql.Rows) (*Detection, error) {
	var d Detection
	var objType sql.NullString
	var conf sql.NullFloat64

	if err := rows.Scan(&d.ID, &objType, &conf, &d.CreatedAt); err != nil {
		return nil, err
	}
	if objType.Valid {
		d.ObjectType = &objType.String
	}
	if conf.Valid {
		d.Confidence = &conf.Float64
	}
	return &d, nil
}
