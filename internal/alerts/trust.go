package alerts

import (
	"context"

	"github.com/google/uuid"
	"github.com/technosupport/ts-alert-engine/internal/data"
)

// TrustResolver aggregates the trust statuses of the entities linked to a
// batch of detections. Returns nil when no entities are linked at all,
// which downstream treats like unknown but is distinct for telemetry.
type TrustResolver struct {
	Entities data.EntityRepository
}

func NewTrustResolver(entities data.EntityRepository) *TrustResolver {
	return &TrustResolver{Entities: entities}
}

// Resolve applies the priority trusted > untrusted > unknown: one trusted
// entity makes the whole batch trusted even when strangers are present.
// This permissiveness bias (suppress over fatigue for mixed groups) is
// deliberate; see DESIGN.md if a stricter policy is wanted.
func (r *TrustResolver) Resolve(ctx context.Context, detections []*data.Detection) (*data.TrustStatus, error) {
	ids := make([]uuid.UUID, 0, len(detections))
	for _, d := range detections {
		if d.ID != uuid.Nil {
			ids = append(ids, d.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	statuses, err := r.Entities.TrustStatusesForDetections(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, nil
	}

	for _, want := range []data.TrustStatus{data.TrustTrusted, data.TrustUntrusted} {
		for _, s := range statuses {
			if s == want {
				status := want
				return &status, nil
			}
		}
	}
	status := data.TrustUnknown
	return &status, nil
}
