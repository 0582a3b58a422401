package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/technosupport/ts-alert-engine/internal/data"
)

// MockRuleRepo
type MockRuleRepo struct {
	mock.Mock
}

func (m *MockRuleRepo) ListEnabled(ctx context.Context) ([]*data.AlertRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*data.AlertRule), args.Error(1)
}

// MockEventRepo
type MockEventRepo struct {
	mock.Mock
}

func (m *MockEventRepo) GetByID(ctx context.Context, id uuid.UUID) (*data.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*data.Event), args.Error(1)
}

func (m *MockEventRepo) LoadDetections(ctx context.Context, eventID uuid.UUID) ([]*data.Detection, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*data.Detection), args.Error(1)
}

func (m *MockEventRepo) BatchLoadDetections(ctx context.Context, eventIDs []uuid.UUID) (map[uuid.UUID][]*data.Detection, error) {
	args := m.Called(ctx, eventIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID][]*data.Detection), args.Error(1)
}

func (m *MockEventRepo) ListRecent(ctx context.Context, limit int) ([]*data.Event, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*data.Event), args.Error(1)
}

// MockEntityRepo
type MockEntityRepo struct {
	mock.Mock
}

func (m *MockEntityRepo) TrustStatusesForDetections(ctx context.Context, detectionIDs []uuid.UUID) ([]data.TrustStatus, error) {
	args := m.Called(ctx, detectionIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]data.TrustStatus), args.Error(1)
}

// MockAlertRepo hands out MockAlertTx
type MockAlertRepo struct {
	mock.Mock
}

func (m *MockAlertRepo) Begin(ctx context.Context) (data.AlertTx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(data.AlertTx), args.Error(1)
}

type MockAlertTx struct {
	mock.Mock
}

func (m *MockAlertTx) InCooldown(ctx context.Context, dedupKey string, ruleID uuid.UUID, since time.Time) (bool, error) {
	args := m.Called(ctx, dedupKey, ruleID, since)
	return args.Bool(0), args.Error(1)
}

func (m *MockAlertTx) InsertBatch(ctx context.Context, alerts []*data.Alert) error {
	args := m.Called(ctx, alerts)
	return args.Error(0)
}

func (m *MockAlertTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockAlertTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockNotifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Trigger(eventType string, payload map[string]any, correlationID uuid.UUID) error {
	args := m.Called(eventType, payload, correlationID)
	return args.Error(0)
}
