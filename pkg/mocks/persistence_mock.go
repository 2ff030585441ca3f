package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
)

// MockQueueRepository is a mock implementation of persistence.QueueRepository.
type MockQueueRepository struct {
	mock.Mock
}

var _ persistence.QueueRepository = (*MockQueueRepository)(nil)

func (m *MockQueueRepository) Enqueue(ctx context.Context, entry *models.QueueEntry) error {
	args := m.Called(ctx, entry)

	return args.Error(0)
}

func (m *MockQueueRepository) DequeueReady(ctx context.Context, queueName string, limit int) ([]*models.QueueEntry, error) {
	args := m.Called(ctx, queueName, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.QueueEntry), args.Error(1)
}

func (m *MockQueueRepository) Ack(ctx context.Context, entryID string) error {
	args := m.Called(ctx, entryID)

	return args.Error(0)
}

func (m *MockQueueRepository) Requeue(ctx context.Context, entryID string, scheduledFor time.Time) error {
	args := m.Called(ctx, entryID, scheduledFor)

	return args.Error(0)
}

func (m *MockQueueRepository) MarkFailed(ctx context.Context, entryID string) error {
	args := m.Called(ctx, entryID)

	return args.Error(0)
}

func (m *MockQueueRepository) Stats(ctx context.Context, queueName string) (*models.QueueStats, error) {
	args := m.Called(ctx, queueName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.QueueStats), args.Error(1)
}

// MockExecutionRepository is a mock implementation of
// persistence.ExecutionRepository.
type MockExecutionRepository struct {
	mock.Mock
}

var _ persistence.ExecutionRepository = (*MockExecutionRepository)(nil)

func (m *MockExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionRepository) Update(ctx context.Context, execution *models.Execution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) List(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.Execution, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Execution), args.Error(1)
}
