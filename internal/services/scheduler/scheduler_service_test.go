package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pimboto/automation-bot-ui/internal/common"
	"github.com/Pimboto/automation-bot-ui/internal/models"
	"github.com/Pimboto/automation-bot-ui/internal/services/batch"
)

type fakeBatchService struct {
	mu       sync.Mutex
	configs  []*models.BatchConfig
	executed []string
	execErr  error
}

func (f *fakeBatchService) CreateConfig(ctx context.Context, cfg *models.BatchConfig) error {
	return nil
}

func (f *fakeBatchService) UpdateConfig(ctx context.Context, cfg *models.BatchConfig) error {
	return nil
}

func (f *fakeBatchService) GetConfig(id string) (*models.BatchConfig, bool) { return nil, false }

func (f *fakeBatchService) ListConfigs() []*models.BatchConfig {
	return f.configs
}

func (f *fakeBatchService) DeleteConfig(ctx context.Context, id string) error { return nil }

func (f *fakeBatchService) Execute(ctx context.Context, batchID string) (*models.BatchExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil {
		return nil, f.execErr
	}
	f.executed = append(f.executed, batchID)
	return &models.BatchExecution{BatchID: batchID}, nil
}

func (f *fakeBatchService) GetExecution(batchID string) (*models.BatchExecution, bool) {
	return nil, false
}

func (f *fakeBatchService) IsExecuting() bool { return false }

func TestRegisterBatchValidatesExpression(t *testing.T) {
	svc := NewService(&fakeBatchService{}, nil, common.GetLogger())

	assert.Error(t, svc.RegisterBatch("b1", ""))
	assert.Error(t, svc.RegisterBatch("b1", "not a cron"))
	assert.NoError(t, svc.RegisterBatch("b1", "0 3 * * *"))

	// Re-registering replaces the previous schedule.
	assert.NoError(t, svc.RegisterBatch("b1", "30 4 * * *"))
	assert.NoError(t, svc.UnregisterBatch("b1"))
	assert.NoError(t, svc.UnregisterBatch("never-registered"))
}

func TestStartPicksUpSavedSchedules(t *testing.T) {
	batches := &fakeBatchService{configs: []*models.BatchConfig{
		{ID: "b1", Name: "nightly", CronExpr: "0 3 * * *"},
		{ID: "b2", Name: "manual-only"},
		{ID: "b3", Name: "broken", CronExpr: "bogus"},
	}}
	svc := NewService(batches, nil, common.GetLogger())

	require.NoError(t, svc.Start())
	defer func() { _ = svc.Stop() }()

	assert.True(t, svc.IsRunning())
	assert.Error(t, svc.Start())
}

func TestStopIsIdempotent(t *testing.T) {
	svc := NewService(&fakeBatchService{}, nil, common.GetLogger())

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Stop())
	assert.False(t, svc.IsRunning())
	assert.NoError(t, svc.Stop())
}

func TestFireSkipsWhenBatchBusy(t *testing.T) {
	batches := &fakeBatchService{execErr: batch.ErrExecutionInProgress}
	svc := NewService(batches, nil, common.GetLogger()).(*Service)

	svc.fire("b1")

	batches.mu.Lock()
	assert.Empty(t, batches.executed)
	batches.mu.Unlock()
}

func TestFireExecutesBatch(t *testing.T) {
	batches := &fakeBatchService{}
	svc := NewService(batches, nil, common.GetLogger()).(*Service)

	svc.fire("b1")

	batches.mu.Lock()
	assert.Equal(t, []string{"b1"}, batches.executed)
	batches.mu.Unlock()
}
