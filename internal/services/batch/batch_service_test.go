package batch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pimboto/automation-bot-ui/internal/common"
	"github.com/Pimboto/automation-bot-ui/internal/interfaces"
	"github.com/Pimboto/automation-bot-ui/internal/models"
)

type fakeGateway struct {
	mu          sync.Mutex
	devices     []models.Device
	startErrs   map[string]error
	started     []models.StartRequest
	activePeak  int
	activeCount int
	startDelay  time.Duration
}

func newFakeGateway(udids ...string) *fakeGateway {
	g := &fakeGateway{startErrs: make(map[string]error)}
	for _, udid := range udids {
		g.devices = append(g.devices, models.Device{UDID: udid, Name: udid, Available: true})
	}
	return g
}

func (g *fakeGateway) ListDevices(ctx context.Context) ([]models.Device, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]models.Device(nil), g.devices...), nil
}

func (g *fakeGateway) ListSessions(ctx context.Context) ([]models.AutomationSession, error) {
	return nil, nil
}

func (g *fakeGateway) GetSession(ctx context.Context, id string) (*models.AutomationSession, error) {
	return nil, fmt.Errorf("not implemented")
}

func (g *fakeGateway) GetSessionLogs(ctx context.Context, id string, limit int, level models.LogLevel) ([]models.AutomationLog, error) {
	return nil, nil
}

func (g *fakeGateway) StartAutomation(ctx context.Context, req models.StartRequest) (*models.AutomationSession, error) {
	g.mu.Lock()
	g.activeCount++
	if g.activeCount > g.activePeak {
		g.activePeak = g.activeCount
	}
	delay := g.startDelay
	g.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.activeCount--

	if err := g.startErrs[req.DeviceUDID]; err != nil {
		return nil, err
	}
	g.started = append(g.started, req)
	return &models.AutomationSession{
		ID:     "sess-" + req.DeviceUDID,
		Flow:   req.Flow,
		Status: models.SessionInitializing,
	}, nil
}

func (g *fakeGateway) StopAutomation(ctx context.Context, id string) error { return nil }

func (g *fakeGateway) ListFlows(ctx context.Context) ([]models.FlowConfig, error) { return nil, nil }

func (g *fakeGateway) GetMetrics(ctx context.Context) (*models.BackendMetrics, error) {
	return nil, nil
}

func newTestService(t *testing.T, gateway *fakeGateway) interfaces.BatchService {
	t.Helper()
	config := common.DefaultConfig()
	config.Batch.StaggerDelay = "0s"
	svc, err := NewService(config, gateway, nil, nil, common.GetLogger())
	require.NoError(t, err)
	return svc
}

func testConfig(name string, devices ...string) *models.BatchConfig {
	return &models.BatchConfig{
		Name:    name,
		Flow:    "login_flow",
		Devices: devices,
		Schedule: scheduleOf(2, 0),
	}
}

// scheduleOf keeps test fixtures short.
func scheduleOf(maxConcurrent, delaySeconds int) models.BatchSchedule {
	return models.BatchSchedule{MaxConcurrent: maxConcurrent, DelayBetweenSeconds: delaySeconds}
}

func TestCreateConfigValidation(t *testing.T) {
	svc := newTestService(t, newFakeGateway("d1"))

	err := svc.CreateConfig(context.Background(), &models.BatchConfig{Name: "", Flow: "f", Devices: []string{"d1"}})
	assert.Error(t, err)

	err = svc.CreateConfig(context.Background(), &models.BatchConfig{Name: "b", Flow: "f", Devices: nil})
	assert.Error(t, err)

	cfg := testConfig("nightly", "d1")
	require.NoError(t, svc.CreateConfig(context.Background(), cfg))
	assert.NotEmpty(t, cfg.ID)
	assert.Equal(t, models.BatchReady, cfg.Status)
}

func TestCreateConfigRejectsDuplicateName(t *testing.T) {
	svc := newTestService(t, newFakeGateway("d1"))

	require.NoError(t, svc.CreateConfig(context.Background(), testConfig("nightly", "d1")))
	err := svc.CreateConfig(context.Background(), testConfig("NIGHTLY", "d1"))
	assert.Error(t, err)
	assert.Len(t, svc.ListConfigs(), 1)
}

func TestExecuteAllDevicesTerminal(t *testing.T) {
	gateway := newFakeGateway("d1", "d2", "d3")
	svc := newTestService(t, gateway)

	cfg := testConfig("fleet", "d1", "d2", "d3")
	require.NoError(t, svc.CreateConfig(context.Background(), cfg))

	exec, err := svc.Execute(context.Background(), cfg.ID)
	require.NoError(t, err)
	require.Len(t, exec.Devices, 3)

	for _, d := range exec.Devices {
		assert.True(t, d.Status.IsTerminal(), d.DeviceUDID)
		assert.Equal(t, models.DeviceCompleted, d.Status)
		assert.Equal(t, "sess-"+d.DeviceUDID, d.SessionID)
		assert.NotNil(t, d.EndedAt)
	}
	assert.NotNil(t, exec.EndedAt)

	saved, ok := svc.GetConfig(cfg.ID)
	require.True(t, ok)
	assert.Equal(t, models.BatchCompleted, saved.Status)
}

func TestExecuteIsolatedFailures(t *testing.T) {
	gateway := newFakeGateway("d1", "d2", "d3")
	gateway.startErrs["d2"] = fmt.Errorf("flow crashed")
	svc := newTestService(t, gateway)

	cfg := testConfig("fleet", "d1", "d2", "d3")
	require.NoError(t, svc.CreateConfig(context.Background(), cfg))

	exec, err := svc.Execute(context.Background(), cfg.ID)
	require.NoError(t, err)

	byUDID := make(map[string]models.DeviceExecution)
	for _, d := range exec.Devices {
		byUDID[d.DeviceUDID] = d
	}
	assert.Equal(t, models.DeviceCompleted, byUDID["d1"].Status)
	assert.Equal(t, models.DeviceFailed, byUDID["d2"].Status)
	assert.Equal(t, "flow crashed", byUDID["d2"].Error)
	assert.Equal(t, models.DeviceCompleted, byUDID["d3"].Status)

	saved, _ := svc.GetConfig(cfg.ID)
	assert.Equal(t, models.BatchError, saved.Status)
}

func TestExecuteUnavailableDeviceFailsWithoutStart(t *testing.T) {
	gateway := newFakeGateway("d1")
	gateway.devices = append(gateway.devices, models.Device{UDID: "busy", Available: false})
	svc := newTestService(t, gateway)

	cfg := testConfig("fleet", "d1", "busy", "unknown")
	require.NoError(t, svc.CreateConfig(context.Background(), cfg))

	exec, err := svc.Execute(context.Background(), cfg.ID)
	require.NoError(t, err)

	byUDID := make(map[string]models.DeviceExecution)
	for _, d := range exec.Devices {
		byUDID[d.DeviceUDID] = d
	}
	assert.Equal(t, models.DeviceFailed, byUDID["busy"].Status)
	assert.Equal(t, "Device not available", byUDID["busy"].Error)
	assert.Equal(t, models.DeviceFailed, byUDID["unknown"].Status)

	// Only the available device reached the gateway.
	gateway.mu.Lock()
	require.Len(t, gateway.started, 1)
	assert.Equal(t, "d1", gateway.started[0].DeviceUDID)
	gateway.mu.Unlock()
}

func TestExecuteWaveConcurrencyCap(t *testing.T) {
	gateway := newFakeGateway("d1", "d2", "d3", "d4", "d5")
	gateway.startDelay = 30 * time.Millisecond
	svc := newTestService(t, gateway)

	cfg := testConfig("fleet", "d1", "d2", "d3", "d4", "d5")
	cfg.Schedule = scheduleOf(2, 0)
	require.NoError(t, svc.CreateConfig(context.Background(), cfg))

	_, err := svc.Execute(context.Background(), cfg.ID)
	require.NoError(t, err)

	gateway.mu.Lock()
	assert.LessOrEqual(t, gateway.activePeak, 2)
	assert.Len(t, gateway.started, 5)
	gateway.mu.Unlock()
}

func TestExecuteExclusivity(t *testing.T) {
	gateway := newFakeGateway("d1", "d2")
	gateway.startDelay = 80 * time.Millisecond
	svc := newTestService(t, gateway)

	cfg := testConfig("fleet", "d1", "d2")
	require.NoError(t, svc.CreateConfig(context.Background(), cfg))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Execute(context.Background(), cfg.ID)
		assert.NoError(t, err)
	}()

	// Wait for the first execution to take the lock.
	require.Eventually(t, svc.IsExecuting, time.Second, 5*time.Millisecond)

	_, err := svc.Execute(context.Background(), cfg.ID)
	assert.ErrorIs(t, err, ErrExecutionInProgress)

	<-done
	assert.False(t, svc.IsExecuting())

	// The lock is released; a new run is accepted.
	_, err = svc.Execute(context.Background(), cfg.ID)
	assert.NoError(t, err)
}

func TestExecuteMergesParamTemplate(t *testing.T) {
	gateway := newFakeGateway("d1")
	svc := newTestService(t, gateway)

	cfg := testConfig("fleet", "d1")
	cfg.Params = map[string]interface{}{"account_pool": "us-west", "warmup": true}
	require.NoError(t, svc.CreateConfig(context.Background(), cfg))

	_, err := svc.Execute(context.Background(), cfg.ID)
	require.NoError(t, err)

	gateway.mu.Lock()
	require.Len(t, gateway.started, 1)
	req := gateway.started[0]
	gateway.mu.Unlock()

	assert.Equal(t, "login_flow", req.Flow)
	assert.Equal(t, "us-west", req.Params["account_pool"])
	assert.Equal(t, true, req.Params["warmup"])
}

func TestExecuteSupersedesPreviousExecution(t *testing.T) {
	gateway := newFakeGateway("d1")
	svc := newTestService(t, gateway)

	cfg := testConfig("fleet", "d1")
	require.NoError(t, svc.CreateConfig(context.Background(), cfg))

	first, err := svc.Execute(context.Background(), cfg.ID)
	require.NoError(t, err)
	second, err := svc.Execute(context.Background(), cfg.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	current, ok := svc.GetExecution(cfg.ID)
	require.True(t, ok)
	assert.Equal(t, second.ID, current.ID)
}

func TestExecuteUnknownBatch(t *testing.T) {
	svc := newTestService(t, newFakeGateway())
	_, err := svc.Execute(context.Background(), "missing")
	assert.Error(t, err)
	assert.False(t, svc.IsExecuting())
}

func TestDeleteConfigIdempotent(t *testing.T) {
	svc := newTestService(t, newFakeGateway("d1"))

	cfg := testConfig("fleet", "d1")
	require.NoError(t, svc.CreateConfig(context.Background(), cfg))
	require.NoError(t, svc.DeleteConfig(context.Background(), cfg.ID))
	_, ok := svc.GetConfig(cfg.ID)
	assert.False(t, ok)

	assert.NoError(t, svc.DeleteConfig(context.Background(), cfg.ID))
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg := testConfig("shared", "d1", "d2")
	cfg.ID = "batch_123"
	cfg.Params = map[string]interface{}{"account_pool": "eu"}
	cfg.CronExpr = "0 3 * * *"

	data, err := ExportYAML(cfg)
	require.NoError(t, err)

	imported, err := ImportYAML(data)
	require.NoError(t, err)

	// The importing panel assigns its own id.
	assert.Empty(t, imported.ID)
	assert.Equal(t, cfg.Name, imported.Name)
	assert.Equal(t, cfg.Flow, imported.Flow)
	assert.Equal(t, cfg.Devices, imported.Devices)
	assert.Equal(t, cfg.CronExpr, imported.CronExpr)
	assert.Equal(t, cfg.Schedule, imported.Schedule)
}

func TestWavesPartitioning(t *testing.T) {
	cfg := testConfig("fleet", "a", "b", "c", "d", "e")
	cfg.Schedule.MaxConcurrent = 2

	waves := cfg.Waves()
	require.Len(t, waves, 3)
	assert.Equal(t, []string{"a", "b"}, waves[0])
	assert.Equal(t, []string{"c", "d"}, waves[1])
	assert.Equal(t, []string{"e"}, waves[2])
}
