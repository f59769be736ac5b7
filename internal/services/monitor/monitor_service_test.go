package monitor

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
	mu           sync.Mutex
	sessions     map[string]*models.AutomationSession
	logs         map[string][]models.AutomationLog
	logsErr      error
	sessionCalls int
	logCalls     int
	lastLevel    models.LogLevel
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sessions: make(map[string]*models.AutomationSession),
		logs:     make(map[string][]models.AutomationLog),
	}
}

func (g *fakeGateway) ListDevices(ctx context.Context) ([]models.Device, error) { return nil, nil }

func (g *fakeGateway) ListSessions(ctx context.Context) ([]models.AutomationSession, error) {
	return nil, nil
}

func (g *fakeGateway) GetSession(ctx context.Context, id string) (*models.AutomationSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionCalls++
	session, ok := g.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	copied := *session
	return &copied, nil
}

func (g *fakeGateway) GetSessionLogs(ctx context.Context, id string, limit int, level models.LogLevel) ([]models.AutomationLog, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logCalls++
	g.lastLevel = level
	if g.logsErr != nil {
		return nil, g.logsErr
	}
	return g.logs[id], nil
}

func (g *fakeGateway) StartAutomation(ctx context.Context, req models.StartRequest) (*models.AutomationSession, error) {
	return nil, fmt.Errorf("not implemented")
}

func (g *fakeGateway) StopAutomation(ctx context.Context, id string) error { return nil }

func (g *fakeGateway) ListFlows(ctx context.Context) ([]models.FlowConfig, error) { return nil, nil }

func (g *fakeGateway) GetMetrics(ctx context.Context) (*models.BackendMetrics, error) {
	return nil, nil
}

type fakeKV struct {
	mu     sync.Mutex
	values map[string]string
	sets   int
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: make(map[string]string)}
}

func (s *fakeKV) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", interfaces.ErrKeyNotFound
	}
	return v, nil
}

func (s *fakeKV) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	s.values[key] = value
	return nil
}

func (s *fakeKV) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func newTestService(gateway *fakeGateway, kv *fakeKV) interfaces.MonitorService {
	config := common.DefaultConfig()
	return NewService(config, gateway, kv, nil, common.GetLogger())
}

func runningSession(id string) *models.AutomationSession {
	started := time.Now().Add(-time.Minute)
	return &models.AutomationSession{
		ID:        id,
		Flow:      "login_flow",
		Status:    models.SessionRunning,
		StartedAt: &started,
	}
}

func TestAddSessionFetchesAndPersists(t *testing.T) {
	gateway := newFakeGateway()
	gateway.sessions["s1"] = runningSession("s1")
	gateway.logs["s1"] = []models.AutomationLog{
		{Timestamp: time.Now(), Level: models.LogLevelInfo, Message: "hello"},
	}
	kv := newFakeKV()
	svc := newTestService(gateway, kv)

	require.NoError(t, svc.AddSession(context.Background(), runningSession("s1"), true))

	entry, ok := svc.GetEntry("s1")
	require.True(t, ok)
	require.Len(t, entry.Logs, 1)
	assert.Equal(t, "hello", entry.Logs[0].Message)
	assert.Empty(t, entry.LastError)
	assert.False(t, entry.IsLoading)

	// The persisted list contains the id.
	raw, err := kv.Get(context.Background(), "monitor:sessions")
	require.NoError(t, err)
	assert.Contains(t, raw, "s1")
}

func TestAddSessionIdempotent(t *testing.T) {
	gateway := newFakeGateway()
	gateway.sessions["s1"] = runningSession("s1")
	gateway.logs["s1"] = []models.AutomationLog{
		{Timestamp: time.Now(), Level: models.LogLevelInfo, Message: "first"},
	}
	kv := newFakeKV()
	svc := newTestService(gateway, kv)

	require.NoError(t, svc.AddSession(context.Background(), runningSession("s1"), true))

	paused := true
	require.NoError(t, svc.UpdateEntry("s1", models.EntryUpdate{IsPaused: &paused}))

	// Re-adding must not reset the existing entry's state.
	require.NoError(t, svc.AddSession(context.Background(), runningSession("s1"), true))

	entry, ok := svc.GetEntry("s1")
	require.True(t, ok)
	assert.True(t, entry.IsPaused)
	assert.Len(t, svc.ListEntries(), 1)
}

func TestFetchKeepsStaleLogsOnError(t *testing.T) {
	gateway := newFakeGateway()
	gateway.sessions["s1"] = runningSession("s1")
	gateway.logs["s1"] = []models.AutomationLog{
		{Timestamp: time.Now(), Level: models.LogLevelInfo, Message: "kept"},
	}
	kv := newFakeKV()
	svc := newTestService(gateway, kv)

	require.NoError(t, svc.AddSession(context.Background(), runningSession("s1"), false))

	gateway.mu.Lock()
	gateway.logsErr = fmt.Errorf("backend down")
	gateway.mu.Unlock()

	require.NoError(t, svc.FetchLogsFor(context.Background(), "s1"))

	entry, ok := svc.GetEntry("s1")
	require.True(t, ok)
	require.Len(t, entry.Logs, 1)
	assert.Equal(t, "kept", entry.Logs[0].Message)
	assert.Contains(t, entry.LastError, "backend down")

	// Recovery clears the error and replaces the buffer.
	gateway.mu.Lock()
	gateway.logsErr = nil
	gateway.logs["s1"] = []models.AutomationLog{
		{Timestamp: time.Now(), Level: models.LogLevelInfo, Message: "fresh"},
	}
	gateway.mu.Unlock()

	require.NoError(t, svc.FetchLogsFor(context.Background(), "s1"))
	entry, _ = svc.GetEntry("s1")
	require.Len(t, entry.Logs, 1)
	assert.Equal(t, "fresh", entry.Logs[0].Message)
	assert.Empty(t, entry.LastError)
}

func TestPausedEntrySkipsFetch(t *testing.T) {
	gateway := newFakeGateway()
	gateway.sessions["s1"] = runningSession("s1")
	kv := newFakeKV()
	svc := newTestService(gateway, kv)

	require.NoError(t, svc.AddSession(context.Background(), runningSession("s1"), false))

	paused := true
	require.NoError(t, svc.UpdateEntry("s1", models.EntryUpdate{IsPaused: &paused}))

	gateway.mu.Lock()
	before := gateway.logCalls
	gateway.mu.Unlock()

	require.NoError(t, svc.FetchLogsFor(context.Background(), "s1"))

	gateway.mu.Lock()
	after := gateway.logCalls
	gateway.mu.Unlock()
	assert.Equal(t, before, after)

	// Unpausing resumes fetching.
	unpaused := false
	require.NoError(t, svc.UpdateEntry("s1", models.EntryUpdate{IsPaused: &unpaused}))
	require.NoError(t, svc.FetchLogsFor(context.Background(), "s1"))

	gateway.mu.Lock()
	assert.Equal(t, after+1, gateway.logCalls)
	gateway.mu.Unlock()
}

func TestFetchUsesLevelFilter(t *testing.T) {
	gateway := newFakeGateway()
	gateway.sessions["s1"] = runningSession("s1")
	kv := newFakeKV()
	svc := newTestService(gateway, kv)

	require.NoError(t, svc.AddSession(context.Background(), runningSession("s1"), false))

	level := models.LogLevelError
	require.NoError(t, svc.UpdateEntry("s1", models.EntryUpdate{LevelFilter: &level}))
	require.NoError(t, svc.FetchLogsFor(context.Background(), "s1"))

	gateway.mu.Lock()
	assert.Equal(t, models.LogLevelError, gateway.lastLevel)
	gateway.mu.Unlock()
}

func TestRemoveSessionIsIdempotent(t *testing.T) {
	gateway := newFakeGateway()
	gateway.sessions["s1"] = runningSession("s1")
	kv := newFakeKV()
	svc := newTestService(gateway, kv)

	require.NoError(t, svc.AddSession(context.Background(), runningSession("s1"), true))
	require.NoError(t, svc.RemoveSession(context.Background(), "s1"))

	_, ok := svc.GetEntry("s1")
	assert.False(t, ok)

	raw, err := kv.Get(context.Background(), "monitor:sessions")
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)

	require.NoError(t, svc.RemoveSession(context.Background(), "s1"))
	require.NoError(t, svc.RemoveSession(context.Background(), "never-added"))
}

func TestUpdateEntryUnknownIDIsNoOp(t *testing.T) {
	svc := newTestService(newFakeGateway(), newFakeKV())
	paused := true
	assert.NoError(t, svc.UpdateEntry("missing", models.EntryUpdate{IsPaused: &paused}))
}

func TestRestoreSkipsUnresolvableSessions(t *testing.T) {
	gateway := newFakeGateway()
	gateway.sessions["alive"] = runningSession("alive")
	kv := newFakeKV()
	require.NoError(t, kv.Set(context.Background(), "monitor:sessions", `["alive","gone"]`))
	kv.mu.Lock()
	kv.sets = 0
	kv.mu.Unlock()

	svc := newTestService(gateway, kv)
	require.NoError(t, svc.Restore(context.Background()))

	entries := svc.ListEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "alive", entries[0].SessionID)

	// Restore adds with persist=false so the stored list is untouched.
	kv.mu.Lock()
	assert.Zero(t, kv.sets)
	kv.mu.Unlock()
}

func TestRestoreWithNoSavedList(t *testing.T) {
	svc := newTestService(newFakeGateway(), newFakeKV())
	assert.NoError(t, svc.Restore(context.Background()))
	assert.Empty(t, svc.ListEntries())
}

func TestPollingTickFansOut(t *testing.T) {
	gateway := newFakeGateway()
	gateway.sessions["s1"] = runningSession("s1")
	gateway.sessions["s2"] = runningSession("s2")
	kv := newFakeKV()

	config := common.DefaultConfig()
	config.Monitor.PollInterval = "30ms"
	svc := NewService(config, gateway, kv, nil, common.GetLogger())

	require.NoError(t, svc.AddSession(context.Background(), runningSession("s1"), false))
	require.NoError(t, svc.AddSession(context.Background(), runningSession("s2"), false))

	gateway.mu.Lock()
	before := gateway.logCalls
	gateway.mu.Unlock()

	svc.Start()
	defer svc.Stop()
	time.Sleep(100 * time.Millisecond)

	gateway.mu.Lock()
	after := gateway.logCalls
	gateway.mu.Unlock()

	// Both entries refreshed at least once by the schedule.
	assert.GreaterOrEqual(t, after-before, 2)
}
