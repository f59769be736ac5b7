// Package monitor implements the multi-log viewer's session registry: a
// keyed collection of monitored sessions refreshed on a polling schedule.
package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Pimboto/automation-bot-ui/internal/common"
	"github.com/Pimboto/automation-bot-ui/internal/interfaces"
	"github.com/Pimboto/automation-bot-ui/internal/models"
)

// monitoredSessionsKey is the KV key holding the persisted session id list.
const monitoredSessionsKey = "monitor:sessions"

// Service implements MonitorService. Entries are owned by the service;
// accessors return clones.
type Service struct {
	gateway  interfaces.BackendGateway
	storage  interfaces.KeyValueStorage
	events   interfaces.EventService
	logger   arbor.ILogger
	logLimit int

	mu      sync.RWMutex
	entries map[string]*models.MonitoredSessionEntry

	poller *common.Poller
}

// NewService creates the session registry. Start must be called to begin
// the polling schedule.
func NewService(
	config *common.Config,
	gateway interfaces.BackendGateway,
	storage interfaces.KeyValueStorage,
	events interfaces.EventService,
	logger arbor.ILogger,
) interfaces.MonitorService {
	logLimit := config.Monitor.LogLimit
	if logLimit <= 0 {
		logLimit = 100
	}

	s := &Service{
		gateway:  gateway,
		storage:  storage,
		events:   events,
		logger:   logger,
		logLimit: logLimit,
		entries:  make(map[string]*models.MonitoredSessionEntry),
	}
	s.poller = common.NewPoller(config.Monitor.PollIntervalDuration(), s.tick, logger)
	return s
}

// Start begins the polling schedule.
func (s *Service) Start() {
	s.poller.Start()
	s.logger.Info().Msg("Monitor polling started")
}

// Stop halts the polling schedule. In-flight fetches complete and their
// results are discarded if the entry was removed meanwhile.
func (s *Service) Stop() {
	s.poller.Stop()
	s.logger.Info().Msg("Monitor polling stopped")
}

// AddSession registers a session for monitoring. Adding an id already
// present is a no-op. The first fetch is triggered immediately.
func (s *Service) AddSession(ctx context.Context, session *models.AutomationSession, persist bool) error {
	s.mu.Lock()
	if _, exists := s.entries[session.ID]; exists {
		s.mu.Unlock()
		return nil
	}
	s.entries[session.ID] = &models.MonitoredSessionEntry{
		SessionID:   session.ID,
		Session:     session,
		Logs:        []models.AutomationLog{},
		AutoScroll:  true,
		LevelFilter: models.LogLevelAll,
	}
	s.mu.Unlock()

	s.logger.Info().
		Str("session_id", session.ID).
		Bool("persist", persist).
		Msg("Session added to monitor")

	if persist {
		if err := s.persistIDs(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to persist monitored session list")
		}
	}

	if err := s.FetchLogsFor(ctx, session.ID); err != nil {
		s.logger.Warn().
			Err(err).
			Str("session_id", session.ID).
			Msg("Initial log fetch failed")
	}

	s.publishUpdate(ctx, session.ID)
	return nil
}

// RemoveSession drops a session from the monitor. Removing a nonexistent
// id is a no-op.
func (s *Service) RemoveSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	_, exists := s.entries[sessionID]
	delete(s.entries, sessionID)
	s.mu.Unlock()

	if !exists {
		return nil
	}

	s.logger.Info().Str("session_id", sessionID).Msg("Session removed from monitor")

	if err := s.persistIDs(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist monitored session list")
	}

	s.publishUpdate(ctx, sessionID)
	return nil
}

// UpdateEntry merges partial view-state changes into an entry. Absent ids
// are a no-op. Pausing does not cancel an in-flight fetch; it suppresses
// the next scheduled one.
func (s *Service) UpdateEntry(sessionID string, update models.EntryUpdate) error {
	s.mu.Lock()
	entry, exists := s.entries[sessionID]
	if !exists {
		s.mu.Unlock()
		return nil
	}
	if update.IsPaused != nil {
		entry.IsPaused = *update.IsPaused
	}
	if update.AutoScroll != nil {
		entry.AutoScroll = *update.AutoScroll
	}
	if update.LevelFilter != nil {
		entry.LevelFilter = *update.LevelFilter
	}
	if update.SearchTerm != nil {
		entry.SearchTerm = *update.SearchTerm
	}
	s.mu.Unlock()

	s.publishUpdate(context.Background(), sessionID)
	return nil
}

// FetchLogsFor refreshes one entry: session status and log tail fetched
// concurrently. Paused entries and entries with a fetch already in flight
// are skipped (success, no side effect). On failure previous logs stay
// visible with the error recorded on the entry.
func (s *Service) FetchLogsFor(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	entry, exists := s.entries[sessionID]
	if !exists || entry.IsPaused || entry.IsLoading {
		s.mu.Unlock()
		return nil
	}
	entry.IsLoading = true
	level := entry.LevelFilter
	s.mu.Unlock()

	var (
		wg         sync.WaitGroup
		session    *models.AutomationSession
		logs       []models.AutomationLog
		sessionErr error
		logsErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		session, sessionErr = s.gateway.GetSession(ctx, sessionID)
	}()
	go func() {
		defer wg.Done()
		logs, logsErr = s.gateway.GetSessionLogs(ctx, sessionID, s.logLimit, level)
	}()
	wg.Wait()

	s.mu.Lock()
	entry, exists = s.entries[sessionID]
	if !exists {
		// Removed while the fetch was in flight; discard the result.
		s.mu.Unlock()
		return nil
	}
	entry.IsLoading = false
	entry.LastUpdated = time.Now()

	if sessionErr != nil || logsErr != nil {
		err := sessionErr
		if err == nil {
			err = logsErr
		}
		entry.LastError = err.Error()
		s.mu.Unlock()

		s.logger.Warn().
			Err(err).
			Str("session_id", sessionID).
			Msg("Monitor fetch failed, keeping stale logs")
		s.publishUpdate(ctx, sessionID)
		return nil
	}

	entry.Session = session
	entry.Logs = logs
	entry.LastError = ""
	s.mu.Unlock()

	s.publishUpdate(ctx, sessionID)
	return nil
}

// GetEntry returns a snapshot of one entry.
func (s *Service) GetEntry(sessionID string) (*models.MonitoredSessionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.entries[sessionID]
	if !exists {
		return nil, false
	}
	return entry.Clone(), true
}

// ListEntries returns snapshots of all entries.
func (s *Service) ListEntries() []*models.MonitoredSessionEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*models.MonitoredSessionEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry.Clone())
	}
	return entries
}

// Restore re-adds the persisted session id set. Ids the backend no longer
// resolves are logged and skipped; partial restoration is acceptable.
// Entries are added with persist=false so the list is not rewritten while
// it is being read.
func (s *Service) Restore(ctx context.Context) error {
	raw, err := s.storage.Get(ctx, monitoredSessionsKey)
	if err == interfaces.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		s.logger.Warn().Err(err).Msg("Discarding unreadable monitored session list")
		return nil
	}

	restored := 0
	for _, id := range ids {
		session, err := s.gateway.GetSession(ctx, id)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("session_id", id).
				Msg("Skipping unrestorable session")
			continue
		}
		if err := s.AddSession(ctx, session, false); err != nil {
			s.logger.Warn().
				Err(err).
				Str("session_id", id).
				Msg("Failed to restore session")
			continue
		}
		restored++
	}

	s.logger.Info().
		Int("requested", len(ids)).
		Int("restored", restored).
		Msg("Monitored sessions restored")
	return nil
}

// tick fans fetches out over all entries. Entries are independent; one
// failure never blocks the others.
func (s *Service) tick() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.FetchLogsFor(context.Background(), id); err != nil {
				s.logger.Warn().
					Err(err).
					Str("session_id", id).
					Msg("Polled fetch failed")
			}
		}(id)
	}
	wg.Wait()
}

// persistIDs writes the current id set as a JSON array.
func (s *Service) persistIDs(ctx context.Context) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return s.storage.Set(ctx, monitoredSessionsKey, string(raw))
}

func (s *Service) publishUpdate(ctx context.Context, sessionID string) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventMonitorUpdate,
		Payload: sessionID,
	})
}
