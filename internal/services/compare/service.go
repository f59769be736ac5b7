package compare

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Pimboto/automation-bot-ui/internal/interfaces"
	"github.com/Pimboto/automation-bot-ui/internal/models"
)

// Service fetches session records and logs through the gateway and feeds
// them into the pure comparison functions.
type Service struct {
	gateway interfaces.BackendGateway
	logger  arbor.ILogger
}

// NewService creates a new comparison service
func NewService(gateway interfaces.BackendGateway, logger arbor.ILogger) *Service {
	return &Service{
		gateway: gateway,
		logger:  logger,
	}
}

// logFetchLimit is generous: comparison metrics want the full history.
const logFetchLimit = 5000

// CompareSessions fetches each session plus its logs concurrently, builds
// metrics preserving the requested order, and ranks them.
func (s *Service) CompareSessions(ctx context.Context, sessionIDs []string) (*models.ComparisonResult, error) {
	if len(sessionIDs) < 2 {
		return nil, fmt.Errorf("comparison requires at least 2 sessions, got %d", len(sessionIDs))
	}
	if len(sessionIDs) > MaxSessions {
		return nil, fmt.Errorf("comparison supports at most %d sessions, got %d", MaxSessions, len(sessionIDs))
	}

	now := time.Now()
	metrics := make([]models.SessionMetrics, len(sessionIDs))
	errs := make([]error, len(sessionIDs))

	var wg sync.WaitGroup
	for i, id := range sessionIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()

			session, err := s.gateway.GetSession(ctx, id)
			if err != nil {
				errs[i] = fmt.Errorf("failed to fetch session %s: %w", id, err)
				return
			}
			logs, err := s.gateway.GetSessionLogs(ctx, id, logFetchLimit, models.LogLevelAll)
			if err != nil {
				errs[i] = fmt.Errorf("failed to fetch logs for session %s: %w", id, err)
				return
			}
			metrics[i] = BuildMetrics(session, logs, now)
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	result, err := Compare(metrics)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("session_count", len(sessionIDs)).
		Str("best_overall", result.BestOverall).
		Msg("Session comparison computed")

	return result, nil
}
