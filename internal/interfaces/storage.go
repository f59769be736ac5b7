package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/Pimboto/automation-bot-ui/internal/models"
)

// ErrKeyNotFound is returned when a key does not exist in the KV store.
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair is a stored key/value entry.
type KeyValuePair struct {
	Key       string    `json:"key" badgerhold:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KeyValueStorage is a simple string-keyed durable store with no
// transactional guarantees. The monitor uses it to remember the set of
// session ids being watched across reloads.
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// BatchConfigStorage persists saved batch configurations.
type BatchConfigStorage interface {
	SaveConfig(ctx context.Context, cfg *models.BatchConfig) error
	GetConfig(ctx context.Context, id string) (*models.BatchConfig, error)
	ListConfigs(ctx context.Context) ([]*models.BatchConfig, error)
	DeleteConfig(ctx context.Context, id string) error
}
