package batch

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Pimboto/automation-bot-ui/internal/models"
)

// ExportYAML serializes a batch configuration for sharing between panels.
// Runtime fields (status, timestamps) are excluded by the model's yaml tags.
func ExportYAML(cfg *models.BatchConfig) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch config: %w", err)
	}
	return data, nil
}

// ImportYAML parses a shared batch configuration. The id is cleared so the
// importing panel assigns its own; validation happens in CreateConfig.
func ImportYAML(data []byte) (*models.BatchConfig, error) {
	var cfg models.BatchConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse batch config: %w", err)
	}
	cfg.ID = ""
	return &cfg, nil
}
