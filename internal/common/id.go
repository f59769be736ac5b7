package common

import (
	"github.com/google/uuid"
)

// NewBatchID generates a unique batch configuration ID with the "batch_" prefix
// Format: batch_<uuid>
func NewBatchID() string {
	return "batch_" + uuid.New().String()
}

// NewExecutionID generates a unique batch execution ID with the "exec_" prefix
// Format: exec_<uuid>
func NewExecutionID() string {
	return "exec_" + uuid.New().String()
}
