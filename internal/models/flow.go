package models

// FlowConfig describes a backend-defined automation flow: its checkpoint
// sequence, default parameters and whether it supports infinite repeat.
type FlowConfig struct {
	Name             string                 `json:"name"`
	Checkpoints      []string               `json:"checkpoints"`
	DefaultParams    map[string]interface{} `json:"default_params,omitempty"`
	SupportsInfinite bool                   `json:"supports_infinite"`
}

// StartRequest is the payload for starting an automation on one device.
type StartRequest struct {
	DeviceUDID      string                 `json:"device_udid" validate:"required"`
	Flow            string                 `json:"flow" validate:"required"`
	Checkpoint      string                 `json:"checkpoint,omitempty"`
	GenerateProfile bool                   `json:"generate_profile"`
	MaxRuns         int                    `json:"max_runs" validate:"min=0"`
	Infinite        bool                   `json:"infinite"`
	Params          map[string]interface{} `json:"params,omitempty"`
}

// MergeParams returns a copy of the request with template params merged
// underneath its own params. Explicit request params win.
func (r StartRequest) MergeParams(template map[string]interface{}) StartRequest {
	if len(template) == 0 {
		return r
	}
	merged := make(map[string]interface{}, len(template)+len(r.Params))
	for k, v := range template {
		merged[k] = v
	}
	for k, v := range r.Params {
		merged[k] = v
	}
	r.Params = merged
	return r
}
