package models

// Device is a connected mobile device as reported by the backend.
type Device struct {
	UDID      string `json:"udid"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	Available bool   `json:"available"`
	InUseBy   string `json:"in_use_by,omitempty"`
}
