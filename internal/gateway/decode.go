package gateway

import (
	"encoding/json"
	"fmt"
)

// The backend has shipped several envelope shapes over its lifetime: a bare
// resource, `{"data": ...}`, or a resource-named field like
// `{"sessions": [...]}`. These helpers resolve whichever arrives into the
// canonical typed result so callers never see the legacy shapes.

// decodeList unmarshals a JSON array from a bare array, a "data" envelope,
// or an envelope keyed by the resource name.
func decodeList(body []byte, target interface{}, resourceField string) error {
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if len(raw) > 0 && raw[0] == '[' {
		return json.Unmarshal(raw, target)
	}

	payload, err := envelopeField(raw, resourceField)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, target)
}

// decodeObject unmarshals a JSON object either bare or wrapped in a "data"
// or resource-named envelope.
func decodeObject(body []byte, target interface{}, resourceField string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if payload, ok := fields["data"]; ok && isObject(payload) {
		return json.Unmarshal(payload, target)
	}
	if payload, ok := fields[resourceField]; ok && isObject(payload) {
		return json.Unmarshal(payload, target)
	}

	// Bare object
	return json.Unmarshal(body, target)
}

func envelopeField(raw json.RawMessage, resourceField string) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	if payload, ok := fields["data"]; ok && !isNull(payload) {
		return payload, nil
	}
	if payload, ok := fields[resourceField]; ok && !isNull(payload) {
		return payload, nil
	}

	// Neither envelope field present: treat as an empty result rather than
	// failing, matching the permissive behavior the UI has always relied on.
	return json.RawMessage("[]"), nil
}

func isObject(raw json.RawMessage) bool {
	return len(raw) > 0 && raw[0] == '{'
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
