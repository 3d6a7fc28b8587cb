package chatapi

import (
	"encoding/json"
	"fmt"
)

// APIError is returned for every non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func newAPIError(status int, payload map[string]json.RawMessage) *APIError {
	apiErr := &APIError{Status: status}
	raw, ok := payload["message"]
	if !ok {
		return apiErr
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		apiErr.Message = text
		return apiErr
	}
	if string(raw) != "null" {
		apiErr.Message = string(raw)
	}
	return apiErr
}
