package mapper

import (
	"encoding/json"
	"fmt"
)

// APIError is an application error reported by the mapping service.
type APIError struct {
	Operation  string
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed (status %d)", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s failed (status %d): %s", e.Operation, e.StatusCode, e.Message)
}

// ServerMessage returns the service's own explanation, which may be empty.
func (e *APIError) ServerMessage() string {
	return e.Message
}

type errorBody struct {
	Error string `json:"error"`
}

// serverMessage extracts the error field from a JSON body, if there is one.
func serverMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	return eb.Error
}
