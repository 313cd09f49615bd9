package transcribe

import (
	"fmt"
	"net/http"
)

// TranscriptionError is returned when the service answers with a non-2xx
// status. Detail holds the error payload re-indented as JSON when the body
// parses, or the raw body text otherwise. It is never retried.
type TranscriptionError struct {
	StatusCode int
	Status     string
	Detail     string
	Payload    any // parsed JSON body, nil when the body was not JSON
}

func (e *TranscriptionError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Detail == "" {
		return fmt.Sprintf("transcribe: API error: %s", status)
	}
	return fmt.Sprintf("transcribe: API error: %s\nAPI Response: %s", status, e.Detail)
}
