package elevenlabs

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorKind classifies an upstream failure so callers can branch on it
// without string matching.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not_found"
	KindRateLimited  ErrorKind = "rate_limited"
	KindRemote       ErrorKind = "remote_error"
)

// APIError is a classified non-2xx response from the ElevenLabs API.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("elevenlabs api error %d (%s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("elevenlabs api error %d (%s)", e.Status, e.Kind)
}

// TransportError means the request never produced an HTTP response:
// network down, DNS failure, timeout. It points at infrastructure, not
// data, so it is kept apart from APIError.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "elevenlabs unreachable: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func classifyStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindRemote
	}
}

// parseAPIMessage pulls a human-readable message out of an error body.
// ElevenLabs returns either {"detail": "..."} or
// {"detail": {"status": "...", "message": "..."}}; anything unparseable
// comes back as the raw body.
func parseAPIMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var withObj struct {
		Detail struct {
			Message string `json:"message"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(body, &withObj); err == nil && withObj.Detail.Message != "" {
		return withObj.Detail.Message
	}
	var withStr struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &withStr); err == nil && withStr.Detail != "" {
		return withStr.Detail
	}
	return string(body)
}
