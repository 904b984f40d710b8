package domain

import (
	"errors"
	"fmt"
	"time"
)

// Stage names a step of a streamed resolution.
type Stage string

const (
	StageStarted   Stage = "started"
	StageCache     Stage = "cache"
	StageScrape    Stage = "scrape"
	StageAnalysis  Stage = "analysis"
	StageOpenWeb   Stage = "open_web"
	StageFinalize  Stage = "finalize"
	StageCompleted Stage = "completed"
)

// EventType is the SSE event name.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventResult    EventType = "result"
	EventError     EventType = "error"
	EventHeartbeat EventType = "heartbeat" // keep-alive, no payload
)

// Progress reports an advancing stage. Percent never decreases within a stream.
type Progress struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
	Percent int    `json:"percent"`
}

// ErrorPayload is the public body of an error event or response.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Event is one streamed message. Exactly one of the payload fields is set.
type Event struct {
	Type     EventType
	Progress *Progress
	Result   *SearchResult
	Error    *ErrorPayload
}

// Terminal reports whether no events may follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventResult || e.Type == EventError
}

// Public error codes.
const (
	CodeInvalidCriteria = "invalid_criteria"
	CodeRateLimited     = "rate_limited"
	CodeTimeout         = "timeout"
	CodeUnavailable     = "unavailable"
	CodeNoResults       = "no_results"
	CodeInternal        = "internal"
)

// PublicError maps err to a payload safe to show to clients. Provider and
// storage details never leak; validation reasons do.
func PublicError(err error) ErrorPayload {
	var rl *RateLimitError
	switch {
	case errors.As(err, &rl):
		return ErrorPayload{
			Code:      CodeRateLimited,
			Message:   fmt.Sprintf("too many requests, retry in %s", rl.RetryAfter.Round(time.Second)),
			Retryable: true,
		}
	case errors.Is(err, ErrInvalidCriteria):
		return ErrorPayload{Code: CodeInvalidCriteria, Message: err.Error()}
	case errors.Is(err, ErrResolutionTimeout):
		return ErrorPayload{Code: CodeTimeout, Message: ErrResolutionTimeout.Error(), Retryable: true}
	case errors.Is(err, ErrUpstreamUnavailable):
		return ErrorPayload{Code: CodeUnavailable, Message: ErrUpstreamUnavailable.Error(), Retryable: true}
	case errors.Is(err, ErrNoResults):
		return ErrorPayload{Code: CodeNoResults, Message: "no lodging found for this search"}
	default:
		return ErrorPayload{Code: CodeInternal, Message: "internal error"}
	}
}
