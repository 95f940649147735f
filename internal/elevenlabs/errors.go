package elevenlabs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	el "github.com/haguro/elevenlabs-go"
)

var (
	ErrUnauthorized   = errors.New("invalid ElevenLabs API key")
	ErrForbidden      = errors.New("ElevenLabs API access forbidden - check API key permissions")
	ErrNotFound       = errors.New("ElevenLabs resource not found")
	ErrInvalidRequest = errors.New("invalid voice description or parameters")
	ErrRateLimited    = errors.New("ElevenLabs API rate limit exceeded - please try again later")
	ErrUpstream       = errors.New("ElevenLabs API error")
	ErrUnavailable    = errors.New("ElevenLabs API is temporarily unavailable")
	ErrTimeout        = errors.New("ElevenLabs API request timed out")
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("elevenlabs: status %d", e.Status)
	}
	return fmt.Sprintf("elevenlabs: status %d: %s", e.Status, e.Message)
}

// StatusCode lets the throttle package react to overload answers.
func (e *APIError) StatusCode() int { return e.Status }

// Is maps the status code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	return target == sentinelFor(e.Status)
}

func sentinelFor(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrInvalidRequest
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrUpstream
	}
}

// transportError classifies a failure that produced no HTTP answer.
func transportError(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
}

// sdkStatusPrefix starts the error text the SDK returns for statuses it has
// no typed error for.
const sdkStatusPrefix = `unexpected HTTP status "`

// authStatuses are the detail.status values ElevenLabs sends with a 401.
var authStatuses = map[string]bool{
	"invalid_api_key":     true,
	"missing_api_key":     true,
	"needs_authorization": true,
	"quota_exceeded":      true,
	"missing_permissions": true,
}

// classifySDKError turns an elevenlabs-go failure into an *APIError when
// the status can be recovered, so the sentinels and the limiter see it.
// The SDK answers 400 and 401 with *el.APIError, 422 with
// *el.ValidationError and anything else with a formatted status string.
func classifySDKError(err error) error {
	var apiErr *el.APIError
	if errors.As(err, &apiErr) {
		status := http.StatusBadRequest
		if authStatuses[apiErr.Detail.Status] {
			status = http.StatusUnauthorized
		}
		return &APIError{Status: status, Message: apiErr.Detail.Message}
	}
	var valErr *el.ValidationError
	if errors.As(err, &valErr) {
		return &APIError{Status: http.StatusUnprocessableEntity, Message: valErr.Error()}
	}
	if status, ok := sdkStatus(err.Error()); ok {
		return &APIError{Status: status, Message: http.StatusText(status)}
	}
	return err
}

func sdkStatus(msg string) (int, bool) {
	rest, ok := strings.CutPrefix(msg, sdkStatusPrefix)
	if !ok {
		return 0, false
	}
	code, _, _ := strings.Cut(rest, " ")
	status, err := strconv.Atoi(code)
	if err != nil || status < 100 || status > 599 {
		return 0, false
	}
	return status, true
}

// synthesisError wraps a classified synthesis failure for callers.
func synthesisError(err error) error {
	const op = "text to speech"
	var apiErr *APIError
	var urlErr *url.Error
	switch {
	case errors.As(err, &apiErr):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &urlErr):
		return transportError(op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}
}
