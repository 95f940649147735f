package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// Kind classifies manager failures.
type Kind int

const (
	KindPlatform Kind = iota
	KindNotInitialized
	KindNotReady
	KindAlreadyInitializing
	KindChannelNotFound
	KindWrongChannelType
	KindPermissionDenied
	KindMalformedID
	KindConnectionFailed
	KindNotConnectedToVoice
	KindRateLimited
	KindInvalidConfig
	KindStatusCheckFailed
)

var kindNames = map[Kind]string{
	KindPlatform:            "platform error",
	KindNotInitialized:      "bot not initialized",
	KindNotReady:            "bot not ready",
	KindAlreadyInitializing: "bot is already initializing",
	KindChannelNotFound:     "channel not found",
	KindWrongChannelType:    "channel is not a voice channel",
	KindPermissionDenied:    "permission denied",
	KindMalformedID:         "malformed id",
	KindConnectionFailed:    "voice connection failed",
	KindNotConnectedToVoice: "bot is not connected to a voice channel",
	KindRateLimited:         "rate limited",
	KindInvalidConfig:       "invalid configuration",
	KindStatusCheckFailed:   "status check failed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every Manager operation that fails.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work
// with errors.Is regardless of Op and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrPlatform            = &Error{Kind: KindPlatform}
	ErrNotInitialized      = &Error{Kind: KindNotInitialized}
	ErrNotReady            = &Error{Kind: KindNotReady}
	ErrAlreadyInitializing = &Error{Kind: KindAlreadyInitializing}
	ErrChannelNotFound     = &Error{Kind: KindChannelNotFound}
	ErrWrongChannelType    = &Error{Kind: KindWrongChannelType}
	ErrPermissionDenied    = &Error{Kind: KindPermissionDenied}
	ErrMalformedID         = &Error{Kind: KindMalformedID}
	ErrConnectionFailed    = &Error{Kind: KindConnectionFailed}
	ErrNotConnectedToVoice = &Error{Kind: KindNotConnectedToVoice}
	ErrRateLimited         = &Error{Kind: KindRateLimited}
	ErrInvalidConfig       = &Error{Kind: KindInvalidConfig}
	ErrStatusCheckFailed   = &Error{Kind: KindStatusCheckFailed}
)

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or KindPlatform when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPlatform
}

// httpStatus extracts the status code of a Discord REST failure.
func httpStatus(err error) (int, bool) {
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return http.StatusTooManyRequests, true
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return rest.Response.StatusCode, true
	}
	return 0, false
}

func unknownChannel(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return false
	}
	if rest.Message != nil && rest.Message.Code == discordgo.ErrCodeUnknownChannel {
		return true
	}
	return rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
}

// classifyProfileError maps a failed profile update to RateLimited,
// InvalidConfig (other 4xx) or Platform.
func classifyProfileError(op string, err error) *Error {
	code, ok := httpStatus(err)
	switch {
	case ok && code == http.StatusTooManyRequests:
		return newError(KindRateLimited, op, err)
	case ok && code >= 400 && code < 500:
		return newError(KindInvalidConfig, op, err)
	default:
		return newError(KindPlatform, op, err)
	}
}
