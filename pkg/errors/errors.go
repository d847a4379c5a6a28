package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind represents the different failure scopes of a run
type Kind string

const (
	// KindInvalidRatio is a malformed ratio expression; fatal at startup
	KindInvalidRatio Kind = "invalid_ratio"
	// KindFetchFailed is a page request or decode failure; ends pagination
	KindFetchFailed Kind = "fetch_failed"
	// KindDownloadFailed is a per-image transfer failure; skips one post
	KindDownloadFailed Kind = "download_failed"
	// KindNoMorePosts signals normal exhaustion of the result set
	KindNoMorePosts Kind = "no_more_posts"
	// KindInvalidConfig is any other startup validation problem
	KindInvalidConfig Kind = "invalid_config"
)

// Error represents a pipeline error with kind information
type Error struct {
	Kind    Kind
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Code)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNoMorePosts) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// ErrNoMorePosts is the sentinel for normal exhaustion
var ErrNoMorePosts = &Error{Kind: KindNoMorePosts}

// InvalidRatio creates a ratio parse error
func InvalidRatio(expr string, cause error) *Error {
	return &Error{
		Kind:    KindInvalidRatio,
		Message: fmt.Sprintf("invalid ratio %q", expr),
		Err:     cause,
	}
}

// FetchFailed creates a page fetch error
func FetchFailed(url string, code int, cause error) *Error {
	return &Error{
		Kind:    KindFetchFailed,
		Message: fmt.Sprintf("failed to fetch %s", url),
		Code:    code,
		Err:     cause,
	}
}

// DownloadFailed creates a per-image download error
func DownloadFailed(url string, code int, cause error) *Error {
	return &Error{
		Kind:    KindDownloadFailed,
		Message: fmt.Sprintf("failed to download %s", url),
		Code:    code,
		Err:     cause,
	}
}

// InvalidConfig creates a configuration error
func InvalidConfig(msg string) *Error {
	return &Error{Kind: KindInvalidConfig, Message: msg}
}

// KindOf returns the kind of the first *Error in the chain, or "" when none
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok && e.Kind == kind {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if IsKind(inner, kind) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return IsKind(u.Unwrap(), kind)
	}
	return false
}

// IsFatal checks if an error kind should abort the whole run
func IsFatal(kind Kind) bool {
	switch kind {
	case KindInvalidRatio, KindInvalidConfig:
		return true
	case KindFetchFailed, KindDownloadFailed, KindNoMorePosts:
		return false
	default:
		return false
	}
}

// IsSuccessStatus checks if an HTTP status code counts as success
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
