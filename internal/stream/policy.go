package stream

import (
	"strings"

	"github.com/pkg/errors"

	"gwi.com/chat-sync/internal/result"
)

// Policy decides what a subscriber sees when a stream fails.
type Policy int

const (
	// FailOpenPolicy replaces the terminal error with an empty snapshot.
	FailOpenPolicy Policy = iota
	// FailClosedPolicy passes the terminal error through.
	FailClosedPolicy
)

func (p Policy) String() string {
	if p == FailClosedPolicy {
		return "fail-closed"
	}
	return "fail-open"
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-open", "open":
		return FailOpenPolicy, nil
	case "fail-closed", "closed":
		return FailClosedPolicy, nil
	default:
		return FailOpenPolicy, errors.Errorf("unknown stream error policy %q", s)
	}
}

// FailOpen turns the terminal error of src into Success(fallback). onErr,
// if set, is called with the swallowed failure first.
func FailOpen[T any](src *Stream[T], fallback T, onErr func(result.Result[T])) *Stream[T] {
	return relay(src, func(ev result.Result[T]) result.Result[T] {
		if !ev.IsError() {
			return ev
		}
		if onErr != nil {
			onErr(ev)
		}
		return result.Success(fallback)
	})
}

// Apply wraps src according to p.
func Apply[T any](src *Stream[T], p Policy, fallback T, onErr func(result.Result[T])) *Stream[T] {
	if p == FailClosedPolicy {
		return src
	}
	return FailOpen(src, fallback, onErr)
}
