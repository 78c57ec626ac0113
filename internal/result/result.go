// Package result holds the outcome envelope returned by every store and
// network operation. A Result is exactly one of Success, Error or Loading.
package result

import (
	"github.com/pkg/errors"
)

// ErrLoading is returned by Get on a Loading result.
var ErrLoading = errors.New("result is still loading")

type Status int

const (
	StatusLoading Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "loading"
	}
}

// Unit is the payload of operations that succeed without a value.
type Unit struct{}

type Result[T any] struct {
	Status  Status
	Data    T
	Message string
	Code    int
	Kind    Kind
}

func Success[T any](data T) Result[T] {
	return Result[T]{Status: StatusSuccess, Data: data}
}

// Failure builds the Error variant. A code of 0 means no status applies.
func Failure[T any](message string, code int) Result[T] {
	return Result[T]{Status: StatusError, Message: message, Code: code}
}

func Loading[T any]() Result[T] {
	return Result[T]{Status: StatusLoading}
}

// FromError maps err to the Error variant, keeping the message, code and
// kind of a typed *Error found anywhere in the chain.
func FromError[T any](err error) Result[T] {
	if err == nil {
		var zero T
		return Success(zero)
	}
	var e *Error
	if errors.As(err, &e) {
		return Result[T]{Status: StatusError, Message: e.Message, Code: e.Code, Kind: e.Kind}
	}
	return Result[T]{Status: StatusError, Message: err.Error(), Kind: KindInternal}
}

// Of returns Success(data) when err is nil and FromError(err) otherwise.
func Of[T any](data T, err error) Result[T] {
	if err != nil {
		return FromError[T](err)
	}
	return Success(data)
}

func (r Result[T]) IsSuccess() bool { return r.Status == StatusSuccess }
func (r Result[T]) IsError() bool   { return r.Status == StatusError }
func (r Result[T]) IsLoading() bool { return r.Status == StatusLoading }

// Err returns the failure as a typed *Error, or nil for the other variants.
func (r Result[T]) Err() error {
	if r.Status != StatusError {
		return nil
	}
	return &Error{Kind: r.Kind, Message: r.Message, Code: r.Code}
}

func (r Result[T]) Get() (T, error) {
	switch r.Status {
	case StatusSuccess:
		return r.Data, nil
	case StatusError:
		var zero T
		return zero, r.Err()
	default:
		var zero T
		return zero, ErrLoading
	}
}

func (r Result[T]) GetOrZero() T {
	if r.Status == StatusSuccess {
		return r.Data
	}
	var zero T
	return zero
}

func (r Result[T]) ErrorMessage() string {
	if r.Status == StatusError {
		return r.Message
	}
	return ""
}

// Forward re-types an Error result. It panics on other variants.
func Forward[U, T any](r Result[T]) Result[U] {
	if r.Status != StatusError {
		panic("result: Forward called on non-error result")
	}
	return Result[U]{Status: StatusError, Message: r.Message, Code: r.Code, Kind: r.Kind}
}
