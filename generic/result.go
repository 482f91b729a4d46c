package generic

import "fmt"

type Result[T any] struct {
	Value T
	Error error
}

// NewResult wraps a (T, error) return value from another function call as a Result[T].
func NewResult[T any](value T, err error) Result[T] {
	return Result[T]{Value: value, Error: err}
}

// NewResult_ is like NewResult, but for return values that are just an error.
func NewResult_(err error) Result[Void] {
	return NewResult(NewVoid(), err)
}

// Ok wraps a value as a Result[T] containing that value.
func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

// Err wraps an error as a Result[T] containing that error.
func Err[T any](err error) Result[T] {
	return Result[T]{Error: err}
}

func (r *Result[T]) IsErr() bool {
	return r.Error != nil
}

func (r *Result[T]) IsOk() bool {
	return r.Error == nil
}

// Parts unpacks the Result[T] back into the (T, error) convention.
func (r Result[T]) Parts() (T, error) {
	return r.Value, r.Error
}

// Expect returns the contained value if IsOk(), or panics with the supplied message and the contained error.
func (r Result[T]) Expect(msg string) T {
	if r.IsErr() {
		panic(fmt.Errorf("%s: %w", msg, r.Error))
	}
	return r.Value
}

// Unwrap returns the contained value, or panics if IsErr.
func (r Result[T]) Unwrap() T {
	return r.Expect("tried to Unwrap() an Err")
}

// Unwrap is a shortcut for NewResult(...).Unwrap().
func Unwrap[T any](value T, err error) T {
	return NewResult(value, err).Unwrap()
}

// Unwrap_ is like Unwrap, but for return values that are just an error.
func Unwrap_(err error) {
	NewResult_(err).Unwrap()
}
