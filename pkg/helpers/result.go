package helpers

import "errors"

// Result carries either a value or the error that prevented computing it,
// for work fanned out to goroutines whose outcomes are collected later.
type Result[T any] struct {
	value T
	err   error
}

func NewResult[T any](value T, err error) Result[T] {
	return Result[T]{value: value, err: err}
}

func NewValueResult[T any](value T) Result[T] {
	return Result[T]{value: value}
}

func NewErrorResult[T any](err error) Result[T] {
	return Result[T]{err: err}
}

func (r Result[T]) Value() (T, error) {
	return r.value, r.err
}

func (r Result[T]) Error() error {
	return r.err
}

func (r Result[T]) Ok() bool {
	return r.err == nil
}

// ValueOr returns v if the result is an error.
func (r Result[T]) ValueOr(v T) T {
	if r.err != nil {
		return v
	}
	return r.value
}

// Partition splits results into the successful values and the joined
// errors, both in input order. The error is nil when every result is ok.
func Partition[T any](results []Result[T]) ([]T, error) {
	var values []T
	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		values = append(values, r.value)
	}
	return values, errors.Join(errs...)
}
