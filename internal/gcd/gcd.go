// Package gcd computes greatest common divisors.
//
// The hive uses List once per activation to derive the shared tick from the
// registered group periods.
package gcd

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

// ErrInvalidArgument is returned for inputs that have no defined result.
var ErrInvalidArgument = errors.New("invalid argument")

// Of returns the greatest common divisor of a and b using Euclid's algorithm.
// Of(0, b) == b.
func Of[T constraints.Integer](a, b T) T {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for a != 0 {
		a, b = b%a, a
	}
	return b
}

// List folds Of across values from left to right.
//
// The fold stops as soon as the running result is 1. A single value is
// returned unchanged.
func List[T constraints.Integer](values []T) (T, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: gcd of empty list", ErrInvalidArgument)
	}
	result := values[0]
	for _, v := range values[1:] {
		result = Of(v, result)
		if result == 1 {
			break
		}
	}
	return result, nil
}
