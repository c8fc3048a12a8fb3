package hive

import (
	"errors"

	"tickmux/internal/gcd"
)

var (
	// ErrInvalidArgument reports an argument that can never be valid,
	// such as a zero period or a nil group.
	ErrInvalidArgument = gcd.ErrInvalidArgument

	// ErrInvalidState reports a call made in the wrong hive state.
	ErrInvalidState = errors.New("invalid state")
)
