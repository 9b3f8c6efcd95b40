package board

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFEN is matched by every error ParseFEN returns.
	ErrInvalidFEN = errors.New("invalid FEN")
	// ErrMalformedMove means the move text is not long algebraic notation.
	ErrMalformedMove = errors.New("malformed move")
	// ErrIllegalMove means the move text is well formed but not legal here.
	ErrIllegalMove = errors.New("illegal move")
)

// FENError reports which FEN field was rejected and why.
type FENError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FENError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid FEN %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid FEN %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *FENError) Is(target error) bool {
	return target == ErrInvalidFEN
}

func fenError(field, value, format string, args ...any) error {
	return &FENError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}

// MoveError carries the offending move text. Err is ErrMalformedMove or
// ErrIllegalMove.
type MoveError struct {
	Move string
	Err  error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Move)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}
