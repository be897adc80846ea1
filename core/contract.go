package core

import (
	"errors"
)

// Common errors shared by account stores and the runtime
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrProgramNotFound    = errors.New("program not found")
	ErrDataSizeMismatch   = errors.New("account data size mismatch")
	ErrAccountNotWritable = errors.New("account not writable")
	ErrStaleAccount       = errors.New("account changed since it was loaded")
)
