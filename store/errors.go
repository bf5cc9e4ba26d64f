package store

import "github.com/pkg/errors"

var (
	// ErrNotFound marks a missing block, root or checkpoint record
	ErrNotFound = errors.New("record not found")

	// ErrNonContiguous is returned when a committed block does not extend the tip by one
	ErrNonContiguous = errors.New("block does not extend the chain tip")

	// ErrCorrupt marks a record that exists but cannot be decoded
	ErrCorrupt = errors.New("corrupt record")

	ErrBeyondTip = errors.New("block is beyond the chain tip")
)
