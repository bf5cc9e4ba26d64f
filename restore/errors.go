package restore

import (
	"context"
	"errors"
	"fmt"

	"github.com/mezonai/rollupstate/types"
)

// ErrNoDivergenceFound means the tip root did not match but a block-by-block
// replay of the same range matched everywhere. The replay is not deterministic.
var ErrNoDivergenceFound = errors.New("tip root mismatched but no divergent block was found")

// ErrCheckpointAhead is wrapped in a StoreError when the retained checkpoint is above the chain tip
var ErrCheckpointAhead = errors.New("checkpoint is beyond the chain tip")

// StoreError wraps a failed history store read.
type StoreError struct {
	Op    string
	Block types.BlockNumber
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("history store %s (block %d): %v", e.Op, e.Block, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// DivergenceError reports the first block whose recorded root differs from
// the root computed by replaying history up to it.
type DivergenceError struct {
	Block    types.BlockNumber
	Expected types.RootHash
	Computed types.RootHash
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("root hashes diverged at block %d", e.Block)
}

// Detail includes both roots, for logs and operator output
func (e *DivergenceError) Detail() string {
	return fmt.Sprintf("root hashes diverged at block %d: recorded %s, computed %s", e.Block, e.Expected, e.Computed)
}

// MalformedUpdateError is an update that cannot be applied to the state it
// was recorded against, e.g. a balance change of an unknown account.
type MalformedUpdateError struct {
	Block types.BlockNumber
	Index int
	Err   error
}

func (e *MalformedUpdateError) Error() string {
	return fmt.Sprintf("malformed update %d in block %d: %v", e.Index, e.Block, e.Err)
}

func (e *MalformedUpdateError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err leaves the node without a trustworthy state.
// Cancellation is not fatal: nothing was wrong with the history.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var (
		storeErr     *StoreError
		divergence   *DivergenceError
		malformedErr *MalformedUpdateError
	)
	switch {
	case errors.As(err, &storeErr), errors.As(err, &divergence), errors.As(err, &malformedErr):
		return true
	case errors.Is(err, ErrNoDivergenceFound):
		return true
	}
	return false
}
