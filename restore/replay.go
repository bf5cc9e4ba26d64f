package restore

import (
	"github.com/mezonai/rollupstate/tree"
	"github.com/mezonai/rollupstate/types"
)

// ApplyBlock applies the updates of block n to t in the order they were
// recorded and returns the resulting root. Updates to the same account and
// token fold left to right.
//
// On error t holds a partially applied block and must be discarded.
func ApplyBlock(t *tree.AccountTree, n types.BlockNumber, updates []types.AccountUpdate) (types.RootHash, error) {
	if err := applyUpdates(t, n, updates); err != nil {
		return types.RootHash{}, err
	}
	return t.RootHash(), nil
}

// applyUpdates leaves hashing to the caller so a run of blocks is rehashed once.
func applyUpdates(t *tree.AccountTree, n types.BlockNumber, updates []types.AccountUpdate) error {
	for i := range updates {
		if err := t.ApplyUpdate(&updates[i]); err != nil {
			return &MalformedUpdateError{Block: n, Index: i, Err: err}
		}
	}
	return nil
}
