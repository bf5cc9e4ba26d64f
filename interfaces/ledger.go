package interfaces

import (
	"github.com/mezonai/rollupstate/types"
)

// StateReader is the read-only view of the account state served to API clients
type StateReader interface {
	// LastBlock returns the last sealed block
	LastBlock() types.BlockNumber
	// RootHash returns the root recorded for the last sealed block
	RootHash() types.RootHash
	// Account returns a copy of the account stored at id
	Account(id types.AccountID) (*types.Account, bool)
	// AccountByAddress looks an account up by its address
	AccountByAddress(addr types.Address) (types.AccountID, *types.Account, bool)
	// AccountCount returns the number of live accounts
	AccountCount() int
}
