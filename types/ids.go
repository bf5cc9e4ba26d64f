package types

import "strconv"

// AccountID is the position of an account leaf in the account tree.
// IDs are issued monotonically by the ledger and never reused.
type AccountID uint32

// TokenID identifies an asset class. Token 0 is the native token.
type TokenID uint32

// BlockNumber is the height of a committed block. Block 0 is the empty
// genesis state and never carries updates.
type BlockNumber uint32

type Nonce uint32

func (id AccountID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func (t TokenID) String() string {
	return strconv.FormatUint(uint64(t), 10)
}

func (n BlockNumber) String() string {
	return strconv.FormatUint(uint64(n), 10)
}
