package types

import (
	"sort"

	"github.com/holiman/uint256"
)

// Account is the state held in one leaf of the account tree.
// A token with a zero balance is never stored in Balances.
type Account struct {
	Address  Address                  `json:"address"`
	Nonce    Nonce                    `json:"nonce"`
	Balances map[TokenID]*uint256.Int `json:"balances"`
}

func NewAccount(addr Address) *Account {
	return &Account{
		Address:  addr,
		Balances: make(map[TokenID]*uint256.Int),
	}
}

// Balance returns a copy of the balance held for token (zero if none)
func (a *Account) Balance(token TokenID) *uint256.Int {
	if b, ok := a.Balances[token]; ok && b != nil {
		return new(uint256.Int).Set(b)
	}
	return uint256.NewInt(0)
}

// SetBalance stores a copy of v; a zero value removes the token entry.
func (a *Account) SetBalance(token TokenID, v *uint256.Int) {
	if a.Balances == nil {
		a.Balances = make(map[TokenID]*uint256.Int)
	}
	if v == nil || v.IsZero() {
		delete(a.Balances, token)
		return
	}
	a.Balances[token] = new(uint256.Int).Set(v)
}

// Tokens returns the tokens with a non-zero balance in ascending order
func (a *Account) Tokens() []TokenID {
	tokens := make([]TokenID, 0, len(a.Balances))
	for token, b := range a.Balances {
		if b == nil || b.IsZero() {
			continue
		}
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })
	return tokens
}

func (a *Account) Clone() *Account {
	cp := &Account{
		Address:  a.Address,
		Nonce:    a.Nonce,
		Balances: make(map[TokenID]*uint256.Int, len(a.Balances)),
	}
	for token, b := range a.Balances {
		if b == nil {
			continue
		}
		cp.Balances[token] = new(uint256.Int).Set(b)
	}
	return cp
}
