package interfaces

import (
	"strconv"

	"github.com/mezonai/rollupstate/types"
)

// AccountView is the wire form of an account: balances as decimal strings keyed by token id
type AccountView struct {
	ID       uint32            `json:"id"`
	Address  string            `json:"address"`
	Nonce    uint32            `json:"nonce"`
	Balances map[string]string `json:"balances"`
}

func NewAccountView(id types.AccountID, acc *types.Account) *AccountView {
	view := &AccountView{
		ID:       uint32(id),
		Address:  acc.Address.String(),
		Nonce:    uint32(acc.Nonce),
		Balances: make(map[string]string, len(acc.Balances)),
	}
	for _, token := range acc.Tokens() {
		view.Balances[strconv.FormatUint(uint64(token), 10)] = acc.Balance(token).Dec()
	}
	return view
}

type RootView struct {
	Block    uint32 `json:"block"`
	RootHash string `json:"root_hash"`
}

type TipView struct {
	Block    uint32 `json:"block"`
	RootHash string `json:"root_hash"`
	Accounts int    `json:"accounts"`
}
