package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

type UpdateKind uint8

const (
	UpdateCreate UpdateKind = iota + 1
	UpdateDelete
	UpdateBalance
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateCreate:
		return "create"
	case UpdateDelete:
		return "delete"
	case UpdateBalance:
		return "balance"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// AccountUpdate is one state change recorded in a block. Balance updates
// carry both the old and the new value so a block can be inspected or
// reverted without the state it was applied to.
type AccountUpdate struct {
	Kind       UpdateKind   `json:"kind"`
	AccountID  AccountID    `json:"account_id"`
	Address    Address      `json:"address"`
	Token      TokenID      `json:"token,omitempty"`
	OldBalance *uint256.Int `json:"old_balance,omitempty"`
	NewBalance *uint256.Int `json:"new_balance,omitempty"`
	OldNonce   Nonce        `json:"old_nonce,omitempty"`
	NewNonce   Nonce        `json:"new_nonce,omitempty"`
}

func NewCreateUpdate(id AccountID, addr Address) AccountUpdate {
	return AccountUpdate{Kind: UpdateCreate, AccountID: id, Address: addr}
}

func NewDeleteUpdate(id AccountID, addr Address, nonce Nonce) AccountUpdate {
	return AccountUpdate{Kind: UpdateDelete, AccountID: id, Address: addr, OldNonce: nonce}
}

func NewBalanceUpdate(id AccountID, token TokenID, oldBalance, newBalance *uint256.Int, oldNonce, newNonce Nonce) AccountUpdate {
	return AccountUpdate{
		Kind:       UpdateBalance,
		AccountID:  id,
		Token:      token,
		OldBalance: copyOrZero(oldBalance),
		NewBalance: copyOrZero(newBalance),
		OldNonce:   oldNonce,
		NewNonce:   newNonce,
	}
}

// Validate checks that the fields required by the update kind are present.
func (u *AccountUpdate) Validate() error {
	switch u.Kind {
	case UpdateCreate, UpdateDelete:
		return nil
	case UpdateBalance:
		if u.NewBalance == nil {
			return fmt.Errorf("balance update for account %d token %d has no new balance", u.AccountID, u.Token)
		}
		return nil
	default:
		return fmt.Errorf("unknown update kind %d", uint8(u.Kind))
	}
}

func (u AccountUpdate) String() string {
	switch u.Kind {
	case UpdateBalance:
		return fmt.Sprintf("balance{account=%d token=%d %s->%s nonce=%d->%d}",
			u.AccountID, u.Token, decOrNil(u.OldBalance), decOrNil(u.NewBalance), u.OldNonce, u.NewNonce)
	default:
		return fmt.Sprintf("%s{account=%d address=%s}", u.Kind, u.AccountID, u.Address)
	}
}

func copyOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(v)
}

func decOrNil(v *uint256.Int) string {
	if v == nil {
		return "nil"
	}
	return v.Dec()
}
