package interfaces

import (
	"context"
)

type AccountService interface {
	GetAccount(ctx context.Context, id uint32) (*AccountView, error)
	GetAccountByAddress(ctx context.Context, addr string) (*AccountView, error)
}

type StateService interface {
	AccountService
	GetRoot(ctx context.Context) (*RootView, error)
	GetTip(ctx context.Context) (*TipView, error)
}
