package service

import (
	"context"
	"fmt"

	"github.com/mezonai/rollupstate/errors"
	"github.com/mezonai/rollupstate/interfaces"
	"github.com/mezonai/rollupstate/logx"
	"github.com/mezonai/rollupstate/types"
)

type StateServiceImpl struct {
	state interfaces.StateReader
}

func NewStateService(state interfaces.StateReader) *StateServiceImpl {
	return &StateServiceImpl{state: state}
}

func (s *StateServiceImpl) GetAccount(ctx context.Context, id uint32) (*interfaces.AccountView, error) {
	if s.state == nil {
		return nil, errors.NewError(errors.ErrCodeStateUnavailable, errors.ErrMsgStateUnavailable)
	}
	acc, ok := s.state.Account(types.AccountID(id))
	if !ok {
		return nil, errors.NewError(errors.ErrCodeAccountNotFound, errors.ErrMsgAccountNotFound)
	}
	return interfaces.NewAccountView(types.AccountID(id), acc), nil
}

func (s *StateServiceImpl) GetAccountByAddress(ctx context.Context, addr string) (*interfaces.AccountView, error) {
	if s.state == nil {
		return nil, errors.NewError(errors.ErrCodeStateUnavailable, errors.ErrMsgStateUnavailable)
	}
	address, err := types.AddressFromString(addr)
	if err != nil {
		logx.Debug("STATE SERVICE", fmt.Sprintf("Rejected address %q: %v", addr, err))
		return nil, errors.NewError(errors.ErrCodeInvalidAddress, errors.ErrMsgInvalidAddress)
	}
	id, acc, ok := s.state.AccountByAddress(address)
	if !ok {
		return nil, errors.NewError(errors.ErrCodeAccountNotFound, errors.ErrMsgAccountNotFound)
	}
	return interfaces.NewAccountView(id, acc), nil
}

func (s *StateServiceImpl) GetRoot(ctx context.Context) (*interfaces.RootView, error) {
	if s.state == nil {
		return nil, errors.NewError(errors.ErrCodeStateUnavailable, errors.ErrMsgStateUnavailable)
	}
	return &interfaces.RootView{
		Block:    uint32(s.state.LastBlock()),
		RootHash: s.state.RootHash().String(),
	}, nil
}

func (s *StateServiceImpl) GetTip(ctx context.Context) (*interfaces.TipView, error) {
	if s.state == nil {
		return nil, errors.NewError(errors.ErrCodeStateUnavailable, errors.ErrMsgStateUnavailable)
	}
	return &interfaces.TipView{
		Block:    uint32(s.state.LastBlock()),
		RootHash: s.state.RootHash().String(),
		Accounts: s.state.AccountCount(),
	}, nil
}
