package service

import (
	"context"

	"github.com/mezonai/rollupstate/interfaces"
)

type HealthServiceImpl struct {
	state     interfaces.StateReader
	restoreID string
}

// NewHealthService reports on state; restoreID names the restore run that produced it
func NewHealthService(state interfaces.StateReader, restoreID string) *HealthServiceImpl {
	return &HealthServiceImpl{state: state, restoreID: restoreID}
}

func (s *HealthServiceImpl) Check(ctx context.Context) (*interfaces.HealthStatus, error) {
	if s.state == nil {
		return &interfaces.HealthStatus{Status: "restoring"}, nil
	}
	return &interfaces.HealthStatus{
		Status:    "ok",
		Block:     uint32(s.state.LastBlock()),
		RootHash:  s.state.RootHash().String(),
		Accounts:  s.state.AccountCount(),
		RestoreID: s.restoreID,
	}, nil
}
