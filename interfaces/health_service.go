package interfaces

import (
	"context"
)

type HealthStatus struct {
	Status    string `json:"status"`
	Block     uint32 `json:"block"`
	RootHash  string `json:"root_hash"`
	Accounts  int    `json:"accounts"`
	RestoreID string `json:"restore_id,omitempty"`
}

type HealthService interface {
	Check(ctx context.Context) (*HealthStatus, error)
}
