package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mezonai/rollupstate/jsonx"
	"github.com/mezonai/rollupstate/logx"
	"github.com/mezonai/rollupstate/tree"
	"github.com/mezonai/rollupstate/types"
)

const FileName = "checkpoint-latest.json"

var (
	ErrRootMismatch     = errors.New("checkpoint root does not match its accounts")
	ErrDuplicateAccount = errors.New("checkpoint lists an account twice")
)

type CheckpointMeta struct {
	Block    types.BlockNumber `json:"block"`
	RootHash types.RootHash    `json:"root_hash"`
	Depth    int               `json:"depth"`
	// NextID keeps ids of deleted accounts from being issued again
	NextID types.AccountID `json:"next_id"`
}

type CheckpointAccount struct {
	ID types.AccountID `json:"id"`
	types.Account
}

// Checkpoint is the serialized form of an account tree pinned to a block.
type Checkpoint struct {
	Meta     CheckpointMeta      `json:"meta"`
	Accounts []CheckpointAccount `json:"accounts"`
}

// NewCheckpoint captures the current contents of t as the state after block.
func NewCheckpoint(block types.BlockNumber, t *tree.AccountTree) *Checkpoint {
	ids := t.IDs()
	accounts := make([]CheckpointAccount, 0, len(ids))
	for _, id := range ids {
		acc, _ := t.Get(id)
		accounts = append(accounts, CheckpointAccount{ID: id, Account: *acc})
	}
	return &Checkpoint{
		Meta: CheckpointMeta{
			Block:    block,
			RootHash: t.RootHash(),
			Depth:    t.Depth(),
			NextID:   t.NextID(),
		},
		Accounts: accounts,
	}
}

// Tree rebuilds the account tree and checks it against the recorded root.
func (c *Checkpoint) Tree() (*tree.AccountTree, error) {
	t, err := c.Rebuild()
	if err != nil {
		return nil, err
	}
	if root := t.RootHash(); root != c.Meta.RootHash {
		return nil, fmt.Errorf("%w: recorded %s, computed %s", ErrRootMismatch, c.Meta.RootHash, root)
	}
	return t, nil
}

// Rebuild inserts the listed accounts into a fresh tree without looking at Meta.RootHash.
func (c *Checkpoint) Rebuild() (*tree.AccountTree, error) {
	t := tree.New(c.Meta.Depth)
	seen := make(map[types.AccountID]struct{}, len(c.Accounts))
	for i := range c.Accounts {
		entry := &c.Accounts[i]
		if _, ok := seen[entry.ID]; ok {
			return nil, fmt.Errorf("%w: id %d", ErrDuplicateAccount, entry.ID)
		}
		seen[entry.ID] = struct{}{}
		acc := entry.Account
		if err := t.Insert(entry.ID, &acc); err != nil {
			return nil, fmt.Errorf("restore account %d: %w", entry.ID, err)
		}
	}
	t.SetNextID(c.Meta.NextID)
	return t, nil
}

// Encode serializes the checkpoint into the blob kept by the history store
func Encode(c *Checkpoint) ([]byte, error) {
	data, err := jsonx.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := jsonx.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &c, nil
}

// WriteCheckpointFile writes c to dir/checkpoint-latest.json and removes
// any other checkpoint file from dir.
func WriteCheckpointFile(dir string, c *Checkpoint) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create checkpoint directory: %w", err)
	}

	data, err := jsonx.MarshalIndent(c)
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint: %w", err)
	}

	latestPath := filepath.Join(dir, FileName)
	if err := os.WriteFile(latestPath, data, 0644); err != nil {
		return "", fmt.Errorf("write checkpoint file: %w", err)
	}

	if err := cleanupOldCheckpoints(dir, latestPath); err != nil {
		logx.Error("SNAPSHOT", "Failed to cleanup old checkpoints:", err)
	}
	return latestPath, nil
}

// ReadCheckpointFile loads a checkpoint file from disk
func ReadCheckpointFile(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func cleanupOldCheckpoints(dir, latestPath string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read checkpoint dir: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		filePath := filepath.Join(dir, file.Name())
		if filePath != latestPath {
			if err := os.Remove(filePath); err != nil {
				logx.Error("SNAPSHOT", "Failed to remove old checkpoint:", filePath, err)
			}
		}
	}

	return nil
}
