package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/rollupstate/config"
	"github.com/mezonai/rollupstate/db"
	"github.com/mezonai/rollupstate/restore"
	"github.com/mezonai/rollupstate/snapshot"
	"github.com/mezonai/rollupstate/store"
	"github.com/mezonai/rollupstate/types"
)

const testDepth = 8

func newTestHistory(t *testing.T) *store.GenericHistoryStore {
	t.Helper()
	provider, err := db.NewMemLevelDBProvider()
	require.NoError(t, err)
	hs, err := store.NewGenericHistoryStore(provider)
	require.NoError(t, err)
	t.Cleanup(func() { hs.Close() })
	return hs
}

func testGenesis(blocks int, checkpointAt uint32) *config.GenesisConfig {
	g := &config.GenesisConfig{Blocks: blocks, CheckpointAt: checkpointAt}
	for i := byte(1); i <= 3; i++ {
		g.Accounts = append(g.Accounts, config.GenesisAccount{
			Address: types.BytesToAddress([]byte{0xab, i}).String(),
			Grants:  []config.Grant{{Token: 0, Amount: "1000"}, {Token: 7, Amount: "0"}},
		})
	}
	return g
}

func TestGenerateHistory(t *testing.T) {
	hs := newTestHistory(t)

	ld, err := generateHistory(hs, testGenesis(3, 2), testDepth)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(3), ld.LastBlock())
	assert.Equal(t, 3, ld.AccountCount())

	acc, ok := ld.Account(2)
	require.True(t, ok)
	assert.Equal(t, uint64(1000), acc.Balance(0).Uint64())
	assert.Equal(t, uint64(2*demoCredit), acc.Balance(2).Uint64())

	cached, ok, err := hs.LastCachedBlock()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.BlockNumber(2), cached)

	rt, err := restoreState(context.Background(), hs, testDepth, true, 0)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(3), rt.Block())
	assert.Equal(t, ld.RootHash(), rt.Tree().RootHash())

	_, err = generateHistory(hs, testGenesis(1, 0), testDepth)
	assert.Error(t, err, "gen must refuse a non-empty history")
}

func TestGenerateHistory_ZeroBlocksSealsGenesis(t *testing.T) {
	hs := newTestHistory(t)

	ld, err := generateHistory(hs, testGenesis(0, 0), testDepth)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(1), ld.LastBlock())
}

func TestExportImportCheckpoint(t *testing.T) {
	hs := newTestHistory(t)
	_, err := generateHistory(hs, testGenesis(3, 2), testDepth)
	require.NoError(t, err)

	dir := t.TempDir()
	path, err := exportCheckpoint(hs, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, snapshot.FileName), path)

	require.NoError(t, hs.DropCheckpoint())
	_, err = exportCheckpoint(hs, dir)
	assert.Error(t, err)

	cp, err := snapshot.ReadCheckpointFile(path)
	require.NoError(t, err)
	require.NoError(t, importCheckpoint(hs, cp, false))

	cached, ok, err := hs.LastCachedBlock()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.BlockNumber(2), cached)

	_, err = restoreState(context.Background(), hs, testDepth, true, 0)
	require.NoError(t, err)
}

func TestImportCheckpoint_RootMismatch(t *testing.T) {
	hs := newTestHistory(t)
	ld, err := generateHistory(hs, testGenesis(3, 0), testDepth)
	require.NoError(t, err)

	// the state after block 3 labelled as block 2
	cp, err := ld.Checkpoint()
	require.NoError(t, err)
	cp.Meta.Block = 2

	assert.Error(t, importCheckpoint(hs, cp, false))
	_, ok, err := hs.LastCachedBlock()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, importCheckpoint(hs, cp, true))
	_, err = restoreState(context.Background(), hs, testDepth, true, 0)
	var divergence *restore.DivergenceError
	require.ErrorAs(t, err, &divergence)
	assert.Equal(t, types.BlockNumber(2), divergence.Block)
}

func TestImportCheckpoint_Inconsistent(t *testing.T) {
	hs := newTestHistory(t)
	ld, err := generateHistory(hs, testGenesis(2, 0), testDepth)
	require.NoError(t, err)

	cp, err := ld.Checkpoint()
	require.NoError(t, err)
	cp.Meta.RootHash = types.RootHash{1}

	assert.ErrorIs(t, importCheckpoint(hs, cp, true), snapshot.ErrRootMismatch)
}

func TestTruncateHistory(t *testing.T) {
	hs := newTestHistory(t)
	_, err := generateHistory(hs, testGenesis(4, 2), testDepth)
	require.NoError(t, err)

	tip, err := truncateHistory(hs, 4)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(3), tip)
	_, ok, _ := hs.LastCachedBlock()
	assert.True(t, ok, "checkpoint below the new tip is kept")

	tip, err = truncateHistory(hs, 2)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(1), tip)
	_, ok, _ = hs.LastCachedBlock()
	assert.False(t, ok, "checkpoint above the new tip is dropped")

	_, err = truncateHistory(hs, 5)
	assert.ErrorIs(t, err, store.ErrBeyondTip)

	rt, err := restoreState(context.Background(), hs, testDepth, true, 0)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(1), rt.Block())
}

func TestTruncateHistory_RepairsDivergence(t *testing.T) {
	hs := newTestHistory(t)
	_, err := generateHistory(hs, testGenesis(3, 0), testDepth)
	require.NoError(t, err)
	require.NoError(t, hs.SetBlockRootHash(3, types.RootHash{0xde, 0xad}))

	_, err = restoreState(context.Background(), hs, testDepth, true, 0)
	var divergence *restore.DivergenceError
	require.ErrorAs(t, err, &divergence)
	assert.Contains(t, describeRestoreError(err).Error(), "truncate --from-block 3")

	_, err = truncateHistory(hs, divergence.Block)
	require.NoError(t, err)
	_, err = restoreState(context.Background(), hs, testDepth, true, 0)
	require.NoError(t, err)
}

func TestRestoreState_Timeout(t *testing.T) {
	hs := newTestHistory(t)
	_, err := generateHistory(hs, testGenesis(3, 0), testDepth)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = restoreState(ctx, hs, testDepth, true, 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, describeRestoreError(err).Error(), "interrupted")
}

func TestPrintHistory(t *testing.T) {
	hs := newTestHistory(t)
	_, err := generateHistory(hs, testGenesis(3, 2), testDepth)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printHistory(&out, hs, 0))
	assert.Contains(t, out.String(), "tip: 3")
	assert.Contains(t, out.String(), "checkpoint: 2")

	root, err := hs.BlockRootHash(3)
	require.NoError(t, err)
	assert.Contains(t, out.String(), root.String())

	out.Reset()
	require.NoError(t, printOrphans(&out, hs))
	assert.Empty(t, out.String())

	require.NoError(t, printBlock(&out, hs, 1))
	assert.Contains(t, out.String(), `"number": 1`)

	assert.ErrorIs(t, printBlock(&out, hs, 9), store.ErrNotFound)
}

func TestTreeDepth(t *testing.T) {
	assert.Equal(t, 12, treeDepth(12))
	assert.NotZero(t, treeDepth(0))
}
