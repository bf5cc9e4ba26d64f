package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func providers(t *testing.T) map[string]IterableProvider {
	t.Helper()

	mem, err := NewMemLevelDBProvider()
	require.NoError(t, err)

	lvl, err := NewLevelDBProvider(filepath.Join(t.TempDir(), "leveldb"))
	require.NoError(t, err)

	bolt, err := NewBoltDBProvider(filepath.Join(t.TempDir(), "state.bolt"))
	require.NoError(t, err)

	all := map[string]IterableProvider{
		"leveldb-mem": mem,
		"leveldb":     lvl,
		"bolt":        bolt,
	}
	t.Cleanup(func() {
		for _, p := range all {
			_ = p.Close()
		}
	})
	return all
}

func TestProvider_GetPutDelete(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			v, err := p.Get([]byte("missing"))
			require.NoError(t, err)
			assert.Nil(t, v)

			require.NoError(t, p.Put([]byte("k"), []byte("v1")))
			v, err = p.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), v)

			ok, err := p.Has([]byte("k"))
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, p.Delete([]byte("k")))
			ok, err = p.Has([]byte("k"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestProvider_BatchIsAtomicOnWrite(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, p.Put([]byte("gone"), []byte("x")))

			batch := p.Batch()
			batch.Put([]byte("a"), []byte("1"))
			batch.Put([]byte("b"), []byte("2"))
			batch.Delete([]byte("gone"))

			ok, err := p.Has([]byte("a"))
			require.NoError(t, err)
			assert.False(t, ok, "batch must not be visible before Write")

			require.NoError(t, batch.Write())
			require.NoError(t, batch.Close())

			for key, want := range map[string]string{"a": "1", "b": "2"} {
				v, err := p.Get([]byte(key))
				require.NoError(t, err)
				assert.Equal(t, []byte(want), v)
			}
			ok, err = p.Has([]byte("gone"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestProvider_BatchReset(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			batch := p.Batch()
			batch.Put([]byte("dropped"), []byte("1"))
			batch.Reset()
			require.NoError(t, batch.Write())
			require.NoError(t, batch.Close())

			ok, err := p.Has([]byte("dropped"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestProvider_IteratePrefixInKeyOrder(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"blk:\x00\x03", "blk:\x00\x01", "other", "blk:\x00\x02", "blj"} {
				require.NoError(t, p.Put([]byte(k), []byte(k)))
			}

			var keys []string
			err := p.IteratePrefix([]byte("blk:"), func(key, value []byte) bool {
				assert.Equal(t, key, value)
				keys = append(keys, string(key))
				return true
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"blk:\x00\x01", "blk:\x00\x02", "blk:\x00\x03"}, keys)

			var first []string
			err = p.IteratePrefix([]byte("blk:"), func(key, _ []byte) bool {
				first = append(first, string(key))
				return false
			})
			require.NoError(t, err)
			assert.Len(t, first, 1)
		})
	}
}

func TestDBTxManager_WithBatch(t *testing.T) {
	p, err := NewMemLevelDBProvider()
	require.NoError(t, err)
	defer p.Close()

	tm := NewDBTxManager(p)
	require.NoError(t, tm.WithBatch(func(b DatabaseBatch) error {
		b.Put([]byte("kept"), []byte("1"))
		return nil
	}))

	err = tm.WithBatch(func(b DatabaseBatch) error {
		b.Put([]byte("discarded"), []byte("1"))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	ok, err := p.Has([]byte("kept"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = p.Has([]byte("discarded"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `blk\*\?\[x\]\\`, escapeGlob(`blk*?[x]\`))
	assert.Equal(t, "\x00\xff", escapeGlob("\x00\xff"))
}
