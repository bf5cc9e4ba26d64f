package store

import (
	"encoding/binary"

	"github.com/mezonai/rollupstate/types"
)

// Declare database key prefix for objects
const (
	PrefixBlockUpdates = "blk_upd:"
	PrefixBlockRoot    = "blk_root:"

	PrefixMeta              = "meta:"
	MetaKeyLastCommitted    = "last_committed"
	MetaKeyLastCached       = "last_cached"
	MetaKeyCheckpointRecord = "checkpoint"
)

// blockKey appends the big-endian block number to prefix so keys sort by block
func blockKey(prefix string, n types.BlockNumber) []byte {
	key := make([]byte, len(prefix)+4)
	copy(key, prefix)
	binary.BigEndian.PutUint32(key[len(prefix):], uint32(n))
	return key
}

func metaKey(name string) []byte {
	return []byte(PrefixMeta + name)
}

func encodeBlockNumber(n types.BlockNumber) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(n))
	return buf[:]
}

func decodeBlockNumber(value []byte) (types.BlockNumber, bool) {
	if len(value) != 4 {
		return 0, false
	}
	return types.BlockNumber(binary.BigEndian.Uint32(value)), true
}
