package bankhash

import (
	"encoding/binary"

	"github.com/mezonai/rollupstate/types"
	"golang.org/x/crypto/sha3"
)

// AccountLeafHash computes the leaf digest of an account stored at id.
// Record layout: id(4B BE)|address(20B)|nonce(4B BE)|count(4B BE) followed by
// token(4B BE)|balance(32B BE) for every non-zero balance in ascending token order.
func AccountLeafHash(id types.AccountID, acc *types.Account) [32]byte {
	h := sha3.NewLegacyKeccak256()

	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(id))
	h.Write(buf)
	h.Write(acc.Address[:])
	binary.BigEndian.PutUint32(buf, uint32(acc.Nonce))
	h.Write(buf)

	tokens := acc.Tokens()
	binary.BigEndian.PutUint32(buf, uint32(len(tokens)))
	h.Write(buf)
	for _, token := range tokens {
		binary.BigEndian.PutUint32(buf, uint32(token))
		h.Write(buf)
		balance := acc.Balances[token].Bytes32()
		h.Write(balance[:])
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// CombineNodeHash hashes two children into their parent: keccak(left || right).
func CombineNodeHash(left, right [32]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// EmptySubtreeHashes returns the digest of an empty subtree for every height
// 0..depth. Height 0 is the empty leaf, which is the zero hash.
func EmptySubtreeHashes(depth int) [][32]byte {
	out := make([][32]byte, depth+1)
	for i := 1; i <= depth; i++ {
		out[i] = CombineNodeHash(out[i-1], out[i-1])
	}
	return out
}

func IsZeroHash(h [32]byte) bool {
	for _, b := range h {
		if b != 0 {
			return false
		}
	}
	return true
}
