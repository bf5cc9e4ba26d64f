package types

import (
	"encoding/hex"
	"fmt"
)

const HashLength = 32

// RootHash is the digest of the whole account tree at some block.
type RootHash [HashLength]byte

func (h RootHash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h RootHash) String() string {
	return "0x" + h.Hex()
}

func (h RootHash) IsZero() bool {
	return h == RootHash{}
}

func (h RootHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *RootHash) UnmarshalText(text []byte) error {
	parsed, err := RootHashFromHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// RootHashFromHex parses a hex digest with or without the 0x prefix
func RootHashFromHex(s string) (RootHash, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return RootHash{}, fmt.Errorf("invalid root hash: %w", err)
	}
	if len(raw) != HashLength {
		return RootHash{}, fmt.Errorf("invalid root hash length: %d", len(raw))
	}
	var out RootHash
	copy(out[:], raw)
	return out, nil
}
