package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

const AddressLength = 20

// Address is the owner address bound to an account at creation.
// Its text form is base58, the same encoding wallets use for node addresses.
type Address [AddressLength]byte

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := AddressFromString(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// AddressFromString decodes a base58 address
func AddressFromString(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != AddressLength {
		return Address{}, fmt.Errorf("invalid address length: %d", len(raw))
	}
	var out Address
	copy(out[:], raw)
	return out, nil
}

// BytesToAddress keeps the last AddressLength bytes of b, left-padding shorter input.
func BytesToAddress(b []byte) Address {
	var out Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(out[AddressLength-len(b):], b)
	return out
}
