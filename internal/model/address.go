package model

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/cases"
)

// Address errors.
var (
	// ErrEmptyAddress is returned when an address is empty after trimming.
	ErrEmptyAddress = errors.New("address cannot be empty")
)

// hexAddressLength is the length of a 20-byte hex address without the 0x prefix.
const hexAddressLength = 40

// Address is an opaque chain account identifier.
// Two addresses are equal when their normalized forms are equal; no other
// structure is assumed by the crawler.
type Address string

// NewAddress normalizes a raw identifier into an Address.
// Normalization trims surrounding whitespace and applies Unicode case folding,
// so "0xAbC" and "0xabc" map to the same Address.
func NewAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyAddress
	}
	// A Caser is stateful and must not be shared between goroutines.
	return Address(cases.Fold().String(trimmed)), nil
}

// MustAddress is like NewAddress but panics on error.
// It is intended for tests and constant tables.
func MustAddress(raw string) Address {
	a, err := NewAddress(raw)
	if err != nil {
		panic(err)
	}
	return a
}

// NormalizeAddresses normalizes raw identifiers and drops duplicates,
// keeping the first occurrence so the input order is preserved.
func NormalizeAddresses(raws []string) ([]Address, error) {
	out := make([]Address, 0, len(raws))
	seen := make(map[Address]struct{}, len(raws))
	for _, raw := range raws {
		a, err := NewAddress(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out, nil
}

// String returns the normalized form.
func (a Address) String() string {
	return string(a)
}

// IsHex reports whether the address is a 0x-prefixed 20-byte hex string.
func (a Address) IsHex() bool {
	s := string(a)
	if len(s) != hexAddressLength+2 || !strings.HasPrefix(s, "0x") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

// Checksum returns the EIP-55 mixed-case rendering of a hex address.
// Non-hex addresses are returned unchanged. The checksum form is used for
// display only; equality always uses the normalized form.
func (a Address) Checksum() string {
	if !a.IsHex() {
		return string(a)
	}
	lower := string(a)[2:]

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	sum := h.Sum(nil)

	out := []byte("0x" + lower)
	for i := range hexAddressLength {
		c := lower[i]
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i+2] = c - ('a' - 'A')
		}
	}
	return string(out)
}

// AddressSet is a read-only set of addresses.
// Implementations must be safe for concurrent use.
type AddressSet interface {
	// Contains reports whether the address is a member of the set.
	Contains(a Address) bool

	// Len returns the number of members.
	Len() int
}

// StaticSet is an immutable AddressSet backed by a map.
type StaticSet struct {
	members map[Address]struct{}
}

// NewStaticSet builds a StaticSet from the given addresses.
func NewStaticSet(addrs ...Address) *StaticSet {
	members := make(map[Address]struct{}, len(addrs))
	for _, a := range addrs {
		members[a] = struct{}{}
	}
	return &StaticSet{members: members}
}

// Contains reports whether the address is a member of the set.
// A nil StaticSet is empty.
func (s *StaticSet) Contains(a Address) bool {
	if s == nil {
		return false
	}
	_, ok := s.members[a]
	return ok
}

// Len returns the number of members.
func (s *StaticSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.members)
}
