// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"encoding/hex"
	"strconv"

	dErrors "poolpay/pkg/domain-errors"
)

// Account is an opaque 256-bit participant handle (provider, operator, buyer).
// It carries no PII; it is purely an addressable identity for settlement.
type Account [32]byte

// Distinct numeric ID types - compiler prevents passing a ServiceID where a
// PoolID is expected.
type (
	ServiceID uint64
	PoolID    uint64
)

// RegistryRef names a service-owning registry as the pool sees it. Two members
// with the same external service ID but different registry refs are distinct
// economic participants.
type RegistryRef string

// Parse functions - use at trust boundaries (handlers, API inputs).

// ParseAccount decodes a 64-character hex account handle, with or without a
// leading "0x".
func ParseAccount(s string) (Account, error) {
	if s == "" {
		return Account{}, dErrors.New(dErrors.CodeInvalidInput, "account cannot be empty")
	}
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	if len(s) != 2*len(Account{}) {
		return Account{}, dErrors.New(dErrors.CodeInvalidInput, "account must be 32 bytes of hex")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Account{}, dErrors.New(dErrors.CodeInvalidInput, "invalid account format")
	}
	var a Account
	copy(a[:], raw)
	return a, nil
}

func ParseServiceID(s string) (ServiceID, error) {
	v, err := parseUint(s, "service ID")
	return ServiceID(v), err
}

func ParsePoolID(s string) (PoolID, error) {
	v, err := parseUint(s, "pool ID")
	return PoolID(v), err
}

func ParseRegistryRef(s string) (RegistryRef, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "registry ref cannot be empty")
	}
	return RegistryRef(s), nil
}

// String methods - for logging and debugging.

func (a Account) String() string    { return "0x" + hex.EncodeToString(a[:]) }
func (id ServiceID) String() string { return strconv.FormatUint(uint64(id), 10) }
func (id PoolID) String() string    { return strconv.FormatUint(uint64(id), 10) }
func (r RegistryRef) String() string { return string(r) }

// IsZero checks - used for service-layer validation.

func (a Account) IsZero() bool     { return a == Account{} }
func (r RegistryRef) IsZero() bool { return r == "" }

func parseUint(s, label string) (uint64, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return v, nil
}
