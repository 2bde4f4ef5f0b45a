package domain

import "strings"

// Address identifies a stakeholder, admin, custody account or penalty sink.
//
// Addresses are opaque to the core. They are normalized by trimming
// whitespace and lower-casing so "0xABC" and "0xabc" name the same account.
type Address string

// ParseAddress normalizes s and rejects blank or whitespace-bearing input.
func ParseAddress(s string) (Address, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", ErrInvalidAddress
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return "", NewError(CodeInvalidAddress, "address contains whitespace")
	}
	return Address(s), nil
}

// MustAddress is like ParseAddress but panics on error. Intended for
// constants and tests.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string { return string(a) }

// IsZero reports whether a is the empty address.
func (a Address) IsZero() bool { return a == "" }
