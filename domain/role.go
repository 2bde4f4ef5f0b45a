package domain

import (
	"fmt"
	"strings"
)

// Role is the closed set of stakeholder roles. The zero value is invalid.
type Role uint8

const (
	RoleManufacturer Role = iota + 1
	RoleDistributor
	RoleRetailer
)

// ParseRole accepts the role name (case-insensitive) or its wire index
// ("0" manufacturer, "1" distributor, "2" retailer).
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manufacturer", "0":
		return RoleManufacturer, nil
	case "distributor", "1":
		return RoleDistributor, nil
	case "retailer", "2":
		return RoleRetailer, nil
	default:
		return 0, NewError(CodeInvalidRole, fmt.Sprintf("invalid role %q", s))
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleManufacturer, RoleDistributor, RoleRetailer:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	switch r {
	case RoleManufacturer:
		return "manufacturer"
	case RoleDistributor:
		return "distributor"
	case RoleRetailer:
		return "retailer"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrInvalidRole
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// CanStakeAsManufacturer reports whether a holder of r may create products.
func (r Role) CanStakeAsManufacturer() bool {
	switch r {
	case RoleManufacturer:
		return true
	case RoleDistributor, RoleRetailer:
		return false
	default:
		return false
	}
}

// CanStakeAsDistributor reports whether a holder of r may join a product's
// escrow as a distributor.
func (r Role) CanStakeAsDistributor() bool {
	switch r {
	case RoleDistributor:
		return true
	case RoleManufacturer, RoleRetailer:
		return false
	default:
		return false
	}
}
