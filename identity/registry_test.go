package identity

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/state"
)

func fixedClock() time.Time { return time.Unix(1_700_000_000, 0) }

func TestRegisterRejectsSecondAttempt(t *testing.T) {
	reg := New(state.New(), fixedClock)
	addr := domain.MustAddress("0xmanu")

	sh, err := reg.Register(addr, domain.RoleManufacturer)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if sh.TotalStaked != 0 || sh.TotalRewards != 0 {
		t.Fatalf("expected zero balances, got %+v", sh)
	}
	for _, role := range []domain.Role{domain.RoleManufacturer, domain.RoleDistributor} {
		if _, err := reg.Register(addr, role); !errors.Is(err, domain.ErrAlreadyRegistered) {
			t.Fatalf("second Register(%v): got %v", role, err)
		}
	}
	role, err := reg.RoleOf(addr)
	if err != nil || role != domain.RoleManufacturer {
		t.Fatalf("RoleOf = %v, %v; role must be immutable", role, err)
	}
}

func TestRegisterFreshAddressesAlwaysSucceeds(t *testing.T) {
	reg := New(state.New(), fixedClock)
	for i := 0; i < 20; i++ {
		addr := domain.MustAddress(fmt.Sprintf("0x%02d", i))
		if _, err := reg.Register(addr, domain.RoleRetailer); err != nil {
			t.Fatalf("Register(%s): %v", addr, err)
		}
		if !reg.IsRegistered(addr) {
			t.Fatalf("IsRegistered(%s) = false", addr)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := New(state.New(), fixedClock)
	if _, err := reg.Register("", domain.RoleRetailer); !errors.Is(err, domain.ErrInvalidAddress) {
		t.Fatalf("empty address: got %v", err)
	}
	if _, err := reg.Register("0xa", domain.Role(9)); !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("invalid role: got %v", err)
	}
	if reg.IsRegistered("0xa") {
		t.Fatalf("failed registration must not create a record")
	}
}

func TestRequire(t *testing.T) {
	reg := New(state.New(), fixedClock)
	dist := domain.MustAddress("0xdist")
	if _, err := reg.Require(dist, domain.Role.CanStakeAsDistributor); !errors.Is(err, domain.ErrNotRegistered) {
		t.Fatalf("unregistered: got %v", err)
	}
	if _, err := reg.Register(dist, domain.RoleDistributor); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.Require(dist, domain.Role.CanStakeAsManufacturer); !errors.Is(err, domain.ErrWrongRole) {
		t.Fatalf("wrong role: got %v", err)
	}
	if _, err := reg.Require(dist, domain.Role.CanStakeAsDistributor); err != nil {
		t.Fatalf("Require: %v", err)
	}
}
