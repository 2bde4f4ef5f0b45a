package domain

import (
	"fmt"
	"time"
)

// ProductState is the settlement lifecycle of a product.
//
//	Active -> Scored -> Settled
//	                 -> Held -> Disputed -> Resolved
type ProductState uint8

const (
	ProductActive ProductState = iota + 1
	ProductScored
	ProductSettled
	ProductHeld
	ProductDisputed
	ProductResolved
)

var productTransitions = map[ProductState][]ProductState{
	ProductActive:   {ProductScored},
	ProductScored:   {ProductSettled, ProductHeld},
	ProductHeld:     {ProductDisputed},
	ProductDisputed: {ProductResolved},
}

// CanTransition reports whether from -> to is a legal product transition.
func (s ProductState) CanTransition(to ProductState) bool {
	for _, next := range productTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ProductState) String() string {
	switch s {
	case ProductActive:
		return "active"
	case ProductScored:
		return "scored"
	case ProductSettled:
		return "settled"
	case ProductHeld:
		return "held"
	case ProductDisputed:
		return "disputed"
	case ProductResolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

func (s ProductState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Product is the escrow record keyed by its opaque id.
type Product struct {
	ID                 string
	Manufacturer       Address
	ManufacturerStake  Amount
	State              ProductState
	TrustScore         uint8
	ScoreRecorded      bool
	AnomaliesDigest    Digest
	VerificationDigest Digest
	ReportCID          string
	ReportIssuer       string
	CreatedAt          time.Time
	ScoredAt           time.Time
	SettledAt          time.Time
}

// Transition moves p to next or fails without modifying p.
func (p *Product) Transition(next ProductState) error {
	if !p.State.CanTransition(next) {
		return NewError(CodeProductNotActive, fmt.Sprintf("product %q cannot move from %s to %s", p.ID, p.State, next))
	}
	p.State = next
	return nil
}

// IsActive reports whether the product still has stakes in custody awaiting
// an outcome. A held product stays active until its dispute is opened.
func (p Product) IsActive() bool {
	switch p.State {
	case ProductActive, ProductScored, ProductHeld:
		return true
	case ProductSettled, ProductDisputed, ProductResolved:
		return false
	default:
		return false
	}
}

// RewardsDistributed reports whether the paying settlement branch completed.
func (p Product) RewardsDistributed() bool { return p.State == ProductSettled }

// AcceptsStakes reports whether distributors may still join.
func (p Product) AcceptsStakes() bool {
	return p.State == ProductActive || p.State == ProductScored
}

// HoldsStakes reports whether the product's stakes are still in custody.
func (p Product) HoldsStakes() bool {
	switch p.State {
	case ProductActive, ProductScored, ProductHeld, ProductDisputed:
		return true
	default:
		return false
	}
}

// DistributorStake is one distributor contribution to a product's escrow.
type DistributorStake struct {
	ProductID   string
	Distributor Address
	Amount      Amount
	StakedAt    time.Time
}

// DKGBinding associates a product with an external knowledge-asset locator
// and content digest. It is written once at product creation.
type DKGBinding struct {
	ProductID       string
	ExternalLocator string
	ContentDigest   string
	Verified        bool
	BoundAt         time.Time
}

// Stakeholder is a registered participant. Role is immutable.
type Stakeholder struct {
	Address      Address
	Role         Role
	TotalStaked  Amount
	TotalRewards Amount
	RegisteredAt time.Time
}
