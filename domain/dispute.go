package domain

import (
	"fmt"
	"time"
)

// DisputeStatus values mirror the wire enum NONE=0, OPEN=1,
// RESOLVED_FRAUD=2, RESOLVED_HONEST=3.
type DisputeStatus uint8

const (
	DisputeNone DisputeStatus = iota
	DisputeOpen
	DisputeResolvedFraud
	DisputeResolvedHonest
)

var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeNone: {DisputeOpen},
	DisputeOpen: {DisputeResolvedFraud, DisputeResolvedHonest},
}

// CanTransition reports whether from -> to is a legal dispute transition.
func (s DisputeStatus) CanTransition(to DisputeStatus) bool {
	for _, next := range disputeTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Resolved reports whether s is terminal.
func (s DisputeStatus) Resolved() bool {
	return s == DisputeResolvedFraud || s == DisputeResolvedHonest
}

func (s DisputeStatus) String() string {
	switch s {
	case DisputeNone:
		return "none"
	case DisputeOpen:
		return "open"
	case DisputeResolvedFraud:
		return "resolved_fraud"
	case DisputeResolvedHonest:
		return "resolved_honest"
	default:
		return fmt.Sprintf("dispute(%d)", uint8(s))
	}
}

func (s DisputeStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Dispute is the adjudication record over a held product.
type Dispute struct {
	ProductID      string
	Status         DisputeStatus
	Opener         Address
	EvidenceDigest string
	GuiltyParty    Address
	ResolvedAmount Amount
	OpenedAt       time.Time
	ResolvedAt     time.Time
}

// Transition moves d to next, reporting the state error a caller would see.
func (d *Dispute) Transition(next DisputeStatus) error {
	if d.Status.CanTransition(next) {
		d.Status = next
		return nil
	}
	switch {
	case d.Status.Resolved():
		return ErrAlreadyResolved
	case d.Status == DisputeOpen && next == DisputeOpen:
		return ErrDisputeAlreadyOpen
	default:
		return ErrDisputeNotOpen
	}
}
