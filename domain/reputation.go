package domain

import (
	"fmt"
	"time"
)

// Level is a reputation tier derived from a record's score.
type Level uint8

const (
	LevelNew Level = iota
	LevelBasic
	LevelTrusted
	LevelVerifiedPartner
	LevelPremium
)

func (l Level) String() string {
	switch l {
	case LevelNew:
		return "New"
	case LevelBasic:
		return "Basic"
	case LevelTrusted:
		return "Trusted"
	case LevelVerifiedPartner:
		return "Verified Partner"
	case LevelPremium:
		return "Premium"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

const (
	reputationBase       = 500
	reputationMax        = 1000
	reputationSuccessPts = 10
	reputationFlagPts    = 100
)

// ReputationRecord aggregates settled outcomes for one stakeholder. Counts
// only ever increase; Score and Level are derived from them.
type ReputationRecord struct {
	Address            Address
	SuccessfulProducts uint64
	FlaggedProducts    uint64
	LastUpdated        time.Time
}

// Score is clamp(500 + 10*successful - 100*flagged, 0, 1000).
func (r ReputationRecord) Score() uint64 {
	up := r.SuccessfulProducts * reputationSuccessPts
	if r.SuccessfulProducts > reputationMax {
		up = reputationMax * reputationSuccessPts
	}
	down := r.FlaggedProducts * reputationFlagPts
	if r.FlaggedProducts > reputationMax {
		down = reputationMax * reputationFlagPts
	}
	score := reputationBase + up
	if down >= score {
		return 0
	}
	score -= down
	if score > reputationMax {
		return reputationMax
	}
	return score
}

// Level maps the score to a tier; records without outcomes are LevelNew.
func (r ReputationRecord) Level() Level {
	if r.SuccessfulProducts == 0 && r.FlaggedProducts == 0 {
		return LevelNew
	}
	switch s := r.Score(); {
	case s >= 900:
		return LevelPremium
	case s >= 750:
		return LevelVerifiedPartner
	case s >= 600:
		return LevelTrusted
	default:
		return LevelBasic
	}
}
