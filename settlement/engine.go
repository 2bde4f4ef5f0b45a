// Package settlement converts a recorded trust score into payouts, stake
// returns or a hold.
//
// Tiers, inclusive lower bounds:
//
//	score >= 90   manufacturer 120% of stake, each distributor 110%
//	75..89        every stake returned unchanged
//	score < 75    stakes held in custody pending dispute
//
// Bonuses are drawn from the reward pool only. A payout is all-or-nothing:
// if the pool is short or any transfer fails, nothing moves.
package settlement

import (
	"context"
	"fmt"
	"time"

	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/escrow"
	"xdao.co/trustchain/ledger"
	"xdao.co/trustchain/reputation"
	"xdao.co/trustchain/state"
)

const (
	HighTrustThreshold   = 90
	MediumTrustThreshold = 75

	manufacturerBonusPct = 120
	distributorBonusPct  = 110
)

// Tier is the settlement branch chosen for a score.
type Tier uint8

const (
	TierHigh Tier = iota + 1
	TierMedium
	TierLow
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// TierFor maps a trust score to its tier.
func TierFor(score uint8) Tier {
	switch {
	case score >= HighTrustThreshold:
		return TierHigh
	case score >= MediumTrustThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// Outcome describes a committed settlement.
type Outcome struct {
	ProductID string
	Tier      Tier
	Payouts   []ledger.Transfer
	Bonus     domain.Amount
	State     domain.ProductState
}

// Engine is the SettlementEngine.
type Engine struct {
	store   *state.Store
	escrow  *escrow.Escrow
	rep     *reputation.Ledger
	admin   domain.Address
	updater domain.Address
	now     func() time.Time
}

// New returns an engine triggered by admin. updater is the identity the
// engine records reputation under; it must be authorized on rep.
func New(store *state.Store, esc *escrow.Escrow, rep *reputation.Ledger, admin, updater domain.Address, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: store, escrow: esc, rep: rep, admin: admin, updater: updater, now: now}
}

// Updater returns the reputation identity of the engine.
func (e *Engine) Updater() domain.Address { return e.updater }

// DistributeRewards settles a scored product.
func (e *Engine) DistributeRewards(ctx context.Context, caller domain.Address, productID string) (Outcome, error) {
	if caller != e.admin {
		return Outcome{}, domain.ErrNotAdmin
	}

	unlock := e.store.LockProduct(productID)
	defer unlock()

	p, ok := e.store.Product(productID)
	if !ok {
		return Outcome{}, domain.ErrUnknownProduct
	}
	switch p.State {
	case domain.ProductSettled:
		return Outcome{}, domain.ErrAlreadySettled
	case domain.ProductActive:
		return Outcome{}, domain.ErrNoScoreYet
	case domain.ProductHeld:
		return Outcome{}, domain.ErrProductHeld
	case domain.ProductScored:
	default:
		return Outcome{}, domain.NewError(domain.CodeProductNotActive, fmt.Sprintf("product %q is %s", productID, p.State))
	}

	tier := TierFor(p.TrustScore)
	if tier == TierLow {
		if err := p.Transition(domain.ProductHeld); err != nil {
			return Outcome{}, err
		}
		e.store.PutProduct(p)
		return Outcome{ProductID: productID, Tier: tier, State: p.State}, nil
	}

	stakes := e.store.Distributors(productID)
	payouts, bonuses, err := plan(p, stakes, tier)
	if err != nil {
		return Outcome{}, err
	}
	bonus, err := domain.SumAmounts(bonuses...)
	if err != nil {
		return Outcome{}, err
	}

	unlockFunds := e.store.LockFunds()
	defer unlockFunds()

	if bonus > 0 {
		pool, err := e.escrow.RewardPoolLocked(ctx)
		if err != nil {
			return Outcome{}, err
		}
		if pool < bonus {
			return Outcome{}, domain.NewError(domain.CodeInsufficientRewardPool,
				fmt.Sprintf("bonus %s exceeds reward pool %s", bonus, pool))
		}
	}

	rewards, err := e.creditedRewards(payouts, bonuses)
	if err != nil {
		return Outcome{}, err
	}

	successes := make([]domain.Address, 0, 1+len(stakes))
	successes = append(successes, p.Manufacturer)
	for _, s := range stakes {
		successes = append(successes, s.Distributor)
	}
	undoRep, err := e.rep.Apply(e.updater, reputation.Update{Successes: successes})
	if err != nil {
		return Outcome{}, err
	}

	if err := ledger.PayOut(ctx, e.escrow.Ledger(), payouts); err != nil {
		undoRep()
		return Outcome{}, err
	}

	if err := p.Transition(domain.ProductSettled); err != nil {
		// unreachable: Scored -> Settled is always legal
		return Outcome{}, err
	}
	p.SettledAt = e.now().UTC()
	e.store.PutProduct(p)
	for _, sh := range rewards {
		e.store.PutStakeholder(sh)
	}

	return Outcome{ProductID: productID, Tier: tier, Payouts: payouts, Bonus: bonus, State: p.State}, nil
}

// plan computes one payout per stake and the bonus part of each.
func plan(p domain.Product, stakes []domain.DistributorStake, tier Tier) ([]ledger.Transfer, []domain.Amount, error) {
	mPct, dPct := uint64(100), uint64(100)
	if tier == TierHigh {
		mPct, dPct = manufacturerBonusPct, distributorBonusPct
	}

	payouts := make([]ledger.Transfer, 0, 1+len(stakes))
	bonuses := make([]domain.Amount, 0, 1+len(stakes))
	add := func(to domain.Address, stake domain.Amount, pct uint64) error {
		amt, err := stake.MulPercent(pct)
		if err != nil {
			return err
		}
		payouts = append(payouts, ledger.Transfer{To: to, Amount: amt})
		bonuses = append(bonuses, amt-stake)
		return nil
	}
	if err := add(p.Manufacturer, p.ManufacturerStake, mPct); err != nil {
		return nil, nil, err
	}
	for _, s := range stakes {
		if err := add(s.Distributor, s.Amount, dPct); err != nil {
			return nil, nil, err
		}
	}
	return payouts, bonuses, nil
}

// creditedRewards returns stakeholder records with each bonus added to
// TotalRewards, merged per address.
func (e *Engine) creditedRewards(payouts []ledger.Transfer, bonuses []domain.Amount) (map[domain.Address]domain.Stakeholder, error) {
	out := make(map[domain.Address]domain.Stakeholder)
	for i, t := range payouts {
		if bonuses[i] == 0 {
			continue
		}
		sh, ok := out[t.To]
		if !ok {
			if sh, ok = e.store.Stakeholder(t.To); !ok {
				continue
			}
		}
		total, err := sh.TotalRewards.Add(bonuses[i])
		if err != nil {
			return nil, err
		}
		sh.TotalRewards = total
		out[t.To] = sh
	}
	return out, nil
}
