// Package escrow holds manufacturer and distributor stakes in custody and
// records attested trust scores against products.
package escrow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"xdao.co/trustchain/attest"
	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/identity"
	"xdao.co/trustchain/ledger"
	"xdao.co/trustchain/state"
)

// Escrow is the StakeEscrow over a shared state.Store.
type Escrow struct {
	store  *state.Store
	ids    *identity.Registry
	ledger ledger.Ledger
	now    func() time.Time
}

// New returns an escrow whose custody account is l.Custodian().
func New(store *state.Store, ids *identity.Registry, l ledger.Ledger, now func() time.Time) *Escrow {
	if now == nil {
		now = time.Now
	}
	return &Escrow{store: store, ids: ids, ledger: l, now: now}
}

// CreateProductRequest carries the manufacturer's initial stake and the
// external DKG binding, which is written once and never interpreted.
type CreateProductRequest struct {
	ProductID       string
	Amount          domain.Amount
	ExternalLocator string
	ContentDigest   string
}

// CreateProduct registers a new product and pulls the manufacturer stake
// into custody.
func (e *Escrow) CreateProduct(ctx context.Context, caller domain.Address, req CreateProductRequest) (domain.Product, error) {
	if strings.TrimSpace(req.ProductID) == "" {
		return domain.Product{}, domain.ErrEmptyProductID
	}
	if strings.TrimSpace(req.ExternalLocator) == "" {
		return domain.Product{}, domain.ErrEmptyLocator
	}
	if req.Amount == 0 {
		return domain.Product{}, domain.ErrInvalidAmount
	}

	unlock := e.store.LockProduct(req.ProductID)
	defer unlock()
	// A taken id is reported as such whoever the caller is.
	if _, exists := e.store.Product(req.ProductID); exists {
		return domain.Product{}, domain.NewError(domain.CodeDuplicateProduct, fmt.Sprintf("product %q exists", req.ProductID))
	}
	if _, err := e.ids.Require(caller, domain.Role.CanStakeAsManufacturer); err != nil {
		return domain.Product{}, err
	}

	now := e.now().UTC()
	p := domain.Product{
		ID:                req.ProductID,
		Manufacturer:      caller,
		ManufacturerStake: req.Amount,
		State:             domain.ProductActive,
		CreatedAt:         now,
	}
	binding := domain.DKGBinding{
		ProductID:       req.ProductID,
		ExternalLocator: req.ExternalLocator,
		ContentDigest:   req.ContentDigest,
		Verified:        true,
		BoundAt:         now,
	}

	unlockFunds := e.store.LockFunds()
	defer unlockFunds()
	sh, err := e.creditedStake(caller, req.Amount)
	if err != nil {
		return domain.Product{}, err
	}
	if err := ledger.Pull(ctx, e.ledger, caller, req.Amount); err != nil {
		return domain.Product{}, err
	}
	e.store.InsertProduct(p, binding)
	e.store.PutStakeholder(sh)
	return p, nil
}

// JoinAsDistributor pulls a distributor stake into a product's escrow. A
// distributor may stake on the same product more than once; each stake is
// recorded and paid separately.
func (e *Escrow) JoinAsDistributor(ctx context.Context, caller domain.Address, productID string, amount domain.Amount) (domain.DistributorStake, error) {
	if strings.TrimSpace(productID) == "" {
		return domain.DistributorStake{}, domain.ErrEmptyProductID
	}
	if amount == 0 {
		return domain.DistributorStake{}, domain.ErrInvalidAmount
	}
	if _, err := e.ids.Require(caller, domain.Role.CanStakeAsDistributor); err != nil {
		return domain.DistributorStake{}, err
	}

	unlock := e.store.LockProduct(productID)
	defer unlock()
	p, ok := e.store.Product(productID)
	if !ok {
		return domain.DistributorStake{}, domain.ErrUnknownProduct
	}
	if !p.AcceptsStakes() {
		return domain.DistributorStake{}, domain.NewError(domain.CodeProductNotActive,
			fmt.Sprintf("product %q is %s", productID, p.State))
	}

	stake := domain.DistributorStake{ProductID: productID, Distributor: caller, Amount: amount, StakedAt: e.now().UTC()}

	unlockFunds := e.store.LockFunds()
	defer unlockFunds()
	sh, err := e.creditedStake(caller, amount)
	if err != nil {
		return domain.DistributorStake{}, err
	}
	if err := ledger.Pull(ctx, e.ledger, caller, amount); err != nil {
		return domain.DistributorStake{}, err
	}
	e.store.AppendDistributor(stake)
	e.store.PutStakeholder(sh)
	return stake, nil
}

// creditedStake returns the stakeholder record of addr with amount added to
// its running stake total. Totals only change under the funds lock.
func (e *Escrow) creditedStake(addr domain.Address, amount domain.Amount) (domain.Stakeholder, error) {
	sh, ok := e.store.Stakeholder(addr)
	if !ok {
		return domain.Stakeholder{}, domain.ErrNotRegistered
	}
	total, err := sh.TotalStaked.Add(amount)
	if err != nil {
		return domain.Stakeholder{}, err
	}
	sh.TotalStaked = total
	return sh, nil
}

// RecordScore stores a verified report on its product. Each product accepts
// exactly one score; reportCID names the archived envelope, if any.
func (e *Escrow) RecordScore(vr attest.VerifiedReport, reportCID string) (domain.Product, error) {
	if vr.IsZero() {
		return domain.Product{}, domain.ErrMalformedReport
	}
	unlock := e.store.LockProduct(vr.ProductID())
	defer unlock()

	p, ok := e.store.Product(vr.ProductID())
	if !ok {
		return domain.Product{}, domain.ErrUnknownProduct
	}
	if p.ScoreRecorded {
		return domain.Product{}, domain.ErrScoreAlreadySet
	}
	if err := p.Transition(domain.ProductScored); err != nil {
		return domain.Product{}, err
	}
	p.TrustScore = vr.Score()
	p.ScoreRecorded = true
	p.AnomaliesDigest = vr.AnomaliesDigest()
	p.VerificationDigest = vr.VerificationDigest()
	p.ReportIssuer = vr.Issuer()
	p.ReportCID = reportCID
	p.ScoredAt = e.now().UTC()
	e.store.PutProduct(p)
	return p, nil
}

// FundRewardPool moves amount from funder into custody as bonus capital.
func (e *Escrow) FundRewardPool(ctx context.Context, funder domain.Address, amount domain.Amount) error {
	if funder.IsZero() {
		return domain.ErrInvalidAddress
	}
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	unlock := e.store.LockFunds()
	defer unlock()
	return ledger.Pull(ctx, e.ledger, funder, amount)
}

// RewardPool returns the custody balance not backing any held stake.
func (e *Escrow) RewardPool(ctx context.Context) (domain.Amount, error) {
	unlock := e.store.LockFunds()
	defer unlock()
	return e.RewardPoolLocked(ctx)
}

// RewardPoolLocked is RewardPool for callers already holding the funds lock.
func (e *Escrow) RewardPoolLocked(ctx context.Context) (domain.Amount, error) {
	balance, err := e.ledger.BalanceOf(ctx, e.ledger.Custodian())
	if err != nil {
		return 0, domain.WrapError(domain.CodeLedgerFailure, "read custody balance", err)
	}
	held, err := e.store.HeldStakes()
	if err != nil {
		return 0, err
	}
	if balance < held {
		return 0, domain.NewError(domain.CodeLedgerFailure,
			fmt.Sprintf("custody balance %s below held stakes %s", balance, held))
	}
	return balance - held, nil
}

// Ledger returns the custody ledger.
func (e *Escrow) Ledger() ledger.Ledger { return e.ledger }
