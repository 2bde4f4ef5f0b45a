// Package dispute adjudicates products whose stakes were held after a low
// trust score.
package dispute

import (
	"context"
	"fmt"
	"strings"
	"time"

	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/escrow"
	"xdao.co/trustchain/ledger"
	"xdao.co/trustchain/reputation"
	"xdao.co/trustchain/state"
)

// Escrow is the DisputeEscrow.
type Escrow struct {
	store   *state.Store
	escrow  *escrow.Escrow
	rep     *reputation.Ledger
	admin   domain.Address
	updater domain.Address
	sink    domain.Address
	now     func() time.Time
}

// Option configures an Escrow.
type Option func(*Escrow)

// WithPenaltySink sends forfeited stake to sink. Without a sink, forfeited
// stake stays in custody and joins the reward pool.
func WithPenaltySink(sink domain.Address) Option {
	return func(e *Escrow) { e.sink = sink }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Escrow) { e.now = now }
}

// New returns a dispute escrow resolved by admin that records reputation as
// updater.
func New(store *state.Store, esc *escrow.Escrow, rep *reputation.Ledger, admin, updater domain.Address, opts ...Option) *Escrow {
	e := &Escrow{store: store, escrow: esc, rep: rep, admin: admin, updater: updater, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Escrow) Updater() domain.Address { return e.updater }

func (e *Escrow) PenaltySink() domain.Address { return e.sink }

// OpenDispute moves a held product into dispute. evidence is an opaque
// digest, usually the CID of archived evidence.
func (e *Escrow) OpenDispute(opener domain.Address, productID, evidence string) (domain.Dispute, error) {
	if opener.IsZero() {
		return domain.Dispute{}, domain.ErrInvalidAddress
	}
	if strings.TrimSpace(evidence) == "" {
		return domain.Dispute{}, domain.ErrEmptyEvidence
	}

	unlock := e.store.LockProduct(productID)
	defer unlock()

	p, ok := e.store.Product(productID)
	if !ok {
		return domain.Dispute{}, domain.ErrUnknownProduct
	}
	d := e.store.Dispute(productID)
	if d.Status != domain.DisputeNone {
		return domain.Dispute{}, d.Transition(domain.DisputeOpen)
	}
	if p.State != domain.ProductHeld {
		return domain.Dispute{}, domain.NewError(domain.CodeProductNotHeld,
			fmt.Sprintf("product %q is %s", productID, p.State))
	}
	if err := d.Transition(domain.DisputeOpen); err != nil {
		return domain.Dispute{}, err
	}
	if err := p.Transition(domain.ProductDisputed); err != nil {
		return domain.Dispute{}, err
	}
	d.Opener = opener
	d.EvidenceDigest = evidence
	d.OpenedAt = e.now().UTC()

	e.store.PutDispute(d)
	e.store.PutProduct(p)
	return d, nil
}

// ResolveDispute settles an open dispute. The verdict is fraud only when
// guilty is the manufacturer: up to amount of the manufacturer stake is
// forfeited, the rest and every distributor stake are returned, and the
// manufacturer is flagged. Any other guilty address, including zero, is an
// honest verdict: every stake is returned and the manufacturer is credited.
func (e *Escrow) ResolveDispute(ctx context.Context, caller domain.Address, productID string, guilty domain.Address, amount domain.Amount) (domain.Dispute, error) {
	if caller != e.admin {
		return domain.Dispute{}, domain.ErrNotAdmin
	}

	unlock := e.store.LockProduct(productID)
	defer unlock()

	p, ok := e.store.Product(productID)
	if !ok {
		return domain.Dispute{}, domain.ErrUnknownProduct
	}
	d := e.store.Dispute(productID)
	verdict := domain.DisputeResolvedHonest
	if !guilty.IsZero() && guilty == p.Manufacturer {
		verdict = domain.DisputeResolvedFraud
	}
	if err := d.Transition(verdict); err != nil {
		return domain.Dispute{}, err
	}
	if verdict == domain.DisputeResolvedFraud && amount == 0 {
		return domain.Dispute{}, domain.ErrInvalidAmount
	}

	stakes := e.store.Distributors(productID)
	payouts, forfeited := e.plan(p, stakes, verdict, amount)

	var update reputation.Update
	if verdict == domain.DisputeResolvedFraud {
		update.Flags = []domain.Address{p.Manufacturer}
	} else {
		update.Successes = []domain.Address{p.Manufacturer}
	}

	unlockFunds := e.store.LockFunds()
	defer unlockFunds()

	undoRep, err := e.rep.Apply(e.updater, update)
	if err != nil {
		return domain.Dispute{}, err
	}
	if err := ledger.PayOut(ctx, e.escrow.Ledger(), payouts); err != nil {
		undoRep()
		return domain.Dispute{}, err
	}

	if err := p.Transition(domain.ProductResolved); err != nil {
		// unreachable: an open dispute implies a disputed product
		return domain.Dispute{}, err
	}
	if verdict == domain.DisputeResolvedFraud {
		d.GuiltyParty = p.Manufacturer
	}
	d.ResolvedAmount = forfeited
	d.ResolvedAt = e.now().UTC()
	e.store.PutProduct(p)
	e.store.PutDispute(d)
	return d, nil
}

// plan returns the transfers for a verdict and the amount forfeited.
// Distributor stakes are always returned in full.
func (e *Escrow) plan(p domain.Product, stakes []domain.DistributorStake, verdict domain.DisputeStatus, amount domain.Amount) ([]ledger.Transfer, domain.Amount) {
	payouts := make([]ledger.Transfer, 0, 2+len(stakes))
	var forfeited domain.Amount
	back := p.ManufacturerStake
	if verdict == domain.DisputeResolvedFraud {
		forfeited = amount.Min(p.ManufacturerStake)
		back -= forfeited
	}
	payouts = append(payouts, ledger.Transfer{To: p.Manufacturer, Amount: back})
	for _, s := range stakes {
		payouts = append(payouts, ledger.Transfer{To: s.Distributor, Amount: s.Amount})
	}
	if forfeited > 0 && !e.sink.IsZero() {
		payouts = append(payouts, ledger.Transfer{To: e.sink, Amount: forfeited})
	}
	return payouts, forfeited
}

// Dispute returns the dispute record for a product. Products never disputed
// read as DisputeNone.
func (e *Escrow) Dispute(productID string) (domain.Dispute, error) {
	if _, ok := e.store.Product(productID); !ok {
		return domain.Dispute{}, domain.ErrUnknownProduct
	}
	return e.store.Dispute(productID), nil
}
