package settlement

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"
	"time"

	"xdao.co/trustchain/attest"
	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/escrow"
	"xdao.co/trustchain/identity"
	"xdao.co/trustchain/keys"
	"xdao.co/trustchain/ledger"
	"xdao.co/trustchain/reputation"
	"xdao.co/trustchain/state"
)

const (
	custody = domain.Address("escrow")
	admin   = domain.Address("admin")
	updater = domain.Address("module:settlement")
	maker   = domain.Address("maker")
	dist    = domain.Address("dist")
	funder  = domain.Address("treasury")
)

type failingLedger struct {
	*ledger.Custody
	failOut bool
}

func (f *failingLedger) TransferOut(ctx context.Context, to domain.Address, amount domain.Amount) error {
	if f.failOut && to == dist {
		return errors.New("rpc timeout")
	}
	return f.Custody.TransferOut(ctx, to, amount)
}

type harness struct {
	store  *state.Store
	token  *ledger.Token
	ledger *failingLedger
	escrow *escrow.Escrow
	rep    *reputation.Ledger
	ver    *attest.Verifier
	signer keys.Signer
	engine *Engine
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	store := state.New()
	ids := identity.New(store, clock)
	tok := ledger.NewToken()
	l := &failingLedger{Custody: tok.Custody(custody)}

	if _, err := ids.Register(maker, domain.RoleManufacturer); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := ids.Register(dist, domain.RoleDistributor); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for _, a := range []domain.Address{maker, dist, funder} {
		_ = tok.Mint(a, 1000)
		tok.Approve(a, custody, 1000)
	}

	signer, _ := keys.NewEd25519Signer(make([]byte, ed25519.SeedSize))
	ver := attest.NewVerifier(attest.DefaultDomain(1, "escrow"), admin, clock)
	if err := ver.AuthorizeAttestor(admin, signer.IssuerKey()); err != nil {
		t.Fatalf("AuthorizeAttestor: %v", err)
	}
	rep := reputation.New(store, admin, clock)
	if err := rep.AuthorizeUpdater(admin, updater); err != nil {
		t.Fatalf("AuthorizeUpdater: %v", err)
	}
	esc := escrow.New(store, ids, l, clock)
	return &harness{
		store: store, token: tok, ledger: l, escrow: esc, rep: rep, ver: ver, signer: signer,
		engine: New(store, esc, rep, admin, updater, clock),
		now:    now,
	}
}

// stake creates p with manufacturer 100 and distributor 50 and records score.
func (h *harness) stake(t *testing.T, id string, score uint64) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.escrow.CreateProduct(ctx, maker, escrow.CreateProductRequest{ProductID: id, Amount: 100, ExternalLocator: "ual"}); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if _, err := h.escrow.JoinAsDistributor(ctx, dist, id, 50); err != nil {
		t.Fatalf("JoinAsDistributor: %v", err)
	}
	if score > attest.MaxScore {
		return
	}
	env, err := attest.Sign(h.ver.Domain(), attest.TrustReport{ProductID: id, Score: score, Deadline: uint64(h.now.Unix() + 60)}, h.signer, "")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	vr, err := h.ver.Verify(env)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if _, err := h.escrow.RecordScore(vr, ""); err != nil {
		t.Fatalf("RecordScore: %v", err)
	}
}

func (h *harness) fund(t *testing.T, amount domain.Amount) {
	t.Helper()
	if err := h.escrow.FundRewardPool(context.Background(), funder, amount); err != nil {
		t.Fatalf("FundRewardPool: %v", err)
	}
}

func TestTierFor(t *testing.T) {
	cases := map[uint8]Tier{100: TierHigh, 90: TierHigh, 89: TierMedium, 75: TierMedium, 74: TierLow, 0: TierLow}
	for score, want := range cases {
		if got := TierFor(score); got != want {
			t.Fatalf("TierFor(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestHighTrustPaysBonus(t *testing.T) {
	h := newHarness(t)
	h.stake(t, "p1", 95)
	h.fund(t, 25)
	mBefore, dBefore := h.token.Balance(maker), h.token.Balance(dist)

	out, err := h.engine.DistributeRewards(context.Background(), admin, "p1")
	if err != nil {
		t.Fatalf("DistributeRewards: %v", err)
	}
	if out.Tier != TierHigh || out.Bonus != 25 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if got := h.token.Balance(maker) - mBefore; got != 120 {
		t.Fatalf("manufacturer gained %d, want 120", got)
	}
	if got := h.token.Balance(dist) - dBefore; got != 55 {
		t.Fatalf("distributor gained %d, want 55", got)
	}
	p, _ := h.escrow.ProductMeta("p1")
	if !p.RewardsDistributed() || p.IsActive() {
		t.Fatalf("unexpected product state %s", p.State)
	}
	if r := h.rep.Reputation(maker); r.SuccessfulProducts != 1 {
		t.Fatalf("expected manufacturer success, got %+v", r)
	}
	if r := h.rep.Reputation(dist); r.SuccessfulProducts != 1 {
		t.Fatalf("expected distributor success, got %+v", r)
	}
	sh, _ := h.store.Stakeholder(maker)
	if sh.TotalRewards != 20 {
		t.Fatalf("expected totalRewards 20, got %d", sh.TotalRewards)
	}
	if h.token.Balance(custody) != 0 {
		t.Fatalf("expected custody drained, got %d", h.token.Balance(custody))
	}

	if _, err := h.engine.DistributeRewards(context.Background(), admin, "p1"); !errors.Is(err, domain.ErrAlreadySettled) {
		t.Fatalf("expected ALREADY_SETTLED, got %v", err)
	}
}

func TestMediumTrustReturnsStakes(t *testing.T) {
	h := newHarness(t)
	h.stake(t, "p1", 80)
	mBefore, dBefore := h.token.Balance(maker), h.token.Balance(dist)
	if _, err := h.engine.DistributeRewards(context.Background(), admin, "p1"); err != nil {
		t.Fatalf("DistributeRewards: %v", err)
	}
	if got := h.token.Balance(maker) - mBefore; got != 100 {
		t.Fatalf("manufacturer gained %d, want 100", got)
	}
	if got := h.token.Balance(dist) - dBefore; got != 50 {
		t.Fatalf("distributor gained %d, want 50", got)
	}
}

func TestLowTrustHolds(t *testing.T) {
	h := newHarness(t)
	h.stake(t, "p1", 70)
	mBefore, dBefore := h.token.Balance(maker), h.token.Balance(dist)
	out, err := h.engine.DistributeRewards(context.Background(), admin, "p1")
	if err != nil {
		t.Fatalf("DistributeRewards: %v", err)
	}
	if out.Tier != TierLow || out.State != domain.ProductHeld {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if h.token.Balance(maker) != mBefore || h.token.Balance(dist) != dBefore {
		t.Fatalf("low tier moved funds")
	}
	p, _ := h.escrow.ProductMeta("p1")
	if p.RewardsDistributed() || !p.IsActive() {
		t.Fatalf("unexpected held product: %+v", p)
	}
	if r := h.rep.Reputation(maker); r.SuccessfulProducts != 0 || r.FlaggedProducts != 0 {
		t.Fatalf("low tier changed reputation: %+v", r)
	}
	if _, err := h.engine.DistributeRewards(context.Background(), admin, "p1"); !errors.Is(err, domain.ErrProductHeld) {
		t.Fatalf("expected PRODUCT_HELD, got %v", err)
	}
}

func TestInsufficientPoolPaysNothing(t *testing.T) {
	h := newHarness(t)
	h.stake(t, "p1", 99)
	h.fund(t, 24)
	custodyBefore := h.token.Balance(custody)
	if _, err := h.engine.DistributeRewards(context.Background(), admin, "p1"); !errors.Is(err, domain.ErrInsufficientRewardPool) {
		t.Fatalf("expected INSUFFICIENT_REWARD_POOL, got %v", err)
	}
	if h.token.Balance(custody) != custodyBefore {
		t.Fatalf("partial payout happened")
	}
	p, _ := h.escrow.ProductMeta("p1")
	if p.State != domain.ProductScored {
		t.Fatalf("expected product still scored, got %s", p.State)
	}
	if r := h.rep.Reputation(maker); r.SuccessfulProducts != 0 {
		t.Fatalf("failed settlement changed reputation")
	}
}

func TestOtherProductStakesNeverFundBonus(t *testing.T) {
	h := newHarness(t)
	h.stake(t, "p1", 95)
	h.stake(t, "p2", 101) // no score; its 150 stays held
	if _, err := h.engine.DistributeRewards(context.Background(), admin, "p1"); !errors.Is(err, domain.ErrInsufficientRewardPool) {
		t.Fatalf("expected INSUFFICIENT_REWARD_POOL, got %v", err)
	}
}

func TestLedgerFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.stake(t, "p1", 95)
	h.fund(t, 25)
	h.ledger.failOut = true
	mBefore := h.token.Balance(maker)

	_, err := h.engine.DistributeRewards(context.Background(), admin, "p1")
	if domain.CodeOf(err) != domain.CodeLedgerFailure {
		t.Fatalf("expected LEDGER_FAILURE, got %v", err)
	}
	if h.token.Balance(maker) != mBefore {
		t.Fatalf("manufacturer payout not reversed")
	}
	p, _ := h.escrow.ProductMeta("p1")
	if p.State != domain.ProductScored {
		t.Fatalf("expected product still scored, got %s", p.State)
	}
	if r := h.rep.Reputation(maker); r.SuccessfulProducts != 0 {
		t.Fatalf("reputation not restored: %+v", r)
	}
	sh, _ := h.store.Stakeholder(maker)
	if sh.TotalRewards != 0 {
		t.Fatalf("totalRewards changed: %d", sh.TotalRewards)
	}

	h.ledger.failOut = false
	if _, err := h.engine.DistributeRewards(context.Background(), admin, "p1"); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
}

func TestPreconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.engine.DistributeRewards(ctx, maker, "p1"); !errors.Is(err, domain.ErrNotAdmin) {
		t.Fatalf("expected NOT_ADMIN, got %v", err)
	}
	if _, err := h.engine.DistributeRewards(ctx, admin, "p1"); !errors.Is(err, domain.ErrUnknownProduct) {
		t.Fatalf("expected UNKNOWN_PRODUCT, got %v", err)
	}
	h.stake(t, "p1", 101)
	if _, err := h.engine.DistributeRewards(ctx, admin, "p1"); !errors.Is(err, domain.ErrNoScoreYet) {
		t.Fatalf("expected NO_SCORE_YET, got %v", err)
	}
}

func TestConcurrentSettlementPaysOnce(t *testing.T) {
	h := newHarness(t)
	h.stake(t, "p1", 95)
	h.fund(t, 500)
	mBefore := h.token.Balance(maker)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.engine.DistributeRewards(context.Background(), admin, "p1"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one settlement, got %d", wins)
	}
	if got := h.token.Balance(maker) - mBefore; got != 120 {
		t.Fatalf("manufacturer gained %d, want 120", got)
	}
}
