package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"xdao.co/trustchain/attest"
	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/escrow"
	"xdao.co/trustchain/keys"
	"xdao.co/trustchain/ledger"
	"xdao.co/trustchain/trustchain"
)

const simBalance domain.Amount = 10_000

// simulation runs one product through the full lifecycle against an
// in-memory ledger and archive.
type simulation struct {
	sys    *trustchain.System
	token  *ledger.Token
	signer keys.Signer
	out    io.Writer

	admin, custody, maker, carrier, funder domain.Address
}

func cmdSimulate(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(errOut)
	score := fs.Uint64("score", 95, "Trust score reported for the product")
	stake := fs.Uint64("stake", 100, "Manufacturer stake")
	carrierStake := fs.Uint64("distributor-stake", 50, "Distributor stake")
	pool := fs.Uint64("pool", 1_000, "Reward pool funding")
	fraud := fs.Bool("fraud", false, "For held products, find the manufacturer guilty")
	forfeit := fs.Uint64("forfeit", 60, "Amount forfeited on a fraud verdict")
	sink := fs.String("penalty-sink", "", "Send forfeited stake to this address")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	s, err := newSimulation(out, domain.Address(*sink))
	if err != nil {
		fmt.Fprintf(errOut, "simulate: %v\n", err)
		return 1
	}
	if err := s.run(context.Background(), *score, domain.Amount(*stake), domain.Amount(*carrierStake),
		domain.Amount(*pool), *fraud, domain.Amount(*forfeit)); err != nil {
		fmt.Fprintf(errOut, "simulate: %v\n", err)
		return 1
	}
	return 0
}

func newSimulation(out io.Writer, sink domain.Address) (*simulation, error) {
	signer, err := keys.NewEd25519Signer(bytes.Repeat([]byte{0x5a}, 32))
	if err != nil {
		return nil, err
	}
	s := &simulation{
		token:   ledger.NewToken(),
		signer:  signer,
		out:     out,
		admin:   "sim:admin",
		custody: "sim:custody",
		maker:   "sim:manufacturer",
		carrier: "sim:distributor",
		funder:  "sim:funder",
	}
	s.sys, err = trustchain.New(trustchain.Options{
		Domain:      attest.DefaultDomain(1, "trustchain-sim"),
		Admin:       s.admin,
		Ledger:      s.token.Custody(s.custody),
		PenaltySink: sink,
		Attestors:   []string{signer.IssuerKey()},
		OnRegister: func(_ context.Context, sh domain.Stakeholder) error {
			s.token.Approve(sh.Address, s.custody, simBalance)
			return s.token.Mint(sh.Address, simBalance)
		},
	})
	return s, err
}

func (s *simulation) step(format string, args ...any) {
	fmt.Fprintf(s.out, "-> "+format+"\n", args...)
}

func (s *simulation) run(ctx context.Context, score uint64, stake, carrierStake, pool domain.Amount, fraud bool, forfeit domain.Amount) error {
	const productID = "SIM-0001"
	for addr, role := range map[domain.Address]domain.Role{
		s.maker:   domain.RoleManufacturer,
		s.carrier: domain.RoleDistributor,
		s.funder:  domain.RoleRetailer,
	} {
		if _, err := s.sys.Register(ctx, addr, role); err != nil {
			return fmt.Errorf("register %s: %w", addr, err)
		}
	}
	s.step("registered %s, %s, %s", s.maker, s.carrier, s.funder)

	if _, err := s.sys.CreateProduct(ctx, s.maker, escrow.CreateProductRequest{
		ProductID:       productID,
		Amount:          stake,
		ExternalLocator: "did:dkg:sim/" + productID,
	}); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	s.step("manufacturer staked %s on %s", stake, productID)
	if _, err := s.sys.JoinAsDistributor(ctx, s.carrier, productID, carrierStake); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	s.step("distributor staked %s", carrierStake)
	if pool > 0 {
		if err := s.sys.FundRewardPool(ctx, s.funder, pool); err != nil {
			return fmt.Errorf("fund pool: %w", err)
		}
		s.step("reward pool funded with %s", pool)
	}

	env, err := attest.Sign(s.sys.Domain(), attest.TrustReport{
		ProductID: productID,
		Score:     score,
		Deadline:  uint64(time.Now().Add(time.Hour).Unix()),
	}, s.signer, keys.HashSHA256)
	if err != nil {
		return err
	}
	p, err := s.sys.ReportTrustScore(ctx, env)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	s.step("trust score %d recorded (report %s)", p.TrustScore, p.ReportCID)

	out, err := s.sys.DistributeRewards(ctx, s.admin, productID)
	if err != nil {
		return fmt.Errorf("distribute: %w", err)
	}
	s.step("settlement tier %s, bonus %s, product %s", out.Tier, out.Bonus, out.State)

	if out.State == domain.ProductHeld {
		ref, err := s.sys.SubmitEvidence(ctx, []byte("simulated inspection report for "+productID))
		if err != nil {
			return err
		}
		if _, err := s.sys.OpenDispute(ctx, s.carrier, productID, ref); err != nil {
			return fmt.Errorf("open dispute: %w", err)
		}
		s.step("dispute opened with evidence %s", ref)
		var guilty domain.Address
		if fraud {
			guilty = s.maker
		}
		d, err := s.sys.ResolveDispute(ctx, s.admin, productID, guilty, forfeit)
		if err != nil {
			return fmt.Errorf("resolve: %w", err)
		}
		s.step("dispute %s, forfeited %s", d.Status, d.ResolvedAmount)
	}

	fmt.Fprintln(s.out)
	for _, addr := range []domain.Address{s.maker, s.carrier, s.funder, s.custody} {
		r := s.sys.Reputation(addr)
		fmt.Fprintf(s.out, "%-18s balance=%-6s reputation=%d (%s)\n", addr, s.token.Balance(addr), r.Score(), r.Level())
	}
	rp, err := s.sys.RewardPool(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "reward pool=%s\n", rp)
	return nil
}
