// Package trustchain wires the identity registry, custody ledger, report
// verifier, stake escrow, settlement engine, dispute escrow and reputation
// ledger around one shared state.Store.
//
// System is the surface used by the daemon, the HTTP API and the simulator.
// Every mutating call runs in its own span and, once committed, appends an
// entry to the audit journal. Journal failures never fail a committed call;
// they are logged.
package trustchain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"xdao.co/trustchain/attest"
	"xdao.co/trustchain/dispute"
	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/escrow"
	"xdao.co/trustchain/identity"
	"xdao.co/trustchain/journal"
	"xdao.co/trustchain/ledger"
	"xdao.co/trustchain/reputation"
	"xdao.co/trustchain/settlement"
	"xdao.co/trustchain/state"
	"xdao.co/trustchain/storage"
	"xdao.co/trustchain/storage/memcas"
	"xdao.co/trustchain/telemetry"
)

// Reputation identities the settlement engine and dispute escrow record
// outcomes under.
const (
	SettlementUpdater domain.Address = "module:settlement"
	DisputeUpdater    domain.Address = "module:dispute"
)

// Options configures New. Ledger and Admin are required.
type Options struct {
	Domain      attest.Domain
	Admin       domain.Address
	Ledger      ledger.Ledger
	PenaltySink domain.Address
	// Attestors are issuer keys authorized at startup.
	Attestors []string

	// CAS defaults to an in-memory store.
	CAS storage.CAS
	// Journal defaults to an in-memory journal.
	Journal journal.Journal
	Logger  *log.Logger
	Now     func() time.Time
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider

	// OnRegister runs after a stakeholder is committed. Dev deployments use
	// it to fund new accounts.
	OnRegister func(ctx context.Context, sh domain.Stakeholder) error
}

// System is the assembled trust economy.
type System struct {
	store      *state.Store
	ids        *identity.Registry
	ledger     ledger.Ledger
	verifier   *attest.Verifier
	escrow     *escrow.Escrow
	rep        *reputation.Ledger
	settlement *settlement.Engine
	disputes   *dispute.Escrow
	archive    *storage.Archive
	journal    journal.Journal

	admin      domain.Address
	logger     *log.Logger
	tracer     trace.Tracer
	now        func() time.Time
	onRegister func(context.Context, domain.Stakeholder) error
}

func New(opts Options) (*System, error) {
	if opts.Ledger == nil {
		return nil, errors.New("trustchain: ledger is required")
	}
	if opts.Admin.IsZero() {
		return nil, fmt.Errorf("trustchain: admin: %w", domain.ErrInvalidAddress)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cas := opts.CAS
	if cas == nil {
		cas = memcas.New()
	}
	j := opts.Journal
	if j == nil {
		j = journal.NewMemory()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	store := state.New()
	ids := identity.New(store, now)
	esc := escrow.New(store, ids, opts.Ledger, now)
	rep := reputation.New(store, opts.Admin, now)
	for _, u := range []domain.Address{SettlementUpdater, DisputeUpdater} {
		if err := rep.AuthorizeUpdater(opts.Admin, u); err != nil {
			return nil, fmt.Errorf("trustchain: authorize %s: %w", u, err)
		}
	}
	verifier := attest.NewVerifier(opts.Domain, opts.Admin, now)
	for _, key := range opts.Attestors {
		if err := verifier.AuthorizeAttestor(opts.Admin, key); err != nil {
			return nil, fmt.Errorf("trustchain: attestor %q: %w", key, err)
		}
	}

	return &System{
		store:      store,
		ids:        ids,
		ledger:     opts.Ledger,
		verifier:   verifier,
		escrow:     esc,
		rep:        rep,
		settlement: settlement.New(store, esc, rep, opts.Admin, SettlementUpdater, now),
		disputes: dispute.New(store, esc, rep, opts.Admin, DisputeUpdater,
			dispute.WithPenaltySink(opts.PenaltySink), dispute.WithClock(now)),
		archive:    storage.NewArchive(cas),
		journal:    j,
		admin:      opts.Admin,
		logger:     opts.Logger,
		tracer:     tp.Tracer(telemetry.TracerName),
		now:        now,
		onRegister: opts.OnRegister,
	}, nil
}

func (s *System) Admin() domain.Address     { return s.admin }
func (s *System) Domain() attest.Domain     { return s.verifier.Domain() }
func (s *System) Ledger() ledger.Ledger     { return s.ledger }
func (s *System) Archive() *storage.Archive { return s.archive }

func (s *System) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "trustchain."+op, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := domain.CodeOf(err); code != "" {
			span.SetAttributes(attribute.String("trustchain.error_code", string(code)))
		}
	}
	span.End()
}

func product(id string) attribute.KeyValue { return attribute.String("trustchain.product_id", id) }

// amountAttr records the amount as a decimal string; amounts may exceed int64.
func amountAttr(a domain.Amount) attribute.KeyValue {
	return attribute.String("trustchain.amount", a.String())
}

func caller(addr domain.Address) attribute.KeyValue {
	return attribute.String("trustchain.caller", addr.String())
}

// record appends a journal entry for a committed transition.
func (s *System) record(ctx context.Context, action string, actor domain.Address, target string, detail any) {
	e, err := journal.NewEntry(action, actor.String(), target, detail, s.now())
	if err == nil {
		err = s.journal.Append(context.WithoutCancel(ctx), e)
	}
	if err != nil && s.logger != nil {
		s.logger.Printf("journal %s %s: %v", action, target, err)
	}
}

// Register enrolls caller under role.
func (s *System) Register(ctx context.Context, addr domain.Address, role domain.Role) (sh domain.Stakeholder, err error) {
	ctx, span := s.start(ctx, "Register", caller(addr), attribute.String("trustchain.role", role.String()))
	defer func() { finish(span, err) }()

	sh, err = s.ids.Register(addr, role)
	if err != nil {
		return domain.Stakeholder{}, err
	}
	s.record(ctx, journal.ActionRegister, addr, addr.String(), map[string]string{"role": role.String()})
	if s.onRegister != nil {
		if herr := s.onRegister(ctx, sh); herr != nil && s.logger != nil {
			s.logger.Printf("register hook %s: %v", addr, herr)
		}
	}
	return sh, nil
}

// CreateProduct stakes a new product for a registered manufacturer.
func (s *System) CreateProduct(ctx context.Context, from domain.Address, req escrow.CreateProductRequest) (p domain.Product, err error) {
	ctx, span := s.start(ctx, "CreateProduct", caller(from), product(req.ProductID),
		amountAttr(req.Amount))
	defer func() { finish(span, err) }()

	p, err = s.escrow.CreateProduct(ctx, from, req)
	if err != nil {
		return domain.Product{}, err
	}
	s.record(ctx, journal.ActionCreateProduct, from, p.ID, map[string]any{
		"amount":          p.ManufacturerStake,
		"externalLocator": req.ExternalLocator,
		"contentDigest":   req.ContentDigest,
	})
	return p, nil
}

// JoinAsDistributor adds a distributor stake to an open product.
func (s *System) JoinAsDistributor(ctx context.Context, from domain.Address, productID string, amount domain.Amount) (stake domain.DistributorStake, err error) {
	ctx, span := s.start(ctx, "JoinAsDistributor", caller(from), product(productID),
		amountAttr(amount))
	defer func() { finish(span, err) }()

	stake, err = s.escrow.JoinAsDistributor(ctx, from, productID, amount)
	if err != nil {
		return domain.DistributorStake{}, err
	}
	s.record(ctx, journal.ActionJoinDistributor, from, productID, map[string]any{"amount": amount})
	return stake, nil
}

// ReportTrustScore verifies a signed report, archives its canonical envelope
// and records the score on the product. Nothing is recorded if verification
// or archiving fails.
func (s *System) ReportTrustScore(ctx context.Context, env attest.Envelope) (p domain.Product, err error) {
	ctx, span := s.start(ctx, "ReportTrustScore", product(env.Report.ProductID),
		attribute.String("trustchain.issuer", env.IssuerKey))
	defer func() { finish(span, err) }()

	vr, err := s.verifier.Verify(env)
	if err != nil {
		return domain.Product{}, err
	}
	if _, err := s.escrow.ProductMeta(vr.ProductID()); err != nil {
		return domain.Product{}, err
	}
	canonical, err := env.Canonical()
	if err != nil {
		return domain.Product{}, domain.WrapError(domain.CodeMalformedReport, "encode envelope", err)
	}
	ref, err := s.archive.Put(ctx, canonical)
	if err != nil {
		return domain.Product{}, domain.WrapError(domain.CodeArchiveFailure, "archive report", err)
	}
	p, err = s.escrow.RecordScore(vr, ref)
	if err != nil {
		return domain.Product{}, err
	}
	s.record(ctx, journal.ActionRecordScore, domain.Address(vr.Issuer()), p.ID, map[string]any{
		"score":  p.TrustScore,
		"report": ref,
		"digest": vr.Digest().String(),
	})
	return p, nil
}

// DistributeRewards settles a scored product. Only the admin may call it.
func (s *System) DistributeRewards(ctx context.Context, from domain.Address, productID string) (out settlement.Outcome, err error) {
	ctx, span := s.start(ctx, "DistributeRewards", caller(from), product(productID))
	defer func() { finish(span, err) }()

	out, err = s.settlement.DistributeRewards(ctx, from, productID)
	if err != nil {
		return settlement.Outcome{}, err
	}
	span.SetAttributes(attribute.String("trustchain.tier", out.Tier.String()))
	paid, _ := ledger.Total(out.Payouts)
	s.record(ctx, journal.ActionSettle, from, productID, map[string]any{
		"tier":  out.Tier,
		"paid":  paid,
		"bonus": out.Bonus,
		"state": out.State,
	})
	return out, nil
}

// FundRewardPool moves amount from funder into custody as bonus capital.
func (s *System) FundRewardPool(ctx context.Context, funder domain.Address, amount domain.Amount) (err error) {
	ctx, span := s.start(ctx, "FundRewardPool", caller(funder), amountAttr(amount))
	defer func() { finish(span, err) }()

	if err := s.escrow.FundRewardPool(ctx, funder, amount); err != nil {
		return err
	}
	s.record(ctx, journal.ActionFundPool, funder, "", map[string]any{"amount": amount})
	return nil
}

// SubmitEvidence archives raw dispute evidence and returns its CID, which
// callers pass to OpenDispute as the evidence digest.
func (s *System) SubmitEvidence(ctx context.Context, data []byte) (ref string, err error) {
	ctx, span := s.start(ctx, "SubmitEvidence", attribute.Int("trustchain.bytes", len(data)))
	defer func() { finish(span, err) }()

	if len(data) == 0 {
		return "", domain.ErrEmptyEvidence
	}
	ref, err = s.archive.Put(ctx, data)
	if err != nil {
		return "", domain.WrapError(domain.CodeArchiveFailure, "archive evidence", err)
	}
	return ref, nil
}

// Evidence loads an archived blob by CID.
func (s *System) Evidence(ctx context.Context, ref string) ([]byte, error) {
	b, err := s.archive.Get(ctx, ref)
	switch {
	case err == nil:
		return b, nil
	case errors.Is(err, storage.ErrInvalidCID):
		return nil, domain.WrapError(domain.CodeEmptyEvidence, "invalid evidence reference", err)
	case storage.IsNotFound(err):
		return nil, domain.WrapError(domain.CodeEvidenceNotFound, "evidence not found", err)
	default:
		return nil, domain.WrapError(domain.CodeArchiveFailure, "load evidence", err)
	}
}

// OpenDispute moves a held product into dispute.
func (s *System) OpenDispute(ctx context.Context, opener domain.Address, productID, evidence string) (d domain.Dispute, err error) {
	ctx, span := s.start(ctx, "OpenDispute", caller(opener), product(productID))
	defer func() { finish(span, err) }()

	d, err = s.disputes.OpenDispute(opener, productID, evidence)
	if err != nil {
		return domain.Dispute{}, err
	}
	s.record(ctx, journal.ActionOpenDispute, opener, productID, map[string]string{"evidence": evidence})
	return d, nil
}

// ResolveDispute settles an open dispute. A zero guilty address is an honest
// verdict.
func (s *System) ResolveDispute(ctx context.Context, from domain.Address, productID string, guilty domain.Address, amount domain.Amount) (d domain.Dispute, err error) {
	ctx, span := s.start(ctx, "ResolveDispute", caller(from), product(productID),
		attribute.String("trustchain.guilty", guilty.String()),
		amountAttr(amount))
	defer func() { finish(span, err) }()

	d, err = s.disputes.ResolveDispute(ctx, from, productID, guilty, amount)
	if err != nil {
		return domain.Dispute{}, err
	}
	s.record(ctx, journal.ActionResolveDispute, from, productID, map[string]any{
		"status":    d.Status,
		"guilty":    d.GuiltyParty,
		"forfeited": d.ResolvedAmount,
	})
	return d, nil
}

// AuthorizeAttestor adds an issuer key to the verifier allow-list.
func (s *System) AuthorizeAttestor(ctx context.Context, from domain.Address, issuerKey string) error {
	if err := s.verifier.AuthorizeAttestor(from, issuerKey); err != nil {
		return err
	}
	s.record(ctx, journal.ActionAttestor, from, issuerKey, map[string]bool{"authorized": true})
	return nil
}

func (s *System) RevokeAttestor(ctx context.Context, from domain.Address, issuerKey string) error {
	if err := s.verifier.RevokeAttestor(from, issuerKey); err != nil {
		return err
	}
	s.record(ctx, journal.ActionAttestor, from, issuerKey, map[string]bool{"authorized": false})
	return nil
}

// AuthorizeUpdater allows updater to record reputation outcomes.
func (s *System) AuthorizeUpdater(ctx context.Context, from, updater domain.Address) error {
	if err := s.rep.AuthorizeUpdater(from, updater); err != nil {
		return err
	}
	s.record(ctx, journal.ActionUpdater, from, updater.String(), map[string]bool{"authorized": true})
	return nil
}

func (s *System) RevokeUpdater(ctx context.Context, from, updater domain.Address) error {
	if err := s.rep.RevokeUpdater(from, updater); err != nil {
		return err
	}
	s.record(ctx, journal.ActionUpdater, from, updater.String(), map[string]bool{"authorized": false})
	return nil
}
