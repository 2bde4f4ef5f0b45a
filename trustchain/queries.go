package trustchain

import (
	"bytes"
	"context"
	"io"

	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/journal"
	"xdao.co/trustchain/storage/bundle"
)

func (s *System) Stakeholder(addr domain.Address) (domain.Stakeholder, error) {
	return s.ids.Stakeholder(addr)
}

func (s *System) ProductMeta(id string) (domain.Product, error) { return s.escrow.ProductMeta(id) }

func (s *System) Distributors(id string) ([]domain.DistributorStake, error) {
	return s.escrow.Distributors(id)
}

func (s *System) DKGBinding(id string) (domain.DKGBinding, error) { return s.escrow.DKGBinding(id) }

func (s *System) VerifyDKGAsset(id string) bool { return s.escrow.VerifyDKGAsset(id) }

func (s *System) Products() []string { return s.escrow.Products() }

func (s *System) Dispute(id string) (domain.Dispute, error) { return s.disputes.Dispute(id) }

func (s *System) Reputation(addr domain.Address) domain.ReputationRecord {
	return s.rep.Reputation(addr)
}

func (s *System) RewardPool(ctx context.Context) (domain.Amount, error) {
	return s.escrow.RewardPool(ctx)
}

func (s *System) Attestors() []string { return s.verifier.Attestors() }

func (s *System) Updaters() []domain.Address { return s.rep.Updaters() }

// History returns the audit entries matching f.
func (s *System) History(ctx context.Context, f journal.Filter) ([]journal.Entry, error) {
	return s.journal.List(ctx, f)
}

// ExportBundle writes the archived report and dispute evidence of a product
// as a deterministic TAR bundle. Evidence digests that do not name an
// archived blob are left out.
func (s *System) ExportBundle(ctx context.Context, w io.Writer, productID string) (err error) {
	ctx, span := s.start(ctx, "ExportBundle", product(productID))
	defer func() { finish(span, err) }()

	p, err := s.escrow.ProductMeta(productID)
	if err != nil {
		return err
	}
	m := bundle.Manifest{ProductID: p.ID, Labels: map[string]string{}}
	if p.ReportCID != "" {
		m.Labels["report"] = p.ReportCID
	}
	if d, derr := s.disputes.Dispute(productID); derr == nil && d.EvidenceDigest != "" {
		if ok, herr := s.archive.Has(ctx, d.EvidenceDigest); herr == nil && ok {
			m.Labels["evidence"] = d.EvidenceDigest
		}
	}

	// Buffer so a failed export writes nothing.
	var buf bytes.Buffer
	if err := bundle.Export(ctx, &buf, s.archive.CAS(), m); err != nil {
		return domain.WrapError(domain.CodeArchiveFailure, "export bundle", err)
	}
	_, err = io.Copy(w, &buf)
	return err
}
