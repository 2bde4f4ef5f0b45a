package attest

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/keys"
)

// VerifiedReport is a report that passed every check. Only a Verifier can
// produce one.
type VerifiedReport struct {
	env    Envelope
	digest [32]byte
	at     time.Time
}

func (v VerifiedReport) ProductID() string                 { return v.env.Report.ProductID }
func (v VerifiedReport) Score() uint8                      { return uint8(v.env.Report.Score) }
func (v VerifiedReport) AnomaliesDigest() domain.Digest    { return v.env.Report.AnomaliesDigest }
func (v VerifiedReport) VerificationDigest() domain.Digest { return v.env.Report.VerificationDigest }
func (v VerifiedReport) Issuer() string                    { return v.env.IssuerKey }
func (v VerifiedReport) Envelope() Envelope                { return v.env }
func (v VerifiedReport) VerifiedAt() time.Time             { return v.at }
func (v VerifiedReport) Digest() domain.Digest             { return domain.Digest(v.digest) }
func (v VerifiedReport) Deadline() time.Time               { return time.Unix(int64(v.env.Report.Deadline), 0).UTC() }
func (v VerifiedReport) IsZero() bool                      { return v.env.IssuerKey == "" }

// Verifier checks envelopes against an admin-managed attestor allow-list.
type Verifier struct {
	domain Domain
	admin  domain.Address
	now    func() time.Time

	mu        sync.RWMutex
	attestors map[string]struct{}
}

// NewVerifier returns a verifier for d administered by admin. now defaults to
// time.Now.
func NewVerifier(d Domain, admin domain.Address, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{domain: d, admin: admin, now: now, attestors: make(map[string]struct{})}
}

func (v *Verifier) Domain() Domain { return v.domain }

func (v *Verifier) Admin() domain.Address { return v.admin }

// AuthorizeAttestor adds issuerKey to the allow-list. Adding a key that is
// already present is a no-op.
func (v *Verifier) AuthorizeAttestor(caller domain.Address, issuerKey string) error {
	if caller != v.admin {
		return domain.ErrNotAdmin
	}
	if _, _, err := keys.ParseIssuerKey(issuerKey); err != nil {
		return domain.WrapError(domain.CodeInvalidAddress, "invalid attestor key", err)
	}
	v.mu.Lock()
	v.attestors[issuerKey] = struct{}{}
	v.mu.Unlock()
	return nil
}

// RevokeAttestor removes issuerKey. Revoking an unknown key is a no-op.
func (v *Verifier) RevokeAttestor(caller domain.Address, issuerKey string) error {
	if caller != v.admin {
		return domain.ErrNotAdmin
	}
	v.mu.Lock()
	delete(v.attestors, issuerKey)
	v.mu.Unlock()
	return nil
}

func (v *Verifier) IsAttestor(issuerKey string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.attestors[issuerKey]
	return ok
}

// Attestors lists authorized issuer keys in sorted order.
func (v *Verifier) Attestors() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.attestors))
	for k := range v.attestors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Verify runs the checks in order: authorized signer, deadline, signature,
// score range. It never mutates state.
func (v *Verifier) Verify(env Envelope) (VerifiedReport, error) {
	if !v.IsAttestor(env.IssuerKey) {
		return VerifiedReport{}, domain.ErrNotAttestor
	}

	now := v.now()
	if now.Unix() < 0 || uint64(now.Unix()) > env.Report.Deadline {
		return VerifiedReport{}, domain.NewError(domain.CodeReportExpired,
			fmt.Sprintf("report deadline %d passed at %d", env.Report.Deadline, now.Unix()))
	}

	msg := SigningMessage(v.domain, env.Report)
	if err := keys.Verify(env.IssuerKey, env.SignatureAlg, env.HashAlg, msg, env.Signature); err != nil {
		if errors.Is(err, keys.ErrSignatureInvalid) {
			return VerifiedReport{}, domain.ErrBadSignature
		}
		return VerifiedReport{}, domain.WrapError(domain.CodeBadSignature, "signature check failed", err)
	}

	if env.Report.Score > MaxScore {
		return VerifiedReport{}, domain.NewError(domain.CodeScoreOutOfRange,
			fmt.Sprintf("score %d exceeds %d", env.Report.Score, MaxScore))
	}
	if env.Report.ProductID == "" {
		return VerifiedReport{}, domain.ErrEmptyProductID
	}

	return VerifiedReport{env: env, digest: ReportDigest(v.domain, env.Report), at: now}, nil
}
