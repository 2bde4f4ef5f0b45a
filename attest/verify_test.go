package attest

import (
	"crypto/ed25519"
	"strings"
	"testing"
	"time"

	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/keys"
)

const admin = domain.Address("admin")

func seed(b byte) []byte {
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = b + byte(i)
	}
	return s
}

func fixture(t *testing.T) (*Verifier, keys.Signer, time.Time) {
	t.Helper()
	now := time.Unix(1_700_000_000, 0)
	v := NewVerifier(DefaultDomain(31337, "escrow-1"), admin, func() time.Time { return now })
	signer, err := keys.NewEd25519Signer(seed(1))
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	if err := v.AuthorizeAttestor(admin, signer.IssuerKey()); err != nil {
		t.Fatalf("AuthorizeAttestor: %v", err)
	}
	return v, signer, now
}

func report(now time.Time, score uint64) TrustReport {
	return TrustReport{
		ProductID:          "prod-1",
		Score:              score,
		AnomaliesDigest:    domain.Digest{1},
		VerificationDigest: domain.Digest{2},
		Deadline:           uint64(now.Add(time.Hour).Unix()),
	}
}

func TestVerifyAcceptsValidReport(t *testing.T) {
	v, signer, now := fixture(t)
	for _, h := range []string{keys.HashSHA256, keys.HashSHA512, keys.HashSHA3_256} {
		env, err := Sign(v.Domain(), report(now, 95), signer, h)
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		vr, err := v.Verify(env)
		if err != nil {
			t.Fatalf("Verify(%s): %v", h, err)
		}
		if vr.ProductID() != "prod-1" || vr.Score() != 95 || vr.Issuer() != signer.IssuerKey() {
			t.Fatalf("unexpected verified report: %+v", vr.Envelope())
		}
		if vr.Digest() != domain.Digest(ReportDigest(v.Domain(), env.Report)) {
			t.Fatalf("digest mismatch")
		}
	}
}

func TestVerifyDeadlineInclusive(t *testing.T) {
	v, signer, now := fixture(t)
	r := report(now, 50)
	r.Deadline = uint64(now.Unix())
	env, _ := Sign(v.Domain(), r, signer, "")
	if _, err := v.Verify(env); err != nil {
		t.Fatalf("report expiring this second should verify: %v", err)
	}
}

func TestVerifyRejectsExpiredEvenWhenSigned(t *testing.T) {
	v, signer, now := fixture(t)
	r := report(now, 50)
	r.Deadline = uint64(now.Add(-time.Second).Unix())
	env, err := Sign(v.Domain(), r, signer, "")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := v.Verify(env); domain.CodeOf(err) != domain.CodeReportExpired {
		t.Fatalf("expected REPORT_EXPIRED, got %v", err)
	}
}

func TestVerifyRejectsCrossDomainReplay(t *testing.T) {
	v, signer, now := fixture(t)
	cases := []Domain{
		DefaultDomain(1, "escrow-1"),
		DefaultDomain(31337, "escrow-2"),
		{Name: "AIScoreOracle", Version: "2", ChainID: 31337, VerifyingModule: "escrow-1"},
	}
	for _, other := range cases {
		env, err := Sign(other, report(now, 95), signer, "")
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		if _, err := v.Verify(env); domain.CodeOf(err) != domain.CodeBadSignature {
			t.Fatalf("domain %+v: expected BAD_SIGNATURE, got %v", other, err)
		}
	}
}

func TestVerifyRejectsTamperedField(t *testing.T) {
	v, signer, now := fixture(t)
	env, _ := Sign(v.Domain(), report(now, 60), signer, "")
	env.Report.Score = 99
	if _, err := v.Verify(env); domain.CodeOf(err) != domain.CodeBadSignature {
		t.Fatalf("expected BAD_SIGNATURE, got %v", err)
	}

	env, _ = Sign(v.Domain(), report(now, 60), signer, "")
	env.Signature = strings.Repeat("A", 10)
	if _, err := v.Verify(env); domain.CodeOf(err) != domain.CodeBadSignature {
		t.Fatalf("expected BAD_SIGNATURE for garbage signature, got %v", err)
	}
}

func TestVerifyRejectsScoreOutOfRange(t *testing.T) {
	v, signer, now := fixture(t)
	env, _ := Sign(v.Domain(), report(now, 101), signer, "")
	if _, err := v.Verify(env); domain.CodeOf(err) != domain.CodeScoreOutOfRange {
		t.Fatalf("expected SCORE_OUT_OF_RANGE, got %v", err)
	}
}

func TestVerifyRejectsUnauthorizedSigner(t *testing.T) {
	v, _, now := fixture(t)
	rogue, _ := keys.NewEd25519Signer(seed(9))
	env, _ := Sign(v.Domain(), report(now, 95), rogue, "")
	if _, err := v.Verify(env); domain.CodeOf(err) != domain.CodeNotAttestor {
		t.Fatalf("expected NOT_ATTESTOR, got %v", err)
	}
}

func TestAttestorCheckPrecedesDeadline(t *testing.T) {
	v, signer, now := fixture(t)
	r := report(now, 95)
	r.Deadline = 0
	env, _ := Sign(v.Domain(), r, signer, "")
	if err := v.RevokeAttestor(admin, signer.IssuerKey()); err != nil {
		t.Fatalf("RevokeAttestor: %v", err)
	}
	if _, err := v.Verify(env); domain.CodeOf(err) != domain.CodeNotAttestor {
		t.Fatalf("expected NOT_ATTESTOR before expiry check, got %v", err)
	}
}

func TestAttestorAllowListIsAdminOnlyAndIdempotent(t *testing.T) {
	v, signer, _ := fixture(t)
	if err := v.AuthorizeAttestor("mallory", signer.IssuerKey()); domain.CodeOf(err) != domain.CodeNotAdmin {
		t.Fatalf("expected NOT_ADMIN, got %v", err)
	}
	if err := v.AuthorizeAttestor(admin, signer.IssuerKey()); err != nil {
		t.Fatalf("re-authorize should be a no-op: %v", err)
	}
	if got := v.Attestors(); len(got) != 1 {
		t.Fatalf("expected one attestor, got %v", got)
	}
	if err := v.RevokeAttestor(admin, "ed25519:unknown"); err != nil {
		t.Fatalf("revoking unknown key should be a no-op: %v", err)
	}
	if err := v.AuthorizeAttestor(admin, "not-a-key"); err == nil {
		t.Fatalf("expected malformed key to be rejected")
	}
}

func TestDilithium3Attestor(t *testing.T) {
	v, _, now := fixture(t)
	pq, err := keys.NewDilithium3Signer(seed(3))
	if err != nil {
		t.Fatalf("NewDilithium3Signer: %v", err)
	}
	if err := v.AuthorizeAttestor(admin, pq.IssuerKey()); err != nil {
		t.Fatalf("AuthorizeAttestor: %v", err)
	}
	env, err := Sign(v.Domain(), report(now, 91), pq, keys.HashSHA3_256)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := v.Verify(env); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	v, signer, now := fixture(t)
	env, _ := Sign(v.Domain(), report(now, 77), signer, "")
	b, err := env.Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	got, err := ParseEnvelopeBytes(b)
	if err != nil {
		t.Fatalf("ParseEnvelopeBytes: %v", err)
	}
	if got != env {
		t.Fatalf("round trip mismatch")
	}
	if _, err := ParseEnvelopeBytes([]byte(`{"report":{},"extra":1}`)); domain.CodeOf(err) != domain.CodeMalformedReport {
		t.Fatalf("expected MALFORMED_REPORT, got %v", err)
	}
}

func TestStructHashCoversEveryField(t *testing.T) {
	base := report(time.Unix(0, 0), 10)
	h := StructHash(base)
	mut := []func(*TrustReport){
		func(r *TrustReport) { r.ProductID = "prod-2" },
		func(r *TrustReport) { r.Score = 11 },
		func(r *TrustReport) { r.AnomaliesDigest[0] ^= 1 },
		func(r *TrustReport) { r.VerificationDigest[31] ^= 1 },
		func(r *TrustReport) { r.Deadline++ },
	}
	for i, m := range mut {
		r := base
		m(&r)
		if StructHash(r) == h {
			t.Fatalf("mutation %d did not change struct hash", i)
		}
	}
}
