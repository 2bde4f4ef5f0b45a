package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"xdao.co/trustchain/attest"
	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/keys"
	"xdao.co/trustchain/ledger"
	"xdao.co/trustchain/trustchain"
)

var (
	secret    = []byte("test-secret")
	admin     = domain.MustAddress("0xadmin")
	custodian = domain.MustAddress("0xcustody")
	maker     = domain.MustAddress("0xmaker")
	carrier   = domain.MustAddress("0xcarrier")
)

type apiFixture struct {
	h      http.Handler
	sys    *trustchain.System
	signer keys.Signer
	now    time.Time
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	signer, err := keys.NewEd25519Signer(bytes.Repeat([]byte{3}, 32))
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	now := time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)
	token := ledger.NewToken()
	sys, err := trustchain.New(trustchain.Options{
		Domain:    attest.DefaultDomain(1, "trustchain"),
		Admin:     admin,
		Ledger:    token.Custody(custodian),
		Attestors: []string{signer.IssuerKey()},
		Now:       func() time.Time { return now },
		OnRegister: func(_ context.Context, sh domain.Stakeholder) error {
			token.Approve(sh.Address, custodian, 5_000)
			return token.Mint(sh.Address, 5_000)
		},
	})
	if err != nil {
		t.Fatalf("system: %v", err)
	}
	return &apiFixture{
		h:      NewHandler(sys, Options{Secret: secret, Now: func() time.Time { return now }}),
		sys:    sys,
		signer: signer,
		now:    now,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, as domain.Address, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case []byte:
		rd = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if !as.IsZero() {
		tok, err := IssueToken(secret, as, f.now, time.Hour)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, want, rec.Body.String())
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func (f *apiFixture) setup(t *testing.T) {
	t.Helper()
	expectStatus(t, f.do(t, http.MethodPost, "/v1/stakeholders", maker, map[string]string{"role": "manufacturer"}), http.StatusCreated)
	expectStatus(t, f.do(t, http.MethodPost, "/v1/stakeholders", carrier, map[string]string{"role": "distributor"}), http.StatusCreated)
	expectStatus(t, f.do(t, http.MethodPost, "/v1/products", maker, map[string]any{
		"productId": "P1", "amount": 100, "externalLocator": "did:dkg:P1", "contentDigest": "0xab",
	}), http.StatusCreated)
	expectStatus(t, f.do(t, http.MethodPost, "/v1/products/P1/distributors", carrier, map[string]any{"amount": 50}), http.StatusCreated)
}

func (f *apiFixture) report(t *testing.T, score uint64) []byte {
	t.Helper()
	env, err := attest.Sign(f.sys.Domain(), attest.TrustReport{
		ProductID: "P1",
		Score:     score,
		Deadline:  uint64(f.now.Add(time.Minute).Unix()),
	}, f.signer, "")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	raw, err := env.Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	return raw
}

func TestMediumTrustOverHTTP(t *testing.T) {
	f := newAPI(t)
	f.setup(t)

	rec := f.do(t, http.MethodPost, "/v1/reports", "", f.report(t, 80))
	expectStatus(t, rec, http.StatusOK)
	if p := decode[map[string]any](t, rec); p["state"] != "scored" || p["trustScore"] != float64(80) {
		t.Fatalf("product = %v", p)
	}

	rec = f.do(t, http.MethodPost, "/v1/products/P1/settle", admin, nil)
	expectStatus(t, rec, http.StatusOK)
	out := decode[map[string]any](t, rec)
	if out["tier"] != "medium" || len(out["payouts"].([]any)) != 2 || out["bonus"] != float64(0) {
		t.Fatalf("outcome = %+v", out)
	}

	rec = f.do(t, http.MethodGet, "/v1/reputation/"+carrier.String(), "", nil)
	expectStatus(t, rec, http.StatusOK)
	if rep := decode[map[string]any](t, rec); rep["successfulProducts"] != float64(1) || rep["score"] != float64(510) || rep["level"] != "Basic" {
		t.Fatalf("reputation = %+v", rep)
	}

	rec = f.do(t, http.MethodGet, "/v1/products/P1/history", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if h := decode[map[string][]json.RawMessage](t, rec); len(h["entries"]) != 4 {
		t.Fatalf("history = %s", rec.Body.String())
	}
}

func TestDisputeOverHTTP(t *testing.T) {
	f := newAPI(t)
	f.setup(t)
	expectStatus(t, f.do(t, http.MethodPost, "/v1/reports", "", f.report(t, 10)), http.StatusOK)
	rec := f.do(t, http.MethodPost, "/v1/products/P1/settle", admin, nil)
	expectStatus(t, rec, http.StatusOK)
	if out := decode[map[string]any](t, rec); out["state"] != "held" {
		t.Fatalf("outcome = %+v", out)
	}

	rec = f.do(t, http.MethodPost, "/v1/evidence", carrier, []byte("tamper photo"))
	expectStatus(t, rec, http.StatusCreated)
	ref := decode[map[string]string](t, rec)["cid"]

	expectStatus(t, f.do(t, http.MethodPost, "/v1/products/P1/dispute", carrier, map[string]string{"evidenceDigest": ref}), http.StatusCreated)
	rec = f.do(t, http.MethodPost, "/v1/products/P1/dispute/resolve", admin, map[string]any{"guiltyParty": "", "amount": 0})
	expectStatus(t, rec, http.StatusOK)
	if d := decode[map[string]any](t, rec); d["status"] != "resolved_honest" {
		t.Fatalf("dispute = %+v", d)
	}

	rec = f.do(t, http.MethodGet, "/v1/evidence/"+ref, "", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "tamper photo" {
		t.Fatalf("evidence = %q", rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/v1/products/P1/bundle", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("Content-Type") != "application/x-tar" || rec.Body.Len() == 0 {
		t.Fatalf("bundle response headers = %v", rec.Header())
	}
}

func TestErrorMapping(t *testing.T) {
	f := newAPI(t)
	f.setup(t)

	cases := []struct {
		name   string
		method string
		path   string
		as     domain.Address
		body   any
		status int
		code   string
	}{
		{"no token", http.MethodPost, "/v1/products/P1/settle", "", nil, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"not admin", http.MethodPost, "/v1/products/P1/settle", maker, nil, http.StatusForbidden, "NOT_ADMIN"},
		{"unknown product", http.MethodGet, "/v1/products/nope", "", nil, http.StatusNotFound, "UNKNOWN_PRODUCT"},
		{"no score yet", http.MethodPost, "/v1/products/P1/settle", admin, nil, http.StatusConflict, "NO_SCORE_YET"},
		{"duplicate", http.MethodPost, "/v1/products", maker, map[string]any{"productId": "P1", "amount": 1, "externalLocator": "x"}, http.StatusBadRequest, "DUPLICATE_PRODUCT"},
		{"insufficient allowance", http.MethodPost, "/v1/products/P1/distributors", carrier, map[string]any{"amount": 9_999}, http.StatusUnprocessableEntity, "INSUFFICIENT_ALLOWANCE"},
		{"unknown field", http.MethodPost, "/v1/pool", maker, map[string]any{"amt": 1}, http.StatusBadRequest, "MALFORMED_REPORT"},
		{"bad role", http.MethodPost, "/v1/stakeholders", domain.MustAddress("0xnew"), map[string]string{"role": "wizard"}, http.StatusBadRequest, "INVALID_ROLE"},
		{"not registered", http.MethodGet, "/v1/stakeholders/0xghost", "", nil, http.StatusNotFound, "NOT_REGISTERED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.path, tc.as, tc.body)
			expectStatus(t, rec, tc.status)
			if body := decode[errorBody](t, rec); body.Code != tc.code {
				t.Fatalf("code = %s, want %s", body.Code, tc.code)
			}
		})
	}
}

func TestTokenValidation(t *testing.T) {
	f := newAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/pool", strings.NewReader(`{"amount":1}`))
	tok, err := IssueToken([]byte("other-secret"), maker, f.now, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusUnauthorized)

	expired, err := IssueToken(secret, maker, f.now.Add(-2*time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/v1/pool", strings.NewReader(`{"amount":1}`))
	req.Header.Set("Authorization", "Bearer "+expired)
	rec = httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestAttestorAdmin(t *testing.T) {
	f := newAPI(t)
	other, err := keys.NewEd25519Signer(bytes.Repeat([]byte{9}, 32))
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	expectStatus(t, f.do(t, http.MethodPost, "/v1/attestors", admin, map[string]string{"issuerKey": other.IssuerKey()}), http.StatusNoContent)
	expectStatus(t, f.do(t, http.MethodDelete, "/v1/attestors/"+f.signer.IssuerKey(), admin, nil), http.StatusNoContent)

	rec := f.do(t, http.MethodGet, "/v1/attestors", "", nil)
	expectStatus(t, rec, http.StatusOK)
	got := decode[map[string][]string](t, rec)["attestors"]
	if len(got) != 1 || got[0] != other.IssuerKey() {
		t.Fatalf("attestors = %v", got)
	}
}
