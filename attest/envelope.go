package attest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/keys"
)

// Envelope is the wire record an attestor submits: the report plus the
// signature metadata needed to check it.
type Envelope struct {
	Report       TrustReport `json:"report"`
	IssuerKey    string      `json:"issuerKey"`
	SignatureAlg string      `json:"signatureAlg"`
	HashAlg      string      `json:"hashAlg"`
	Signature    string      `json:"signature"`
}

// Sign produces an envelope for r under d. hashAlg defaults to sha256.
func Sign(d Domain, r TrustReport, signer keys.Signer, hashAlg string) (Envelope, error) {
	if signer == nil {
		return Envelope{}, fmt.Errorf("missing signer")
	}
	if hashAlg == "" {
		hashAlg = keys.HashSHA256
	}
	sig, err := signer.Sign(SigningMessage(d, r), hashAlg)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Report:       r,
		IssuerKey:    signer.IssuerKey(),
		SignatureAlg: signer.Algorithm(),
		HashAlg:      hashAlg,
		Signature:    sig,
	}, nil
}

// Canonical returns the deterministic JSON encoding archived for a report.
func (e Envelope) Canonical() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope decodes a single JSON envelope, rejecting unknown fields and
// trailing data.
func ParseEnvelope(r io.Reader) (Envelope, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, domain.WrapError(domain.CodeMalformedReport, "decode envelope", err)
	}
	if dec.More() {
		return Envelope{}, domain.NewError(domain.CodeMalformedReport, "trailing data after envelope")
	}
	return env, nil
}

// ParseEnvelopeBytes is ParseEnvelope over a byte slice.
func ParseEnvelopeBytes(b []byte) (Envelope, error) {
	return ParseEnvelope(bytes.NewReader(b))
}
