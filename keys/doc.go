// Package keys manages attestor and admin signing keys.
//
// API stability:
//
// Stable:
//   - Issuer-key encoding ("ed25519:<base64>", "dilithium3:<base64>"), seed
//     derivation, Signer construction and signature verification. Attestors
//     that already hold keys depend on these being byte-for-byte stable.
//
// Experimental:
//   - The filesystem-backed KeyStore. It is a local-first convenience for the
//     CLI and the development daemon, not a production KMS.
package keys
