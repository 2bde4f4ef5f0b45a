// Package attest verifies signed trust reports from off-chain attestors.
//
// A report is encoded as a typed structure bound to a Domain (name, version,
// chain id, verifying module). The signing message is
//
//	0x19 0x01 || domainSeparator(domain) || structHash(report)
//
// where every hash is SHA3-256 and integers are 32-byte big-endian words.
// Attestors sign hash(message) with Ed25519 or Dilithium3; the hash applied
// before signing is named in the envelope (sha256, sha512 or sha3-256).
//
// The Verifier applies its own Domain, so an envelope signed for another
// deployment or chain never verifies.
package attest
