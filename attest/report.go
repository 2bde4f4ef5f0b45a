package attest

import (
	"xdao.co/trustchain/domain"
)

// MaxScore is the highest trust score an attestor may report.
const MaxScore = 100

// Domain scopes signatures to one deployment on one chain.
type Domain struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	ChainID         uint64 `json:"chainId"`
	VerifyingModule string `json:"verifyingModule"`
}

// DefaultDomain returns the domain name and version existing attestors sign
// under, for the given chain and verifying module.
func DefaultDomain(chainID uint64, verifyingModule string) Domain {
	return Domain{Name: "AIScoreOracle", Version: "1", ChainID: chainID, VerifyingModule: verifyingModule}
}

// TrustReport is the signed tuple. Deadline is a Unix time in seconds; the
// report is valid up to and including that second.
type TrustReport struct {
	ProductID          string        `json:"productId"`
	Score              uint64        `json:"trustScore"`
	AnomaliesDigest    domain.Digest `json:"anomaliesHash"`
	VerificationDigest domain.Digest `json:"verificationHash"`
	Deadline           uint64        `json:"deadline"`
}
