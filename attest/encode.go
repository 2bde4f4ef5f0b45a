package attest

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

const (
	domainType = "TrustDomain(string name,string version,uint256 chainId,string verifyingModule)"
	reportType = "ReportTrustScore(string productId,uint256 trustScore,bytes32 anomaliesHash,bytes32 verificationHash,uint256 deadline)"
)

var (
	domainTypeHash = sha3.Sum256([]byte(domainType))
	reportTypeHash = sha3.Sum256([]byte(reportType))
)

type encoder struct {
	buf []byte
}

func (e *encoder) word(w [32]byte) { e.buf = append(e.buf, w[:]...) }

func (e *encoder) str(s string) { e.word(sha3.Sum256([]byte(s))) }

func (e *encoder) uint(v uint64) {
	var w [32]byte
	binary.BigEndian.PutUint64(w[24:], v)
	e.word(w)
}

func (e *encoder) sum() [32]byte { return sha3.Sum256(e.buf) }

// DomainSeparator hashes the domain tuple in declaration order.
func DomainSeparator(d Domain) [32]byte {
	e := encoder{buf: make([]byte, 0, 5*32)}
	e.word(domainTypeHash)
	e.str(d.Name)
	e.str(d.Version)
	e.uint(d.ChainID)
	e.str(d.VerifyingModule)
	return e.sum()
}

// StructHash hashes the report fields in declaration order.
func StructHash(r TrustReport) [32]byte {
	e := encoder{buf: make([]byte, 0, 6*32)}
	e.word(reportTypeHash)
	e.str(r.ProductID)
	e.uint(r.Score)
	e.word(r.AnomaliesDigest)
	e.word(r.VerificationDigest)
	e.uint(r.Deadline)
	return e.sum()
}

// SigningMessage returns the exact bytes an attestor signs for r under d.
func SigningMessage(d Domain, r TrustReport) []byte {
	sep := DomainSeparator(d)
	sh := StructHash(r)
	msg := make([]byte, 0, 2+64)
	msg = append(msg, 0x19, 0x01)
	msg = append(msg, sep[:]...)
	msg = append(msg, sh[:]...)
	return msg
}

// ReportDigest is the SHA3-256 of the signing message. It identifies a report
// independently of who signed it.
func ReportDigest(d Domain, r TrustReport) [32]byte {
	return sha3.Sum256(SigningMessage(d, r))
}
