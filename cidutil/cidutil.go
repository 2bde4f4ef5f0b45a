// Package cidutil derives the content identifiers used for archived reports
// and dispute evidence.
package cidutil

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Of returns the CIDv1 (raw codec, sha2-256 multihash) of data.
func Of(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// String is Of rendered in its default base. It returns "" only if hashing
// fails, which sha2-256 never does.
func String(data []byte) string {
	id, err := Of(data)
	if err != nil {
		return ""
	}
	return id.String()
}

// Matches reports whether data hashes to id.
func Matches(id cid.Cid, data []byte) bool {
	got, err := Of(data)
	return err == nil && got.Equals(id)
}
