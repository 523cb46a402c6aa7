package ecjpake

import (
	"encoding/binary"
	"io"
	"math/big"

	"github.com/backkem/pumpx2/pkg/crypto"
)

// zkp is a Schnorr proof of knowledge of x for X = x*G.
type zkp struct {
	v *point
	r *big.Int
}

// zkpHash computes H(G || V || X || id) mod n, each field prefixed by its
// 4-byte big-endian length.
func zkpHash(g, v, x *point, id []byte) *big.Int {
	h := crypto.NewSHA256()
	writeWithLen32(h, encodePoint(g))
	writeWithLen32(h, encodePoint(v))
	writeWithLen32(h, encodePoint(x))
	writeWithLen32(h, id)

	e := new(big.Int).SetBytes(h.Sum(nil))
	return e.Mod(e, p256.Params().N)
}

func writeWithLen32(w io.Writer, data []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	w.Write(lenBuf[:])
	w.Write(data)
}

// makeProof proves knowledge of x, where X = x*G, on behalf of id.
func makeProof(g *point, x *big.Int, X *point, id []byte, r io.Reader) (*zkp, error) {
	n := p256.Params().N

	v, err := generateRandomScalar(r)
	if err != nil {
		return nil, err
	}
	V := scalarMult(g, v)

	h := zkpHash(g, V, X, id)

	// r = v - x*h mod n
	rr := new(big.Int).Mul(x, h)
	rr.Sub(v, rr)
	rr.Mod(rr, n)

	return &zkp{v: V, r: rr}, nil
}

// verifyProof checks V == r*G + h*X.
func verifyProof(g, X *point, proof *zkp, id []byte) bool {
	if proof.r.Cmp(p256.Params().N) >= 0 {
		return false
	}
	h := zkpHash(g, proof.v, X, id)

	rg := scalarMult(g, proof.r)
	hx := scalarMult(X, h)
	return pointAdd(rg, hx).equal(proof.v)
}
