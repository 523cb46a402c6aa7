package ecjpake

import (
	"crypto/elliptic"
	"io"
	"math/big"
)

// p256 is the curve used for all operations.
var p256 = elliptic.P256()

// point represents an affine point on P-256. The identity is (0, 0).
type point struct {
	x, y *big.Int
}

var basePoint = &point{x: p256.Params().Gx, y: p256.Params().Gy}

func (p *point) isInfinity() bool {
	return p.x.Sign() == 0 && p.y.Sign() == 0
}

func (p *point) equal(q *point) bool {
	return p.x.Cmp(q.x) == 0 && p.y.Cmp(q.y) == 0
}

func decodePoint(data []byte) (*point, error) {
	if len(data) != PointSizeBytes || data[0] != 0x04 {
		return nil, ErrInvalidPoint
	}

	x := new(big.Int).SetBytes(data[1:33])
	y := new(big.Int).SetBytes(data[33:65])

	if !p256.IsOnCurve(x, y) {
		return nil, ErrInvalidPoint
	}
	return &point{x: x, y: y}, nil
}

func encodePoint(p *point) []byte {
	result := make([]byte, PointSizeBytes)
	result[0] = 0x04
	p.x.FillBytes(result[1:33])
	p.y.FillBytes(result[33:65])
	return result
}

func scalarBytes(k *big.Int) []byte {
	buf := make([]byte, ScalarSizeBytes)
	new(big.Int).Mod(k, p256.Params().N).FillBytes(buf)
	return buf
}

func scalarMult(p *point, k *big.Int) *point {
	x, y := p256.ScalarMult(p.x, p.y, scalarBytes(k))
	return &point{x: x, y: y}
}

func scalarBaseMult(k *big.Int) *point {
	x, y := p256.ScalarBaseMult(scalarBytes(k))
	return &point{x: x, y: y}
}

func pointAdd(p1, p2 *point) *point {
	x, y := p256.Add(p1.x, p1.y, p2.x, p2.y)
	return &point{x: x, y: y}
}

func pointSub(p1, p2 *point) *point {
	negY := new(big.Int).Neg(p2.y)
	negY.Mod(negY, p256.Params().P)
	x, y := p256.Add(p1.x, p1.y, p2.x, negY)
	return &point{x: x, y: y}
}

// generateRandomScalar returns a uniformly random scalar in [1, n-1].
func generateRandomScalar(r io.Reader) (*big.Int, error) {
	n := p256.Params().N
	buf := make([]byte, ScalarSizeBytes)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		k := new(big.Int).SetBytes(buf)
		if k.Sign() > 0 && k.Cmp(n) < 0 {
			return k, nil
		}
	}
}

// mulSecret computes x*s mod n, multiplying by s + b*n for a random b so the
// password scalar never enters a multiplication on its own.
func mulSecret(x, s *big.Int, r io.Reader) (*big.Int, error) {
	n := p256.Params().N

	buf := make([]byte, blindingSizeBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	b := new(big.Int).SetBytes(buf)

	blinded := new(big.Int).Mul(b, n)
	blinded.Add(blinded, s)

	result := new(big.Int).Mul(x, blinded)
	return result.Mod(result, n), nil
}
