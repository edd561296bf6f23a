// Package signer implements the transaction-signing collaborator (§6): a
// small interface receiving one SignDescriptor per input — mirroring the
// teacher's input.SignDescriptor/SignOutputRaw split between gathering
// what's needed to sign and the act of signing — plus an in-process
// implementation that produces a linkable, CryptoNote-style one-of-many
// ring signature directly from crypto group operations.
package signer

import (
	"crypto/rand"
	"io"

	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
)

// RingSignature is one input's signature (§4.I step 7): a 1-of-n proof of
// knowledge of the one-time private key at RealIndex, bound to KeyImage so
// a double-spend is detectable without revealing which ring member is
// real. W and Q are per-member challenge shares and responses, indexed in
// ring order.
type RingSignature struct {
	KeyImage [32]byte
	W        [][32]byte
	Q        [][32]byte
}

// SignDescriptor bundles everything the Signer needs to produce one
// input's ring signature: the candidate ring (target keys, in ring
// order), which position holds the real output, and the one-time private
// key owning it.
type SignDescriptor struct {
	Ring           []crypto.Point
	RealIndex      int
	OnetimePrivate crypto.Scalar
}

// Signer is the collaborator the Transaction Builder hands completed
// SignDescriptors to (§6). Local below signs directly against private
// keys already in memory; a remote or hardware-backed implementation
// would satisfy the same interface without the builder knowing the
// difference.
type Signer interface {
	SignRing(message []byte, desc SignDescriptor) (RingSignature, error)
}

// Local is the default in-process Signer.
type Local struct{}

// NewLocal builds a Local signer.
func NewLocal() Local { return Local{} }

// SignRing implements Signer using crypto/rand as the nonce source.
func (Local) SignRing(message []byte, desc SignDescriptor) (RingSignature, error) {
	return SignRing(rand.Reader, message, desc.Ring, desc.RealIndex, desc.OnetimePrivate)
}

// hp is Hp(P), the per-member generator the key image and ring equations
// are built on — the same "hash to scalar, multiply by basepoint"
// construction crypto.KeyImage already uses internally, exposed via
// crypto.HashToPoint so both sides agree.
func hp(p crypto.Point) crypto.Point {
	b := p.Bytes()
	return crypto.HashToPoint("key-image", b[:])
}

// SignRing produces a linkable ring signature over message for the ring of
// target keys, proving knowledge of the private key at realIndex without
// revealing which position it is (§4.I step 7). It is the standard
// Abe-Ohkubo-Suzuki / CryptoNote construction: one honest (L,R) pair built
// from a fresh nonce at the real index, n-1 simulated pairs elsewhere, and
// an aggregate challenge that closes the ring.
func SignRing(rng io.Reader, message []byte, ring []crypto.Point, realIndex int, onetimePrivate crypto.Scalar) (RingSignature, error) {
	n := len(ring)
	if realIndex < 0 || realIndex >= n {
		return RingSignature{}, errs.New(errs.KindTransactionValidation, "signer: real index out of range")
	}

	image := onetimePrivate.Mul(hp(ring[realIndex]))

	w := make([]crypto.Scalar, n)
	q := make([]crypto.Scalar, n)
	l := make([]crypto.Point, n)
	r := make([]crypto.Point, n)

	k, err := crypto.RandomScalar(rng)
	if err != nil {
		return RingSignature{}, errs.Wrap(errs.KindDatabase, err)
	}
	l[realIndex] = k.BasepointMul()
	r[realIndex] = k.Mul(hp(ring[realIndex]))

	zero := k.Sub(k)
	sumOthers := zero
	for i := 0; i < n; i++ {
		if i == realIndex {
			continue
		}
		wi, err := crypto.RandomScalar(rng)
		if err != nil {
			return RingSignature{}, errs.Wrap(errs.KindDatabase, err)
		}
		qi, err := crypto.RandomScalar(rng)
		if err != nil {
			return RingSignature{}, errs.Wrap(errs.KindDatabase, err)
		}
		w[i] = wi
		q[i] = qi
		l[i] = qi.BasepointMul().Add(wi.Mul(ring[i]))
		r[i] = qi.Mul(hp(ring[i])).Add(wi.Mul(image))
		sumOthers = sumOthers.Add(wi)
	}

	c := challenge(message, l, r)
	w[realIndex] = c.Sub(sumOthers)
	q[realIndex] = k.Sub(w[realIndex].MulScalar(onetimePrivate))

	sig := RingSignature{KeyImage: image.Bytes(), W: make([][32]byte, n), Q: make([][32]byte, n)}
	for i := 0; i < n; i++ {
		sig.W[i] = w[i].Bytes()
		sig.Q[i] = q[i].Bytes()
	}
	return sig, nil
}

// VerifyRing checks a RingSignature against its message, ring, and key
// image. It recomputes every (L,R) pair from the signature's published
// w/q values and accepts iff the aggregate challenge closes: sum(w_i) ==
// Hs(message, L_0, R_0, ..., L_{n-1}, R_{n-1}).
func VerifyRing(message []byte, ring []crypto.Point, image crypto.Point, sig RingSignature) (bool, error) {
	n := len(ring)
	if len(sig.W) != n || len(sig.Q) != n {
		return false, errs.New(errs.KindTransactionValidation, "signer: ring signature length mismatch")
	}

	ws := make([]crypto.Scalar, n)
	l := make([]crypto.Point, n)
	r := make([]crypto.Point, n)
	for i := 0; i < n; i++ {
		wi, err := crypto.NewScalarFromBytes(sig.W[i])
		if err != nil {
			return false, errs.Wrap(errs.KindTransactionValidation, err)
		}
		qi, err := crypto.NewScalarFromBytes(sig.Q[i])
		if err != nil {
			return false, errs.Wrap(errs.KindTransactionValidation, err)
		}
		ws[i] = wi
		l[i] = qi.BasepointMul().Add(wi.Mul(ring[i]))
		r[i] = qi.Mul(hp(ring[i])).Add(wi.Mul(image))
	}

	c := challenge(message, l, r)

	sum := ws[0]
	for i := 1; i < n; i++ {
		sum = sum.Add(ws[i])
	}
	return sum.Bytes() == c.Bytes(), nil
}

func challenge(message []byte, l, r []crypto.Point) crypto.Scalar {
	parts := make([][]byte, 0, 1+2*len(l))
	parts = append(parts, message)
	for i := range l {
		lb := l[i].Bytes()
		rb := r[i].Bytes()
		parts = append(parts, lb[:], rb[:])
	}
	return crypto.HashToScalar("ring-sig", parts...)
}
