// Package crypto implements the elliptic-curve and hashing primitives that
// the rest of the daemon treats as opaque library calls: shared-secret
// derivation, subaddress target-key matching, commitment masking, key-image
// computation and confirmation-number hashing. Per spec §1 these are
// "assumed as library calls with stated contracts" — the contracts are
// implemented here on top of a real ristretto255 group and blake2b, but the
// wider daemon never reaches past this package's exported functions.
package crypto

import (
	"encoding/binary"
	"io"

	"github.com/gtank/ristretto255"
	"golang.org/x/crypto/blake2b"
)

// Scalar is a group scalar (a private key, a blinding factor, a derived
// tweak).
type Scalar struct {
	s *ristretto255.Scalar
}

// Point is a group element (a public key, a commitment, a one-time target
// key).
type Point struct {
	p *ristretto255.Element
}

// NewScalarFromBytes decodes a canonical 32-byte scalar encoding.
func NewScalarFromBytes(b [32]byte) (Scalar, error) {
	s := ristretto255.NewScalar()
	if err := s.Decode(b[:]); err != nil {
		return Scalar{}, err
	}
	return Scalar{s: s}, nil
}

// RandomScalar draws a scalar uniformly from the group using r as an
// entropy source (normally crypto/rand.Reader).
func RandomScalar(r io.Reader) (Scalar, error) {
	var buf [64]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Scalar{}, err
	}
	s := ristretto255.NewScalar().FromUniformBytes(buf[:])
	return Scalar{s: s}, nil
}

// Bytes returns the canonical 32-byte encoding of the scalar.
func (s Scalar) Bytes() [32]byte {
	var out [32]byte
	copy(out[:], s.s.Encode(nil))
	return out
}

// BasepointMul returns s*G, the public key corresponding to private scalar
// s.
func (s Scalar) BasepointMul() Point {
	p := ristretto255.NewElement().ScalarBaseMult(s.s)
	return Point{p: p}
}

// Mul multiplies a point by a scalar — used for both Diffie-Hellman shared
// secrets (view_private * R) and subaddress derivation tweaks.
func (s Scalar) Mul(p Point) Point {
	out := ristretto255.NewElement().ScalarMult(s.s, p.p)
	return Point{p: out}
}

// Add returns the sum of two scalars, mod the group order.
func (s Scalar) Add(o Scalar) Scalar {
	out := ristretto255.NewScalar().Add(s.s, o.s)
	return Scalar{s: out}
}

// Sub returns s-o, mod the group order.
func (s Scalar) Sub(o Scalar) Scalar {
	out := ristretto255.NewScalar().Subtract(s.s, o.s)
	return Scalar{s: out}
}

// MulScalar returns the scalar product s*o, mod the group order — distinct
// from Mul, which multiplies a Point. The ring signature's response
// computation needs scalar-by-scalar multiplication.
func (s Scalar) MulScalar(o Scalar) Scalar {
	out := ristretto255.NewScalar().Multiply(s.s, o.s)
	return Scalar{s: out}
}

// NewPointFromBytes decodes a canonical 32-byte point encoding.
func NewPointFromBytes(b [32]byte) (Point, error) {
	p := ristretto255.NewElement()
	if err := p.Decode(b[:]); err != nil {
		return Point{}, err
	}
	return Point{p: p}, nil
}

// Bytes returns the canonical 32-byte encoding of the point.
func (p Point) Bytes() [32]byte {
	var out [32]byte
	copy(out[:], p.p.Encode(nil))
	return out
}

// Add returns the sum of two points — used to combine a subaddress base key
// with a derivation tweak.
func (p Point) Add(o Point) Point {
	out := ristretto255.NewElement().Add(p.p, o.p)
	return Point{p: out}
}

// Equal reports whether two points encode to the same group element.
func (p Point) Equal(o Point) bool {
	return p.p.Equal(o.p) == 1
}

// HashToScalar derives a scalar deterministically from arbitrary domain-
// separated input, the building block for shared-secret-derived tweaks,
// blinding factors, and key images. It is not a uniform hash-to-group
// function; it is sufficient for deriving tweaks from an already-uniform
// shared secret, matching the "assumed as library calls" contract of §4.E.
func HashToScalar(domain string, parts ...[]byte) Scalar {
	h, _ := blake2b.New256(nil)
	_, _ = h.Write([]byte(domain))
	for _, p := range parts {
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(len(p)))
		_, _ = h.Write(l[:])
		_, _ = h.Write(p)
	}
	sum := h.Sum(nil)
	var wide [64]byte
	copy(wide[:], sum)
	s := ristretto255.NewScalar().FromUniformBytes(wide[:])
	return Scalar{s: s}
}

// HashToPoint derives a point deterministically from domain-separated
// input by hashing to a scalar and multiplying the basepoint — the same
// construction KeyImage uses internally for Hp(P), exposed here so the
// signer's ring signature can apply it consistently per ring member.
func HashToPoint(domain string, parts ...[]byte) Point {
	return HashToScalar(domain, parts...).BasepointMul()
}

// Hash256 returns the blake2b-256 digest of data, used to derive account_id,
// txo_id and transaction_log_id.
func Hash256(data ...[]byte) [32]byte {
	h, _ := blake2b.New256(nil)
	for _, d := range data {
		_, _ = h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SharedSecret recovers s = viewPrivate * R, the Diffie-Hellman secret an
// account's view key shares with an output's public key R (§4.E step 1).
func SharedSecret(viewPrivate Scalar, outputPublicKey Point) Point {
	return viewPrivate.Mul(outputPublicKey)
}

// DeriveSubaddressTargetKey derives the candidate one-time target key for
// subaddress spend-public-key `d` given the shared secret, matching it
// against an output's actual target key is the caller's job (§4.E step 2).
func DeriveSubaddressTargetKey(sharedSecret Point, subaddressSpendPublic Point) Point {
	tweak := HashToScalar("txout-target-key", sharedSecret.Bytes(), []byte("target"))
	return subaddressSpendPublic.Add(tweak.BasepointMul())
}

// DeriveOneTimePrivateKey derives the one-time private key owning a
// matched output, given the account's subaddress spend-private key and the
// shared secret for that output (§4.E step 4, ahead of KeyImage). Its
// public counterpart is exactly what DeriveSubaddressTargetKey computes, so
// the two must be called with the same sharedSecret.
func DeriveOneTimePrivateKey(subaddressSpendPrivate Scalar, sharedSecret Point) Scalar {
	tweak := HashToScalar("txout-target-key", sharedSecret.Bytes(), []byte("target"))
	return subaddressSpendPrivate.Add(tweak)
}

// UnmaskAmount recovers (value, tokenID) from a masked-value/masked-token-id
// pair using the shared secret (§4.E step 3). It only unmasks; it does not
// check the output's commitment, which callers verify separately against
// chain.CommitAmount.
func UnmaskAmount(sharedSecret Point, maskedValue uint64, maskedTokenID uint64) (value uint64, tokenID uint64) {
	valueMask := HashToScalar("amount-value-mask", sharedSecret.Bytes())
	tokenMask := HashToScalar("amount-token-mask", sharedSecret.Bytes())

	var vb, tb [32]byte
	vb = valueMask.Bytes()
	tb = tokenMask.Bytes()

	value = maskedValue ^ binary.LittleEndian.Uint64(vb[:8])
	tokenID = maskedTokenID ^ binary.LittleEndian.Uint64(tb[:8])
	return value, tokenID
}

// MaskAmount is the inverse of UnmaskAmount, used by the transaction
// builder when minting payload and change outputs (§4.I step 4).
func MaskAmount(sharedSecret Point, value uint64, tokenID uint64) (maskedValue uint64, maskedTokenID uint64) {
	valueMask := HashToScalar("amount-value-mask", sharedSecret.Bytes())
	tokenMask := HashToScalar("amount-token-mask", sharedSecret.Bytes())

	var vb, tb [32]byte
	vb = valueMask.Bytes()
	tb = tokenMask.Bytes()

	maskedValue = value ^ binary.LittleEndian.Uint64(vb[:8])
	maskedTokenID = tokenID ^ binary.LittleEndian.Uint64(tb[:8])
	return maskedValue, maskedTokenID
}

// KeyImage computes the key image binding a specific owned output to the
// account's spend key (§4.E step 4, §3 Key Image invariant). For the
// one-time private key x it returns the encoding of x·Hp(P), where P = x·G
// is the one-time target key and Hp(P) = HashToScalar("key-image", P)·G.
func KeyImage(onetimePrivate Scalar) [32]byte {
	targetKey := onetimePrivate.BasepointMul()
	h := HashToScalar("key-image", targetKey.Bytes())
	image := onetimePrivate.Mul(h.BasepointMul())
	return image.Bytes()
}

// ConfirmationNumber computes hash(sharedSecret, recipientPublicKey), the
// per-output proof of authorship a sender can reveal to a recipient
// (Glossary; §8 Confirmation soundness).
func ConfirmationNumber(sharedSecret Point, recipientPublicKey Point) [32]byte {
	return Hash256(sharedSecret.Bytes(), recipientPublicKey.Bytes())
}
