// Package ring implements the Ring Sampler (§4.H): for each real input of
// a transaction being built, it assembles a ring of decoys plus the real
// output at a random position, together with membership proofs relative
// to the current Block Store root.
package ring

import (
	"crypto/rand"
	"math/big"

	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/keyimage"
	"github.com/mobilecoinofficial/full-service-sub000/ledger"
)

// Size is the protocol-fixed ring size R (§4.H "typically 11").
const Size = 11

// Member is one ring element: the output's public key, its one-time
// spendable target key (the ring signature's actual key-image base), its
// global ledger index, and its membership proof relative to the root the
// ring was sampled against.
type Member struct {
	PublicKey [32]byte
	TargetKey [32]byte
	Index     uint64
	Proof     ledger.MembershipProof
}

// Ring is a sampled ring for a single real input: Size members, one of
// which (at RealIndex) is the genuine spent output.
type Ring struct {
	Members   []Member
	RealIndex int
}

// Sampler draws rings for the Transaction Builder.
type Sampler struct {
	ledger    *ledger.Store
	keyImages *keyimage.Store
}

// New builds a Sampler over the given Block Store and Key-Image Store.
func New(ledgerStore *ledger.Store, keyImageStore *keyimage.Store) *Sampler {
	return &Sampler{ledger: ledgerStore, keyImages: keyImageStore}
}

// SampleRings produces one ring per real input in reals, excluding every
// real input of the transaction from every ring's mixin pool (§4.H
// "excluding all real inputs of the transaction"). A too-small ledger and
// exhausted sampling retries both surface as KindInsufficientLedger from
// the Key-Image Store; there is no separate retries-exhausted kind.
func (s *Sampler) SampleRings(reals [][32]byte) ([]Ring, error) {
	exclude := make(map[[32]byte]struct{}, len(reals))
	for _, r := range reals {
		exclude[r] = struct{}{}
	}

	rings := make([]Ring, 0, len(reals))
	for _, real := range reals {
		r, err := s.sampleOne(real, exclude)
		if err != nil {
			return nil, err
		}
		rings = append(rings, r)
	}
	return rings, nil
}

func (s *Sampler) sampleOne(real [32]byte, exclude map[[32]byte]struct{}) (Ring, error) {
	mixins, err := s.keyImages.SampleN(exclude, Size-1)
	if err != nil {
		return Ring{}, err
	}

	realPos, err := randIntn(Size)
	if err != nil {
		return Ring{}, errs.Wrap(errs.KindDatabase, err)
	}

	pubKeys := make([]([32]byte), Size)
	mi := 0
	for i := 0; i < Size; i++ {
		if i == realPos {
			pubKeys[i] = real
			continue
		}
		pubKeys[i] = mixins[mi]
		mi++
	}

	indices := make([]uint64, Size)
	for i, pk := range pubKeys {
		idx, found, err := s.ledger.GetTxoByPublicKey(pk)
		if err != nil {
			return Ring{}, err
		}
		if !found {
			return Ring{}, errs.New(errs.KindInsufficientLedger, "ring: sampled output not found in ledger")
		}
		indices[i] = idx
	}

	proofs, err := s.ledger.GetMembershipProofs(indices)
	if err != nil {
		return Ring{}, err
	}

	members := make([]Member, Size)
	for i := range members {
		rec, found, err := s.ledger.GetTxOutRecordByGlobalIndex(indices[i])
		if err != nil {
			return Ring{}, err
		}
		if !found {
			return Ring{}, errs.New(errs.KindInsufficientLedger, "ring: sampled output has no on-chain record")
		}
		members[i] = Member{PublicKey: pubKeys[i], TargetKey: rec.TargetKey, Index: indices[i], Proof: proofs[i]}
	}

	return Ring{Members: members, RealIndex: realPos}, nil
}

func randIntn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
