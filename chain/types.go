// Package chain defines the on-chain data types shared by the Block Store,
// Key-Image Store, Ledger Syncer, and everything downstream of them: the
// spec §3 Block and Txo records, and the Amount pair they carry.
package chain

import (
	"github.com/mobilecoinofficial/full-service-sub000/crypto"
)

// Amount is an (value, token_id) pair, always expressed in the token's
// smallest unit as an unsigned 64-bit integer (§4.I, Design Notes).
type Amount struct {
	Value   uint64 `json:"value,string"`
	TokenID uint64 `json:"token_id,string"`
}

// TxOutRecord is the opaque on-chain output record a block carries for each
// new output: a Pedersen commitment, the masked value/token-id, the
// one-time target key, the output's own public key, an encrypted fog hint
// and an encrypted memo (§3 Txo).
type TxOutRecord struct {
	Commitment       [32]byte
	MaskedValue      uint64
	MaskedTokenID    uint64
	TargetKey        [32]byte
	PublicKey        [32]byte
	EncryptedFogHint []byte
	EncryptedMemo    [66]byte
}

// Block is an immutable, append-only ledger entry (§3 Block).
type Block struct {
	Index              uint64
	ParentHash         [32]byte
	ContentsHash       [32]byte
	CumulativeTxoCount uint64
	RootElement        [32]byte
	Version            uint32
}

// BlockContents is the payload appended by a block: its new outputs, in
// global-index order, and the key images it reports as spent.
type BlockContents struct {
	Outputs           []TxOutRecord
	SpentKeyImages    [][32]byte
	ValidatedTotalFee Amount
}

// Hash computes the content hash of a block the way Append verifies it:
// hash(index || parent_hash || cumulative_txo_count || root_element ||
// version). A real ledger binds many more fields (signatures, fee map,
// etc); for the core's purposes parent-chaining and tamper-evidence are
// what §4.A and §8 "Parent chaining" require.
func (b Block) Hash(hashFn func(...[]byte) [32]byte) [32]byte {
	idx := uint64ToBytes(b.Index)
	cnt := uint64ToBytes(b.CumulativeTxoCount)
	ver := uint64ToBytes(uint64(b.Version))
	return hashFn(idx[:], b.ParentHash[:], cnt[:], b.RootElement[:], ver[:])
}

// CommitAmount recomputes the Pedersen-style commitment an output's
// (value, token_id) pair must open to under sharedSecret, the check the
// Account Scanner runs before trusting an unmasked amount (§4.E step 3).
func CommitAmount(sharedSecret crypto.Point, value, tokenID uint64) [32]byte {
	vb := uint64ToBytes(value)
	tb := uint64ToBytes(tokenID)
	return crypto.Hash256(sharedSecret.Bytes(), vb[:], tb[:])
}

func uint64ToBytes(v uint64) [8]byte {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}
