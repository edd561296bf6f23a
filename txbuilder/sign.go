package txbuilder

import (
	"encoding/json"
	"sort"

	"github.com/mobilecoinofficial/full-service-sub000/address"
	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/signer"
	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
)

// signedTxWire is the JSON-serialized form of a completed TxProposal's
// signed transaction, the tx_proto opaque blob handed to the Submission
// Manager (§4.I step 8). The wire format is this daemon's own; peers are
// expected to speak it, same as the precise wire format of Peer RPC is
// left to the implementation by §6.
type signedTxWire struct {
	Rings        []ring_ `json:"rings"`
	Signatures   []signer.RingSignature `json:"signatures"`
	Payload      []chainTxOut           `json:"payload_outputs"`
	Change       []chainTxOut           `json:"change_outputs"`
	FeeValue     uint64                 `json:"fee_value"`
	FeeTokenID   uint64                 `json:"fee_token_id"`
	Tombstone    uint64                 `json:"tombstone_block_index"`
	BlockVersion uint32                 `json:"block_version"`
}

type ring_ struct {
	Members   []ringMember `json:"members"`
	RealIndex int          `json:"real_index"`
}

type ringMember struct {
	PublicKey [32]byte `json:"public_key"`
	TargetKey [32]byte `json:"target_key"`
	Index     uint64   `json:"index"`
}

type chainTxOut struct {
	Commitment       [32]byte `json:"commitment"`
	MaskedValue      uint64   `json:"masked_value"`
	MaskedTokenID    uint64   `json:"masked_token_id"`
	TargetKey        [32]byte `json:"target_key"`
	PublicKey        [32]byte `json:"public_key"`
	EncryptedFogHint []byte   `json:"encrypted_fog_hint"`
	EncryptedMemo    [66]byte `json:"encrypted_memo"`
}

// sign completes step 7 (invoke the signing collaborator) and step 8
// (assemble TxProposal) of §4.I.
func (b *Builder) sign(u UnsignedTxProposal, s signer.Signer, acct walletdb.Account) (TxProposal, error) {
	sigs := make([]signer.RingSignature, len(u.Descriptors))
	for i, d := range u.Descriptors {
		sig, err := s.SignRing(u.Message, d)
		if err != nil {
			return TxProposal{}, err
		}
		sigs[i] = sig
	}

	wire := signedTxWire{
		FeeValue:     u.FeeAmount.Value,
		FeeTokenID:   u.FeeAmount.TokenID,
		Tombstone:    u.TombstoneBlockIndex,
		BlockVersion: u.BlockVersion,
		Signatures:   sigs,
	}
	for _, r := range u.Rings {
		wr := ring_{RealIndex: r.RealIndex}
		for _, m := range r.Members {
			wr.Members = append(wr.Members, ringMember{PublicKey: m.PublicKey, TargetKey: m.TargetKey, Index: m.Index})
		}
		wire.Rings = append(wire.Rings, wr)
	}
	for _, o := range u.PayloadTxos {
		wire.Payload = append(wire.Payload, toChainTxOut(o.Record))
	}
	for _, o := range u.ChangeTxos {
		wire.Change = append(wire.Change, toChainTxOut(o.Record))
	}

	txProto, err := json.Marshal(wire)
	if err != nil {
		return TxProposal{}, errs.Wrap(errs.KindDatabase, err)
	}

	logID := transactionLogID(u.InputTxos, u.PayloadTxos, u.ChangeTxos)

	return TxProposal{
		AccountID:           u.AccountID,
		InputTxos:           u.InputTxos,
		PayloadTxos:         u.PayloadTxos,
		ChangeTxos:          u.ChangeTxos,
		FeeAmount:           u.FeeAmount,
		TombstoneBlockIndex: u.TombstoneBlockIndex,
		TxProto:             txProto,
		LogID:               logID,
	}, nil
}

func toChainTxOut(r chain.TxOutRecord) chainTxOut {
	return chainTxOut{
		Commitment:       r.Commitment,
		MaskedValue:      r.MaskedValue,
		MaskedTokenID:    r.MaskedTokenID,
		TargetKey:        r.TargetKey,
		PublicKey:        r.PublicKey,
		EncryptedFogHint: r.EncryptedFogHint,
		EncryptedMemo:    r.EncryptedMemo,
	}
}

// transactionLogID computes the identifier for the log this proposal will
// be recorded under, using the address package's sorted-public-keys
// hashing contract (§6 "transaction_log_id").
func transactionLogID(inputs []walletdb.Txo, payload, change []ProposalOutput) [32]byte {
	inKeys := make([][32]byte, 0, len(inputs))
	for _, t := range inputs {
		inKeys = append(inKeys, t.PublicKey)
	}
	sort.Slice(inKeys, func(i, j int) bool { return lessBytes(inKeys[i], inKeys[j]) })

	outKeys := make([][32]byte, 0, len(payload)+len(change))
	for _, o := range payload {
		outKeys = append(outKeys, o.Record.PublicKey)
	}
	for _, o := range change {
		outKeys = append(outKeys, o.Record.PublicKey)
	}
	sort.Slice(outKeys, func(i, j int) bool { return lessBytes(outKeys[i], outKeys[j]) })

	return address.TransactionLogID(inKeys, outKeys)
}
