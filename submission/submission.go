// Package submission implements the Submission Manager (§4.J): it hands a
// signed TxProposal to a peer, and on acceptance records a transaction log
// in `pending` status linking its input and output txos. Finalization is
// left entirely to the scanner (§4.E); this package is fire-and-forget
// once the peer accepts, mirroring the teacher's own split between
// broadcasting a transaction and waiting for confirmations elsewhere.
package submission

import (
	"context"

	"github.com/decred/slog"
	"github.com/mobilecoinofficial/full-service-sub000/address"
	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/peer"
	"github.com/mobilecoinofficial/full-service-sub000/txbuilder"
	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
)

var log slog.Logger = slog.Disabled

// UseLogger sets the package-level logger used by the Submission Manager.
func UseLogger(logger slog.Logger) { log = logger }

// Manager submits TxProposals to a peer and records transaction logs.
type Manager struct {
	db       *walletdb.DB
	peer     peer.Client
	localTip func() (uint64, error)
}

// New builds a Manager over db, submitting through peerClient. localTip
// reports the Ledger Syncer's current local block height, recorded as each
// log's submitted_block_index.
func New(db *walletdb.DB, peerClient peer.Client, localTip func() (uint64, error)) *Manager {
	return &Manager{db: db, peer: peerClient, localTip: localTip}
}

// Submit implements submit(tx_proposal, account_id?, comment?) (§4.J). If
// recordLog is false, no log row is written even on acceptance — a proposal
// submitted on behalf of a transient account (e.g. mid-gift-code lifecycle)
// the caller tracks separately.
func (m *Manager) Submit(ctx context.Context, prop txbuilder.TxProposal, recordLog bool, comment string) error {
	result, err := m.peer.ProposeTx(ctx, prop.TxProto)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, err)
	}
	if !result.Accepted {
		e := errs.Newf(errs.KindTransactionValidation, "submission: peer rejected proposal: %s", result.Message)
		if result.Code != "" {
			e = e.WithSubCode(result.Code)
		}
		return e
	}

	log.Infof("submission: account %x: proposal %x accepted by peer", prop.AccountID, prop.LogID)

	if !recordLog {
		return nil
	}
	return m.recordLog(ctx, prop, comment)
}

// BuildAndSubmit runs a caller-supplied build step then Submit, guaranteeing
// the transaction log id used is the one the build step computed — the
// idempotence build_and_submit promises under retry (§4.J).
func (m *Manager) BuildAndSubmit(ctx context.Context, build func() (txbuilder.TxProposal, error), comment string) (txbuilder.TxProposal, error) {
	prop, err := build()
	if err != nil {
		return txbuilder.TxProposal{}, err
	}
	if err := m.Submit(ctx, prop, true, comment); err != nil {
		return txbuilder.TxProposal{}, err
	}
	return prop, nil
}

func (m *Manager) recordLog(ctx context.Context, prop txbuilder.TxProposal, comment string) error {
	inputIDs := make([][32]byte, len(prop.InputTxos))
	for i, t := range prop.InputTxos {
		inputIDs[i] = t.ID
	}

	outputs := make([]walletdb.TransactionLogOutput, 0, len(prop.PayloadTxos)+len(prop.ChangeTxos))
	for _, o := range prop.PayloadTxos {
		outputs = append(outputs, walletdb.TransactionLogOutput{
			TxoID:                     txoIDFor(o),
			Kind:                      walletdb.OutputKindPayload,
			RecipientPublicAddressB58: o.RecipientPublicAddressB58,
		})
	}
	for _, o := range prop.ChangeTxos {
		outputs = append(outputs, walletdb.TransactionLogOutput{
			TxoID:                     txoIDFor(o),
			Kind:                      walletdb.OutputKindChange,
			RecipientPublicAddressB58: o.RecipientPublicAddressB58,
		})
	}

	logRow := walletdb.TransactionLog{
		ID:                  prop.LogID,
		AccountID:           prop.AccountID,
		Status:              walletdb.StatusBuilt,
		TombstoneBlockIndex: prop.TombstoneBlockIndex,
		FeeValue:            prop.FeeAmount.Value,
		FeeTokenID:          prop.FeeAmount.TokenID,
		Comment:             comment,
	}

	if err := m.db.CreateTransactionLog(ctx, logRow, inputIDs, outputs); err != nil {
		return err
	}

	tip, err := m.localTip()
	if err != nil {
		return err
	}
	return m.db.MarkSubmitted(ctx, prop.LogID, tip)
}

// txoIDFor computes txo_id = hash(output public key) (§6) for a minted
// output, the same identifier the scanner assigns its row once the output
// lands on-chain.
func txoIDFor(o txbuilder.ProposalOutput) [32]byte {
	pk, err := crypto.NewPointFromBytes(o.Record.PublicKey)
	if err != nil {
		// mintOutput only ever writes a valid compressed point here.
		return o.Record.PublicKey
	}
	return address.TxoID(pk)
}
