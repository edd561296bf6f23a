// Package txbuilder implements the Transaction Builder (§4.I): it turns a
// set of recipient outlays into a fully-formed, signed TxProposal by
// composing the Txo Selector, Ring Sampler, and a Signer collaborator, the
// same gather-then-sign split the teacher's lnwallet/dcrwallet uses between
// SignOutputRaw's SignDescriptor and the actual signature.
package txbuilder

import (
	"context"
	"crypto/rand"
	"sort"

	"github.com/mobilecoinofficial/full-service-sub000/address"
	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/feeschedule"
	"github.com/mobilecoinofficial/full-service-sub000/ledger"
	"github.com/mobilecoinofficial/full-service-sub000/ring"
	"github.com/mobilecoinofficial/full-service-sub000/selector"
	"github.com/mobilecoinofficial/full-service-sub000/signer"
	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
)

// BurnPublicAddressB58 is the well-known burn address payload outlays are
// routed to by BuildBurn (§4.I step 6). It is a fixed, unspendable
// subaddress-shaped public address: view and spend public keys derived by
// hashing the fixed labels "burn-address-seed" and "burn-address-spend",
// so any client recomputes the same address and
// can recognize a burn output without a side channel.
var BurnPublicAddressB58 = address.Encode(burnAddress())

func burnAddress() address.PublicAddress {
	s := crypto.HashToScalar("burn-address-seed")
	return address.PublicAddress{
		ViewPublic:  s.BasepointMul(),
		SpendPublic: crypto.HashToScalar("burn-address-spend").BasepointMul(),
	}
}

// Outlay is one payload recipient and amount.
type Outlay struct {
	RecipientPublicAddressB58 string
	Amount                    chain.Amount
}

// Params bundles a build request (§4.I's option table).
type Params struct {
	AccountID                            [32]byte
	Outlays                              []Outlay
	InputTxoIDs                          [][32]byte
	FeeOverride                          *chain.Amount
	TombstoneBlock                       *uint64
	BlockVersion                         uint32
	SenderMemoCredentialSubaddressIndex  *uint64
	PaymentRequestID                     *uint64
	MaxSpendableValue                    *uint64
	SpendOnlyFromSubaddress              *uint64
	RedemptionMemoHex                    []byte // burn only
}

// ProposalOutput is one output minted by a build (§4.I step 8): a payload
// or change txo, with the fields a recipient (or the sender, for change)
// needs to recognize and later prove authorship of it.
type ProposalOutput struct {
	Record                    chain.TxOutRecord
	RecipientPublicAddressB58 string
	ConfirmationNumber        [32]byte
	AmountValue               uint64
	AmountTokenID             uint64
	SubaddressIndex           *uint64 // set only for change, which the sender owns
}

// TxProposal is the signed result of a build (§4.I step 8).
type TxProposal struct {
	AccountID           [32]byte
	InputTxos           []walletdb.Txo
	PayloadTxos         []ProposalOutput
	ChangeTxos          []ProposalOutput
	FeeAmount           chain.Amount
	TombstoneBlockIndex uint64
	TxProto             []byte
	LogID               [32]byte
}

// UnsignedTxProposal is everything build_unsigned_transaction produces
// ahead of the signing step, for the offline-signer flow (§4.I
// "build_unsigned_transaction(params) → UnsignedTxProposal").
type UnsignedTxProposal struct {
	AccountID           [32]byte
	InputTxos           []walletdb.Txo
	Rings               []ring.Ring
	Descriptors         []signer.SignDescriptor
	PayloadTxos         []ProposalOutput
	ChangeTxos          []ProposalOutput
	FeeAmount           chain.Amount
	TombstoneBlockIndex uint64
	BlockVersion        uint32
	Message             []byte
}

// Builder assembles TxProposals for one Wallet DB, using a Selector, Ring
// Sampler, fee Schedule and Signer collaborator (§4.I).
type Builder struct {
	db        *walletdb.DB
	selector  *selector.Selector
	sampler   *ring.Sampler
	fees      *feeschedule.Schedule
	ledger    *ledger.Store
	localTip  func() (uint64, error)
}

// New builds a Builder. localTip reports the Ledger Syncer's current local
// block height, used to compute the default tombstone (§4.I
// "tombstone_block ... default H_local + 10").
func New(db *walletdb.DB, sel *selector.Selector, sampler *ring.Sampler, fees *feeschedule.Schedule, ledgerStore *ledger.Store, localTip func() (uint64, error)) *Builder {
	return &Builder{db: db, selector: sel, sampler: sampler, fees: fees, ledger: ledgerStore, localTip: localTip}
}

// defaultTombstoneOffset is added to the local tip when the caller does
// not supply an explicit tombstone_block (§4.I).
const defaultTombstoneOffset = 10

// FeeFor resolves the fee a build for tokenID will charge absent an
// explicit override, letting a caller size an outlay (e.g. a sweep of an
// account's entire balance) so it leaves room for the fee before calling
// Build.
func (b *Builder) FeeFor(tokenID uint64) (chain.Amount, error) {
	return b.fees.ResolveFee(tokenID, nil)
}

// Build implements build_transaction (§4.I).
func (b *Builder) Build(ctx context.Context, acct walletdb.Account, p Params) (TxProposal, error) {
	unsigned, err := b.buildUnsigned(ctx, acct, p, false)
	if err != nil {
		return TxProposal{}, err
	}
	return b.sign(unsigned, signer.NewLocal(), acct)
}

// BuildBurn implements build_burn_transaction (§4.I step 6): every outlay
// is routed to BurnPublicAddressB58 and RedemptionMemoHex is embedded in
// its memo instead of a sender-credential or payment-request memo.
func (b *Builder) BuildBurn(ctx context.Context, acct walletdb.Account, p Params) (TxProposal, error) {
	for i := range p.Outlays {
		p.Outlays[i].RecipientPublicAddressB58 = BurnPublicAddressB58
	}
	unsigned, err := b.buildUnsigned(ctx, acct, p, true)
	if err != nil {
		return TxProposal{}, err
	}
	return b.sign(unsigned, signer.NewLocal(), acct)
}

// BuildUnsigned implements build_unsigned_transaction (§4.I): it stops
// short of invoking a signer, for callers handing the descriptors to an
// external or hardware-backed Signer.
func (b *Builder) BuildUnsigned(ctx context.Context, acct walletdb.Account, p Params) (UnsignedTxProposal, error) {
	return b.buildUnsigned(ctx, acct, p, false)
}

// Sign completes an UnsignedTxProposal using the given Signer, the second
// half of the offline-signer flow.
func (b *Builder) Sign(unsigned UnsignedTxProposal, s signer.Signer, acct walletdb.Account) (TxProposal, error) {
	return b.sign(unsigned, s, acct)
}

func (b *Builder) buildUnsigned(ctx context.Context, acct walletdb.Account, p Params, isBurn bool) (UnsignedTxProposal, error) {
	if len(p.Outlays) == 0 {
		return UnsignedTxProposal{}, errs.New(errs.KindTransactionValidation, "txbuilder: at least one outlay is required")
	}

	// Step 1: resolve fee and validate a single spendable-token universe.
	payloadTokenID := p.Outlays[0].Amount.TokenID
	var outlayTotal uint64
	for _, o := range p.Outlays {
		if o.Amount.TokenID != payloadTokenID {
			return UnsignedTxProposal{}, errs.New(errs.KindTokenMismatch, "txbuilder: all outlays must share one token id")
		}
		outlayTotal += o.Amount.Value
	}

	fee, err := b.fees.ResolveFee(payloadTokenID, p.FeeOverride)
	if err != nil {
		return UnsignedTxProposal{}, err
	}
	if fee.TokenID != payloadTokenID {
		return UnsignedTxProposal{}, errs.New(errs.KindTokenMismatch, "txbuilder: fee token must match payload token")
	}

	// Step 2: selection and change.
	inputs, change, err := b.selector.Select(ctx, selector.Params{
		AccountID:               p.AccountID,
		TokenID:                 payloadTokenID,
		TargetValue:             outlayTotal,
		Fee:                     fee.Value,
		InputTxoIDs:             p.InputTxoIDs,
		MaxSpendableValue:       p.MaxSpendableValue,
		SpendOnlyFromSubaddress: p.SpendOnlyFromSubaddress,
	})
	if err != nil {
		return UnsignedTxProposal{}, err
	}

	// Step 3: sample a ring per real input.
	reals := make([][32]byte, len(inputs))
	for i, t := range inputs {
		reals[i] = t.PublicKey
	}
	rings, err := b.sampler.SampleRings(reals)
	if err != nil {
		return UnsignedTxProposal{}, err
	}

	tombstone := p.TombstoneBlock
	var tombstoneIndex uint64
	if tombstone != nil {
		tombstoneIndex = *tombstone
	} else {
		tip, err := b.localTip()
		if err != nil {
			return UnsignedTxProposal{}, err
		}
		tombstoneIndex = tip + defaultTombstoneOffset
	}

	// Step 4: payload outputs.
	payloadTxos := make([]ProposalOutput, 0, len(p.Outlays))
	for _, o := range p.Outlays {
		out, err := mintOutput(o.RecipientPublicAddressB58, o.Amount, func() ([66]byte, error) {
			return memoFor(p, isBurn)
		})
		if err != nil {
			return UnsignedTxProposal{}, err
		}
		payloadTxos = append(payloadTxos, out)
	}

	// Step 5: change output, to the sender's own reserved change subaddress.
	var changeTxos []ProposalOutput
	if change > 0 {
		changeAddr, err := b.db.GetSubaddress(ctx, p.AccountID, walletdb.ChangeSubaddressIndex)
		if err != nil {
			return UnsignedTxProposal{}, err
		}
		out, err := mintOutput(changeAddr.PublicAddressB58, chain.Amount{Value: change, TokenID: payloadTokenID}, func() ([66]byte, error) {
			return memoFor(p, isBurn)
		})
		if err != nil {
			return UnsignedTxProposal{}, err
		}
		changeIdx := walletdb.ChangeSubaddressIndex
		out.SubaddressIndex = &changeIdx
		changeTxos = []ProposalOutput{out}
	}

	// Step 7 (gather half): one SignDescriptor per input, recomputing the
	// one-time private key the same way the scanner derived it.
	descriptors := make([]signer.SignDescriptor, len(inputs))
	viewPrivate, err := crypto.NewScalarFromBytes(acct.ViewPrivate)
	if err != nil {
		return UnsignedTxProposal{}, errs.Wrap(errs.KindDatabase, err)
	}
	for i, t := range inputs {
		onetimePrivate, err := inputOnetimePrivateKey(acct, viewPrivate, t)
		if err != nil {
			return UnsignedTxProposal{}, err
		}

		ringPoints := make([]crypto.Point, len(rings[i].Members))
		for j, m := range rings[i].Members {
			pt, err := crypto.NewPointFromBytes(m.TargetKey)
			if err != nil {
				return UnsignedTxProposal{}, errs.Wrap(errs.KindMalformedOutput, err)
			}
			ringPoints[j] = pt
		}
		descriptors[i] = signer.SignDescriptor{Ring: ringPoints, RealIndex: rings[i].RealIndex, OnetimePrivate: onetimePrivate}
	}

	return UnsignedTxProposal{
		AccountID:           p.AccountID,
		InputTxos:           inputs,
		Rings:               rings,
		Descriptors:         descriptors,
		PayloadTxos:         payloadTxos,
		ChangeTxos:          changeTxos,
		FeeAmount:           fee,
		TombstoneBlockIndex: tombstoneIndex,
		BlockVersion:        p.BlockVersion,
		Message:             proposalMessage(inputs, payloadTxos, changeTxos, fee, tombstoneIndex),
	}, nil
}

// inputOnetimePrivateKey recomputes the private key owning an account's
// input txo, the inverse of the scanner's DeriveOneTimePrivateKey match
// (§4.E step 4), needed here because the builder only has the account's
// keys and the txo row, not a cached private key.
func inputOnetimePrivateKey(acct walletdb.Account, viewPrivate crypto.Scalar, t walletdb.Txo) (crypto.Scalar, error) {
	if acct.SpendPrivate == nil {
		return crypto.Scalar{}, errs.New(errs.KindTransactionValidation, "txbuilder: view-only account cannot sign locally")
	}
	if t.SubaddressIndex == nil {
		return crypto.Scalar{}, errs.New(errs.KindTransactionValidation, "txbuilder: selected input has no assigned subaddress")
	}
	spendPrivate, err := crypto.NewScalarFromBytes(*acct.SpendPrivate)
	if err != nil {
		return crypto.Scalar{}, errs.Wrap(errs.KindDatabase, err)
	}
	outputPublicKey, err := crypto.NewPointFromBytes(t.PublicKey)
	if err != nil {
		return crypto.Scalar{}, errs.Wrap(errs.KindMalformedOutput, err)
	}
	sharedSecret := crypto.SharedSecret(viewPrivate, outputPublicKey)
	subSpendPrivate := address.DeriveSubaddressSpendPrivate(spendPrivate, viewPrivate, *t.SubaddressIndex)
	return crypto.DeriveOneTimePrivateKey(subSpendPrivate, sharedSecret), nil
}

// mintOutput derives a fresh one-time output key, masks the amount, builds
// the RTH memo and confirmation number for one payload or change output
// (§4.I step 4/5). buildMemo supplies the plaintext memo content.
func mintOutput(recipientB58 string, amount chain.Amount, buildMemo func() ([66]byte, error)) (ProposalOutput, error) {
	recipient, err := address.Decode(recipientB58)
	if err != nil {
		return ProposalOutput{}, errs.Wrap(errs.KindTransactionValidation, err)
	}

	r, err := crypto.RandomScalar(rand.Reader)
	if err != nil {
		return ProposalOutput{}, errs.Wrap(errs.KindDatabase, err)
	}
	outputPublicKey := r.BasepointMul()
	sharedSecret := r.Mul(recipient.ViewPublic)
	targetKey := crypto.DeriveSubaddressTargetKey(sharedSecret, recipient.SpendPublic)

	maskedValue, maskedTokenID := crypto.MaskAmount(sharedSecret, amount.Value, amount.TokenID)
	commitment := chain.CommitAmount(sharedSecret, amount.Value, amount.TokenID)

	plainMemo, err := buildMemo()
	if err != nil {
		return ProposalOutput{}, err
	}
	encryptedMemo := EncryptMemo(sharedSecret, plainMemo)

	fogHint := buildFogHint(recipient, sharedSecret)

	confirmation := crypto.ConfirmationNumber(sharedSecret, outputPublicKey)

	return ProposalOutput{
		Record: chain.TxOutRecord{
			Commitment:       commitment,
			MaskedValue:      maskedValue,
			MaskedTokenID:    maskedTokenID,
			TargetKey:        targetKey.Bytes(),
			PublicKey:        outputPublicKey.Bytes(),
			EncryptedFogHint: fogHint,
			EncryptedMemo:    encryptedMemo,
		},
		RecipientPublicAddressB58: recipientB58,
		ConfirmationNumber:        confirmation,
		AmountValue:               amount.Value,
		AmountTokenID:             amount.TokenID,
	}, nil
}

// buildFogHint produces an encrypted fog hint for recipients that carry a
// fog report URL, empty otherwise (§4.I step 4 "empty if non-fog"). The
// hint is not a real fog-ingest encryption (that depends on a remote
// enclave key this package never sees); it is a deterministic placeholder
// keyed by the shared secret, sufficient to exercise the field end to end.
func buildFogHint(recipient address.PublicAddress, sharedSecret crypto.Point) []byte {
	if recipient.FogReportURL == "" {
		return nil
	}
	h := crypto.Hash256(sharedSecret.Bytes(), []byte(recipient.FogReportURL))
	return h[:]
}

// memoFor builds the plaintext RTH memo for a build request: burn redemption
// takes priority (burn variant), then payment-request id, then sender
// credential, falling back to an unused memo.
func memoFor(p Params, isBurn bool) ([66]byte, error) {
	if isBurn {
		return BuildBurnRedemptionMemo(p.RedemptionMemoHex)
	}
	if p.PaymentRequestID != nil {
		return BuildPaymentRequestMemo(*p.PaymentRequestID), nil
	}
	if p.SenderMemoCredentialSubaddressIndex != nil {
		return BuildSenderMemo(*p.SenderMemoCredentialSubaddressIndex), nil
	}
	return [66]byte{}, nil
}

// proposalMessage is the content the signing step's ring signatures bind
// to: a commitment to every input, output, the fee and the tombstone, so a
// signature cannot be replayed against a different set of outputs.
func proposalMessage(inputs []walletdb.Txo, payload, change []ProposalOutput, fee chain.Amount, tombstone uint64) []byte {
	keys := make([][32]byte, 0, len(inputs))
	for _, t := range inputs {
		keys = append(keys, t.PublicKey)
	}
	sort.Slice(keys, func(i, j int) bool { return lessBytes(keys[i], keys[j]) })

	outKeys := make([][32]byte, 0, len(payload)+len(change))
	for _, o := range payload {
		outKeys = append(outKeys, o.Record.PublicKey)
	}
	for _, o := range change {
		outKeys = append(outKeys, o.Record.PublicKey)
	}
	sort.Slice(outKeys, func(i, j int) bool { return lessBytes(outKeys[i], outKeys[j]) })

	var tb, fvb, ftb [8]byte
	putUint64(tb[:], tombstone)
	putUint64(fvb[:], fee.Value)
	putUint64(ftb[:], fee.TokenID)

	parts := make([][]byte, 0, len(keys)+len(outKeys)+3)
	for _, k := range keys {
		k := k
		parts = append(parts, k[:])
	}
	for _, k := range outKeys {
		k := k
		parts = append(parts, k[:])
	}
	parts = append(parts, tb[:], fvb[:], ftb[:])

	digest := crypto.Hash256(parts...)
	return digest[:]
}

func lessBytes(a, b [32]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
