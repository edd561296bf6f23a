// Package rpc implements the Request Dispatcher (§4.K): it parses method-
// tagged request objects, routes each to the appropriate core component,
// and serializes the result or a structured error back onto the wire
// envelope defined in envelope.go. Transport (HTTP routing, auth,
// streaming) lives in server.go; this file is the routing table and the
// per-method glue.
package rpc

import (
	"context"
	"encoding/json"

	"github.com/mobilecoinofficial/full-service-sub000/account"
	"github.com/mobilecoinofficial/full-service-sub000/address"
	"github.com/mobilecoinofficial/full-service-sub000/balance"
	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/feeschedule"
	"github.com/mobilecoinofficial/full-service-sub000/giftcode"
	"github.com/mobilecoinofficial/full-service-sub000/keyimage"
	"github.com/mobilecoinofficial/full-service-sub000/ledger"
	"github.com/mobilecoinofficial/full-service-sub000/peer"
	"github.com/mobilecoinofficial/full-service-sub000/scanner"
	"github.com/mobilecoinofficial/full-service-sub000/submission"
	"github.com/mobilecoinofficial/full-service-sub000/txbuilder"
	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
)

// Dispatcher routes §4.K's method set to components B-J. One Dispatcher is
// built per daemon instance and is safe for concurrent use by the request-
// handler pool (§5 "Request handlers run on a separate pool").
type Dispatcher struct {
	DB            *walletdb.DB
	Ledger        *ledger.Store
	KeyImages     *keyimage.Store
	Balances      *balance.Engine
	Scanner       *scanner.Scanner
	Builder       *txbuilder.Builder
	Submission    *submission.Manager
	GiftCodes     *giftcode.Manager
	Fees          *feeschedule.Schedule
	Peer          peer.Client
	LocalTip      func() (uint64, error)

	// ReadOnly mirrors the §6 "wallet-db absent -> view-only in-memory
	// mode": when set, every method that would mutate the Wallet DB
	// fails with UnsupportedRequest instead of being routed.
	ReadOnly bool
}

// writeGuard rejects a mutating method when the dispatcher is running in
// read-only (no wallet-db) mode (§7 UnsupportedRequest "write methods on a
// view-only node").
func (d *Dispatcher) writeGuard() error {
	if d.ReadOnly {
		return errs.New(errs.KindUnsupportedRequest, "rpc: write methods are disabled without a wallet-db")
	}
	return nil
}

// Dispatch parses rawParams for method and routes it to the matching
// handler, returning the JSON-serializable result object or a symbolic
// error. Unknown methods surface as UnsupportedRequest so the server can
// map them to a stable MethodNotFound code.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, rawParams json.RawMessage) (interface{}, error) {
	switch method {
	case "version":
		return d.version()

	case "create_account":
		return d.createAccount(ctx, rawParams)
	case "import_account":
		return d.importAccount(ctx, rawParams)
	case "import_view_only_account":
		return d.importViewOnlyAccount(ctx, rawParams)
	case "export_view_only_sync_request":
		return d.exportViewOnlySyncRequest(ctx, rawParams)
	case "get_account":
		return d.getAccount(ctx, rawParams)
	case "get_all_accounts":
		return d.getAllAccounts(ctx)
	case "get_account_status":
		return d.getAccountStatus(ctx, rawParams)
	case "update_account_name":
		return d.updateAccountName(ctx, rawParams)
	case "remove_account":
		return d.removeAccount(ctx, rawParams)

	case "assign_address_for_account":
		return d.assignAddressForAccount(ctx, rawParams)
	case "get_addresses_for_account":
		return d.getAddressesForAccount(ctx, rawParams)
	case "get_address_status":
		return d.getAddressStatus(ctx, rawParams)

	case "get_txo":
		return d.getTxo(ctx, rawParams)
	case "validate_tx_out":
		return d.validateTxOut(ctx, rawParams)
	case "get_txos_for_account":
		return d.getTxosForAccount(ctx, rawParams)
	case "get_txos_for_address":
		return d.getTxosForAddress(ctx, rawParams)
	case "get_tx_out_membership_proofs":
		return d.getTxOutMembershipProofs(ctx, rawParams)
	case "sample_mixins":
		return d.sampleMixins(ctx, rawParams)

	case "build_transaction":
		return d.buildTransaction(ctx, rawParams, false)
	case "build_burn_transaction":
		return d.buildTransaction(ctx, rawParams, true)
	case "build_unsigned_transaction":
		return d.buildUnsignedTransaction(ctx, rawParams, false)
	case "build_unsigned_burn_transaction":
		return d.buildUnsignedTransaction(ctx, rawParams, true)
	case "submit_transaction":
		return d.submitTransaction(ctx, rawParams)
	case "build_and_submit_transaction":
		return d.buildAndSubmitTransaction(ctx, rawParams)
	case "create_receiver_receipts":
		return d.createReceiverReceipts(ctx, rawParams)

	case "get_transaction_log":
		return d.getTransactionLog(ctx, rawParams)
	case "get_transaction_logs_for_account":
		return d.getTransactionLogsForAccount(ctx, rawParams)
	case "get_confirmations":
		return d.getConfirmations(ctx, rawParams)
	case "validate_confirmation":
		return d.validateConfirmation(ctx, rawParams)

	case "get_network_status":
		return d.getNetworkStatus(ctx)
	case "get_block":
		return d.getBlock(ctx, rawParams)
	case "get_recent_blocks":
		return d.getRecentBlocks(ctx, rawParams)
	case "search_ledger":
		return d.searchLedger(ctx, rawParams)

	case "build_gift_code":
		return d.buildGiftCode(ctx, rawParams)
	case "submit_gift_code":
		return d.submitGiftCode(ctx, rawParams)
	case "get_gift_code":
		return d.getGiftCode(ctx, rawParams)
	case "get_all_gift_codes":
		return d.getAllGiftCodes(ctx)
	case "check_gift_code_status":
		return d.checkGiftCodeStatus(ctx, rawParams)
	case "claim_gift_code":
		return d.claimGiftCode(ctx, rawParams)
	case "remove_gift_code":
		return d.removeGiftCode(ctx, rawParams)

	case "sync_txos":
		return d.syncTxos(ctx, rawParams)

	default:
		return nil, errs.Newf(errs.KindUnsupportedRequest, "rpc: unknown method %q", method)
	}
}

func unmarshalParams(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.Wrap(errs.KindTransactionValidation, err)
	}
	return nil
}

// --- version -----------------------------------------------------------

type versionResult struct {
	Version  string `json:"version"`
	Protocol string `json:"request_protocol_version"`
}

func (d *Dispatcher) version() (interface{}, error) {
	return versionResult{Version: "1.0.0", Protocol: protocolVersion}, nil
}

// --- account -------------------------------------------------------------

type createAccountParams struct {
	Name            string  `json:"name"`
	FirstBlockIndex *uint64 `json:"first_block_index,omitempty"`
}

func (d *Dispatcher) createAccount(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if err := d.writeGuard(); err != nil {
		return nil, err
	}
	var p createAccountParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	keys, err := account.NewRandom()
	if err != nil {
		return nil, err
	}
	first := uint64(0)
	if p.FirstBlockIndex != nil {
		first = *p.FirstBlockIndex
	}
	acct, err := account.Create(ctx, d.DB, keys, p.Name, first)
	if err != nil {
		return nil, err
	}
	return wireCreatedAccount{Account: toWireAccount(acct), Mnemonic: keys.Mnemonic}, nil
}

type importAccountParams struct {
	Mnemonic        string  `json:"mnemonic,omitempty"`
	LegacyEntropy   string  `json:"legacy_entropy_hex,omitempty"`
	Name            string  `json:"name"`
	FirstBlockIndex *uint64 `json:"first_block_index,omitempty"`
}

func (d *Dispatcher) importAccount(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if err := d.writeGuard(); err != nil {
		return nil, err
	}
	var p importAccountParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}

	var keys account.Keys
	var err error
	switch {
	case p.Mnemonic != "":
		keys, err = account.FromMnemonic(p.Mnemonic)
	case p.LegacyEntropy != "":
		entropy, derr := decode32("legacy_entropy_hex", p.LegacyEntropy)
		if derr != nil {
			return nil, derr
		}
		keys = account.FromLegacyEntropy(entropy)
	default:
		return nil, errs.New(errs.KindTransactionValidation, "rpc: import_account requires mnemonic or legacy_entropy_hex")
	}
	if err != nil {
		return nil, err
	}

	first := uint64(0)
	if p.FirstBlockIndex != nil {
		first = *p.FirstBlockIndex
	}
	acct, err := account.Create(ctx, d.DB, keys, p.Name, first)
	if err != nil {
		return nil, err
	}
	return wireCreatedAccount{Account: toWireAccount(acct)}, nil
}

type importViewOnlyAccountParams struct {
	ViewPrivate     string  `json:"view_private_key"`
	SpendPublic     string  `json:"spend_public_key"`
	Name            string  `json:"name"`
	FirstBlockIndex *uint64 `json:"first_block_index,omitempty"`
}

func (d *Dispatcher) importViewOnlyAccount(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if err := d.writeGuard(); err != nil {
		return nil, err
	}
	var p importViewOnlyAccountParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	viewPrivBytes, err := decode32("view_private_key", p.ViewPrivate)
	if err != nil {
		return nil, err
	}
	spendPubBytes, err := decode32("spend_public_key", p.SpendPublic)
	if err != nil {
		return nil, err
	}
	viewPriv, err := crypto.NewScalarFromBytes(viewPrivBytes)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransactionValidation, err)
	}
	spendPub, err := crypto.NewPointFromBytes(spendPubBytes)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransactionValidation, err)
	}
	first := uint64(0)
	if p.FirstBlockIndex != nil {
		first = *p.FirstBlockIndex
	}
	acct, err := account.CreateViewOnly(ctx, d.DB, viewPriv, spendPub, p.Name, first)
	if err != nil {
		return nil, err
	}
	return wireCreatedAccount{Account: toWireAccount(acct)}, nil
}

type accountIDParams struct {
	AccountID string `json:"account_id"`
}

type wireViewOnlySyncRequest struct {
	AccountID   string `json:"account_id"`
	ViewPrivate string `json:"view_private_key"`
	SpendPublic string `json:"spend_public_key"`
}

func (d *Dispatcher) exportViewOnlySyncRequest(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p accountIDParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := decode32("account_id", p.AccountID)
	if err != nil {
		return nil, err
	}
	acct, err := d.DB.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	req := account.ExportViewOnlySyncRequest(acct)
	return wireViewOnlySyncRequest{
		AccountID:   hexEncode32(req.AccountID),
		ViewPrivate: hexEncode32(req.ViewPrivate),
		SpendPublic: hexEncode32(req.SpendPublic),
	}, nil
}

func (d *Dispatcher) getAccount(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p accountIDParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := decode32("account_id", p.AccountID)
	if err != nil {
		return nil, err
	}
	acct, err := d.DB.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return toWireAccount(acct), nil
}

func (d *Dispatcher) getAllAccounts(ctx context.Context) (interface{}, error) {
	accounts, err := d.DB.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]wireAccount, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toWireAccount(a))
	}
	return out, nil
}

type wireAccountStatus struct {
	Account  wireAccount                      `json:"account"`
	Balances map[string]wireTokenBalance       `json:"balance_per_token"`
}

type wireTokenBalance struct {
	Unspent      string `json:"unspent"`
	Pending      string `json:"pending"`
	Spent        string `json:"spent"`
	Secreted     string `json:"secreted"`
	Orphaned     string `json:"orphaned"`
	Unverified   string `json:"unverified"`
	MaxSpendable string `json:"max_spendable"`
}

func (d *Dispatcher) getAccountStatus(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p accountIDParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := decode32("account_id", p.AccountID)
	if err != nil {
		return nil, err
	}
	acct, err := d.DB.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	balances, err := d.Balances.GetBalances(ctx, id, d.Fees.FeeFor)
	if err != nil {
		return nil, err
	}
	out := wireAccountStatus{Account: toWireAccount(acct), Balances: map[string]wireTokenBalance{}}
	for tokenID, b := range balances {
		out.Balances[uitoa(tokenID)] = wireTokenBalance{
			Unspent:      uitoa(b.Unspent),
			Pending:      uitoa(b.Pending),
			Spent:        uitoa(b.Spent),
			Secreted:     uitoa(b.Secreted),
			Orphaned:     uitoa(b.Orphaned),
			Unverified:   uitoa(b.Unverified),
			MaxSpendable: uitoa(b.MaxSpendable),
		}
	}
	return out, nil
}

type updateAccountNameParams struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
}

func (d *Dispatcher) updateAccountName(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if err := d.writeGuard(); err != nil {
		return nil, err
	}
	var p updateAccountNameParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := decode32("account_id", p.AccountID)
	if err != nil {
		return nil, err
	}
	if err := d.DB.RenameAccount(ctx, id, p.Name); err != nil {
		return nil, err
	}
	acct, err := d.DB.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return toWireAccount(acct), nil
}

func (d *Dispatcher) removeAccount(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if err := d.writeGuard(); err != nil {
		return nil, err
	}
	var p accountIDParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := decode32("account_id", p.AccountID)
	if err != nil {
		return nil, err
	}
	if err := d.DB.RemoveAccount(ctx, id); err != nil {
		return nil, err
	}
	return map[string]bool{"removed": true}, nil
}

// --- subaddress ------------------------------------------------------

type assignAddressParams struct {
	AccountID string `json:"account_id"`
	Metadata  string `json:"metadata,omitempty"`
}

func (d *Dispatcher) assignAddressForAccount(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if err := d.writeGuard(); err != nil {
		return nil, err
	}
	var p assignAddressParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := decode32("account_id", p.AccountID)
	if err != nil {
		return nil, err
	}
	acct, err := d.DB.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	index, err := d.DB.AssignNextSubaddressIndex(ctx, id)
	if err != nil {
		return nil, err
	}

	viewPrivate, err := crypto.NewScalarFromBytes(acct.ViewPrivate)
	if err != nil {
		return nil, err
	}
	spendPublic, err := crypto.NewPointFromBytes(acct.SpendPublic)
	if err != nil {
		return nil, err
	}
	subSpendPublic, subViewPublic := address.DeriveSubaddressPublicKeys(viewPrivate, spendPublic, index)
	b58 := address.Encode(address.PublicAddress{ViewPublic: subViewPublic, SpendPublic: subSpendPublic})

	sub, err := d.DB.CreateSubaddress(ctx, id, index, b58, p.Metadata)
	if err != nil {
		return nil, err
	}

	if d.Scanner != nil {
		if err := d.Scanner.RescanOrphans(ctx, id, index); err != nil {
			return nil, err
		}
	}

	return toWireSubaddress(sub), nil
}

func (d *Dispatcher) getAddressesForAccount(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p accountIDParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := decode32("account_id", p.AccountID)
	if err != nil {
		return nil, err
	}
	subs, err := d.DB.ListSubaddresses(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]wireSubaddress, 0, len(subs))
	for _, s := range subs {
		out = append(out, toWireSubaddress(s))
	}
	return out, nil
}

type addressStatusParams struct {
	PublicAddressB58 string `json:"public_address_b58"`
}

func (d *Dispatcher) getAddressStatus(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p addressStatusParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	sub, err := d.DB.FindSubaddressByPublicAddress(ctx, p.PublicAddressB58)
	if err != nil {
		return nil, err
	}
	return toWireSubaddress(sub), nil
}

// --- txo ---------------------------------------------------------------

type txoIDParams struct {
	TxoID string `json:"txo_id"`
}

func (d *Dispatcher) getTxo(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p txoIDParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := decode32("txo_id", p.TxoID)
	if err != nil {
		return nil, err
	}
	t, err := d.DB.GetTxo(ctx, id)
	if err != nil {
		return nil, err
	}
	return toWireTxo(t), nil
}

type validateTxoParams struct {
	AccountID string `json:"account_id"`
	PublicKey string `json:"public_key"`
}

type wireTxoValidation struct {
	Txo         wireTxo `json:"txo"`
	InLedger    bool    `json:"in_ledger"`
	GlobalIndex uint64  `json:"global_index,omitempty"`
}

// validateTxOut implements validate_tx_out (§4.K): it resolves a txo by its
// on-chain output public key, scoped to the account that is expected to
// own it, and reports whether that same output is confirmed present in the
// Block Store — the txo-group's own legitimacy check, distinct from
// search_ledger's ledger-group lookup by public key or key image.
func (d *Dispatcher) validateTxOut(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p validateTxoParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	accountID, err := decode32("account_id", p.AccountID)
	if err != nil {
		return nil, err
	}
	publicKey, err := decode32("public_key", p.PublicKey)
	if err != nil {
		return nil, err
	}

	t, err := d.DB.GetTxoByPublicKey(ctx, accountID, publicKey)
	if err != nil {
		return nil, err
	}

	globalIndex, found, err := d.Ledger.GetTxoByPublicKey(publicKey)
	if err != nil {
		return nil, err
	}

	return wireTxoValidation{Txo: toWireTxo(t), InLedger: found, GlobalIndex: globalIndex}, nil
}

func (d *Dispatcher) getTxosForAccount(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p accountIDParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := decode32("account_id", p.AccountID)
	if err != nil {
		return nil, err
	}
	txos, err := d.DB.ListTxosForAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]wireTxo, 0, len(txos))
	for _, t := range txos {
		out = append(out, toWireTxo(t))
	}
	return out, nil
}

func (d *Dispatcher) getTxosForAddress(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p addressStatusParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	sub, err := d.DB.FindSubaddressByPublicAddress(ctx, p.PublicAddressB58)
	if err != nil {
		return nil, err
	}
	txos, err := d.DB.ListTxosForSubaddress(ctx, sub.AccountID, sub.Index)
	if err != nil {
		return nil, err
	}
	out := make([]wireTxo, 0, len(txos))
	for _, t := range txos {
		out = append(out, toWireTxo(t))
	}
	return out, nil
}

type membershipProofsParams struct {
	GlobalIndices []uint64 `json:"global_indices"`
}

func (d *Dispatcher) getTxOutMembershipProofs(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p membershipProofsParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	proofs, err := d.Ledger.GetMembershipProofs(p.GlobalIndices)
	if err != nil {
		return nil, err
	}
	out := make([]wireMembershipProof, 0, len(proofs))
	for _, pr := range proofs {
		out = append(out, toWireMembershipProof(pr))
	}
	return out, nil
}

type sampleMixinsParams struct {
	Count               int      `json:"count"`
	ExcludedPublicKeys  []string `json:"excluded_public_keys,omitempty"`
}

func (d *Dispatcher) sampleMixins(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p sampleMixinsParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	exclude := make(map[[32]byte]struct{}, len(p.ExcludedPublicKeys))
	for _, hexKey := range p.ExcludedPublicKeys {
		k, err := decode32("excluded_public_keys[]", hexKey)
		if err != nil {
			return nil, err
		}
		exclude[k] = struct{}{}
	}
	sampled, err := d.KeyImages.SampleN(exclude, p.Count)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(sampled))
	for _, pk := range sampled {
		out = append(out, hexEncode32(pk))
	}
	return map[string][]string{"mixins": out}, nil
}

// --- transaction ---------------------------------------------------------

type buildTransactionParams struct {
	AccountID                           string            `json:"account_id"`
	AddressesAndAmounts                 [][2]string        `json:"addresses_and_amounts,omitempty"`
	RecipientPublicAddress              string            `json:"recipient_public_address,omitempty"`
	Amount                              string            `json:"amount,omitempty"`
	TokenID                             uint64            `json:"token_id,omitempty"`
	InputTxoIDs                         []string          `json:"input_txo_ids,omitempty"`
	FeeValue                            *string           `json:"fee_value,omitempty"`
	FeeTokenID                          *uint64           `json:"fee_token_id,omitempty"`
	TombstoneBlock                      *uint64           `json:"tombstone_block,omitempty"`
	BlockVersion                        uint32            `json:"block_version,omitempty"`
	SenderMemoCredentialSubaddressIndex *uint64           `json:"sender_memo_credential_subaddress_index,omitempty"`
	PaymentRequestID                    *uint64           `json:"payment_request_id,omitempty"`
	MaxSpendableValue                   *string           `json:"max_spendable_value,omitempty"`
	SpendOnlyFromSubaddress             *uint64           `json:"spend_only_from_subaddress,omitempty"`
	RedemptionMemoHex                   string            `json:"redemption_memo_hex,omitempty"`
}

func (p buildTransactionParams) toBuilderParams() (txbuilder.Params, error) {
	accountID, err := decode32("account_id", p.AccountID)
	if err != nil {
		return txbuilder.Params{}, err
	}

	var outlays []txbuilder.Outlay
	if len(p.AddressesAndAmounts) > 0 {
		for _, pair := range p.AddressesAndAmounts {
			value, err := atoui(pair[1])
			if err != nil {
				return txbuilder.Params{}, err
			}
			outlays = append(outlays, txbuilder.Outlay{
				RecipientPublicAddressB58: pair[0],
				Amount:                    chain.Amount{Value: value, TokenID: p.TokenID},
			})
		}
	} else if p.RecipientPublicAddress != "" {
		value, err := atoui(p.Amount)
		if err != nil {
			return txbuilder.Params{}, err
		}
		outlays = append(outlays, txbuilder.Outlay{
			RecipientPublicAddressB58: p.RecipientPublicAddress,
			Amount:                    chain.Amount{Value: value, TokenID: p.TokenID},
		})
	}

	var inputIDs [][32]byte
	for _, idHex := range p.InputTxoIDs {
		id, err := decode32("input_txo_ids[]", idHex)
		if err != nil {
			return txbuilder.Params{}, err
		}
		inputIDs = append(inputIDs, id)
	}

	var feeOverride *chain.Amount
	if p.FeeValue != nil {
		v, err := atoui(*p.FeeValue)
		if err != nil {
			return txbuilder.Params{}, err
		}
		tokenID := p.TokenID
		if p.FeeTokenID != nil {
			tokenID = *p.FeeTokenID
		}
		feeOverride = &chain.Amount{Value: v, TokenID: tokenID}
	}

	var maxSpendable *uint64
	if p.MaxSpendableValue != nil {
		v, err := atoui(*p.MaxSpendableValue)
		if err != nil {
			return txbuilder.Params{}, err
		}
		maxSpendable = &v
	}

	var redemptionMemo []byte
	if p.RedemptionMemoHex != "" {
		redemptionMemo, err = decodeBytes("redemption_memo_hex", p.RedemptionMemoHex)
		if err != nil {
			return txbuilder.Params{}, err
		}
	}

	return txbuilder.Params{
		AccountID:                           accountID,
		Outlays:                             outlays,
		InputTxoIDs:                         inputIDs,
		FeeOverride:                          feeOverride,
		TombstoneBlock:                      p.TombstoneBlock,
		BlockVersion:                        p.BlockVersion,
		SenderMemoCredentialSubaddressIndex: p.SenderMemoCredentialSubaddressIndex,
		PaymentRequestID:                    p.PaymentRequestID,
		MaxSpendableValue:                   maxSpendable,
		SpendOnlyFromSubaddress:             p.SpendOnlyFromSubaddress,
		RedemptionMemoHex:                   redemptionMemo,
	}, nil
}

func (d *Dispatcher) buildTransaction(ctx context.Context, raw json.RawMessage, isBurn bool) (interface{}, error) {
	var p buildTransactionParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	bp, err := p.toBuilderParams()
	if err != nil {
		return nil, err
	}
	acct, err := d.DB.GetAccount(ctx, bp.AccountID)
	if err != nil {
		return nil, err
	}

	var prop txbuilder.TxProposal
	if isBurn {
		prop, err = d.Builder.BuildBurn(ctx, acct, bp)
	} else {
		prop, err = d.Builder.Build(ctx, acct, bp)
	}
	if err != nil {
		return nil, err
	}
	return toWireTxProposal(prop), nil
}

func (d *Dispatcher) buildUnsignedTransaction(ctx context.Context, raw json.RawMessage, isBurn bool) (interface{}, error) {
	var p buildTransactionParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	bp, err := p.toBuilderParams()
	if err != nil {
		return nil, err
	}
	acct, err := d.DB.GetAccount(ctx, bp.AccountID)
	if err != nil {
		return nil, err
	}
	_ = isBurn // burn routing happens inside Builder.BuildBurn; BuildUnsigned covers the non-burn offline-signer flow (§4.I)
	unsigned, err := d.Builder.BuildUnsigned(ctx, acct, bp)
	if err != nil {
		return nil, err
	}
	return toWireUnsignedProposal(unsigned), nil
}

func (d *Dispatcher) submitTransaction(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if err := d.writeGuard(); err != nil {
		return nil, err
	}
	var p struct {
		TxProposal wireTxProposal `json:"tx_proposal"`
		Comment    string         `json:"comment,omitempty"`
	}
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	prop, err := fromWireTxProposal(p.TxProposal)
	if err != nil {
		return nil, err
	}
	if err := d.Submission.Submit(ctx, prop, true, p.Comment); err != nil {
		return nil, err
	}
	return map[string]bool{"submitted": true}, nil
}

func (d *Dispatcher) buildAndSubmitTransaction(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if err := d.writeGuard(); err != nil {
		return nil, err
	}
	// Comment rides alongside the build params on the same request object.
	var withComment struct {
		buildTransactionParams
		Comment string `json:"comment,omitempty"`
	}
	if err := unmarshalParams(raw, &withComment); err != nil {
		return nil, err
	}
	comment := withComment.Comment

	bp, err := withComment.buildTransactionParams.toBuilderParams()
	if err != nil {
		return nil, err
	}
	acct, err := d.DB.GetAccount(ctx, bp.AccountID)
	if err != nil {
		return nil, err
	}

	prop, err := d.Submission.BuildAndSubmit(ctx, func() (txbuilder.TxProposal, error) {
		return d.Builder.Build(ctx, acct, bp)
	}, comment)
	if err != nil {
		return nil, err
	}
	return toWireTxProposal(prop), nil
}

type wireReceiverReceipt struct {
	PublicKey          string     `json:"public_key"`
	ConfirmationNumber string     `json:"confirmation_number"`
	Amount             wireAmount `json:"amount"`
	TombstoneBlock     uint64     `json:"tombstone_block_index"`
}

func (d *Dispatcher) createReceiverReceipts(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p struct {
		TxProposal wireTxProposal `json:"tx_proposal"`
	}
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	prop, err := fromWireTxProposal(p.TxProposal)
	if err != nil {
		return nil, err
	}
	receipts := make([]wireReceiverReceipt, 0, len(prop.PayloadTxos))
	for _, o := range prop.PayloadTxos {
		receipts = append(receipts, wireReceiverReceipt{
			PublicKey:          hexEncode32(o.Record.PublicKey),
			ConfirmationNumber: hexEncode32(o.ConfirmationNumber),
			Amount:             wireAmount{Value: o.AmountValue, TokenID: o.AmountTokenID},
			TombstoneBlock:     prop.TombstoneBlockIndex,
		})
	}
	return receipts, nil
}

// --- transaction log -----------------------------------------------------

type transactionLogIDParams struct {
	TransactionLogID string `json:"transaction_log_id"`
}

func (d *Dispatcher) getTransactionLog(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p transactionLogIDParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := decode32("transaction_log_id", p.TransactionLogID)
	if err != nil {
		return nil, err
	}
	l, err := d.DB.GetTransactionLog(ctx, id)
	if err != nil {
		return nil, err
	}
	return toWireTransactionLog(l), nil
}

func (d *Dispatcher) getTransactionLogsForAccount(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p accountIDParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := decode32("account_id", p.AccountID)
	if err != nil {
		return nil, err
	}
	logs, err := d.DB.ListTransactionLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]wireTransactionLog, 0, len(logs))
	for _, l := range logs {
		out = append(out, toWireTransactionLog(l))
	}
	return out, nil
}

func (d *Dispatcher) getConfirmations(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p transactionLogIDParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := decode32("transaction_log_id", p.TransactionLogID)
	if err != nil {
		return nil, err
	}
	outputs, err := d.DB.OutputsForLog(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(outputs))
	for _, o := range outputs {
		if o.Kind != walletdb.OutputKindPayload {
			continue
		}
		txo, err := d.DB.GetTxo(ctx, o.TxoID)
		if err != nil {
			continue // payload txo usually belongs to the recipient's own wallet
		}
		if txo.ConfirmationNumber != nil {
			out = append(out, hexEncode32(*txo.ConfirmationNumber))
		}
	}
	return map[string][]string{"confirmations": out}, nil
}

type validateConfirmationParams struct {
	AccountID          string `json:"account_id"`
	TxoID              string `json:"txo_id"`
	ConfirmationNumber string `json:"confirmation_number"`
}

func (d *Dispatcher) validateConfirmation(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p validateConfirmationParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	accountID, err := decode32("account_id", p.AccountID)
	if err != nil {
		return nil, err
	}
	txoID, err := decode32("txo_id", p.TxoID)
	if err != nil {
		return nil, err
	}
	confirmation, err := decode32("confirmation_number", p.ConfirmationNumber)
	if err != nil {
		return nil, err
	}

	acct, err := d.DB.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	txo, err := d.DB.GetTxo(ctx, txoID)
	if err != nil {
		return nil, err
	}
	viewPrivate, err := crypto.NewScalarFromBytes(acct.ViewPrivate)
	if err != nil {
		return nil, err
	}
	outputPublicKey, err := crypto.NewPointFromBytes(txo.PublicKey)
	if err != nil {
		return nil, err
	}
	sharedSecret := crypto.SharedSecret(viewPrivate, outputPublicKey)
	expect := crypto.ConfirmationNumber(sharedSecret, outputPublicKey)
	return map[string]bool{"valid": expect == confirmation}, nil
}

// --- ledger ----------------------------------------------------------

type wireNetworkStatus struct {
	LocalBlockIndex      uint64                `json:"local_block_index"`
	NetworkBlockIndex    uint64                `json:"network_block_index,omitempty"`
	FeePerToken          map[string]string     `json:"fee_pmob_per_token"`
	MaxTombstoneBlocks   uint64                `json:"max_tombstone_blocks"`
}

func (d *Dispatcher) getNetworkStatus(ctx context.Context) (interface{}, error) {
	local, err := d.Ledger.NumBlocks()
	if err != nil {
		return nil, err
	}
	status := wireNetworkStatus{
		LocalBlockIndex:    local,
		MaxTombstoneBlocks: d.Fees.MaxTombstoneBlocks(),
		FeePerToken:        map[string]string{},
	}
	if d.Peer != nil {
		if info, err := d.Peer.GetLastBlockInfo(ctx); err == nil {
			status.NetworkBlockIndex = info.Index
			for tokenID, fee := range info.FeeMap {
				status.FeePerToken[uitoa(tokenID)] = uitoa(fee)
			}
		}
	}
	return status, nil
}

type blockIndexParams struct {
	BlockIndex uint64 `json:"block_index"`
}

func (d *Dispatcher) getBlock(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p blockIndexParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	b, err := d.Ledger.GetBlock(p.BlockIndex)
	if err != nil {
		return nil, err
	}
	return toWireBlock(b), nil
}

type recentBlocksParams struct {
	Count uint64 `json:"count,omitempty"`
}

func (d *Dispatcher) getRecentBlocks(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p recentBlocksParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Count == 0 {
		p.Count = 10
	}
	num, err := d.Ledger.NumBlocks()
	if err != nil {
		return nil, err
	}
	var out []wireBlock
	start := uint64(0)
	if num > p.Count {
		start = num - p.Count
	}
	for i := start; i < num; i++ {
		b, err := d.Ledger.GetBlock(i)
		if err != nil {
			return nil, err
		}
		out = append(out, toWireBlock(b))
	}
	return out, nil
}

type searchLedgerParams struct {
	PublicKey string `json:"public_key,omitempty"`
	KeyImage  string `json:"key_image,omitempty"`
}

func (d *Dispatcher) searchLedger(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p searchLedgerParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	switch {
	case p.PublicKey != "":
		pk, err := decode32("public_key", p.PublicKey)
		if err != nil {
			return nil, err
		}
		globalIndex, found, err := d.Ledger.GetTxoByPublicKey(pk)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errs.New(errs.KindTxoNotFound, "rpc: no such output in the ledger")
		}
		return map[string]interface{}{"global_index": globalIndex}, nil
	case p.KeyImage != "":
		ki, err := decode32("key_image", p.KeyImage)
		if err != nil {
			return nil, err
		}
		idx, found, err := d.KeyImages.BlockOf(ki)
		if err != nil {
			return nil, err
		}
		if !found {
			return map[string]interface{}{"spent": false}, nil
		}
		return map[string]interface{}{"spent": true, "block_index": idx}, nil
	default:
		return nil, errs.New(errs.KindTransactionValidation, "rpc: search_ledger requires public_key or key_image")
	}
}

// --- gift code -----------------------------------------------------------

type buildGiftCodeParams struct {
	AccountID string `json:"account_id"`
	Value     string `json:"value"`
	TokenID   uint64 `json:"token_id,omitempty"`
	Memo      string `json:"memo,omitempty"`
}

func (d *Dispatcher) buildGiftCode(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if err := d.writeGuard(); err != nil {
		return nil, err
	}
	var p buildGiftCodeParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	accountID, err := decode32("account_id", p.AccountID)
	if err != nil {
		return nil, err
	}
	value, err := atoui(p.Value)
	if err != nil {
		return nil, err
	}
	acct, err := d.DB.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	tip, err := d.LocalTip()
	if err != nil {
		return nil, err
	}
	prop, err := d.GiftCodes.Build(ctx, acct, chain.Amount{Value: value, TokenID: p.TokenID}, p.Memo, tip)
	if err != nil {
		return nil, err
	}
	return toWireGiftCodeProposal(prop), nil
}

func (d *Dispatcher) submitGiftCode(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if err := d.writeGuard(); err != nil {
		return nil, err
	}
	var p struct {
		Proposal wireGiftCodeProposal `json:"gift_code"`
	}
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	prop, err := fromWireGiftCodeProposal(p.Proposal)
	if err != nil {
		return nil, err
	}
	if err := d.GiftCodes.Submit(ctx, prop); err != nil {
		return nil, err
	}
	return map[string]bool{"submitted": true}, nil
}

type giftCodeB58Params struct {
	GiftCodeB58 string `json:"gift_code_b58"`
}

func (d *Dispatcher) getGiftCode(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p giftCodeB58Params
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	gc, err := d.GiftCodes.Get(ctx, p.GiftCodeB58)
	if err != nil {
		return nil, err
	}
	return toWireGiftCode(gc), nil
}

func (d *Dispatcher) getAllGiftCodes(ctx context.Context) (interface{}, error) {
	codes, err := d.GiftCodes.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]wireGiftCode, 0, len(codes))
	for _, gc := range codes {
		out = append(out, toWireGiftCode(gc))
	}
	return out, nil
}

func (d *Dispatcher) checkGiftCodeStatus(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p giftCodeB58Params
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	gc, err := d.GiftCodes.CheckStatus(ctx, p.GiftCodeB58)
	if err != nil {
		return nil, err
	}
	return toWireGiftCode(gc), nil
}

type claimGiftCodeParams struct {
	GiftCodeB58 string `json:"gift_code_b58"`
	AccountID   string `json:"account_id"`
}

func (d *Dispatcher) claimGiftCode(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if err := d.writeGuard(); err != nil {
		return nil, err
	}
	var p claimGiftCodeParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	accountID, err := decode32("account_id", p.AccountID)
	if err != nil {
		return nil, err
	}
	acct, err := d.DB.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := d.GiftCodes.Claim(ctx, p.GiftCodeB58, acct); err != nil {
		return nil, err
	}
	return map[string]bool{"claimed": true}, nil
}

func (d *Dispatcher) removeGiftCode(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if err := d.writeGuard(); err != nil {
		return nil, err
	}
	var p giftCodeB58Params
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	if err := d.GiftCodes.Remove(ctx, p.GiftCodeB58); err != nil {
		return nil, err
	}
	return map[string]bool{"removed": true}, nil
}

// --- sync_txos (view-only accounts, §4.E, §4.K) ---------------------------

type syncTxosParams struct {
	AccountID string            `json:"account_id"`
	Synced    []syncedTxoParams `json:"synced_txos"`
}

type syncedTxoParams struct {
	TxoID    string `json:"txo_id"`
	KeyImage string `json:"key_image"`
}

func (d *Dispatcher) syncTxos(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if err := d.writeGuard(); err != nil {
		return nil, err
	}
	var p syncTxosParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	if _, err := decode32("account_id", p.AccountID); err != nil {
		return nil, err
	}
	applied := 0
	for _, s := range p.Synced {
		txoID, err := decode32("synced_txos[].txo_id", s.TxoID)
		if err != nil {
			return nil, err
		}
		keyImage, err := decode32("synced_txos[].key_image", s.KeyImage)
		if err != nil {
			return nil, err
		}
		if err := d.DB.SetKeyImage(ctx, txoID, keyImage); err != nil {
			return nil, err
		}
		applied++
	}
	return map[string]int{"applied": applied}, nil
}
