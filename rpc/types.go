package rpc

import (
	"github.com/mobilecoinofficial/full-service-sub000/account"
	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/giftcode"
	"github.com/mobilecoinofficial/full-service-sub000/ledger"
	"github.com/mobilecoinofficial/full-service-sub000/txbuilder"
	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
)

// The types in this file are the JSON wire shapes of §4.K's result
// objects: every internal [32]byte is rendered as a hex string, matching
// §3's "hex at wire boundary" identifier convention.

type wireAccount struct {
	AccountID           string `json:"account_id"`
	Name                string `json:"name"`
	SpendPublic         string `json:"spend_public_key"`
	FirstBlockIndex     uint64 `json:"first_block_index"`
	NextBlockIndex      uint64 `json:"next_block_index"`
	NextSubaddressIndex uint64 `json:"next_subaddress_index"`
	ViewOnly            bool   `json:"view_only"`
	FogReportURL        string `json:"fog_report_url,omitempty"`
}

func toWireAccount(a walletdb.Account) wireAccount {
	return wireAccount{
		AccountID:           hexEncode32(a.ID),
		Name:                a.Name,
		SpendPublic:         hexEncode32(a.SpendPublic),
		FirstBlockIndex:     a.FirstBlockIndex,
		NextBlockIndex:      a.NextBlockIndex,
		NextSubaddressIndex: a.NextSubaddressIndex,
		ViewOnly:            a.ViewOnly,
		FogReportURL:        a.FogReportURL,
	}
}

type wireCreatedAccount struct {
	Account  wireAccount `json:"account"`
	Mnemonic string      `json:"mnemonic,omitempty"`
}

type wireSubaddress struct {
	AccountID        string `json:"account_id"`
	Index            uint64 `json:"index"`
	PublicAddressB58 string `json:"public_address_b58"`
	Metadata         string `json:"metadata,omitempty"`
}

func toWireSubaddress(s walletdb.Subaddress) wireSubaddress {
	return wireSubaddress{
		AccountID:        hexEncode32(s.AccountID),
		Index:            s.Index,
		PublicAddressB58: s.PublicAddressB58,
		Metadata:         s.Metadata,
	}
}

type wireAmount struct {
	Value   uint64 `json:"value,string"`
	TokenID uint64 `json:"token_id,string"`
}

func toWireAmount(a chain.Amount) wireAmount {
	return wireAmount{Value: a.Value, TokenID: a.TokenID}
}

type wireTxo struct {
	TxoID               string  `json:"txo_id"`
	AccountID           string  `json:"account_id"`
	Amount              wireAmount `json:"amount"`
	SubaddressIndex     *uint64 `json:"subaddress_index,omitempty"`
	ReceivedBlockIndex  *uint64 `json:"received_block_index,omitempty"`
	SpentBlockIndex     *uint64 `json:"spent_block_index,omitempty"`
	KeyImage            string  `json:"key_image,omitempty"`
	PublicKey           string  `json:"public_key"`
	ConfirmationNumber  string  `json:"confirmation_number,omitempty"`
}

func toWireTxo(t walletdb.Txo) wireTxo {
	w := wireTxo{
		TxoID:              hexEncode32(t.ID),
		AccountID:          hexEncode32(t.AccountID),
		Amount:             wireAmount{Value: t.AmountValue, TokenID: t.AmountTokenID},
		SubaddressIndex:    t.SubaddressIndex,
		ReceivedBlockIndex: t.ReceivedBlockIndex,
		SpentBlockIndex:    t.SpentBlockIndex,
		PublicKey:          hexEncode32(t.PublicKey),
	}
	if t.KeyImage != nil {
		w.KeyImage = hexEncode32(*t.KeyImage)
	}
	if t.ConfirmationNumber != nil {
		w.ConfirmationNumber = hexEncode32(*t.ConfirmationNumber)
	}
	return w
}

type wireTransactionLog struct {
	LogID               string `json:"transaction_log_id"`
	AccountID           string `json:"account_id"`
	Status              string `json:"status"`
	SubmittedBlockIndex *uint64 `json:"submitted_block_index,omitempty"`
	TombstoneBlockIndex uint64 `json:"tombstone_block_index"`
	FinalizedBlockIndex *uint64 `json:"finalized_block_index,omitempty"`
	Fee                 wireAmount `json:"fee"`
	Comment             string `json:"comment,omitempty"`
}

func toWireTransactionLog(l walletdb.TransactionLog) wireTransactionLog {
	return wireTransactionLog{
		LogID:               hexEncode32(l.ID),
		AccountID:           hexEncode32(l.AccountID),
		Status:              string(l.Status),
		SubmittedBlockIndex: l.SubmittedBlockIndex,
		TombstoneBlockIndex: l.TombstoneBlockIndex,
		FinalizedBlockIndex: l.FinalizedBlockIndex,
		Fee:                 wireAmount{Value: l.FeeValue, TokenID: l.FeeTokenID},
		Comment:             l.Comment,
	}
}

type wireTxOutRecord struct {
	Commitment       string `json:"commitment"`
	MaskedValue      uint64 `json:"masked_value,string"`
	MaskedTokenID    uint64 `json:"masked_token_id,string"`
	TargetKey        string `json:"target_key"`
	PublicKey        string `json:"public_key"`
	EncryptedFogHint string `json:"encrypted_fog_hint,omitempty"`
	EncryptedMemo    string `json:"encrypted_memo"`
}

func toWireTxOutRecord(r chain.TxOutRecord) wireTxOutRecord {
	return wireTxOutRecord{
		Commitment:       hexEncode32(r.Commitment),
		MaskedValue:      r.MaskedValue,
		MaskedTokenID:    r.MaskedTokenID,
		TargetKey:        hexEncode32(r.TargetKey),
		PublicKey:        hexEncode32(r.PublicKey),
		EncryptedFogHint: hexEncode(r.EncryptedFogHint),
		EncryptedMemo:    hexEncode(r.EncryptedMemo[:]),
	}
}

func fromWireTxOutRecord(w wireTxOutRecord) (chain.TxOutRecord, error) {
	var r chain.TxOutRecord
	var err error
	if r.Commitment, err = decode32("commitment", w.Commitment); err != nil {
		return r, err
	}
	if r.TargetKey, err = decode32("target_key", w.TargetKey); err != nil {
		return r, err
	}
	if r.PublicKey, err = decode32("public_key", w.PublicKey); err != nil {
		return r, err
	}
	r.MaskedValue = w.MaskedValue
	r.MaskedTokenID = w.MaskedTokenID
	if r.EncryptedFogHint, err = decodeBytes("encrypted_fog_hint", w.EncryptedFogHint); err != nil {
		return r, err
	}
	memo, err := decodeBytes("encrypted_memo", w.EncryptedMemo)
	if err != nil {
		return r, err
	}
	copy(r.EncryptedMemo[:], memo)
	return r, nil
}

type wireProposalOutput struct {
	Record                    wireTxOutRecord `json:"txout"`
	RecipientPublicAddressB58 string          `json:"recipient_public_address_b58"`
	ConfirmationNumber        string          `json:"confirmation_number"`
	Amount                    wireAmount      `json:"amount"`
	SubaddressIndex           *uint64         `json:"subaddress_index,omitempty"`
}

func toWireProposalOutput(o txbuilder.ProposalOutput) wireProposalOutput {
	return wireProposalOutput{
		Record:                    toWireTxOutRecord(o.Record),
		RecipientPublicAddressB58: o.RecipientPublicAddressB58,
		ConfirmationNumber:        hexEncode32(o.ConfirmationNumber),
		Amount:                    wireAmount{Value: o.AmountValue, TokenID: o.AmountTokenID},
		SubaddressIndex:           o.SubaddressIndex,
	}
}

func fromWireProposalOutput(w wireProposalOutput) (txbuilder.ProposalOutput, error) {
	rec, err := fromWireTxOutRecord(w.Record)
	if err != nil {
		return txbuilder.ProposalOutput{}, err
	}
	conf, err := decode32("confirmation_number", w.ConfirmationNumber)
	if err != nil {
		return txbuilder.ProposalOutput{}, err
	}
	return txbuilder.ProposalOutput{
		Record:                    rec,
		RecipientPublicAddressB58: w.RecipientPublicAddressB58,
		ConfirmationNumber:        conf,
		AmountValue:               w.Amount.Value,
		AmountTokenID:             w.Amount.TokenID,
		SubaddressIndex:           w.SubaddressIndex,
	}, nil
}

// wireTxProposal is the shape build_transaction/build_burn_transaction
// return and submit_transaction accepts back (§4.K "submit(tx_proposal,
// ...)"). InputTxoIDs is enough to resubmit: the Submission Manager only
// needs each input's id, never its full row, to record a transaction log.
type wireTxProposal struct {
	AccountID           string               `json:"account_id"`
	InputTxoIDs         []string             `json:"input_txo_ids"`
	PayloadTxos         []wireProposalOutput `json:"payload_txos"`
	ChangeTxos          []wireProposalOutput `json:"change_txos"`
	Fee                 wireAmount           `json:"fee"`
	TombstoneBlockIndex uint64               `json:"tombstone_block_index"`
	TxProto             string               `json:"tx_proto"`
	LogID               string               `json:"transaction_log_id"`
}

func toWireTxProposal(p txbuilder.TxProposal) wireTxProposal {
	w := wireTxProposal{
		AccountID:           hexEncode32(p.AccountID),
		Fee:                 toWireAmount(p.FeeAmount),
		TombstoneBlockIndex: p.TombstoneBlockIndex,
		TxProto:             hexEncode(p.TxProto),
		LogID:               hexEncode32(p.LogID),
	}
	for _, t := range p.InputTxos {
		w.InputTxoIDs = append(w.InputTxoIDs, hexEncode32(t.ID))
	}
	for _, o := range p.PayloadTxos {
		w.PayloadTxos = append(w.PayloadTxos, toWireProposalOutput(o))
	}
	for _, o := range p.ChangeTxos {
		w.ChangeTxos = append(w.ChangeTxos, toWireProposalOutput(o))
	}
	return w
}

func fromWireTxProposal(w wireTxProposal) (txbuilder.TxProposal, error) {
	var p txbuilder.TxProposal
	var err error
	if p.AccountID, err = decode32("account_id", w.AccountID); err != nil {
		return p, err
	}
	if p.LogID, err = decode32("transaction_log_id", w.LogID); err != nil {
		return p, err
	}
	for _, idHex := range w.InputTxoIDs {
		id, err := decode32("input_txo_ids[]", idHex)
		if err != nil {
			return p, err
		}
		p.InputTxos = append(p.InputTxos, walletdb.Txo{ID: id})
	}
	for _, wo := range w.PayloadTxos {
		o, err := fromWireProposalOutput(wo)
		if err != nil {
			return p, err
		}
		p.PayloadTxos = append(p.PayloadTxos, o)
	}
	for _, wo := range w.ChangeTxos {
		o, err := fromWireProposalOutput(wo)
		if err != nil {
			return p, err
		}
		p.ChangeTxos = append(p.ChangeTxos, o)
	}
	p.FeeAmount = chain.Amount{Value: w.Fee.Value, TokenID: w.Fee.TokenID}
	p.TombstoneBlockIndex = w.TombstoneBlockIndex
	if p.TxProto, err = decodeBytes("tx_proto", w.TxProto); err != nil {
		return p, err
	}
	return p, nil
}

type wireUnsignedProposal struct {
	AccountID           string               `json:"account_id"`
	PayloadTxos         []wireProposalOutput `json:"payload_txos"`
	ChangeTxos          []wireProposalOutput `json:"change_txos"`
	Fee                 wireAmount           `json:"fee"`
	TombstoneBlockIndex uint64               `json:"tombstone_block_index"`
	BlockVersion        uint32               `json:"block_version"`
	Rings               []wireRing           `json:"rings"`
	SignDescriptors     []wireSignDescriptor `json:"sign_descriptors"`
}

type wireRing struct {
	Members   []wireRingMember `json:"members"`
	RealIndex int              `json:"real_index"`
}

type wireRingMember struct {
	PublicKey string `json:"public_key"`
	TargetKey string `json:"target_key"`
	Index     uint64 `json:"index"`
}

type wireSignDescriptor struct {
	Ring           []string `json:"ring"`
	RealIndex      int      `json:"real_index"`
	OnetimePrivate string   `json:"onetime_private_key"`
}

func toWireUnsignedProposal(u txbuilder.UnsignedTxProposal) wireUnsignedProposal {
	w := wireUnsignedProposal{
		AccountID:           hexEncode32(u.AccountID),
		Fee:                 toWireAmount(u.FeeAmount),
		TombstoneBlockIndex: u.TombstoneBlockIndex,
		BlockVersion:        u.BlockVersion,
	}
	for _, o := range u.PayloadTxos {
		w.PayloadTxos = append(w.PayloadTxos, toWireProposalOutput(o))
	}
	for _, o := range u.ChangeTxos {
		w.ChangeTxos = append(w.ChangeTxos, toWireProposalOutput(o))
	}
	for _, r := range u.Rings {
		wr := wireRing{RealIndex: r.RealIndex}
		for _, m := range r.Members {
			wr.Members = append(wr.Members, wireRingMember{
				PublicKey: hexEncode32(m.PublicKey),
				TargetKey: hexEncode32(m.TargetKey),
				Index:     m.Index,
			})
		}
		w.Rings = append(w.Rings, wr)
	}
	for _, d := range u.Descriptors {
		wd := wireSignDescriptor{RealIndex: d.RealIndex}
		for _, pt := range d.Ring {
			b := pt.Bytes()
			wd.Ring = append(wd.Ring, hexEncode32(b))
		}
		otp := d.OnetimePrivate.Bytes()
		wd.OnetimePrivate = hexEncode32(otp)
		w.SignDescriptors = append(w.SignDescriptors, wd)
	}
	return w
}

type wireGiftCode struct {
	B58       string     `json:"gift_code_b58"`
	Value     uint64     `json:"value,string"`
	TokenID   uint64     `json:"token_id,string"`
	Memo      string     `json:"memo,omitempty"`
	AccountID string     `json:"account_id"`
	Status    string     `json:"status"`
}

func toWireGiftCode(g walletdb.GiftCode) wireGiftCode {
	return wireGiftCode{
		B58:       g.B58,
		Value:     g.Value,
		TokenID:   g.TokenID,
		Memo:      g.Memo,
		AccountID: hexEncode32(g.AccountID),
		Status:    string(g.Status),
	}
}

type wireGiftCodeProposal struct {
	B58       string         `json:"gift_code_b58"`
	Entropy   string         `json:"entropy"`
	Value     uint64         `json:"value,string"`
	TokenID   uint64         `json:"token_id,string"`
	Memo      string         `json:"memo,omitempty"`
	AccountID string         `json:"account_id"`
	Tx        wireTxProposal `json:"tx_proposal"`
}

func toWireGiftCodeProposal(p giftcode.Proposal) wireGiftCodeProposal {
	return wireGiftCodeProposal{
		B58:       p.B58,
		Entropy:   hexEncode32(p.Entropy),
		Value:     p.Value,
		TokenID:   p.TokenID,
		Memo:      p.Memo,
		AccountID: hexEncode32(p.AccountID),
		Tx:        toWireTxProposal(p.Tx),
	}
}

func fromWireGiftCodeProposal(w wireGiftCodeProposal) (giftcode.Proposal, error) {
	var p giftcode.Proposal
	var err error
	if p.Entropy, err = decode32("entropy", w.Entropy); err != nil {
		return p, err
	}
	if p.AccountID, err = decode32("account_id", w.AccountID); err != nil {
		return p, err
	}
	p.B58 = w.B58
	p.Value = w.Value
	p.TokenID = w.TokenID
	p.Memo = w.Memo
	if p.Tx, err = fromWireTxProposal(w.Tx); err != nil {
		return p, err
	}
	return p, nil
}

type wireBlock struct {
	Index              uint64 `json:"index"`
	ParentHash         string `json:"parent_hash"`
	ContentsHash       string `json:"contents_hash"`
	CumulativeTxoCount uint64 `json:"cumulative_txo_count"`
	RootElement        string `json:"root_element"`
	Version            uint32 `json:"version"`
}

func toWireBlock(b chain.Block) wireBlock {
	return wireBlock{
		Index:              b.Index,
		ParentHash:         hexEncode32(b.ParentHash),
		ContentsHash:       hexEncode32(b.ContentsHash),
		CumulativeTxoCount: b.CumulativeTxoCount,
		RootElement:        hexEncode32(b.RootElement),
		Version:            b.Version,
	}
}

type wireMembershipProof struct {
	Index    uint64   `json:"index"`
	Elements []string `json:"elements"`
}

func toWireMembershipProof(p ledger.MembershipProof) wireMembershipProof {
	w := wireMembershipProof{Index: p.Index}
	for _, e := range p.Elements {
		w.Elements = append(w.Elements, hexEncode32(e))
	}
	return w
}

type wireImportedKeys struct {
	Account  wireAccount `json:"account"`
}

func keysFromImport(k account.Keys) account.Keys { return k }
