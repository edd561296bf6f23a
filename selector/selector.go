// Package selector implements the Txo Selector (§4.G): it picks a minimal
// set of an account's unspent txos satisfying an amount, token, and
// optional subaddress constraint. The accumulate-then-check loop is
// modeled on the teacher's greedy `selectInputs`/`CoinSelect`
// (lnwallet/chanfunding/coin_select.go), generalized from a single
// satoshi-like amount to (value, token_id) pairs with a subaddress filter.
package selector

import (
	"context"
	"sort"

	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
)

// Params bundles a selection request (§4.I's option table, the subset
// relevant to picking inputs).
type Params struct {
	AccountID               [32]byte
	TokenID                 uint64
	TargetValue             uint64
	Fee                     uint64
	InputTxoIDs             [][32]byte // override: use exactly these inputs
	MaxSpendableValue       *uint64    // caps which single inputs are eligible
	SpendOnlyFromSubaddress *uint64
}

// Selector picks unspent txos from the Wallet DB to satisfy a Params
// request.
type Selector struct {
	db *walletdb.DB
}

// New builds a Selector over db.
func New(db *walletdb.DB) *Selector {
	return &Selector{db: db}
}

// Select returns a minimal set of unspent txos whose sum is at least
// target+fee, and the resulting change amount (§4.G). It fails with
// InsufficientFunds, or InsufficientFundsAtSubaddress when
// SpendOnlyFromSubaddress narrowed the pool.
func (s *Selector) Select(ctx context.Context, p Params) ([]walletdb.Txo, uint64, error) {
	if len(p.InputTxoIDs) > 0 {
		return s.selectOverride(ctx, p)
	}

	candidates, err := s.db.ListUnspent(ctx, p.AccountID, p.TokenID)
	if err != nil {
		return nil, 0, err
	}
	candidates = filterCandidates(candidates, p)

	need := p.TargetValue + p.Fee

	// Prefer non-dust inputs first; only reach for dust if the non-dust
	// pool alone cannot satisfy the request (§4.G "avoid dust ... unless
	// no alternative").
	nonDust := make([]walletdb.Txo, 0, len(candidates))
	for _, t := range candidates {
		if !isDust(t.AmountValue, p.Fee) {
			nonDust = append(nonDust, t)
		}
	}

	if selected, sum, ok := accumulate(nonDust, need); ok {
		return selected, sum - need, nil
	}
	if selected, sum, ok := accumulate(candidates, need); ok {
		return selected, sum - need, nil
	}

	return nil, 0, insufficientFundsError(p)
}

func (s *Selector) selectOverride(ctx context.Context, p Params) ([]walletdb.Txo, uint64, error) {
	selected := make([]walletdb.Txo, 0, len(p.InputTxoIDs))
	var sum uint64
	for _, id := range p.InputTxoIDs {
		t, err := s.db.GetTxo(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		if t.AccountID != p.AccountID || t.AmountTokenID != p.TokenID {
			return nil, 0, errs.New(errs.KindTransactionValidation, "selector: override input belongs to a different account or token")
		}
		if t.SpentBlockIndex != nil {
			return nil, 0, errs.New(errs.KindTransactionValidation, "selector: override input is already spent")
		}
		selected = append(selected, t)
		sum += t.AmountValue
	}

	need := p.TargetValue + p.Fee
	if sum < need {
		return nil, 0, insufficientFundsError(p)
	}
	return selected, sum - need, nil
}

// filterCandidates narrows the unspent pool by SpendOnlyFromSubaddress and
// MaxSpendableValue, and sorts the result largest-first with a stable sort
// (ListUnspent already returns that order).
func filterCandidates(candidates []walletdb.Txo, p Params) []walletdb.Txo {
	out := make([]walletdb.Txo, 0, len(candidates))
	for _, t := range candidates {
		if p.SpendOnlyFromSubaddress != nil {
			if t.SubaddressIndex == nil || *t.SubaddressIndex != *p.SpendOnlyFromSubaddress {
				continue
			}
		}
		if p.MaxSpendableValue != nil && t.AmountValue > *p.MaxSpendableValue {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AmountValue > out[j].AmountValue })
	return out
}

// accumulate greedily selects from candidates (assumed sorted largest
// first, so the result favors fewer, larger inputs) until the running sum
// reaches need.
func accumulate(candidates []walletdb.Txo, need uint64) ([]walletdb.Txo, uint64, bool) {
	var sum uint64
	for i, t := range candidates {
		sum += t.AmountValue
		if sum >= need {
			return candidates[:i+1], sum, true
		}
	}
	return nil, 0, false
}

// isDust reports whether a txo's value is too small to be worth spending
// relative to the fee it would help pay — the fee-amortization threshold
// §4.G's tie-break policy calls for.
func isDust(value, fee uint64) bool {
	return fee > 0 && value < fee/4
}

func insufficientFundsError(p Params) error {
	if p.SpendOnlyFromSubaddress != nil {
		return errs.Newf(errs.KindInsufficientFundsAtSubaddress,
			"selector: insufficient funds at subaddress %d for token %d", *p.SpendOnlyFromSubaddress, p.TokenID)
	}
	return errs.Newf(errs.KindInsufficientFunds, "selector: insufficient funds for token %d", p.TokenID)
}
