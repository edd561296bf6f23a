// Package balance implements the Balance Engine (§4.F): a pure,
// monotone-in-the-DB-snapshot derivation of per-token balances from the
// Wallet DB.
package balance

import (
	"context"

	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
)

// DefaultMaxInputsPerTransaction is K in "top K unspent txos" for
// max_spendable (§4.F), the protocol's cap on inputs per transaction.
const DefaultMaxInputsPerTransaction = 16

// TokenBalance is one token_id's entry in an account's balance map (§4.F).
type TokenBalance struct {
	TokenID      uint64
	Unspent      uint64
	Pending      uint64
	Spent        uint64
	Secreted     uint64
	Orphaned     uint64
	Unverified   uint64
	MaxSpendable uint64
}

// Engine computes balances from a Wallet DB snapshot.
type Engine struct {
	db                     *walletdb.DB
	maxInputsPerTransaction int
}

// New builds an Engine over db. maxInputsPerTransaction of 0 uses
// DefaultMaxInputsPerTransaction.
func New(db *walletdb.DB, maxInputsPerTransaction int) *Engine {
	if maxInputsPerTransaction <= 0 {
		maxInputsPerTransaction = DefaultMaxInputsPerTransaction
	}
	return &Engine{db: db, maxInputsPerTransaction: maxInputsPerTransaction}
}

// GetBalances computes the per-token balance map for an account (§4.F).
// feeForToken supplies the fee to subtract when computing max_spendable;
// callers normally pass feeschedule.Schedule.FeeFor.
func (e *Engine) GetBalances(ctx context.Context, accountID [32]byte, feeForToken func(tokenID uint64) uint64) (map[uint64]TokenBalance, error) {
	balances := make(map[uint64]TokenBalance)

	get := func(tokenID uint64) TokenBalance {
		b, ok := balances[tokenID]
		if !ok {
			b = TokenBalance{TokenID: tokenID}
		}
		return b
	}

	orphans, err := e.db.ListOrphaned(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, t := range orphans {
		b := get(t.AmountTokenID)
		b.Orphaned += t.AmountValue
		balances[t.AmountTokenID] = b
	}

	unverified, err := e.db.ListUnverified(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, t := range unverified {
		if t.SubaddressIndex == nil {
			// Already counted as orphaned above.
			continue
		}
		b := get(t.AmountTokenID)
		b.Unverified += t.AmountValue
		balances[t.AmountTokenID] = b
	}

	pending, err := e.db.ListPending(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, txLog := range pending {
		inputIDs, err := e.db.InputTxoIDsDB(ctx, txLog.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range inputIDs {
			input, err := e.db.GetTxo(ctx, id)
			if err != nil {
				return nil, err
			}
			b := get(input.AmountTokenID)
			b.Pending += input.AmountValue
			balances[input.AmountTokenID] = b
		}
	}

	// The set of tokens to compute unspent/spent/max_spendable for is
	// every token_id the account has ever held a txo of, not just the
	// ones that happen to have an orphaned/unverified/pending entry.
	tokenIDs, err := e.db.ListTokenIDs(ctx, accountID)
	if err != nil {
		return nil, err
	}
	seenTokens := make(map[uint64]struct{}, len(tokenIDs)+1)
	for _, id := range tokenIDs {
		seenTokens[id] = struct{}{}
	}
	seenTokens[0] = struct{}{}

	for tokenID := range seenTokens {
		unspent, err := e.db.ListUnspent(ctx, accountID, tokenID)
		if err != nil {
			return nil, err
		}

		var sum uint64
		for _, t := range unspent {
			sum += t.AmountValue
		}
		b := get(tokenID)
		b.Unspent = sum
		balances[tokenID] = b

		spent, err := e.db.ListSpent(ctx, accountID, tokenID)
		if err != nil {
			return nil, err
		}
		var spentSum uint64
		for _, t := range spent {
			spentSum += t.AmountValue
		}
		b = get(tokenID)
		b.Spent = spentSum
		balances[tokenID] = b

		var fee uint64
		if feeForToken != nil {
			fee = feeForToken(tokenID)
		}
		b = get(tokenID)
		b.MaxSpendable = maxSpendable(unspent, e.maxInputsPerTransaction, fee)
		balances[tokenID] = b
	}

	return balances, nil
}

// maxSpendable sums the K largest unspent txos and subtracts fee, the
// computation §4.F's `max_spendable` describes. It never returns a
// negative amount. ListUnspent already orders its result by amount_value
// descending, so the K largest are simply its first K entries.
func maxSpendable(unspent []walletdb.Txo, k int, fee uint64) uint64 {
	if k > len(unspent) {
		k = len(unspent)
	}
	var sum uint64
	for i := 0; i < k; i++ {
		sum += unspent[i].AmountValue
	}
	if sum < fee {
		return 0
	}
	return sum - fee
}
