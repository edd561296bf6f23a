// Package peer implements the two external network collaborators the
// Ledger Syncer and Submission Manager depend on (§6): the Peer RPC client
// and the archive block fetcher. Both are consumed through small
// interfaces so the rest of the daemon never depends on the wire format.
package peer

import (
	"context"
	"time"

	"github.com/mobilecoinofficial/full-service-sub000/chain"
)

// LastBlockInfo is the status snapshot a peer reports (§6
// get_last_block_info).
type LastBlockInfo struct {
	Index              uint64
	Hash               [32]byte
	BlockVersion       uint32
	FeeMap             map[uint64]uint64
	MaxTombstoneBlocks uint64
}

// ProposeResult is the outcome of submitting a signed transaction blob to a
// peer (§6 propose_tx).
type ProposeResult struct {
	Accepted bool
	Code     string
	Message  string
}

// Client is the Peer RPC collaborator consumed by the Ledger Syncer
// (quorum cross-check, fee schedule refresh) and the Submission Manager
// (proposal submission). The precise wire format is the implementation's
// concern; the core depends only on this contract (§6).
type Client interface {
	GetLastBlockInfo(ctx context.Context) (LastBlockInfo, error)
	GetBlock(ctx context.Context, index uint64) (chain.Block, chain.BlockContents, error)
	ProposeTx(ctx context.Context, signedTxBlob []byte) (ProposeResult, error)
}

// QuorumClient cross-checks a block hash across a set of peer Clients,
// implementing the Ledger Syncer's "peers win, quorum required" tie-break
// (§4.B).
type QuorumClient struct {
	peers   []Client
	quorum  int
	timeout time.Duration
	hashFn  func(...[]byte) [32]byte
}

// NewQuorumClient builds a QuorumClient requiring at least quorum
// agreeing responses out of peers, each individual call bounded by
// timeout. hashFn is the block content-hash function (the daemon wires
// this to crypto.Hash256 at startup).
func NewQuorumClient(peers []Client, quorum int, timeout time.Duration, hashFn func(...[]byte) [32]byte) *QuorumClient {
	return &QuorumClient{peers: peers, quorum: quorum, timeout: timeout, hashFn: hashFn}
}

// AgreesOnHash reports whether at least q.quorum configured peers report
// hash for block index i.
func (q *QuorumClient) AgreesOnHash(ctx context.Context, index uint64, hash [32]byte) (bool, error) {
	agree := 0
	var lastErr error
	for _, p := range q.peers {
		cctx, cancel := context.WithTimeout(ctx, q.timeout)
		block, _, err := p.GetBlock(cctx, index)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if block.Hash(q.hashFn) == hash {
			agree++
		}
	}
	if agree >= q.quorum {
		return true, nil
	}
	if agree == 0 && lastErr != nil {
		return false, lastErr
	}
	return false, nil
}
