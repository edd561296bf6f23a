package peer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
)

// HTTPClient is a Client implementation speaking JSON over HTTP to a single
// consensus peer node. It is one concrete wire format for the Peer RPC
// contract §6 leaves unspecified.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient builds an HTTPClient for the peer reachable at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type lastBlockInfoWire struct {
	Index              uint64           `json:"index,string"`
	Hash               string           `json:"hash"`
	BlockVersion       uint32           `json:"block_version"`
	FeeMap             map[string]string `json:"fee_map"`
	MaxTombstoneBlocks uint64           `json:"max_tombstone_blocks,string"`
}

// GetLastBlockInfo implements Client.
func (c *HTTPClient) GetLastBlockInfo(ctx context.Context) (LastBlockInfo, error) {
	var wire lastBlockInfoWire
	if err := c.getJSON(ctx, "/last_block_info", &wire); err != nil {
		return LastBlockInfo{}, err
	}

	hashBytes, err := decodeHex32(wire.Hash)
	if err != nil {
		return LastBlockInfo{}, errs.Wrap(errs.KindNetwork, err)
	}

	feeMap := make(map[uint64]uint64, len(wire.FeeMap))
	for tokenStr, feeStr := range wire.FeeMap {
		token, fee, err := parseTokenFeePair(tokenStr, feeStr)
		if err != nil {
			return LastBlockInfo{}, errs.Wrap(errs.KindNetwork, err)
		}
		feeMap[token] = fee
	}

	return LastBlockInfo{
		Index:              wire.Index,
		Hash:               hashBytes,
		BlockVersion:       wire.BlockVersion,
		FeeMap:             feeMap,
		MaxTombstoneBlocks: wire.MaxTombstoneBlocks,
	}, nil
}

// GetBlock implements Client.
func (c *HTTPClient) GetBlock(ctx context.Context, index uint64) (chain.Block, chain.BlockContents, error) {
	var wire struct {
		Block    chain.Block         `json:"block"`
		Contents chain.BlockContents `json:"contents"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/blocks/%d", index), &wire); err != nil {
		return chain.Block{}, chain.BlockContents{}, err
	}
	return wire.Block, wire.Contents, nil
}

// ProposeTx implements Client.
func (c *HTTPClient) ProposeTx(ctx context.Context, signedTxBlob []byte) (ProposeResult, error) {
	body, err := json.Marshal(struct {
		TxBlob []byte `json:"tx_blob"`
	}{TxBlob: signedTxBlob})
	if err != nil {
		return ProposeResult{}, errs.Wrap(errs.KindNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/propose_tx", bytes.NewReader(body))
	if err != nil {
		return ProposeResult{}, errs.Wrap(errs.KindNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ProposeResult{}, errs.Wrap(errs.KindNetwork, err)
	}
	defer resp.Body.Close()

	var result ProposeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ProposeResult{}, errs.Wrap(errs.KindNetwork, err)
	}
	return result, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errs.Newf(errs.KindNetwork, "peer: %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(errs.KindNetwork, err)
	}
	return nil
}

func decodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("peer: expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func parseTokenFeePair(tokenStr, feeStr string) (uint64, uint64, error) {
	token, err := strconv.ParseUint(tokenStr, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	fee, err := strconv.ParseUint(feeStr, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return token, fee, nil
}
