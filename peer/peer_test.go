package peer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientGetLastBlockInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"index":                "12",
			"hash":                 "0000000000000000000000000000000000000000000000000000000000000001",
			"block_version":        2,
			"fee_map":              map[string]string{"0": "400"},
			"max_tombstone_blocks": "10",
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	info, err := c.GetLastBlockInfo(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 12, info.Index)
	require.EqualValues(t, 2, info.BlockVersion)
	require.Equal(t, uint64(400), info.FeeMap[0])
	require.EqualValues(t, 10, info.MaxTombstoneBlocks)
}

func TestHTTPClientProposeTx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ProposeResult{Accepted: true})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	result, err := c.ProposeTx(context.Background(), []byte("blob"))
	require.NoError(t, err)
	require.True(t, result.Accepted)
}

func TestHTTPArchiveFetcherRoundRobinsAndRetries(t *testing.T) {
	var calls []string
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "bad")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "good")
		_, _ = w.Write([]byte("blockdata"))
	}))
	defer good.Close()

	f := NewHTTPArchiveFetcher([]string{bad.URL, good.URL}, WithRetryPolicy(3, time.Millisecond))
	blob, err := f.FetchBlock(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, []byte("blockdata"), blob)
	require.Contains(t, calls, "good")
}

func TestHTTPArchiveFetcherFailsAfterExhaustingRetries(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	f := NewHTTPArchiveFetcher([]string{bad.URL}, WithRetryPolicy(2, time.Millisecond))
	_, err := f.FetchBlock(context.Background(), 1)
	require.Error(t, err)
}

type stubClient struct {
	block chain.Block
}

func (s stubClient) GetLastBlockInfo(ctx context.Context) (LastBlockInfo, error) {
	return LastBlockInfo{}, nil
}

func (s stubClient) GetBlock(ctx context.Context, index uint64) (chain.Block, chain.BlockContents, error) {
	return s.block, chain.BlockContents{}, nil
}

func (s stubClient) ProposeTx(ctx context.Context, blob []byte) (ProposeResult, error) {
	return ProposeResult{}, nil
}

func hashFn(parts ...[]byte) [32]byte {
	var out [32]byte
	for _, p := range parts {
		for i, b := range p {
			out[i%32] ^= b
		}
	}
	return out
}

func TestQuorumClientRequiresAgreement(t *testing.T) {
	block := chain.Block{Index: 1, Version: 1}
	hash := block.Hash(hashFn)

	agreeing := stubClient{block: block}
	disagreeing := stubClient{block: chain.Block{Index: 1, Version: 2}}

	q := NewQuorumClient([]Client{agreeing, agreeing, disagreeing}, 2, time.Second, hashFn)
	ok, err := q.AgreesOnHash(context.Background(), 1, hash)
	require.NoError(t, err)
	require.True(t, ok)

	q2 := NewQuorumClient([]Client{disagreeing, disagreeing}, 1, time.Second, hashFn)
	ok, err = q2.AgreesOnHash(context.Background(), 1, hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDiscoverSeedsDNSSurfacesNetworkErrors(t *testing.T) {
	_, err := DiscoverSeedsDNS("127.0.0.1:1", "_peers._tcp.invalid.example.")
	require.Error(t, err)
}
