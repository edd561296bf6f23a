package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli"
)

type rpcRequest struct {
	Version string          `json:"version"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	Version string          `json:"version"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		ServerError string `json:"server_error"`
		SubCode     string `json:"sub_code"`
		Details     string `json:"details"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data.SubCode != "" {
		return fmt.Sprintf("%s/%s: %s", e.Data.ServerError, e.Data.SubCode, e.Data.Details)
	}
	return fmt.Sprintf("%s: %s", e.Data.ServerError, e.Data.Details)
}

// call issues method against ctx's -rpcserver with params marshaled as the
// request body, decoding the result into out.
func call(ctx *cli.Context, method string, params interface{}, out interface{}) error {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return err
		}
		raw = b
	}

	req := rpcRequest{Version: "2", ID: requestID(), Method: method, Params: raw}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest(http.MethodPost, "http://"+ctx.GlobalString("rpcserver")+"/v2", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m := ctx.GlobalString("macaroon"); m != "" {
		httpReq.Header.Set("Macaroon", m)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("calling walletd: %w", err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decoding walletd response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

func requestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
