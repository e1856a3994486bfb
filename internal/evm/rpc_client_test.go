package evm

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// rpcServer returns a test server answering every request with handler's result or error.
func rpcServer(t *testing.T, handler func(req rpcRequest) (interface{}, *RPCError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		result, rpcErr := handler(req)
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_Call(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) (interface{}, *RPCError) {
		if req.Method != "eth_call" {
			t.Errorf("expected method eth_call, got %s", req.Method)
		}
		if len(req.Params) != 2 || req.Params[1] != "latest" {
			t.Errorf("expected [msg, latest] params, got %v", req.Params)
		}
		msg := req.Params[0].(map[string]interface{})
		if msg["to"] != "0x00000000000000000000000000000000000000aa" {
			t.Errorf("unexpected to: %v", msg["to"])
		}
		if msg["data"] != "0x6352211e" {
			t.Errorf("unexpected data: %v", msg["data"])
		}
		return "0x00ff", nil
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	out, err := client.Call(context.Background(), CallMsg{
		To:   "0x00000000000000000000000000000000000000aa",
		Data: []byte{0x63, 0x52, 0x21, 0x1e},
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(out) != 2 || out[0] != 0x00 || out[1] != 0xff {
		t.Errorf("unexpected result %x", out)
	}
}

func TestHTTPClient_Call_Revert(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) (interface{}, *RPCError) {
		return nil, &RPCError{Code: 3, Message: "execution reverted: ERC721: invalid token ID"}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	_, err := client.Call(context.Background(), CallMsg{To: "0x01"})
	if err == nil {
		t.Fatal("expected error")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %T", err)
	}
	if !rpcErr.IsRevert() {
		t.Errorf("expected revert classification for %v", rpcErr)
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) (interface{}, *RPCError) {
		if req.Method != "eth_sendTransaction" {
			t.Errorf("expected eth_sendTransaction, got %s", req.Method)
		}
		tx := req.Params[0].(map[string]interface{})
		if tx["from"] != "0xsigner" || tx["to"] != "0xcontract" || tx["data"] != "0x1249c58b" {
			t.Errorf("unexpected tx object %v", tx)
		}
		if _, ok := tx["value"]; ok {
			t.Error("value should be omitted for zero-value transaction")
		}
		return "0xhash", nil
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	hash, err := client.SendTransaction(context.Background(), TxRequest{
		From: "0xsigner",
		To:   "0xcontract",
		Data: []byte{0x12, 0x49, 0xc5, 0x8b},
	})
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if hash != "0xhash" {
		t.Errorf("expected 0xhash, got %s", hash)
	}
}

func TestHTTPClient_SendTransaction_UserRejected(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) (interface{}, *RPCError) {
		return nil, &RPCError{Code: CodeUserRejected, Message: "User rejected the request."}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	hash, err := client.SendTransaction(context.Background(), TxRequest{From: "0x1", To: "0x2"})
	if hash != "" {
		t.Errorf("expected no hash, got %s", hash)
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || !rpcErr.IsUserRejected() {
		t.Fatalf("expected user rejected error, got %v", err)
	}
}

func TestHTTPClient_GetTransactionReceipt(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) (interface{}, *RPCError) {
		if req.Method != "eth_getTransactionReceipt" {
			t.Errorf("expected eth_getTransactionReceipt, got %s", req.Method)
		}
		return map[string]interface{}{
			"transactionHash": "0xabc",
			"blockNumber":     "0x10",
			"status":          "0x1",
			"gasUsed":         "0x5208",
			"logs":            []interface{}{},
		}, nil
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	receipt, err := client.GetTransactionReceipt(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("GetTransactionReceipt: %v", err)
	}
	if receipt == nil {
		t.Fatal("expected receipt, got nil")
	}
	if receipt.BlockNumber != 16 {
		t.Errorf("expected block 16, got %d", receipt.BlockNumber)
	}
	if !receipt.Succeeded() {
		t.Error("expected successful receipt")
	}
	if receipt.GasUsed != 21000 {
		t.Errorf("expected gas 21000, got %d", receipt.GasUsed)
	}
}

func TestHTTPClient_GetTransactionReceipt_Pending(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) (interface{}, *RPCError) {
		return nil, nil
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	receipt, err := client.GetTransactionReceipt(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("GetTransactionReceipt: %v", err)
	}
	if receipt != nil {
		t.Errorf("expected nil receipt for pending tx, got %+v", receipt)
	}
}

func TestHTTPClient_GetBalanceAndChainID(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) (interface{}, *RPCError) {
		switch req.Method {
		case "eth_getBalance":
			return "0xde0b6b3a7640000", nil // 1 ether
		case "eth_chainId":
			return "0xaa36a7", nil // sepolia
		}
		t.Errorf("unexpected method %s", req.Method)
		return nil, nil
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	bal, err := client.GetBalance(ctx, "0x1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.Cmp(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)) != 0 {
		t.Errorf("expected 1e18 wei, got %s", bal)
	}

	id, err := client.ChainID(ctx)
	if err != nil {
		t.Fatalf("ChainID: %v", err)
	}
	if id != 11155111 {
		t.Errorf("expected chain id 11155111, got %d", id)
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "0x1",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithRetryDelay(10*time.Millisecond),
		WithMaxDelay(20*time.Millisecond),
	)

	id, err := client.ChainID(context.Background())
	if err != nil {
		t.Fatalf("ChainID after retries: %v", err)
	}
	if id != 1 {
		t.Errorf("expected chain id 1, got %d", id)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := rpcServer(t, func(req rpcRequest) (interface{}, *RPCError) {
		attempts.Add(1)
		return nil, &RPCError{Code: -32000, Message: "boom"}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))

	if _, err := client.ChainID(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.ChainID(ctx)
	if err == nil {
		t.Fatal("expected error on cancelled context")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
