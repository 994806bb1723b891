package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRPCServer(t *testing.T, handle func(method string, params json.RawMessage) (interface{}, string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, errMsg := handle(req.Method, req.Params)
		resp := map[string]interface{}{}
		if errMsg != "" {
			resp["error"] = map[string]interface{}{"code": -1, "message": errMsg}
		} else {
			resp["result"] = result
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func clientFor(server *httptest.Server) *HTTPSettlementClient {
	client := NewHTTPSettlementClient(&SettlementClientConfig{
		RPCURL:        server.URL,
		PoolWallet:    "pool-wallet",
		TokenMint:     "reward-mint",
		TokenDecimals: 6,
		ServiceToken:  "svc-token",
	})
	client.PollInterval = 10 * time.Millisecond
	return client
}

func TestResolveTokenAccount(t *testing.T) {
	server := newRPCServer(t, func(method string, params json.RawMessage) (interface{}, string) {
		assert.Equal(t, "resolveTokenAccount", method)
		var p map[string]string
		require.NoError(t, json.Unmarshal(params, &p))
		assert.Equal(t, "owner-1", p["owner"])
		assert.Equal(t, "reward-mint", p["mint"])
		return map[string]string{"token_account": "tok-1"}, ""
	})
	defer server.Close()

	account, err := clientFor(server).ResolveTokenAccount(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", account)
}

func TestResolveTokenAccount_EmptyResultIsError(t *testing.T) {
	server := newRPCServer(t, func(string, json.RawMessage) (interface{}, string) {
		return map[string]string{"token_account": ""}, ""
	})
	defer server.Close()

	_, err := clientFor(server).ResolveTokenAccount(context.Background(), "owner-1")
	assert.Error(t, err)
}

func TestSubmitTransfer_CarriesReference(t *testing.T) {
	server := newRPCServer(t, func(method string, params json.RawMessage) (interface{}, string) {
		assert.Equal(t, "submitTransfer", method)
		var p map[string]interface{}
		require.NoError(t, json.Unmarshal(params, &p))
		assert.Equal(t, "stake-1", p["reference"])
		assert.Equal(t, float64(2500000000), p["amount"])
		return map[string]string{"signature": "sig-1"}, ""
	})
	defer server.Close()

	sig, err := clientFor(server).SubmitTransfer(context.Background(), "tok-pool", "tok-owner", 2500000000, "stake-1")
	require.NoError(t, err)
	assert.Equal(t, "sig-1", sig)
}

func TestSubmitTransfer_RPCErrorSurfaces(t *testing.T) {
	server := newRPCServer(t, func(string, json.RawMessage) (interface{}, string) {
		return nil, "insufficient pool balance"
	})
	defer server.Close()

	_, err := clientFor(server).SubmitTransfer(context.Background(), "a", "b", 1, "ref")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient pool balance")
}

func TestAwaitConfirmation_PollsUntilConfirmed(t *testing.T) {
	var calls atomic.Int32
	server := newRPCServer(t, func(method string, _ json.RawMessage) (interface{}, string) {
		assert.Equal(t, "getConfirmation", method)
		if calls.Add(1) < 3 {
			return map[string]string{"status": "pending"}, ""
		}
		return map[string]string{"status": "confirmed"}, ""
	})
	defer server.Close()

	err := clientFor(server).AwaitConfirmation(context.Background(), "sig-1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestAwaitConfirmation_GivesUpOnForeverPending(t *testing.T) {
	server := newRPCServer(t, func(string, json.RawMessage) (interface{}, string) {
		return map[string]string{"status": "pending"}, ""
	})
	defer server.Close()

	client := clientFor(server)
	client.ConfirmTimeout = 50 * time.Millisecond

	start := time.Now()
	err := client.AwaitConfirmation(context.Background(), "sig-stuck")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAwaitConfirmation_FailedTransfer(t *testing.T) {
	server := newRPCServer(t, func(string, json.RawMessage) (interface{}, string) {
		return map[string]string{"status": "failed"}, ""
	})
	defer server.Close()

	err := clientFor(server).AwaitConfirmation(context.Background(), "sig-1")
	assert.Error(t, err)
}

func TestAccountingClient_NotifyUnstakeSettled(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/internal/unstakes/settled", r.URL.Path)
		assert.Equal(t, "acct-token", r.Header.Get("X-Service-Token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewAccountingClient(server.URL, "acct-token")
	err := client.NotifyUnstakeSettled(context.Background(), "stake-1", "sig-1")
	require.NoError(t, err)
	assert.Equal(t, "stake-1", got["stake_id"])
	assert.Equal(t, "sig-1", got["tx_signature"])
}

func TestAccountingClient_Non2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewAccountingClient(server.URL, "acct-token")
	err := client.NotifyUnstakeSettled(context.Background(), "stake-1", "sig-1")
	assert.Error(t, err)
}
