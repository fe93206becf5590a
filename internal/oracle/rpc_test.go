package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcServer(t *testing.T, handler func(req rpcRequest) any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch v := handler(req).(type) {
		case error:
			resp["error"] = map[string]any{"code": -32000, "message": v.Error()}
		default:
			resp["result"] = v
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestNewRPCClientRequiresEndpoints(t *testing.T) {
	_, err := NewRPCClient()
	require.ErrorIs(t, err, ErrNoEndpoints)
}

func TestEthCall(t *testing.T) {
	srv := rpcServer(t, func(req rpcRequest) any {
		assert.Equal(t, "eth_call", req.Method)
		require.Len(t, req.Params, 2)

		call, ok := req.Params[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, testAddr, call["to"])
		assert.Equal(t, "0x01e1d114", call["data"])
		assert.Equal(t, "latest", req.Params[1])

		return "0x000000000000000000000000000000000000000000000000000000000000002a"
	})
	defer srv.Close()

	client, err := NewRPCClient(srv.URL)
	require.NoError(t, err)

	result, err := client.EthCall(context.Background(), testAddr, EncodeTotalAssets())
	require.NoError(t, err)
	require.Len(t, result, 32)
	assert.Equal(t, int64(42), DecodeUint256(result).Int64())
}

func TestEthCallFailsOverToNextEndpoint(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer dead.Close()

	live := rpcServer(t, func(rpcRequest) any {
		return "0x0000000000000000000000000000000000000000000000000000000000000001"
	})
	defer live.Close()

	client, err := NewRPCClient(dead.URL, live.URL)
	require.NoError(t, err)

	result, err := client.EthCall(context.Background(), testAddr, EncodeTotalAssets())
	require.NoError(t, err)
	assert.Equal(t, int64(1), DecodeUint256(result).Int64())
}

func TestEthCallSurfacesRPCError(t *testing.T) {
	srv := rpcServer(t, func(rpcRequest) any {
		return assert.AnError
	})
	defer srv.Close()

	client, err := NewRPCClient(srv.URL)
	require.NoError(t, err)

	_, err = client.EthCall(context.Background(), testAddr, EncodeTotalAssets())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all RPC endpoints failed")
}

func TestEthCallIncrementsRequestID(t *testing.T) {
	var lastID int64
	srv := rpcServer(t, func(req rpcRequest) any {
		lastID = req.ID
		return "0x"
	})
	defer srv.Close()

	client, err := NewRPCClient(srv.URL)
	require.NoError(t, err)

	_, err = client.EthCall(context.Background(), testAddr, EncodeTotalAssets())
	require.NoError(t, err)
	first := lastID

	_, err = client.EthCall(context.Background(), testAddr, EncodeTotalAssets())
	require.NoError(t, err)
	assert.Equal(t, first+1, lastID)
}
