package jsonrpc

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/rollupstate/db"
	"github.com/mezonai/rollupstate/errors"
	"github.com/mezonai/rollupstate/interfaces"
	"github.com/mezonai/rollupstate/jsonx"
	"github.com/mezonai/rollupstate/ledger"
	"github.com/mezonai/rollupstate/service"
	"github.com/mezonai/rollupstate/store"
	"github.com/mezonai/rollupstate/tree"
	"github.com/mezonai/rollupstate/types"
)

type rpcResponse struct {
	Result jsonx.RawMessage `json:"result"`
	Error  *struct {
		Code    int                 `json:"code"`
		Message string              `json:"message"`
		Data    errors.NetworkError `json:"data"`
	} `json:"error"`
}

func newTestRPC(t *testing.T) (*httptest.Server, *ledger.Ledger, types.Address) {
	t.Helper()
	provider, err := db.NewMemLevelDBProvider()
	require.NoError(t, err)
	hs, err := store.NewGenericHistoryStore(provider)
	require.NoError(t, err)
	t.Cleanup(func() { hs.Close() })

	l := ledger.NewLedger(hs, tree.New(8), 0)
	addr := types.BytesToAddress([]byte{9})
	id, err := l.CreateAccount(addr)
	require.NoError(t, err)
	require.NoError(t, l.Credit(id, 1, uint256.NewInt(42)))
	_, err = l.SealBlock()
	require.NoError(t, err)

	s := NewServer(":0", service.NewStateService(l), service.NewHealthService(l, "run-2"))
	s.SetCORSConfig(CORSConfig{AllowedOrigins: []string{"*"}})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, l, addr
}

func call(t *testing.T, url, method string, params interface{}) rpcResponse {
	t.Helper()
	req := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		req["params"] = params
	}
	body, err := jsonx.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var out rpcResponse
	require.NoError(t, jsonx.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRPC_GetRootAndTip(t *testing.T) {
	srv, l, _ := newTestRPC(t)

	res := call(t, srv.URL, MethodStateGetRoot, nil)
	require.Nil(t, res.Error)
	var root interfaces.RootView
	require.NoError(t, jsonx.Unmarshal(res.Result, &root))
	assert.Equal(t, l.RootHash().String(), root.RootHash)
	assert.Equal(t, uint32(1), root.Block)

	res = call(t, srv.URL, MethodChainGetTip, nil)
	require.Nil(t, res.Error)
	var tip interfaces.TipView
	require.NoError(t, jsonx.Unmarshal(res.Result, &tip))
	assert.Equal(t, 1, tip.Accounts)
}

func TestRPC_GetAccount(t *testing.T) {
	srv, _, addr := newTestRPC(t)

	res := call(t, srv.URL, MethodStateGetAccount, map[string]interface{}{"id": 0})
	require.Nil(t, res.Error)
	var acc interfaces.AccountView
	require.NoError(t, jsonx.Unmarshal(res.Result, &acc))
	assert.Equal(t, addr.String(), acc.Address)
	assert.Equal(t, "42", acc.Balances["1"])

	res = call(t, srv.URL, MethodStateGetAccount, map[string]interface{}{"address": addr.String()})
	require.Nil(t, res.Error)
}

func TestRPC_GetAccountErrors(t *testing.T) {
	srv, _, _ := newTestRPC(t)

	tests := []struct {
		name     string
		params   map[string]interface{}
		wantCode errors.NetworkErrorCode
	}{
		{name: "unknown id", params: map[string]interface{}{"id": 77}, wantCode: errors.ErrCodeAccountNotFound},
		{name: "bad address", params: map[string]interface{}{"address": "0OIl"}, wantCode: errors.ErrCodeInvalidAddress},
		{name: "no selector", params: map[string]interface{}{}, wantCode: errors.ErrCodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, srv.URL, MethodStateGetAccount, tt.params)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.wantCode, res.Error.Data.Code)
		})
	}
}

func TestRPC_HealthCheck(t *testing.T) {
	srv, _, _ := newTestRPC(t)

	res := call(t, srv.URL, MethodHealthCheck, nil)
	require.Nil(t, res.Error)
	var status interfaces.HealthStatus
	require.NoError(t, jsonx.Unmarshal(res.Result, &status))
	assert.Equal(t, "run-2", status.RestoreID)
}

func TestCORSFromEnv(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , https://b.example ")
	t.Setenv("CORS_MAX_AGE", "60")

	cfg, ok := CORSFromEnv()
	require.True(t, ok)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 60, cfg.MaxAge)
}
