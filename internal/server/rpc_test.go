package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (ts *testServer) rpc(t *testing.T, body interface{}) rpcResponse {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/rpc", body)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	assert.Equal(t, "2.0", resp.JSONRPC)
	return resp
}

func call(method string, params interface{}) map[string]interface{} {
	req := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		req["params"] = params
	}
	return req
}

func TestJSONRPCErrors(t *testing.T) {
	ts := newTestServer(t, testConfig(t), nil)

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{name: "parse error", body: "{", code: -32700},
		{name: "wrong version", body: map[string]interface{}{"jsonrpc": "1.0", "id": 1, "method": "problems.list"}, code: -32600},
		{name: "unknown method", body: call("optimization.pause", nil), code: -32601},
		{name: "start without params", body: call("optimization.start", nil), code: -32602},
		{name: "start with empty array", body: call("optimization.start", []interface{}{}), code: -32602},
		{name: "start with scalar", body: call("optimization.start", []interface{}{"two_global"}), code: -32602},
		{name: "start with invalid config", body: call("optimization.start", map[string]interface{}{"problem": "two_global", "population_size": 2}), code: -32602},
		{name: "status without id", body: call("optimization.status", map[string]interface{}{}), code: -32602},
		{name: "status of unknown job", body: call("optimization.status", map[string]interface{}{"optimization_id": "nope"}), code: -32000},
		{name: "cancel of unknown job", body: call("optimization.cancel", []interface{}{map[string]interface{}{"optimization_id": "nope"}}), code: -32000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.rpc(t, tt.body)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestJSONRPCLifecycle(t *testing.T) {
	ts := newTestServer(t, testConfig(t), nil)

	// Parameters may be passed positionally, as the first array element.
	resp := ts.rpc(t, call("optimization.start", []interface{}{map[string]interface{}{
		"strategy":        "classic",
		"problem":         "two_local.single_dimension",
		"seed":            5,
		"iteration_count": 40,
	}}))
	require.Nil(t, resp.Error)
	assert.Equal(t, float64(1), resp.ID)

	var started StatusResponse
	require.NoError(t, json.Unmarshal(resp.Result, &started))
	require.NotEmpty(t, started.ID)

	var status StatusResponse
	require.Eventually(t, func() bool {
		r := ts.rpc(t, call("optimization.status", map[string]interface{}{"optimization_id": started.ID}))
		require.Nil(t, r.Error)
		require.NoError(t, json.Unmarshal(r.Result, &status))
		return status.Status == StatusCompleted
	}, 10*time.Second, 5*time.Millisecond)

	require.NotNil(t, status.ValueError)
	assert.Less(t, *status.ValueError, 1e-2)

	resp = ts.rpc(t, call("optimization.generations", map[string]interface{}{"optimization_id": started.ID}))
	require.Nil(t, resp.Error)
	var gens []GenerationView
	require.NoError(t, json.Unmarshal(resp.Result, &gens))
	assert.Len(t, gens, 40)

	resp = ts.rpc(t, call("optimization.cancel", map[string]interface{}{"optimization_id": started.ID}))
	require.NotNil(t, resp.Error, "a completed job cannot be cancelled")
}

func TestJSONRPCCancel(t *testing.T) {
	ts := newTestServer(t, testConfig(t), nil)

	resp := ts.rpc(t, call("optimization.start", longJob))
	require.Nil(t, resp.Error)
	var started StatusResponse
	require.NoError(t, json.Unmarshal(resp.Result, &started))

	resp = ts.rpc(t, call("optimization.cancel", map[string]interface{}{"optimization_id": started.ID}))
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"status":"cancelled"}`, string(resp.Result))
	assert.Equal(t, StatusCancelled, ts.status(t, started.ID).Status)
}

func TestJSONRPCProblemsList(t *testing.T) {
	ts := newTestServer(t, testConfig(t), nil)

	resp := ts.rpc(t, call("problems.list", nil))
	require.Nil(t, resp.Error)

	var infos []ProblemInfo
	require.NoError(t, json.Unmarshal(resp.Result, &infos))
	assert.Len(t, infos, len(problems()))
}

func TestRespondWithError(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t), nil, nil)
	defer srv.Close()

	tests := []struct {
		name    string
		code    int
		message string
		id      interface{}
	}{
		{name: "numeric id", code: -32601, message: "Method not found", id: float64(7)},
		{name: "string id", code: -32000, message: "optimization not found", id: "abc"},
		{name: "null id", code: -32700, message: "Parse error", id: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.respondWithError(rr, tt.code, tt.message, tt.id)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var resp rpcResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.id, resp.ID)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
		})
	}
}
