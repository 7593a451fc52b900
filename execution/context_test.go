package execution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetContext(t *testing.T) {
	c := New(nil, nil)
	assert.True(t, c.IsVM())

	var changes, endpoints []Change
	c.ContextChanged.Subscribe(func(ch Change) { changes = append(changes, ch) })
	c.EndpointChanged.Subscribe(func(ch Change) { endpoints = append(endpoints, ch) })

	require.Error(t, c.SetContext(Web3, ""))
	require.Error(t, c.SetContext("injected", "x"))

	require.NoError(t, c.SetContext(Web3, "http://localhost:8545"))
	require.NoError(t, c.SetContext(Web3, "http://localhost:8546"))
	require.NoError(t, c.SetContext(VM, "ignored"))

	assert.Equal(t, []Change{{Web3, "http://localhost:8545"}, {VM, ""}}, changes)
	assert.Equal(t, []Change{{Web3, "http://localhost:8546"}}, endpoints)
	assert.True(t, c.IsVM())
	assert.Empty(t, c.Endpoint())
}

func TestSwarmDownload(t *testing.T) {
	var method string
	var params []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string   `json:"method"`
			Params []string `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		method, params = req.Method, req.Params
		if req.Params[0] == "bzz://missing" {
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"not found"}}`))
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"contract S {}"}`))
	}))
	defer srv.Close()

	c := New(nil, nil)
	_, err := c.SwarmDownload(context.Background(), "bzz://abc")
	require.Error(t, err, "vm has no node to ask")

	require.NoError(t, c.SetContext(Web3, srv.URL))
	content, err := c.SwarmDownload(context.Background(), "bzz://abc")
	require.NoError(t, err)
	assert.Equal(t, "contract S {}", content)
	assert.Equal(t, "bzz_get", method)
	assert.Equal(t, []string{"bzz://abc"}, params)

	_, err = c.SwarmDownload(context.Background(), "bzz://missing")
	require.Error(t, err)
	assert.Equal(t, "bzz_get: not found", err.Error())
}
