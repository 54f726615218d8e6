package fleethttp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bavix/faros/internal/device"
	"github.com/bavix/faros/internal/fleethttp"
	"github.com/bavix/faros/internal/status"
	"github.com/bavix/faros/internal/topology"
)

func fleet(t *testing.T) *topology.Topology {
	t.Helper()

	devs := device.Classify(context.Background(), []map[string]string{
		{"serial": "FH4B000021", "remote:type": "faros", "remote": "faros://10.0.0.1"},
		{"serial": "RF3E000040", "remote:type": "iris", "remote": "iris://192.168.1.101/status"},
		{"serial": "RF3E000041", "remote:type": "iris", "remote": "iris://192.168.1.102/status"},
		{"serial": "RF3E000099", "remote:type": "iris", "remote": "iris://192.168.1.150/status"},
	})
	require.Len(t, devs, 4)

	hub, head, tail, lone := devs[0], devs[1], devs[2], devs[3]

	require.NoError(t, hub.AttachStatus(status.Document{
		"jtagblob": map[string]any{"config": map[string]any{"network": map[string]any{
			"eth0": "00:11:22:33:44:01",
		}}},
	}))

	attach := func(dev *device.Device, msgIdx int, head *status.RRHConfig) {
		doc := status.Document{
			"extra": map[string]any{"gateway_addr": "001122334401"},
			"global": map[string]any{
				"message_index": float64(msgIdx),
				"chain_index":   float64(0),
			},
		}

		if head != nil {
			doc["sfp"] = map[string]any{"config": map[string]any{"rrh": map[string]any{
				"serial": head.Serial,
				"chain":  []any{"RF3E000040", "RF3E000041"},
			}}}
		}

		require.NoError(t, dev.AttachStatus(doc))
	}

	attach(head, 1, &status.RRHConfig{Serial: "RRH-A1"})
	attach(tail, 2, nil)

	require.NoError(t, lone.AttachStatus(status.Document{
		"extra": map[string]any{"gateway_addr": "00aabbccddee"},
		"global": map[string]any{
			"message_index": float64(1),
			"chain_index":   float64(0),
		},
	}))

	topo, err := topology.Build(context.Background(),
		[]*device.Device{hub, head, tail, lone}, topology.Options{})
	require.NoError(t, err)

	return topo
}

func get(t *testing.T, handler http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return rec, body
}

func TestNoTopologyYet(t *testing.T) {
	t.Parallel()

	router := fleethttp.NewRouter(func() *topology.Topology { return nil })

	for _, path := range []string{"/api/topology", "/api/hubs", "/api/standalone"} {
		rec, body := get(t, router, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Contains(t, body, "error")
	}
}

func TestGetTopology(t *testing.T) {
	t.Parallel()

	topo := fleet(t)
	router := fleethttp.NewRouter(func() *topology.Topology { return topo })

	rec, body := get(t, router, "/api/topology")
	require.Equal(t, http.StatusOK, rec.Code)

	stations, ok := body["BaseStations"].(map[string]any)
	require.True(t, ok)

	station, ok := stations["BS0"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "FH4B000021", station["hub"])
	assert.Equal(t, []any{"RRH-A1"}, station["rrh"])
}

func TestGetHubs(t *testing.T) {
	t.Parallel()

	topo := fleet(t)
	router := fleethttp.NewRouter(func() *topology.Topology { return topo })

	rec, body := get(t, router, "/api/hubs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 1, body["count"], 0)

	hubs, ok := body["hubs"].([]any)
	require.True(t, ok)
	require.Len(t, hubs, 1)

	hub, ok := hubs[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "FH4B000021", hub["serial"])
	assert.Equal(t, false, hub["error"])

	chains, ok := hub["chains"].([]any)
	require.True(t, ok)
	require.Len(t, chains, 1)

	chain, ok := chains[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "RRH-A1", chain["serial"])
	assert.Equal(t, true, chain["config_correct"])
	assert.Equal(t, []any{"RF3E000040", "RF3E000041"}, chain["members"])
}

func TestGetStandalone(t *testing.T) {
	t.Parallel()

	topo := fleet(t)
	router := fleethttp.NewRouter(func() *topology.Topology { return topo })

	rec, body := get(t, router, "/api/standalone")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"RF3E000099"}, body["standalone"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	router := fleethttp.NewRouter(func() *topology.Topology { return nil })

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
