package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/go-gameserver/logger"
	"github.com/cyberinferno/go-gameserver/metrics"
	"github.com/cyberinferno/go-gameserver/server"
)

type fakeSource struct {
	state server.State
	snap  server.Snapshot
}

func (f fakeSource) Snapshot() server.Snapshot { return f.snap }
func (f fakeSource) State() server.State       { return f.state }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name  string
		state server.State
		code  int
	}{
		{"running", server.Running, http.StatusOK},
		{"starting", server.Starting, http.StatusServiceUnavailable},
		{"shutting down", server.ShuttingDown, http.StatusServiceUnavailable},
		{"stopped", server.Stopped, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(fakeSource{state: tt.state}, prometheus.NewRegistry())
			assert.Equal(t, tt.code, get(t, h, "/healthz").Code)
		})
	}
}

func TestStatus(t *testing.T) {
	snap := server.Snapshot{
		Name:            "Test",
		State:           "running",
		Addr:            "127.0.0.1:6000",
		Game:            "Guess My Number",
		Connections:     3,
		Lobby:           1,
		ActiveSessions:  1,
		SessionsStarted: 4,
	}
	h := NewRouter(fakeSource{state: server.Running, snap: snap}, prometheus.NewRegistry())

	rec := get(t, h, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got server.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, snap, got)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New("", reg)
	m.SetLobby(2)

	rec := get(t, NewRouter(fakeSource{}, reg), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gameserver_lobby_size 2")
}

func TestUnknownRoute(t *testing.T) {
	h := NewRouter(fakeSource{}, prometheus.NewRegistry())
	assert.Equal(t, http.StatusNotFound, get(t, h, "/nope").Code)
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	h := NewRouter(fakeSource{state: server.Running}, prometheus.NewRegistry())

	var g errgroup.Group
	g.Go(func() error {
		return Serve(ctx, addr, h, logger.Nop())
	})

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, g.Wait())
}
