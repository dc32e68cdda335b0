package agent

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NowakAdmin/MonerisAgent/internal/bridge"
	"github.com/NowakAdmin/MonerisAgent/internal/config"
	"github.com/NowakAdmin/MonerisAgent/internal/protocol"
	"github.com/NowakAdmin/MonerisAgent/internal/terminal"
)

func newDispatcher(t *testing.T) *bridge.Dispatcher {
	t.Helper()

	pool := bridge.NewPool(2, 4)
	d := bridge.New(terminal.NewSimulator(terminal.SimulatorOptions{}), pool, log.New(io.Discard, "", 0), bridge.Options{})
	t.Cleanup(func() {
		d.Close()
		pool.Close()
	})
	return d
}

func TestAgent_WebSocketSession(t *testing.T) {
	t.Parallel()

	results := make(chan protocol.OutgoingMessage, 1)
	var authHeader atomic.Value

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader.Store(r.Header.Get("Authorization"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() {
			_ = conn.Close()
		}()

		var auth protocol.OutgoingMessage
		if err = conn.ReadJSON(&auth); err != nil || auth.Type != protocol.TypeAuth {
			return
		}

		_ = conn.WriteJSON(protocol.IncomingMessage{
			Type:    protocol.TypeCommand,
			JobID:   "job-ws",
			Command: "initialize",
			Payload: json.RawMessage(`{"device_ip":"10.9.9.9"}`),
		})

		for {
			var out protocol.OutgoingMessage
			if err = conn.ReadJSON(&out); err != nil {
				return
			}
			if out.Type == protocol.TypeCommandResult {
				select {
				case results <- out:
				default:
				}
				return
			}
		}
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.AgentID = "agent-1"
	cfg.AgentToken = "token-1"
	cfg.WebSocketURL = "ws" + strings.TrimPrefix(server.URL, "http")

	a := New(cfg, newDispatcher(t), log.New(io.Discard, "", 0))
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	select {
	case out := <-results:
		assert.Equal(t, "job-ws", out.JobID)
		assert.Equal(t, "agent-1", out.AgentID)
		assert.Equal(t, protocol.StatusCompleted, out.Status)
		assert.Equal(t, "10.9.9.9", out.Data["device_ip"])
	case <-time.After(5 * time.Second):
		t.Fatal("no command result received")
	}

	assert.Equal(t, "Bearer token-1", authHeader.Load())
}

func TestAgent_HTTPPolling(t *testing.T) {
	t.Parallel()

	var served atomic.Bool
	reports := make(chan protocol.OutgoingMessage, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/agent/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/agent/commands/next", func(w http.ResponseWriter, r *http.Request) {
		response := pullCommandsResponse{Success: true}
		if !served.Swap(true) {
			response.Data = []protocol.IncomingMessage{{
				Type:    protocol.TypeCommand,
				JobID:   "job-http",
				Command: "doSomethingUnknown",
			}}
		}
		_ = json.NewEncoder(w).Encode(response)
	})
	mux.HandleFunc("/api/agent/commands/job-http/result", func(w http.ResponseWriter, r *http.Request) {
		var out protocol.OutgoingMessage
		_ = json.NewDecoder(r.Body).Decode(&out)
		select {
		case reports <- out:
		default:
		}
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := config.Default()
	cfg.AgentToken = "token"
	cfg.ServerURL = server.URL

	a := New(cfg, newDispatcher(t), log.New(io.Discard, "", 0))
	a.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.runHTTPPolling(ctx, 5*time.Second)
	}()

	select {
	case out := <-reports:
		assert.Equal(t, protocol.StatusFailed, out.Status)
		assert.Equal(t, "unsupported", out.ErrorCode)
		assert.Contains(t, out.Error, "doSomethingUnknown")
	case <-time.After(5 * time.Second):
		t.Fatal("no result reported")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestAgent_PullCommandsRejectsFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.ServerURL = server.URL

	a := New(cfg, newDispatcher(t), log.New(io.Discard, "", 0))
	_, err := a.pullCommands(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestAgent_StartWithoutRemoteIdles(t *testing.T) {
	t.Parallel()

	a := New(config.Default(), newDispatcher(t), log.New(io.Discard, "", 0))
	require.NoError(t, a.Start(context.Background()))
	assert.True(t, a.IsRunning())

	a.Stop()
	assert.False(t, a.IsRunning())
}
