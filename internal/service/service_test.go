package service

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NowakAdmin/MonerisAgent/internal/config"
	"github.com/NowakAdmin/MonerisAgent/internal/protocol"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Listen.Address = "127.0.0.1:0"
	cfg.Terminal.ProcessingDelayMs = 0
	return cfg
}

func TestService_StartServesLocalAPI(t *testing.T) {
	t.Parallel()

	svc := NewSimulated(testConfig(), log.New(io.Discard, "", 0))
	defer svc.Close()

	require.NoError(t, svc.Start(context.Background()))
	assert.True(t, svc.IsRunning())
	require.NotEmpty(t, svc.Addr())

	response, err := http.Post("http://"+svc.Addr()+"/exec/initialize", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer func() {
		_ = response.Body.Close()
	}()

	var out protocol.OutgoingMessage
	require.NoError(t, json.NewDecoder(response.Body).Decode(&out))
	assert.Equal(t, protocol.StatusCompleted, out.Status)
	assert.True(t, svc.Dispatcher().Status().Initialized)

	svc.Stop()
	assert.False(t, svc.IsRunning())
	assert.Empty(t, svc.Addr())
}

func TestService_RestartKeepsSession(t *testing.T) {
	t.Parallel()

	svc := NewSimulated(testConfig(), log.New(io.Discard, "", 0))
	defer svc.Close()

	require.NoError(t, svc.Start(context.Background()))
	call, handled := svc.Dispatcher().Execute(context.Background(), "initialize", nil)
	require.True(t, handled)
	_, err := call.Wait(context.Background())
	require.NoError(t, err)

	svc.Stop()
	require.NoError(t, svc.Start(context.Background()))
	assert.True(t, svc.Dispatcher().Status().Initialized)
}

func TestService_ListenDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Listen.Disabled = true

	svc := NewSimulated(cfg, log.New(io.Discard, "", 0))
	defer svc.Close()

	require.NoError(t, svc.Start(context.Background()))
	assert.Empty(t, svc.Addr())
}

func TestService_StopClosesWebSocketClients(t *testing.T) {
	t.Parallel()

	svc := NewSimulated(testConfig(), log.New(io.Discard, "", 0))
	defer svc.Close()

	require.NoError(t, svc.Start(context.Background()))

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+svc.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer func() {
		_ = conn.Close()
	}()

	require.NoError(t, conn.WriteJSON(protocol.IncomingMessage{Type: protocol.TypePing}))
	var pong protocol.OutgoingMessage
	require.NoError(t, conn.ReadJSON(&pong))

	svc.Stop()

	_ = conn.WriteJSON(protocol.IncomingMessage{Type: protocol.TypeCommand, Command: "initialize"})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var result protocol.OutgoingMessage
	assert.Error(t, conn.ReadJSON(&result))
	assert.False(t, svc.Dispatcher().Status().Initialized)
}
