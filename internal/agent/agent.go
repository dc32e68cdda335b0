package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NowakAdmin/MonerisAgent/internal/config"
	"github.com/NowakAdmin/MonerisAgent/internal/protocol"
)

type pullCommandsResponse struct {
	Success bool                       `json:"success"`
	Data    []protocol.IncomingMessage `json:"data"`
}

// Agent links the terminal bridge to a remote backend. It keeps a WebSocket
// session open and falls back to HTTP polling when the socket is unavailable.
type Agent struct {
	cfg      *config.Config
	executor protocol.Executor
	logger   *log.Logger
	client   *http.Client

	pollInterval time.Duration

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	jobs    sync.WaitGroup
}

func New(cfg *config.Config, executor protocol.Executor, logger *log.Logger) *Agent {
	return &Agent{
		cfg:          cfg,
		executor:     executor,
		logger:       logger,
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: 2 * time.Second,
	}
}

func (a *Agent) Start(parent context.Context) error {
	if a.running.Swap(true) {
		return nil
	}

	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.loop(ctx)
	}()

	return nil
}

func (a *Agent) Stop() {
	if !a.running.Load() {
		return
	}

	if a.cancel != nil {
		a.cancel()
	}

	a.wg.Wait()
	a.jobs.Wait()
	a.running.Store(false)
}

func (a *Agent) IsRunning() bool {
	return a.running.Load()
}

func (a *Agent) loop(ctx context.Context) {
	if !a.cfg.RemoteEnabled() {
		a.logger.Printf("Remote backend not configured, use: moneris-agent configure --token=... --ws=...")
		<-ctx.Done()
		return
	}

	backoff := 1 * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var err error
		websocketURL := strings.TrimSpace(a.cfg.WebSocketURL)

		if websocketURL != "" {
			err = a.runSession(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Printf("WebSocket session ended: %v", err)
			}

			if ctx.Err() != nil {
				return
			}

			if strings.TrimSpace(a.cfg.ServerURL) != "" {
				a.logger.Printf("Falling back to HTTP polling.")
				err = a.runHTTPPolling(ctx, 45*time.Second)
			}
		} else {
			err = a.runHTTPPolling(ctx, 0)
		}

		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Printf("Agent loop error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		if backoff < 20*time.Second {
			backoff *= 2
		}
	}
}

func (a *Agent) heartbeatEvery() time.Duration {
	if a.cfg.HeartbeatSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.cfg.HeartbeatSeconds) * time.Second
}

func (a *Agent) runHTTPPolling(ctx context.Context, maxDuration time.Duration) error {
	if strings.TrimSpace(a.cfg.ServerURL) == "" {
		return fmt.Errorf("server_url is empty, HTTP fallback unavailable")
	}

	pollTicker := time.NewTicker(a.pollInterval)
	heartbeatTicker := time.NewTicker(a.heartbeatEvery())
	defer pollTicker.Stop()
	defer heartbeatTicker.Stop()

	if err := a.heartbeat(ctx); err != nil {
		a.logger.Printf("HTTP heartbeat error: %v", err)
	}

	var timeout <-chan time.Time
	if maxDuration > 0 {
		timer := time.NewTimer(maxDuration)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case <-timeout:
			return nil
		case <-heartbeatTicker.C:
			if err := a.heartbeat(ctx); err != nil {
				a.logger.Printf("HTTP heartbeat error: %v", err)
			}
		case <-pollTicker.C:
			commands, err := a.pullCommands(ctx)
			if err != nil {
				return err
			}

			for _, message := range commands {
				out := protocol.Run(ctx, a.executor, message)
				if reportErr := a.reportCommandResult(ctx, out); reportErr != nil {
					a.logger.Printf("Reporting result of job %s failed: %v", message.JobID, reportErr)
				}
			}
		}
	}
}

func (a *Agent) heartbeat(ctx context.Context) error {
	request, err := a.newAPIRequest(ctx, http.MethodPost, "/api/agent/heartbeat", nil)
	if err != nil {
		return err
	}

	response, err := a.client.Do(request)
	if err != nil {
		return err
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode >= 300 {
		body, _ := io.ReadAll(response.Body)
		return fmt.Errorf("heartbeat status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

func (a *Agent) pullCommands(ctx context.Context) ([]protocol.IncomingMessage, error) {
	request, err := a.newAPIRequest(ctx, http.MethodGet, "/api/agent/commands/next?limit=5", nil)
	if err != nil {
		return nil, err
	}

	response, err := a.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode >= 300 {
		body, _ := io.ReadAll(response.Body)
		return nil, fmt.Errorf("pull commands status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed pullCommandsResponse
	if err = json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	if !parsed.Success {
		return nil, fmt.Errorf("pull commands returned success=false")
	}

	return parsed.Data, nil
}

func (a *Agent) reportCommandResult(ctx context.Context, out protocol.OutgoingMessage) error {
	if strings.TrimSpace(out.JobID) == "" {
		return fmt.Errorf("missing job_id")
	}

	out.AgentID = a.cfg.AgentID
	body, err := json.Marshal(out)
	if err != nil {
		return err
	}

	request, err := a.newAPIRequest(ctx, http.MethodPost, "/api/agent/commands/"+out.JobID+"/result", bytes.NewReader(body))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := a.client.Do(request)
	if err != nil {
		return err
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(response.Body)
		return fmt.Errorf("report result status %d: %s", response.StatusCode, strings.TrimSpace(string(responseBody)))
	}

	a.logJobOutcome(out)
	return nil
}

func (a *Agent) logJobOutcome(out protocol.OutgoingMessage) {
	if out.Status == protocol.StatusFailed {
		a.logger.Printf("Job %s failed [%s]: %s", out.JobID, out.ErrorCode, out.Error)
		return
	}
	a.logger.Printf("Job %s completed", out.JobID)
}

func (a *Agent) authHeaders() http.Header {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+a.cfg.AgentToken)
	headers.Set("X-Agent-ID", a.cfg.AgentID)
	headers.Set("X-Agent-Name", a.cfg.DeviceName)
	if strings.TrimSpace(a.cfg.TenantID) != "" {
		headers.Set("X-Tenant-ID", a.cfg.TenantID)
	}
	return headers
}

func (a *Agent) newAPIRequest(ctx context.Context, method string, path string, body io.Reader) (*http.Request, error) {
	base := strings.TrimRight(strings.TrimSpace(a.cfg.ServerURL), "/")
	if base == "" {
		return nil, fmt.Errorf("server_url is empty")
	}

	pathPart := path
	if !strings.HasPrefix(pathPart, "/") {
		pathPart = "/" + pathPart
	}

	request, err := http.NewRequestWithContext(ctx, method, base+pathPart, body)
	if err != nil {
		return nil, err
	}

	for key, values := range a.authHeaders() {
		request.Header[key] = values
	}

	return request, nil
}

func (a *Agent) runSession(ctx context.Context) error {
	raw, response, err := websocket.DefaultDialer.DialContext(ctx, a.cfg.WebSocketURL, a.authHeaders())
	if err != nil {
		if response != nil {
			return fmt.Errorf("websocket dial failed (http %d): %w", response.StatusCode, err)
		}

		return err
	}
	conn := protocol.NewConn(raw)
	defer func() {
		_ = conn.Close()
	}()

	a.logger.Printf("Connected to backend WebSocket: %s", a.cfg.WebSocketURL)

	if err = conn.WriteJSON(protocol.OutgoingMessage{
		Type:      protocol.TypeAuth,
		AgentID:   a.cfg.AgentID,
		Status:    "online",
		Timestamp: protocol.Now(),
		Data: map[string]any{
			"device_name": a.cfg.DeviceName,
		},
	}); err != nil {
		return err
	}

	heartbeatTicker := time.NewTicker(a.heartbeatEvery())
	defer heartbeatTicker.Stop()

	readErrors := make(chan error, 1)
	readMessages := make(chan protocol.IncomingMessage, 8)

	go func() {
		for {
			var message protocol.IncomingMessage
			if readErr := conn.ReadJSON(&message); readErr != nil {
				readErrors <- readErr
				return
			}

			select {
			case readMessages <- message:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteJSON(protocol.OutgoingMessage{Type: protocol.TypeStatus, Status: "offline"})
			return context.Canceled
		case err = <-readErrors:
			return err
		case message := <-readMessages:
			a.handleIncoming(ctx, conn, message)
		case <-heartbeatTicker.C:
			_ = conn.WriteJSON(protocol.OutgoingMessage{
				Type:      protocol.TypeHeartbeat,
				AgentID:   a.cfg.AgentID,
				Timestamp: protocol.Now(),
				Status:    "online",
			})
		}
	}
}

// handleIncoming answers pings inline and runs commands in the background so a
// slow payment does not block the read loop.
func (a *Agent) handleIncoming(ctx context.Context, conn *protocol.Conn, message protocol.IncomingMessage) {
	messageType := strings.ToLower(strings.TrimSpace(message.Type))

	switch messageType {
	case protocol.TypePing:
		_ = conn.WriteJSON(protocol.OutgoingMessage{
			Type:      protocol.TypePong,
			AgentID:   a.cfg.AgentID,
			Timestamp: protocol.Now(),
			JobID:     message.JobID,
		})

	case protocol.TypeCommand:
		message.Command = strings.TrimSpace(message.Command)

		a.jobs.Add(1)
		go func() {
			defer a.jobs.Done()

			out := protocol.Run(ctx, a.executor, message)
			out.AgentID = a.cfg.AgentID
			a.logJobOutcome(out)

			if err := conn.WriteJSON(out); err != nil {
				a.logger.Printf("Sending result of job %s failed: %v", message.JobID, err)
			}
		}()
	}
}
