package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/NowakAdmin/MonerisAgent/internal/bridge"
	"github.com/NowakAdmin/MonerisAgent/internal/protocol"
)

const maxBodyBytes = 1 << 20

var statusByCode = map[string]int{
	string(bridge.CodeInvalidInput):   http.StatusBadRequest,
	string(bridge.CodeUnsupported):    http.StatusNotFound,
	string(bridge.CodeNotInitialized): http.StatusConflict,
	string(bridge.CodeNotConnected):   http.StatusConflict,
	string(bridge.CodeDeviceError):    http.StatusBadGateway,
	string(bridge.CodeInternal):       http.StatusInternalServerError,
	"timeout":                         http.StatusGatewayTimeout,
}

// execHandler runs one command. The body is either an argument array or a
// single object used as the first argument.
func (s *Server) execHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	args, err := parseArgs(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.OutgoingMessage{
			Type:      protocol.TypeCommandResult,
			Status:    protocol.StatusFailed,
			Timestamp: protocol.Now(),
			Error:     err.Error(),
			ErrorCode: string(bridge.CodeInvalidInput),
			Field:     "args",
		})
		return
	}

	s.respond(w, r, protocol.IncomingMessage{
		Type:    protocol.TypeCommand,
		JobID:   r.Header.Get("X-Job-ID"),
		Command: r.PathValue("action"),
		Args:    args,
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, protocol.IncomingMessage{
		Type:    protocol.TypeCommand,
		Command: bridge.ActionGetDeviceStatus,
	})
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, message protocol.IncomingMessage) {
	ctx, cancel := context.WithTimeout(r.Context(), s.CommandTimeout)
	defer cancel()

	out := protocol.Run(ctx, s.Executor, message)

	status := http.StatusOK
	if out.Status == protocol.StatusFailed {
		status = http.StatusInternalServerError
		if mapped, ok := statusByCode[out.ErrorCode]; ok {
			status = mapped
		}
		s.Logger.Printf("%s failed [%s]: %s", message.Command, out.ErrorCode, out.Error)
	}

	writeJSON(w, status, out)
}

func parseArgs(body []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var args []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
			return nil, fmt.Errorf("invalid argument array: %w", err)
		}
		return args, nil
	}

	if !json.Valid([]byte(trimmed)) {
		return nil, fmt.Errorf("body is not valid JSON")
	}

	return []json.RawMessage{json.RawMessage(trimmed)}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// wsHandler serves the same commands over a socket. Commands run concurrently
// and their results may arrive out of order; job_id correlates them.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	conn := protocol.NewConn(raw)
	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)
	defer func() {
		_ = conn.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
	}()

	s.Logger.Printf("WebSocket client connected: %s", r.RemoteAddr)

	for {
		var message protocol.IncomingMessage
		if err = conn.ReadJSON(&message); err != nil {
			s.Logger.Printf("WebSocket client %s disconnected: %v", r.RemoteAddr, err)
			return
		}

		switch strings.ToLower(strings.TrimSpace(message.Type)) {
		case protocol.TypePing:
			_ = conn.WriteJSON(protocol.OutgoingMessage{Type: protocol.TypePong, JobID: message.JobID, Timestamp: protocol.Now()})

		case protocol.TypeCommand:
			message.Command = strings.TrimSpace(message.Command)

			inflight.Add(1)
			go func() {
				defer inflight.Done()
				_ = conn.WriteJSON(protocol.Run(ctx, s.Executor, message))
			}()

		default:
			_ = conn.WriteJSON(protocol.OutgoingMessage{
				Type:      protocol.TypeCommandResult,
				JobID:     message.JobID,
				Status:    protocol.StatusFailed,
				Timestamp: protocol.Now(),
				Error:     "unknown message type: " + message.Type,
				ErrorCode: string(bridge.CodeInvalidInput),
				Field:     "type",
			})
		}
	}
}
