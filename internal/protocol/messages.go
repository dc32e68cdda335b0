package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/NowakAdmin/MonerisAgent/internal/bridge"
)

const (
	TypeCommand       = "command"
	TypeCommandResult = "command_result"
	TypePing          = "ping"
	TypePong          = "pong"
	TypeAuth          = "auth"
	TypeHeartbeat     = "heartbeat"
	TypeStatus        = "status"

	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// IncomingMessage carries a command. Args holds the positional arguments; a
// lone Payload is treated as the first argument.
type IncomingMessage struct {
	Type    string            `json:"type"`
	JobID   string            `json:"job_id,omitempty"`
	Command string            `json:"command,omitempty"`
	Args    []json.RawMessage `json:"args,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
}

func (m IncomingMessage) Arguments() []json.RawMessage {
	if len(m.Args) > 0 {
		return m.Args
	}
	if len(m.Payload) > 0 {
		return []json.RawMessage{m.Payload}
	}
	return nil
}

type OutgoingMessage struct {
	Type      string         `json:"type"`
	AgentID   string         `json:"agent_id,omitempty"`
	JobID     string         `json:"job_id,omitempty"`
	CallID    string         `json:"call_id,omitempty"`
	Status    string         `json:"status,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	Field     string         `json:"field,omitempty"`
}

// Executor is satisfied by *bridge.Dispatcher.
type Executor interface {
	Execute(ctx context.Context, action string, args []json.RawMessage) (*bridge.Call, bool)
}

func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Run executes message on executor and waits for the outcome.
func Run(ctx context.Context, executor Executor, message IncomingMessage) OutgoingMessage {
	call, _ := executor.Execute(ctx, message.Command, message.Arguments())
	data, err := call.Wait(ctx)

	out := OutgoingMessage{
		Type:   TypeCommandResult,
		JobID:  message.JobID,
		CallID: call.ID,
	}
	Complete(&out, data, err)

	return out
}

// Complete fills status, data and error fields of out.
func Complete(out *OutgoingMessage, data map[string]any, err error) {
	out.Timestamp = Now()

	if err == nil {
		out.Status = StatusCompleted
		out.Data = data
		return
	}

	out.Status = StatusFailed
	out.Error = err.Error()

	var bridgeErr *bridge.Error
	if errors.As(err, &bridgeErr) {
		out.ErrorCode = string(bridgeErr.Code)
		out.Field = bridgeErr.Field
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		out.ErrorCode = "timeout"
		return
	}

	out.ErrorCode = string(bridge.CodeInternal)
}
