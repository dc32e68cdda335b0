package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NowakAdmin/MonerisAgent/internal/bridge"
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

func TestIncomingMessage_Arguments(t *testing.T) {
	t.Parallel()

	var message IncomingMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"command","command":"initialize","payload":{"port":1}}`), &message))
	require.Len(t, message.Arguments(), 1)
	assert.JSONEq(t, `{"port":1}`, string(message.Arguments()[0]))

	require.NoError(t, json.Unmarshal([]byte(`{"type":"command","args":[{"a":1},{"b":2}],"payload":{"c":3}}`), &message))
	assert.Len(t, message.Arguments(), 2)

	assert.Nil(t, IncomingMessage{}.Arguments())
}

func TestRun_Completed(t *testing.T) {
	t.Parallel()

	out := Run(context.Background(), newDispatcher(t), IncomingMessage{
		Type:    TypeCommand,
		JobID:   "job-1",
		Command: "getDeviceStatus",
	})

	assert.Equal(t, TypeCommandResult, out.Type)
	assert.Equal(t, "job-1", out.JobID)
	assert.NotEmpty(t, out.CallID)
	assert.Equal(t, StatusCompleted, out.Status)
	assert.Equal(t, "Moneris DX8000", out.Data["device_name"])
	assert.NotEmpty(t, out.Timestamp)
}

func TestRun_FailedCarriesCode(t *testing.T) {
	t.Parallel()

	out := Run(context.Background(), newDispatcher(t), IncomingMessage{Type: TypeCommand, Command: "connect"})
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, "not_initialized", out.ErrorCode)
	assert.Empty(t, out.Data)
}

func TestComplete_PlainErrors(t *testing.T) {
	t.Parallel()

	var out OutgoingMessage
	Complete(&out, nil, context.DeadlineExceeded)
	assert.Equal(t, "timeout", out.ErrorCode)

	out = OutgoingMessage{}
	Complete(&out, nil, errors.New("boom"))
	assert.Equal(t, "internal", out.ErrorCode)
	assert.Equal(t, "boom", out.Error)
}
