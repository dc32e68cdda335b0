package bridge

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Call is the pending result of one dispatched command. It resolves exactly once.
type Call struct {
	ID     string
	Action string

	once   sync.Once
	done   chan struct{}
	result map[string]any
	err    *Error
}

func newCall(action string) *Call {
	return &Call{
		ID:     uuid.NewString(),
		Action: action,
		done:   make(chan struct{}),
	}
}

func (c *Call) resolve(result map[string]any, err *Error) {
	c.once.Do(func() {
		c.result = result
		c.err = err
		close(c.done)
	})
}

func (c *Call) succeed(result map[string]any) {
	c.resolve(result, nil)
}

func (c *Call) fail(err *Error) {
	c.resolve(nil, err)
}

// Done is closed once the call has a result.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result returns the outcome; it must only be called after Done is closed.
func (c *Call) Result() (map[string]any, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

// Wait blocks until the call resolves or ctx ends. The command keeps running
// when ctx ends first.
func (c *Call) Wait(ctx context.Context) (map[string]any, error) {
	select {
	case <-c.done:
		return c.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
