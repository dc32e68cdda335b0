package terminal

import (
	"context"
	"fmt"
	"time"

	"github.com/NowakAdmin/MonerisAgent/internal/payment"
)

const DeviceName = "Moneris DX8000"

// Device is the payment terminal as seen by the dispatcher. A real
// implementation talks to the terminal SDK; Simulator stands in for it.
type Device interface {
	Name() string
	Connect(ctx context.Context, cfg ConnectionConfig) error
	Disconnect(ctx context.Context) error
	Purchase(ctx context.Context, request *payment.Request) (*payment.Response, error)
	Refund(ctx context.Context, transactionID string, amount string) error
	Void(ctx context.Context, transactionID string) error
	Cancel(ctx context.Context) error
	PrintReceipt(ctx context.Context, receipt payment.Document) error
}

const (
	SimulatedResponseCode  = "00"
	SimulatedMessage       = "APPROVED"
	SimulatedTransactionID = "123456789"
)

type SimulatorOptions struct {
	// ProcessingDelay emulates the cardholder interacting with the terminal.
	ProcessingDelay time.Duration
	// ProbeLink makes Connect verify the link before reporting success.
	ProbeLink    bool
	ProbeTimeout time.Duration
}

// Simulator approves every purchase after a fixed delay.
type Simulator struct {
	opts SimulatorOptions
}

func NewSimulator(opts SimulatorOptions) *Simulator {
	return &Simulator{opts: opts}
}

func (s *Simulator) Name() string {
	return DeviceName
}

func (s *Simulator) Connect(ctx context.Context, cfg ConnectionConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.opts.ProbeLink {
		return nil
	}

	return ProbeLink(cfg, s.opts.ProbeTimeout)
}

func (s *Simulator) Disconnect(ctx context.Context) error {
	return ctx.Err()
}

func (s *Simulator) Purchase(ctx context.Context, request *payment.Request) (*payment.Response, error) {
	if s.opts.ProcessingDelay > 0 {
		timer := time.NewTimer(s.opts.ProcessingDelay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for terminal: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return payment.NewResponse(true, SimulatedResponseCode, SimulatedMessage, SimulatedTransactionID, request.Amount()), nil
}

func (s *Simulator) Refund(ctx context.Context, _ string, _ string) error {
	return ctx.Err()
}

func (s *Simulator) Void(ctx context.Context, _ string) error {
	return ctx.Err()
}

// Cancel does not interrupt a purchase already in progress.
func (s *Simulator) Cancel(_ context.Context) error {
	return nil
}

func (s *Simulator) PrintReceipt(ctx context.Context, _ payment.Document) error {
	return ctx.Err()
}
