package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/NowakAdmin/MonerisAgent/internal/payment"
	"github.com/NowakAdmin/MonerisAgent/internal/terminal"
)

// Action names accepted by the dispatcher.
const (
	ActionInitialize         = "initialize"
	ActionConnect            = "connect"
	ActionDisconnect         = "disconnect"
	ActionProcessPayment     = "processPayment"
	ActionProcessRefund      = "processRefund"
	ActionVoidTransaction    = "voidTransaction"
	ActionGetDeviceStatus    = "getDeviceStatus"
	ActionCancelTransaction  = "cancelTransaction"
	ActionGetLastTransaction = "getLastTransaction"
	ActionPrintReceipt       = "printReceipt"
)

type handler struct {
	async        bool
	precondition func() *Error
	run          func(ctx context.Context, doc payment.Document) (map[string]any, *Error)
}

// Options carries link settings that do not come from the initialize command.
type Options struct {
	SerialPort string
	BaudRate   int
}

// Dispatcher routes actions to their handlers. Synchronous handlers resolve
// the returned Call before Execute returns, asynchronous ones run on the pool.
type Dispatcher struct {
	session *terminal.Session
	device  terminal.Device
	pool    *Pool
	logger  *log.Logger
	opts    Options

	ctx      context.Context
	cancel   context.CancelFunc
	handlers map[string]handler
}

func New(device terminal.Device, pool *Pool, logger *log.Logger, opts Options) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		session: terminal.NewSession(),
		device:  device,
		pool:    pool,
		logger:  logger,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
	}
	d.handlers = d.routes()

	return d
}

func (d *Dispatcher) routes() map[string]handler {
	return map[string]handler{
		ActionInitialize:         {run: d.initialize},
		ActionConnect:            {async: true, precondition: d.requireInitialized, run: d.connect},
		ActionDisconnect:         {async: true, run: d.disconnect},
		ActionProcessPayment:     {async: true, precondition: d.requireConnected, run: d.processPayment},
		ActionProcessRefund:      {async: true, precondition: d.requireConnected, run: d.processRefund},
		ActionVoidTransaction:    {async: true, precondition: d.requireConnected, run: d.voidTransaction},
		ActionGetDeviceStatus:    {run: d.getDeviceStatus},
		ActionCancelTransaction:  {run: d.cancelTransaction},
		ActionGetLastTransaction: {run: d.getLastTransaction},
		ActionPrintReceipt:       {async: true, run: d.printReceipt},
	}
}

// Execute dispatches action with its positional arguments. The boolean is
// false when the action is unknown; the returned Call is then already failed.
func (d *Dispatcher) Execute(ctx context.Context, action string, args []json.RawMessage) (*Call, bool) {
	call := newCall(action)

	h, ok := d.handlers[action]
	if !ok {
		d.logger.Printf("Unknown action: %s", action)
		call.fail(Unsupported(action))
		return call, false
	}

	d.logger.Printf("Executing action: %s (%s)", action, call.ID)

	if h.precondition != nil {
		if err := h.precondition(); err != nil {
			d.logger.Printf("%s rejected: %s", action, err.Message)
			call.fail(err)
			return call, true
		}
	}

	doc, err := argumentDocument(args)
	if err != nil {
		call.fail(err)
		return call, true
	}

	if !h.async {
		d.run(call, h, doc)
		return call, true
	}

	if submitErr := d.pool.Submit(ctx, func() { d.run(call, h, doc) }); submitErr != nil {
		call.fail(Internal(fmt.Errorf("%s not scheduled: %w", action, submitErr)))
	}

	return call, true
}

func (d *Dispatcher) run(call *Call, h handler, doc payment.Document) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("%s panicked: %v", call.Action, r)
			call.fail(Internal(fmt.Errorf("%s: unexpected failure: %v", call.Action, r)))
		}
	}()

	result, err := h.run(d.ctx, doc)
	if err != nil {
		d.logger.Printf("%s error: %s", call.Action, err.Message)
		call.fail(err)
		return
	}

	call.succeed(result)
}

// Status reports the session flags without going through a Call.
func (d *Dispatcher) Status() terminal.State {
	return d.session.State()
}

// Close aborts in-flight device work. The pool is owned by the caller.
func (d *Dispatcher) Close() {
	d.cancel()
}

func (d *Dispatcher) requireInitialized() *Error {
	if !d.session.State().Initialized {
		return NotInitialized()
	}
	return nil
}

func (d *Dispatcher) requireConnected() *Error {
	if !d.session.State().Connected {
		return NotConnected()
	}
	return nil
}

func argumentDocument(args []json.RawMessage) (payment.Document, *Error) {
	if len(args) == 0 {
		return payment.Document{}, nil
	}

	doc, err := payment.ParseDocument(args[0])
	if err != nil {
		return nil, InvalidInput("args", err.Error())
	}

	return doc, nil
}
