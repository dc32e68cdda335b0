package bridge

import (
	"context"

	"github.com/NowakAdmin/MonerisAgent/internal/payment"
	"github.com/NowakAdmin/MonerisAgent/internal/terminal"
)

func (d *Dispatcher) initialize(_ context.Context, doc payment.Document) (map[string]any, *Error) {
	cfg := terminal.ConnectionConfig{
		DeviceIP:       doc.OptString("device_ip", terminal.DefaultDeviceIP),
		Port:           doc.OptInt("port", terminal.DefaultPort),
		ConnectionType: connectionType(doc.OptString("connection_type", string(terminal.DefaultConnectionType))),
		SerialPort:     d.opts.SerialPort,
		BaudRate:       d.opts.BaudRate,
	}

	d.session.Initialize(cfg)
	d.logger.Printf("Terminal initialized: %s:%d over %s", cfg.DeviceIP, cfg.Port, cfg.ConnectionType)

	return map[string]any{
		"success":         true,
		"message":         "Moneris DX8000 initialized successfully",
		"device_ip":       cfg.DeviceIP,
		"port":            cfg.Port,
		"connection_type": string(cfg.ConnectionType),
	}, nil
}

// connectionType canonicalizes known types. Unknown values are kept as sent
// and rejected when a link is probed.
func connectionType(value string) terminal.ConnectionType {
	if parsed, err := terminal.ParseConnectionType(value); err == nil {
		return parsed
	}
	return terminal.ConnectionType(value)
}

func (d *Dispatcher) connect(ctx context.Context, _ payment.Document) (map[string]any, *Error) {
	cfg, _ := d.session.Config()

	if err := d.device.Connect(ctx, cfg); err != nil {
		return nil, failure("Connection failed: ", err)
	}

	d.session.SetConnected(true)

	return map[string]any{
		"success":   true,
		"message":   "Connected to DX8000 device",
		"device_ip": cfg.DeviceIP,
		"port":      cfg.Port,
	}, nil
}

func (d *Dispatcher) disconnect(ctx context.Context, _ payment.Document) (map[string]any, *Error) {
	if err := d.device.Disconnect(ctx); err != nil {
		return nil, failure("Disconnection failed: ", err)
	}

	d.session.SetConnected(false)

	return map[string]any{
		"success": true,
		"message": "Disconnected from DX8000 device",
	}, nil
}

func (d *Dispatcher) processPayment(ctx context.Context, doc payment.Document) (map[string]any, *Error) {
	request, err := payment.NewRequest(doc)
	if err != nil {
		return nil, failure("Payment failed: ", err)
	}

	d.logger.Printf("Payment %s: %s %s (%s)", request.OrderID(), request.Amount(), request.Currency(), request.TransactionType())

	response, err := d.device.Purchase(ctx, request)
	if err != nil {
		return nil, failure("Payment failed: ", err)
	}

	return response.Document(), nil
}

func (d *Dispatcher) processRefund(ctx context.Context, doc payment.Document) (map[string]any, *Error) {
	amount, err := doc.RequireAmount("amount")
	if err != nil {
		return nil, failure("Refund failed: ", err)
	}

	transactionID, err := doc.RequireString("transaction_id")
	if err != nil {
		return nil, failure("Refund failed: ", err)
	}

	if err = d.device.Refund(ctx, transactionID, amount); err != nil {
		return nil, failure("Refund failed: ", err)
	}

	return map[string]any{
		"success":        true,
		"message":        "Refund processed successfully",
		"transaction_id": transactionID,
		"amount":         amount,
	}, nil
}

func (d *Dispatcher) voidTransaction(ctx context.Context, doc payment.Document) (map[string]any, *Error) {
	transactionID, err := doc.RequireString("transaction_id")
	if err != nil {
		return nil, failure("Void failed: ", err)
	}

	if err = d.device.Void(ctx, transactionID); err != nil {
		return nil, failure("Void failed: ", err)
	}

	return map[string]any{
		"success":        true,
		"message":        "Transaction voided successfully",
		"transaction_id": transactionID,
	}, nil
}

func (d *Dispatcher) getDeviceStatus(_ context.Context, _ payment.Document) (map[string]any, *Error) {
	state := d.session.State()

	return map[string]any{
		"initialized": state.Initialized,
		"connected":   state.Connected,
		"device_name": d.device.Name(),
	}, nil
}

func (d *Dispatcher) cancelTransaction(ctx context.Context, _ payment.Document) (map[string]any, *Error) {
	if err := d.device.Cancel(ctx); err != nil {
		return nil, failure("Cancel failed: ", err)
	}

	return map[string]any{
		"success": true,
		"message": "Transaction cancelled",
	}, nil
}

func (d *Dispatcher) getLastTransaction(_ context.Context, _ payment.Document) (map[string]any, *Error) {
	return map[string]any{
		"success": true,
		"message": "No previous transaction found",
	}, nil
}

func (d *Dispatcher) printReceipt(ctx context.Context, doc payment.Document) (map[string]any, *Error) {
	if err := d.device.PrintReceipt(ctx, doc); err != nil {
		return nil, failure("Print failed: ", err)
	}

	return map[string]any{
		"success": true,
		"message": "Receipt printed successfully",
	}, nil
}
