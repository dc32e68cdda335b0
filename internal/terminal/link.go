package terminal

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

const defaultBaudRate = 115200

// ProbeLink checks that the terminal is reachable over its configured link.
// Network links dial and close a TCP connection; usb and bluetooth links open
// and close the configured serial device (bluetooth via an RFCOMM port).
func ProbeLink(cfg ConnectionConfig, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	switch cfg.ConnectionType {
	case ConnectionNetwork:
		return probeTCP(cfg, timeout)
	case ConnectionUSB, ConnectionBluetooth:
		return probeSerial(cfg, timeout)
	default:
		return fmt.Errorf("unsupported connection type: %s", cfg.ConnectionType)
	}
}

func probeTCP(cfg ConnectionConfig, timeout time.Duration) error {
	host := strings.TrimSpace(cfg.DeviceIP)
	if host == "" {
		return errors.New("device_ip is empty")
	}
	if cfg.Port <= 0 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("terminal unreachable at %s: %w", addr, err)
	}

	return conn.Close()
}

func probeSerial(cfg ConnectionConfig, timeout time.Duration) error {
	portName := strings.TrimSpace(cfg.SerialPort)
	if portName == "" {
		return fmt.Errorf("serial_port is not configured for %s link", cfg.ConnectionType)
	}

	baud := cfg.BaudRate
	if baud <= 0 {
		baud = defaultBaudRate
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", portName, err)
	}
	defer func() {
		_ = port.Close()
	}()

	return port.SetReadTimeout(timeout)
}

// SerialPorts lists serial devices visible to the OS, for configuring usb/bluetooth links.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
