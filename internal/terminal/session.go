package terminal

import (
	"fmt"
	"strings"
	"sync"
)

type ConnectionType string

const (
	ConnectionNetwork   ConnectionType = "network"
	ConnectionBluetooth ConnectionType = "bluetooth"
	ConnectionUSB       ConnectionType = "usb"
)

const (
	DefaultDeviceIP       = "192.168.1.100"
	DefaultPort           = 8080
	DefaultConnectionType = ConnectionNetwork
)

// ParseConnectionType normalizes case and surrounding spaces.
func ParseConnectionType(value string) (ConnectionType, error) {
	switch ConnectionType(strings.ToLower(strings.TrimSpace(value))) {
	case ConnectionNetwork:
		return ConnectionNetwork, nil
	case ConnectionBluetooth:
		return ConnectionBluetooth, nil
	case ConnectionUSB:
		return ConnectionUSB, nil
	default:
		return "", fmt.Errorf("unsupported connection type: %s", value)
	}
}

// ConnectionConfig describes how the terminal is reached.
type ConnectionConfig struct {
	DeviceIP       string
	Port           int
	ConnectionType ConnectionType

	// SerialPort and BaudRate come from agent config and are used for usb/bluetooth links.
	SerialPort string
	BaudRate   int
}

type State struct {
	Initialized bool
	Connected   bool
}

// Session holds the connection config and device state of one dispatcher.
type Session struct {
	mu     sync.RWMutex
	config ConnectionConfig
	state  State
}

func NewSession() *Session {
	return &Session{}
}

// Initialize replaces the connection config and marks the session initialized.
// The connected flag is left untouched.
func (s *Session) Initialize(cfg ConnectionConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = cfg
	s.state.Initialized = true
}

func (s *Session) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Connected = connected
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Config returns the active config and whether initialize has run.
func (s *Session) Config() (ConnectionConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.config, s.state.Initialized
}
