package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// HomeEnv overrides the configuration directory.
const HomeEnv = "MONERIS_AGENT_HOME"

type UpdateConfig struct {
	GitHubRepo         string `json:"github_repo"`
	CheckIntervalHours int    `json:"check_interval_hours"`
}

// ListenConfig is the local API used by POS applications on this machine.
type ListenConfig struct {
	Address        string   `json:"address"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	Disabled       bool     `json:"disabled,omitempty"`
}

type TerminalConfig struct {
	SerialPort        string `json:"serial_port,omitempty"`
	BaudRate          int    `json:"baud_rate,omitempty"`
	ProbeLink         bool   `json:"probe_link"`
	ProbeTimeoutMs    int    `json:"probe_timeout_ms"`
	ProcessingDelayMs int    `json:"processing_delay_ms"`
}

func (t TerminalConfig) ProbeTimeout() time.Duration {
	return time.Duration(t.ProbeTimeoutMs) * time.Millisecond
}

func (t TerminalConfig) ProcessingDelay() time.Duration {
	return time.Duration(t.ProcessingDelayMs) * time.Millisecond
}

type Config struct {
	ServerURL        string         `json:"server_url,omitempty"`
	WebSocketURL     string         `json:"websocket_url,omitempty"`
	AgentID          string         `json:"agent_id,omitempty"`
	AgentToken       string         `json:"agent_token,omitempty"`
	TenantID         string         `json:"tenant_id,omitempty"`
	DeviceName       string         `json:"device_name,omitempty"`
	HeartbeatSeconds int            `json:"heartbeat_seconds"`
	Workers          int            `json:"workers"`
	Listen           ListenConfig   `json:"listen"`
	Terminal         TerminalConfig `json:"terminal"`
	Update           UpdateConfig   `json:"update"`
}

// RemoteEnabled reports whether a backend to pull commands from is configured.
func (c *Config) RemoteEnabled() bool {
	if strings.TrimSpace(c.AgentToken) == "" {
		return false
	}
	return strings.TrimSpace(c.ServerURL) != "" || strings.TrimSpace(c.WebSocketURL) != ""
}

func Default() *Config {
	hostname, _ := os.Hostname()

	return &Config{
		DeviceName:       hostname,
		HeartbeatSeconds: 30,
		Workers:          4,
		Listen: ListenConfig{
			Address: "127.0.0.1:8765",
		},
		Terminal: TerminalConfig{
			BaudRate:          115200,
			ProbeTimeoutMs:    3000,
			ProcessingDelayMs: 2000,
		},
		Update: UpdateConfig{
			GitHubRepo:         "NowakAdmin/MonerisAgent",
			CheckIntervalHours: 6,
		},
	}
}

func LoadOrCreateDefault() (*Config, error) {
	if _, err := os.Stat(Path()); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if errSave := Save(cfg); errSave != nil {
			return nil, errSave
		}
		return cfg, nil
	}

	return Load()
}

func Load() (*Config, error) {
	data, err := os.ReadFile(Path())
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err = json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	defaults := Default()

	if c.HeartbeatSeconds <= 0 {
		c.HeartbeatSeconds = defaults.HeartbeatSeconds
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if strings.TrimSpace(c.Listen.Address) == "" {
		c.Listen.Address = defaults.Listen.Address
	}
	if c.Terminal.BaudRate <= 0 {
		c.Terminal.BaudRate = defaults.Terminal.BaudRate
	}
	if c.Terminal.ProbeTimeoutMs <= 0 {
		c.Terminal.ProbeTimeoutMs = defaults.Terminal.ProbeTimeoutMs
	}
	// zero processing delay is allowed
	if c.Terminal.ProcessingDelayMs < 0 {
		c.Terminal.ProcessingDelayMs = defaults.Terminal.ProcessingDelayMs
	}
	if c.Update.CheckIntervalHours <= 0 {
		c.Update.CheckIntervalHours = defaults.Update.CheckIntervalHours
	}
}

func Save(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(Path(), data, 0o600)
}

func Dir() string {
	if home := strings.TrimSpace(os.Getenv(HomeEnv)); home != "" {
		return home
	}

	if runtime.GOOS == "windows" {
		programData := os.Getenv("ProgramData")
		if programData == "" {
			programData = "C:\\ProgramData"
		}
		return filepath.Join(programData, "MonerisAgent")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}

	return filepath.Join(configDir, "moneris-agent")
}

func LogDir() string {
	return filepath.Join(Dir(), "logs")
}

func Path() string {
	return filepath.Join(Dir(), "config.json")
}
