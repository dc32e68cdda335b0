package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/NowakAdmin/MonerisAgent/internal/config"
	"github.com/NowakAdmin/MonerisAgent/internal/service"
	"github.com/NowakAdmin/MonerisAgent/internal/terminal"
	"github.com/NowakAdmin/MonerisAgent/internal/tray"
	"github.com/NowakAdmin/MonerisAgent/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "configure":
			runConfigure()
			return
		case "headless":
			runHeadless()
			return
		case "version":
			fmt.Printf("MonerisAgent %s\n", version.Version)
			return
		}
	}

	runTray()
}

func runConfigure() {
	cfg, err := config.LoadOrCreateDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config read error: %v\n", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	serverURL := fs.String("server", cfg.ServerURL, "Backend base URL, e.g. https://pos.example.com")
	wsURL := fs.String("ws", cfg.WebSocketURL, "Agent WebSocket URL, e.g. wss://pos.example.com/agent/ws")
	agentID := fs.String("agent-id", cfg.AgentID, "Agent account ID")
	token := fs.String("token", cfg.AgentToken, "Agent API token")
	tenantID := fs.String("tenant-id", cfg.TenantID, "Optional tenant ID")
	deviceName := fs.String("name", cfg.DeviceName, "Agent name shown in the backend")
	listen := fs.String("listen", cfg.Listen.Address, "Local API address")
	serialPort := fs.String("serial-port", cfg.Terminal.SerialPort, "Serial port for usb/bluetooth terminals, e.g. COM3")
	baud := fs.Int("baud", cfg.Terminal.BaudRate, "Serial baud rate")
	probe := fs.Bool("probe", cfg.Terminal.ProbeLink, "Probe the terminal link on connect")
	delayMs := fs.Int("delay-ms", cfg.Terminal.ProcessingDelayMs, "Simulated payment processing delay in milliseconds")
	githubRepo := fs.String("github-repo", cfg.Update.GitHubRepo, "Repository checked for updates, e.g. NowakAdmin/MonerisAgent")
	checkHours := fs.Int("update-hours", cfg.Update.CheckIntervalHours, "Hours between update checks")
	listPorts := fs.Bool("list-ports", false, "List serial ports and exit")

	_ = fs.Parse(os.Args[2:])

	if *listPorts {
		ports, portsErr := terminal.SerialPorts()
		if portsErr != nil {
			fmt.Fprintf(os.Stderr, "Serial port listing error: %v\n", portsErr)
			os.Exit(1)
		}
		for _, port := range ports {
			fmt.Println(port)
		}
		return
	}

	cfg.ServerURL = *serverURL
	cfg.WebSocketURL = *wsURL
	cfg.AgentID = *agentID
	cfg.AgentToken = *token
	cfg.TenantID = *tenantID
	cfg.DeviceName = *deviceName
	cfg.Listen.Address = *listen
	cfg.Terminal.SerialPort = *serialPort
	cfg.Terminal.BaudRate = *baud
	cfg.Terminal.ProbeLink = *probe
	cfg.Terminal.ProcessingDelayMs = *delayMs
	cfg.Update.GitHubRepo = *githubRepo
	cfg.Update.CheckIntervalHours = *checkHours

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Config write error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Config saved: %s\n", config.Path())
}

func runHeadless() {
	cfg, err := config.LoadOrCreateDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	logger, closeFn, err := buildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	svc := service.NewSimulated(cfg, logger)
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		logger.Printf("Could not start agent: %v", err)
		return
	}
	logger.Printf("MonerisAgent %s listening on %s", version.Version, svc.Addr())

	<-ctx.Done()
}

func runTray() {
	cfg, err := config.LoadOrCreateDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	logger, closeFn, err := buildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	svc := service.NewSimulated(cfg, logger)
	t := tray.New(cfg, svc, logger)
	t.Run()
}

func buildLogger() (*log.Logger, func(), error) {
	logPath := filepath.Join(config.LogDir(), "agent.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, nil, err
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}

	w := io.MultiWriter(os.Stdout, f)
	logger := log.New(w, "[moneris-agent] ", log.LstdFlags|log.Lmicroseconds)

	return logger, func() {
		_ = f.Close()
	}, nil
}
