package service

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NowakAdmin/MonerisAgent/internal/agent"
	"github.com/NowakAdmin/MonerisAgent/internal/api"
	"github.com/NowakAdmin/MonerisAgent/internal/bridge"
	"github.com/NowakAdmin/MonerisAgent/internal/config"
	"github.com/NowakAdmin/MonerisAgent/internal/terminal"
)

// Service owns the dispatcher and every channel that feeds it commands.
type Service struct {
	cfg    *config.Config
	logger *log.Logger

	pool       *bridge.Pool
	dispatcher *bridge.Dispatcher
	server     *api.Server
	remote     *agent.Agent

	running atomic.Bool
	mu      sync.Mutex
	serveWG sync.WaitGroup
}

func New(cfg *config.Config, device terminal.Device, logger *log.Logger) *Service {
	pool := bridge.NewPool(cfg.Workers, cfg.Workers*4)
	dispatcher := bridge.New(device, pool, logger, bridge.Options{
		SerialPort: cfg.Terminal.SerialPort,
		BaudRate:   cfg.Terminal.BaudRate,
	})

	return &Service{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		dispatcher: dispatcher,
		remote:     agent.New(cfg, dispatcher, logger),
	}
}

// NewSimulated builds a Service backed by the terminal simulator configured in cfg.
func NewSimulated(cfg *config.Config, logger *log.Logger) *Service {
	device := terminal.NewSimulator(terminal.SimulatorOptions{
		ProcessingDelay: cfg.Terminal.ProcessingDelay(),
		ProbeLink:       cfg.Terminal.ProbeLink,
		ProbeTimeout:    cfg.Terminal.ProbeTimeout(),
	})

	return New(cfg, device, logger)
}

func (s *Service) Dispatcher() *bridge.Dispatcher {
	return s.dispatcher
}

// Addr is the bound local API address, empty while stopped or disabled.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return ""
	}
	return s.server.Addr
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil
	}

	if !s.cfg.Listen.Disabled {
		listener, err := net.Listen("tcp", s.cfg.Listen.Address)
		if err != nil {
			return err
		}

		server := api.NewServer(listener.Addr().String(), s.cfg.Listen.AllowedOrigins, s.dispatcher, s.logger)
		s.server = server

		s.serveWG.Add(1)
		go func() {
			defer s.serveWG.Done()
			if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				s.logger.Printf("Local API stopped: %v", serveErr)
			}
		}()
	}

	if err := s.remote.Start(ctx); err != nil {
		return err
	}

	s.running.Store(true)
	return nil
}

// Stop halts the command channels. The dispatcher and its pool stay usable so
// the service can be started again; Close releases them.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return
	}

	s.remote.Stop()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.server.Stop(ctx); err != nil {
			s.logger.Printf("Local API shutdown error: %v", err)
		}
		cancel()
		s.serveWG.Wait()
		s.server = nil
	}

	s.running.Store(false)
}

func (s *Service) IsRunning() bool {
	return s.running.Load()
}

func (s *Service) Close() {
	s.Stop()
	s.dispatcher.Close()
	s.pool.Close()
}
