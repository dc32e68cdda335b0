package api

import (
	"context"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NowakAdmin/MonerisAgent/internal/protocol"
)

// Server exposes the dispatcher to POS applications running on this machine.
type Server struct {
	*http.Server
	Logger   *log.Logger
	Executor protocol.Executor

	// CommandTimeout bounds how long an HTTP request waits for a command.
	CommandTimeout time.Duration

	upgrader websocket.Upgrader

	// Shutdown does not see hijacked connections, so sockets are tracked here.
	mu      sync.Mutex
	sockets map[*protocol.Conn]struct{}
	closed  bool
	wsWG    sync.WaitGroup
}

func NewServer(addr string, allowedOrigins []string, executor protocol.Executor, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		Logger:         logger,
		Executor:       executor,
		CommandTimeout: 2 * time.Minute,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
		sockets: make(map[*protocol.Conn]struct{}),
	}

	mux.HandleFunc("POST /exec/{action}", s.execHandler)
	mux.HandleFunc("GET /status", s.statusHandler)
	mux.HandleFunc("GET /ws", s.wsHandler)

	return s
}

// Start begins listening; it returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}

	return s.Serve(listener)
}

// Serve accepts connections on listener until Stop.
func (s *Server) Serve(listener net.Listener) error {
	s.Logger.Printf("Local API listening on %s", listener.Addr())
	return s.Server.Serve(listener)
}

// Stop gracefully shuts down the server, then closes open WebSocket clients
// and waits for their commands to finish.
func (s *Server) Stop(ctx context.Context) error {
	s.Logger.Printf("Shutting down local API...")
	err := s.Shutdown(ctx)

	s.mu.Lock()
	s.closed = true
	for conn := range s.sockets {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wsWG.Wait()
	return err
}

// track registers an upgraded socket; it reports false once Stop has begun.
func (s *Server) track(conn *protocol.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.sockets[conn] = struct{}{}
	s.wsWG.Add(1)
	return true
}

func (s *Server) untrack(conn *protocol.Conn) {
	s.mu.Lock()
	delete(s.sockets, conn)
	s.mu.Unlock()

	s.wsWG.Done()
}

// originChecker allows every origin when the list is empty.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(strings.ToLower(origin), "/")]
		return ok
	}
}
