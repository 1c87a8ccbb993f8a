package kvserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/kvwait/internal/server/admission"
	"github.com/yndnr/kvwait/internal/storage/memory"
	"github.com/yndnr/kvwait/internal/telemetry/logger"
	"github.com/yndnr/kvwait/pkg/cmap"
)

// Store is the storage engine the handler dispatches to.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte)
	MultiPut(pairs []memory.Pair)
	MultiGet(keys []string) map[string][]byte
	GetWhen(ctx context.Context, key, condKey string, condValue []byte) ([]byte, bool, error)
	RegisterUser(username, password string) (bool, error)
	AuthenticateUser(username, password string) bool
}

// Recorder receives per-command outcomes. It is satisfied by the metrics
// registry.
type Recorder interface {
	RecordCommand(command, outcome string, d time.Duration)
	ProtocolError()
}

type noopRecorder struct{}

func (noopRecorder) RecordCommand(string, string, time.Duration) {}
func (noopRecorder) ProtocolError()                              {}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder reports command outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Server) {
		if r != nil {
			s.recorder = r
		}
	}
}

// Server accepts protocol connections and serves them until Shutdown.
type Server struct {
	cfg      *Config
	store    Store
	gate     *admission.Controller
	logger   logger.Logger
	recorder Recorder

	ln      net.Listener
	conns   *cmap.Map[*Conn]
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a protocol server. store and gate are required.
func New(cfg *Config, store Store, gate *admission.Controller, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		cfg:      cfg,
		store:    store,
		gate:     gate,
		logger:   logger.Default(),
		recorder: noopRecorder{},
		conns:    cmap.New[*Conn](),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start binds the listen address and serves connections in the background.
// Cancelling ctx has the same effect on in-flight waits as Shutdown.
func (s *Server) Start(ctx context.Context) error {
	if s.store == nil || s.gate == nil {
		return errors.New("kvserver: store and admission controller are required")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running.Store(true)

	s.logger.Info("protocol server listening",
		"address", ln.Addr().String(),
		"max_sessions", s.gate.Max(),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil {
			s.logger.Error("accept loop stopped", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Running reports whether the server is accepting connections.
func (s *Server) Running() bool {
	return s.running.Load()
}

// ActiveConnections returns the number of open connections, admitted or not.
func (s *Server) ActiveConnections() int {
	return s.conns.Count()
}

// Shutdown stops accepting, cancels every admission and GETWHEN wait,
// closes open connections and waits for their goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	var firstErr error
	if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		firstErr = err
	}
	s.cancel()

	closed := 0
	s.conns.Range(func(_ string, c *Conn) bool {
		_ = c.Close()
		closed++
		return true
	})
	s.logger.Info("protocol server stopping", "closed_connections", closed)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, newConn(nc, s.cfg.RateLimit))
		}()
	}
}
