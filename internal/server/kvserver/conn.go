package kvserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/kvwait/internal/core/domain"
	"github.com/yndnr/kvwait/internal/telemetry/logger"
	"github.com/yndnr/kvwait/internal/wire"
)

type connState int

const (
	stateUnauthenticated connState = iota
	stateAuthenticated
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateAuthenticated:
		return "authenticated"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

// Conn is one client connection. Its state is owned by the goroutine
// serving it; only Close may be called from elsewhere.
type Conn struct {
	id      string
	netConn net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer
	limiter *rate.Limiter

	state connState
	user  string
	seq   uint64

	closed atomic.Bool
}

func newConn(nc net.Conn, rateLimit int) *Conn {
	c := &Conn{
		id:      ulid.Make().String(),
		netConn: nc,
		br:      bufio.NewReader(nc),
		bw:      bufio.NewWriter(nc),
		state:   stateUnauthenticated,
	}
	if rateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rateLimit), rateLimit)
	}
	return c
}

// ID returns the connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// Close closes the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

// watchHangup cancels a blocking wait when the peer disconnects. Bytes
// pipelined by the peer are peeked, never consumed, so they stay buffered
// for the next read while the watch keeps looking for EOF behind them. Once
// the read buffer is full the watch ends without cancelling. The returned
// stop must be called before the connection is read again.
func (c *Conn) watchHangup(cancel context.CancelFunc) (stop func()) {
	_ = c.netConn.SetReadDeadline(time.Time{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for n := c.br.Buffered() + 1; n <= c.br.Size(); n = c.br.Buffered() + 1 {
			_, err := c.br.Peek(n)
			if err == nil {
				continue
			}
			if !errors.Is(err, os.ErrDeadlineExceeded) {
				cancel()
			}
			return
		}
	}()

	return func() {
		_ = c.netConn.SetReadDeadline(time.Now())
		<-done
		_ = c.netConn.SetReadDeadline(time.Time{})
	}
}

func (s *Server) serveConn(ctx context.Context, c *Conn) {
	defer c.Close()

	s.conns.Set(c.id, c)
	defer s.conns.Delete(c.id)
	if !s.running.Load() {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx = logger.WithLogger(ctx, s.logger.With("remote", c.RemoteAddr().String()))
	ctx = logger.WithConnID(ctx, c.id)
	log := logger.L(ctx)

	log.Debug("connection accepted", "sessions_active", s.gate.Active())

	stop := c.watchHangup(cancel)
	err := s.gate.Acquire(ctx)
	stop()
	if err != nil {
		log.Debug("connection left before admission", "error", err)
		return
	}
	defer s.gate.Release()

	log.Debug("session admitted")

	for c.state != stateClosed {
		req, err := s.readRequest(ctx, c)
		if err != nil {
			return
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
		}

		c.seq++
		reqCtx := logger.WithRequestID(ctx, strconv.FormatUint(c.seq, 10))
		if err := s.dispatch(reqCtx, c, req); err != nil {
			logger.L(reqCtx).Debug("closing connection", "command", req.Cmd.String(), "error", err)
			return
		}
	}

	log.Debug("connection closed by client")
}

// readRequest waits for the next frame. A clean EOF, a timeout or a framing
// error all end the connection; only framing errors are reported.
func (s *Server) readRequest(ctx context.Context, c *Conn) (*wire.Request, error) {
	log := logger.L(ctx)

	idle := time.Time{}
	if s.cfg.IdleTimeout > 0 {
		idle = time.Now().Add(s.cfg.IdleTimeout)
	}
	if err := c.netConn.SetReadDeadline(idle); err != nil {
		return nil, err
	}
	if _, err := c.br.Peek(1); err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			log.Debug("connection read error", "error", err)
		}
		return nil, err
	}

	deadline := time.Time{}
	if s.cfg.ReadTimeout > 0 {
		deadline = time.Now().Add(s.cfg.ReadTimeout)
	}
	if err := c.netConn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	req, err := wire.ReadRequest(c.br)
	if err != nil {
		if !errors.Is(err, wire.ErrLimitExceeded) && !errors.Is(err, wire.ErrProtocol) {
			log.Debug("connection read error", "error", err)
			return nil, err
		}
		err = domain.ErrProtocolViolation.WithCause(err)
		s.recorder.ProtocolError()
		log.Warn("protocol violation, closing connection",
			"code", domain.GetErrorCode(err),
			"error", err,
		)
		return nil, err
	}
	return req, nil
}

// flush writes the buffered response under the write deadline.
func (s *Server) flush(c *Conn) error {
	deadline := time.Time{}
	if s.cfg.WriteTimeout > 0 {
		deadline = time.Now().Add(s.cfg.WriteTimeout)
	}
	if err := c.netConn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.bw.Flush()
}
