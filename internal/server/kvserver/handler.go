package kvserver

import (
	"context"
	"time"

	"github.com/yndnr/kvwait/internal/core/domain"
	"github.com/yndnr/kvwait/internal/storage/memory"
	"github.com/yndnr/kvwait/internal/telemetry/logger"
	"github.com/yndnr/kvwait/internal/telemetry/metric"
	"github.com/yndnr/kvwait/internal/wire"
)

// dispatch runs one request and flushes its response. A returned error
// closes the connection.
func (s *Server) dispatch(ctx context.Context, c *Conn, req *wire.Request) error {
	start := time.Now()
	cmd := req.Cmd.String()

	outcome, err := s.handle(ctx, c, req)
	if err == nil && req.Cmd != wire.CmdExit {
		err = s.flush(c)
	}
	if err != nil {
		outcome = metric.OutcomeError
	}

	s.recorder.RecordCommand(cmd, outcome, time.Since(start))
	return err
}

// handle writes the response for req into the connection buffer and returns
// the outcome label.
func (s *Server) handle(ctx context.Context, c *Conn, req *wire.Request) (string, error) {
	switch req.Cmd {
	case wire.CmdExit:
		c.state = stateClosed
		return metric.OutcomeOK, nil
	case wire.CmdRegister:
		return s.handleRegister(ctx, c, req)
	case wire.CmdLogin:
		return s.handleLogin(ctx, c, req)
	}

	if c.state != stateAuthenticated {
		logger.L(ctx).Debug("command rejected before login", "command", req.Cmd.String())
		return metric.OutcomeRejected, writeNegative(c, req.Cmd)
	}

	switch req.Cmd {
	case wire.CmdPut:
		s.store.Put(req.Key, req.Value)
		return metric.OutcomeOK, wire.WriteBool(c.bw, true)

	case wire.CmdGet:
		v, ok := s.store.Get(req.Key)
		return boolOutcome(ok), wire.WriteValue(c.bw, v, ok)

	case wire.CmdMultiPut:
		pairs := make([]memory.Pair, len(req.Pairs))
		for i, p := range req.Pairs {
			pairs[i] = memory.Pair{Key: p.Key, Value: p.Value}
		}
		s.store.MultiPut(pairs)
		return metric.OutcomeOK, wire.WriteBool(c.bw, true)

	case wire.CmdMultiGet:
		keys := uniqueKeys(req.Keys)
		found := s.store.MultiGet(keys)
		out := make([]wire.Pair, 0, len(found))
		for _, k := range keys {
			if v, ok := found[k]; ok {
				out = append(out, wire.Pair{Key: k, Value: v})
			}
		}
		return boolOutcome(len(out) > 0), wire.WritePairs(c.bw, out)

	case wire.CmdGetWhen:
		return s.handleGetWhen(ctx, c, req)
	}

	return metric.OutcomeError, wire.ErrProtocol
}

func (s *Server) handleRegister(ctx context.Context, c *Conn, req *wire.Request) (string, error) {
	log := logger.L(ctx)

	ok, err := s.store.RegisterUser(req.Username, req.Password)
	if err != nil {
		log.Error("registration failed", "username", req.Username, "error", err)
		return metric.OutcomeError, wire.WriteBool(c.bw, false)
	}
	if ok {
		log.Info("user registered", "username", req.Username)
	} else {
		log.Debug("username already registered", "username", req.Username)
	}
	return boolOutcome(ok), wire.WriteBool(c.bw, ok)
}

func (s *Server) handleLogin(ctx context.Context, c *Conn, req *wire.Request) (string, error) {
	ok := s.store.AuthenticateUser(req.Username, req.Password)
	if ok {
		c.state = stateAuthenticated
		c.user = req.Username
		logger.L(ctx).Info("login succeeded", "username", req.Username)
	} else {
		logger.L(ctx).Warn("login failed", "username", req.Username, "state", c.state.String())
	}
	return boolOutcome(ok), wire.WriteBool(c.bw, ok)
}

// handleGetWhen blocks until the condition holds. The wait ends early only
// when the peer hangs up or the server shuts down; either closes the
// connection.
func (s *Server) handleGetWhen(ctx context.Context, c *Conn, req *wire.Request) (string, error) {
	logger.L(ctx).Debug("conditional read waiting",
		"key", req.Key,
		"cond_key", req.CondKey,
		"cond_value_len", len(req.CondValue),
	)

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := c.watchHangup(cancel)
	v, ok, err := s.store.GetWhen(waitCtx, req.Key, req.CondKey, req.CondValue)
	stop()
	if err != nil {
		if domain.IsDomainError(err, domain.ErrWaitCancelled.Code) {
			logger.L(ctx).Debug("conditional read abandoned", "cond_key", req.CondKey)
		}
		return metric.OutcomeError, err
	}
	return boolOutcome(ok), wire.WriteValue(c.bw, v, ok)
}

// writeNegative answers a data command sent before LOGIN.
func writeNegative(c *Conn, cmd wire.Command) error {
	switch cmd {
	case wire.CmdGet, wire.CmdGetWhen:
		return wire.WriteValue(c.bw, nil, false)
	case wire.CmdMultiGet:
		return wire.WritePairs(c.bw, nil)
	default:
		return wire.WriteBool(c.bw, false)
	}
}

// uniqueKeys drops repeated keys, keeping first occurrences in order.
func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0:0]
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func boolOutcome(ok bool) string {
	if ok {
		return metric.OutcomeOK
	}
	return metric.OutcomeNegative
}
