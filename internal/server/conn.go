package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/protocol"
)

// Handles one decoded request and returns the response payload.
type handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Adapts a handler taking a typed request payload.
func withRequest[T any](fn func(context.Context, *T) (any, error)) handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		req, err := protocol.DecodePayload[T](payload)
		if err != nil {
			return nil, err
		}
		return fn(ctx, req)
	}
}

// Returns the handler for cmd.
func (s *Server) route(cmd protocol.Command) (handler, bool) {
	routes := map[protocol.Command]handler{
		protocol.CmdBuild:            withRequest(s.build),
		protocol.CmdLaunch:           withRequest(s.launch),
		protocol.CmdContainerStop:    withRequest(s.stopContainer),
		protocol.CmdContainerStatus:  withRequest(s.containerStatus),
		protocol.CmdContainerDestroy: withRequest(s.destroyContainer),
		protocol.CmdStatus:           s.status,
		protocol.CmdShutdown:         s.shutdown,
	}
	h, ok := routes[cmd]
	return h, ok
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			slog.Error("accept failed", "error", err)
			continue
		}
		go s.handle(conn)
	}
}

// Reads one request line, runs its handler and writes one response line.
//
// The handler's context is cancelled if the client hangs up first, which
// aborts a build whose CLI was interrupted.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	line, err := r.ReadBytes('\n')
	if err != nil {
		slog.Debug("request not read", "error", err)
		return
	}

	env, payload, err := protocol.Decode(line)
	if err != nil {
		s.reply(conn, nil, err)
		return
	}

	h, ok := s.route(env.Command)
	if !ok {
		s.reply(conn, nil, fault.Wrapf(ErrUnknownCommand, "%s", env.Command))
		return
	}

	slog.Info("request", "command", env.Command)

	ctx, cancel := cancelOnHangup(context.Background(), r)
	defer cancel()

	result, err := h(ctx, payload)
	s.reply(conn, result, err)

	if err == nil && env.Command == protocol.CmdShutdown {
		s.Stop()
	}
}

// Writes an ok response carrying result, or an error response when err is set.
func (s *Server) reply(conn net.Conn, result any, err error) {
	cmd := protocol.CmdOK
	if err != nil {
		slog.Warn("request failed", "error", err)
		cmd, result = protocol.CmdError, &protocol.ErrorResult{Message: err.Error()}
	}

	data, err := protocol.Encode(cmd, result)
	if err != nil {
		slog.Error("response not encoded", "error", err)
		return
	}
	conn.Write(append(data, '\n'))
}

// Derives a context cancelled once r hits EOF or an error.
//
// Clients send nothing after the request line, so any read completing means
// the peer closed its end. The returned cancel must always be called.
func cancelOnHangup(parent context.Context, r io.Reader) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		io.Copy(io.Discard, r)
		cancel()
	}()
	return ctx, cancel
}
