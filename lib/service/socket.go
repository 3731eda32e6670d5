// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/kiln-foundation/kiln/lib/codec"
)

// ActionFunc handles one request for a single action. The raw bytes
// are the complete request map, action field included, so a handler
// decodes its own parameter struct straight from them.
//
// A nil result produces a bare {ok: true} response; a non-nil result
// is CBOR-encoded into the response's data field. A returned error
// becomes the {ok: false} response with err.Error() as the wire
// message.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the wire envelope every exchange ends with: ok reports
// whether the action succeeded, error carries the refusal message,
// and data carries the handler's encoded result when it produced one.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// SocketServer answers CBOR requests over a Unix socket, one exchange
// per connection: read a request map, route on its "action" field,
// write a Response, hang up. CBOR items are self-delimiting, so the
// protocol needs no framing.
//
// Register handlers with Handle before Serve; the handler table is
// not guarded once the listener starts accepting.
type SocketServer struct {
	socketPath string
	logger     *slog.Logger
	handlers   map[string]ActionFunc
}

// NewSocketServer creates a server for socketPath. Nothing is bound
// until Serve runs.
func NewSocketServer(socketPath string, logger *slog.Logger) *SocketServer {
	return &SocketServer{
		socketPath: socketPath,
		logger:     logger,
		handlers:   make(map[string]ActionFunc),
	}
}

// Handle registers the handler for an action. Registering the same
// action twice panics.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, taken := s.handlers[action]; taken {
		panic(fmt.Sprintf("service: action %q registered twice", action))
	}
	s.handlers[action] = handler
}

// Serve owns the socket path from here on: a stale file left by an
// earlier run is unlinked, the listener is bound, and requests are
// answered until ctx is cancelled. Cancellation stops the accept
// loop, waits out in-flight handlers, and removes the socket file.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer os.Remove(s.socketPath)
	defer listener.Close()

	// Closing the listener is the only way to interrupt Accept.
	unblock := context.AfterFunc(ctx, func() { listener.Close() })
	defer unblock()

	s.logger.Info("service socket listening", "path", s.socketPath)

	var inflight sync.WaitGroup
	defer inflight.Wait()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// requestTimeout bounds how long an accepted connection may take to
// deliver its request.
const requestTimeout = 30 * time.Second

// responseTimeout bounds the response write.
const responseTimeout = 10 * time.Second

// maxMessageBytes caps a single CBOR message in either direction. An
// authorize exchange, commit envelope and snapshot included, is a few
// kilobytes; a megabyte leaves room without inviting memory abuse.
const maxMessageBytes = 1 << 20

// serveConn runs one exchange and closes the connection.
func (s *SocketServer) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(requestTimeout))
	action, raw, err := readRequest(conn)
	switch {
	case errors.Is(err, io.EOF):
		// Dialed and hung up without sending a request.
		return
	case err != nil:
		s.reply(conn, Response{Error: err.Error()})
		return
	}

	s.reply(conn, s.dispatch(ctx, action, raw))
}

// readRequest decodes one request item and extracts its action. A
// connection closed before any bytes arrive surfaces as io.EOF.
func readRequest(conn net.Conn) (action string, raw []byte, err error) {
	var request codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxMessageBytes)).Decode(&request); err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("malformed request: %v", err)
	}
	var envelope struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(request, &envelope); err != nil {
		return "", nil, fmt.Errorf("malformed request: %v", err)
	}
	if envelope.Action == "" {
		return "", nil, errors.New("missing required field: action")
	}
	return envelope.Action, []byte(request), nil
}

// dispatch routes a decoded request to its handler and folds the
// outcome into the wire envelope.
func (s *SocketServer) dispatch(ctx context.Context, action string, raw []byte) Response {
	handler, known := s.handlers[action]
	if !known {
		return Response{Error: fmt.Sprintf("unknown action %q", action)}
	}
	result, err := handler(ctx, raw)
	if err != nil {
		s.logger.Debug("action failed", "action", action, "error", err)
		return Response{Error: err.Error()}
	}
	if result == nil {
		return Response{OK: true}
	}
	data, err := codec.Marshal(result)
	if err != nil {
		return Response{Error: fmt.Sprintf("internal: encoding %s result: %v", action, err)}
	}
	return Response{OK: true, Data: data}
}

// reply writes one response envelope; write failures are logged, not
// returned.
func (s *SocketServer) reply(conn net.Conn, response Response) {
	conn.SetWriteDeadline(time.Now().Add(responseTimeout))
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("response write failed", "error", err)
	}
}
