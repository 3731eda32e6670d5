// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net"
	"time"

	"github.com/kiln-foundation/kiln/lib/codec"
)

// dialTimeout bounds the connect to the daemon socket.
const dialTimeout = 5 * time.Second

// replyTimeout bounds the wait for the daemon's answer. It covers the
// server's request window plus handler time.
const replyTimeout = 45 * time.Second

// ServiceError is a refusal from the daemon itself: the exchange
// completed but the action answered {ok: false}. Dial, write, and
// decode failures are ordinary errors, never a ServiceError.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("action %q failed: %s", e.Action, e.Message)
}

// Client calls a daemon over its Unix socket. Each Call dials a fresh
// connection, mirroring the server's one-exchange-per-connection
// model, so a single Client is safe to share across goroutines.
type Client struct {
	socketPath string
}

// NewClient returns a client for the daemon socket at socketPath. No
// connection is made until Call.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Call performs one exchange: dial, send the request, decode the
// answer. Action-specific parameters go in fields (nil for actions
// that take none); the "action" key itself is filled in here.
//
// An {ok: false} answer comes back as a *ServiceError carrying the
// daemon's message. On {ok: true} the response data is decoded into
// result when result is non-nil; an answer without data leaves result
// untouched.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	maps.Copy(request, fields)
	request["action"] = action

	response, err := c.roundTrip(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}
	if !response.OK {
		return &ServiceError{Action: action, Message: response.Error}
	}
	if result == nil || len(response.Data) == 0 {
		return nil
	}
	if err := codec.Unmarshal(response.Data, result); err != nil {
		return fmt.Errorf("decoding %q response: %w", action, err)
	}
	return nil
}

// roundTrip runs the wire exchange for one encoded request.
func (c *Client) roundTrip(ctx context.Context, request map[string]any) (Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return Response{}, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return Response{}, fmt.Errorf("writing request: %w", err)
	}
	// Half-close after the request so the server's reader sees a
	// clean end of input.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(replyTimeout))
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxMessageBytes)).Decode(&response); err != nil {
		return Response{}, fmt.Errorf("reading response: %w", err)
	}
	return response, nil
}
