// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package transport defines the boundary between the client core and
// the OPC UA binary transport: secure-channel establishment, message
// framing, and request/response multiplexing. The core depends only on
// the Transport interface; it never encodes or frames a message itself.
package transport

import (
	"context"

	"github.com/nexus-edge/opcua-client/ua"
)

// SecurityOptions configures the secure channel a Transport opens.
type SecurityOptions struct {
	PolicyURI   string
	Mode        ua.MessageSecurityMode
	Certificate []byte
	PrivateKey  []byte
}

// Channel is an opaque handle to an open secure channel. Concrete
// Transport implementations define what it actually holds.
type Channel interface {
	// Closed reports whether the channel has been torn down, either by
	// a call to Close or because the underlying connection failed.
	Closed() bool
}

// Transport is the dependency contract Session relies on for every
// network interaction. A production implementation drives uacp/uasc
// framing and cryptography; tests drive transporttest.Fake.
type Transport interface {
	// Open establishes a secure channel to url with the given security
	// options and returns a handle to it.
	Open(ctx context.Context, url string, opts SecurityOptions) (Channel, error)

	// Close tears the channel down. Best-effort: implementations should
	// not return an error for a channel that is already closed.
	Close(ctx context.Context, ch Channel) error

	// Request sends req over ch and blocks for the matching response,
	// honoring ctx's deadline. Implementations MUST support concurrent
	// outstanding calls on the same channel, each identified by its own
	// request id.
	Request(ctx context.Context, ch Channel, req ua.Request) (interface{}, error)

	// IsAlive performs a cheap, local liveness check with no network
	// round-trip (e.g. "is the socket still open").
	IsAlive(ch Channel) bool

	// Faults returns a channel the Transport pushes asynchronous
	// channel-level errors onto (connection reset, EOF, protocol fault).
	// Recovery consumes it to decide when and how to reconnect. Closed
	// when the channel is closed.
	Faults(ch Channel) <-chan error
}

// Error is a transport-level failure tagged with the OPC UA status code
// the server (or local stack) attached to it. Recovery switches on Code
// to decide the reconnect action.
type Error struct {
	Code ua.StatusCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code.Error()
}

func (e *Error) Unwrap() error { return e.Err }
