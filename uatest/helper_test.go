// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package uatest exercises the client-core packages end to end against
// an in-memory transport.Transport fake in place of a spawned reference
// server.
package uatest

import (
	"context"
	"testing"

	"github.com/nexus-edge/opcua-client"
	"github.com/nexus-edge/opcua-client/transport/transporttest"
	"github.com/nexus-edge/opcua-client/ua"
)

// newTestSession wires the handshake handlers every test needs
// (CreateSession/ActivateSession/CloseSession) onto a fresh Fake and
// returns a connected Session plus the Fake so the caller can register
// additional per-test responders.
func newTestSession(t *testing.T, opts ...opcua.Option) (*opcua.Session, *transporttest.Fake) {
	t.Helper()

	fake := transporttest.New()
	fake.Handle("*ua.CreateSessionRequest", func(req ua.Request) (interface{}, error) {
		return &ua.CreateSessionResponse{
			SessionID:           ua.NewNumericNodeID(0, 1),
			AuthenticationToken: ua.NewNumericNodeID(0, 2),
		}, nil
	})
	fake.Handle("*ua.ActivateSessionRequest", func(req ua.Request) (interface{}, error) {
		return &ua.ActivateSessionResponse{Results: []ua.StatusCode{ua.StatusOK}}, nil
	})
	fake.Handle("*ua.CloseSessionRequest", func(req ua.Request) (interface{}, error) {
		return &ua.CloseSessionResponse{}, nil
	})

	s := opcua.NewSession(fake, "opc.tcp://fake", append([]opcua.Option{opcua.AutoReconnect(false)}, opts...)...)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, fake
}

// testRead asserts that reading id's Value attribute returns want.
func testRead(t *testing.T, ctx context.Context, s *opcua.Session, want interface{}, id *ua.NodeID) {
	t.Helper()

	resp, err := s.Read(ctx, &ua.ReadRequest{
		NodesToRead: []*ua.ReadValueID{{NodeID: id, AttributeID: ua.AttributeIDValue}},
	})
	if err != nil {
		t.Fatalf("Read failed: %s", err)
	}
	if got, want := resp.Results[0].Value.Value(), want; got != want {
		t.Fatalf("got value %v want %v", got, want)
	}
}
