// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"context"
	"testing"

	"github.com/nexus-edge/opcua-client/transport/transporttest"
	"github.com/nexus-edge/opcua-client/ua"
)

// newConnectedTestSession wires the handshake handlers every test needs
// onto a fresh transporttest.Fake, connects a Session against it, and
// registers cleanup.
func newConnectedTestSession(t *testing.T, opts ...Option) (*Session, *transporttest.Fake) {
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

	s := NewSession(fake, "opc.tcp://fake", append([]Option{AutoReconnect(false)}, opts...)...)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, fake
}

func TestSessionConnectActivates(t *testing.T) {
	s, fake := newConnectedTestSession(t)
	if got, want := s.State(), StateActivated; got != want {
		t.Fatalf("got state %v want %v", got, want)
	}
	if got := fake.Opens(); got != 1 {
		t.Fatalf("got %d channel opens, want 1", got)
	}
}

func TestSessionReadDefaultsAttributeID(t *testing.T) {
	s, fake := newConnectedTestSession(t)

	var gotAttr ua.AttributeID
	fake.Handle("*ua.ReadRequest", func(req ua.Request) (interface{}, error) {
		rr := req.(*ua.ReadRequest)
		gotAttr = rr.NodesToRead[0].AttributeID
		return &ua.ReadResponse{Results: []*ua.DataValue{{Status: ua.StatusOK}}}, nil
	})

	_, err := s.Read(context.Background(), &ua.ReadRequest{
		NodesToRead: []*ua.ReadValueID{{NodeID: ua.NewNumericNodeID(0, 2258)}},
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if gotAttr != ua.AttributeIDValue {
		t.Fatalf("got attribute id %v want %v", gotAttr, ua.AttributeIDValue)
	}
}

func TestSessionSendRejectsWhenNotReady(t *testing.T) {
	fake := transporttest.New()
	s := NewSession(fake, "opc.tcp://fake", AutoReconnect(false))

	_, err := s.Read(context.Background(), &ua.ReadRequest{
		NodesToRead: []*ua.ReadValueID{{NodeID: ua.NewNumericNodeID(0, 2258)}},
	})
	if err != ErrSessionNotReady {
		t.Fatalf("got err %v want ErrSessionNotReady", err)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s, _ := newConnectedTestSession(t)
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if got, want := s.State(), StateClosed; got != want {
		t.Fatalf("got state %v want %v", got, want)
	}
}
