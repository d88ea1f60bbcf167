// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uatest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexus-edge/opcua-client"
	"github.com/nexus-edge/opcua-client/transport"
	"github.com/nexus-edge/opcua-client/transport/transporttest"
	"github.com/nexus-edge/opcua-client/ua"
)

// newRecoverableSession is newTestSession with auto-reconnect left on
// and CreateSession calls counted, for tests that drive Recovery
// through a service response instead of a transport fault.
func newRecoverableSession(t *testing.T, createSessionCalls *int32, opts ...opcua.Option) (*opcua.Session, *transporttest.Fake) {
	t.Helper()

	fake := transporttest.New()
	fake.Handle("*ua.CreateSessionRequest", func(req ua.Request) (interface{}, error) {
		n := atomic.AddInt32(createSessionCalls, 1)
		return &ua.CreateSessionResponse{
			SessionID:           ua.NewNumericNodeID(0, uint32(n)),
			AuthenticationToken: ua.NewNumericNodeID(0, uint32(100+n)),
		}, nil
	})
	fake.Handle("*ua.ActivateSessionRequest", func(req ua.Request) (interface{}, error) {
		return &ua.ActivateSessionResponse{Results: []ua.StatusCode{ua.StatusOK}}, nil
	})
	fake.Handle("*ua.CloseSessionRequest", func(req ua.Request) (interface{}, error) {
		return &ua.CloseSessionResponse{}, nil
	})

	s := opcua.NewSession(fake, "opc.tcp://fake", append([]opcua.Option{opcua.AutoReconnect(true)}, opts...)...)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, fake
}

// TestServiceCallSessionInvalidTriggersRecovery: a Read whose response
// carries a session-invalid code must surface the error to the caller
// AND trigger Recovery, not just KeepAlive's probe path.
func TestServiceCallSessionInvalidTriggersRecovery(t *testing.T) {
	var createSessionCalls int32
	s, fake := newRecoverableSession(t, &createSessionCalls)

	var failedOnce int32
	fake.Handle("*ua.ReadRequest", func(req ua.Request) (interface{}, error) {
		if atomic.CompareAndSwapInt32(&failedOnce, 0, 1) {
			return nil, &transport.Error{Code: ua.StatusBadSessionIDInvalid}
		}
		return &ua.ReadResponse{Results: []*ua.DataValue{
			{Value: ua.MustVariant(int32(1)), Status: ua.StatusOK},
		}}, nil
	})

	req := &ua.ReadRequest{
		NodesToRead: []*ua.ReadValueID{{NodeID: ua.NewNumericNodeID(0, 2258)}},
	}
	if _, err := s.Read(context.Background(), req); err == nil {
		t.Fatal("expected the session-invalid read to fail")
	}

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&createSessionCalls) < 2 || s.State() != opcua.StateActivated {
		select {
		case <-deadline:
			t.Fatalf("recovery not triggered by service response: CreateSession called %d times, state %v",
				atomic.LoadInt32(&createSessionCalls), s.State())
		case <-time.After(10 * time.Millisecond):
		}
	}

	if _, err := s.Read(context.Background(), req); err != nil {
		t.Fatalf("read after recovery: %v", err)
	}
}

// TestServiceCallWaitForRecoveryRetries: with WaitForRecovery enabled,
// a session-invalid service response is absorbed by the Session: it
// waits out the triggered Recovery and retries once, so the caller
// sees a plain success.
func TestServiceCallWaitForRecoveryRetries(t *testing.T) {
	var createSessionCalls int32
	s, fake := newRecoverableSession(t, &createSessionCalls, opcua.WaitForRecovery(true))

	var failedOnce int32
	fake.Handle("*ua.ReadRequest", func(req ua.Request) (interface{}, error) {
		if atomic.CompareAndSwapInt32(&failedOnce, 0, 1) {
			return nil, &transport.Error{Code: ua.StatusBadSessionIDInvalid}
		}
		return &ua.ReadResponse{Results: []*ua.DataValue{
			{Value: ua.MustVariant(int32(7)), Status: ua.StatusOK},
		}}, nil
	})

	resp, err := s.Read(context.Background(), &ua.ReadRequest{
		NodesToRead: []*ua.ReadValueID{{NodeID: ua.NewNumericNodeID(0, 2258)}},
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got, want := resp.Results[0].Value.Value(), int32(7); got != want {
		t.Fatalf("got value %v want %v", got, want)
	}
	if got := atomic.LoadInt32(&createSessionCalls); got != 2 {
		t.Fatalf("CreateSession called %d times, want 2 (initial + recovery)", got)
	}
}

// TestPublishSubscriptionIDInvalidRecreatesSubscription: a Publish
// response of BadSubscriptionIdInvalid must recreate just that
// subscription under its existing key, without tearing down the
// session, and delivery must resume afterwards.
func TestPublishSubscriptionIDInvalidRecreatesSubscription(t *testing.T) {
	var createSessionCalls int32
	s, fake := newRecoverableSession(t, &createSessionCalls)

	srv := newFakeSubscriptionServer()
	srv.install(fake)

	var createSubCalls int32
	fake.Handle("*ua.CreateSubscriptionRequest", func(req ua.Request) (interface{}, error) {
		atomic.AddInt32(&createSubCalls, 1)
		r := req.(*ua.CreateSubscriptionRequest)
		srv.mu.Lock()
		srv.nextSeq = 0
		srv.queue = nil
		srv.mu.Unlock()
		return &ua.CreateSubscriptionResponse{
			SubscriptionID:            srv.subID,
			RevisedPublishingInterval: r.RequestedPublishingInterval,
			RevisedLifetimeCount:      r.RequestedLifetimeCount,
			RevisedMaxKeepAliveCount:  r.RequestedMaxKeepAliveCount,
		}, nil
	})

	// The pump holds two Publishes outstanding for a 100ms interval;
	// the third, fired after the first delivery, reports the
	// subscription id stale.
	subIDInvalid := ua.StatusBadSubscriptionIDInvalid
	var publishCalls int32
	srv.publishResult = func() (*ua.StatusCode, bool) {
		if atomic.AddInt32(&publishCalls, 1) == 3 {
			return &subIDInvalid, true
		}
		return nil, false
	}

	key, err := s.Subscribe(context.Background(), opcua.SubscriptionParameters{Interval: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	var mu sync.Mutex
	var got []int32
	received := make(chan struct{}, 16)
	statusc := make(chan ua.StatusCode, 4)
	handle, err := s.AddMonitoredItem(context.Background(), key, opcua.MonitoredItemSpec{
		NodeID: ua.NewStringNodeID(2, "Counter"),
		Handler: opcua.NotificationSink{
			DataChange: func(nodeID *ua.NodeID, value *ua.Variant, dv *ua.DataValue) {
				mu.Lock()
				got = append(got, value.Value().(int32))
				mu.Unlock()
				received <- struct{}{}
			},
			StatusChange: func(status ua.StatusCode) { statusc <- status },
		},
	})
	if err != nil {
		t.Fatalf("add monitored item: %v", err)
	}

	waitFor := func(n int) {
		t.Helper()
		for i := 0; i < n; i++ {
			select {
			case <-received:
			case <-time.After(2 * time.Second):
				mu.Lock()
				t.Fatalf("timed out waiting for delivery #%d, got %v so far", i+1, got)
				mu.Unlock()
			}
		}
	}

	srv.pushDataChange(handle, 1)
	waitFor(1)

	// The failing Publish fires now; the item must hear about the
	// interruption and the registry must rebuild the subscription.
	select {
	case status := <-statusc:
		if status != ua.StatusBadSubscriptionIDInvalid {
			t.Fatalf("got status change %v want BadSubscriptionIdInvalid", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no status change for the invalidated subscription")
	}

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&createSubCalls) < 2 {
		select {
		case <-deadline:
			t.Fatalf("subscription not recreated, CreateSubscription called %d times", atomic.LoadInt32(&createSubCalls))
		case <-time.After(10 * time.Millisecond):
		}
	}

	srv.pushDataChange(handle, 2)
	srv.pushDataChange(handle, 3)
	waitFor(2)

	mu.Lock()
	defer mu.Unlock()
	want := []int32{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	if got := atomic.LoadInt32(&createSessionCalls); got != 1 {
		t.Fatalf("session recreated %d times, want the session left alone", got)
	}
}
