// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package transporttest provides an in-memory, scriptable
// transport.Transport double used by the client core's unit tests in
// place of a spawned reference server.
package transporttest

import (
	"context"
	"sync"

	"github.com/nexus-edge/opcua-client/debug"
	"github.com/nexus-edge/opcua-client/transport"
	"github.com/nexus-edge/opcua-client/ua"
)

// Responder produces a response (or error) for one request. Registered
// per concrete request type via Fake.Handle.
type Responder func(req ua.Request) (interface{}, error)

// Fake is an in-memory transport.Transport. Zero value is usable;
// register responders with Handle before Open is called, and inject
// asynchronous faults or Publish notifications with Fault/Notify.
type Fake struct {
	mu        sync.Mutex
	handlers  map[string]Responder
	opens     int
	closed    bool
	faultsCh  chan error
	aliveFn   func() bool
}

type fakeChannel struct {
	f *Fake
}

func (c *fakeChannel) Closed() bool {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	return c.f.closed
}

// New returns a ready-to-configure Fake.
func New() *Fake {
	return &Fake{
		handlers: make(map[string]Responder),
		faultsCh: make(chan error, 16),
		aliveFn:  func() bool { return true },
	}
}

// Handle registers the Responder invoked for requests of the given Go
// type name, e.g. f.Handle("*ua.ReadRequest", responder).
func (f *Fake) Handle(typeName string, r Responder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[typeName] = r
}

// Fault pushes an asynchronous channel-level error, as if the transport
// detected a connection drop or protocol fault out of band.
func (f *Fake) Fault(err error) {
	f.faultsCh <- err
}

// SetAlive overrides the IsAlive liveness probe (default: always true).
func (f *Fake) SetAlive(fn func() bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aliveFn = fn
}

func (f *Fake) Open(ctx context.Context, url string, opts transport.SecurityOptions) (transport.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	f.closed = false
	return &fakeChannel{f: f}, nil
}

func (f *Fake) Close(ctx context.Context, ch transport.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *Fake) Request(ctx context.Context, ch transport.Channel, req ua.Request) (interface{}, error) {
	name := typeName(req)
	f.mu.Lock()
	h, ok := f.handlers[name]
	f.mu.Unlock()
	if !ok {
		debug.Printf("transporttest: no responder registered for %s", name)
		return nil, &transport.Error{Code: ua.StatusBadServiceUnsupported}
	}
	res, err := h(req)
	debug.Printf("transporttest: %s -> %T, err=%v", name, res, err)
	return res, err
}

func (f *Fake) IsAlive(ch transport.Channel) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aliveFn()
}

func (f *Fake) Faults(ch transport.Channel) <-chan error {
	return f.faultsCh
}

// Opens returns how many times Open has been called, useful for
// asserting that Recovery actually re-dialed.
func (f *Fake) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func typeName(req ua.Request) string {
	switch req.(type) {
	case *ua.GetEndpointsRequest:
		return "*ua.GetEndpointsRequest"
	case *ua.CreateSessionRequest:
		return "*ua.CreateSessionRequest"
	case *ua.ActivateSessionRequest:
		return "*ua.ActivateSessionRequest"
	case *ua.CloseSessionRequest:
		return "*ua.CloseSessionRequest"
	case *ua.ReadRequest:
		return "*ua.ReadRequest"
	case *ua.WriteRequest:
		return "*ua.WriteRequest"
	case *ua.BrowseRequest:
		return "*ua.BrowseRequest"
	case *ua.BrowseNextRequest:
		return "*ua.BrowseNextRequest"
	case *ua.TranslateBrowsePathsToNodeIDsRequest:
		return "*ua.TranslateBrowsePathsToNodeIDsRequest"
	case *ua.CallRequest:
		return "*ua.CallRequest"
	case *ua.RegisterNodesRequest:
		return "*ua.RegisterNodesRequest"
	case *ua.UnregisterNodesRequest:
		return "*ua.UnregisterNodesRequest"
	case *ua.HistoryReadRequest:
		return "*ua.HistoryReadRequest"
	case *ua.CreateSubscriptionRequest:
		return "*ua.CreateSubscriptionRequest"
	case *ua.ModifySubscriptionRequest:
		return "*ua.ModifySubscriptionRequest"
	case *ua.DeleteSubscriptionsRequest:
		return "*ua.DeleteSubscriptionsRequest"
	case *ua.SetPublishingModeRequest:
		return "*ua.SetPublishingModeRequest"
	case *ua.TransferSubscriptionsRequest:
		return "*ua.TransferSubscriptionsRequest"
	case *ua.PublishRequest:
		return "*ua.PublishRequest"
	case *ua.RepublishRequest:
		return "*ua.RepublishRequest"
	case *ua.CreateMonitoredItemsRequest:
		return "*ua.CreateMonitoredItemsRequest"
	case *ua.ModifyMonitoredItemsRequest:
		return "*ua.ModifyMonitoredItemsRequest"
	case *ua.DeleteMonitoredItemsRequest:
		return "*ua.DeleteMonitoredItemsRequest"
	case *ua.SetMonitoringModeRequest:
		return "*ua.SetMonitoringModeRequest"
	default:
		return "unknown"
	}
}
