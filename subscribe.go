// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"context"

	"github.com/nexus-edge/opcua-client/ua"
)

// Subscribe creates a new subscription with params and starts its
// Publish pump, returning the SubscriptionKey callers use to add
// MonitoredItems and to address it across Recovery.
func (s *Session) Subscribe(ctx context.Context, params SubscriptionParameters) (SubscriptionKey, error) {
	return s.registry.Create(ctx, params)
}

// ModifySubscription sends ModifySubscription for key's subscription.
// The returned ModifyResult's ServerRefusedModify is set when the
// server responded BadServiceUnsupported; the call still reports
// success since the client simply falls back to operating against the
// server's existing parameters.
func (s *Session) ModifySubscription(ctx context.Context, key SubscriptionKey, params SubscriptionParameters) (ModifyResult, error) {
	return s.registry.Modify(ctx, key, params)
}

// DeleteSubscription deletes key's subscription server-side and stops
// its Publish pump.
func (s *Session) DeleteSubscription(ctx context.Context, key SubscriptionKey) error {
	return s.registry.Delete(ctx, key)
}

// SetPublishingMode toggles key's publishing_enabled flag.
func (s *Session) SetPublishingMode(ctx context.Context, key SubscriptionKey, enabled bool) error {
	return s.registry.SetPublishingMode(ctx, key, enabled)
}

// AddMonitoredItem adds a MonitoredItem to key's subscription, returning
// its client handle.
func (s *Session) AddMonitoredItem(ctx context.Context, key SubscriptionKey, spec MonitoredItemSpec) (uint32, error) {
	return s.registry.AddMonitoredItem(ctx, key, spec)
}

// RemoveMonitoredItem removes a MonitoredItem by client handle.
func (s *Session) RemoveMonitoredItem(ctx context.Context, key SubscriptionKey, clientHandle uint32) error {
	return s.registry.RemoveMonitoredItem(ctx, key, clientHandle)
}

// ModifyMonitoredItem modifies an existing MonitoredItem's sampling
// interval, queue size and filter.
func (s *Session) ModifyMonitoredItem(ctx context.Context, key SubscriptionKey, clientHandle uint32, samplingMS float64, queueSize uint32, filter FilterChange) error {
	return s.registry.ModifyMonitoredItem(ctx, key, clientHandle, samplingMS, queueSize, filter)
}

// SetMonitoringMode sets the monitoring mode for a batch of items within
// key's subscription.
func (s *Session) SetMonitoringMode(ctx context.Context, key SubscriptionKey, handles []uint32, mode ua.MonitoringMode) error {
	return s.registry.SetMonitoringMode(ctx, key, handles, mode)
}

// Subscriptions returns a snapshot of every live subscription on this
// Session.
func (s *Session) Subscriptions() []SubscriptionInfo {
	return s.registry.List()
}
