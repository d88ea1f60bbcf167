// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nexus-edge/opcua-client/ua"
)

// SubscriptionKey is a stable, client-generated identifier for a
// Subscription. Unlike the server-assigned subscription id, a
// SubscriptionKey never changes across Recovery.
type SubscriptionKey string

// SubscriptionInfo is the read-only view SubscriptionRegistry.List
// returns for one live subscription.
type SubscriptionInfo struct {
	Key       SubscriptionKey
	Revised   RevisedParameters
	ItemCount int
}

// SubscriptionRegistry is the process-wide, per-Session map of active
// subscriptions. It owns their identity and lifecycle: the mapping from
// SubscriptionKey to server-assigned subscription id changes atomically
// across Recovery from the point of view of concurrent API callers.
type SubscriptionRegistry struct {
	s *Session

	mu       sync.RWMutex
	byKey    map[SubscriptionKey]*Subscription
	byServer map[uint32]SubscriptionKey

	keyCounter uint64
}

func newSubscriptionRegistry(s *Session) *SubscriptionRegistry {
	return &SubscriptionRegistry{
		s:        s,
		byKey:    make(map[SubscriptionKey]*Subscription),
		byServer: make(map[uint32]SubscriptionKey),
	}
}

func (reg *SubscriptionRegistry) nextKey() SubscriptionKey {
	n := atomic.AddUint64(&reg.keyCounter, 1)
	return SubscriptionKey(fmt.Sprintf("sub-%d", n))
}

// Create issues CreateSubscription against the Session and registers
// the resulting Subscription under a new SubscriptionKey.
func (reg *SubscriptionRegistry) Create(ctx context.Context, params SubscriptionParameters) (SubscriptionKey, error) {
	params.setDefaults()
	sub, err := newSubscription(ctx, reg.s, params, reg.s.dispatchPool)
	if err != nil {
		return "", err
	}

	key := reg.nextKey()
	sub.key = key

	reg.mu.Lock()
	reg.byKey[key] = sub
	reg.byServer[sub.SubscriptionID] = key
	reg.mu.Unlock()

	go sub.run(ctx)
	return key, nil
}

// Get returns the live Subscription for key, or ErrUnknownSubscriptionKey.
func (reg *SubscriptionRegistry) Get(key SubscriptionKey) (*Subscription, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	sub, ok := reg.byKey[key]
	if !ok {
		return nil, ErrUnknownSubscriptionKey
	}
	return sub, nil
}

// Modify sends ModifySubscription for key's current subscription.
func (reg *SubscriptionRegistry) Modify(ctx context.Context, key SubscriptionKey, params SubscriptionParameters) (ModifyResult, error) {
	sub, err := reg.Get(key)
	if err != nil {
		return ModifyResult{}, err
	}
	return sub.modify(ctx, params)
}

// Delete deletes key's subscription server-side and forgets it.
// Deleting an already-deleted key returns ErrUnknownSubscriptionKey.
func (reg *SubscriptionRegistry) Delete(ctx context.Context, key SubscriptionKey) error {
	reg.mu.Lock()
	sub, ok := reg.byKey[key]
	if !ok {
		reg.mu.Unlock()
		return ErrUnknownSubscriptionKey
	}
	delete(reg.byKey, key)
	delete(reg.byServer, sub.SubscriptionID)
	reg.mu.Unlock()

	return sub.delete(ctx)
}

// SetPublishingMode toggles key's publishing_enabled flag.
func (reg *SubscriptionRegistry) SetPublishingMode(ctx context.Context, key SubscriptionKey, enabled bool) error {
	sub, err := reg.Get(key)
	if err != nil {
		return err
	}
	return sub.setPublishingMode(ctx, enabled)
}

// AddMonitoredItem adds one MonitoredItem to key's subscription.
func (reg *SubscriptionRegistry) AddMonitoredItem(ctx context.Context, key SubscriptionKey, spec MonitoredItemSpec) (uint32, error) {
	sub, err := reg.Get(key)
	if err != nil {
		return 0, err
	}
	return sub.addMonitoredItem(ctx, spec)
}

// RemoveMonitoredItem removes a MonitoredItem by client handle.
func (reg *SubscriptionRegistry) RemoveMonitoredItem(ctx context.Context, key SubscriptionKey, clientHandle uint32) error {
	sub, err := reg.Get(key)
	if err != nil {
		return err
	}
	return sub.removeMonitoredItem(ctx, clientHandle)
}

// ModifyMonitoredItem modifies an existing MonitoredItem's sampling
// interval, queue size and filter (tri-state: see monitoreditem.go).
func (reg *SubscriptionRegistry) ModifyMonitoredItem(ctx context.Context, key SubscriptionKey, clientHandle uint32, samplingMS float64, queueSize uint32, filter FilterChange) error {
	sub, err := reg.Get(key)
	if err != nil {
		return err
	}
	return sub.modifyMonitoredItem(ctx, clientHandle, samplingMS, queueSize, filter)
}

// SetMonitoringMode sets the monitoring mode for a batch of items.
func (reg *SubscriptionRegistry) SetMonitoringMode(ctx context.Context, key SubscriptionKey, handles []uint32, mode ua.MonitoringMode) error {
	sub, err := reg.Get(key)
	if err != nil {
		return err
	}
	return sub.setMonitoringMode(ctx, handles, mode)
}

// List returns a snapshot of all live subscriptions.
func (reg *SubscriptionRegistry) List() []SubscriptionInfo {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]SubscriptionInfo, 0, len(reg.byKey))
	for key, sub := range reg.byKey {
		out = append(out, SubscriptionInfo{
			Key:       key,
			Revised:   sub.revised(),
			ItemCount: sub.itemCount(),
		})
	}
	return out
}

// --- Recovery support -------------------------------------------------

func (reg *SubscriptionRegistry) keys() []SubscriptionKey {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	keys := make([]SubscriptionKey, 0, len(reg.byKey))
	for k := range reg.byKey {
		keys = append(keys, k)
	}
	return keys
}

func (reg *SubscriptionRegistry) pauseAll(ctx context.Context) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, sub := range reg.byKey {
		sub.pause(ctx)
	}
}

func (reg *SubscriptionRegistry) resumeAll(ctx context.Context) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, sub := range reg.byKey {
		sub.resume(ctx)
	}
}

func (reg *SubscriptionRegistry) deleteAll(ctx context.Context) {
	reg.mu.Lock()
	subs := reg.byKey
	reg.byKey = make(map[SubscriptionKey]*Subscription)
	reg.byServer = make(map[uint32]SubscriptionKey)
	reg.mu.Unlock()

	for _, sub := range subs {
		sub.stopPump()
	}
}

// recover rebuilds key's subscription in place after the server
// reported its id invalid, pausing the pump for the duration and
// rebinding the key to the new server id.
func (reg *SubscriptionRegistry) recover(ctx context.Context, key SubscriptionKey) error {
	sub, err := reg.Get(key)
	if err != nil {
		return err
	}
	sub.pause(ctx)
	defer sub.resume(ctx)

	reg.mu.Lock()
	delete(reg.byServer, sub.SubscriptionID)
	reg.mu.Unlock()

	if err := sub.recreate(ctx); err != nil {
		return err
	}
	reg.mu.Lock()
	reg.byServer[sub.SubscriptionID] = key
	reg.mu.Unlock()
	return nil
}

// republish attempts to resume key's sequence stream without
// recreating the subscription, the first-line repair Recovery tries
// before falling back to restore.
func (reg *SubscriptionRegistry) republish(ctx context.Context, key SubscriptionKey) error {
	sub, err := reg.Get(key)
	if err != nil {
		return err
	}
	return sub.sendRepublishRequests(ctx)
}

// transfer asks the server to move the given subscriptions to the
// current session, returning which can be republished in place and
// which must be fully restored.
func (reg *SubscriptionRegistry) transfer(ctx context.Context, keys []SubscriptionKey) (toRepublish, toRestore []SubscriptionKey) {
	serverIDs := make([]uint32, 0, len(keys))
	idToKey := make(map[uint32]SubscriptionKey, len(keys))
	for _, key := range keys {
		sub, err := reg.Get(key)
		if err != nil {
			continue
		}
		serverIDs = append(serverIDs, sub.SubscriptionID)
		idToKey[sub.SubscriptionID] = key
	}
	if len(serverIDs) == 0 {
		return nil, nil
	}

	req := &ua.TransferSubscriptionsRequest{SubscriptionIDs: serverIDs, SendInitialValues: false}
	v, err := reg.s.Send(ctx, req)
	if err != nil {
		return nil, keys
	}
	var res *ua.TransferSubscriptionsResponse
	if err := safeAssign(v, &res); err != nil {
		return nil, keys
	}

	for i, result := range res.Results {
		key := idToKey[serverIDs[i]]
		if result.StatusCode == ua.StatusBadSubscriptionIDInvalid {
			toRestore = append(toRestore, key)
		} else {
			toRepublish = append(toRepublish, key)
		}
	}
	return toRepublish, toRestore
}

// restoreAll recreates the given subscriptions wholesale: new server
// id, same SubscriptionKey, same requested parameters and MonitoredItem
// specs re-applied in insertion order.
func (reg *SubscriptionRegistry) restoreAll(ctx context.Context, keys []SubscriptionKey) error {
	for _, key := range keys {
		sub, err := reg.Get(key)
		if err != nil {
			continue
		}
		if err := sub.recreate(ctx); err != nil {
			return err
		}
		reg.mu.Lock()
		reg.byServer[sub.SubscriptionID] = key
		reg.mu.Unlock()
	}
	return nil
}

// bindServerID maps a server-assigned subscription id to key. It has no
// caller in this package: recover and restoreAll update byServer
// directly.
func (reg *SubscriptionRegistry) bindServerID(key SubscriptionKey, serverID uint32) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.byServer[serverID] = key
}

// lookupByServerID resolves a PublishResponse's server-assigned
// SubscriptionID back to the owning Subscription.
func (reg *SubscriptionRegistry) lookupByServerID(serverID uint32) (*Subscription, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	key, ok := reg.byServer[serverID]
	if !ok {
		return nil, false
	}
	sub, ok := reg.byKey[key]
	return sub, ok
}

// all returns a snapshot of every live Subscription.
func (reg *SubscriptionRegistry) all() []*Subscription {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Subscription, 0, len(reg.byKey))
	for _, sub := range reg.byKey {
		out = append(out, sub)
	}
	return out
}
