// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"context"
	"testing"
	"time"

	"github.com/nexus-edge/opcua-client/transport/transporttest"
	"github.com/nexus-edge/opcua-client/ua"
)

// installSubscriptionHandlers registers minimal happy-path responders
// for the subscription services on fake. Publish requests block forever
// so the pump idles without failing.
func installSubscriptionHandlers(fake *transporttest.Fake) {
	fake.Handle("*ua.CreateSubscriptionRequest", func(req ua.Request) (interface{}, error) {
		r := req.(*ua.CreateSubscriptionRequest)
		return &ua.CreateSubscriptionResponse{
			SubscriptionID:            7,
			RevisedPublishingInterval: r.RequestedPublishingInterval,
			RevisedLifetimeCount:      r.RequestedLifetimeCount,
			RevisedMaxKeepAliveCount:  r.RequestedMaxKeepAliveCount,
		}, nil
	})
	fake.Handle("*ua.DeleteSubscriptionsRequest", func(req ua.Request) (interface{}, error) {
		return &ua.DeleteSubscriptionsResponse{Results: []ua.StatusCode{ua.StatusOK}}, nil
	})
	fake.Handle("*ua.PublishRequest", func(req ua.Request) (interface{}, error) {
		select {} // never answered; the pump just keeps it outstanding
	})
}

func TestRegistryDeleteTwiceReturnsUnknownKey(t *testing.T) {
	s, fake := newConnectedTestSession(t)
	installSubscriptionHandlers(fake)

	key, err := s.Subscribe(context.Background(), SubscriptionParameters{Interval: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := s.DeleteSubscription(context.Background(), key); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.DeleteSubscription(context.Background(), key); err != ErrUnknownSubscriptionKey {
		t.Fatalf("second delete: got %v want ErrUnknownSubscriptionKey", err)
	}
}

func TestRegistryListReportsRevisedParameters(t *testing.T) {
	s, fake := newConnectedTestSession(t)
	installSubscriptionHandlers(fake)

	key, err := s.Subscribe(context.Background(), SubscriptionParameters{Interval: 250 * time.Millisecond})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	subs := s.Subscriptions()
	if len(subs) != 1 {
		t.Fatalf("got %d subscriptions, want 1", len(subs))
	}
	if subs[0].Key != key {
		t.Fatalf("got key %q want %q", subs[0].Key, key)
	}
	if got, want := subs[0].Revised.PublishingInterval, 250*time.Millisecond; got != want {
		t.Fatalf("got revised interval %v want %v", got, want)
	}
	if subs[0].ItemCount != 0 {
		t.Fatalf("got %d items, want 0", subs[0].ItemCount)
	}
}

func TestRegistryOperationsOnUnknownKey(t *testing.T) {
	s, fake := newConnectedTestSession(t)
	installSubscriptionHandlers(fake)

	const key = SubscriptionKey("never-created")
	if _, err := s.ModifySubscription(context.Background(), key, SubscriptionParameters{}); err != ErrUnknownSubscriptionKey {
		t.Fatalf("modify: got %v want ErrUnknownSubscriptionKey", err)
	}
	if err := s.SetPublishingMode(context.Background(), key, false); err != ErrUnknownSubscriptionKey {
		t.Fatalf("set publishing mode: got %v want ErrUnknownSubscriptionKey", err)
	}
	if _, err := s.AddMonitoredItem(context.Background(), key, MonitoredItemSpec{}); err != ErrUnknownSubscriptionKey {
		t.Fatalf("add monitored item: got %v want ErrUnknownSubscriptionKey", err)
	}
}

func TestMonitoredItemClientHandlesNeverReused(t *testing.T) {
	s, fake := newConnectedTestSession(t)
	installSubscriptionHandlers(fake)

	var nextServerHandle uint32
	fake.Handle("*ua.CreateMonitoredItemsRequest", func(req ua.Request) (interface{}, error) {
		r := req.(*ua.CreateMonitoredItemsRequest)
		results := make([]*ua.MonitoredItemCreateResult, len(r.ItemsToCreate))
		for i, item := range r.ItemsToCreate {
			nextServerHandle++
			results[i] = &ua.MonitoredItemCreateResult{
				StatusCode:              ua.StatusOK,
				MonitoredItemID:         nextServerHandle,
				RevisedSamplingInterval: item.RequestedParameters.SamplingInterval,
				RevisedQueueSize:        item.RequestedParameters.QueueSize,
			}
		}
		return &ua.CreateMonitoredItemsResponse{Results: results}, nil
	})
	fake.Handle("*ua.DeleteMonitoredItemsRequest", func(req ua.Request) (interface{}, error) {
		return &ua.DeleteMonitoredItemsResponse{Results: []ua.StatusCode{ua.StatusOK}}, nil
	})

	key, err := s.Subscribe(context.Background(), SubscriptionParameters{Interval: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	spec := MonitoredItemSpec{NodeID: ua.NewStringNodeID(2, "Counter")}
	h1, err := s.AddMonitoredItem(context.Background(), key, spec)
	if err != nil {
		t.Fatalf("add first item: %v", err)
	}
	if err := s.RemoveMonitoredItem(context.Background(), key, h1); err != nil {
		t.Fatalf("remove first item: %v", err)
	}
	h2, err := s.AddMonitoredItem(context.Background(), key, spec)
	if err != nil {
		t.Fatalf("add second item: %v", err)
	}
	if h2 == h1 {
		t.Fatalf("client handle %d reused after unsubscribe", h2)
	}
}
