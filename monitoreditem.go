// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"github.com/nexus-edge/opcua-client/ua"
)

// Default MonitoredItem parameters, used by MonitoredItemSpec when the
// caller leaves a field at its zero value.
const (
	DefaultMonitoredItemSamplingInterval = 100.0 // milliseconds
	DefaultMonitoredItemQueueSize        = 1
)

// NotificationSink is the polymorphic handler a MonitoredItem delivers
// notifications to. Set the field matching what the item
// monitors: DataChange for a Value/attribute item, Event for an item
// with an EventFilter. StatusChange is invoked for either kind when the
// item itself becomes invalid (e.g. its node disappears across
// Recovery). A nil field is simply not invoked.
type NotificationSink struct {
	DataChange   func(nodeID *ua.NodeID, value *ua.Variant, dv *ua.DataValue)
	Event        func(fields []*ua.Variant)
	StatusChange func(status ua.StatusCode)
}

// MonitoredItemSpec describes a MonitoredItem to create (Part 4,
// 7.18). ClientHandle is assigned by Subscription.addMonitoredItem;
// callers never set it.
type MonitoredItemSpec struct {
	NodeID           *ua.NodeID
	AttributeID      ua.AttributeID
	SamplingInterval float64
	QueueSize        uint32
	DiscardOldest    bool
	MonitoringMode   ua.MonitoringMode
	Filter           *ua.ExtensionObject
	Handler          NotificationSink
}

func (spec *MonitoredItemSpec) setDefaults() {
	if spec.AttributeID == 0 {
		spec.AttributeID = ua.AttributeIDValue
	}
	if spec.SamplingInterval == 0 {
		spec.SamplingInterval = DefaultMonitoredItemSamplingInterval
	}
	if spec.QueueSize == 0 {
		spec.QueueSize = DefaultMonitoredItemQueueSize
	}
	// The zero value of MonitoringMode is Disabled; an item is created
	// Reporting unless the caller asked for something else explicitly.
	if spec.MonitoringMode == ua.MonitoringModeDisabled {
		spec.MonitoringMode = ua.MonitoringModeReporting
	}
}

// FilterChange encodes the tri-state convention MonitoredItemModifyRequest
// documents: a zero-valued FilterChange leaves the existing filter
// alone, FilterChange{Set: true} with Value == nil clears it, and
// FilterChange{Set: true} with a non-nil Value replaces it.
type FilterChange struct {
	Set   bool
	Value *ua.ExtensionObject
}

// NoFilterChange leaves a MonitoredItem's current filter untouched.
var NoFilterChange = FilterChange{}

// ClearFilter removes a MonitoredItem's filter entirely.
func ClearFilter() FilterChange { return FilterChange{Set: true} }

// ReplaceFilter installs a new filter on a MonitoredItem.
func ReplaceFilter(v *ua.ExtensionObject) FilterChange { return FilterChange{Set: true, Value: v} }

// nullFilterMarker is the wire-level "null" sentinel ClearFilter sends:
// a present-but-empty ExtensionObject, distinct from the absent Filter
// an unset modify leaves behind. ua.NewExtensionObject(nil) collapses
// to a nil pointer, which is indistinguishable from "don't touch", so
// this marker is what makes the tri-state convention observable on
// the wire.
var nullFilterMarker = &ua.ExtensionObject{}

func (f FilterChange) apply(params *ua.MonitoringParameters) {
	if !f.Set {
		return
	}
	if f.Value == nil {
		params.Filter = nullFilterMarker
		return
	}
	params.Filter = f.Value
}

// MonitoredItem is the client-side record of one server-side monitored
// item: its client-assigned handle (stable across Recovery), the
// server-assigned handle used in DeleteMonitoredItems/ModifyMonitoredItems
// requests (not stable across a full subscription recreate), and the
// spec used to recreate it if the subscription is rebuilt.
type MonitoredItem struct {
	clientHandle uint32
	serverHandle uint32
	spec         MonitoredItemSpec
	handler      NotificationSink
	dispatcher   *itemDispatcher

	discardOldest    bool
	samplingInterval float64
	queueSize        uint32
}

func newMonitoredItem(clientHandle uint32, spec MonitoredItemSpec, pool *dispatchPool) *MonitoredItem {
	spec.setDefaults()
	return &MonitoredItem{
		clientHandle:     clientHandle,
		spec:             spec,
		handler:          spec.Handler,
		dispatcher:       newItemDispatcher(pool),
		discardOldest:    spec.DiscardOldest,
		samplingInterval: spec.SamplingInterval,
		queueSize:        spec.QueueSize,
	}
}

// deliverDataChange enqueues a DataChange callback invocation on this
// item's dispatcher, preserving delivery order relative to every other
// notification already queued for this item.
func (mi *MonitoredItem) deliverDataChange(value *ua.Variant, dv *ua.DataValue) {
	if mi.handler.DataChange == nil {
		return
	}
	mi.dispatcher.enqueue(func() { mi.handler.DataChange(mi.spec.NodeID, value, dv) })
}

func (mi *MonitoredItem) deliverEvent(fields []*ua.Variant) {
	if mi.handler.Event == nil {
		return
	}
	mi.dispatcher.enqueue(func() { mi.handler.Event(fields) })
}

func (mi *MonitoredItem) deliverStatusChange(status ua.StatusCode) {
	if mi.handler.StatusChange == nil {
		return
	}
	mi.dispatcher.enqueue(func() { mi.handler.StatusChange(status) })
}

func (mi *MonitoredItem) createRequest() *ua.MonitoredItemCreateRequest {
	return &ua.MonitoredItemCreateRequest{
		ItemToMonitor: ua.ReadValueID{
			NodeID:      mi.spec.NodeID,
			AttributeID: mi.spec.AttributeID,
		},
		MonitoringMode: mi.spec.MonitoringMode,
		RequestedParameters: ua.MonitoringParameters{
			ClientHandle:     mi.clientHandle,
			SamplingInterval: mi.samplingInterval,
			QueueSize:        mi.queueSize,
			DiscardOldest:    mi.discardOldest,
			Filter:           mi.spec.Filter,
		},
	}
}

func (mi *MonitoredItem) bind(result *ua.MonitoredItemCreateResult) {
	mi.serverHandle = result.MonitoredItemID
	mi.samplingInterval = result.RevisedSamplingInterval
	mi.queueSize = result.RevisedQueueSize
}

// ClientHandle returns the stable client-assigned handle used to key
// DataChange/Event notifications back to this item.
func (mi *MonitoredItem) ClientHandle() uint32 { return mi.clientHandle }
