// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "time"

// NotificationData wraps one of DataChangeNotification,
// EventNotificationList or StatusChangeNotification (Part 4, 7.20).
type NotificationData struct {
	Value interface{}
}

// NotificationMessage is the payload of a Publish response: a sequence
// number for ack bookkeeping plus a batch of NotificationData
// (Part 4, 7.21).
type NotificationMessage struct {
	SequenceNumber   uint32
	PublishTime      time.Time
	NotificationData []*NotificationData
}

// MonitoredItemNotification is one data-change entry within a
// DataChangeNotification, keyed by the client handle the item was
// created with (Part 4, 7.20.2).
type MonitoredItemNotification struct {
	ClientHandle uint32
	Value        *DataValue
}

// DataChangeNotification carries zero or more MonitoredItemNotification
// entries for a single Publish response (Part 4, 7.20.2). A single
// MonitoredItem may appear more than once; all entries MUST be
// delivered to the handler, in order.
type DataChangeNotification struct {
	MonitoredItems  []*MonitoredItemNotification
	DiagnosticInfos []interface{}
}

// EventFieldList carries the field values selected by one
// MonitoredItem's EventFilter for a single event occurrence
// (Part 4, 7.20.3).
type EventFieldList struct {
	ClientHandle uint32
	EventFields  []*Variant
}

// EventNotificationList carries zero or more EventFieldList entries for
// a single Publish response (Part 4, 7.20.3).
type EventNotificationList struct {
	Events []*EventFieldList
}

// StatusChangeNotification reports a subscription-wide status change,
// e.g. the subscription is about to be (or has been) discarded by the
// server (Part 4, 7.20.4).
type StatusChangeNotification struct {
	Status StatusCode
}
