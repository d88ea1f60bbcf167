// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// CreateSubscriptionRequest asks the server to create a new
// subscription (Part 4, 5.13.2).
type CreateSubscriptionRequest struct {
	RequestHeader
	RequestedPublishingInterval float64
	RequestedLifetimeCount      uint32
	RequestedMaxKeepAliveCount  uint32
	MaxNotificationsPerPublish  uint32
	PublishingEnabled           bool
	Priority                    byte
}

func (r *CreateSubscriptionRequest) Header() *RequestHeader { return &r.RequestHeader }

type CreateSubscriptionResponse struct {
	ResponseHeader            ResponseHeader
	SubscriptionID            uint32
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32
}

type ModifySubscriptionRequest struct {
	RequestHeader
	SubscriptionID              uint32
	RequestedPublishingInterval float64
	RequestedLifetimeCount      uint32
	RequestedMaxKeepAliveCount  uint32
	MaxNotificationsPerPublish  uint32
	Priority                    byte
}

func (r *ModifySubscriptionRequest) Header() *RequestHeader { return &r.RequestHeader }

type ModifySubscriptionResponse struct {
	ResponseHeader            ResponseHeader
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32
}

type DeleteSubscriptionsRequest struct {
	RequestHeader
	SubscriptionIDs []uint32
}

func (r *DeleteSubscriptionsRequest) Header() *RequestHeader { return &r.RequestHeader }

type DeleteSubscriptionsResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

type SetPublishingModeRequest struct {
	RequestHeader
	PublishingEnabled bool
	SubscriptionIDs   []uint32
}

func (r *SetPublishingModeRequest) Header() *RequestHeader { return &r.RequestHeader }

type SetPublishingModeResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

// TransferResult reports the outcome of transferring one subscription
// to a new session during recovery (Part 4, 5.13.7).
type TransferResult struct {
	StatusCode               StatusCode
	AvailableSequenceNumbers []uint32
}

type TransferSubscriptionsRequest struct {
	RequestHeader
	SubscriptionIDs   []uint32
	SendInitialValues bool
}

func (r *TransferSubscriptionsRequest) Header() *RequestHeader { return &r.RequestHeader }

type TransferSubscriptionsResponse struct {
	ResponseHeader ResponseHeader
	Results        []*TransferResult
}

// SubscriptionAcknowledgement acknowledges receipt of a notification
// sequence number, piggy-backed on the next Publish request
// (Part 4, 5.13.5).
type SubscriptionAcknowledgement struct {
	SubscriptionID uint32
	SequenceNumber uint32
}

type PublishRequest struct {
	RequestHeader
	SubscriptionAcknowledgements []*SubscriptionAcknowledgement
}

func (r *PublishRequest) Header() *RequestHeader { return &r.RequestHeader }

type PublishResponse struct {
	ResponseHeader           ResponseHeader
	SubscriptionID           uint32
	AvailableSequenceNumbers []uint32
	MoreNotifications        bool
	NotificationMessage      *NotificationMessage
	Results                  []StatusCode
}

type RepublishRequest struct {
	RequestHeader
	SubscriptionID           uint32
	RetransmitSequenceNumber uint32
}

func (r *RepublishRequest) Header() *RequestHeader { return &r.RequestHeader }

type RepublishResponse struct {
	ResponseHeader      ResponseHeader
	NotificationMessage *NotificationMessage
}

// MonitoringMode controls whether a MonitoredItem samples, reports, or
// does neither (Part 4, 7.16).
type MonitoringMode uint32

const (
	MonitoringModeDisabled MonitoringMode = iota
	MonitoringModeSampling
	MonitoringModeReporting
)

// MonitoringParameters configures sampling/queueing for one
// MonitoredItem (Part 4, 7.19).
type MonitoringParameters struct {
	ClientHandle     uint32
	SamplingInterval float64
	Filter           *ExtensionObject
	QueueSize        uint32
	DiscardOldest    bool
}

// MonitoredItemCreateRequest requests creation of one MonitoredItem
// (Part 4, 7.18).
type MonitoredItemCreateRequest struct {
	ItemToMonitor       ReadValueID
	MonitoringMode      MonitoringMode
	RequestedParameters MonitoringParameters
}

// NewMonitoredItemCreateRequestWithDefaults builds a value-attribute
// MonitoredItemCreateRequest with QueueSize=1/DiscardOldest=true,
// the common case for scalar data-change monitoring.
func NewMonitoredItemCreateRequestWithDefaults(nodeID *NodeID, attributeID AttributeID, clientHandle uint32) *MonitoredItemCreateRequest {
	if attributeID == 0 {
		attributeID = AttributeIDValue
	}
	return &MonitoredItemCreateRequest{
		ItemToMonitor: ReadValueID{
			NodeID:      nodeID,
			AttributeID: attributeID,
		},
		MonitoringMode: MonitoringModeReporting,
		RequestedParameters: MonitoringParameters{
			ClientHandle:     clientHandle,
			SamplingInterval: 100,
			QueueSize:        1,
			DiscardOldest:    true,
		},
	}
}

type CreateMonitoredItemsRequest struct {
	RequestHeader
	SubscriptionID     uint32
	TimestampsToReturn TimestampsToReturn
	ItemsToCreate      []*MonitoredItemCreateRequest
}

func (r *CreateMonitoredItemsRequest) Header() *RequestHeader { return &r.RequestHeader }

// MonitoredItemCreateResult reports the server-assigned handle and
// revised parameters for one created item.
type MonitoredItemCreateResult struct {
	StatusCode              StatusCode
	MonitoredItemID         uint32
	RevisedSamplingInterval float64
	RevisedQueueSize        uint32
	FilterResult            *ExtensionObject
}

type CreateMonitoredItemsResponse struct {
	ResponseHeader ResponseHeader
	Results        []*MonitoredItemCreateResult
}

// MonitoredItemModifyRequest describes a modification to an existing
// MonitoredItem (Part 4, 7.17). Filter uses a tri-state convention at
// the Go API layer: nil pointer = unset (keep existing), a filter value
// wrapping a nil Value = null (clear), a filter value wrapping a
// concrete filter = new (replace). See monitoreditem.go FilterChange.
type MonitoredItemModifyRequest struct {
	MonitoredItemID     uint32
	RequestedParameters MonitoringParameters
}

type ModifyMonitoredItemsRequest struct {
	RequestHeader
	SubscriptionID     uint32
	TimestampsToReturn TimestampsToReturn
	ItemsToModify      []*MonitoredItemModifyRequest
}

func (r *ModifyMonitoredItemsRequest) Header() *RequestHeader { return &r.RequestHeader }

type MonitoredItemModifyResult struct {
	StatusCode              StatusCode
	RevisedSamplingInterval float64
	RevisedQueueSize        uint32
	FilterResult            *ExtensionObject
}

type ModifyMonitoredItemsResponse struct {
	ResponseHeader ResponseHeader
	Results        []*MonitoredItemModifyResult
}

type DeleteMonitoredItemsRequest struct {
	RequestHeader
	SubscriptionID   uint32
	MonitoredItemIDs []uint32
}

func (r *DeleteMonitoredItemsRequest) Header() *RequestHeader { return &r.RequestHeader }

type DeleteMonitoredItemsResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

type SetMonitoringModeRequest struct {
	RequestHeader
	SubscriptionID   uint32
	MonitoringMode   MonitoringMode
	MonitoredItemIDs []uint32
}

func (r *SetMonitoringModeRequest) Header() *RequestHeader { return &r.RequestHeader }

type SetMonitoringModeResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}
