// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// DeadbandType selects how DataChangeFilter.DeadbandValue is
// interpreted (Part 8, 6.2).
type DeadbandType uint32

const (
	DeadbandTypeNone DeadbandType = iota
	DeadbandTypeAbsolute
	DeadbandTypePercent
)

// DataChangeFilter suppresses notifications for changes smaller than a
// deadband (Part 4, 7.17.2). Wrapped in an ExtensionObject when sent as
// MonitoringParameters.Filter.
type DataChangeFilter struct {
	Trigger       DataChangeTrigger
	DeadbandType  DeadbandType
	DeadbandValue float64
}

// DataChangeTrigger controls which kinds of change produce a
// notification (Part 4, 7.17.2).
type DataChangeTrigger uint32

const (
	DataChangeTriggerStatus DataChangeTrigger = iota
	DataChangeTriggerStatusValue
	DataChangeTriggerStatusValueTimestamp
)

// SimpleAttributeOperand names one attribute of one event-type node to
// surface in an event notification (Part 4, 7.4.4.5).
type SimpleAttributeOperand struct {
	TypeDefinitionID *NodeID
	BrowsePath       []QualifiedName
	AttributeID      AttributeID
	IndexRange       string
}

// ContentFilterElement is one clause of an EventFilter's where-clause
// (Part 4, 7.4.1). The core treats it opaquely; construction is a
// caller (or Transport-helper) concern beyond equality/presence checks.
type ContentFilterElement struct {
	FilterOperator uint32
	FilterOperands []interface{}
}

// ContentFilter is an ordered list of ContentFilterElements combined by
// their operators (Part 4, 7.4.1).
type ContentFilter struct {
	Elements []*ContentFilterElement
}

// EventFilter selects which event fields to report and which events to
// admit (Part 4, 7.4.4).
type EventFilter struct {
	SelectClauses []*SimpleAttributeOperand
	WhereClause   *ContentFilter
}
