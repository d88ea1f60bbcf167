// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "time"

// Every *Request type below implements Request via an embedded
// RequestHeader and a Header() accessor, so the Session can attach the
// current authentication token without a type switch per service.

// GetEndpointsRequest discovers the endpoints a server offers
// (Part 4, 5.4.4).
type GetEndpointsRequest struct {
	RequestHeader
	EndpointURL string
	LocaleIDs   []string
	ProfileURIs []string
}

func (r *GetEndpointsRequest) Header() *RequestHeader { return &r.RequestHeader }

type GetEndpointsResponse struct {
	ResponseHeader ResponseHeader
	Endpoints      []*EndpointDescription
}

// CreateSessionRequest opens a new logical session on an existing
// secure channel (Part 4, 5.6.2).
type CreateSessionRequest struct {
	RequestHeader
	ClientDescription       ApplicationDescription
	EndpointURL             string
	SessionName             string
	ClientNonce             []byte
	ClientCertificate       []byte
	RequestedSessionTimeout float64
}

func (r *CreateSessionRequest) Header() *RequestHeader { return &r.RequestHeader }

type CreateSessionResponse struct {
	ResponseHeader        ResponseHeader
	SessionID             *NodeID
	AuthenticationToken   *NodeID
	RevisedSessionTimeout float64
	ServerNonce           []byte
	ServerCertificate     []byte
	ServerEndpoints       []*EndpointDescription
	ServerSignature       *SignatureData
}

// ActivateSessionRequest associates credentials with a previously
// created session (Part 4, 5.6.3).
type ActivateSessionRequest struct {
	RequestHeader
	ClientSignature            *SignatureData
	ClientSoftwareCertificates []interface{}
	LocaleIDs                  []string
	UserIdentityToken          *ExtensionObject
	UserTokenSignature         *SignatureData
}

func (r *ActivateSessionRequest) Header() *RequestHeader { return &r.RequestHeader }

type ActivateSessionResponse struct {
	ResponseHeader ResponseHeader
	ServerNonce    []byte
	Results        []StatusCode
}

// CloseSessionRequest terminates a session (Part 4, 5.6.4).
type CloseSessionRequest struct {
	RequestHeader
	DeleteSubscriptions bool
}

func (r *CloseSessionRequest) Header() *RequestHeader { return &r.RequestHeader }

type CloseSessionResponse struct {
	ResponseHeader ResponseHeader
}

// ReadValueID names one attribute of one node to read (Part 4, 7.31).
type ReadValueID struct {
	NodeID       *NodeID
	AttributeID  AttributeID
	IndexRange   string
	DataEncoding *QualifiedName
}

// ReadRequest reads one or more node attributes (Part 4, 5.10.2).
type ReadRequest struct {
	RequestHeader
	MaxAge             float64
	TimestampsToReturn TimestampsToReturn
	NodesToRead        []*ReadValueID
}

func (r *ReadRequest) Header() *RequestHeader { return &r.RequestHeader }

type ReadResponse struct {
	ResponseHeader ResponseHeader
	Results        []*DataValue
}

// WriteValue pairs a node/attribute target with the value to write
// (Part 4, 7.39).
type WriteValue struct {
	NodeID      *NodeID
	AttributeID AttributeID
	IndexRange  string
	Value       *DataValue
}

type WriteRequest struct {
	RequestHeader
	NodesToWrite []*WriteValue
}

func (r *WriteRequest) Header() *RequestHeader { return &r.RequestHeader }

type WriteResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

// BrowseDescription names the starting node and the filtering options
// for one Browse operation (Part 4, 7.4).
type BrowseDescription struct {
	NodeID          *NodeID
	Direction       BrowseDirection
	ReferenceTypeID *NodeID
	IncludeSubtypes bool
	NodeClassMask   NodeClass
	ResultMask      uint32
}

type BrowseRequest struct {
	RequestHeader
	View                          *NodeID
	RequestedMaxReferencesPerNode uint32
	NodesToBrowse                 []*BrowseDescription
}

func (r *BrowseRequest) Header() *RequestHeader { return &r.RequestHeader }

// ReferenceDescription is one edge returned by Browse (Part 4, 7.30).
type ReferenceDescription struct {
	ReferenceTypeID *NodeID
	IsForward       bool
	NodeID          *ExpandedNodeID
	BrowseName      QualifiedName
	DisplayName     LocalizedText
	NodeClass       NodeClass
	TypeDefinition  *ExpandedNodeID
}

// BrowseResult is the outcome of browsing a single node, including a
// continuation point when the result set was truncated.
type BrowseResult struct {
	StatusCode        StatusCode
	ContinuationPoint []byte
	References        []*ReferenceDescription
}

type BrowseResponse struct {
	ResponseHeader ResponseHeader
	Results        []*BrowseResult
}

type BrowseNextRequest struct {
	RequestHeader
	ReleaseContinuationPoints bool
	ContinuationPoints        [][]byte
}

func (r *BrowseNextRequest) Header() *RequestHeader { return &r.RequestHeader }

type BrowseNextResponse struct {
	ResponseHeader ResponseHeader
	Results        []*BrowseResult
}

// RelativePathElement names one hop of a browse path by reference type
// and target browse name (Part 4, 7.29).
type RelativePathElement struct {
	ReferenceTypeID *NodeID
	IsInverse       bool
	IncludeSubtypes bool
	TargetName      QualifiedName
}

// RelativePath is an ordered sequence of RelativePathElements.
type RelativePath struct {
	Elements []*RelativePathElement
}

// BrowsePath asks TranslateBrowsePathsToNodeIDs to resolve a
// RelativePath rooted at StartingNode (Part 4, 5.8.4).
type BrowsePath struct {
	StartingNode *NodeID
	RelativePath *RelativePath
}

// BrowsePathTarget is one resolved node along a BrowsePath.
type BrowsePathTarget struct {
	TargetID           *ExpandedNodeID
	RemainingPathIndex uint32
}

// BrowsePathResult reports the outcome of resolving one BrowsePath.
type BrowsePathResult struct {
	StatusCode StatusCode
	Targets    []*BrowsePathTarget
}

type TranslateBrowsePathsToNodeIDsRequest struct {
	RequestHeader
	BrowsePaths []*BrowsePath
}

func (r *TranslateBrowsePathsToNodeIDsRequest) Header() *RequestHeader { return &r.RequestHeader }

type TranslateBrowsePathsToNodeIDsResponse struct {
	ResponseHeader ResponseHeader
	Results        []*BrowsePathResult
}

// CallMethodRequest invokes one method on the server (Part 4, 5.11.2).
type CallMethodRequest struct {
	ObjectID       *NodeID
	MethodID       *NodeID
	InputArguments []*Variant
}

type CallRequest struct {
	RequestHeader
	MethodsToCall []*CallMethodRequest
}

func (r *CallRequest) Header() *RequestHeader { return &r.RequestHeader }

// CallMethodResult carries the outcome of one CallMethodRequest.
type CallMethodResult struct {
	StatusCode           StatusCode
	InputArgumentResults []StatusCode
	OutputArguments      []*Variant
}

type CallResponse struct {
	ResponseHeader ResponseHeader
	Results        []*CallMethodResult
}

type RegisterNodesRequest struct {
	RequestHeader
	NodesToRegister []*NodeID
}

func (r *RegisterNodesRequest) Header() *RequestHeader { return &r.RequestHeader }

type RegisterNodesResponse struct {
	ResponseHeader    ResponseHeader
	RegisteredNodeIDs []*NodeID
}

type UnregisterNodesRequest struct {
	RequestHeader
	NodesToUnregister []*NodeID
}

func (r *UnregisterNodesRequest) Header() *RequestHeader { return &r.RequestHeader }

type UnregisterNodesResponse struct {
	ResponseHeader ResponseHeader
}

// HistoryReadValueID names the node to read history for.
type HistoryReadValueID struct {
	NodeID            *NodeID
	IndexRange        string
	DataEncoding      *QualifiedName
	ContinuationPoint []byte
}

// ReadRawModifiedDetails selects the raw-value history read mode
// (Part 11, 6.4.3).
type ReadRawModifiedDetails struct {
	IsReadModified   bool
	StartTime        time.Time
	EndTime          time.Time
	NumValuesPerNode uint32
	ReturnBounds     bool
}

type HistoryReadRequest struct {
	RequestHeader
	HistoryReadDetails        *ExtensionObject
	TimestampsToReturn        TimestampsToReturn
	ReleaseContinuationPoints bool
	NodesToRead               []*HistoryReadValueID
}

func (r *HistoryReadRequest) Header() *RequestHeader { return &r.RequestHeader }

// HistoryData carries the raw values returned for one node.
type HistoryData struct {
	DataValues []*DataValue
}

type HistoryReadResult struct {
	StatusCode        StatusCode
	ContinuationPoint []byte
	HistoryData       *HistoryData
}

type HistoryReadResponse struct {
	ResponseHeader ResponseHeader
	Results        []*HistoryReadResult
}
