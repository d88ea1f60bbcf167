// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "time"

// QualifiedName is a namespace-scoped name (Part 3, 8.3).
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

// LocalizedText is a human-readable string tagged with its locale.
type LocalizedText struct {
	Locale string
	Text   string
}

// DataValue bundles a Variant with its status and source/server
// timestamps (Part 4, 7.7).
type DataValue struct {
	Value           *Variant
	Status          StatusCode
	SourceTimestamp time.Time
	ServerTimestamp time.Time
}

// AttributeID identifies which attribute of a node a Read/Write
// targets (Part 6, A.3).
type AttributeID uint32

const (
	AttributeIDNodeID AttributeID = iota + 1
	AttributeIDNodeClass
	AttributeIDBrowseName
	AttributeIDDisplayName
	AttributeIDDescription
	AttributeIDWriteMask
	AttributeIDUserWriteMask
	AttributeIDIsAbstract
	AttributeIDSymmetric
	AttributeIDInverseName
	AttributeIDContainsNoLoops
	AttributeIDEventNotifier
	AttributeIDValue
	AttributeIDDataType
	AttributeIDValueRank
	AttributeIDArrayDimensions
	AttributeIDAccessLevel
	AttributeIDUserAccessLevel
	AttributeIDMinimumSamplingInterval
	AttributeIDHistorizing
	AttributeIDExecutable
	AttributeIDUserExecutable
)

// NodeClass classifies a node in the address space (Part 3, 5.2.8).
type NodeClass uint32

const (
	NodeClassUnspecified NodeClass = 0
	NodeClassObject      NodeClass = 1
	NodeClassVariable    NodeClass = 2
	NodeClassMethod      NodeClass = 4
	NodeClassObjectType  NodeClass = 8
	NodeClassVariableType NodeClass = 16
	NodeClassReferenceType NodeClass = 32
	NodeClassDataType    NodeClass = 64
	NodeClassView        NodeClass = 128
)

// BrowseDirection controls which references Browse follows.
type BrowseDirection uint32

const (
	BrowseDirectionForward BrowseDirection = iota
	BrowseDirectionInverse
	BrowseDirectionBoth
)

// TimestampsToReturn selects which timestamps a Read/Publish response
// should populate (Part 4, 7.37).
type TimestampsToReturn uint32

const (
	TimestampsToReturnSource TimestampsToReturn = iota
	TimestampsToReturnServer
	TimestampsToReturnBoth
	TimestampsToReturnNeither
)

// MessageSecurityMode is the secure-channel security level negotiated at
// connect time (Part 4, 7.15).
type MessageSecurityMode uint32

const (
	MessageSecurityModeInvalid MessageSecurityMode = iota
	MessageSecurityModeNone
	MessageSecurityModeSign
	MessageSecurityModeSignAndEncrypt
)

// SecurityPolicyURINone is the well-known "no security" policy URI.
const SecurityPolicyURINone = "http://opcfoundation.org/UA/SecurityPolicy#None"

// FormatSecurityPolicyURI normalizes a short policy name (e.g. "None",
// "Basic256Sha256") to its full URI form. An already-qualified URI or an
// empty string is returned unchanged.
func FormatSecurityPolicyURI(policy string) string {
	if policy == "" {
		return ""
	}
	const prefix = "http://opcfoundation.org/UA/SecurityPolicy#"
	if len(policy) >= len(prefix) && policy[:len(prefix)] == prefix {
		return policy
	}
	return prefix + policy
}

// EndpointDescription describes one way to connect to a server,
// returned by GetEndpoints (Part 4, 7.10).
type EndpointDescription struct {
	EndpointURL         string
	Server              ApplicationDescription
	ServerCertificate   []byte
	SecurityMode        MessageSecurityMode
	SecurityPolicyURI   string
	UserIdentityTokens  []*UserTokenPolicy
	TransportProfileURI string
	SecurityLevel       byte
}

// ApplicationDescription describes the server application offering an
// endpoint (Part 4, 7.1).
type ApplicationDescription struct {
	ApplicationURI string
	ProductURI     string
	ApplicationName LocalizedText
}

// UserTokenType enumerates the supported authentication mechanisms
// (Part 4, 7.43).
type UserTokenType uint32

const (
	UserTokenTypeAnonymous UserTokenType = iota
	UserTokenTypeUserName
	UserTokenTypeCertificate
	UserTokenTypeIssuedToken
)

// UserTokenPolicy is one authentication option offered by an endpoint.
type UserTokenPolicy struct {
	PolicyID          string
	TokenType         UserTokenType
	IssuedTokenType   string
	IssuerEndpointURL string
	SecurityPolicyURI string
}

// SignatureData carries a signature and the algorithm used to produce
// it (Part 4, 7.36), used in both directions of session activation.
type SignatureData struct {
	Algorithm string
	Signature []byte
}

// Argument describes one formal parameter of a method, as returned by
// reading the method's InputArguments/OutputArguments property
// (Part 3, 8.6). Call reads InputArguments to learn each parameter's
// declared DataType so it can widen the caller's values to match.
type Argument struct {
	Name            string
	DataType        *NodeID
	ValueRank       int32
	ArrayDimensions []uint32
	Description     LocalizedText
}

// ExtensionObject wraps a type-specific structure with its encoding
// identifier so it can travel inside a generic field (Part 6, 5.1.5).
type ExtensionObject struct {
	TypeID       *ExpandedNodeID
	EncodingMask byte
	Value        interface{}
}

// ExtensionObjectBinary marks an ExtensionObject as binary-encoded.
const ExtensionObjectBinary byte = 1

// NewExtensionObject wraps v; the TypeID is left for the Transport to
// resolve from the concrete Go type (the core never encodes it).
func NewExtensionObject(v interface{}) *ExtensionObject {
	if v == nil {
		return nil
	}
	return &ExtensionObject{EncodingMask: ExtensionObjectBinary, Value: v}
}

// ResponseHeader is the common trailer on every OPC UA service response
// (Part 4, 7.33).
type ResponseHeader struct {
	Timestamp     time.Time
	RequestHandle uint32
	ServiceResult StatusCode
}

// RequestHeader is the common header on every OPC UA service request
// (Part 4, 7.32).
type RequestHeader struct {
	AuthenticationToken *NodeID
	Timestamp           time.Time
	RequestHandle       uint32
	TimeoutHint         uint32
}

// Request is implemented by every service request type so a Transport
// can route and tag it with an auth token independent of its concrete
// type.
type Request interface {
	Header() *RequestHeader
}
