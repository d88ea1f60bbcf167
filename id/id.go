// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package id holds the curated subset of OPC UA standard numeric node
// identifiers (namespace 0) that the client core references directly,
// e.g. to resolve the well-known Objects folder or the server's current
// time node used by KeepAlive. It deliberately does not reproduce the
// full Part 6 Annex A identifier table.
package id

const (
	// RootFolder is the root of the address space.
	RootFolder uint32 = 84
	// ObjectsFolder is the standard container for application objects.
	ObjectsFolder uint32 = 85
	// TypesFolder is the standard container for type definitions.
	TypesFolder uint32 = 86
	// ViewsFolder is the standard container for views.
	ViewsFolder uint32 = 87

	// Server is the NodeId of the Server object.
	Server uint32 = 2253
	// Server_ServerStatus is the NodeId of the Server's ServerStatus variable.
	Server_ServerStatus uint32 = 2256
	// Server_ServerStatus_State is the NodeId of ServerStatus.State, used
	// by integration tests as a known-readable node.
	Server_ServerStatus_State uint32 = 2259
	// Server_ServerStatus_CurrentTime is the NodeId KeepAlive reads on
	// every tick: a cheap, universally-present liveness probe.
	Server_ServerStatus_CurrentTime uint32 = 2258

	// ReadRawModifiedDetails_Encoding_DefaultBinary is the binary encoding
	// id for the HistoryRead raw/modified details structure.
	ReadRawModifiedDetails_Encoding_DefaultBinary uint32 = 649

	// HasComponent is the standard hierarchical reference type used by
	// most Browse calls that walk the address space structurally.
	HasComponent uint32 = 47
	// Organizes is the standard reference type linking folders to their
	// contents.
	Organizes uint32 = 35
	// HasSubtype relates a type to its supertype.
	HasSubtype uint32 = 45
	// HasProperty relates a node to its Property children, including the
	// InputArguments/OutputArguments properties on Method nodes.
	HasProperty uint32 = 46

	// Argument_Encoding_DefaultBinary is the binary encoding id for the
	// Argument structure returned by reading InputArguments/OutputArguments.
	Argument_Encoding_DefaultBinary uint32 = 298

	// The following are the DataType node ids of the builtin numeric
	// types (Part 6, Annex A), used to map a method's declared
	// InputArguments to the Go numeric type Call widens to.
	Boolean uint32 = 1
	SByte   uint32 = 2
	Byte    uint32 = 3
	Int16   uint32 = 4
	UInt16  uint32 = 5
	Int32   uint32 = 6
	UInt32  uint32 = 7
	Int64   uint32 = 8
	UInt64  uint32 = 9
	Float   uint32 = 10
	Double  uint32 = 11
	String  uint32 = 12
)
