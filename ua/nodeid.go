// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// IdType identifies the shape of a NodeID's identifier.
type IdType uint8

const (
	IdTypeNumeric IdType = iota
	IdTypeString
	IdTypeGUID
	IdTypeOpaque
)

// GUID is a 16-byte globally unique identifier in the layout OPC UA uses
// on the wire (Part 6, 5.1.3).
type GUID [16]byte

// NodeID is a tagged identifier: a namespace index plus one of a
// Numeric, String, GUID or Opaque (ByteString) identifier. Equality and
// hashing are structural, matching Part 3, 8.2.1.
type NodeID struct {
	typ    IdType
	ns     uint16
	num    uint32
	str    string
	guid   GUID
	opaque []byte
}

// NewNumericNodeID returns a NodeID with a numeric identifier.
func NewNumericNodeID(ns uint16, id uint32) *NodeID {
	return &NodeID{typ: IdTypeNumeric, ns: ns, num: id}
}

// NewTwoByteNodeID returns a numeric NodeID in namespace 0, the common
// case for standard address-space nodes such as id.ObjectsFolder.
func NewTwoByteNodeID(id uint32) *NodeID {
	return NewNumericNodeID(0, id)
}

// NewStringNodeID returns a NodeID with a string identifier.
func NewStringNodeID(ns uint16, id string) *NodeID {
	return &NodeID{typ: IdTypeString, ns: ns, str: id}
}

// NewGUIDNodeID returns a NodeID with a GUID identifier.
func NewGUIDNodeID(ns uint16, id GUID) *NodeID {
	return &NodeID{typ: IdTypeGUID, ns: ns, guid: id}
}

// NewOpaqueNodeID returns a NodeID with an opaque (ByteString) identifier.
func NewOpaqueNodeID(ns uint16, id []byte) *NodeID {
	return &NodeID{typ: IdTypeOpaque, ns: ns, opaque: append([]byte(nil), id...)}
}

func (n *NodeID) Type() IdType        { return n.typ }
func (n *NodeID) Namespace() uint16   { return n.ns }
func (n *NodeID) IntID() uint32       { return n.num }
func (n *NodeID) StringID() string    { return n.str }
func (n *NodeID) GUIDID() GUID        { return n.guid }
func (n *NodeID) ByteStringID() []byte { return n.opaque }

// Equal reports whether two NodeIDs are structurally identical.
func (n *NodeID) Equal(o *NodeID) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.typ != o.typ || n.ns != o.ns {
		return false
	}
	switch n.typ {
	case IdTypeNumeric:
		return n.num == o.num
	case IdTypeString:
		return n.str == o.str
	case IdTypeGUID:
		return n.guid == o.guid
	case IdTypeOpaque:
		return string(n.opaque) == string(o.opaque)
	}
	return false
}

// String returns the canonical string form: i=N, ns=N;i=N, ns=N;s=TEXT,
// ns=N;g=GUID or ns=N;b=base64.
func (n *NodeID) String() string {
	var id string
	switch n.typ {
	case IdTypeNumeric:
		id = fmt.Sprintf("i=%d", n.num)
	case IdTypeString:
		id = fmt.Sprintf("s=%s", n.str)
	case IdTypeGUID:
		id = fmt.Sprintf("g=%x-%x-%x-%x-%x", n.guid[0:4], n.guid[4:6], n.guid[6:8], n.guid[8:10], n.guid[10:16])
	case IdTypeOpaque:
		id = fmt.Sprintf("b=%x", n.opaque)
	}
	if n.ns == 0 {
		return id
	}
	return fmt.Sprintf("ns=%d;%s", n.ns, id)
}

// ParseNodeID parses the numeric (i=) and string (s=) forms produced by
// String, with an optional ns= prefix. GUID (g=) and opaque (b=) forms
// are rejected.
func ParseNodeID(s string) (*NodeID, error) {
	var ns uint16
	rest := s
	if strings.HasPrefix(s, "ns=") {
		parts := strings.SplitN(s, ";", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("invalid node id %q", s)
		}
		n, err := strconv.ParseUint(strings.TrimPrefix(parts[0], "ns="), 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid namespace in node id %q", s)
		}
		ns = uint16(n)
		rest = parts[1]
	}

	switch {
	case strings.HasPrefix(rest, "i="):
		v, err := strconv.ParseUint(strings.TrimPrefix(rest, "i="), 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid numeric id in node id %q", s)
		}
		return NewNumericNodeID(ns, uint32(v)), nil
	case strings.HasPrefix(rest, "s="):
		return NewStringNodeID(ns, strings.TrimPrefix(rest, "s=")), nil
	default:
		return nil, errors.Errorf("unsupported node id syntax %q", s)
	}
}

// ExpandedNodeID adds a namespace URI / server index to a NodeID, used
// when referring to nodes outside the local namespace table.
type ExpandedNodeID struct {
	NodeID       *NodeID
	NamespaceURI string
	ServerIndex  uint32
}

// NewFourByteExpandedNodeID returns an ExpandedNodeID for a local,
// numeric, namespace-0-or-above identifier.
func NewFourByteExpandedNodeID(ns uint16, id uint32) *ExpandedNodeID {
	return &ExpandedNodeID{NodeID: NewNumericNodeID(ns, id)}
}
