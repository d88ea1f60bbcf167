// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"context"

	"github.com/nexus-edge/opcua-client/id"
	"github.com/nexus-edge/opcua-client/ua"
)

// Node is a convenience facade bound to one NodeID and a Session,
// wrapping the common single-attribute Read and Browse patterns so
// callers don't have to build a ReadRequest by hand for one value.
type Node struct {
	ID *ua.NodeID
	s  *Session
}

func (n *Node) attribute(ctx context.Context, attr ua.AttributeID) (*ua.DataValue, error) {
	req := &ua.ReadRequest{
		NodesToRead: []*ua.ReadValueID{{NodeID: n.ID, AttributeID: attr}},
	}
	res, err := n.s.Read(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(res.Results) != 1 {
		return nil, newError(KindProtocol, "read %s: unexpected result count", n.ID)
	}
	dv := res.Results[0]
	if dv.Status.IsBad() {
		return nil, wrapError(classifyStatus(dv.Status), dv.Status, "read attribute")
	}
	return dv, nil
}

// Value reads the node's Value attribute.
func (n *Node) Value(ctx context.Context) (*ua.Variant, error) {
	dv, err := n.attribute(ctx, ua.AttributeIDValue)
	if err != nil {
		return nil, err
	}
	return dv.Value, nil
}

// AccessLevel reads the node's AccessLevel attribute.
func (n *Node) AccessLevel(ctx context.Context) (byte, error) {
	dv, err := n.attribute(ctx, ua.AttributeIDAccessLevel)
	if err != nil {
		return 0, err
	}
	return accessLevelByte(dv)
}

// UserAccessLevel reads the node's UserAccessLevel attribute.
func (n *Node) UserAccessLevel(ctx context.Context) (byte, error) {
	dv, err := n.attribute(ctx, ua.AttributeIDUserAccessLevel)
	if err != nil {
		return 0, err
	}
	return accessLevelByte(dv)
}

func accessLevelByte(dv *ua.DataValue) (byte, error) {
	if dv.Value == nil {
		return 0, nil
	}
	v, ok := dv.Value.Value().(byte)
	if !ok {
		return 0, newError(KindProtocol, "access level: unexpected type %T", dv.Value.Value())
	}
	return v, nil
}

// BrowseName reads the node's BrowseName attribute.
func (n *Node) BrowseName(ctx context.Context) (*ua.QualifiedName, error) {
	dv, err := n.attribute(ctx, ua.AttributeIDBrowseName)
	if err != nil {
		return nil, err
	}
	if dv.Value == nil {
		return nil, nil
	}
	qn, ok := dv.Value.Value().(*ua.QualifiedName)
	if !ok {
		return nil, newError(KindProtocol, "browse name: unexpected type %T", dv.Value.Value())
	}
	return qn, nil
}

// Children browses n's forward HasComponent references and returns the
// resulting Nodes.
func (n *Node) Children(ctx context.Context) ([]*Node, error) {
	req := &ua.BrowseRequest{
		NodesToBrowse: []*ua.BrowseDescription{{
			NodeID:          n.ID,
			Direction:       ua.BrowseDirectionForward,
			ReferenceTypeID: ua.NewTwoByteNodeID(id.HasComponent),
			IncludeSubtypes: true,
			ResultMask:      0x3f,
		}},
	}
	res, err := n.s.Browse(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(res.Results) != 1 {
		return nil, newError(KindProtocol, "browse %s: unexpected result count", n.ID)
	}
	if res.Results[0].StatusCode.IsBad() {
		return nil, wrapError(classifyStatus(res.Results[0].StatusCode), res.Results[0].StatusCode, "browse")
	}

	out := make([]*Node, 0, len(res.Results[0].References))
	for _, ref := range res.Results[0].References {
		out = append(out, n.s.Node(ref.NodeID.NodeID))
	}
	return out, nil
}

// TranslateBrowsePathInNamespaceToNodeID resolves a dot-separated
// browse path rooted at n, with every unqualified path element assumed
// to live in namespace ns.
func (n *Node) TranslateBrowsePathInNamespaceToNodeID(ctx context.Context, ns uint16, path string) (*ua.NodeID, error) {
	elements := splitBrowsePath(path)
	relPath := make([]*ua.RelativePathElement, len(elements))
	for i, name := range elements {
		relPath[i] = &ua.RelativePathElement{
			ReferenceTypeID: ua.NewTwoByteNodeID(id.HasComponent),
			IsInverse:       false,
			IncludeSubtypes: true,
			TargetName:      ua.QualifiedName{NamespaceIndex: ns, Name: name},
		}
	}

	req := &ua.TranslateBrowsePathsToNodeIDsRequest{
		BrowsePaths: []*ua.BrowsePath{{
			StartingNode: n.ID,
			RelativePath: &ua.RelativePath{Elements: relPath},
		}},
	}
	v, err := n.s.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	var res *ua.TranslateBrowsePathsToNodeIDsResponse
	if err := safeAssign(v, &res); err != nil {
		return nil, wrapError(KindProtocol, err, "translate browse path")
	}
	if len(res.Results) != 1 {
		return nil, newError(KindProtocol, "translate browse path: unexpected result count")
	}
	result := res.Results[0]
	if result.StatusCode.IsBad() {
		return nil, wrapError(classifyStatus(result.StatusCode), result.StatusCode, "translate browse path")
	}
	if len(result.Targets) == 0 {
		return nil, newError(KindDomain, "translate browse path: no target found for %q", path)
	}
	return result.Targets[0].TargetID.NodeID, nil
}

func splitBrowsePath(path string) []string {
	var elements []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			elements = append(elements, path[start:i])
			start = i + 1
		}
	}
	elements = append(elements, path[start:])
	return elements
}
