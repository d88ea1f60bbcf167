// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uatest

import (
	"context"
	"testing"

	"github.com/nexus-edge/opcua-client/id"
	"github.com/nexus-edge/opcua-client/ua"
)

// TestReadUnknowNodeID asserts that a Read result carrying
// BadDataTypeIdUnknown for one node does not poison the Session: a
// follow-up Read for a different node must still succeed.
func TestReadUnknowNodeID(t *testing.T) {
	ctx := context.Background()
	nodeWithUnknownType := ua.NewStringNodeID(2, "IntValZero")
	serverStateNode := ua.NewNumericNodeID(0, id.Server_ServerStatus_State)

	s, fake := newTestSession(t)
	fake.Handle("*ua.ReadRequest", func(req ua.Request) (interface{}, error) {
		rr := req.(*ua.ReadRequest)
		results := make([]*ua.DataValue, len(rr.NodesToRead))
		for i, rv := range rr.NodesToRead {
			switch rv.NodeID.String() {
			case nodeWithUnknownType.String():
				results[i] = &ua.DataValue{Status: ua.StatusBadDataTypeIDUnknown}
			default:
				results[i] = &ua.DataValue{Value: ua.MustVariant(int32(0)), Status: ua.StatusOK}
			}
		}
		return &ua.ReadResponse{Results: results}, nil
	})

	// read node with unknown extension object; the status is carried in
	// the result, not returned as an error.
	resp, err := s.Read(ctx, &ua.ReadRequest{
		NodesToRead: []*ua.ReadValueID{{NodeID: nodeWithUnknownType}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := resp.Results[0].Status, ua.StatusBadDataTypeIDUnknown; got != want {
		t.Errorf("got status %v want %v for a node with an unknown type", got, want)
	}

	// check that the connection is still usable by reading another node.
	if _, err := s.Read(ctx, &ua.ReadRequest{
		NodesToRead: []*ua.ReadValueID{{NodeID: serverStateNode}},
	}); err != nil {
		t.Error(err)
	}
}
