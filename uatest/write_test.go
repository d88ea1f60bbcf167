// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uatest

import (
	"context"
	"testing"

	"github.com/nexus-edge/opcua-client"
	"github.com/nexus-edge/opcua-client/ua"
)

// TestWrite exercises Session.Write/Session.Read against a scripted
// in-memory server that tracks written values per node, including a
// read-only node that always rejects writes.
func TestWrite(t *testing.T) {
	tests := []struct {
		id     *ua.NodeID
		v      interface{}
		status ua.StatusCode
	}{
		// happy flows
		{ua.NewStringNodeID(2, "rw_bool"), false, ua.StatusOK},
		{ua.NewStringNodeID(2, "rw_int32"), int32(9), ua.StatusOK},

		// error flows
		{ua.NewStringNodeID(2, "ro_bool"), false, ua.StatusBadUserAccessDenied},
	}

	ctx := context.Background()
	store := make(map[string]*ua.Variant)

	s, fake := newTestSession(t)
	fake.Handle("*ua.WriteRequest", func(req ua.Request) (interface{}, error) {
		wr := req.(*ua.WriteRequest)
		results := make([]ua.StatusCode, len(wr.NodesToWrite))
		for i, wv := range wr.NodesToWrite {
			if wv.NodeID.String() == ua.NewStringNodeID(2, "ro_bool").String() {
				results[i] = ua.StatusBadUserAccessDenied
				continue
			}
			store[wv.NodeID.String()] = wv.Value.Value
			results[i] = ua.StatusOK
		}
		return &ua.WriteResponse{Results: results}, nil
	})
	fake.Handle("*ua.ReadRequest", func(req ua.Request) (interface{}, error) {
		rr := req.(*ua.ReadRequest)
		results := make([]*ua.DataValue, len(rr.NodesToRead))
		for i, rv := range rr.NodesToRead {
			v, ok := store[rv.NodeID.String()]
			if !ok {
				results[i] = &ua.DataValue{Status: ua.StatusBadNodeIDUnknown}
				continue
			}
			results[i] = &ua.DataValue{Value: v, Status: ua.StatusOK}
		}
		return &ua.ReadResponse{Results: results}, nil
	})

	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			testWrite(t, ctx, s, tt.status, &ua.WriteRequest{
				NodesToWrite: []*ua.WriteValue{{
					NodeID:      tt.id,
					AttributeID: ua.AttributeIDValue,
					Value: &ua.DataValue{
						Value: ua.MustVariant(tt.v),
					},
				}},
			})

			// skip read tests if the write is expected to fail
			if tt.status != ua.StatusOK {
				return
			}

			testRead(t, ctx, s, tt.v, tt.id)
		})
	}
}

func testWrite(t *testing.T, ctx context.Context, s *opcua.Session, status ua.StatusCode, req *ua.WriteRequest) {
	t.Helper()

	resp, err := s.Write(ctx, req)
	if err != nil {
		t.Fatalf("Write failed: %s", err)
	}
	if got, want := resp.Results[0], status; got != want {
		t.Fatalf("got status %v want %v", got, want)
	}
}
