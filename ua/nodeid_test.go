// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "testing"

func TestNodeIDString(t *testing.T) {
	tests := []struct {
		n    *NodeID
		want string
	}{
		{NewTwoByteNodeID(2258), "i=2258"},
		{NewNumericNodeID(4, 85), "ns=4;i=85"},
		{NewStringNodeID(0, "Counter"), "s=Counter"},
		{NewStringNodeID(2, "Demo.Counter"), "ns=2;s=Demo.Counter"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.n.String(); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestParseNodeIDRoundTrip(t *testing.T) {
	for _, s := range []string{"i=84", "ns=1;i=12345", "s=x", "ns=2;s=Counter"} {
		t.Run(s, func(t *testing.T) {
			n, err := ParseNodeID(s)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := n.String(); got != s {
				t.Fatalf("round trip: got %q want %q", got, s)
			}
		})
	}
}

func TestParseNodeIDRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "ns=2", "ns=x;i=1", "i=notanumber", "g=whatever"} {
		t.Run(s, func(t *testing.T) {
			if _, err := ParseNodeID(s); err == nil {
				t.Fatalf("expected error for %q", s)
			}
		})
	}
}

func TestNodeIDEqualIsStructural(t *testing.T) {
	if !NewStringNodeID(2, "Counter").Equal(NewStringNodeID(2, "Counter")) {
		t.Fatal("identical string ids must be equal")
	}
	if NewStringNodeID(2, "Counter").Equal(NewStringNodeID(3, "Counter")) {
		t.Fatal("ids in different namespaces must not be equal")
	}
	if NewNumericNodeID(0, 85).Equal(NewStringNodeID(0, "85")) {
		t.Fatal("numeric and string ids must not be equal")
	}
	if NewOpaqueNodeID(1, []byte{1, 2}).Equal(NewOpaqueNodeID(1, []byte{1, 3})) {
		t.Fatal("different opaque ids must not be equal")
	}
}
