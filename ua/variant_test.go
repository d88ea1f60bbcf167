// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"testing"

	"github.com/nexus-edge/opcua-client/id"
)

func TestWidenNumeric(t *testing.T) {
	v := MustVariant(int32(42))

	w, err := v.WidenNumeric(TypeDouble)
	if err != nil {
		t.Fatalf("widen: %v", err)
	}
	if got, want := w.Type(), TypeDouble; got != want {
		t.Fatalf("got type %v want %v", got, want)
	}
	if got, want := w.Value(), float64(42); got != want {
		t.Fatalf("got value %v want %v", got, want)
	}

	// same type comes back unchanged
	same, err := v.WidenNumeric(TypeInt32)
	if err != nil {
		t.Fatalf("widen to same type: %v", err)
	}
	if same != v {
		t.Fatal("widening to the same type must return the variant itself")
	}

	// non-numeric values cannot be widened
	if _, err := MustVariant("text").WidenNumeric(TypeDouble); err == nil {
		t.Fatal("expected error widening a string")
	}
}

func TestVariantTypeForDataType(t *testing.T) {
	vt, ok := VariantTypeForDataType(NewTwoByteNodeID(id.Double))
	if !ok || vt != TypeDouble {
		t.Fatalf("got (%v, %v) want (TypeDouble, true)", vt, ok)
	}

	// String is a builtin but not numeric-widenable
	if _, ok := VariantTypeForDataType(NewTwoByteNodeID(id.String)); ok {
		t.Fatal("String must not map to a widening target")
	}
	// non-namespace-0 types are never widened
	if _, ok := VariantTypeForDataType(NewNumericNodeID(2, id.Double)); ok {
		t.Fatal("non-namespace-0 data types must not map")
	}
	if _, ok := VariantTypeForDataType(nil); ok {
		t.Fatal("nil data type must not map")
	}
}
