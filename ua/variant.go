// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/nexus-edge/opcua-client/id"
)

// VariantType identifies the builtin type carried by a Variant (Part 6,
// 5.1.2). Only the subset the client core needs to widen/narrow method
// call arguments is represented.
type VariantType uint8

const (
	TypeNull VariantType = iota
	TypeBoolean
	TypeSByte
	TypeByte
	TypeInt16
	TypeUint16
	TypeInt32
	TypeUint32
	TypeInt64
	TypeUint64
	TypeFloat
	TypeDouble
	TypeString
	TypeDateTime
	TypeByteString
	TypeNodeID
	TypeExtensionObject
	TypeArgumentArray
)

// Variant is a tagged union wrapping any of the builtin OPC UA data
// types. Values are normally constructed with MustVariant/NewVariant
// rather than composite-literal syntax.
type Variant struct {
	typ   VariantType
	value interface{}
}

// NewVariant wraps v in a Variant, inferring its VariantType from its Go
// type. Returns an error for unsupported Go types.
func NewVariant(v interface{}) (*Variant, error) {
	switch x := v.(type) {
	case nil:
		return &Variant{typ: TypeNull}, nil
	case bool:
		return &Variant{typ: TypeBoolean, value: x}, nil
	case int8:
		return &Variant{typ: TypeSByte, value: x}, nil
	case byte:
		return &Variant{typ: TypeByte, value: x}, nil
	case int16:
		return &Variant{typ: TypeInt16, value: x}, nil
	case uint16:
		return &Variant{typ: TypeUint16, value: x}, nil
	case int32:
		return &Variant{typ: TypeInt32, value: x}, nil
	case uint32:
		return &Variant{typ: TypeUint32, value: x}, nil
	case int64:
		return &Variant{typ: TypeInt64, value: x}, nil
	case uint64:
		return &Variant{typ: TypeUint64, value: x}, nil
	case float32:
		return &Variant{typ: TypeFloat, value: x}, nil
	case float64:
		return &Variant{typ: TypeDouble, value: x}, nil
	case string:
		return &Variant{typ: TypeString, value: x}, nil
	case time.Time:
		return &Variant{typ: TypeDateTime, value: x}, nil
	case []byte:
		return &Variant{typ: TypeByteString, value: x}, nil
	case *NodeID:
		return &Variant{typ: TypeNodeID, value: x}, nil
	case []*Argument:
		return &Variant{typ: TypeArgumentArray, value: x}, nil
	default:
		return nil, errors.Errorf("ua: unsupported variant value type %T", v)
	}
}

// MustVariant is NewVariant but panics on error; it is meant for tests
// and static call sites where the Go type is known to be supported.
func MustVariant(v interface{}) *Variant {
	vv, err := NewVariant(v)
	if err != nil {
		panic(err)
	}
	return vv
}

// Type returns the variant's tagged type.
func (v *Variant) Type() VariantType { return v.typ }

// Value returns the underlying Go value.
func (v *Variant) Value() interface{} {
	if v == nil {
		return nil
	}
	return v.value
}

func (v *Variant) String() string {
	if v == nil || v.value == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v", v.value)
}

// WidenNumeric converts v's value to the numeric Go type matching want,
// used by Call to widen method input arguments to the declared argument
// data type (spec: automatic widening of numeric inputs).
func (v *Variant) WidenNumeric(want VariantType) (*Variant, error) {
	if v.typ == want {
		return v, nil
	}
	f, ok := toFloat64(v.value)
	if !ok {
		return nil, errors.Errorf("ua: cannot widen non-numeric variant of type %d", v.typ)
	}
	switch want {
	case TypeInt16:
		return NewVariant(int16(f))
	case TypeUint16:
		return NewVariant(uint16(f))
	case TypeInt32:
		return NewVariant(int32(f))
	case TypeUint32:
		return NewVariant(uint32(f))
	case TypeInt64:
		return NewVariant(int64(f))
	case TypeUint64:
		return NewVariant(uint64(f))
	case TypeFloat:
		return NewVariant(float32(f))
	case TypeDouble:
		return NewVariant(f)
	default:
		return nil, errors.Errorf("ua: unsupported widen target type %d", want)
	}
}

// VariantTypeForDataType maps a method argument's declared DataType node
// id to the VariantType Call should widen its supplied value to. Only
// the builtin namespace-0 numeric types are recognized; any other
// DataType (including subtypes and structures) reports ok=false and the
// argument is sent as the caller provided it.
func VariantTypeForDataType(dt *NodeID) (vt VariantType, ok bool) {
	if dt == nil || dt.Namespace() != 0 || dt.Type() != IdTypeNumeric {
		return 0, false
	}
	switch dt.IntID() {
	case id.SByte:
		return TypeSByte, true
	case id.Byte:
		return TypeByte, true
	case id.Int16:
		return TypeInt16, true
	case id.UInt16:
		return TypeUint16, true
	case id.Int32:
		return TypeInt32, true
	case id.UInt32:
		return TypeUint32, true
	case id.Int64:
		return TypeInt64, true
	case id.UInt64:
		return TypeUint64, true
	case id.Float:
		return TypeFloat, true
	case id.Double:
		return TypeDouble, true
	default:
		return 0, false
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int8:
		return float64(x), true
	case byte:
		return float64(x), true
	case int16:
		return float64(x), true
	case uint16:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
