package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a runtime instance of a Type. Values are immutable once produced
// except through explicit property assignment on a graph node.
type Value interface {
	String() string
	Eq(v Value) bool
}

type IntValue int64

func (v IntValue) String() string {
	return strconv.FormatInt(int64(v), 10)
}

func (v IntValue) Eq(u Value) bool {
	if w, ok := u.(IntValue); ok {
		return v == w
	}
	if w, ok := u.(NumberValue); ok {
		return NumberValue(v) == w
	}
	return false
}

type NumberValue float64

func (v NumberValue) String() string {
	return strconv.FormatFloat(float64(v), 'g', -1, 64)
}

func (v NumberValue) Eq(u Value) bool {
	if w, ok := u.(NumberValue); ok {
		return v == w
	}
	if w, ok := u.(IntValue); ok {
		return v == NumberValue(w)
	}
	return false
}

type StringValue string

func (v StringValue) String() string {
	return strconv.Quote(string(v))
}

func (v StringValue) Eq(u Value) bool {
	if w, ok := u.(StringValue); ok {
		return v == w
	}
	return false
}

type BoolValue bool

func (v BoolValue) String() string {
	if v {
		return "true"
	}
	return "false"
}

func (v BoolValue) Eq(u Value) bool {
	if w, ok := u.(BoolValue); ok {
		return v == w
	}
	return false
}

// TimeValue is a duration in milliseconds, constrained non-negative.
type TimeValue float64

func (v TimeValue) String() string {
	return strconv.FormatFloat(float64(v), 'g', -1, 64) + "ms"
}

func (v TimeValue) Eq(u Value) bool {
	if w, ok := u.(TimeValue); ok {
		return v == w
	}
	return false
}

type ListValue []Value

func (v ListValue) String() string {
	if len(v) == 0 {
		return "[]"
	}
	items := make([]string, len(v))
	for i, item := range v {
		items[i] = item.String()
	}
	return "[ " + strings.Join(items, ", ") + " ]"
}

func (v ListValue) Eq(u Value) bool {
	w, ok := u.(ListValue)
	if !ok || len(v) != len(w) {
		return false
	}
	for i, value := range v {
		if !value.Eq(w[i]) {
			return false
		}
	}
	return true
}

type EnumValue struct {
	Enum   string
	Member string
}

func (v EnumValue) String() string {
	return v.Enum + "." + v.Member
}

func (v EnumValue) Eq(u Value) bool {
	if w, ok := u.(EnumValue); ok {
		return v == w
	}
	return false
}

// NodeValue is a reference to a node in the object graph: a View, a
// primitive, or a Model instance.
type NodeValue NodeID

func (v NodeValue) String() string {
	return fmt.Sprintf("node(%d)", int(v))
}

func (v NodeValue) Eq(u Value) bool {
	if w, ok := u.(NodeValue); ok {
		return v == w
	}
	return false
}

// ScriptValue is a loaded but not yet played extension-language script.
// Semantic analysis is deferred until play time, when binding types are
// known.
type ScriptValue struct {
	Path string
	ast  []astNode
}

func (v *ScriptValue) String() string {
	return fmt.Sprintf("script(%s)", v.Path)
}

func (v *ScriptValue) Eq(u Value) bool {
	if w, ok := u.(*ScriptValue); ok {
		return v == w
	}
	return false
}
