package provider

import "strings"

// --------------------------------------------------------------------------
// Methods
// --------------------------------------------------------------------------

// Method identifies the kind of operation a Payload describes.
type Method uint8

const (
	MethodNone Method = iota
	MethodAutoKey
	MethodClear
	MethodDec
	MethodDelete
	MethodDeleteMany
	MethodEach
	MethodEnsure
	MethodEntries
	MethodEvery
	MethodFilter
	MethodFind
	MethodGet
	MethodGetMany
	MethodHas
	MethodInc
	MethodKeys
	MethodMap
	MethodMath
	MethodPartition
	MethodPush
	MethodRandom
	MethodRandomKey
	MethodRemove
	MethodSet
	MethodSetMany
	MethodSize
	MethodSome
	MethodUpdate
	MethodValues

	methodCount // keep last
)

var methodNames = [...]string{
	MethodNone:       "none",
	MethodAutoKey:    "autoKey",
	MethodClear:      "clear",
	MethodDec:        "dec",
	MethodDelete:     "delete",
	MethodDeleteMany: "deleteMany",
	MethodEach:       "each",
	MethodEnsure:     "ensure",
	MethodEntries:    "entries",
	MethodEvery:      "every",
	MethodFilter:     "filter",
	MethodFind:       "find",
	MethodGet:        "get",
	MethodGetMany:    "getMany",
	MethodHas:        "has",
	MethodInc:        "inc",
	MethodKeys:       "keys",
	MethodMap:        "map",
	MethodMath:       "math",
	MethodPartition:  "partition",
	MethodPush:       "push",
	MethodRandom:     "random",
	MethodRandomKey:  "randomKey",
	MethodRemove:     "remove",
	MethodSet:        "set",
	MethodSetMany:    "setMany",
	MethodSize:       "size",
	MethodSome:       "some",
	MethodUpdate:     "update",
	MethodValues:     "values",
}

func (m Method) String() string {
	if m < methodCount {
		return methodNames[m]
	}
	return "unknown"
}

// ParseMethod returns the Method with the given (case-insensitive) name.
func ParseMethod(name string) (Method, bool) {
	for m := MethodAutoKey; m < methodCount; m++ {
		if strings.EqualFold(methodNames[m], name) {
			return m, true
		}
	}
	return MethodNone, false
}

// Methods returns every operation kind in declaration order.
func Methods() []Method {
	methods := make([]Method, 0, methodCount-1)
	for m := MethodAutoKey; m < methodCount; m++ {
		methods = append(methods, m)
	}
	return methods
}

// --------------------------------------------------------------------------
// Method Sets
// --------------------------------------------------------------------------

// MethodSet is a set of methods stored as bit flags.
// Multiple sets can be combined using the bitwise OR (|) operator.
type MethodSet uint64

// NewMethodSet returns a set containing the given methods.
func NewMethodSet(methods ...Method) MethodSet {
	var s MethodSet
	for _, m := range methods {
		s |= m.Set()
	}
	return s
}

// AllMethods is the set containing every operation kind.
var AllMethods = NewMethodSet(Methods()...)

// Set returns a MethodSet containing only m.
func (m Method) Set() MethodSet {
	if m == MethodNone || m >= methodCount {
		return 0
	}
	return 1 << m
}

// Has reports whether m is part of the set.
func (s MethodSet) Has(m Method) bool {
	bit := m.Set()
	return bit != 0 && s&bit == bit
}

// Methods lists the members of the set in declaration order.
func (s MethodSet) Methods() []Method {
	var methods []Method
	for _, m := range Methods() {
		if s.Has(m) {
			methods = append(methods, m)
		}
	}
	return methods
}

// --------------------------------------------------------------------------
// Triggers
// --------------------------------------------------------------------------

// Trigger marks the phase a payload is in while it flows through a middleware.
type Trigger uint8

const (
	TriggerNone         Trigger = iota // not inside a middleware
	TriggerPreProvider                 // before the provider handled the payload
	TriggerPostProvider                // after the provider handled the payload
)

func (t Trigger) String() string {
	switch t {
	case TriggerPreProvider:
		return "PreProvider"
	case TriggerPostProvider:
		return "PostProvider"
	default:
		return "None"
	}
}
