package provider

import "context"

// --------------------------------------------------------------------------
// Hooks
// --------------------------------------------------------------------------

// Hook is a caller supplied callback invoked with a stored value and its key.
// Hooks may block; handlers pass their own context through.
type Hook[R any] func(ctx context.Context, value any, key string) (R, error)

// EachHook is invoked once per stored entry by an each operation.
type EachHook func(ctx context.Context, value any, key string) error

// --------------------------------------------------------------------------
// Tagged unions
// --------------------------------------------------------------------------

// PayloadType discriminates the variants of Condition and Mapper.
type PayloadType uint8

const (
	TypeHook  PayloadType = iota + 1 // the caller supplied a hook
	TypeValue                        // the caller supplied a literal comparison value
	TypePath                         // the caller supplied a path to project out of every value
)

func (t PayloadType) String() string {
	switch t {
	case TypeHook:
		return "Hook"
	case TypeValue:
		return "Value"
	case TypePath:
		return "Path"
	default:
		return "Unknown"
	}
}

// Condition is the predicate of every, filter, find, partition, some and remove.
// It is either a ConditionByHook or a ConditionByValue; handlers switch on Type (or on the
// concrete type), never on which fields happen to be set.
type Condition interface {
	Type() PayloadType
	isCondition()
}

// ConditionByHook matches values for which the hook returns true.
type ConditionByHook struct {
	Hook Hook[bool]
}

func (ConditionByHook) Type() PayloadType { return TypeHook }
func (ConditionByHook) isCondition()      {}

// ConditionByValue matches values whose data at Path equals Value.
// Value must be a primitive (nil, bool, number or string).
type ConditionByValue struct {
	Path  []string
	Value any
}

func (ConditionByValue) Type() PayloadType { return TypeValue }
func (ConditionByValue) isCondition()      {}

// Mapper is the projection of a map operation: a ByHook or a ByPath variant.
type Mapper interface {
	Type() PayloadType
	isMapper()
}

// MapperByHook maps every value to the hook's return value.
type MapperByHook struct {
	Hook Hook[any]
}

func (MapperByHook) Type() PayloadType { return TypeHook }
func (MapperByHook) isMapper()         {}

// MapperByPath maps every value to the data stored at Path inside it.
type MapperByPath struct {
	Path []string
}

func (MapperByPath) Type() PayloadType { return TypePath }
func (MapperByPath) isMapper()         {}

// ByHook builds a hook condition.
func ByHook(hook Hook[bool]) Condition { return ConditionByHook{Hook: hook} }

// ByValue builds a value condition.
func ByValue(value any, path ...string) Condition { return ConditionByValue{Path: path, Value: value} }

// MapByHook builds a hook mapper.
func MapByHook(hook Hook[any]) Mapper { return MapperByHook{Hook: hook} }

// MapByPath builds a path mapper.
func MapByPath(path ...string) Mapper { return MapperByPath{Path: path} }
