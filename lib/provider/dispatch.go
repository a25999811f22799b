package provider

import (
	"context"
	"fmt"
)

// Dispatch calls the operation method of p matching the concrete type of payload.
// The returned payload is the one the provider returned.
func Dispatch(ctx context.Context, p Provider, payload Payload) (Payload, error) {
	switch pl := payload.(type) {
	case *AutoKeyPayload:
		return p.AutoKey(ctx, pl)
	case *ClearPayload:
		return p.Clear(ctx, pl)
	case *DecPayload:
		return p.Dec(ctx, pl)
	case *DeletePayload:
		return p.Delete(ctx, pl)
	case *DeleteManyPayload:
		return p.DeleteMany(ctx, pl)
	case *EachPayload:
		return p.Each(ctx, pl)
	case *EnsurePayload:
		return p.Ensure(ctx, pl)
	case *EntriesPayload:
		return p.Entries(ctx, pl)
	case *EveryPayload:
		return p.Every(ctx, pl)
	case *FilterPayload:
		return p.Filter(ctx, pl)
	case *FindPayload:
		return p.Find(ctx, pl)
	case *GetPayload:
		return p.Get(ctx, pl)
	case *GetManyPayload:
		return p.GetMany(ctx, pl)
	case *HasPayload:
		return p.Has(ctx, pl)
	case *IncPayload:
		return p.Inc(ctx, pl)
	case *KeysPayload:
		return p.Keys(ctx, pl)
	case *MapPayload:
		return p.Map(ctx, pl)
	case *MathPayload:
		return p.Math(ctx, pl)
	case *PartitionPayload:
		return p.Partition(ctx, pl)
	case *PushPayload:
		return p.Push(ctx, pl)
	case *RandomPayload:
		return p.Random(ctx, pl)
	case *RandomKeyPayload:
		return p.RandomKey(ctx, pl)
	case *RemovePayload:
		return p.Remove(ctx, pl)
	case *SetPayload:
		return p.Set(ctx, pl)
	case *SetManyPayload:
		return p.SetMany(ctx, pl)
	case *SizePayload:
		return p.Size(ctx, pl)
	case *SomePayload:
		return p.Some(ctx, pl)
	case *UpdatePayload:
		return p.Update(ctx, pl)
	case *ValuesPayload:
		return p.Values(ctx, pl)
	default:
		return payload, fmt.Errorf("dispatch: unsupported payload type %T", payload)
	}
}

// Validate checks the structural invariants of a payload that the type system cannot express:
// its envelope method matches its type and every union field holds exactly one variant.
func Validate(payload Payload) error {
	base := payload.Base()
	want := methodOf(payload)
	if want == MethodNone {
		return fmt.Errorf("validate: unsupported payload type %T", payload)
	}
	if base.Method != want {
		return fmt.Errorf("validate: %T carries method %s, expected %s", payload, base.Method, want)
	}

	var cond Condition
	switch pl := payload.(type) {
	case *EveryPayload:
		cond = pl.Condition
	case *FilterPayload:
		cond = pl.Condition
	case *FindPayload:
		cond = pl.Condition
	case *PartitionPayload:
		cond = pl.Condition
	case *SomePayload:
		cond = pl.Condition
	case *RemovePayload:
		cond = pl.Condition
	case *MapPayload:
		switch m := pl.Mapper.(type) {
		case MapperByHook:
			if m.Hook == nil {
				return fmt.Errorf("validate: %s payload of type Hook has no hook", base.Method)
			}
		case MapperByPath:
		default:
			return fmt.Errorf("validate: %s payload has no mapper", base.Method)
		}
		return nil
	case *EachPayload:
		if pl.Hook == nil {
			return fmt.Errorf("validate: %s payload has no hook", base.Method)
		}
		return nil
	case *UpdatePayload:
		if pl.Hook == nil {
			return fmt.Errorf("validate: %s payload has no hook", base.Method)
		}
		return nil
	default:
		return nil
	}

	switch c := cond.(type) {
	case ConditionByHook:
		if c.Hook == nil {
			return fmt.Errorf("validate: %s payload of type Hook has no hook", base.Method)
		}
	case ConditionByValue:
	default:
		return fmt.Errorf("validate: %s payload has no condition", base.Method)
	}
	return nil
}

func methodOf(payload Payload) Method {
	switch payload.(type) {
	case *AutoKeyPayload:
		return MethodAutoKey
	case *ClearPayload:
		return MethodClear
	case *DecPayload:
		return MethodDec
	case *DeletePayload:
		return MethodDelete
	case *DeleteManyPayload:
		return MethodDeleteMany
	case *EachPayload:
		return MethodEach
	case *EnsurePayload:
		return MethodEnsure
	case *EntriesPayload:
		return MethodEntries
	case *EveryPayload:
		return MethodEvery
	case *FilterPayload:
		return MethodFilter
	case *FindPayload:
		return MethodFind
	case *GetPayload:
		return MethodGet
	case *GetManyPayload:
		return MethodGetMany
	case *HasPayload:
		return MethodHas
	case *IncPayload:
		return MethodInc
	case *KeysPayload:
		return MethodKeys
	case *MapPayload:
		return MethodMap
	case *MathPayload:
		return MethodMath
	case *PartitionPayload:
		return MethodPartition
	case *PushPayload:
		return MethodPush
	case *RandomPayload:
		return MethodRandom
	case *RandomKeyPayload:
		return MethodRandomKey
	case *RemovePayload:
		return MethodRemove
	case *SetPayload:
		return MethodSet
	case *SetManyPayload:
		return MethodSetMany
	case *SizePayload:
		return MethodSize
	case *SomePayload:
		return MethodSome
	case *UpdatePayload:
		return MethodUpdate
	case *ValuesPayload:
		return MethodValues
	default:
		return MethodNone
	}
}
