package dbprovider

import (
	"context"
	"math"
	"reflect"
	"strconv"

	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Write helpers
// --------------------------------------------------------------------------

// modifyAt atomically replaces the value stored at kp with fn's result.
// An absent key or path is reported as MissingData.
func (p *DBProvider) modifyAt(method provider.Method, kp provider.KeyPath, fn func(cur any) (any, *provider.Error)) (any, *provider.Error, error) {
	return p.mutate(kp.Key, func(value any, loaded bool) (any, bool, *provider.Error) {
		if !loaded {
			return nil, false, p.MissingData(method, kp)
		}
		cur, ok := getPath(value, kp.Path)
		if !ok {
			return nil, false, p.MissingData(method, kp)
		}
		next, perr := fn(cur)
		if perr != nil {
			return nil, false, perr
		}
		root, ok := setPath(value, kp.Path, next)
		if !ok {
			return nil, false, p.InvalidDataType(method, kp, "object")
		}
		return root, true, nil
	})
}

// number converts a decoded value to float64.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// --------------------------------------------------------------------------
// Set / Delete
// --------------------------------------------------------------------------

func (p *DBProvider) Set(_ context.Context, pl *provider.SetPayload) (*provider.SetPayload, error) {
	value, err := provider.Normalize(p.codec, pl.Value)
	if err != nil {
		return pl, err
	}
	_, perr, err := p.mutate(pl.Key, func(root any, _ bool) (any, bool, *provider.Error) {
		next, ok := setPath(root, pl.Path, value)
		if !ok {
			return nil, false, p.InvalidDataType(provider.MethodSet, pl.KeyPath, "object")
		}
		return next, true, nil
	})
	if perr != nil {
		pl.AddError(perr)
	}
	return pl, err
}

// SetMany writes every entry in order. Entries whose location already holds data are skipped
// unless Overwrite is set. The first data error stops the remaining writes.
func (p *DBProvider) SetMany(_ context.Context, pl *provider.SetManyPayload) (*provider.SetManyPayload, error) {
	for _, e := range pl.Entries {
		value, err := provider.Normalize(p.codec, e.Value)
		if err != nil {
			return pl, err
		}
		_, perr, err := p.mutate(e.Key, func(root any, loaded bool) (any, bool, *provider.Error) {
			if loaded && !pl.Overwrite {
				if _, exists := getPath(root, e.Path); exists {
					return nil, false, nil
				}
			}
			next, ok := setPath(root, e.Path, value)
			if !ok {
				return nil, false, p.InvalidDataType(provider.MethodSetMany, e.KeyPath, "object")
			}
			return next, true, nil
		})
		if err != nil {
			return pl, err
		}
		if perr != nil {
			pl.AddError(perr)
			return pl, nil
		}
	}
	return pl, nil
}

// Delete removes a key, or the data at a path inside it. Deleting an absent location is a no-op.
func (p *DBProvider) Delete(_ context.Context, pl *provider.DeletePayload) (*provider.DeletePayload, error) {
	if len(pl.Path) == 0 {
		return pl, p.db.Delete(pl.Key)
	}
	_, _, err := p.mutate(pl.Key, func(root any, loaded bool) (any, bool, *provider.Error) {
		if !loaded {
			return nil, false, nil
		}
		next, found := deletePath(root, pl.Path)
		return next, found, nil
	})
	return pl, err
}

func (p *DBProvider) DeleteMany(_ context.Context, pl *provider.DeleteManyPayload) (*provider.DeleteManyPayload, error) {
	for _, key := range pl.Keys {
		if err := p.db.Delete(key); err != nil {
			return pl, err
		}
	}
	return pl, nil
}

func (p *DBProvider) Clear(_ context.Context, pl *provider.ClearPayload) (*provider.ClearPayload, error) {
	return pl, p.db.Clear()
}

// --------------------------------------------------------------------------
// Arithmetic
// --------------------------------------------------------------------------

func (p *DBProvider) Inc(_ context.Context, pl *provider.IncPayload) (*provider.IncPayload, error) {
	perr, err := p.applyMath(provider.MethodInc, pl.KeyPath, provider.OperatorAddition, 1)
	if perr != nil {
		pl.AddError(perr)
	}
	return pl, err
}

func (p *DBProvider) Dec(_ context.Context, pl *provider.DecPayload) (*provider.DecPayload, error) {
	perr, err := p.applyMath(provider.MethodDec, pl.KeyPath, provider.OperatorSubtraction, 1)
	if perr != nil {
		pl.AddError(perr)
	}
	return pl, err
}

func (p *DBProvider) Math(_ context.Context, pl *provider.MathPayload) (*provider.MathPayload, error) {
	perr, err := p.applyMath(provider.MethodMath, pl.KeyPath, pl.Operator, pl.Operand)
	if perr != nil {
		pl.AddError(perr)
	}
	return pl, err
}

// applyMath replaces the number at kp with `number <op> operand`.
// Results that are not finite (division by zero, ...) are rejected with InvalidValueType.
func (p *DBProvider) applyMath(method provider.Method, kp provider.KeyPath, op provider.MathOperator, operand float64) (*provider.Error, error) {
	_, perr, err := p.modifyAt(method, kp, func(cur any) (any, *provider.Error) {
		n, ok := number(cur)
		if !ok {
			return nil, p.InvalidDataType(method, kp, "number")
		}
		res := provider.ApplyOperator(op, n, operand)
		if math.IsNaN(res) || math.IsInf(res, 0) {
			return nil, p.Error(method, provider.IdentifierInvalidValueType, map[string]any{
				"type": "number", "key": kp.Key, "path": kp.Path,
			})
		}
		return res, nil
	})
	return perr, err
}

// --------------------------------------------------------------------------
// Arrays
// --------------------------------------------------------------------------

func (p *DBProvider) Push(_ context.Context, pl *provider.PushPayload) (*provider.PushPayload, error) {
	value, err := provider.Normalize(p.codec, pl.Value)
	if err != nil {
		return pl, err
	}
	_, perr, err := p.modifyAt(provider.MethodPush, pl.KeyPath, func(cur any) (any, *provider.Error) {
		arr, ok := cur.([]any)
		if !ok {
			return nil, p.InvalidDataType(provider.MethodPush, pl.KeyPath, "array")
		}
		return append(arr, value), nil
	})
	if perr != nil {
		pl.AddError(perr)
	}
	return pl, err
}

// Remove drops every element of the array at the payload location that matches the condition.
// Value conditions are evaluated inside the atomic update, hook conditions optimistically.
func (p *DBProvider) Remove(ctx context.Context, pl *provider.RemovePayload) (*provider.RemovePayload, error) {
	if err := provider.Validate(pl); err != nil {
		return pl, err
	}
	switch c := pl.Condition.(type) {
	case provider.ConditionByValue:
		want, perr, err := p.normalizeCondition(provider.MethodRemove, c)
		if err != nil || perr != nil {
			if perr != nil {
				pl.AddError(perr)
			}
			return pl, err
		}
		_, perr, err = p.modifyAt(provider.MethodRemove, pl.KeyPath, func(cur any) (any, *provider.Error) {
			arr, ok := cur.([]any)
			if !ok {
				return nil, p.InvalidDataType(provider.MethodRemove, pl.KeyPath, "array")
			}
			kept := make([]any, 0, len(arr))
			for _, el := range arr {
				if !valueMatches(el, c.Path, want) {
					kept = append(kept, el)
				}
			}
			return kept, nil
		})
		if perr != nil {
			pl.AddError(perr)
		}
		return pl, err

	case provider.ConditionByHook:
		_, perr, err := p.mutateWithHooks(ctx, pl.Key, func(root any, loaded bool) (any, bool, *provider.Error, error) {
			if !loaded {
				return nil, false, p.MissingData(provider.MethodRemove, pl.KeyPath), nil
			}
			cur, ok := getPath(root, pl.Path)
			if !ok {
				return nil, false, p.MissingData(provider.MethodRemove, pl.KeyPath), nil
			}
			arr, ok := cur.([]any)
			if !ok {
				return nil, false, p.InvalidDataType(provider.MethodRemove, pl.KeyPath, "array"), nil
			}
			kept := make([]any, 0, len(arr))
			for _, el := range arr {
				match, err := c.Hook(ctx, el, pl.Key)
				if err != nil {
					return nil, false, nil, err
				}
				if !match {
					kept = append(kept, el)
				}
			}
			if len(kept) == len(arr) {
				return root, false, nil, nil
			}
			next, _ := setPath(root, pl.Path, kept)
			return next, true, nil, nil
		})
		if perr != nil {
			pl.AddError(perr)
		}
		return pl, err
	}
	return pl, nil
}

// valueMatches reports whether the data at path inside v equals want.
func valueMatches(v any, path []string, want any) bool {
	got, ok := getPath(v, path)
	return ok && reflect.DeepEqual(got, want)
}

// --------------------------------------------------------------------------
// Update / Ensure
// --------------------------------------------------------------------------

// Update replaces the value at the payload location with the hook's result. The hook runs outside
// the engine lock; if the key changed meanwhile the hook is called again with the new value.
func (p *DBProvider) Update(ctx context.Context, pl *provider.UpdatePayload) (*provider.UpdatePayload, error) {
	var result any
	_, perr, err := p.mutateWithHooks(ctx, pl.Key, func(root any, loaded bool) (any, bool, *provider.Error, error) {
		if !loaded {
			return nil, false, p.MissingData(provider.MethodUpdate, pl.KeyPath), nil
		}
		cur, ok := getPath(root, pl.Path)
		if !ok {
			return nil, false, p.MissingData(provider.MethodUpdate, pl.KeyPath), nil
		}
		updated, err := pl.Hook(ctx, cur, pl.Key)
		if err != nil {
			return nil, false, nil, err
		}
		if updated, err = provider.Normalize(p.codec, updated); err != nil {
			return nil, false, nil, err
		}
		next, ok := setPath(root, pl.Path, updated)
		if !ok {
			return nil, false, p.InvalidDataType(provider.MethodUpdate, pl.KeyPath, "object"), nil
		}
		result = updated
		return next, true, nil, nil
	})
	switch {
	case err != nil:
		return pl, err
	case perr != nil:
		pl.AddError(perr)
	default:
		pl.SetData(result)
	}
	return pl, nil
}

// Ensure returns the stored value of the key, storing the default value first if it is absent.
func (p *DBProvider) Ensure(_ context.Context, pl *provider.EnsurePayload) (*provider.EnsurePayload, error) {
	if pl.DefaultValue == nil {
		pl.AddError(p.Error(provider.MethodEnsure, provider.IdentifierMissingValue, map[string]any{"key": pl.Key}))
		return pl, nil
	}
	def, err := provider.Normalize(p.codec, pl.DefaultValue)
	if err != nil {
		return pl, err
	}
	created := false
	value, _, err := p.mutate(pl.Key, func(stored any, loaded bool) (any, bool, *provider.Error) {
		created = !loaded
		if loaded {
			return stored, false, nil
		}
		return def, true, nil
	})
	if err != nil {
		return pl, err
	}
	pl.Created = created
	pl.SetData(value)
	return pl, nil
}

// --------------------------------------------------------------------------
// Auto keys
// --------------------------------------------------------------------------

// AutoKey returns a key that is not in use yet. It does not store anything under the key.
func (p *DBProvider) AutoKey(ctx context.Context, pl *provider.AutoKeyPayload) (*provider.AutoKeyPayload, error) {
	if p.autoKey == AutoKeyUUID {
		pl.SetData(uuid.NewString())
		return pl, nil
	}

	p.autoKeyMu.Lock()
	defer p.autoKeyMu.Unlock()

	var count uint64
	raw, ok, err := p.GetMetadata(ctx, MetaAutoKeyCount)
	if err != nil {
		return pl, err
	}
	if ok {
		if n, isNum := number(raw); isNum && n > 0 {
			count = uint64(n)
		}
	}

	for {
		count++
		key := strconv.FormatUint(count, 10)
		exists, err := p.db.Has(key)
		if err != nil {
			return pl, err
		}
		if exists {
			continue
		}
		if err := p.SetMetadata(ctx, MetaAutoKeyCount, count); err != nil {
			return pl, err
		}
		pl.SetData(key)
		return pl, nil
	}
}
