package dbprovider

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/pKV/lib/provider"
)

// predicate is a resolved Condition.
type predicate func(ctx context.Context, value any, key string) (bool, error)

// resolve turns a condition into a predicate. Value conditions are normalized once up front.
func (p *DBProvider) resolve(method provider.Method, cond provider.Condition) (predicate, *provider.Error, error) {
	switch c := cond.(type) {
	case provider.ConditionByHook:
		if c.Hook == nil {
			return nil, nil, fmt.Errorf("%s: condition of type Hook has no hook", method)
		}
		return predicate(c.Hook), nil, nil
	case provider.ConditionByValue:
		want, perr, err := p.normalizeCondition(method, c)
		if err != nil || perr != nil {
			return nil, perr, err
		}
		return func(_ context.Context, value any, _ string) (bool, error) {
			return valueMatches(value, c.Path, want), nil
		}, nil, nil
	default:
		return nil, nil, fmt.Errorf("%s: payload has no condition", method)
	}
}

// scan decodes every entry in key order and calls fn until it returns false.
func (p *DBProvider) scan(ctx context.Context, fn func(key string, value any) (bool, error)) error {
	entries, err := p.all()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, err := p.codec.Decode(e.raw)
		if err != nil {
			return err
		}
		cont, err := fn(e.key, value)
		if err != nil || !cont {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Iteration
// --------------------------------------------------------------------------

func (p *DBProvider) Each(ctx context.Context, pl *provider.EachPayload) (*provider.EachPayload, error) {
	if pl.Hook == nil {
		return pl, provider.Validate(pl)
	}
	return pl, p.scan(ctx, func(key string, value any) (bool, error) {
		return true, pl.Hook(ctx, value, key)
	})
}

// Every is true for an empty store.
func (p *DBProvider) Every(ctx context.Context, pl *provider.EveryPayload) (*provider.EveryPayload, error) {
	match, perr, err := p.resolve(provider.MethodEvery, pl.Condition)
	if err != nil || perr != nil {
		return withError(pl, perr, err)
	}
	result := true
	err = p.scan(ctx, func(key string, value any) (bool, error) {
		ok, err := match(ctx, value, key)
		if err != nil {
			return false, err
		}
		if !ok {
			result = false
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return pl, err
	}
	pl.SetData(result)
	return pl, nil
}

func (p *DBProvider) Some(ctx context.Context, pl *provider.SomePayload) (*provider.SomePayload, error) {
	match, perr, err := p.resolve(provider.MethodSome, pl.Condition)
	if err != nil || perr != nil {
		return withError(pl, perr, err)
	}
	result := false
	err = p.scan(ctx, func(key string, value any) (bool, error) {
		ok, err := match(ctx, value, key)
		if err != nil {
			return false, err
		}
		result = ok
		return !ok, nil
	})
	if err != nil {
		return pl, err
	}
	pl.SetData(result)
	return pl, nil
}

func (p *DBProvider) Filter(ctx context.Context, pl *provider.FilterPayload) (*provider.FilterPayload, error) {
	match, perr, err := p.resolve(provider.MethodFilter, pl.Condition)
	if err != nil || perr != nil {
		return withError(pl, perr, err)
	}
	out := make(map[string]any)
	err = p.scan(ctx, func(key string, value any) (bool, error) {
		ok, err := match(ctx, value, key)
		if ok {
			out[key] = value
		}
		return err == nil, err
	})
	if err != nil {
		return pl, err
	}
	pl.SetData(out)
	return pl, nil
}

// Find returns the first matching entry in key order.
func (p *DBProvider) Find(ctx context.Context, pl *provider.FindPayload) (*provider.FindPayload, error) {
	match, perr, err := p.resolve(provider.MethodFind, pl.Condition)
	if err != nil || perr != nil {
		return withError(pl, perr, err)
	}
	var found *provider.Entry
	err = p.scan(ctx, func(key string, value any) (bool, error) {
		ok, err := match(ctx, value, key)
		if err != nil {
			return false, err
		}
		if ok {
			found = &provider.Entry{Key: key, Value: value}
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return pl, err
	}
	pl.SetData(found)
	return pl, nil
}

func (p *DBProvider) Partition(ctx context.Context, pl *provider.PartitionPayload) (*provider.PartitionPayload, error) {
	match, perr, err := p.resolve(provider.MethodPartition, pl.Condition)
	if err != nil || perr != nil {
		return withError(pl, perr, err)
	}
	out := provider.Partition{Truthy: map[string]any{}, Falsy: map[string]any{}}
	err = p.scan(ctx, func(key string, value any) (bool, error) {
		ok, err := match(ctx, value, key)
		if err != nil {
			return false, err
		}
		if ok {
			out.Truthy[key] = value
		} else {
			out.Falsy[key] = value
		}
		return true, nil
	})
	if err != nil {
		return pl, err
	}
	pl.SetData(out)
	return pl, nil
}

// Map projects every value in key order. A path mapper yields nil for values without data at the path.
func (p *DBProvider) Map(ctx context.Context, pl *provider.MapPayload) (*provider.MapPayload, error) {
	var project func(ctx context.Context, value any, key string) (any, error)
	switch m := pl.Mapper.(type) {
	case provider.MapperByPath:
		project = func(_ context.Context, value any, _ string) (any, error) {
			v, _ := getPath(value, m.Path)
			return v, nil
		}
	case provider.MapperByHook:
		if m.Hook == nil {
			return pl, provider.Validate(pl)
		}
		project = m.Hook
	default:
		return pl, provider.Validate(pl)
	}

	out := []any{}
	err := p.scan(ctx, func(key string, value any) (bool, error) {
		v, err := project(ctx, value, key)
		if err != nil {
			return false, err
		}
		out = append(out, v)
		return true, nil
	})
	if err != nil {
		return pl, err
	}
	pl.SetData(out)
	return pl, nil
}

// withError records a data error on pl, or passes err through.
func withError[P provider.Payload](pl P, perr *provider.Error, err error) (P, error) {
	if perr != nil {
		pl.Base().AddError(perr)
	}
	return pl, err
}
