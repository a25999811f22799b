package dbprovider

import (
	"context"

	"github.com/ValentinKolb/pKV/lib/provider"
)

// --------------------------------------------------------------------------
// Single key reads
// --------------------------------------------------------------------------

// Get leaves the data slot unset if nothing is stored at the location.
func (p *DBProvider) Get(_ context.Context, pl *provider.GetPayload) (*provider.GetPayload, error) {
	value, ok, err := p.load(pl.Key)
	if err != nil || !ok {
		return pl, err
	}
	if v, found := getPath(value, pl.Path); found {
		pl.SetData(v)
	}
	return pl, nil
}

func (p *DBProvider) GetMany(_ context.Context, pl *provider.GetManyPayload) (*provider.GetManyPayload, error) {
	values := make(map[string]any, len(pl.Keys))
	for _, key := range pl.Keys {
		value, _, err := p.load(key)
		if err != nil {
			return pl, err
		}
		values[key] = value
	}
	pl.SetData(values)
	return pl, nil
}

func (p *DBProvider) Has(_ context.Context, pl *provider.HasPayload) (*provider.HasPayload, error) {
	if len(pl.Path) == 0 {
		ok, err := p.db.Has(pl.Key)
		if err != nil {
			return pl, err
		}
		pl.SetData(ok)
		return pl, nil
	}
	value, ok, err := p.load(pl.Key)
	if err != nil {
		return pl, err
	}
	if ok {
		_, ok = getPath(value, pl.Path)
	}
	pl.SetData(ok)
	return pl, nil
}

// --------------------------------------------------------------------------
// Whole store reads
// --------------------------------------------------------------------------

func (p *DBProvider) Size(_ context.Context, pl *provider.SizePayload) (*provider.SizePayload, error) {
	n, err := p.db.Size()
	if err != nil {
		return pl, err
	}
	pl.SetData(n)
	return pl, nil
}

func (p *DBProvider) Keys(_ context.Context, pl *provider.KeysPayload) (*provider.KeysPayload, error) {
	entries, err := p.all()
	if err != nil {
		return pl, err
	}
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	pl.SetData(keys)
	return pl, nil
}

func (p *DBProvider) Values(_ context.Context, pl *provider.ValuesPayload) (*provider.ValuesPayload, error) {
	entries, err := p.all()
	if err != nil {
		return pl, err
	}
	values, err := p.decodeAll(entries)
	if err != nil {
		return pl, err
	}
	pl.SetData(values)
	return pl, nil
}

func (p *DBProvider) Entries(_ context.Context, pl *provider.EntriesPayload) (*provider.EntriesPayload, error) {
	entries, err := p.all()
	if err != nil {
		return pl, err
	}
	values, err := p.decodeAll(entries)
	if err != nil {
		return pl, err
	}
	out := make(map[string]any, len(entries))
	for i, e := range entries {
		out[e.key] = values[i]
	}
	pl.SetData(out)
	return pl, nil
}

// --------------------------------------------------------------------------
// Random sampling
// --------------------------------------------------------------------------

// sample validates a random request and picks the entry indexes.
// A count below one selects a single entry.
func (p *DBProvider) sample(method provider.Method, count int, duplicates bool) ([]entry, []int, *provider.Error, error) {
	entries, err := p.all()
	if err != nil {
		return nil, nil, nil, err
	}
	if count < 1 {
		count = 1
	}
	if len(entries) == 0 {
		return nil, nil, p.MissingData(method, p.storeLocation()), nil
	}
	if !duplicates && count > len(entries) {
		return nil, nil, p.Error(method, provider.IdentifierInvalidCount, nil), nil
	}
	return entries, p.randomIndexes(len(entries), count, duplicates), nil, nil
}

func (p *DBProvider) Random(_ context.Context, pl *provider.RandomPayload) (*provider.RandomPayload, error) {
	entries, idx, perr, err := p.sample(provider.MethodRandom, pl.Count, pl.Duplicates)
	if err != nil || perr != nil {
		if perr != nil {
			pl.AddError(perr)
		}
		return pl, err
	}
	values := make([]any, len(idx))
	for i, j := range idx {
		v, err := p.codec.Decode(entries[j].raw)
		if err != nil {
			return pl, err
		}
		values[i] = v
	}
	pl.SetData(values)
	return pl, nil
}

func (p *DBProvider) RandomKey(_ context.Context, pl *provider.RandomKeyPayload) (*provider.RandomKeyPayload, error) {
	entries, idx, perr, err := p.sample(provider.MethodRandomKey, pl.Count, pl.Duplicates)
	if err != nil || perr != nil {
		if perr != nil {
			pl.AddError(perr)
		}
		return pl, err
	}
	keys := make([]string, len(idx))
	for i, j := range idx {
		keys[i] = entries[j].key
	}
	pl.SetData(keys)
	return pl, nil
}
