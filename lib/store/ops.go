package store

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/pKV/lib/provider"
)

// Typed helpers build the payload of one method, run it and unwrap its result. A data error is
// returned as the *provider.Error the provider appended, so callers can match it with errors.Is
// against provider.ErrMissingData and friends.

// run executes p and returns the payload the pipeline produced with its first data error.
func run[P provider.Payload](ctx context.Context, s *Store, p P) (P, error) {
	out, err := s.Run(ctx, p)
	if err != nil {
		return p, err
	}
	typed, ok := out.(P)
	if !ok {
		return p, fmt.Errorf("store: pipeline replaced %T with %T", p, out)
	}
	if perr := typed.Base().Err(); perr != nil {
		return typed, perr
	}
	return typed, nil
}

// --------------------------------------------------------------------------
// Single key
// --------------------------------------------------------------------------

// Get returns the value at key and path. loaded is false if nothing is stored there.
func (s *Store) Get(ctx context.Context, key string, path ...string) (value any, loaded bool, err error) {
	p, err := run(ctx, s, provider.NewGet(key, path...))
	return p.Data, p.HasData, err
}

func (s *Store) Set(ctx context.Context, key string, value any, path ...string) error {
	_, err := run(ctx, s, provider.NewSet(key, path, value))
	return err
}

func (s *Store) Delete(ctx context.Context, key string, path ...string) error {
	_, err := run(ctx, s, provider.NewDelete(key, path...))
	return err
}

func (s *Store) Has(ctx context.Context, key string, path ...string) (bool, error) {
	p, err := run(ctx, s, provider.NewHas(key, path...))
	return p.Data, err
}

func (s *Store) Inc(ctx context.Context, key string, path ...string) error {
	_, err := run(ctx, s, provider.NewInc(key, path...))
	return err
}

func (s *Store) Dec(ctx context.Context, key string, path ...string) error {
	_, err := run(ctx, s, provider.NewDec(key, path...))
	return err
}

// Math replaces the number at key and path with `number <op> operand`.
func (s *Store) Math(ctx context.Context, key string, op provider.MathOperator, operand float64, path ...string) error {
	_, err := run(ctx, s, provider.NewMath(key, path, op, operand))
	return err
}

// Push appends value to the array at key and path.
func (s *Store) Push(ctx context.Context, key string, value any, path ...string) error {
	_, err := run(ctx, s, provider.NewPush(key, path, value))
	return err
}

// Remove drops the elements of the array at key and path that match c.
func (s *Store) Remove(ctx context.Context, key string, c provider.Condition, path ...string) error {
	_, err := run(ctx, s, provider.NewRemove(key, path, c))
	return err
}

// Update replaces the value at key and path with the result of hook and returns it.
func (s *Store) Update(ctx context.Context, key string, hook provider.Hook[any], path ...string) (any, error) {
	p, err := run(ctx, s, provider.NewUpdate(key, path, hook))
	return p.Data, err
}

// Ensure stores def under key unless the key exists and returns the stored value.
func (s *Store) Ensure(ctx context.Context, key string, def any) (any, error) {
	p, err := run(ctx, s, provider.NewEnsure(key, def))
	return p.Data, err
}

// --------------------------------------------------------------------------
// Many keys
// --------------------------------------------------------------------------

// GetMany returns the values of keys; absent keys map to nil.
func (s *Store) GetMany(ctx context.Context, keys ...string) (map[string]any, error) {
	p, err := run(ctx, s, provider.NewGetMany(keys...))
	return p.Data, err
}

func (s *Store) SetMany(ctx context.Context, entries []provider.SetManyEntry, overwrite bool) error {
	_, err := run(ctx, s, provider.NewSetMany(entries, overwrite))
	return err
}

func (s *Store) DeleteMany(ctx context.Context, keys ...string) error {
	_, err := run(ctx, s, provider.NewDeleteMany(keys...))
	return err
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := run(ctx, s, provider.NewClear())
	return err
}

// AutoKey returns a key that is not in use yet.
func (s *Store) AutoKey(ctx context.Context) (string, error) {
	p, err := run(ctx, s, provider.NewAutoKey())
	return p.Data, err
}

// --------------------------------------------------------------------------
// Whole store
// --------------------------------------------------------------------------

func (s *Store) Size(ctx context.Context) (int, error) {
	p, err := run(ctx, s, provider.NewSize())
	return p.Data, err
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	p, err := run(ctx, s, provider.NewKeys())
	return p.Data, err
}

func (s *Store) Values(ctx context.Context) ([]any, error) {
	p, err := run(ctx, s, provider.NewValues())
	return p.Data, err
}

func (s *Store) Entries(ctx context.Context) (map[string]any, error) {
	p, err := run(ctx, s, provider.NewEntries())
	return p.Data, err
}

// Each calls hook for every entry in key order.
func (s *Store) Each(ctx context.Context, hook provider.EachHook) error {
	_, err := run(ctx, s, provider.NewEach(hook))
	return err
}

func (s *Store) Every(ctx context.Context, c provider.Condition) (bool, error) {
	p, err := run(ctx, s, provider.NewEvery(c))
	return p.Data, err
}

func (s *Store) Some(ctx context.Context, c provider.Condition) (bool, error) {
	p, err := run(ctx, s, provider.NewSome(c))
	return p.Data, err
}

func (s *Store) Filter(ctx context.Context, c provider.Condition) (map[string]any, error) {
	p, err := run(ctx, s, provider.NewFilter(c))
	return p.Data, err
}

// Find returns the first matching entry in key order, or nil.
func (s *Store) Find(ctx context.Context, c provider.Condition) (*provider.Entry, error) {
	p, err := run(ctx, s, provider.NewFind(c))
	return p.Data, err
}

func (s *Store) Partition(ctx context.Context, c provider.Condition) (provider.Partition, error) {
	p, err := run(ctx, s, provider.NewPartition(c))
	return p.Data, err
}

func (s *Store) Map(ctx context.Context, m provider.Mapper) ([]any, error) {
	p, err := run(ctx, s, provider.NewMap(m))
	return p.Data, err
}

// Random returns count random values, with or without duplicates.
func (s *Store) Random(ctx context.Context, count int, duplicates bool) ([]any, error) {
	p, err := run(ctx, s, provider.NewRandom(count, duplicates))
	return p.Data, err
}

// RandomKey returns count random keys, with or without duplicates.
func (s *Store) RandomKey(ctx context.Context, count int, duplicates bool) ([]string, error) {
	p, err := run(ctx, s, provider.NewRandomKey(count, duplicates))
	return p.Data, err
}
