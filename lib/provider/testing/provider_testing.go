package testing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// ProviderFactory creates a new, uninitialized provider backed by empty storage.
// Resources should be released with t.Cleanup.
type ProviderFactory func(t testing.TB) provider.Provider

// RunProviderTests runs the conformance suite for a provider implementation.
func RunProviderTests(t *testing.T, name string, factory ProviderFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Init", func(t *testing.T) {
			testInit(t, factory)
		})

		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, initialized(t, factory))
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, initialized(t, factory))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, initialized(t, factory))
		})

		t.Run("ManyKeys", func(t *testing.T) {
			testManyKeys(t, initialized(t, factory))
		})

		t.Run("Math", func(t *testing.T) {
			testMath(t, initialized(t, factory))
		})

		t.Run("Push&Remove", func(t *testing.T) {
			testPushRemove(t, initialized(t, factory))
		})

		t.Run("Update", func(t *testing.T) {
			testUpdate(t, initialized(t, factory))
		})

		t.Run("Ensure", func(t *testing.T) {
			testEnsure(t, initialized(t, factory))
		})

		t.Run("Listing", func(t *testing.T) {
			testListing(t, initialized(t, factory))
		})

		t.Run("Predicates", func(t *testing.T) {
			testPredicates(t, initialized(t, factory))
		})

		t.Run("Map&Each", func(t *testing.T) {
			testMapEach(t, initialized(t, factory))
		})

		t.Run("Random", func(t *testing.T) {
			testRandom(t, initialized(t, factory))
		})

		t.Run("AutoKey", func(t *testing.T) {
			testAutoKey(t, initialized(t, factory))
		})

		t.Run("Metadata", func(t *testing.T) {
			testMetadata(t, initialized(t, factory))
		})

		t.Run("HookErrors", func(t *testing.T) {
			testHookErrors(t, initialized(t, factory))
		})

		t.Run("ConcurrentMutations", func(t *testing.T) {
			testConcurrentMutations(t, initialized(t, factory))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

var ctx = context.Background()

func initialized(t *testing.T, factory ProviderFactory) provider.Provider {
	t.Helper()
	p := factory(t)
	if _, err := p.Init(ctx, provider.Context{Name: "test"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return p
}

// norm brings expected values into the shape decoded values have (numbers become float64).
func norm(t testing.TB, v any) any {
	t.Helper()
	n, err := provider.Normalize(provider.NewJSONCodec(), v)
	if err != nil {
		t.Fatalf("normalize %v: %v", v, err)
	}
	return n
}

// run dispatches pl and fails on infrastructure errors.
func run[P provider.Payload](t testing.TB, p provider.Provider, pl P) P {
	t.Helper()
	out, err := provider.Dispatch(ctx, p, pl)
	if err != nil {
		t.Fatalf("%s failed: %v", pl.Base().Method, err)
	}
	res, ok := out.(P)
	if !ok {
		t.Fatalf("%s returned %T, expected %T", pl.Base().Method, out, pl)
	}
	return res
}

// ok dispatches pl and fails if a data error was reported.
func ok[P provider.Payload](t testing.TB, p provider.Provider, pl P) P {
	t.Helper()
	res := run(t, p, pl)
	if err := res.Base().Err(); err != nil {
		t.Fatalf("%s reported an unexpected error: %v", pl.Base().Method, err)
	}
	return res
}

// failsWith dispatches pl and requires exactly one data error with the given identifier.
func failsWith[P provider.Payload](t testing.TB, p provider.Provider, pl P, identifier string) *provider.Error {
	t.Helper()
	res := run(t, p, pl)
	errs := res.Base().Errors
	if len(errs) != 1 {
		t.Fatalf("%s: expected exactly one %s error, got %v", pl.Base().Method, identifier, errs)
	}
	if errs[0].Identifier != identifier {
		t.Fatalf("%s: expected identifier %s, got %s (%v)", pl.Base().Method, identifier, errs[0].Identifier, errs[0])
	}
	if errs[0].Method != pl.Base().Method {
		t.Errorf("%s: error carries method %s", pl.Base().Method, errs[0].Method)
	}
	if errs[0].Kind != provider.KindProvider {
		t.Errorf("%s: error carries kind %s", pl.Base().Method, errs[0].Kind)
	}
	return errs[0]
}

func set(t testing.TB, p provider.Provider, key string, value any) {
	t.Helper()
	ok(t, p, provider.NewSet(key, nil, value))
}

func get(t testing.TB, p provider.Provider, key string, path ...string) (any, bool) {
	t.Helper()
	res := ok(t, p, provider.NewGet(key, path...))
	return res.Data, res.HasData
}

func diff(t testing.TB, what string, want, got any, opts ...cmp.Option) {
	t.Helper()
	if d := cmp.Diff(want, got, opts...); d != "" {
		t.Errorf("%s mismatch (-want +got):\n%s", what, d)
	}
}

var sortStrings = cmpopts.SortSlices(func(a, b string) bool { return a < b })

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInit(t *testing.T, factory ProviderFactory) {
	p := factory(t)
	pc := provider.Context{Name: "init"}
	got, err := p.Init(ctx, pc)
	if err != nil {
		t.Fatalf("Init of an empty store failed: %v", err)
	}
	diff(t, "context", pc, got)

	if p.Name() == "" {
		t.Error("provider has no name")
	}
	if p.Version() == (provider.Semver{}) {
		t.Error("provider declares version 0.0.0")
	}
}

func testSetGet(t *testing.T, p provider.Provider) {
	set(t, p, "user", map[string]any{"name": "alice", "tags": []any{"a", "b"}, "age": 30})

	v, found := get(t, p, "user")
	if !found {
		t.Fatal("stored value not found")
	}
	diff(t, "value", norm(t, map[string]any{"name": "alice", "tags": []any{"a", "b"}, "age": 30}), v)

	v, _ = get(t, p, "user", "name")
	diff(t, "nested value", "alice", v)
	v, _ = get(t, p, "user", "tags", "1")
	diff(t, "array element", "b", v)

	// absent locations are not an error
	if _, found := get(t, p, "missing"); found {
		t.Error("absent key returned data")
	}
	if _, found := get(t, p, "user", "address", "city"); found {
		t.Error("absent path returned data")
	}

	// nested writes create intermediate objects
	ok(t, p, provider.NewSet("user", []string{"address", "city"}, "Ulm"))
	v, _ = get(t, p, "user", "address", "city")
	diff(t, "created nested value", "Ulm", v)

	ok(t, p, provider.NewSet("fresh", []string{"a", "b"}, 1))
	v, _ = get(t, p, "fresh")
	diff(t, "created root", norm(t, map[string]any{"a": map[string]any{"b": 1}}), v)

	// writing below a primitive is a type error
	err := failsWith(t, p, provider.NewSet("user", []string{"name", "first"}, "x"), provider.IdentifierInvalidDataType)
	if !errors.Is(err, provider.ErrInvalidDataType) {
		t.Error("error does not match ErrInvalidDataType")
	}

	// array writes address an element or append right after the last one
	ok(t, p, provider.NewSet("user", []string{"tags", "2"}, "c"))
	v, _ = get(t, p, "user", "tags")
	diff(t, "appended element", []any{"a", "b", "c"}, v)
	failsWith(t, p, provider.NewSet("user", []string{"tags", "5000000"}, "x"), provider.IdentifierInvalidDataType)
	v, _ = get(t, p, "user", "tags")
	diff(t, "array after out of range write", []any{"a", "b", "c"}, v)

	// overwrite
	set(t, p, "user", "replaced")
	v, _ = get(t, p, "user")
	diff(t, "overwritten value", "replaced", v)
}

func testHas(t *testing.T, p provider.Provider) {
	set(t, p, "k", map[string]any{"a": map[string]any{"b": nil}})

	cases := []struct {
		key  string
		path []string
		want bool
	}{
		{"k", nil, true},
		{"k", []string{"a"}, true},
		{"k", []string{"a", "b"}, true},
		{"k", []string{"a", "c"}, false},
		{"other", nil, false},
		{"other", []string{"a"}, false},
	}
	for _, c := range cases {
		res := ok(t, p, provider.NewHas(c.key, c.path...))
		if !res.HasData || res.Data != c.want {
			t.Errorf("Has(%s) = %v, expected %v", provider.JoinLocation(c.key, c.path), res.Data, c.want)
		}
	}
}

func testDelete(t *testing.T, p provider.Provider) {
	set(t, p, "k", map[string]any{"a": 1, "list": []any{1, 2, 3}})

	ok(t, p, provider.NewDelete("k", "a"))
	ok(t, p, provider.NewDelete("k", "list", "1"))
	v, _ := get(t, p, "k")
	diff(t, "after nested deletes", norm(t, map[string]any{"list": []any{1, 3}}), v)

	// absent locations are a no-op
	ok(t, p, provider.NewDelete("k", "nope"))
	ok(t, p, provider.NewDelete("missing"))
	ok(t, p, provider.NewDelete("missing", "a"))

	ok(t, p, provider.NewDelete("k"))
	if _, found := get(t, p, "k"); found {
		t.Error("deleted key still present")
	}
}

func testManyKeys(t *testing.T, p provider.Provider) {
	set(t, p, "a", "old")
	ok(t, p, provider.NewSetMany([]provider.SetManyEntry{
		{KeyPath: provider.KeyPath{Key: "a"}, Value: "new"},
		{KeyPath: provider.KeyPath{Key: "b"}, Value: 2},
		{KeyPath: provider.KeyPath{Key: "c", Path: []string{"x"}}, Value: true},
	}, false))

	res := ok(t, p, provider.NewGetMany("a", "b", "c", "d"))
	diff(t, "GetMany without overwrite", norm(t, map[string]any{
		"a": "old", "b": 2, "c": map[string]any{"x": true}, "d": nil,
	}), res.Data)

	ok(t, p, provider.NewSetMany([]provider.SetManyEntry{
		{KeyPath: provider.KeyPath{Key: "a"}, Value: "new"},
	}, true))
	v, _ := get(t, p, "a")
	diff(t, "SetMany with overwrite", "new", v)

	ok(t, p, provider.NewDeleteMany("a", "b", "missing"))
	size := ok(t, p, provider.NewSize())
	if size.Data != 1 {
		t.Errorf("Size after DeleteMany = %d, expected 1", size.Data)
	}
}

func testMath(t *testing.T, p provider.Provider) {
	failsWith(t, p, provider.NewInc("counter"), provider.IdentifierMissingData)

	set(t, p, "counter", 1)
	ok(t, p, provider.NewInc("counter"))
	ok(t, p, provider.NewInc("counter"))
	ok(t, p, provider.NewDec("counter"))
	v, _ := get(t, p, "counter")
	diff(t, "counter", float64(2), v)

	set(t, p, "obj", map[string]any{"n": 2, "s": "str"})
	steps := []struct {
		op      provider.MathOperator
		operand float64
		want    float64
	}{
		{provider.OperatorExponent, 3, 8},
		{provider.OperatorSubtraction, 2, 6},
		{provider.OperatorDivision, 4, 1.5},
		{provider.OperatorMultiplication, 4, 6},
		{provider.OperatorRemainder, 4, 2},
		{provider.OperatorAddition, 0.5, 2.5},
	}
	for _, s := range steps {
		ok(t, p, provider.NewMath("obj", []string{"n"}, s.op, s.operand))
		v, _ := get(t, p, "obj", "n")
		diff(t, fmt.Sprintf("after %s %v", s.op, s.operand), s.want, v)
	}

	err := failsWith(t, p, provider.NewMath("obj", []string{"s"}, provider.OperatorAddition, 1), provider.IdentifierInvalidDataType)
	if !strings.Contains(err.Message, "obj.s") {
		t.Errorf("message %q does not name the location", err.Message)
	}
	failsWith(t, p, provider.NewMath("obj", []string{"missing"}, provider.OperatorAddition, 1), provider.IdentifierMissingData)
	failsWith(t, p, provider.NewMath("obj", []string{"n"}, provider.OperatorDivision, 0), provider.IdentifierInvalidValueType)

	// failed operations leave the value untouched
	v, _ = get(t, p, "obj", "n")
	diff(t, "value after failed math", 2.5, v)
}

func testPushRemove(t *testing.T, p provider.Provider) {
	failsWith(t, p, provider.NewPush("list", nil, 1), provider.IdentifierMissingData)
	set(t, p, "scalar", 1)
	failsWith(t, p, provider.NewPush("scalar", nil, 1), provider.IdentifierInvalidDataType)

	set(t, p, "list", []any{})
	for _, v := range []any{1, 2, 3, 2, map[string]any{"id": 7}} {
		ok(t, p, provider.NewPush("list", nil, v))
	}
	v, _ := get(t, p, "list")
	diff(t, "after push", norm(t, []any{1, 2, 3, 2, map[string]any{"id": 7}}), v)

	ok(t, p, provider.NewRemove("list", nil, provider.ByValue(2)))
	ok(t, p, provider.NewRemove("list", nil, provider.ByValue(7, "id")))
	v, _ = get(t, p, "list")
	diff(t, "after remove by value", norm(t, []any{1, 3}), v)

	ok(t, p, provider.NewRemove("list", nil, provider.ByHook(func(_ context.Context, value any, _ string) (bool, error) {
		return value == float64(3), nil
	})))
	v, _ = get(t, p, "list")
	diff(t, "after remove by hook", norm(t, []any{1}), v)

	failsWith(t, p, provider.NewRemove("list", nil, provider.ByValue([]any{1})), provider.IdentifierInvalidValueType)
	failsWith(t, p, provider.NewRemove("scalar", nil, provider.ByValue(1)), provider.IdentifierInvalidDataType)
	failsWith(t, p, provider.NewRemove("missing", nil, provider.ByValue(1)), provider.IdentifierMissingData)
}

func testUpdate(t *testing.T, p provider.Provider) {
	double := func(_ context.Context, value any, _ string) (any, error) {
		return value.(float64) * 2, nil
	}
	failsWith(t, p, provider.NewUpdate("n", nil, double), provider.IdentifierMissingData)

	set(t, p, "n", 21)
	res := ok(t, p, provider.NewUpdate("n", nil, double))
	diff(t, "update result", float64(42), res.Data)

	set(t, p, "obj", map[string]any{"inner": map[string]any{"n": 1}})
	var seenKey string
	ok(t, p, provider.NewUpdate("obj", []string{"inner", "n"}, func(ctx context.Context, value any, key string) (any, error) {
		seenKey = key
		return double(ctx, value, key)
	}))
	if seenKey != "obj" {
		t.Errorf("hook received key %q", seenKey)
	}
	v, _ := get(t, p, "obj")
	diff(t, "nested update", norm(t, map[string]any{"inner": map[string]any{"n": 2}}), v)
}

func testEnsure(t *testing.T, p provider.Provider) {
	res := ok(t, p, provider.NewEnsure("k", map[string]any{"n": 1}))
	diff(t, "ensured default", norm(t, map[string]any{"n": 1}), res.Data)
	if !res.Created {
		t.Error("Ensure on an absent key did not report the default as created")
	}

	res = ok(t, p, provider.NewEnsure("k", "other"))
	diff(t, "ensure keeps existing", norm(t, map[string]any{"n": 1}), res.Data)
	if res.Created {
		t.Error("Ensure on an existing key reported the default as created")
	}

	failsWith(t, p, provider.NewEnsure("nil", nil), provider.IdentifierMissingValue)
}

func testListing(t *testing.T, p provider.Provider) {
	entries := map[string]any{"a": 1, "b": "two", "c": []any{3}}
	for k, v := range entries {
		set(t, p, k, v)
	}

	keys := ok(t, p, provider.NewKeys())
	diff(t, "keys", []string{"a", "b", "c"}, keys.Data, sortStrings)

	values := ok(t, p, provider.NewValues())
	if len(values.Data) != 3 {
		t.Errorf("Values returned %d values", len(values.Data))
	}

	all := ok(t, p, provider.NewEntries())
	diff(t, "entries", norm(t, entries), all.Data)

	size := ok(t, p, provider.NewSize())
	if size.Data != 3 {
		t.Errorf("Size = %d, expected 3", size.Data)
	}

	ok(t, p, provider.NewClear())
	size = ok(t, p, provider.NewSize())
	if size.Data != 0 {
		t.Errorf("Size after Clear = %d", size.Data)
	}
	keys = ok(t, p, provider.NewKeys())
	if len(keys.Data) != 0 {
		t.Errorf("Keys after Clear = %v", keys.Data)
	}
}

func testPredicates(t *testing.T, p provider.Provider) {
	// every on an empty store is vacuously true
	every := ok(t, p, provider.NewEvery(provider.ByValue(1)))
	if !every.HasData || !every.Data {
		t.Error("Every on an empty store must be true")
	}
	some := ok(t, p, provider.NewSome(provider.ByValue(1)))
	if !some.HasData || some.Data {
		t.Error("Some on an empty store must be false")
	}

	set(t, p, "alice", map[string]any{"role": "admin", "age": 30})
	set(t, p, "bob", map[string]any{"role": "user", "age": 20})
	set(t, p, "carol", map[string]any{"role": "admin", "age": 40})

	isAdmin := provider.ByValue("admin", "role")
	olderThan25 := provider.ByHook(func(_ context.Context, value any, _ string) (bool, error) {
		return value.(map[string]any)["age"].(float64) > 25, nil
	})

	for _, c := range []provider.Condition{isAdmin, olderThan25} {
		name := c.Type().String()

		every := ok(t, p, provider.NewEvery(c))
		if every.Data {
			t.Errorf("%s: Every = true", name)
		}
		some := ok(t, p, provider.NewSome(c))
		if !some.Data {
			t.Errorf("%s: Some = false", name)
		}

		filter := ok(t, p, provider.NewFilter(c))
		diff(t, name+" filter keys", []string{"alice", "carol"}, keysOf(filter.Data), sortStrings)

		part := ok(t, p, provider.NewPartition(c))
		diff(t, name+" partition truthy", []string{"alice", "carol"}, keysOf(part.Data.Truthy), sortStrings)
		diff(t, name+" partition falsy", []string{"bob"}, keysOf(part.Data.Falsy), sortStrings)

		find := ok(t, p, provider.NewFind(c))
		if find.Data == nil || (find.Data.Key != "alice" && find.Data.Key != "carol") {
			t.Errorf("%s: Find = %v", name, find.Data)
		}
	}

	find := ok(t, p, provider.NewFind(provider.ByValue("nobody", "role")))
	if !find.HasData || find.Data != nil {
		t.Errorf("Find without match = %v", find.Data)
	}

	every = ok(t, p, provider.NewEvery(provider.ByHook(func(context.Context, any, string) (bool, error) { return true, nil })))
	if !every.Data {
		t.Error("Every with an always true hook = false")
	}

	failsWith(t, p, provider.NewFilter(provider.ByValue(map[string]any{"x": 1})), provider.IdentifierInvalidValueType)
}

func testMapEach(t *testing.T, p provider.Provider) {
	set(t, p, "a", map[string]any{"n": 1})
	set(t, p, "b", map[string]any{"n": 2})
	set(t, p, "c", map[string]any{"m": 3})

	byPath := ok(t, p, provider.NewMap(provider.MapByPath("n")))
	sortAny := cmpopts.SortSlices(func(a, b any) bool { return fmt.Sprint(a) < fmt.Sprint(b) })
	diff(t, "map by path", []any{float64(1), float64(2), nil}, byPath.Data, sortAny)

	byHook := ok(t, p, provider.NewMap(provider.MapByHook(func(_ context.Context, _ any, key string) (any, error) {
		return strings.ToUpper(key), nil
	})))
	diff(t, "map by hook", []any{"A", "B", "C"}, byHook.Data, sortAny)

	var mu sync.Mutex
	seen := map[string]any{}
	ok(t, p, provider.NewEach(func(_ context.Context, value any, key string) error {
		mu.Lock()
		defer mu.Unlock()
		seen[key] = value
		return nil
	}))
	diff(t, "each", norm(t, map[string]any{
		"a": map[string]any{"n": 1}, "b": map[string]any{"n": 2}, "c": map[string]any{"m": 3},
	}), seen)
}

func testRandom(t *testing.T, p provider.Provider) {
	failsWith(t, p, provider.NewRandom(1, false), provider.IdentifierMissingData)
	failsWith(t, p, provider.NewRandomKey(1, false), provider.IdentifierMissingData)

	set(t, p, "a", 1)
	set(t, p, "b", 2)
	set(t, p, "c", 3)

	err := failsWith(t, p, provider.NewRandom(4, false), provider.IdentifierInvalidCount)
	if !errors.Is(err, provider.ErrInvalidCount) {
		t.Error("error does not match ErrInvalidCount")
	}
	failsWith(t, p, provider.NewRandomKey(4, false), provider.IdentifierInvalidCount)

	dup := ok(t, p, provider.NewRandom(10, true))
	if len(dup.Data) != 10 {
		t.Errorf("Random with duplicates returned %d values", len(dup.Data))
	}

	keys := ok(t, p, provider.NewRandomKey(3, false))
	diff(t, "all random keys", []string{"a", "b", "c"}, keys.Data, sortStrings)

	single := ok(t, p, provider.NewRandom(0, false))
	if len(single.Data) != 1 {
		t.Errorf("Random with count 0 returned %d values", len(single.Data))
	}
	for _, v := range single.Data {
		if n, isNum := v.(float64); !isNum || n < 1 || n > 3 {
			t.Errorf("Random returned unknown value %v", v)
		}
	}
}

func testAutoKey(t *testing.T, p provider.Provider) {
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		res := ok(t, p, provider.NewAutoKey())
		if !res.HasData || res.Data == "" {
			t.Fatal("AutoKey returned no key")
		}
		if seen[res.Data] {
			t.Fatalf("AutoKey returned %q twice", res.Data)
		}
		seen[res.Data] = true

		has := ok(t, p, provider.NewHas(res.Data))
		if has.Data {
			t.Fatalf("AutoKey returned the used key %q", res.Data)
		}
		set(t, p, res.Data, i)
	}
}

func testMetadata(t *testing.T, p provider.Provider) {
	if _, loaded, err := p.GetMetadata(ctx, "custom"); err != nil || loaded {
		t.Fatalf("GetMetadata of an absent key = %v, %v", loaded, err)
	}
	if err := p.SetMetadata(ctx, "custom", map[string]any{"v": 1}); err != nil {
		t.Fatal(err)
	}
	v, loaded, err := p.GetMetadata(ctx, "custom")
	if err != nil || !loaded {
		t.Fatalf("GetMetadata = %v, %v", loaded, err)
	}
	diff(t, "metadata", norm(t, map[string]any{"v": 1}), v)

	// metadata is not part of the data
	size := ok(t, p, provider.NewSize())
	if size.Data != 0 {
		t.Errorf("metadata counted as data (size %d)", size.Data)
	}

	if err := p.DeleteMetadata(ctx, "custom"); err != nil {
		t.Fatal(err)
	}
	if _, loaded, _ := p.GetMetadata(ctx, "custom"); loaded {
		t.Error("metadata still present after delete")
	}
}

func testHookErrors(t *testing.T, p provider.Provider) {
	set(t, p, "k", 1)
	boom := errors.New("boom")

	_, err := p.Update(ctx, provider.NewUpdate("k", nil, func(context.Context, any, string) (any, error) {
		return nil, boom
	}))
	if !errors.Is(err, boom) {
		t.Errorf("Update returned %v, expected the hook error", err)
	}
	_, err = p.Filter(ctx, provider.NewFilter(provider.ByHook(func(context.Context, any, string) (bool, error) {
		return false, boom
	})))
	if !errors.Is(err, boom) {
		t.Errorf("Filter returned %v, expected the hook error", err)
	}
	_, err = p.Each(ctx, provider.NewEach(func(context.Context, any, string) error { return boom }))
	if !errors.Is(err, boom) {
		t.Errorf("Each returned %v, expected the hook error", err)
	}

	v, _ := get(t, p, "k")
	diff(t, "value after failed hook", float64(1), v)
}

func testConcurrentMutations(t *testing.T, p provider.Provider) {
	const workers, rounds = 4, 25
	set(t, p, "inc", 0)
	set(t, p, "upd", 0)
	set(t, p, "list", []any{})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				for _, pl := range []provider.Payload{
					provider.NewInc("inc"),
					provider.NewUpdate("upd", nil, func(_ context.Context, value any, _ string) (any, error) {
						return value.(float64) + 1, nil
					}),
					provider.NewPush("list", nil, fmt.Sprintf("%d-%d", w, i)),
				} {
					out, err := provider.Dispatch(ctx, p, pl)
					if err == nil {
						err = out.Base().Err()
					}
					if err != nil {
						t.Errorf("worker %d: %s failed: %v", w, pl.Base().Method, err)
						return
					}
				}
			}
		}(w)
	}
	wg.Wait()

	want := float64(workers * rounds)
	v, _ := get(t, p, "inc")
	diff(t, "concurrent inc", want, v)
	v, _ = get(t, p, "upd")
	diff(t, "concurrent update", want, v)
	v, _ = get(t, p, "list")
	if l, isList := v.([]any); !isList || len(l) != workers*rounds {
		t.Errorf("concurrent push lost elements: %d", len(l))
	}
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
