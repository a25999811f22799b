// Package dbprovider implements provider.Provider on top of any db.KVDB engine.
//
// Values are encoded with a provider.Codec (JSON by default) before they reach the engine, so
// every engine (maple, bolt, sqlite) stores plain bytes. Nested paths select fields of decoded
// objects and elements of decoded arrays ("users", "0", "name").
//
// Atomicity:
//   - Mutations without caller hooks (Set, Push, Inc, Math, Remove by value, Ensure, ...) run
//     inside the engine's atomic Update for the addressed key.
//   - Mutations with caller hooks (Update, Remove by hook) evaluate the hook outside of the engine
//     and write the result only if the key was not modified meanwhile, retrying otherwise.
//   - Iterating operations (Each, Filter, Map, ...) collect the entries first and call hooks
//     afterwards, in key order. Hooks may therefore use the store themselves.
//   - SetMany, DeleteMany and Clear are atomic per key only.
//
// Layout versions:
//   - 1.0.0 kept the auto key counter under the metadata key "autoKeyCount"
//   - 2.0.0 keeps it under "autokey:count" and stores its own version under "version"
//
// A store without a stored version is fresh if it holds no data and no legacy metadata; it
// adopts the current version. Otherwise it is treated as 1.0.0 and Init fails with
// NeedsMigration unless migrations are allowed.
//
// Example:
//
//	p := dbprovider.New(maple.NewMapleDB(nil), dbprovider.Options{})
//	if _, err := p.Init(ctx, provider.Context{Name: "users"}); err != nil {
//		return err
//	}
//	pl, err := p.Set(ctx, provider.NewSet("alice", nil, map[string]any{"age": 30}))
package dbprovider
