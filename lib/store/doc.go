// Package store is the entry point applications use: it binds a provider.Provider to a
// middleware.Registry and runs every operation through the resulting pipeline.
//
// Lifecycle:
//
//	s := store.New("users", dbprovider.New(engine, dbprovider.Options{}))
//	_ = s.Use(metrics.New(middleware.Options{}), logging.New(middleware.Options{}))
//	if err := s.Init(ctx); err != nil { ... } // provider gate, then every middleware gate
//	v, ok, err := s.Get(ctx, "alice", "address", "city")
//
// Pipeline of Run for a payload with method m:
//
//  1. the pre provider middlewares of m in registration order (Trigger = PreProvider)
//  2. the provider, unless a middleware set provider.MetadataSkipProvider on the payload
//  3. the post provider middlewares of m in registration order (Trigger = PostProvider)
//
// Each stage receives the payload the previous one returned. The pipeline stops at the first
// stage that returns an error or leaves a data error on the payload, so post provider
// middlewares only observe successful operations.
//
// The typed helpers (Get, Set, Inc, Filter, ...) wrap Run for one method each and return the
// first data error of the payload as a *provider.Error.
package store
