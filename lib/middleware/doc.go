// Package middleware defines interceptors that observe store operations before and after the
// provider handles them.
//
// A Middleware declares its Conditions: the set of methods it wants to see before the provider
// (PreProvider) and after it (PostProvider). The Registry keeps middlewares in registration order
// and selects, per method, the ordered subset for each phase. There is no priority mechanism:
// middlewares claiming the same method run in the order they were registered, and a middleware
// claiming neither phase for a method is skipped for it.
//
// Middlewares are versioned like providers. Base.NewGate builds the shared provider.Gate for a
// middleware, keeping its stored version in the provider metadata under
// "middleware:<short name>:version". Init fails with NameNotFound or StoreNotFound when the
// context is incomplete and with NeedsMigration or MigrationNotFound when the stored state is
// too old.
//
// Implementations:
//   - metrics: per method counters and duration histograms (VictoriaMetrics)
//   - logging: leveled trace of every payload
//   - autoensure: seeds a default value for absent keys before reads and mutations
package middleware
