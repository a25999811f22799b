// Package provider defines the contract between a key-value store facade and its pluggable
// storage backends ("providers").
//
// The package focuses on:
//   - A uniform request/response envelope for every store operation (Payload)
//   - A typed error model with stable identifiers and resolved messages
//   - A versioned migration gate run before a provider (or middleware) becomes usable
//
// Key Components:
//
//   - Method and MethodSet: the fixed set of operation kinds (get, set, inc, filter, random, ...)
//     and a bit flag set of them, used by middlewares to declare what they observe.
//
//   - Payload: one struct per Method, each embedding an Envelope (method, trigger, errors,
//     metadata) and the shape blocks the operation needs: KeyPath for addressing, Result[T] for
//     the data slot, and the tagged unions Condition (ByHook | ByValue) and Mapper
//     (ByHook | ByPath) for predicate and projection operations. Handlers switch on the variant,
//     never on which optional fields happen to be set.
//
//   - Provider: the interface a backend implements, one method per operation plus Init and
//     out-of-band metadata. Dispatch routes a Payload to the matching method.
//
//   - Error: carries an identifier (MissingData, InvalidDataType, InvalidValueType, InvalidCount,
//     MissingValue for data errors; NeedsMigration, MigrationNotFound, NameNotFound,
//     StoreNotFound for init errors), the component kind and short name, the originating method
//     and a message produced by ResolveIdentifier / ResolveComponentIdentifier. An identifier no
//     resolver knows is a programming error and panics.
//
//   - Gate: the migration state machine (Uninitialized -> VersionChecked -> UpToDate |
//     MigrationApplied | Failed), generic over the component's init context so providers and
//     middlewares share one implementation.
//
// Error reporting:
//   - Data errors are appended to Payload.Errors and the payload is returned normally. Once a
//     stage appended an error, later stages should not mutate the payload any further.
//   - Init errors are returned from Init and are fatal.
//   - Everything else (I/O, encoding, hook failures) is returned as the Go error of the operation.
//
// Related Packages:
//
// The dbprovider package (github.com/ValentinKolb/pKV/lib/provider/dbprovider) implements
// Provider on top of any db.KVDB engine. The testing package
// (github.com/ValentinKolb/pKV/lib/provider/testing) contains a conformance suite every provider
// implementation should pass.
package provider
