// Package cmd implements the command-line interface of pKV. It opens a local store from flags
// (or PKV_ environment variables and .env files) and runs single operations against it.
//
// The package is organized into several subpackages:
//
//   - kv: one command per store operation (get, set, inc, filter, map, ...) and the perf benchmark
//   - migrate: shows stored against required versions and runs migrations
//   - util: Shared utilities for flags, configuration and store construction (internal use)
//
// See pkv -help for a list of all commands.
package cmd
