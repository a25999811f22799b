// Package common provides the configuration and logging utilities shared by the
// packages and commands of pKV.
//
// The package focuses on:
//   - Configuration structures for opening a local store
//   - Custom logging integrated with the dragonboat logger facade
//
// Key Components:
//
//   - StoreConfig: The configuration of a local store: engine, data path, migration policy,
//     auto key strategy, registered middlewares and log level. Provides validation and a
//     sectioned String representation for printing at startup.
//
//   - Logger: Every package declares its logger with logger.GetLogger("<pkg>") from
//     github.com/lni/dragonboat/v4/logger. InitLoggers installs a factory whose loggers write
//     through a zap console core (time, level, package, message) to stderr and sets the level of
//     all package loggers at once.
package common
