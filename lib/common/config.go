package common

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Store configuration struct
// --------------------------------------------------------------------------

// AutoKey strategies of the db provider
const (
	AutoKeyCounter = "counter"
	AutoKeyUUID    = "uuid"
)

// Middleware names understood by the CLI
const (
	MiddlewareMetrics    = "metrics"
	MiddlewareLogging    = "logging"
	MiddlewareAutoEnsure = "autoensure"
)

// StoreConfig holds all parameters needed to open a local store.
type StoreConfig struct {
	// Name of the store
	Name string

	// Engine is the db engine ("maple", "bolt" or "sqlite")
	Engine string
	// DataPath is the file of a persistent engine, or the snapshot file of maple
	DataPath string

	// AllowMigrations lets the provider and the middlewares migrate stored data on init
	AllowMigrations bool
	// AutoKeyStrategy is one of AutoKeyCounter, AutoKeyUUID
	AutoKeyStrategy string

	// Middlewares lists the middlewares to register, in order
	Middlewares []string
	// EnsureDefault is the JSON encoded default value the autoensure middleware seeds
	EnsureDefault string

	// Logging configuration
	LogLevel string
}

// Validate checks the enumerated fields.
func (c *StoreConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("store name must not be empty")
	}
	switch c.Engine {
	case "maple", "bolt", "sqlite":
	default:
		return fmt.Errorf("invalid engine %q. must be one of maple, bolt, sqlite", c.Engine)
	}
	if c.Engine == "bolt" && c.DataPath == "" {
		return fmt.Errorf("engine bolt needs a data path")
	}
	switch c.AutoKeyStrategy {
	case AutoKeyCounter, AutoKeyUUID:
	default:
		return fmt.Errorf("invalid auto key strategy %q. must be one of %s, %s", c.AutoKeyStrategy, AutoKeyCounter, AutoKeyUUID)
	}
	for _, m := range c.Middlewares {
		switch m {
		case MiddlewareMetrics, MiddlewareLogging, MiddlewareAutoEnsure:
		default:
			return fmt.Errorf("unknown middleware %q", m)
		}
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *StoreConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Store")
	addField("Name", c.Name)
	addField("Auto Key Strategy", c.AutoKeyStrategy)
	addField("Allow Migrations", fmt.Sprintf("%t", c.AllowMigrations))

	addSection("Storage")
	addField("Engine", c.Engine)
	dataPath := c.DataPath
	if dataPath == "" {
		dataPath = "(in memory)"
	}
	addField("Data Path", dataPath)

	addSection("Middlewares")
	if len(c.Middlewares) == 0 {
		addField("Registered", "none")
	}
	for i, m := range c.Middlewares {
		addField(fmt.Sprintf("%d", i), m)
	}
	if c.EnsureDefault != "" {
		addField("Ensure Default", c.EnsureDefault)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
