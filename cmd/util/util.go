package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/pKV/lib/common"
	"github.com/ValentinKolb/pKV/lib/db"
	"github.com/ValentinKolb/pKV/lib/db/engines/bolt"
	"github.com/ValentinKolb/pKV/lib/db/engines/maple"
	"github.com/ValentinKolb/pKV/lib/db/engines/sqlite"
	"github.com/ValentinKolb/pKV/lib/middleware"
	"github.com/ValentinKolb/pKV/lib/middleware/autoensure"
	"github.com/ValentinKolb/pKV/lib/middleware/logging"
	"github.com/ValentinKolb/pKV/lib/middleware/metrics"
	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/ValentinKolb/pKV/lib/provider/dbprovider"
	"github.com/ValentinKolb/pKV/lib/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// SetupStoreFlags adds the flags describing the local store to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "name"
	cmd.PersistentFlags().String(key, "default", WrapString("Name of the store"))

	key = "engine"
	cmd.PersistentFlags().String(key, "maple", WrapString("The storage engine to use (maple, bolt, sqlite)"))

	key = "data"
	cmd.PersistentFlags().String(key, "", WrapString("The database file of the engine. For maple this is a snapshot that is loaded on start and written back after every command. Empty keeps maple and sqlite in memory"))

	key = "allow-migrations"
	cmd.PersistentFlags().Bool(key, false, WrapString("Allow the provider and the middlewares to migrate stored data to their current version"))

	key = "auto-key"
	cmd.PersistentFlags().String(key, common.AutoKeyCounter, WrapString("How new keys are generated (counter, uuid)"))

	key = "middleware"
	cmd.PersistentFlags().StringSlice(key, nil, WrapString("Middlewares to register in this order (metrics, logging, autoensure)"))

	key = "ensure-default"
	cmd.PersistentFlags().String(key, "0", WrapString("JSON value the autoensure middleware stores under absent keys"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("The log level (debug, info, warn, error)"))
}

// InitConfig initializes configuration from .env files and environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("pkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetStoreConfig reads the store configuration from viper
func GetStoreConfig() *common.StoreConfig {
	return &common.StoreConfig{
		Name:            viper.GetString("name"),
		Engine:          viper.GetString("engine"),
		DataPath:        viper.GetString("data"),
		AllowMigrations: viper.GetBool("allow-migrations"),
		AutoKeyStrategy: viper.GetString("auto-key"),
		Middlewares:     viper.GetStringSlice("middleware"),
		EnsureDefault:   viper.GetString("ensure-default"),
		LogLevel:        viper.GetString("log-level"),
	}
}

// --------------------------------------------------------------------------
// Store construction
// --------------------------------------------------------------------------

// OpenEngine opens the engine described by conf. A maple engine is filled from its snapshot file
// if it exists.
func OpenEngine(conf *common.StoreConfig) (db.KVDB, error) {
	switch conf.Engine {
	case "maple":
		database := maple.NewMapleDB(nil)
		if conf.DataPath == "" {
			return database, nil
		}
		f, err := os.Open(conf.DataPath)
		if errors.Is(err, os.ErrNotExist) {
			return database, nil
		} else if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := database.Load(f); err != nil {
			return nil, fmt.Errorf("could not load snapshot %s: %w", conf.DataPath, err)
		}
		return database, nil
	case "bolt":
		return bolt.NewBoltDB(bolt.DBOptions{Path: conf.DataPath})
	case "sqlite":
		return sqlite.NewSqliteDB(sqlite.DBOptions{Path: conf.DataPath})
	default:
		return nil, fmt.Errorf("invalid engine %s", conf.Engine)
	}
}

// CloseEngine closes database, writing the snapshot of a maple engine back to its data file first.
func CloseEngine(conf *common.StoreConfig, database db.KVDB) error {
	if conf.Engine == "maple" && conf.DataPath != "" {
		f, err := os.Create(conf.DataPath)
		if err != nil {
			return err
		}
		if err := database.Save(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("could not save snapshot %s: %w", conf.DataPath, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return database.Close()
}

// NewProvider creates the db provider for conf on top of database.
func NewProvider(conf *common.StoreConfig, database db.KVDB) *dbprovider.DBProvider {
	return dbprovider.New(database, dbprovider.Options{
		Options: provider.Options{AllowMigrations: conf.AllowMigrations},
		AutoKey: dbprovider.AutoKeyStrategy(conf.AutoKeyStrategy),
	})
}

// NewMiddlewares creates the middlewares listed in conf, in order.
func NewMiddlewares(conf *common.StoreConfig) ([]middleware.Middleware, error) {
	opts := middleware.Options{AllowMigrations: conf.AllowMigrations}
	mws := make([]middleware.Middleware, 0, len(conf.Middlewares))
	for _, name := range conf.Middlewares {
		switch name {
		case common.MiddlewareMetrics:
			mws = append(mws, metrics.New(opts))
		case common.MiddlewareLogging:
			mws = append(mws, logging.New(opts))
		case common.MiddlewareAutoEnsure:
			m, err := autoensure.New(autoensure.Options{Options: opts, Default: ParseValue(conf.EnsureDefault)})
			if err != nil {
				return nil, err
			}
			mws = append(mws, m)
		default:
			return nil, fmt.Errorf("unknown middleware %q", name)
		}
	}
	return mws, nil
}

// OpenStore validates conf, opens its engine and returns the initialized store together with the
// function that closes it.
func OpenStore(ctx context.Context, conf *common.StoreConfig) (*store.Store, func() error, error) {
	if err := conf.Validate(); err != nil {
		return nil, nil, err
	}
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return nil, nil, err
	}

	database, err := OpenEngine(conf)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error { return CloseEngine(conf, database) }

	s := store.New(conf.Name, NewProvider(conf, database))
	mws, err := NewMiddlewares(conf)
	if err == nil {
		err = s.Use(mws...)
	}
	if err == nil {
		err = s.Init(ctx)
	}
	if err != nil {
		_ = database.Close()
		return nil, nil, err
	}
	return s, closeFn, nil
}

// --------------------------------------------------------------------------
// Values
// --------------------------------------------------------------------------

// ParseValue decodes a command line value as JSON. Text that is not valid JSON is taken as a string.
func ParseValue(text string) any {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text
	}
	return v
}

// FormatValue renders a value as compact JSON for printing.
func FormatValue(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

// SplitPath turns a dotted path ("a.b.0") into its segments. The empty string is the empty path.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}
