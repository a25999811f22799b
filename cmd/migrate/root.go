package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/pKV/cmd/util"
	"github.com/ValentinKolb/pKV/lib/common"
	"github.com/ValentinKolb/pKV/lib/middleware"
	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/ValentinKolb/pKV/lib/provider/dbprovider"
	"github.com/ValentinKolb/pKV/lib/store"
	"github.com/spf13/cobra"
)

// MigrateCmd checks (and with --allow-migrations upgrades) the stored versions of a store
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Show and migrate the stored versions of a local store",
	Long: `Prints the version stored for the provider and every configured middleware next to the
version the current build requires. With --allow-migrations the store is initialized, which runs
the registered migrations for every component whose stored version is older.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return util.BindCommandFlags(cmd)
	},
	RunE: run,
}

func init() {
	cobra.OnInitialize(util.InitConfig)
	util.SetupStoreFlags(MigrateCmd)
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	conf := util.GetStoreConfig()
	if err := conf.Validate(); err != nil {
		return err
	}
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return err
	}
	defer common.Sync()

	database, err := util.OpenEngine(conf)
	if err != nil {
		return err
	}
	p := util.NewProvider(conf, database)
	mws, err := util.NewMiddlewares(conf)
	if err != nil {
		_ = database.Close()
		return err
	}

	fmt.Println("before:")
	if err := printVersions(ctx, p, mws); err != nil {
		_ = database.Close()
		return err
	}

	s := store.New(conf.Name, p)
	if err := s.Use(mws...); err != nil {
		_ = database.Close()
		return err
	}
	initErr := s.Init(ctx)

	fmt.Println("after:")
	if err := printVersions(ctx, p, mws); err != nil {
		_ = database.Close()
		return err
	}
	if closeErr := util.CloseEngine(conf, database); closeErr != nil {
		return closeErr
	}

	switch {
	case errors.Is(initErr, provider.ErrNeedsMigration):
		return fmt.Errorf("%w (rerun with --allow-migrations)", initErr)
	case initErr != nil:
		return initErr
	}
	fmt.Println("store is up to date")
	return nil
}

func printVersions(ctx context.Context, p *dbprovider.DBProvider, mws []middleware.Middleware) error {
	stored, ok, err := p.GetMetadata(ctx, dbprovider.MetaVersion)
	if err != nil {
		return err
	}
	printLine(p.Name(), stored, ok, p.Version())

	for _, m := range mws {
		stored, ok, err := p.GetMetadata(ctx, middleware.VersionKey(m.Name()))
		if err != nil {
			return err
		}
		printLine(m.Name(), stored, ok, m.Version())
	}
	return nil
}

func printLine(name string, stored any, ok bool, declared provider.Semver) {
	storedText := "(none)"
	if ok {
		storedText = fmt.Sprintf("%v", stored)
	}
	fmt.Printf("  %-22s stored %-8s required %s\n", name, storedText, declared)
}
