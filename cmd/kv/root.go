package kv

import (
	"github.com/ValentinKolb/pKV/cmd/util"
	"github.com/ValentinKolb/pKV/lib/common"
	"github.com/ValentinKolb/pKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var (
	log = logger.GetLogger("cli")

	kvStore    *store.Store
	kvConfig   *common.StoreConfig
	closeStore func() error

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations on a local store",
		PersistentPreRunE:  openStore,
		PersistentPostRunE: closeLocalStore,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add the store flags to the KV command
	util.SetupStoreFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(
		getCmd, setCmd, delCmd, hasCmd,
		incCmd, decCmd, mathCmd, pushCmd, removeCmd, updateCmd, ensureCmd,
		getManyCmd, setManyCmd, delManyCmd, clearCmd, autoKeyCmd,
		sizeCmd, keysCmd, valuesCmd, entriesCmd, eachCmd,
		everyCmd, someCmd, filterCmd, findCmd, partitionCmd, mapCmd,
		randomCmd, randomKeyCmd,
		perfTestCmd,
	)
}

// openStore opens and initializes the local store described by the flags
func openStore(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	kvConfig = util.GetStoreConfig()
	s, closeFn, err := util.OpenStore(cmd.Context(), kvConfig)
	if err != nil {
		return err
	}
	kvStore, closeStore = s, closeFn
	log.Debugf("opened store %s", kvConfig.String())
	return nil
}

// closeLocalStore closes the store, persisting maple snapshots
func closeLocalStore(_ *cobra.Command, _ []string) error {
	if closeStore == nil {
		return nil
	}
	defer common.Sync()
	return closeStore()
}
