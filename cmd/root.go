package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/pKV/cmd/kv"
	"github.com/ValentinKolb/pKV/cmd/migrate"
	"github.com/ValentinKolb/pKV/lib/provider/dbprovider"
	"github.com/spf13/cobra"
)

const (
	Version = "2.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "pkv",
		Short: "pluggable key-value store",
		Long: fmt.Sprintf(`pKV (v%s)

A key-value store library written in Go with pluggable storage providers,
an ordered middleware pipeline and versioned, migratable stored data.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of pKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pKV v%s (data layout v%s)\n", Version, dbprovider.Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(migrate.MigrateCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
