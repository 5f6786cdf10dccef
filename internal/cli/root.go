// Package cli holds the cobra commands of the mindtree binary.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mindtree/internal/config"
)

const rootLongDesc string = `Mindtree stores a mind-map as flat parent-linked records and serves it as a tree.

Run the service using:
  mindtree serve               Run the HTTP API
  mindtree migrate             Apply Postgres migrations
  mindtree tree                Print the current tree
  mindtree orphans             List records the tree cannot place
  mindtree reconcile --mode    Purge or reattach those records
  mindtree hash-token          Hash a write token for MINDTREE_WRITE_TOKEN_HASH`

const rootShortDesc string = "Mindtree - consequence tree service"

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mindtree",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().StringP("config", "c", "", "Path to a config file (default: ./mindtree.toml)")
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("store", "", "Storage backend: memory, postgres, mongo, redis or neo4j")

	cmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newTreeCmd(),
		newOrphansCmd(),
		newReconcileCmd(),
		newHashTokenCmd(),
	)

	return cmd
}

// loadConfig reads file and environment settings, then lets flags that were
// set on the command line win.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("could not get config flag: %w", err)
	}
	v, err := config.NewViper(configFile)
	if err != nil {
		return config.Config{}, err
	}
	for key, flag := range map[string]string{"debug": "debug", "store": "store", "addr": "addr"} {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return config.Config{}, fmt.Errorf("bind %s flag: %w", flag, err)
		}
	}
	return config.FromViper(v), nil
}
