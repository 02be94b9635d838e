// file: cmd/config_cmd.go
// version: 1.0.0
// guid: a3c7e1f9-4b28-4d6a-9f15-0e8b2d7c5a41

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jdfalk/mediashare/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file filled with defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "mediashare.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefaultConfigFile(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
