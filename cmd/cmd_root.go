package cmd

import (
	"os"

	"github.com/nanovms/docker2eif/log"
	"github.com/nanovms/docker2eif/types"
	"github.com/spf13/cobra"
)

// GetRootCommand provides set all commands for docker2eif
func GetRootCommand() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "docker2eif",
		Short: "Generate consistent EIF images from docker images",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := types.NewConfig()

			globalFlags := NewGlobalCommandFlags(cmd.Flags())
			if err := globalFlags.MergeToConfig(config); err != nil {
				return err
			}

			log.InitDefault(os.Stdout, config)
			return nil
		},
	}

	// persist flags transversal to every command
	PersistGlobalCommandFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(BuildCommand())
	rootCmd.AddCommand(DescribeCommand())
	rootCmd.AddCommand(VersionCommand())

	return rootCmd
}
