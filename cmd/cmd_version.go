package cmd

import (
	"fmt"

	"github.com/nanovms/docker2eif/constants"
	"github.com/nanovms/docker2eif/eif"
	"github.com/spf13/cobra"
)

// VersionCommand provides version command
func VersionCommand() *cobra.Command {
	var cmdVersion = &cobra.Command{
		Use:   "version",
		Short: "Version",
		Run:   printVersion,
	}
	return cmdVersion
}

func printVersion(cmd *cobra.Command, args []string) {
	fmt.Fprintf(cmd.OutOrStdout(), "docker2eif version: %s\n", constants.Version)
	fmt.Fprintf(cmd.OutOrStdout(), "EIF format version: %d\n", eif.Version)
}
