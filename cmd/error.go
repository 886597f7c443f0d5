package cmd

import (
	"fmt"
	"os"

	"github.com/go-errors/errors"
	"github.com/nanovms/docker2eif/constants"
	"github.com/nanovms/docker2eif/log"
	"github.com/spf13/cobra"
)

func exitWithError(errs string) {
	fmt.Println(fmt.Sprintf(constants.ErrorColor, errs))
	os.Exit(1)
}

func exitForCmd(cmd *cobra.Command, errs string) {
	fmt.Println(fmt.Sprintf(constants.ErrorColor, errs))
	cmd.Help()
	os.Exit(1)
}

// exitWithBuildError prints err, with a stack trace under --show-debug
func exitWithBuildError(err error) {
	if log.Default().IsDebug() {
		log.Errorf("%s", errors.Wrap(err, 1).ErrorStack())
	}
	exitWithError(err.Error())
}
