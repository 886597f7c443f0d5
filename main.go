package main

import (
	"os"

	"github.com/nanovms/docker2eif/cmd"
)

func main() {
	if err := cmd.GetRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
