package cmd

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nanovms/docker2eif/types"
	"github.com/spf13/pflag"
)

// BuildImageCommandFlags consolidates all command flags required to build an image in one struct
type BuildImageCommandFlags struct {
	Tag          string
	BuildContext string
	Dockerfile   string
	Pull         bool
	Init         string
	Kernel       string
	Cmdline      string
	Linuxkit     string
	Output       string
	WorkDir      string
	Memory       string
	CPUs         uint64
}

// MergeToConfig overrides configuration passed by argument with command flags values
func (flags *BuildImageCommandFlags) MergeToConfig(c *types.Config) (err error) {
	if flags.Tag != "" {
		c.Image = flags.Tag
	}
	if flags.BuildContext != "" {
		c.BuildContext = flags.BuildContext
	}
	if flags.Dockerfile != "" {
		c.Dockerfile = flags.Dockerfile
	}
	if flags.Pull {
		c.Pull = true
	}
	if flags.Init != "" {
		c.Init = flags.Init
	}
	if flags.Kernel != "" {
		c.Kernel = flags.Kernel
	}
	if flags.Cmdline != "" {
		c.Cmdline = flags.Cmdline
	}
	if flags.Linuxkit != "" {
		c.Linuxkit = flags.Linuxkit
	}
	if flags.Output != "" {
		c.Output = flags.Output
	}
	if flags.WorkDir != "" {
		c.WorkDir = flags.WorkDir
	}
	if flags.Memory != "" {
		c.Memory, err = parseMemory(flags.Memory)
		if err != nil {
			return
		}
	}
	if flags.CPUs != 0 {
		c.CPUs = flags.CPUs
	}

	return
}

// parseMemory reads a memory size in MiB. Sizes with a unit ("2GiB",
// "512MiB") are converted; bare numbers are MiB already.
func parseMemory(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if mib, err := strconv.ParseUint(s, 10, 64); err == nil {
		if mib == 0 {
			return 0, types.NewConfigError(s, "memory must be positive", nil)
		}
		return mib, nil
	}

	size, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, types.NewConfigError(s, "invalid memory size", err)
	}
	if size < humanize.MiByte {
		return 0, types.NewConfigError(s, "memory must be at least 1MiB", nil)
	}
	return size / humanize.MiByte, nil
}

// NewBuildImageCommandFlags returns an instance of BuildImageCommandFlags
func NewBuildImageCommandFlags(cmdFlags *pflag.FlagSet) (flags *BuildImageCommandFlags) {
	flags = &BuildImageCommandFlags{}

	flags.Tag, _ = cmdFlags.GetString("tag")
	flags.BuildContext, _ = cmdFlags.GetString("build")
	flags.Dockerfile, _ = cmdFlags.GetString("dockerfile")
	flags.Pull, _ = cmdFlags.GetBool("pull")
	flags.Init, _ = cmdFlags.GetString("init")
	flags.Kernel, _ = cmdFlags.GetString("kernel")
	flags.Cmdline, _ = cmdFlags.GetString("cmdline")
	flags.Linuxkit, _ = cmdFlags.GetString("linuxkit")
	flags.Output, _ = cmdFlags.GetString("output")
	flags.WorkDir, _ = cmdFlags.GetString("workdir")
	flags.Memory, _ = cmdFlags.GetString("memory")
	flags.CPUs, _ = cmdFlags.GetUint64("cpus")

	flags.Tag = strings.TrimSpace(flags.Tag)
	flags.BuildContext = strings.TrimSpace(flags.BuildContext)

	return
}

// PersistBuildImageCommandFlags append a command the required flags to build an image
func PersistBuildImageCommandFlags(cmdFlags *pflag.FlagSet) {
	cmdFlags.StringP("tag", "t", "", "docker image tag to pull or use from local storage")
	cmdFlags.StringP("build", "b", "", "build the image from this docker build context")
	cmdFlags.String("dockerfile", "", "name of the Dockerfile in the build context (default \"Dockerfile\")")
	cmdFlags.BoolP("pull", "p", false, "pull the image even when it is available locally")
	cmdFlags.StringP("init", "i", "", "path to the binary run as the enclave init process")
	cmdFlags.StringP("kernel", "k", "", "path to the bzImage kernel")
	cmdFlags.StringP("cmdline", "c", "", "kernel command line")
	cmdFlags.StringP("linuxkit", "l", "", "linuxkit executable path (default \"linuxkit\")")
	cmdFlags.StringP("output", "o", "", "output file for the EIF image")
	cmdFlags.StringP("workdir", "w", "", "scratch directory for intermediate artifacts (default \".\")")
	cmdFlags.String("memory", "", "default enclave memory recorded in the image, in MiB or with a unit (default 512)")
	cmdFlags.Uint64("cpus", 0, "default enclave vcpu count recorded in the image (default 2)")
}
