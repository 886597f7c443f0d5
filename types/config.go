package types

import (
	"github.com/nanovms/docker2eif/constants"
)

// Config for Build
type Config struct {
	// Image is the docker image tag to pull or use from local storage.
	Image string `json:",omitempty"`

	// BuildContext is a directory holding a Dockerfile the image is built
	// from. Mutually exclusive with Image.
	BuildContext string `json:",omitempty"`

	// Dockerfile is the name of the build descriptor inside BuildContext.
	Dockerfile string `json:",omitempty"`

	// Pull forces a registry pull even when the image is present locally.
	Pull bool `json:",omitempty"`

	// Init is the path of the binary run as the enclave init process.
	Init string `json:",omitempty"`

	// Kernel is the path of the bzImage/Image kernel embedded in the artifact.
	Kernel string `json:",omitempty"`

	// Cmdline is the kernel command line.
	Cmdline string `json:",omitempty"`

	// Linuxkit is the path of the linuxkit executable.
	Linuxkit string `json:",omitempty"`

	// Output is the path of the artifact.
	Output string `json:",omitempty"`

	// WorkDir is the scratch location for intermediate artifacts.
	WorkDir string `json:",omitempty"`

	// Memory in MiB recorded in the header as the enclave default.
	Memory uint64 `json:",omitempty"`

	// CPUs recorded in the header as the enclave default.
	CPUs uint64 `json:",omitempty"`

	// RunConfig
	RunConfig RunConfig `json:",omitempty"`
}

// RunConfig provides runtime details
type RunConfig struct {
	// ShowWarnings
	ShowWarnings bool `json:",omitempty"`

	// ShowErrors
	ShowErrors bool `json:",omitempty"`

	// ShowDebug
	ShowDebug bool `json:",omitempty"`

	// Verbose
	Verbose bool `json:",omitempty"`

	// JSON prints results as json instead of tables
	JSON bool `json:",omitempty"`
}

// NewConfig construct instance of Config with default values
func NewConfig() *Config {
	return &Config{
		Dockerfile: constants.DefaultDockerfile,
		Linuxkit:   constants.DefaultLinuxkit,
		WorkDir:    constants.DefaultWorkDir,
		Memory:     constants.DefaultMemoryMiB,
		CPUs:       constants.DefaultCPUs,
	}
}
