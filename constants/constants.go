package constants

const (
	// WarningColor used in warning texts
	WarningColor = "\033[1;33m%s\033[0m"
	// ErrorColor used in error texts
	ErrorColor = "\033[1;31m%s\033[0m"
)

const (
	// Version of docker2eif
	Version = "0.4.0"

	// ToolName is recorded in the metadata section of every artifact
	ToolName = "docker2eif"
)

const (
	// DefaultLinuxkit is looked up in $PATH when no linuxkit path is given
	DefaultLinuxkit = "linuxkit"

	// DefaultWorkDir is the scratch location for intermediate artifacts
	DefaultWorkDir = "."

	// DefaultDockerfile is the build descriptor looked up in a build context
	DefaultDockerfile = "Dockerfile"

	// DefaultMemoryMiB is the enclave memory recorded in the header when none is given
	DefaultMemoryMiB = 512

	// DefaultCPUs is the enclave vcpu count recorded in the header when none is given
	DefaultCPUs = 2
)

const (
	// DefaultConfigEnv names a json config file loaded when --config is absent
	DefaultConfigEnv = "DOCKER2EIF_DEFAULT_CONFIG"

	// RCFile is the per user config file looked up in the home directory
	RCFile = ".docker2eifrc"
)
