package types

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/nanovms/docker2eif/constants"
	"github.com/spf13/afero"
)

// ImageMode tells how the source image is obtained
type ImageMode int

const (
	// PullMode resolves an image tag from local storage or a registry
	PullMode ImageMode = iota
	// BuildMode builds the image from a local build context
	BuildMode
)

func (m ImageMode) String() string {
	if m == BuildMode {
		return "build"
	}
	return "pull"
}

// ImageReference identifies the source image either by tag or by build
// context. Exactly one of Tag and BuildContext is set.
type ImageReference struct {
	Tag          string
	BuildContext string
	Dockerfile   string
	AlwaysPull   bool
}

// Mode returns the resolution mode selected by the reference
func (r ImageReference) Mode() ImageMode {
	if r.BuildContext != "" {
		return BuildMode
	}
	return PullMode
}

func (r ImageReference) String() string {
	if r.Mode() == BuildMode {
		return filepath.Join(r.BuildContext, r.Dockerfile)
	}
	return r.Tag
}

// BuildConfig is the validated, read-only configuration of one build
type BuildConfig struct {
	image        ImageReference
	initPath     string
	kernelPath   string
	cmdline      string
	linuxkitPath string
	workDir      string
	output       string
	memory       uint64
	cpus         uint64
}

// NewBuildConfig validates c and returns the configuration a build runs with.
// The image reference is checked before fs is touched.
func NewBuildConfig(c *Config, fs afero.Fs) (*BuildConfig, error) {
	if c == nil {
		return nil, NewConfigError("", "missing configuration", nil)
	}

	tag := strings.TrimSpace(c.Image)
	buildContext := strings.TrimSpace(c.BuildContext)

	switch {
	case tag != "" && buildContext != "":
		return nil, NewConfigError(tag, "image tag and build context are mutually exclusive", nil)
	case tag == "" && buildContext == "":
		return nil, NewConfigError("", "either an image tag or a build context is required", nil)
	case buildContext != "" && c.Pull:
		return nil, NewConfigError(buildContext, "pull cannot be used with a build context", nil)
	}

	bc := &BuildConfig{
		image: ImageReference{
			Tag:          tag,
			BuildContext: buildContext,
			Dockerfile:   c.Dockerfile,
			AlwaysPull:   c.Pull,
		},
		initPath:     c.Init,
		kernelPath:   c.Kernel,
		cmdline:      c.Cmdline,
		linuxkitPath: c.Linuxkit,
		workDir:      c.WorkDir,
		output:       c.Output,
		memory:       c.Memory,
		cpus:         c.CPUs,
	}

	if bc.image.Dockerfile == "" {
		bc.image.Dockerfile = constants.DefaultDockerfile
	}
	if bc.linuxkitPath == "" {
		bc.linuxkitPath = constants.DefaultLinuxkit
	}
	if bc.workDir == "" {
		bc.workDir = constants.DefaultWorkDir
	}
	if bc.memory == 0 {
		bc.memory = constants.DefaultMemoryMiB
	}
	if bc.cpus == 0 {
		bc.cpus = constants.DefaultCPUs
	}

	if bc.initPath == "" {
		return nil, NewConfigError("", "init path is required", nil)
	}
	if bc.kernelPath == "" {
		return nil, NewConfigError("", "kernel path is required", nil)
	}
	if strings.TrimSpace(bc.cmdline) == "" {
		return nil, NewConfigError("", "kernel cmdline is required", nil)
	}
	if bc.output == "" {
		return nil, NewConfigError("", "output path is required", nil)
	}

	if err := CheckReadableFile(fs, bc.kernelPath, "kernel"); err != nil {
		return nil, err
	}
	if err := CheckReadableFile(fs, bc.initPath, "init"); err != nil {
		return nil, err
	}

	if info, err := fs.Stat(bc.workDir); err != nil {
		return nil, NewConfigError(bc.workDir, "working directory is not accessible", err)
	} else if !info.IsDir() {
		return nil, NewConfigError(bc.workDir, "working directory is not a directory", nil)
	}

	out := filepath.Clean(bc.output)
	if out == filepath.Clean(bc.kernelPath) || out == filepath.Clean(bc.initPath) {
		return nil, NewConfigError(bc.output, "output would overwrite an input file", nil)
	}
	if info, err := fs.Stat(bc.output); err == nil && info.IsDir() {
		return nil, NewConfigError(bc.output, "output is a directory", nil)
	}

	return bc, nil
}

// CheckReadableFile returns a ConfigError unless path names a non-empty
// regular file that can be opened for reading.
func CheckReadableFile(fs afero.Fs, path, what string) error {
	info, err := fs.Stat(path)
	if err != nil {
		return NewConfigError(path, what+" file does not exist", err)
	}
	if info.IsDir() {
		return NewConfigError(path, what+" path is a directory", nil)
	}
	if info.Size() == 0 {
		return NewConfigError(path, what+" file is empty", nil)
	}

	f, err := fs.Open(path)
	if err != nil {
		return NewConfigError(path, what+" file is not readable", err)
	}
	defer f.Close()

	var b [1]byte
	if _, err := f.Read(b[:]); err != nil && err != io.EOF {
		return NewConfigError(path, what+" file is not readable", err)
	}

	return nil
}

// Image returns the source image reference
func (c *BuildConfig) Image() ImageReference { return c.image }

// InitPath returns the path of the init binary
func (c *BuildConfig) InitPath() string { return c.initPath }

// KernelPath returns the path of the kernel image
func (c *BuildConfig) KernelPath() string { return c.kernelPath }

// Cmdline returns the kernel command line
func (c *BuildConfig) Cmdline() string { return c.cmdline }

// LinuxkitPath returns the path of the boot assembler tool
func (c *BuildConfig) LinuxkitPath() string { return c.linuxkitPath }

// WorkDir returns the scratch directory
func (c *BuildConfig) WorkDir() string { return c.workDir }

// Output returns the artifact path
func (c *BuildConfig) Output() string { return c.output }

// MemoryMiB returns the default enclave memory
func (c *BuildConfig) MemoryMiB() uint64 { return c.memory }

// CPUs returns the default enclave vcpu count
func (c *BuildConfig) CPUs() uint64 { return c.cpus }

func (c *BuildConfig) String() string {
	return fmt.Sprintf("%s image %s, kernel %s, init %s, output %s",
		c.image.Mode(), c.image, c.kernelPath, c.initPath, c.output)
}
