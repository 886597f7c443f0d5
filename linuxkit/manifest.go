package linuxkit

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Manifest is the linuxkit build description of the boot ramdisk
type Manifest struct {
	Kernel Kernel   `yaml:"kernel"`
	Init   []string `yaml:"init"`
	Files  []File   `yaml:"files,omitempty"`
}

// Kernel holds the kernel section of a manifest
type Kernel struct {
	Cmdline string `yaml:"cmdline"`
}

// File is a file linuxkit adds to the ramdisk, either copied from Source
// on the host or created with Contents.
type File struct {
	Path     string `yaml:"path"`
	Source   string `yaml:"source,omitempty"`
	Contents string `yaml:"contents,omitempty"`
	Mode     string `yaml:"mode,omitempty"`
}

// Ramdisk paths the enclave init reads the workload from
const (
	InitFile = "init"
	CmdFile  = "cmd"
	EnvFile  = "env"
)

// NewManifest describes a ramdisk with image as root filesystem, the init
// binary at initPath and the workload command and environment.
func NewManifest(image, initPath, cmdline string, command, env []string) *Manifest {
	return &Manifest{
		Kernel: Kernel{Cmdline: cmdline},
		Init:   []string{image},
		Files: []File{
			{Path: InitFile, Source: initPath, Mode: "0755"},
			{Path: CmdFile, Contents: lines(command), Mode: "0644"},
			{Path: EnvFile, Contents: lines(env), Mode: "0644"},
		},
	}
}

func lines(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.Join(values, "\n") + "\n"
}

// Marshal encodes the manifest as YAML
func (m *Manifest) Marshal() ([]byte, error) {
	b, err := yaml.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "encode linuxkit manifest")
	}
	return b, nil
}

// ParseManifest decodes a manifest written by Marshal
func ParseManifest(b []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := yaml.Unmarshal(b, m); err != nil {
		return nil, errors.Wrap(err, "decode linuxkit manifest")
	}
	return m, nil
}
