package eif

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// DockerInfo is the part of the source image configuration the enclave
// init needs to start the workload.
type DockerInfo struct {
	Entrypoint []string `json:"entrypoint"`
	Cmd        []string `json:"cmd"`
	Env        []string `json:"env"`
	WorkingDir string   `json:"working_dir"`
}

// Metadata is the content of the metadata section. It must only hold
// values derived from the build inputs, never timestamps or host names.
type Metadata struct {
	ImageName        string     `json:"img_name"`
	ImageVersion     string     `json:"img_version"`
	ImageID          string     `json:"img_id"`
	RepoDigests      []string   `json:"repo_digests"`
	Architecture     string     `json:"architecture"`
	OS               string     `json:"os"`
	Cmdline          string     `json:"cmdline"`
	InitDigest       string     `json:"init_digest"`
	KernelDigest     string     `json:"kernel_digest"`
	BuildTool        string     `json:"build_tool"`
	BuildToolVersion string     `json:"build_tool_version"`
	DockerInfo       DockerInfo `json:"docker_info"`
}

// Marshal encodes the metadata section
func (m *Metadata) Marshal() ([]byte, error) {
	c := *m
	c.RepoDigests = append([]string{}, m.RepoDigests...)
	sort.Strings(c.RepoDigests)

	b, err := json.Marshal(&c)
	if err != nil {
		return nil, errors.Wrap(err, "encode metadata")
	}
	return b, nil
}

// ParseMetadata decodes a metadata section
func ParseMetadata(b []byte) (*Metadata, error) {
	m := &Metadata{}
	if err := json.Unmarshal(b, m); err != nil {
		return nil, errors.Wrap(err, "decode metadata")
	}
	return m, nil
}
