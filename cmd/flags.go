package cmd

import (
	"github.com/nanovms/docker2eif/types"
)

// MergeConfigFlags are flags structures able to override configuration attributes
type MergeConfigFlags interface {
	MergeToConfig(config *types.Config) error
}

// MergeConfigContainer is responsible for merge a list of flags attributes to configuration
type MergeConfigContainer struct {
	flags []MergeConfigFlags
}

// NewMergeConfigContainer returns an instance of MergeConfigContainer
// Flags order matters.
func NewMergeConfigContainer(flags ...MergeConfigFlags) *MergeConfigContainer {
	return &MergeConfigContainer{flags}
}

// Merge uses a list of flags to override configuration properties.
func (m *MergeConfigContainer) Merge(config *types.Config) error {
	for _, f := range m.flags {
		if err := f.MergeToConfig(config); err != nil {
			return err
		}
	}

	return nil
}
