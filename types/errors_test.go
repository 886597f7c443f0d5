package types_test

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/nanovms/docker2eif/types"
	"github.com/stretchr/testify/assert"
)

func TestBuildErrors(t *testing.T) {
	cause := fs.ErrNotExist

	errs := []struct {
		err      error
		expected string
	}{
		{types.NewConfigError("", "kernel path is required", nil), "config: kernel path is required"},
		{types.NewConfigError("/work/init", "init file does not exist", cause), "config: init file does not exist (/work/init): file does not exist"},
		{types.NewResolutionError("alpine:latest", "cannot pull image", cause), "resolve: cannot pull image (alpine:latest): file does not exist"},
		{types.NewAssemblyError("/work", "linuxkit produced no initrd", nil), "assemble: linuxkit produced no initrd (/work)"},
		{types.NewWriteError("hello.eif", "cannot open output", cause), "write: cannot open output (hello.eif): file does not exist"},
	}

	for _, tt := range errs {
		assert.Equal(t, tt.expected, tt.err.Error())
	}

	werr := types.NewWriteError("hello.eif", "cannot open output", cause)
	assert.True(t, errors.Is(werr, fs.ErrNotExist))

	var aerr *types.AssemblyError
	assert.False(t, errors.As(werr, &aerr))
}
