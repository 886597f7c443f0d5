package linuxkit

import (
	"testing"

	"github.com/nanovms/docker2eif/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInitrd(t *testing.T) {
	valid, err := testutils.NewInitrd(map[string][]byte{"init": testutils.Init, "env": nil})
	require.NoError(t, err)

	withoutInit, err := testutils.NewInitrd(map[string][]byte{"cmd": []byte("/bin/sh\n")})
	require.NoError(t, err)

	empty, err := testutils.NewInitrd(nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		data  []byte
		error string
	}{
		{"complete archive", valid, ""},
		{"truncated archive", valid[:len(valid)/2], "cpio entry"},
		{"archive without init", withoutInit, "no init entry"},
		{"empty archive", empty, "empty archive"},
		{"uncompressed data", []byte("070701"), "not gzip compressed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInitrd(tt.data)
			if tt.error == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.error)
			}
		})
	}
}
