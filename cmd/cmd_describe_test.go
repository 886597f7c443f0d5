package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nanovms/docker2eif/eif"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttacon/chalk"
)

func writeImage(t *testing.T, fs afero.Fs, path string) *eif.Measurements {
	t.Helper()

	meta := &eif.Metadata{ImageName: "hello-enclave", ImageVersion: "v1", ImageID: "sha256:ab", Cmdline: "console=ttyS0"}
	metaBytes, err := meta.Marshal()
	require.NoError(t, err)

	f, err := fs.Create(path)
	require.NoError(t, err)
	defer f.Close()

	m, err := eif.NewWriter(f, eif.WithResources(1024, 4), eif.WithArch("arm64")).Write(eif.SectionSet{
		Kernel:   bytes.Repeat([]byte{0x90}, 2048),
		Ramdisk:  bytes.Repeat([]byte{0x1f}, 512),
		Cmdline:  []byte("console=ttyS0"),
		Metadata: metaBytes,
	})
	require.NoError(t, err)
	return m
}

func TestDescribeImage(t *testing.T) {
	t.Run("should describe a valid image", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		m := writeImage(t, fs, "/hello.eif")

		d, err := describeImage(fs, "/hello.eif")

		require.NoError(t, err)
		assert.True(t, d.Verified)
		assert.Empty(t, d.Error)
		assert.Equal(t, eif.Version, d.Version)
		assert.Equal(t, "arm64", d.Arch)
		assert.Equal(t, uint64(1024), d.MemoryMiB)
		assert.Equal(t, uint64(4), d.CPUs)
		assert.True(t, m.Equal(d.Measurements))
		require.Len(t, d.Sections, 4)
		assert.Equal(t, eif.SectionRamdisk, d.Sections[1].Type)
		assert.Equal(t, uint64(512), d.Sections[1].Size)
		require.NotNil(t, d.Metadata)
		assert.Equal(t, "hello-enclave", d.Metadata.ImageName)

		var out bytes.Buffer
		printDescription(&out, d)
		assert.Contains(t, out.String(), "hello-enclave:v1")
		assert.Contains(t, out.String(), "ramdisk")
		assert.Contains(t, out.String(), m.Image.String())
		assert.Contains(t, out.String(), "Verified: "+chalk.Green.Color("yes"))
	})

	t.Run("should describe a corrupt image and report the error", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeImage(t, fs, "/hello.eif")

		b, err := afero.ReadFile(fs, "/hello.eif")
		require.NoError(t, err)
		b[eif.HeaderSize+100] ^= 0xff
		require.NoError(t, afero.WriteFile(fs, "/hello.eif", b, 0644))

		d, err := describeImage(fs, "/hello.eif")

		assert.True(t, errors.Is(err, eif.ErrDigestMismatch))
		require.NotNil(t, d)
		assert.False(t, d.Verified)
		assert.Contains(t, d.Error, "kernel")

		var out bytes.Buffer
		printDescription(&out, d)
		assert.Contains(t, out.String(), "Verified: "+chalk.Red.Color("no"))
	})

	t.Run("should reject a file that is not an image", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/notes.txt", bytes.Repeat([]byte("text"), 2048), 0644))

		d, err := describeImage(fs, "/notes.txt")

		assert.Nil(t, d)
		assert.True(t, errors.Is(err, eif.ErrBadMagic))
	})

	t.Run("should report a missing file", func(t *testing.T) {
		d, err := describeImage(afero.NewMemMapFs(), "/missing.eif")

		assert.Nil(t, d)
		assert.Error(t, err)
	})
}
