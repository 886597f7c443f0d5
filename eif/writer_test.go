package eif

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/nanovms/docker2eif/types"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSections() SectionSet {
	meta := &Metadata{
		ImageName:    "hello-enclave",
		ImageVersion: "latest",
		ImageID:      "sha256:" + string(bytes.Repeat([]byte("a"), 64)),
		Cmdline:      "console=ttyS0",
		BuildTool:    "docker2eif",
	}
	metaBytes, _ := meta.Marshal()

	return SectionSet{
		Kernel:   bytes.Repeat([]byte{0x4d, 0x5a}, 1024),
		Ramdisk:  bytes.Repeat([]byte("initramfs"), 300),
		Cmdline:  []byte("console=ttyS0"),
		Metadata: metaBytes,
	}
}

func newOutput(t *testing.T, fs afero.Fs, name string) afero.File {
	t.Helper()
	f, err := fs.Create(name)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func readAll(t *testing.T, fs afero.Fs, name string) []byte {
	t.Helper()
	b, err := afero.ReadFile(fs, name)
	require.NoError(t, err)
	return b
}

type failingOutput struct {
	afero.File
	failAfter int
	written   int
}

func (f *failingOutput) Write(p []byte) (int, error) {
	if f.written+len(p) > f.failAfter {
		return 0, errors.New("no space left on device")
	}
	n, err := f.File.Write(p)
	f.written += n
	return n, err
}

func TestWriter(t *testing.T) {
	t.Run("should lay out sections contiguously in the fixed order", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		sections := testSections()

		m, err := NewWriter(newOutput(t, fs, "out.eif")).Write(sections)
		require.NoError(t, err)

		b := readAll(t, fs, "out.eif")
		assert.Equal(t, sections.Size(DefaultAlgorithm), int64(len(b)))

		img, err := Parse(b)
		require.NoError(t, err)
		require.NoError(t, img.Verify())

		infos := img.Sections()
		require.Len(t, infos, 4)
		assert.Equal(t, uint64(HeaderSize), infos[0].Offset)
		for i, info := range infos {
			assert.Equal(t, SectionOrder[i], info.Type)
			if i+1 < len(infos) {
				assert.Equal(t, info.Offset+info.Size, infos[i+1].Offset)
			}
		}

		kernel, err := img.ReadSection(SectionKernel)
		require.NoError(t, err)
		assert.Equal(t, sections.Kernel, kernel)

		cmdline, err := img.ReadSection(SectionCmdline)
		require.NoError(t, err)
		assert.Equal(t, []byte("console=ttyS0"), cmdline)

		assert.True(t, m.Equal(img.Measurements))
	})

	t.Run("should measure each section on its own", func(t *testing.T) {
		sections := testSections()

		m, err := NewWriter(newOutput(t, afero.NewMemMapFs(), "out.eif")).Write(sections)
		require.NoError(t, err)

		assert.Equal(t, digest.SHA384, m.Algorithm)
		require.Len(t, m.Sections, 4)

		kernel, _ := m.Get(SectionKernel)
		assert.Equal(t, digest.SHA384.FromBytes(sections.Kernel), kernel)
		ramdisk, _ := m.Get(SectionRamdisk)
		assert.Equal(t, digest.SHA384.FromBytes(sections.Ramdisk), ramdisk)
		cmdline, _ := m.Get(SectionCmdline)
		assert.Equal(t, digest.SHA384.FromBytes(sections.Cmdline), cmdline)
		metadata, _ := m.Get(SectionMetadata)
		assert.Equal(t, digest.SHA384.FromBytes(sections.Metadata), metadata)

		for _, s := range m.Sections {
			assert.NotEqual(t, digest.SHA384.FromBytes(make([]byte, 0)), s.Digest)
		}
	})

	t.Run("changing one section leaves the other digests untouched", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		a := testSections()
		b := testSections()
		b.Cmdline = []byte("console=ttyS0 quiet")

		ma, err := NewWriter(newOutput(t, fs, "a.eif")).Write(a)
		require.NoError(t, err)
		mb, err := NewWriter(newOutput(t, fs, "b.eif")).Write(b)
		require.NoError(t, err)

		for _, ty := range []SectionType{SectionKernel, SectionRamdisk, SectionMetadata} {
			da, _ := ma.Get(ty)
			db, _ := mb.Get(ty)
			assert.Equal(t, da, db, ty.String())
		}
		ca, _ := ma.Get(SectionCmdline)
		cb, _ := mb.Get(SectionCmdline)
		assert.NotEqual(t, ca, cb)
		assert.NotEqual(t, ma.Image, mb.Image)
	})

	t.Run("identical inputs produce identical artifacts", func(t *testing.T) {
		fs := afero.NewMemMapFs()

		m1, err := NewWriter(newOutput(t, fs, "1.eif"), WithResources(512, 2)).Write(testSections())
		require.NoError(t, err)
		m2, err := NewWriter(newOutput(t, fs, "2.eif"), WithResources(512, 2)).Write(testSections())
		require.NoError(t, err)

		assert.Equal(t, readAll(t, fs, "1.eif"), readAll(t, fs, "2.eif"))
		assert.True(t, m1.Equal(m2))
	})

	t.Run("should replace previous content of the output", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "out.eif", bytes.Repeat([]byte{0xff}, 1<<16), 0644))

		f, err := fs.OpenFile("out.eif", os.O_RDWR, 0644)
		require.NoError(t, err)
		defer f.Close()

		sections := testSections()
		_, err = NewWriter(f).Write(sections)
		require.NoError(t, err)

		b := readAll(t, fs, "out.eif")
		assert.Equal(t, sections.Size(DefaultAlgorithm), int64(len(b)))
		_, err = Parse(b)
		assert.NoError(t, err)
	})

	t.Run("should record resources and architecture in the header", func(t *testing.T) {
		fs := afero.NewMemMapFs()

		_, err := NewWriter(newOutput(t, fs, "out.eif"), WithResources(1024, 4), WithArch("arm64")).Write(testSections())
		require.NoError(t, err)

		img, err := Parse(readAll(t, fs, "out.eif"))
		require.NoError(t, err)
		assert.Equal(t, uint64(1024), img.Header.DefaultMemory)
		assert.Equal(t, uint64(4), img.Header.DefaultCPUs)
		assert.Equal(t, "arm64", img.Header.Arch())
	})

	t.Run("should support other digest algorithms", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		sections := testSections()

		m, err := NewWriter(newOutput(t, fs, "out.eif"), WithAlgorithm(digest.SHA256)).Write(sections)
		require.NoError(t, err)

		img, err := Parse(readAll(t, fs, "out.eif"))
		require.NoError(t, err)
		require.NoError(t, img.Verify())
		assert.Equal(t, digest.SHA256, img.Measurements.Algorithm)
		kernel, _ := m.Get(SectionKernel)
		assert.Equal(t, digest.SHA256.FromBytes(sections.Kernel), kernel)
	})

	t.Run("should reject unknown digest algorithms", func(t *testing.T) {
		fs := afero.NewMemMapFs()

		_, err := NewWriter(newOutput(t, fs, "out.eif"), WithAlgorithm(digest.Algorithm("md5"))).Write(testSections())

		var writeErr *types.WriteError
		assert.True(t, errors.As(err, &writeErr))
	})

	t.Run("should leave an empty output when a section write fails", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		out := &failingOutput{File: newOutput(t, fs, "out.eif"), failAfter: HeaderSize + 100}

		m, err := NewWriter(out, WithName("out.eif")).Write(testSections())

		assert.Nil(t, m)
		var writeErr *types.WriteError
		require.True(t, errors.As(err, &writeErr))
		assert.Contains(t, err.Error(), "kernel section")
		assert.Contains(t, err.Error(), "out.eif")

		b := readAll(t, fs, "out.eif")
		assert.Empty(t, b)
		_, err = Parse(b)
		assert.True(t, errors.Is(err, ErrTruncated))
	})

	t.Run("should leave an empty output when the header write fails", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		sections := testSections()
		size := int(sections.Size(DefaultAlgorithm))
		out := &failingOutput{File: newOutput(t, fs, "out.eif"), failAfter: size}

		_, err := NewWriter(out).Write(sections)

		var writeErr *types.WriteError
		require.True(t, errors.As(err, &writeErr))
		assert.Contains(t, err.Error(), "header")
		assert.Empty(t, readAll(t, fs, "out.eif"))
	})
}
