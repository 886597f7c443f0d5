package testutils

import (
	"bytes"
	"path/filepath"
	"sort"

	"github.com/cavaliergopher/cpio"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

// Kernel and Init are stand-ins for a bzImage and a static init binary.
// Only their bytes matter to the pipeline.
var (
	Kernel = append([]byte("MZ\x00\x00bzImage"), bytes.Repeat([]byte{0x90}, 4096)...)
	Init   = append([]byte("\x7fELF\x02\x01\x01"), bytes.Repeat([]byte{0x00}, 1024)...)
)

// Cmdline used by pipeline tests
const Cmdline = "console=ttyS0"

// BuildInputs are the paths of the files a build reads from disk
type BuildInputs struct {
	Dir    string
	Kernel string
	Init   string
	Output string
}

// WriteBuildInputs writes the kernel and init fixtures under dir
func WriteBuildInputs(fs afero.Fs, dir string) (*BuildInputs, error) {
	in := &BuildInputs{
		Dir:    dir,
		Kernel: filepath.Join(dir, "bzImage"),
		Init:   filepath.Join(dir, "init"),
		Output: filepath.Join(dir, "enclave.eif"),
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if err := afero.WriteFile(fs, in.Kernel, Kernel, 0644); err != nil {
		return nil, err
	}
	if err := afero.WriteFile(fs, in.Init, Init, 0755); err != nil {
		return nil, err
	}
	return in, nil
}

// NewInitrd returns a gzipped newc archive holding files. Entries are
// written in name order so equal inputs give equal bytes.
func NewInitrd(files map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	w := cpio.NewWriter(gz)

	for _, name := range names {
		data := files[name]
		hdr := &cpio.Header{
			Name: name,
			Mode: cpio.TypeReg | 0755,
			Size: int64(len(data)),
		}
		if err := w.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
