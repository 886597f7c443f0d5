package eif

import (
	"hash/crc32"
	"io"

	"github.com/nanovms/docker2eif/types"
	"github.com/opencontainers/go-digest"
)

// Output is where an artifact is written. *os.File and afero.File satisfy it.
type Output interface {
	io.Writer
	io.Seeker
	Truncate(size int64) error
}

// SectionSet holds the content of every section of an artifact
type SectionSet struct {
	Kernel   []byte
	Ramdisk  []byte
	Cmdline  []byte
	Metadata []byte
}

func (s *SectionSet) data(t SectionType) []byte {
	switch t {
	case SectionKernel:
		return s.Kernel
	case SectionRamdisk:
		return s.Ramdisk
	case SectionCmdline:
		return s.Cmdline
	case SectionMetadata:
		return s.Metadata
	}
	return nil
}

// Size returns the size of the artifact the set serializes to
func (s *SectionSet) Size(alg digest.Algorithm) int64 {
	size := int64(HeaderSize + recordSize(alg, len(SectionOrder)))
	for _, t := range SectionOrder {
		size += int64(len(s.data(t)))
	}
	return size
}

// Writer serializes artifacts
type Writer struct {
	out       Output
	name      string
	algorithm digest.Algorithm
	memory    uint64
	cpus      uint64
	flags     uint16
	progress  io.Writer
}

// WriterOption configures a Writer
type WriterOption func(*Writer)

// WithAlgorithm selects the digest algorithm of the measurements
func WithAlgorithm(alg digest.Algorithm) WriterOption {
	return func(w *Writer) {
		w.algorithm = alg
	}
}

// WithResources records the default enclave memory (MiB) and vcpu count
func WithResources(memory, cpus uint64) WriterOption {
	return func(w *Writer) {
		w.memory = memory
		w.cpus = cpus
	}
}

// WithArch records the architecture of the kernel in the header flags
func WithArch(arch string) WriterOption {
	return func(w *Writer) {
		if arch == "arm64" || arch == "aarch64" {
			w.flags |= FlagArchAarch64
		} else {
			w.flags &^= FlagArchAarch64
		}
	}
}

// WithProgress tees section bytes to p as they are written
func WithProgress(p io.Writer) WriterOption {
	return func(w *Writer) {
		w.progress = p
	}
}

// WithName sets the name used for out in errors, usually its path
func WithName(name string) WriterOption {
	return func(w *Writer) {
		w.name = name
	}
}

// NewWriter returns a Writer serializing to out
func NewWriter(out Output, opts ...WriterOption) *Writer {
	w := &Writer{
		out:       out,
		algorithm: DefaultAlgorithm,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write serializes sections and returns their measurements.
//
// The header is written last: until then the output starts with zeroes
// and is not recognized as an artifact. When any step fails the output is
// truncated to zero length and a *types.WriteError is returned.
func (w *Writer) Write(sections SectionSet) (m *Measurements, err error) {
	defer func() {
		if err != nil {
			w.discard()
		}
	}()

	algID, aerr := algorithmID(w.algorithm)
	if aerr != nil {
		return nil, types.NewWriteError(w.name, "cannot measure sections", aerr)
	}

	if err := w.out.Truncate(0); err != nil {
		return nil, types.NewWriteError(w.name, "cannot truncate output", err)
	}
	if _, err := w.out.Seek(0, io.SeekStart); err != nil {
		return nil, types.NewWriteError(w.name, "cannot seek output", err)
	}
	if _, err := w.out.Write(make([]byte, HeaderSize)); err != nil {
		return nil, types.NewWriteError(w.name, "cannot reserve header", err)
	}

	header := Header{
		Magic:         Magic,
		Version:       Version,
		Flags:         w.flags,
		DefaultMemory: w.memory,
		DefaultCPUs:   w.cpus,
		NumSections:   uint16(len(SectionOrder)),
	}

	crc := crc32.NewIEEE()
	m = &Measurements{Algorithm: w.algorithm}
	offset := uint64(HeaderSize)

	for i, t := range SectionOrder {
		data := sections.data(t)
		h := w.algorithm.Hash()

		dst := []io.Writer{w.out, h, crc}
		if w.progress != nil {
			dst = append(dst, w.progress)
		}
		if _, err := io.MultiWriter(dst...).Write(data); err != nil {
			return nil, types.NewWriteError(w.name, "cannot write "+t.String()+" section", err)
		}

		d := digest.NewDigest(w.algorithm, h)
		entry := SectionEntry{
			Type:      t,
			Algorithm: algID,
			Offset:    offset,
			Size:      uint64(len(data)),
		}
		raw, _ := rawDigest(d)
		copy(entry.Digest[:], raw)
		header.Sections[i] = entry

		m.Sections = append(m.Sections, SectionMeasurement{Type: t, Digest: d})
		offset += uint64(len(data))
	}

	m.Image, err = imageDigest(w.algorithm, m.Sections)
	if err != nil {
		return nil, types.NewWriteError(w.name, "cannot measure image", err)
	}

	record, err := m.MarshalBinary()
	if err != nil {
		return nil, types.NewWriteError(w.name, "cannot encode measurements", err)
	}
	if _, err := io.MultiWriter(w.out, crc).Write(record); err != nil {
		return nil, types.NewWriteError(w.name, "cannot write measurements", err)
	}
	header.MeasurementOffset = offset
	header.MeasurementSize = uint64(len(record))

	prefix, err := header.MarshalBinary()
	if err != nil {
		return nil, types.NewWriteError(w.name, "cannot encode header", err)
	}
	header.CRC32 = crc32.Update(crc.Sum32(), crc32.IEEETable, prefix[:HeaderSize-4])

	encoded, err := header.MarshalBinary()
	if err != nil {
		return nil, types.NewWriteError(w.name, "cannot encode header", err)
	}
	if _, err := w.out.Seek(0, io.SeekStart); err != nil {
		return nil, types.NewWriteError(w.name, "cannot seek output", err)
	}
	if _, err := w.out.Write(encoded); err != nil {
		return nil, types.NewWriteError(w.name, "cannot write header", err)
	}

	return m, nil
}

// discard leaves an empty output behind after a failed write
func (w *Writer) discard() {
	_ = w.out.Truncate(0)
	_, _ = w.out.Seek(0, io.SeekStart)
}
