package eif

import (
	"bytes"
	"hash/crc32"
	"io"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// Image is an artifact opened for inspection
type Image struct {
	Header       Header
	Measurements *Measurements

	r    io.ReaderAt
	size int64
}

// SectionInfo describes one section of an opened artifact
type SectionInfo struct {
	Index  int           `json:"index"`
	Type   SectionType   `json:"type"`
	Offset uint64        `json:"offset"`
	Size   uint64        `json:"size"`
	Digest digest.Digest `json:"digest"`
}

// Open parses the header and measurement record of the artifact held by r
// and checks that the declared layout covers the file exactly. Contents
// are not hashed; use Verify for that.
func Open(r io.ReaderAt, size int64) (*Image, error) {
	if size < HeaderSize {
		return nil, errors.Wrapf(ErrTruncated, "%d bytes", size)
	}

	buf := make([]byte, HeaderSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	img := &Image{r: r, size: size}
	if err := img.Header.UnmarshalBinary(buf); err != nil {
		return nil, err
	}

	h := &img.Header
	if h.Magic != Magic {
		return nil, ErrBadMagic
	}
	if h.Version != Version {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", h.Version)
	}
	if int(h.NumSections) != len(SectionOrder) {
		return nil, errors.Wrapf(ErrLayout, "%d sections, want %d", h.NumSections, len(SectionOrder))
	}

	next := uint64(HeaderSize)
	for i, e := range h.Entries() {
		if e.Type != SectionOrder[i] {
			return nil, errors.Wrapf(ErrLayout, "section %d is %s, want %s", i, e.Type, SectionOrder[i])
		}
		if e.Offset != next {
			return nil, errors.Wrapf(ErrLayout, "section %d starts at %d, want %d", i, e.Offset, next)
		}
		end := e.Offset + e.Size
		if end < e.Offset || end > uint64(size) {
			return nil, errors.Wrapf(ErrTruncated, "section %d declares %d bytes at %d, file has %d", i, e.Size, e.Offset, size)
		}
		next = end
	}
	for i := int(h.NumSections); i < MaxSections; i++ {
		if h.Sections[i] != (SectionEntry{}) {
			return nil, errors.Wrapf(ErrLayout, "unused section entry %d is not empty", i)
		}
	}

	if h.MeasurementOffset != next {
		return nil, errors.Wrapf(ErrLayout, "measurements start at %d, want %d", h.MeasurementOffset, next)
	}
	end := h.MeasurementOffset + h.MeasurementSize
	if end < h.MeasurementOffset || end > uint64(size) {
		return nil, errors.Wrapf(ErrTruncated, "image declares %d bytes, file has %d", end, size)
	}
	if end != uint64(size) {
		return nil, errors.Wrapf(ErrLayout, "%d trailing bytes", uint64(size)-end)
	}

	record := make([]byte, h.MeasurementSize)
	if _, err := r.ReadAt(record, int64(h.MeasurementOffset)); err != nil {
		return nil, errors.Wrap(err, "read measurements")
	}
	img.Measurements = &Measurements{}
	if err := img.Measurements.UnmarshalBinary(record); err != nil {
		return nil, err
	}

	for i, e := range h.Entries() {
		alg, err := algorithmFromID(e.Algorithm)
		if err != nil {
			return nil, err
		}
		if alg != img.Measurements.Algorithm {
			return nil, errors.Wrapf(ErrLayout, "section %d measured with %s, record uses %s", i, alg, img.Measurements.Algorithm)
		}
		if i >= len(img.Measurements.Sections) || img.Measurements.Sections[i].Type != e.Type {
			return nil, errors.Wrapf(ErrLayout, "measurement record does not match section %d", i)
		}
		if img.Measurements.Sections[i].Digest != entryDigest(alg, e) {
			return nil, errors.Wrapf(ErrDigestMismatch, "header and measurement record disagree on %s", e.Type)
		}
	}

	return img, nil
}

func entryDigest(alg digest.Algorithm, e SectionEntry) digest.Digest {
	return digest.NewDigestFromBytes(alg, e.Digest[:alg.Size()])
}

// Sections describes the sections in layout order
func (img *Image) Sections() []SectionInfo {
	alg := img.Measurements.Algorithm
	infos := make([]SectionInfo, 0, img.Header.NumSections)
	for i, e := range img.Header.Entries() {
		infos = append(infos, SectionInfo{
			Index:  i,
			Type:   e.Type,
			Offset: e.Offset,
			Size:   e.Size,
			Digest: entryDigest(alg, e),
		})
	}
	return infos
}

// Size returns the size of the artifact
func (img *Image) Size() int64 {
	return img.size
}

// SectionReader returns a reader over the i-th section
func (img *Image) SectionReader(i int) *io.SectionReader {
	e := img.Header.Sections[i]
	return io.NewSectionReader(img.r, int64(e.Offset), int64(e.Size))
}

// ReadSection returns the content of the section of type t
func (img *Image) ReadSection(t SectionType) ([]byte, error) {
	for i, e := range img.Header.Entries() {
		if e.Type == t {
			b := make([]byte, e.Size)
			if _, err := io.ReadFull(img.SectionReader(i), b); err != nil {
				return nil, errors.Wrapf(err, "read %s section", t)
			}
			return b, nil
		}
	}
	return nil, errors.Errorf("no %s section", t)
}

// Metadata decodes the metadata section
func (img *Image) Metadata() (*Metadata, error) {
	b, err := img.ReadSection(SectionMetadata)
	if err != nil {
		return nil, err
	}
	return ParseMetadata(b)
}

// Verify hashes every section against its recorded digest and checks the
// image checksum.
func (img *Image) Verify() error {
	alg := img.Measurements.Algorithm
	crc := crc32.NewIEEE()

	for i, e := range img.Header.Entries() {
		h := alg.Hash()
		if _, err := io.Copy(io.MultiWriter(h, crc), img.SectionReader(i)); err != nil {
			return errors.Wrapf(err, "read %s section", e.Type)
		}
		if got := digest.NewDigest(alg, h); got != entryDigest(alg, e) {
			return errors.Wrapf(ErrDigestMismatch, "%s section is %s, header records %s", e.Type, got, entryDigest(alg, e))
		}
	}

	want, err := imageDigest(alg, img.Measurements.Sections)
	if err != nil {
		return err
	}
	if want != img.Measurements.Image {
		return errors.Wrap(ErrDigestMismatch, "image measurement")
	}

	record := io.NewSectionReader(img.r, int64(img.Header.MeasurementOffset), int64(img.Header.MeasurementSize))
	if _, err := io.Copy(crc, record); err != nil {
		return errors.Wrap(err, "read measurements")
	}

	prefix, err := img.Header.MarshalBinary()
	if err != nil {
		return err
	}
	sum := crc32.Update(crc.Sum32(), crc32.IEEETable, prefix[:HeaderSize-4])
	if sum != img.Header.CRC32 {
		return errors.Wrapf(ErrChecksum, "computed %08x, header records %08x", sum, img.Header.CRC32)
	}

	return nil
}

// Parse opens an artifact held in memory
func Parse(b []byte) (*Image, error) {
	return Open(bytes.NewReader(b), int64(len(b)))
}
