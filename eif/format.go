package eif

import (
	"bytes"
	_ "crypto/sha256" // registers sha256 for go-digest
	_ "crypto/sha512" // registers sha384 and sha512 for go-digest
	"encoding/binary"
	"fmt"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

const (
	// Version of the format written by this package
	Version uint16 = 4

	// MaxSections is the number of entries in the header section table
	MaxSections = 32

	// MaxDigestSize is the room reserved for a digest in a section entry
	MaxDigestSize = 64

	// HeaderSize is the encoded size of Header
	HeaderSize = 4 + 2 + 2 + 8 + 8 + 2 + 2 + MaxSections*sectionEntrySize + 8 + 8 + 4

	sectionEntrySize = 2 + 2 + 4 + 8 + 8 + MaxDigestSize

	// FlagArchAarch64 marks images built for arm64
	FlagArchAarch64 uint16 = 1
)

// Magic starts every artifact
var Magic = [4]byte{'.', 'e', 'i', 'f'}

// recordMagic starts the measurement record
var recordMagic = [4]byte{'E', 'I', 'F', 'M'}

// SectionType identifies the content of a section
type SectionType uint16

// Section types. The numbering is shared with other EIF tooling; 4 is
// reserved for signatures.
const (
	SectionInvalid   SectionType = 0
	SectionKernel    SectionType = 1
	SectionCmdline   SectionType = 2
	SectionRamdisk   SectionType = 3
	SectionSignature SectionType = 4
	SectionMetadata  SectionType = 5
)

// SectionOrder is the order sections are laid out in an artifact
var SectionOrder = []SectionType{SectionKernel, SectionRamdisk, SectionCmdline, SectionMetadata}

var sectionNames = map[SectionType]string{
	SectionInvalid:   "invalid",
	SectionKernel:    "kernel",
	SectionCmdline:   "cmdline",
	SectionRamdisk:   "ramdisk",
	SectionSignature: "signature",
	SectionMetadata:  "metadata",
}

func (t SectionType) String() string {
	if name, ok := sectionNames[t]; ok {
		return name
	}
	return fmt.Sprintf("section(%d)", uint16(t))
}

// MarshalText renders the type by name
func (t SectionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a section type name
func (t *SectionType) UnmarshalText(b []byte) error {
	for k, v := range sectionNames {
		if v == string(b) {
			*t = k
			return nil
		}
	}
	return errors.Errorf("unknown section type %q", string(b))
}

// algorithm ids as stored in section entries and the measurement record
var algorithmIDs = map[digest.Algorithm]uint16{
	digest.SHA256: 1,
	digest.SHA384: 2,
	digest.SHA512: 3,
}

// DefaultAlgorithm is used for measurements unless another one is requested
const DefaultAlgorithm = digest.SHA384

func algorithmID(alg digest.Algorithm) (uint16, error) {
	id, ok := algorithmIDs[alg]
	if !ok || !alg.Available() {
		return 0, errors.Errorf("unsupported digest algorithm %q", alg)
	}
	return id, nil
}

func algorithmFromID(id uint16) (digest.Algorithm, error) {
	for alg, v := range algorithmIDs {
		if v == id {
			return alg, nil
		}
	}
	return "", errors.Errorf("unknown digest algorithm id %d", id)
}

// SectionEntry describes one section in the header table
type SectionEntry struct {
	Type      SectionType
	Algorithm uint16
	Flags     uint32
	Offset    uint64
	Size      uint64
	Digest    [MaxDigestSize]byte
}

// Header is the fixed size table at the start of an artifact
type Header struct {
	Magic             [4]byte
	Version           uint16
	Flags             uint16
	DefaultMemory     uint64
	DefaultCPUs       uint64
	Reserved          uint16
	NumSections       uint16
	Sections          [MaxSections]SectionEntry
	MeasurementOffset uint64
	MeasurementSize   uint64
	CRC32             uint32
}

// MarshalBinary encodes the header big-endian
func (h *Header) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	if err := binary.Write(&buf, binary.BigEndian, h); err != nil {
		return nil, errors.Wrap(err, "encode header")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a header written by MarshalBinary
func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return errors.Wrapf(ErrTruncated, "header is %d bytes, need %d", len(b), HeaderSize)
	}
	return binary.Read(bytes.NewReader(b[:HeaderSize]), binary.BigEndian, h)
}

// Entries returns the used part of the section table
func (h *Header) Entries() []SectionEntry {
	n := int(h.NumSections)
	if n > MaxSections {
		n = MaxSections
	}
	return h.Sections[:n]
}

// Arch returns the architecture encoded in the header flags
func (h *Header) Arch() string {
	if h.Flags&FlagArchAarch64 != 0 {
		return "arm64"
	}
	return "amd64"
}

// Format errors returned when reading an artifact
var (
	ErrBadMagic           = errors.New("not an EIF image")
	ErrUnsupportedVersion = errors.New("unsupported EIF version")
	ErrTruncated          = errors.New("EIF image is truncated")
	ErrLayout             = errors.New("inconsistent EIF section layout")
	ErrChecksum           = errors.New("EIF checksum mismatch")
	ErrDigestMismatch     = errors.New("EIF section digest mismatch")
)
