package eif

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// SectionMeasurement is the digest of one section
type SectionMeasurement struct {
	Type   SectionType   `json:"type"`
	Digest digest.Digest `json:"digest"`
}

// Measurements are the per-section digests of an artifact. Each digest is
// computed over its section alone, so sections can be verified one by one.
// Image is the digest of the concatenated raw section digests in layout
// order and identifies the artifact as a whole.
type Measurements struct {
	Algorithm digest.Algorithm     `json:"algorithm"`
	Sections  []SectionMeasurement `json:"sections"`
	Image     digest.Digest        `json:"image"`
}

// Get returns the digest of the section of type t
func (m *Measurements) Get(t SectionType) (digest.Digest, bool) {
	for _, s := range m.Sections {
		if s.Type == t {
			return s.Digest, true
		}
	}
	return "", false
}

// Equal reports whether both sets hold the same digests
func (m *Measurements) Equal(o *Measurements) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Algorithm != o.Algorithm || m.Image != o.Image || len(m.Sections) != len(o.Sections) {
		return false
	}
	for i := range m.Sections {
		if m.Sections[i] != o.Sections[i] {
			return false
		}
	}
	return true
}

func (m *Measurements) String() string {
	var sb strings.Builder
	for _, s := range m.Sections {
		fmt.Fprintf(&sb, "%-9s %s\n", s.Type, s.Digest)
	}
	fmt.Fprintf(&sb, "%-9s %s", "image", m.Image)
	return sb.String()
}

func rawDigest(d digest.Digest) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid digest %q", d)
	}
	return hex.DecodeString(d.Encoded())
}

func imageDigest(alg digest.Algorithm, sections []SectionMeasurement) (digest.Digest, error) {
	h := alg.Hash()
	for _, s := range sections {
		raw, err := rawDigest(s.Digest)
		if err != nil {
			return "", err
		}
		h.Write(raw)
	}
	return digest.NewDigest(alg, h), nil
}

// MarshalBinary encodes the measurement record appended after the sections
func (m *Measurements) MarshalBinary() ([]byte, error) {
	id, err := algorithmID(m.Algorithm)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(recordMagic[:])
	_ = binary.Write(&buf, binary.BigEndian, id)
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(m.Sections)))

	for _, s := range m.Sections {
		if s.Digest.Algorithm() != m.Algorithm {
			return nil, errors.Errorf("%s digest uses %s, record uses %s", s.Type, s.Digest.Algorithm(), m.Algorithm)
		}
		_ = binary.Write(&buf, binary.BigEndian, uint16(s.Type))
		raw, err := rawDigest(s.Digest)
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}

	raw, err := rawDigest(m.Image)
	if err != nil {
		return nil, err
	}
	buf.Write(raw)

	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a record written by MarshalBinary
func (m *Measurements) UnmarshalBinary(b []byte) error {
	r := bytes.NewReader(b)

	var magic [4]byte
	var id, count uint16
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return errors.Wrap(ErrTruncated, "measurement record")
	}
	if magic != recordMagic {
		return errors.Wrap(ErrLayout, "measurement record magic")
	}
	if err := binary.Read(r, binary.BigEndian, &id); err != nil {
		return errors.Wrap(ErrTruncated, "measurement record")
	}
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return errors.Wrap(ErrTruncated, "measurement record")
	}

	alg, err := algorithmFromID(id)
	if err != nil {
		return err
	}

	raw := make([]byte, alg.Size())
	sections := make([]SectionMeasurement, 0, count)
	for i := 0; i < int(count); i++ {
		var t uint16
		if err := binary.Read(r, binary.BigEndian, &t); err != nil {
			return errors.Wrap(ErrTruncated, "measurement record")
		}
		if _, err := io.ReadFull(r, raw); err != nil {
			return errors.Wrap(ErrTruncated, "measurement record")
		}
		sections = append(sections, SectionMeasurement{
			Type:   SectionType(t),
			Digest: digest.NewDigestFromBytes(alg, raw),
		})
	}

	if _, err := io.ReadFull(r, raw); err != nil {
		return errors.Wrap(ErrTruncated, "measurement record")
	}
	if r.Len() != 0 {
		return errors.Wrapf(ErrLayout, "%d trailing bytes after measurement record", r.Len())
	}

	m.Algorithm = alg
	m.Sections = sections
	m.Image = digest.NewDigestFromBytes(alg, raw)
	return nil
}

func recordSize(alg digest.Algorithm, sections int) int {
	return 4 + 2 + 2 + sections*(2+alg.Size()) + alg.Size()
}
