package docker

import (
	"path/filepath"
	"strings"

	"github.com/distribution/reference"
)

// ParseImageTag normalizes an image tag the way the docker CLI does. A tag
// without a version resolves to :latest.
func ParseImageTag(tag string) (reference.Named, error) {
	if tag == "" {
		return nil, reference.ErrNameEmpty
	}

	named, err := reference.ParseNormalizedNamed(tag)
	if err != nil {
		if _, lerr := reference.ParseNormalizedNamed(strings.ToLower(tag)); lerr == nil {
			return nil, reference.ErrNameContainsUppercase
		}
		return nil, err
	}

	if len(named.Name()) > reference.NameTotalLengthMax {
		return nil, reference.ErrNameTooLong
	}

	return reference.TagNameOnly(named), nil
}

// ImageNameAndVersion splits a docker image tag into the image name and
// its version. Digest references use the digest as version.
func ImageNameAndVersion(tag string) (string, string, error) {
	named, err := ParseImageTag(tag)
	if err != nil {
		return "", "", err
	}

	name := reference.FamiliarName(named)
	version := ""
	switch r := named.(type) {
	case reference.Tagged:
		version = r.Tag()
	case reference.Digested:
		version = r.Digest().String()
	}

	return name, version, nil
}

// BuildTag returns the tag an image built from contextDir is stored under.
// It only depends on the directory name, so rebuilding a context replaces
// the previous image.
func BuildTag(contextDir string) string {
	base := strings.ToLower(filepath.Base(filepath.Clean(contextDir)))

	// runs of separators or invalid characters become a single '-'
	var sb strings.Builder
	var sep rune
	seps := 0
	for _, r := range base {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			if seps > 0 && sb.Len() > 0 {
				if seps > 1 || !strings.ContainsRune("._-", sep) {
					sep = '-'
				}
				sb.WriteRune(sep)
			}
			sb.WriteRune(r)
			seps = 0
			continue
		}
		sep = r
		seps++
	}

	name := sb.String()
	if len(name) > buildTagMaxName {
		name = strings.TrimRight(name[:buildTagMaxName], "._-")
	}
	if name == "" {
		name = "context"
	}
	return "docker2eif/" + name + ":latest"
}

const buildTagMaxName = 200
