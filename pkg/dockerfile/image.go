package dockerfile

import (
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// ImageRef is a parsed Docker image reference. Empty fields were absent
// from the reference. No validation is performed beyond splitting; invalid
// characters pass through untouched.
type ImageRef struct {
	Registry string `json:"registry,omitempty"`
	Image    string `json:"image"`
	Tag      string `json:"tag,omitempty"`
	Digest   string `json:"digest,omitempty"`
}

// isRegistry reports whether the first /-separated segment of a reference
// names a registry. A segment is a registry when it contains a dot or a
// colon, or equals "localhost"; anything else would be ambiguous with a
// Docker Hub namespace.
func isRegistry(token string) bool {
	return token == "localhost" || strings.ContainsAny(token, ".:")
}

// ParseImageRef splits an image reference into registry, image, tag, and
// digest parts.
//
//	alpine               -> image "alpine"
//	alpine:3.10          -> image "alpine", tag "3.10"
//	org/app:v1           -> image "org/app", tag "v1"
//	foo:443/bar          -> registry "foo:443", image "bar"
//	alpine@sha256:abc... -> image "alpine", digest "sha256:abc..."
func ParseImageRef(s string) ImageRef {
	var ref ImageRef

	if i := strings.IndexByte(s, '@'); i >= 0 {
		ref.Digest = s[i+1:]
		s = s[:i]
	}

	imageFull := s
	if i := strings.IndexByte(s, '/'); i >= 0 && isRegistry(s[:i]) {
		ref.Registry = s[:i]
		imageFull = s[i+1:]
	}

	ref.Image = imageFull
	if i := strings.IndexByte(imageFull, ':'); i >= 0 {
		ref.Image = imageFull[:i]
		ref.Tag = imageFull[i+1:]
	}

	return ref
}

// String reassembles the reference.
func (r ImageRef) String() string {
	var sb strings.Builder
	if r.Registry != "" {
		sb.WriteString(r.Registry)
		sb.WriteByte('/')
	}
	sb.WriteString(r.Image)
	if r.Tag != "" {
		sb.WriteByte(':')
		sb.WriteString(r.Tag)
	}
	if r.Digest != "" {
		sb.WriteByte('@')
		sb.WriteString(r.Digest)
	}
	return sb.String()
}

// ParsedDigest validates and returns the reference's digest in OCI form.
// Parsing never validates digests; callers that need a well-formed digest
// opt in here.
func (r ImageRef) ParsedDigest() (digest.Digest, error) {
	if r.Digest == "" {
		return "", errors.New("image reference has no digest")
	}
	d, err := digest.Parse(r.Digest)
	if err != nil {
		return "", errors.Wrapf(err, "invalid digest %q", r.Digest)
	}
	return d, nil
}
