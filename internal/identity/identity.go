// SPDX-License-Identifier: MPL-2.0

package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	// DigestPrefixLength is the number of hex characters of the definition
	// digest carried in the tags testbox creates.
	DigestPrefixLength = 12

	// MinDigestPrefixLength is the shortest hex suffix accepted as part of a
	// version line when listing existing tags.
	MinDigestPrefixLength = 8
)

// ErrDefinitionUnreadable is the sentinel error wrapped by IdentityError.
var ErrDefinitionUnreadable = errors.New("environment definition unreadable")

type (
	// Identity identifies one cached environment image.
	Identity struct {
		Namespace        string
		VersionParameter string
		// ContentDigest is the full lowercase hex SHA-256 of the definition bytes.
		ContentDigest string
	}

	// IdentityError is returned when the environment definition cannot be read.
	IdentityError struct {
		Path  string
		Cause error
	}
)

func (e *IdentityError) Error() string {
	return fmt.Sprintf("cannot derive environment identity from %s: %v", e.Path, e.Cause)
}

// Unwrap returns ErrDefinitionUnreadable so callers can match with errors.Is.
// The underlying cause stays reachable through errors.As on *IdentityError.
func (e *IdentityError) Unwrap() []error {
	return []error{ErrDefinitionUnreadable, e.Cause}
}

// Derive computes the identity of a definition for the given version line.
func Derive(namespace, version string, definition []byte) Identity {
	sum := sha256.Sum256(definition)
	return Identity{
		Namespace:        namespace,
		VersionParameter: version,
		ContentDigest:    hex.EncodeToString(sum[:]),
	}
}

// DeriveFile reads the definition file at path and derives its identity.
func DeriveFile(namespace, version, path string) (Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Identity{}, &IdentityError{Path: path, Cause: err}
	}
	return Derive(namespace, version, data), nil
}

// DigestPrefix returns the digest prefix used in the tag.
func (id Identity) DigestPrefix() string {
	if len(id.ContentDigest) < DigestPrefixLength {
		return id.ContentDigest
	}
	return id.ContentDigest[:DigestPrefixLength]
}

// Tag formats the identity as "<namespace>:<version>-<digestPrefix>".
func (id Identity) Tag() string {
	return fmt.Sprintf("%s:%s-%s", id.Namespace, id.VersionParameter, id.DigestPrefix())
}

func (id Identity) String() string { return id.Tag() }

// ParseTag reports whether tag belongs to the version line of namespace and
// version, returning its digest prefix. Only tags of the exact form
// "<namespace>:<version>-<hex>" match, where hex is between
// MinDigestPrefixLength and a full SHA-256 worth of lowercase hex. Dashes are
// not hex, so version "1.7" never claims "1.78-..." and "1.78" never claims
// "1.78-beta-...".
func ParseTag(namespace, version, tag string) (digestPrefix string, ok bool) {
	rest, found := strings.CutPrefix(tag, namespace+":"+version+"-")
	if !found || len(rest) < MinDigestPrefixLength || len(rest) > sha256.Size*2 || !isLowerHex(rest) {
		return "", false
	}
	return rest, true
}

func isLowerHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
