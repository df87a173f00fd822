// SPDX-License-Identifier: MPL-2.0

package cachestore

import (
	"context"
	"errors"
	"fmt"

	"testbox-cli/internal/identity"
)

// VersionBuildArg is the build argument carrying the version parameter into
// the environment definition.
const VersionBuildArg = "RUST_VERSION"

var (
	// ErrBuildFailed is the sentinel wrapped by BuildError.
	ErrBuildFailed = errors.New("environment build failed")
	// ErrRemoveFailed is the sentinel wrapped by RemoveError.
	ErrRemoveFailed = errors.New("cache removal failed")
)

// Kinds of removable cache resources.
const (
	ResourceImage             ResourceKind = "image"
	ResourceVolume            ResourceKind = "volume"
	ResourceArtifactDirectory ResourceKind = "artifact directory"
)

type (
	// ResourceKind names a kind of cached resource.
	ResourceKind string

	// DefinitionSource locates the environment definition for a build.
	DefinitionSource struct {
		// DefinitionPath is the definition file (absolute, or relative to ContextDir).
		DefinitionPath string
		// ContextDir is the build context directory.
		ContextDir string
		// BuildArgs are extra build arguments. VersionBuildArg is always set
		// from the identity and overrides any value here.
		BuildArgs map[string]string
	}

	// Store is the capability interface over cached environment state.
	Store interface {
		// ImageExists reports whether an image tagged with the identity exists.
		ImageExists(ctx context.Context, id identity.Identity) (bool, error)
		// BuildImage builds and tags the environment image. Fails with *BuildError.
		BuildImage(ctx context.Context, id identity.Identity, src DefinitionSource) error
		// ListImagesForVersion returns the tags of every image of the version line.
		ListImagesForVersion(ctx context.Context, version string) ([]string, error)
		// RemoveImage removes an image by tag without forcing. Fails with *RemoveError.
		RemoveImage(ctx context.Context, tag string) error
		// RemoveVolume removes the version's cache volume. An absent volume is
		// not an error. Fails with *RemoveError.
		RemoveVolume(ctx context.Context, version string) error
		// RemoveArtifactDirectory removes the project's artifact directory. An
		// absent directory is not an error. Fails with *RemoveError.
		RemoveArtifactDirectory(projectRoot string) error
		// VolumeName returns the cache volume name of a version line.
		VolumeName(version string) string
		// ArtifactDirectory returns the host artifact directory of a project.
		ArtifactDirectory(projectRoot string) (string, error)
	}

	// BuildError reports a failed environment build.
	BuildError struct {
		Tag   string
		Cause error
	}

	// RemoveError reports a failed removal of a cached resource.
	RemoveError struct {
		Kind  ResourceKind
		Name  string
		Cause error
	}
)

func (e *BuildError) Error() string {
	return fmt.Sprintf("build environment %s: %v", e.Tag, e.Cause)
}

// Unwrap exposes ErrBuildFailed and the cause.
func (e *BuildError) Unwrap() []error { return []error{ErrBuildFailed, e.Cause} }

func (e *RemoveError) Error() string {
	return fmt.Sprintf("remove %s %s: %v", e.Kind, e.Name, e.Cause)
}

// Unwrap exposes ErrRemoveFailed and the cause.
func (e *RemoveError) Unwrap() []error { return []error{ErrRemoveFailed, e.Cause} }
