// SPDX-License-Identifier: MPL-2.0

package cachestore

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	securejoin "github.com/cyphar/filepath-securejoin"

	"testbox-cli/internal/container"
	"testbox-cli/internal/identity"
)

const defaultBuildBackoff = 2 * time.Second

// Compile-time interface check
var _ Store = (*EngineStore)(nil)

type (
	// Options configures an EngineStore.
	Options struct {
		// Namespace is the image repository of environment tags.
		Namespace string
		// VolumePrefix names cache volumes "<prefix>-<version>".
		VolumePrefix string
		// ArtifactDir is the artifact directory relative to the project root.
		ArtifactDir string
		// BuildRetries is the number of extra attempts after a transient build failure.
		BuildRetries int
		// BuildBackoff is the delay before the first retry; it doubles per attempt.
		BuildBackoff time.Duration
		// Stdout and Stderr receive engine build output.
		Stdout io.Writer
		Stderr io.Writer
		// Logger receives retry diagnostics. Nil discards them.
		Logger *log.Logger
	}

	// EngineStore implements Store with a container engine.
	EngineStore struct {
		engine container.Engine
		opts   Options
		logger *log.Logger
	}
)

// NewEngineStore creates a Store backed by engine.
func NewEngineStore(engine container.Engine, opts Options) *EngineStore {
	if opts.BuildBackoff <= 0 {
		opts.BuildBackoff = defaultBuildBackoff
	}
	if opts.BuildRetries < 0 {
		opts.BuildRetries = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &EngineStore{engine: engine, opts: opts, logger: logger}
}

// ImageExists reports whether the identity's image exists.
func (s *EngineStore) ImageExists(ctx context.Context, id identity.Identity) (bool, error) {
	return s.engine.ImageExists(ctx, id.Tag())
}

// BuildImage builds the identity's image from src, retrying transient
// engine failures with exponential backoff.
func (s *EngineStore) BuildImage(ctx context.Context, id identity.Identity, src DefinitionSource) error {
	buildArgs := make(map[string]string, len(src.BuildArgs)+1)
	maps.Copy(buildArgs, src.BuildArgs)
	buildArgs[VersionBuildArg] = id.VersionParameter

	opts := container.BuildOptions{
		ContextDir: src.ContextDir,
		Dockerfile: src.DefinitionPath,
		Tag:        id.Tag(),
		BuildArgs:  buildArgs,
		Stdout:     s.opts.Stdout,
		Stderr:     s.opts.Stderr,
	}

	err := container.RetryWithBackoff(ctx, s.opts.BuildRetries+1, s.opts.BuildBackoff, func(attempt int) (bool, error) {
		err := s.engine.Build(ctx, opts)
		if err != nil && container.IsTransientError(err) {
			s.logger.Debug("transient build failure, retrying",
				"tag", opts.Tag, "attempt", attempt+1, "error", err)
			return true, err
		}
		return false, err
	})
	if err != nil {
		return &BuildError{Tag: opts.Tag, Cause: err}
	}
	return nil
}

// ListImagesForVersion returns the tags of the version line, excluding
// versions that merely share a prefix.
func (s *EngineStore) ListImagesForVersion(ctx context.Context, version string) ([]string, error) {
	refs, err := s.engine.ListImages(ctx, s.opts.Namespace)
	if err != nil {
		return nil, fmt.Errorf("list images of %s: %w", s.opts.Namespace, err)
	}

	var tags []string
	for _, ref := range refs {
		if _, ok := identity.ParseTag(s.opts.Namespace, version, ref); ok {
			tags = append(tags, ref)
		}
	}
	return tags, nil
}

// RemoveImage removes an image without forcing, so images used by
// containers are kept.
func (s *EngineStore) RemoveImage(ctx context.Context, tag string) error {
	if err := s.engine.RemoveImage(ctx, tag, false); err != nil {
		return &RemoveError{Kind: ResourceImage, Name: tag, Cause: err}
	}
	return nil
}

// RemoveVolume removes the version's cache volume if it exists.
func (s *EngineStore) RemoveVolume(ctx context.Context, version string) error {
	name := s.VolumeName(version)

	exists, err := s.engine.VolumeExists(ctx, name)
	if err == nil && !exists {
		return nil
	}

	if err := s.engine.RemoveVolume(ctx, name); err != nil {
		return &RemoveError{Kind: ResourceVolume, Name: name, Cause: err}
	}
	return nil
}

// RemoveArtifactDirectory deletes the project's artifact directory tree.
func (s *EngineStore) RemoveArtifactDirectory(projectRoot string) error {
	dir, err := s.ArtifactDirectory(projectRoot)
	if err != nil {
		return &RemoveError{Kind: ResourceArtifactDirectory, Name: s.opts.ArtifactDir, Cause: err}
	}
	if err := os.RemoveAll(dir); err != nil {
		return &RemoveError{Kind: ResourceArtifactDirectory, Name: dir, Cause: err}
	}
	return nil
}

// VolumeName returns "<prefix>-<version>".
func (s *EngineStore) VolumeName(version string) string {
	return s.opts.VolumePrefix + "-" + version
}

// ArtifactDirectory resolves the artifact directory inside projectRoot.
// Symlinks and ".." are resolved as if projectRoot were the filesystem
// root, so the result never leaves the project.
func (s *EngineStore) ArtifactDirectory(projectRoot string) (string, error) {
	dir, err := securejoin.SecureJoin(projectRoot, s.opts.ArtifactDir)
	if err != nil {
		return "", fmt.Errorf("resolve artifact directory %q: %w", s.opts.ArtifactDir, err)
	}
	if dir == filepath.Clean(projectRoot) {
		return "", fmt.Errorf("artifact directory %q resolves to the project root", s.opts.ArtifactDir)
	}
	return dir, nil
}
