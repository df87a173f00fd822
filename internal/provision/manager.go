// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"

	"testbox-cli/internal/cachestore"
	"testbox-cli/internal/config"
	"testbox-cli/internal/identity"
)

const (
	// ActionReused means an image with the current identity already existed.
	ActionReused Action = "reused"
	// ActionBuilt means the image was built during this invocation.
	ActionBuilt Action = "built"
)

type (
	// Action is the outcome of the reuse-or-build decision.
	Action string

	// Config configures a Manager.
	Config struct {
		// Namespace is the image repository of environment tags.
		Namespace string
		// DefinitionFile is the environment definition, relative to the
		// project root unless absolute.
		DefinitionFile string
		// BuildArgs are passed to every environment build.
		BuildArgs map[string]string
	}

	// Manager runs the environment lifecycle against a Store.
	Manager struct {
		store  cachestore.Store
		cfg    Config
		logger *log.Logger
	}

	// Result describes a ready environment.
	Result struct {
		Identity identity.Identity
		Action   Action
		// Pruned lists the superseded tags removed after a build.
		Pruned []string
		// CleanupErrors collects non-fatal purge and prune failures.
		CleanupErrors []error
	}

	// Plan is a read-only view of what Provision would do.
	Plan struct {
		Identity       identity.Identity
		DefinitionPath string
		// Cached reports whether the current identity's image exists.
		Cached bool
		// StaleTags are images of the version line that a build would prune.
		StaleTags         []string
		VolumeName        string
		ArtifactDirectory string
	}
)

// CleanupError joins CleanupErrors, or returns nil when there were none.
func (r *Result) CleanupError() error {
	return errors.Join(r.CleanupErrors...)
}

// NewManager creates a Manager. A nil logger discards log output.
func NewManager(store cachestore.Store, cfg Config, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Manager{store: store, cfg: cfg, logger: logger}
}

// DefinitionPath returns the definition file location for projectRoot.
func (m *Manager) DefinitionPath(projectRoot string) string {
	if filepath.IsAbs(m.cfg.DefinitionFile) {
		return m.cfg.DefinitionFile
	}
	return filepath.Join(projectRoot, m.cfg.DefinitionFile)
}

// Provision makes the environment for rc ready. It fails only when the
// identity cannot be derived (*identity.IdentityError) or the build fails
// (*cachestore.BuildError); in the latter case nothing is pruned.
func (m *Manager) Provision(ctx context.Context, rc config.RunConfig) (*Result, error) {
	version := rc.VersionParameter()
	result := &Result{}

	if rc.CleanRequested() {
		result.CleanupErrors = append(result.CleanupErrors, m.Clean(ctx, version, rc.ProjectRoot())...)
	}

	id, err := identity.DeriveFile(m.cfg.Namespace, version, m.DefinitionPath(rc.ProjectRoot()))
	if err != nil {
		return nil, err
	}
	result.Identity = id

	exists, err := m.store.ImageExists(ctx, id)
	if err != nil {
		// A failed lookup counts as a miss.
		m.logger.Warn("image lookup failed, rebuilding", "tag", id.Tag(), "error", err)
		exists = false
	}

	if exists {
		m.logger.Info("reusing environment", "tag", id.Tag())
		result.Action = ActionReused
		return result, nil
	}

	m.logger.Info("building environment", "tag", id.Tag())
	err = m.store.BuildImage(ctx, id, cachestore.DefinitionSource{
		DefinitionPath: m.DefinitionPath(rc.ProjectRoot()),
		ContextDir:     rc.ProjectRoot(),
		BuildArgs:      m.cfg.BuildArgs,
	})
	if err != nil {
		return nil, err
	}
	result.Action = ActionBuilt

	pruned, errs := m.prune(ctx, id)
	result.Pruned = pruned
	result.CleanupErrors = append(result.CleanupErrors, errs...)

	return result, nil
}

// Clean removes the version's cache volume, every image of its version line
// and the project's artifact directory. Each removal is attempted
// regardless of the others; failures are logged and returned.
func (m *Manager) Clean(ctx context.Context, version, projectRoot string) []error {
	var errs []error
	fail := func(msg string, err error, kv ...any) {
		m.logger.Warn(msg, append(kv, "error", err)...)
		errs = append(errs, err)
	}

	if err := m.store.RemoveVolume(ctx, version); err != nil {
		fail("failed to remove cache volume", err, "volume", m.store.VolumeName(version))
	} else {
		m.logger.Info("removed cache volume", "volume", m.store.VolumeName(version))
	}

	tags, err := m.store.ListImagesForVersion(ctx, version)
	if err != nil {
		fail("failed to list environment images", err, "version", version)
	}
	for _, tag := range tags {
		if err := m.store.RemoveImage(ctx, tag); err != nil {
			fail("failed to remove environment image", err, "tag", tag)
			continue
		}
		m.logger.Info("removed environment image", "tag", tag)
	}

	if err := m.store.RemoveArtifactDirectory(projectRoot); err != nil {
		fail("failed to remove artifact directory", err)
	} else {
		m.logger.Info("removed artifact directory", "project", projectRoot)
	}

	return errs
}

// Plan derives the identity for rc and reports the cache state without
// changing it.
func (m *Manager) Plan(ctx context.Context, rc config.RunConfig) (*Plan, error) {
	version := rc.VersionParameter()
	defPath := m.DefinitionPath(rc.ProjectRoot())

	id, err := identity.DeriveFile(m.cfg.Namespace, version, defPath)
	if err != nil {
		return nil, err
	}

	cached, err := m.store.ImageExists(ctx, id)
	if err != nil {
		m.logger.Debug("image lookup failed", "tag", id.Tag(), "error", err)
		cached = false
	}

	tags, err := m.store.ListImagesForVersion(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("list environment images: %w", err)
	}

	artifactDir, err := m.store.ArtifactDirectory(rc.ProjectRoot())
	if err != nil {
		return nil, err
	}

	return &Plan{
		Identity:          id,
		DefinitionPath:    defPath,
		Cached:            cached,
		StaleTags:         staleTags(tags, id),
		VolumeName:        m.store.VolumeName(version),
		ArtifactDirectory: artifactDir,
	}, nil
}

// prune removes every image of id's version line except id itself.
func (m *Manager) prune(ctx context.Context, id identity.Identity) ([]string, []error) {
	tags, err := m.store.ListImagesForVersion(ctx, id.VersionParameter)
	if err != nil {
		m.logger.Warn("failed to list images for pruning", "version", id.VersionParameter, "error", err)
		return nil, []error{err}
	}

	var (
		pruned []string
		errs   []error
	)
	for _, tag := range staleTags(tags, id) {
		if err := m.store.RemoveImage(ctx, tag); err != nil {
			m.logger.Warn("failed to prune image", "tag", tag, "error", err)
			errs = append(errs, err)
			continue
		}
		m.logger.Info("pruned image", "tag", tag)
		pruned = append(pruned, tag)
	}
	return pruned, errs
}

func staleTags(tags []string, current identity.Identity) []string {
	var stale []string
	for _, tag := range tags {
		if tag != current.Tag() {
			stale = append(stale, tag)
		}
	}
	return stale
}
