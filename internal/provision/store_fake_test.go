// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"slices"
	"strings"

	"testbox-cli/internal/cachestore"
	"testbox-cli/internal/identity"
)

// fakeStore is an in-memory cachestore.Store that records every call.
type fakeStore struct {
	namespace string
	images    map[string]bool
	volumes   map[string]bool
	artifacts map[string]bool

	imageExistsErr error
	buildErr       error
	listErr        error
	removeImageErr map[string]error
	removeVolErr   error
	removeDirErr   error

	calls []string
}

var _ cachestore.Store = (*fakeStore)(nil)

func newFakeStore(images ...string) *fakeStore {
	s := &fakeStore{
		namespace:      "env",
		images:         make(map[string]bool),
		volumes:        make(map[string]bool),
		artifacts:      make(map[string]bool),
		removeImageErr: make(map[string]error),
	}
	for _, img := range images {
		s.images[img] = true
	}
	return s
}

func (s *fakeStore) ImageExists(_ context.Context, id identity.Identity) (bool, error) {
	s.calls = append(s.calls, "exists "+id.Tag())
	if s.imageExistsErr != nil {
		return false, s.imageExistsErr
	}
	return s.images[id.Tag()], nil
}

func (s *fakeStore) BuildImage(_ context.Context, id identity.Identity, _ cachestore.DefinitionSource) error {
	s.calls = append(s.calls, "build "+id.Tag())
	if s.buildErr != nil {
		return &cachestore.BuildError{Tag: id.Tag(), Cause: s.buildErr}
	}
	s.images[id.Tag()] = true
	return nil
}

func (s *fakeStore) ListImagesForVersion(_ context.Context, version string) ([]string, error) {
	s.calls = append(s.calls, "list "+version)
	if s.listErr != nil {
		return nil, s.listErr
	}
	var tags []string
	for img := range s.images {
		if _, ok := identity.ParseTag(s.namespace, version, img); ok {
			tags = append(tags, img)
		}
	}
	slices.Sort(tags)
	return tags, nil
}

func (s *fakeStore) RemoveImage(_ context.Context, tag string) error {
	s.calls = append(s.calls, "rmi "+tag)
	if err := s.removeImageErr[tag]; err != nil {
		return &cachestore.RemoveError{Kind: cachestore.ResourceImage, Name: tag, Cause: err}
	}
	delete(s.images, tag)
	return nil
}

func (s *fakeStore) RemoveVolume(_ context.Context, version string) error {
	name := s.VolumeName(version)
	s.calls = append(s.calls, "volume rm "+name)
	if s.removeVolErr != nil {
		return &cachestore.RemoveError{Kind: cachestore.ResourceVolume, Name: name, Cause: s.removeVolErr}
	}
	delete(s.volumes, name)
	return nil
}

func (s *fakeStore) RemoveArtifactDirectory(projectRoot string) error {
	s.calls = append(s.calls, "rm "+projectRoot)
	if s.removeDirErr != nil {
		return &cachestore.RemoveError{Kind: cachestore.ResourceArtifactDirectory, Name: projectRoot, Cause: s.removeDirErr}
	}
	delete(s.artifacts, projectRoot)
	return nil
}

func (s *fakeStore) VolumeName(version string) string { return "cache-" + version }

func (s *fakeStore) ArtifactDirectory(projectRoot string) (string, error) {
	return projectRoot + "/target-testbox", nil
}

// count returns how many recorded calls start with prefix.
func (s *fakeStore) count(prefix string) int {
	n := 0
	for _, c := range s.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

var errBoom = errors.New("boom")
