// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"testbox-cli/internal/container"
)

// Compile-time interface check
var _ container.Engine = (*FakeEngine)(nil)

// FakeEngine is an in-memory container.Engine. Images and volumes are plain
// sets; every mutating call is appended to Calls as "<verb> <name>".
// Zero-value error fields mean success.
type FakeEngine struct {
	mu sync.Mutex

	// Images and Volumes hold the names that currently exist.
	Images  map[string]bool
	Volumes map[string]bool

	// BuildErrs are returned by successive Build calls; once exhausted,
	// Build succeeds and records the tag in Images.
	BuildErrs []error
	// ImageExistsErr is returned by ImageExists.
	ImageExistsErr error
	// ListErr is returned by ListImages.
	ListErr error
	// RemoveImageErrs maps a tag to the error its removal returns.
	RemoveImageErrs map[string]error
	// VolumeExistsErr is returned by VolumeExists.
	VolumeExistsErr error
	// RemoveVolumeErr is returned by RemoveVolume.
	RemoveVolumeErr error
	// RunResult is returned by Run; nil means exit code 0.
	RunResult *container.RunResult
	// Unavailable makes Available report false.
	Unavailable bool

	Calls  []string
	Builds []container.BuildOptions
	Runs   []container.RunOptions
}

// NewFakeEngine returns an empty FakeEngine holding the given image tags.
func NewFakeEngine(images ...string) *FakeEngine {
	f := &FakeEngine{
		Images:  make(map[string]bool),
		Volumes: make(map[string]bool),
	}
	for _, img := range images {
		f.Images[img] = true
	}
	return f
}

func (f *FakeEngine) record(call string) {
	f.Calls = append(f.Calls, call)
}

// Name returns "fake".
func (f *FakeEngine) Name() string { return "fake" }

// Available reports !Unavailable.
func (f *FakeEngine) Available() bool { return !f.Unavailable }

// Version returns a fixed version.
func (f *FakeEngine) Version(context.Context) (string, error) { return "0.0.0-fake", nil }

// Build records opts and consumes the next BuildErrs entry.
func (f *FakeEngine) Build(_ context.Context, opts container.BuildOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("build " + opts.Tag)
	f.Builds = append(f.Builds, opts)
	if len(f.BuildErrs) > 0 {
		err := f.BuildErrs[0]
		f.BuildErrs = f.BuildErrs[1:]
		if err != nil {
			return err
		}
	}
	f.Images[opts.Tag] = true
	return nil
}

// Run records opts and returns RunResult.
func (f *FakeEngine) Run(_ context.Context, opts container.RunOptions) (*container.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("run " + opts.Image)
	f.Runs = append(f.Runs, opts)
	if f.RunResult != nil {
		result := *f.RunResult
		return &result, nil
	}
	return &container.RunResult{}, nil
}

// RunArgs builds the argv a Docker CLI engine would use.
func (f *FakeEngine) RunArgs(opts container.RunOptions) []string {
	return container.NewBaseCLIEngine("fake").RunArgs(opts)
}

// ImageExists reports membership in Images.
func (f *FakeEngine) ImageExists(_ context.Context, image string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ImageExistsErr != nil {
		return false, f.ImageExistsErr
	}
	return f.Images[image], nil
}

// ListImages returns the sorted images of repository.
func (f *FakeEngine) ListImages(_ context.Context, repository string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var refs []string
	for img := range f.Images {
		if strings.HasPrefix(img, repository+":") {
			refs = append(refs, img)
		}
	}
	slices.Sort(refs)
	return refs, nil
}

// RemoveImage deletes image from Images unless RemoveImageErrs has an entry.
func (f *FakeEngine) RemoveImage(_ context.Context, image string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("rmi " + image)
	if err := f.RemoveImageErrs[image]; err != nil {
		return err
	}
	if !f.Images[image] {
		return errors.New("no such image: " + image)
	}
	delete(f.Images, image)
	return nil
}

// VolumeExists reports membership in Volumes.
func (f *FakeEngine) VolumeExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.VolumeExistsErr != nil {
		return false, f.VolumeExistsErr
	}
	return f.Volumes[name], nil
}

// RemoveVolume deletes name from Volumes.
func (f *FakeEngine) RemoveVolume(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("volume rm " + name)
	if f.RemoveVolumeErr != nil {
		return f.RemoveVolumeErr
	}
	if !f.Volumes[name] {
		return errors.New("no such volume: " + name)
	}
	delete(f.Volumes, name)
	return nil
}
