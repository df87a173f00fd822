// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"slices"
	"testing"
)

func TestPodmanEngine_Run_Arguments(t *testing.T) {
	withSELinux(t, false)
	recorder := NewMockCommandRecorder()

	_, err := newMockPodman(t, recorder).Run(context.Background(), RunOptions{
		Image:   "env:1.78-0123456789ab",
		Command: []string{"cargo", "test"},
		Volumes: []string{"/src:/workspace"},
		Remove:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recorder.AssertCommandName(t, "/usr/bin/podman")
	recorder.AssertArgs(t,
		"run", "--userns=keep-id", "--rm",
		"-v", "/src:/workspace",
		"env:1.78-0123456789ab", "cargo", "test",
	)
}

func TestPodmanEngine_Run_SELinuxLabels(t *testing.T) {
	withSELinux(t, true)
	recorder := NewMockCommandRecorder()

	_, err := newMockPodman(t, recorder).Run(context.Background(), RunOptions{
		Image:   "img",
		Volumes: []string{"/src:/workspace", "/cache:/cache:ro", "/data:/data:Z"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recorder.AssertArgsContain(t, "/src:/workspace:z")
	recorder.AssertArgsContain(t, "/cache:/cache:ro,z")
	recorder.AssertArgsContain(t, "/data:/data:Z")
	recorder.AssertArgsNotContain(t, "/data:/data:Z,z")
}

func TestPodmanEngine_ImageExists(t *testing.T) {
	recorder := NewMockCommandRecorder()
	exists, err := newMockPodman(t, recorder).ImageExists(context.Background(), "env:1.78-0123456789ab")
	if err != nil || !exists {
		t.Errorf("ImageExists() = (%v, %v), want (true, nil)", exists, err)
	}
	recorder.AssertArgs(t, "image", "exists", "env:1.78-0123456789ab")
}

func TestPodmanEngine_ListImages_StripsLocalhost(t *testing.T) {
	recorder := NewMockCommandRecorder()
	recorder.Stdout = "localhost/env:1.78-aaaaaaaaaaaa\nlocalhost/env:1.78-bbbbbbbbbbbb\n"

	refs, err := newMockPodman(t, recorder).ListImages(context.Background(), "env")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"env:1.78-aaaaaaaaaaaa", "env:1.78-bbbbbbbbbbbb"}
	if !slices.Equal(refs, want) {
		t.Errorf("ListImages() = %q, want %q", refs, want)
	}
}

func TestInjectKeepID(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"run", []string{"run", "--rm", "img"}, []string{"run", "--userns=keep-id", "--rm", "img"}},
		{"existing userns", []string{"run", "--userns=host", "img"}, []string{"run", "--userns=host", "img"}},
		{"not run", []string{"build", "."}, []string{"build", "."}},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := injectKeepID(tt.in); !slices.Equal(got, tt.want) {
				t.Errorf("injectKeepID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
