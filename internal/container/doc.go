// SPDX-License-Identifier: MPL-2.0

// Package container provides an abstraction layer for container engines (Docker/Podman).
//
// The Engine interface covers the primitives testbox needs: Build, Run,
// ImageExists, ListImages, RemoveImage, VolumeExists and RemoveVolume. Two
// implementations are provided, DockerEngine and PodmanEngine, both embedding
// BaseCLIEngine for shared argument construction and command execution.
//
// Engine selection uses NewEngine(EngineType) with automatic fallback if the
// preferred engine is unavailable, or AutoDetectEngine() when no preference is
// configured (Docker is tried first).
package container
