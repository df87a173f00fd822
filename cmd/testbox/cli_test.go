// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"testbox": Execute,
	}))
}

// TestCLI runs the scripts in testdata against the in-process binary. PATH
// holds no container engine, so scripts exercise everything up to engine
// selection deterministically.
func TestCLI(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata",
		Setup: func(env *testscript.Env) error {
			// Keep only the directory testscript installs testbox into, so
			// no docker or podman from the host is visible.
			if entries := filepath.SplitList(env.Getenv("PATH")); len(entries) > 0 {
				env.Setenv("PATH", entries[0])
			}
			env.Setenv("HOME", filepath.Join(env.WorkDir, ".home"))
			env.Setenv("XDG_CONFIG_HOME", filepath.Join(env.WorkDir, ".config"))
			env.Setenv("NO_COLOR", "1")
			return nil
		},
	})
}
