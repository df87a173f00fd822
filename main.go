// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"

	cmd "testbox-cli/cmd/testbox"
)

func main() {
	os.Exit(cmd.Execute())
}
