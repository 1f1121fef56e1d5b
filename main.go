// SPDX-License-Identifier: MPL-2.0

// Command workspace provisions a multi-repository workspace from a manifest.
package main

import cmd "github.com/fabriclabs/workspace/cmd/workspace"

func main() {
	cmd.Execute()
}
