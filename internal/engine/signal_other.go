// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package engine

import "os/exec"

func sendTerm(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
