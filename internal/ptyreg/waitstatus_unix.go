// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package ptyreg

import (
	"os"
	"syscall"
)

type waitStatus struct{ ws syscall.WaitStatus }

func (w waitStatus) signaled() bool    { return w.ws.Signaled() }
func (w waitStatus) signalName() string { return w.ws.Signal().String() }
func (w waitStatus) exitStatus() int   { return w.ws.ExitStatus() }

func exitWaitStatus(state *os.ProcessState) (waitStatus, bool) {
	ws, ok := state.Sys().(syscall.WaitStatus)
	return waitStatus{ws}, ok
}
