// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package ptyreg

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
)

// session is one live PTY-backed process and its fan-out of sinks.
type session struct {
	id    string
	ptmx  *os.File
	cmd   *exec.Cmd
	hist  *historyBuffer
	usingMuxer bool

	mu           sync.Mutex
	sinks        map[Sink]struct{}
	createdAt    time.Time
	lastActivity time.Time
	exited       bool
}

// spawn starts a new PTY session for id. It prefers the external process
// muxer (attach-or-create semantics) when cfg.MuxerBin is configured,
// falling back to a plain login shell.
func spawn(id string, cfg Config) (*session, error) {
	var cmd *exec.Cmd
	usingMuxer := cfg.MuxerBin != ""
	if usingMuxer {
		cmd = exec.Command(cfg.MuxerBin, "-A", "-s", id)
	} else {
		shell := cfg.Shell
		if shell == "" {
			shell = os.Getenv("SHELL")
		}
		if shell == "" {
			shell = "/bin/sh"
		}
		cmd = exec.Command(shell)
	}

	cmd.Dir = cfg.Workdir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: defaultRows, Cols: defaultCols})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}

	now := time.Now()
	s := &session{
		id:           id,
		ptmx:         ptmx,
		cmd:          cmd,
		hist:         newHistoryBuffer(cfg.HistoryLimit),
		usingMuxer:   usingMuxer,
		sinks:        make(map[Sink]struct{}),
		createdAt:    now,
		lastActivity: now,
	}

	if cfg.BootCmd != "" {
		go func() {
			time.Sleep(bootCmdDelay)
			s.mu.Lock()
			exited := s.exited
			s.mu.Unlock()
			if exited {
				return
			}
			if _, err := ptmx.Write([]byte(cfg.BootCmd + "\r")); err != nil {
				log.Printf("ptyreg: session %s: write boot cmd: %v", id, err)
			}
		}()
	}

	return s, nil
}

// readLoop reads PTY output until EOF, fanning each chunk out to the
// current sinks and the replay history, then reports the exit code/signal
// through onExit.
func (s *session) readLoop(onExit func(code int, signal string)) {
	buf := make([]byte, 8192)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.hist.write(chunk)

			s.mu.Lock()
			s.lastActivity = time.Now()
			sinks := make([]Sink, 0, len(s.sinks))
			for sink := range s.sinks {
				sinks = append(sinks, sink)
			}
			s.mu.Unlock()

			for _, sink := range sinks {
				sink.Write(chunk)
			}
		}
		if err != nil {
			break
		}
	}

	code, signal := s.waitResult()

	s.mu.Lock()
	s.exited = true
	sinks := make([]Sink, 0, len(s.sinks))
	for sink := range s.sinks {
		sinks = append(sinks, sink)
	}
	s.mu.Unlock()

	for _, sink := range sinks {
		sink.Exit(code, signal)
	}
	onExit(code, signal)
}

func (s *session) waitResult() (code int, signalName string) {
	err := s.cmd.Wait()
	state := s.cmd.ProcessState
	if state == nil {
		return -1, ""
	}
	if err == nil {
		return 0, ""
	}
	if ws, ok := exitWaitStatus(state); ok {
		if ws.signaled() {
			return -1, ws.signalName()
		}
		return ws.exitStatus(), ""
	}
	return state.ExitCode(), ""
}

func (s *session) write(data []byte) error {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
	_, err := s.ptmx.Write(data)
	return err
}

func (s *session) resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return ErrInvalidSize
	}
	return pty.Setsize(s.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

func (s *session) attach(sink Sink) {
	s.mu.Lock()
	s.lastActivity = time.Now()
	history := s.hist.snapshot()
	s.sinks[sink] = struct{}{}
	s.mu.Unlock()

	if len(history) > 0 {
		sink.Write(history)
	}
}

func (s *session) detach(sink Sink) {
	s.mu.Lock()
	delete(s.sinks, sink)
	s.mu.Unlock()
}

func (s *session) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientCountLocked()
}

// clientCountLocked returns the sink count; callers must hold s.mu.
func (s *session) clientCountLocked() int {
	return len(s.sinks)
}

func (s *session) terminate() {
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.ptmx.Close()
}
