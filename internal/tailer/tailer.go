// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package tailer

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nwgate/codex-gateway/internal/gwevents"
	"github.com/nwgate/codex-gateway/internal/journal"
	"github.com/nwgate/codex-gateway/internal/watcher"
)

// Config bounds a Tailer's timing behavior; zero values fall back to the
// spec's defaults.
type Config struct {
	HeartbeatInterval time.Duration // default 15s
	IdleTimeout       time.Duration // default 60s
	DebounceWindow    time.Duration // default 100ms
}

func (c *Config) setDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 100 * time.Millisecond
	}
}

// Tailer watches one session's journal file and fans new records out to
// every attached client.
type Tailer struct {
	sessionID string
	path      string
	cfg       Config
	bus       *gwevents.MemoryBus
	metaFn    SessionMetaFunc

	fsWatcher *fsnotify.Watcher
	debouncer *watcher.Debouncer

	mu         sync.Mutex
	clients    map[Client]struct{}
	lastCursor int // highest cursor already broadcast on the live path
	reading    atomic.Bool
	closed     bool
	idleTimer  *time.Timer
	idleSince  time.Time // zero while at least one client is attached

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Tailer for sessionID watching path (the session's .jsonl
// journal file) and starts its heartbeat/watch goroutines.
func New(sessionID, path string, cfg Config, bus *gwevents.MemoryBus, metaFn SessionMetaFunc) (*Tailer, error) {
	cfg.setDefaults()

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("tailer: create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(path); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("tailer: watch journal: %w", err)
	}

	t := &Tailer{
		sessionID: sessionID,
		path:      path,
		cfg:       cfg,
		bus:       bus,
		metaFn:    metaFn,
		fsWatcher: fsWatcher,
		debouncer: watcher.NewDebouncer(cfg.DebounceWindow),
		clients:   make(map[Client]struct{}),
		idleSince: time.Now(),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	go t.watchLoop()
	go t.heartbeatLoop()

	return t, nil
}

// Attach runs the attach protocol for a newly connecting client: session
// meta, history replay from req.Since, then adds the client to the live
// broadcast set. It cancels any pending idle-shutdown timer.
func (t *Tailer) Attach(ctx context.Context, client Client, req AttachRequest) error {
	t.mu.Lock()
	if t.idleTimer != nil {
		t.idleTimer.Stop()
		t.idleTimer = nil
	}
	t.mu.Unlock()

	if t.metaFn != nil {
		if meta, err := t.metaFn(t.sessionID); err == nil {
			if err := client.WriteFrame("", journal.EventSessionMeta, meta); err != nil {
				return err
			}
		}
	}

	if err := client.WriteFrame("", journal.EventHistoryStart, map[string]int{"since": req.Since}); err != nil {
		return err
	}

	count, maxCursor, err := t.replay(ctx, client, req)
	if err != nil {
		return err
	}

	if err := client.WriteFrame("", journal.EventHistoryEnd, map[string]int{"count": count}); err != nil {
		return err
	}

	t.mu.Lock()
	if maxCursor > t.lastCursor {
		t.lastCursor = maxCursor
	}
	t.clients[client] = struct{}{}
	t.idleSince = time.Time{}
	t.mu.Unlock()

	return nil
}

// Stats returns a snapshot of this tailer's live state.
func (t *Tailer) Stats() TailerStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := TailerStats{
		SessionID: t.sessionID,
		Clients:   len(t.clients),
		Position:  t.lastCursor,
	}
	if !t.idleSince.IsZero() {
		idleSince := t.idleSince
		stats.IdleSince = &idleSince
	}
	return stats
}

// replay reads the journal from the beginning, skipping records at or
// below req.Since, and delivers up to req.Limit matching records, yielding
// to the scheduler every replayYieldEvery records (spec §4.C step 3).
func (t *Tailer) replay(ctx context.Context, client Client, req AttachRequest) (count int, maxCursor int, err error) {
	emitted, readErr := journal.ReadFrom(t.path, req.Since, req.Limit, func(rec journal.Record) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if c := cursorValue(rec.Cursor); c > maxCursor {
			maxCursor = c
		}
		if werr := client.WriteFrame(rec.Cursor, rec.Event, rec.Data); werr != nil {
			return werr
		}
		count++
		if count%replayYieldEvery == 0 {
			runtime.Gosched()
		}
		return nil
	})
	return emitted, maxCursor, readErr
}

// Detach removes client from the broadcast set. If it was the last client,
// an idle-shutdown timer starts per spec §4.C.
func (t *Tailer) Detach(client Client) {
	t.mu.Lock()
	delete(t.clients, client)
	empty := len(t.clients) == 0
	if empty {
		t.idleSince = time.Now()
		if !t.closed {
			t.idleTimer = time.AfterFunc(t.cfg.IdleTimeout, t.onIdleTimeout)
		}
	}
	t.mu.Unlock()
}

func (t *Tailer) onIdleTimeout() {
	t.mu.Lock()
	stillEmpty := len(t.clients) == 0
	t.mu.Unlock()
	if !stillEmpty {
		return
	}

	log.Printf("tailer: session %s idle, requesting retirement", t.sessionID)
	if t.bus != nil {
		t.bus.Publish(context.Background(), gwevents.Event{
			Type:      gwevents.EventTailerRetire,
			SessionID: t.sessionID,
		})
	}
}

// watchLoop translates fsnotify write events into debounced live reads.
func (t *Tailer) watchLoop() {
	defer close(t.doneCh)
	for {
		select {
		case <-t.stopCh:
			return
		case event, ok := <-t.fsWatcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			t.debouncer.Debounce(t.sessionID, t.liveRead)
		case _, ok := <-t.fsWatcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// liveRead is the reentrancy-guarded live-tail read: it reads every record
// past the last-broadcast cursor and delivers it to every attached client,
// then advances the broadcast cursor. Malformed trailing lines are skipped
// silently by journal.ReadFrom itself.
func (t *Tailer) liveRead() {
	if !t.reading.CompareAndSwap(false, true) {
		return
	}
	defer t.reading.Store(false)

	t.mu.Lock()
	since := t.lastCursor
	clients := make([]Client, 0, len(t.clients))
	for c := range t.clients {
		clients = append(clients, c)
	}
	t.mu.Unlock()

	if len(clients) == 0 {
		return
	}

	maxCursor := since
	_, _ = journal.ReadFrom(t.path, since, 0, func(rec journal.Record) error {
		if c := cursorValue(rec.Cursor); c > maxCursor {
			maxCursor = c
		}
		for _, client := range clients {
			if err := client.WriteFrame(rec.Cursor, rec.Event, rec.Data); err != nil {
				t.mu.Lock()
				delete(t.clients, client)
				t.mu.Unlock()
			}
		}
		return nil
	})

	t.mu.Lock()
	if maxCursor > t.lastCursor {
		t.lastCursor = maxCursor
	}
	t.mu.Unlock()
}

func (t *Tailer) heartbeatLoop() {
	ticker := time.NewTicker(t.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.mu.Lock()
			clients := make([]Client, 0, len(t.clients))
			for c := range t.clients {
				clients = append(clients, c)
			}
			t.mu.Unlock()
			for _, c := range clients {
				if err := c.WriteFrame("", journal.EventHeartbeat, nil); err != nil {
					t.mu.Lock()
					delete(t.clients, c)
					t.mu.Unlock()
				}
			}
		}
	}
}

// Close stops the tailer's background goroutines and releases its fsnotify
// watch.
func (t *Tailer) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	if t.idleTimer != nil {
		t.idleTimer.Stop()
	}
	t.mu.Unlock()

	close(t.stopCh)
	t.fsWatcher.Close()
	t.debouncer.Stop()
	<-t.doneCh
}

func cursorValue(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}
