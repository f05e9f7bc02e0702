// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package directory implements the Session Directory (spec §4.E): listing
// sessions by their metadata sidecars, sorted most-recent-first, annotated
// with journal file size and active-turn status.
package directory

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/nwgate/codex-gateway/internal/journal"
)

// Summary is one session's directory-listing entry.
type Summary struct {
	ID                 string    `json:"id"`
	Cwd                string    `json:"cwd"`
	Model              string    `json:"model"`
	CreatedAt          time.Time `json:"createdAt"`
	LastMessageAt      time.Time `json:"lastMessageAt,omitempty"`
	LastMessagePreview string    `json:"lastMessagePreview,omitempty"`
	MessageCount       int       `json:"messageCount"`
	FileSize           int64     `json:"fileSize"`
	IsActive           bool      `json:"isActive"`
}

// ActiveSetFunc reports whether a session currently has a turn running,
// mirroring the engine's in-memory activeSet without this package needing
// to import internal/engine (directory listing is read-only and must not
// create a dependency cycle with the engine's own use of the store).
type ActiveSetFunc func(sessionID string) bool

// Lister lists sessions from a Store's sidecar directory.
type Lister struct {
	store    *journal.Store
	isActive ActiveSetFunc
}

// NewLister builds a Lister. isActive may be nil, in which case every
// session is reported inactive.
func NewLister(store *journal.Store, isActive ActiveSetFunc) *Lister {
	if isActive == nil {
		isActive = func(string) bool { return false }
	}
	return &Lister{store: store, isActive: isActive}
}

// Page is one paginated slice of the directory listing.
type Page struct {
	Sessions []Summary `json:"sessions"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"hasMore"`
}

// List enumerates <sessionsDir>/*.json, sorts descending by file mtime, and
// returns the [offset, offset+limit) page. A sidecar that fails to parse is
// tolerated as an empty entry (id taken from the filename) rather than
// dropped, matching the spec's "tolerating parse errors as {}" directive.
func (l *Lister) List(offset, limit int) (Page, error) {
	if limit <= 0 {
		limit = 50
	}

	entries, err := os.ReadDir(l.store.SessionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return Page{}, nil
		}
		return Page{}, err
	}

	type dirEntry struct {
		id    string
		mtime int64
	}
	var sessionFiles []dirEntry
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		sessionFiles = append(sessionFiles, dirEntry{
			id:    id,
			mtime: info.ModTime().UnixNano(),
		})
	}

	sort.Slice(sessionFiles, func(i, j int) bool {
		return sessionFiles[i].mtime > sessionFiles[j].mtime
	})

	total := len(sessionFiles)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	summaries := make([]Summary, 0, end-start)
	for _, df := range sessionFiles[start:end] {
		summaries = append(summaries, l.summarize(df.id))
	}

	return Page{
		Sessions: summaries,
		Total:    total,
		HasMore:  end < total,
	}, nil
}

func (l *Lister) summarize(id string) Summary {
	sc, err := l.store.ReadSidecar(id)
	if err != nil {
		sc = journal.Sidecar{ID: id}
	}

	var fileSize int64
	if info, err := os.Stat(l.store.JournalPath(id)); err == nil {
		fileSize = info.Size()
	}

	return Summary{
		ID:                 id,
		Cwd:                sc.Cwd,
		Model:              sc.Model,
		CreatedAt:          sc.CreatedAt,
		LastMessageAt:      sc.LastMessageAt,
		LastMessagePreview: sc.LastMessagePreview,
		MessageCount:       sc.MessageCount,
		FileSize:           fileSize,
		IsActive:           l.isActive(id),
	}
}
