// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwgate/codex-gateway/internal/gwevents"
	"github.com/nwgate/codex-gateway/internal/journal"
)

func unmarshalRecord(rec journal.Record, v interface{}) error {
	return json.Unmarshal(rec.Data, v)
}

// writeFakeExecBin writes a shell script standing in for the exec binary:
// body is the script's content after the shebang line, so each test picks
// the transcript and exit code the fake produces.
func writeFakeExecBin(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-exec.sh")
	script := "#!/bin/sh\n" + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func newTestStore(t *testing.T) *journal.Store {
	t.Helper()
	store, err := journal.NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

const fakeExecTranscript = `
cat <<'EOF'
{"type":"thread.started","thread_id":"thread-1"}
{"type":"item.started","item":{"id":"cmd-1","type":"command_execution","command":"echo hi"}}
{"type":"item.completed","item":{"id":"cmd-1","type":"command_execution","aggregated_output":"hi\n","exit_code":0}}
{"type":"item.completed","item":{"id":"msg-1","type":"agent_message","text":"done"}}
{"type":"turn.completed","usage":{"input_tokens":10,"output_tokens":5,"cached_input_tokens":0}}
EOF
`

func TestEngine_Submit_RunsTurnToCompletion(t *testing.T) {
	store := newTestStore(t)
	sessionID := "11111111-1111-1111-1111-111111111111"
	_, err := store.CreateSession(sessionID, t.TempDir(), "gpt-4o")
	require.NoError(t, err)

	bin := writeFakeExecBin(t, fakeExecTranscript)
	bus := gwevents.NewMemoryBus(gwevents.BusConfig{})
	defer bus.Close()

	e := New(store, bus, Config{Bin: bin, ApprovalPolicy: "on-request", SandboxMode: "workspace-write"})

	_, err = e.Submit(sessionID, "say hi", "")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		sc, err := store.ReadSidecar(sessionID)
		return err == nil && sc.LatestThreadID == "thread-1"
	}, 2*time.Second, 10*time.Millisecond)

	sc, err := store.ReadSidecar(sessionID)
	require.NoError(t, err)
	assert.Equal(t, "thread-1", sc.LatestThreadID)
	assert.Equal(t, 15, sc.Usage.TotalTokens)
	assert.Equal(t, 128_000, *sc.ContextInfo.MaxTokens)

	records, err := journal.ReadAll(store.JournalPath(sessionID))
	require.NoError(t, err)

	var sawToolUse, sawToolResult, sawAgentText, sawEndTurn bool
	for _, rec := range records {
		switch rec.Event {
		case journal.EventContentBlock:
			var data journal.ContentBlockData
			require.NoError(t, unmarshalRecord(rec, &data))
			switch data.Block.Type {
			case journal.BlockToolUse:
				sawToolUse = true
			case journal.BlockToolResult:
				sawToolResult = true
				assert.False(t, data.Block.IsError)
			case journal.BlockText:
				if data.Block.Text == "done" {
					sawAgentText = true
				}
			}
		case journal.EventMessageEnd:
			var data journal.MessageEndData
			require.NoError(t, unmarshalRecord(rec, &data))
			if data.StopReason == journal.StopEndTurn {
				sawEndTurn = true
			}
		}
	}
	assert.True(t, sawToolUse)
	assert.True(t, sawToolResult)
	assert.True(t, sawAgentText)
	assert.True(t, sawEndTurn)
}

func TestEngine_Submit_SlashModelsDoesNotSpawnChild(t *testing.T) {
	store := newTestStore(t)
	sessionID := "22222222-2222-2222-2222-222222222222"
	_, err := store.CreateSession(sessionID, t.TempDir(), "gpt-4o")
	require.NoError(t, err)

	e := New(store, nil, Config{Bin: "/nonexistent/does-not-matter", ModelChoices: []string{"gpt-4o", "o3"}})

	_, err = e.Submit(sessionID, "/models", "")
	require.NoError(t, err)

	sc, err := store.ReadSidecar(sessionID)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", sc.Model)

	records, err := journal.ReadAll(store.JournalPath(sessionID))
	require.NoError(t, err)
	require.Len(t, records, 6)
}

func TestEngine_Submit_SlashModelSetsModel(t *testing.T) {
	store := newTestStore(t)
	sessionID := "33333333-3333-3333-3333-333333333333"
	_, err := store.CreateSession(sessionID, t.TempDir(), "gpt-4o")
	require.NoError(t, err)

	e := New(store, nil, Config{Bin: "/nonexistent/does-not-matter"})

	_, err = e.Submit(sessionID, "/model o3", "")
	require.NoError(t, err)

	sc, err := store.ReadSidecar(sessionID)
	require.NoError(t, err)
	assert.Equal(t, "o3", sc.Model)
}

func TestEngine_Submit_MissingBinaryFinalizesWithError(t *testing.T) {
	store := newTestStore(t)
	sessionID := "44444444-4444-4444-4444-444444444444"
	_, err := store.CreateSession(sessionID, t.TempDir(), "gpt-4o")
	require.NoError(t, err)

	e := New(store, nil, Config{Bin: "/nonexistent/does-not-exist"})

	_, err = e.Submit(sessionID, "hello", "")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		records, err := journal.ReadAll(store.JournalPath(sessionID))
		if err != nil {
			return false
		}
		for _, rec := range records {
			if rec.Event == journal.EventMessageEnd {
				var data journal.MessageEndData
				if unmarshalRecord(rec, &data) == nil && data.StopReason == journal.StopError {
					return true
				}
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngine_Cancel_FinalizesRunningTurnAsCancelled(t *testing.T) {
	store := newTestStore(t)
	sessionID := "55555555-5555-5555-5555-555555555555"
	_, err := store.CreateSession(sessionID, t.TempDir(), "gpt-4o")
	require.NoError(t, err)

	// A slow fake child that never finishes on its own within the test
	// window, so Cancel has something to interrupt.
	bin := writeFakeExecBin(t, `
echo '{"type":"thread.started","thread_id":"thread-slow"}'
sleep 5
`)
	e := New(store, nil, Config{Bin: bin, GraceKillTimeout: 50 * time.Millisecond})

	_, err = e.Submit(sessionID, "long running task", "")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		res, _ := e.Cancel(sessionID, true)
		return res.TurnWasRunning
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		records, err := journal.ReadAll(store.JournalPath(sessionID))
		if err != nil {
			return false
		}
		for _, rec := range records {
			if rec.Event == journal.EventMessageEnd {
				var data journal.MessageEndData
				if unmarshalRecord(rec, &data) == nil && data.StopReason == journal.StopCancelled {
					return true
				}
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLookupMaxTokens(t *testing.T) {
	mt, ok := lookupMaxTokens("gpt-4o-2024-11-20")
	require.True(t, ok)
	assert.Equal(t, 128_000, mt)

	mt, ok = lookupMaxTokens("o3")
	require.True(t, ok)
	assert.Equal(t, 200_000, mt)

	_, ok = lookupMaxTokens("o3-preview")
	assert.False(t, ok)

	_, ok = lookupMaxTokens("some-unknown-model")
	assert.False(t, ok)
}

func TestIsSlashCommand(t *testing.T) {
	assert.True(t, isSlashCommand("/models"))
	assert.True(t, isSlashCommand("/model o3"))
	assert.False(t, isSlashCommand("/modeloid"))
	assert.False(t, isSlashCommand("hello /models"))
}
