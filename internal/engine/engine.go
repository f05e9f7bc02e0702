// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nwgate/codex-gateway/internal/gwevents"
	"github.com/nwgate/codex-gateway/internal/journal"
)

// Engine serializes and executes turns for every active session.
type Engine struct {
	store *journal.Store
	bus   *gwevents.MemoryBus
	cfg   Config

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// sessionState is the per-session queue, active child, and bookkeeping
// described in spec §4.D "State per session."
type sessionState struct {
	mu          sync.Mutex
	queue       []Turn
	activeSet   bool
	activeCmd   *exec.Cmd
	activeModel string
	finalizeOnce *sync.Once
	finalize     func(stopReason string, exitCode *int, signal string)
}

// New builds an Engine. bus may be nil if the debug event surface isn't
// wired up (tests, or a minimal deployment).
func New(store *journal.Store, bus *gwevents.MemoryBus, cfg Config) *Engine {
	cfg.setDefaults()
	return &Engine{
		store:    store,
		bus:      bus,
		cfg:      cfg,
		sessions: make(map[string]*sessionState),
	}
}

// IsActive reports whether sessionID currently has a turn running,
// satisfying directory.ActiveSetFunc without that package needing to
// import engine.
func (e *Engine) IsActive(sessionID string) bool {
	st := e.state(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.activeSet
}

// QueueLength reports the number of turns waiting behind the active one,
// for session_meta and diagnostics.
func (e *Engine) QueueLength(sessionID string) int {
	st := e.state(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.queue)
}

// SessionMeta builds the current journal.SessionMetaData for sessionID from
// its sidecar plus live engine state, satisfying tailer.SessionMetaFunc.
func (e *Engine) SessionMeta(sessionID string) (journal.SessionMetaData, error) {
	sc, err := e.store.ReadSidecar(sessionID)
	if err != nil {
		return journal.SessionMetaData{}, err
	}

	st := e.state(sessionID)
	st.mu.Lock()
	isActive := st.activeSet
	queueLen := len(st.queue)
	st.mu.Unlock()

	return journal.SessionMetaData{
		Provider:       "exec",
		SessionID:      sessionID,
		Cwd:            sc.Cwd,
		Model:          sc.Model,
		LatestThreadID: sc.LatestThreadID,
		Usage:          sc.Usage,
		ContextInfo:    sc.ContextInfo,
		IsActive:       isActive,
		QueueLength:    queueLen,
	}, nil
}

func (e *Engine) state(sessionID string) *sessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[sessionID]
	if !ok {
		s = &sessionState{}
		e.sessions[sessionID] = s
	}
	return s
}

// Submit implements spec §4.D's submit protocol: record the user turn in
// the journal, handle inline slash commands, or enqueue the turn and kick
// off the next run.
func (e *Engine) Submit(sessionID, content, imagePath string) (string, error) {
	sc, err := e.store.ReadSidecar(sessionID)
	if err != nil {
		return "", err
	}

	prompt := content
	if imagePath != "" {
		prompt = content + fmt.Sprintf("\n\n[Attached image: %s]", imagePath)
	}

	w, err := journal.OpenWriter(e.store, sessionID)
	if err != nil {
		return "", err
	}
	defer w.Close()

	messageID := uuid.NewString()
	if _, err := w.Append(journal.EventMessageStart, journal.MessageStartData{
		ID:        messageID,
		Role:      journal.RoleUser,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
	}); err != nil {
		return "", err
	}
	if _, err := w.Append(journal.EventContentBlock, journal.ContentBlockData{
		Block: journal.TextBlock(prompt),
	}); err != nil {
		return "", err
	}
	cursor, err := w.Append(journal.EventMessageEnd, journal.MessageEndData{StopReason: journal.StopEndTurn})
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	preview := truncate(content, previewLen)
	count := cursor
	if _, err := w.Commit(journal.SidecarUpdate{
		LastMessageAt:      &now,
		LastMessagePreview: &preview,
		MessageCount:       &count,
	}); err != nil {
		return "", err
	}

	if isSlashCommand(content) {
		return messageID, e.handleSlashCommand(w, sessionID, sc.Model, content)
	}

	st := e.state(sessionID)
	st.mu.Lock()
	st.queue = append(st.queue, Turn{Prompt: prompt, Content: content, ImagePath: imagePath})
	queueLen := len(st.queue)
	isActive := st.activeSet
	st.mu.Unlock()

	if _, err := w.Append(journal.EventSessionMeta, journal.SessionMetaData{
		SessionID:   sessionID,
		IsActive:    isActive,
		QueueLength: queueLen,
	}); err != nil {
		return "", err
	}

	go e.startNextTurn(sessionID)
	return messageID, nil
}

// handleSlashCommand implements the inline /models and /model <name>
// handlers: no child is spawned, an assistant message pair is written
// directly, and the sidecar's model is updated for /model.
func (e *Engine) handleSlashCommand(w *journal.Writer, sessionID, currentModel, content string) error {
	trimmed := strings.TrimSpace(content)
	var replyText string

	switch {
	case trimmed == "/models":
		replyText = fmt.Sprintf("Available models: %v", e.cfg.ModelChoices)
	default:
		newModel := strings.TrimSpace(trimmed[len("/model "):])
		replyText = fmt.Sprintf("Model set to %s", newModel)
		currentModel = newModel
	}

	assistantID := uuid.NewString()
	now := time.Now().UTC()
	if _, err := w.Append(journal.EventMessageStart, journal.MessageStartData{
		ID: assistantID, Role: journal.RoleAssistant, Timestamp: now, SessionID: sessionID,
	}); err != nil {
		return err
	}
	if _, err := w.Append(journal.EventContentBlock, journal.ContentBlockData{
		MessageID: assistantID, Block: journal.TextBlock(replyText),
	}); err != nil {
		return err
	}
	cursor, err := w.Append(journal.EventMessageEnd, journal.MessageEndData{ID: assistantID, StopReason: journal.StopEndTurn})
	if err != nil {
		return err
	}

	count := cursor
	_, err = w.Commit(journal.SidecarUpdate{Model: &currentModel, MessageCount: &count})
	return err
}

// startNextTurn implements spec §4.D's turn execution: pop a queued turn
// and spawn the exec child for it, unless one is already running.
func (e *Engine) startNextTurn(sessionID string) {
	st := e.state(sessionID)

	st.mu.Lock()
	if st.activeSet {
		st.mu.Unlock()
		return
	}
	if len(st.queue) == 0 {
		st.mu.Unlock()
		return
	}
	turn := st.queue[0]
	st.queue = st.queue[1:]
	st.activeSet = true
	onceRef := &sync.Once{}
	st.finalizeOnce = onceRef
	st.mu.Unlock()

	sc, err := e.store.ReadSidecar(sessionID)
	if err != nil {
		log.Printf("engine: session %s: reload sidecar: %v", sessionID, err)
		st.mu.Lock()
		st.activeSet = false
		st.mu.Unlock()
		return
	}

	model := sc.Model
	if model == "" {
		model = e.cfg.DefaultModel
	}

	w, err := journal.OpenWriter(e.store, sessionID)
	if err != nil {
		log.Printf("engine: session %s: open writer: %v", sessionID, err)
		st.mu.Lock()
		st.activeSet = false
		st.mu.Unlock()
		return
	}

	assistantID := uuid.NewString()
	var accMu sync.Mutex
	blocksEmitted := 0
	var assistantPreview string
	var threadID string
	var usage journal.Usage

	emitBlock := func(block journal.Block) {
		accMu.Lock()
		idx := blocksEmitted
		accMu.Unlock()
		if _, err := w.Append(journal.EventContentBlock, journal.ContentBlockData{
			MessageID: assistantID, Index: idx, Block: block,
		}); err != nil {
			log.Printf("engine: session %s: append content_block: %v", sessionID, err)
			return
		}
		accMu.Lock()
		blocksEmitted++
		accMu.Unlock()
	}

	if _, err := w.Append(journal.EventMessageStart, journal.MessageStartData{
		ID: assistantID, Role: journal.RoleAssistant, Timestamp: time.Now().UTC(), SessionID: sessionID,
	}); err != nil {
		log.Printf("engine: session %s: append message_start: %v", sessionID, err)
	}

	ring := newStderrRing(e.cfg.StderrRingSize)

	finalize := func(stopReason string, exitCode *int, signal string) {
		onceRef.Do(func() {
			accMu.Lock()
			snapBlocks := blocksEmitted
			snapPreview := assistantPreview
			snapThread := threadID
			snapUsage := usage
			accMu.Unlock()
			e.finalizeTurn(w, sessionID, st, finalizeCtx{
				assistantID:      assistantID,
				turn:             turn,
				blocksEmitted:    snapBlocks,
				assistantPreview: snapPreview,
				model:            model,
				threadID:         snapThread,
				usage:            snapUsage,
				stopReason:       stopReason,
				exitCode:         exitCode,
				signal:           signal,
				stderrPreview:    ring.preview(stderrPreviewLen),
			})
		})
	}
	st.mu.Lock()
	st.finalize = finalize
	st.activeModel = model
	st.mu.Unlock()

	if _, err := exec.LookPath(e.cfg.Bin); err != nil {
		finalize(journal.StopError, nil, "")
		w.Close()
		return
	}

	args := buildExecArgs(e.cfg, sc.Cwd, model, turn.Prompt)
	cmd := exec.Command(e.cfg.Bin, args...)
	cmd.Dir = sc.Cwd

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		finalize(journal.StopError, nil, "")
		w.Close()
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		finalize(journal.StopError, nil, "")
		w.Close()
		return
	}
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		finalize(journal.StopError, nil, "")
		w.Close()
		return
	}

	st.mu.Lock()
	st.activeCmd = cmd
	st.mu.Unlock()

	go drainStderr(stderr, ring)

	scanStdout(stdout, func(ev execEvent) {
		switch ev.Type {
		case execEventThreadStarted:
			accMu.Lock()
			threadID = ev.ThreadID
			accMu.Unlock()
		case execEventTurnCompleted:
			if ev.Usage != nil {
				accMu.Lock()
				usage = journal.Usage{
					InputTokens:  ev.Usage.InputTokens,
					CachedTokens: ev.Usage.CachedInputTokens,
					OutputTokens: ev.Usage.OutputTokens,
					TotalTokens:  ev.Usage.InputTokens + ev.Usage.OutputTokens,
				}
				accMu.Unlock()
			}
		case execEventItemStarted:
			if ev.Item != nil && ev.Item.Type == execItemCommandExecution {
				emitBlock(journal.ToolUseBlock(ev.Item.ID, "bash", mustMarshalCommand(ev.Item.Command)))
			}
		case execEventItemCompleted:
			if ev.Item == nil {
				return
			}
			switch ev.Item.Type {
			case execItemCommandExecution:
				exitCode := 0
				if ev.Item.ExitCode != nil {
					exitCode = *ev.Item.ExitCode
				}
				emitBlock(journal.ToolResultBlock(ev.Item.ID, ev.Item.AggregatedOutput, exitCode != 0))
			case execItemAgentMessage:
				emitBlock(journal.TextBlock(ev.Item.Text))
				accMu.Lock()
				assistantPreview = ev.Item.Text
				accMu.Unlock()
			case execItemReasoning:
				emitBlock(journal.ThinkingBlock(ev.Item.Text))
			}
		}
	})

	err = cmd.Wait()
	stopReason := journal.StopEndTurn
	var exitCode *int
	if err != nil {
		stopReason = journal.StopError
		if exitErr, ok := err.(*exec.ExitError); ok {
			code := exitErr.ExitCode()
			exitCode = &code
		}
	}

	finalize(stopReason, exitCode, "")
	w.Close()
}

// finalizeCtx carries everything finalizeTurn needs, gathered while the
// child ran.
type finalizeCtx struct {
	assistantID      string
	turn             Turn
	blocksEmitted    int
	assistantPreview string
	model            string
	threadID         string
	usage            journal.Usage
	stopReason       string
	exitCode         *int
	signal           string
	stderrPreview    string
}

// finalizeTurn implements spec §4.D's finalization contract.
func (e *Engine) finalizeTurn(w *journal.Writer, sessionID string, st *sessionState, fc finalizeCtx) {
	switch fc.stopReason {
	case journal.StopError:
		if fc.blocksEmitted == 0 {
			text := "Executable not found or exited with error"
			if fc.exitCode != nil {
				text = fmt.Sprintf("Process exited with code %d", *fc.exitCode)
			}
			if fc.stderrPreview != "" {
				text += ": " + truncate(fc.stderrPreview, stderrPreviewLen)
			}
			w.Append(journal.EventContentBlock, journal.ContentBlockData{
				MessageID: fc.assistantID, Block: journal.TextBlock(text),
			})
		} else if fc.stderrPreview != "" {
			w.Append(journal.EventContentBlock, journal.ContentBlockData{
				MessageID: fc.assistantID,
				Block:     journal.TextBlock(truncate(fc.stderrPreview, stderrPreviewLen)),
			})
		}
	case journal.StopCancelled:
		if fc.blocksEmitted == 0 {
			w.Append(journal.EventContentBlock, journal.ContentBlockData{
				MessageID: fc.assistantID, Block: journal.TextBlock("Cancelled."),
			})
		}
	}

	w.Append(journal.EventMessageEnd, journal.MessageEndData{ID: fc.assistantID, StopReason: fc.stopReason})

	ctxInfo := journal.ContextInfo{UsedTokens: fc.usage.TotalTokens}
	if maxTokens, ok := lookupMaxTokens(fc.model); ok {
		pctLeft := 0.0
		if maxTokens > 0 {
			pctLeft = maxFloat(0, float64(maxTokens-fc.usage.TotalTokens)/float64(maxTokens))
		}
		mt := maxTokens
		ctxInfo.MaxTokens = &mt
		ctxInfo.PercentLeft = &pctLeft
	}

	preview := fc.assistantPreview
	if preview == "" {
		preview = fc.turn.Content
	}
	preview = truncate(preview, previewLen)

	now := time.Now().UTC()
	count := w.Cursor()
	sc, err := w.Commit(journal.SidecarUpdate{
		LastMessageAt:      &now,
		LastMessagePreview: &preview,
		MessageCount:       &count,
		LatestThreadID:     &fc.threadID,
		Model:              &fc.model,
		Usage:              &fc.usage,
		ContextInfo:        &ctxInfo,
	})
	if err != nil {
		log.Printf("engine: session %s: commit sidecar on finalize: %v", sessionID, err)
	}

	st.mu.Lock()
	st.activeSet = false
	st.activeCmd = nil
	st.finalize = nil
	queueLen := len(st.queue)
	st.mu.Unlock()

	w.Append(journal.EventSessionMeta, journal.SessionMetaData{
		SessionID:   sessionID,
		Model:       sc.Model,
		Usage:       sc.Usage,
		ContextInfo: sc.ContextInfo,
		IsActive:    false,
		QueueLength: queueLen,
	})

	if e.bus != nil {
		e.bus.Publish(context.Background(), gwevents.Event{
			Type:      gwevents.EventTurnFinalized,
			SessionID: sessionID,
			Payload:   map[string]interface{}{"stopReason": fc.stopReason},
		})
	}

	go e.startNextTurn(sessionID)
}

// CancelResult reports what Cancel actually did, per spec §4.D.
type CancelResult struct {
	TurnWasRunning bool
	QueueCleared   bool
}

// Cancel implements spec §4.D's cancellation contract: optionally clear the
// queue, and if a turn is active, finalize it as cancelled and terminate
// its child (graceful first, hard kill after the configured grace period).
func (e *Engine) Cancel(sessionID string, clearQueue bool) (CancelResult, error) {
	st := e.state(sessionID)

	st.mu.Lock()
	if clearQueue {
		st.queue = nil
	}
	wasRunning := st.activeSet
	cmd := st.activeCmd
	finalize := st.finalize
	st.mu.Unlock()

	if wasRunning && finalize != nil {
		finalize(journal.StopCancelled, nil, "cancel_request")
		if cmd != nil && cmd.Process != nil {
			terminateGracefully(cmd, e.cfg.GraceKillTimeout)
		}
	}

	return CancelResult{TurnWasRunning: wasRunning, QueueCleared: clearQueue}, nil
}

func buildExecArgs(cfg Config, cwd, model, prompt string) []string {
	args := []string{
		"-a", cfg.ApprovalPolicy,
		"exec", "--json", "--skip-git-repo-check",
		"-C", cwd,
		"--sandbox", cfg.SandboxMode,
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, prompt)
	return args
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
