// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package journal implements the append-only, cursor-ordered per-session
// event log and its metadata sidecar (spec §4.A).
package journal

import (
	"encoding/json"
	"regexp"
	"time"
)

// SessionIDPattern is the v4-style UUID format session ids must match.
var SessionIDPattern = regexp.MustCompile(`^[a-f0-9]{8}-([a-f0-9]{4}-){3}[a-f0-9]{12}$`)

// Event kinds. message_start/content_block/message_end/session_meta are the
// closed, tagged-variant core set; history_start/history_end/heartbeat are
// framing-only kinds used by the tailer and are never persisted.
const (
	EventMessageStart = "message_start"
	EventContentBlock = "content_block"
	EventMessageEnd   = "message_end"
	EventSessionMeta  = "session_meta"
	EventHistoryStart = "history_start"
	EventHistoryEnd   = "history_end"
	EventHeartbeat    = "heartbeat"
)

// Roles for message_start/message_end.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Stop reasons for message_end.
const (
	StopEndTurn   = "end_turn"
	StopError     = "error"
	StopCancelled = "cancelled"
)

// Content block types.
const (
	BlockText       = "text"
	BlockThinking   = "thinking"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// Record is a single canonical JSON line of the journal:
// { "cursor": "<N>", "event": "<kind>", "data": { ... } }
// Cursor is encoded as a string for client-header compatibility.
type Record struct {
	Cursor string          `json:"cursor"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// MessageStartData is the data payload of a message_start event.
type MessageStartData struct {
	ID         string    `json:"id"`
	LineNumber int       `json:"lineNumber"`
	Role       string    `json:"role"`
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"sessionId"`
}

// Block is the tagged variant over text|thinking|tool_use|tool_result.
type Block struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ToolUseID string          `json:"toolUseId,omitempty"`
	ToolName  string          `json:"toolName,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"isError,omitempty"`
	CharCount int             `json:"charCount,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) Block { return Block{Type: BlockText, Text: text} }

// ThinkingBlock builds a thinking content block.
func ThinkingBlock(text string) Block { return Block{Type: BlockThinking, Thinking: text} }

// ToolUseBlock builds a tool_use content block.
func ToolUseBlock(toolUseID, toolName string, input json.RawMessage) Block {
	return Block{Type: BlockToolUse, ToolUseID: toolUseID, ToolName: toolName, Input: input}
}

// ToolResultBlock builds a tool_result content block, deriving charCount from content.
func ToolResultBlock(toolUseID, content string, isError bool) Block {
	return Block{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError, CharCount: len(content)}
}

// ContentBlockData is the data payload of a content_block event.
type ContentBlockData struct {
	MessageID string `json:"messageId"`
	Index     int    `json:"index"`
	Block     Block  `json:"block"`
}

// MessageEndData is the data payload of a message_end event.
type MessageEndData struct {
	ID         string `json:"id"`
	StopReason string `json:"stopReason"`
}

// Usage is the accumulated token accounting for a session.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	CachedTokens int `json:"cachedTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// ContextInfo is the derived context-window accounting for a session.
type ContextInfo struct {
	MaxTokens   *int     `json:"maxTokens"`
	UsedTokens  int      `json:"usedTokens"`
	PercentLeft *float64 `json:"percentLeft"`
}

// SessionMetaData is the data payload of a session_meta event. It may be
// emitted at any time and carries no ordering contract beyond the cursor.
type SessionMetaData struct {
	Provider       string      `json:"provider"`
	SessionID      string      `json:"sessionId"`
	Cwd            string      `json:"cwd"`
	Model          string      `json:"model"`
	LatestThreadID string      `json:"latestThreadId,omitempty"`
	Usage          Usage       `json:"usage"`
	ContextInfo    ContextInfo `json:"contextInfo"`
	IsActive       bool        `json:"isActive"`
	QueueLength    int         `json:"queueLength"`
}

// Sidecar is the small per-session metadata file mirroring summary fields
// and lastCursor.
type Sidecar struct {
	ID                 string      `json:"id"`
	Cwd                string      `json:"cwd"`
	Model              string      `json:"model"`
	CreatedAt          time.Time   `json:"createdAt"`
	LastMessageAt      time.Time   `json:"lastMessageAt,omitempty"`
	LastMessagePreview string      `json:"lastMessagePreview,omitempty"`
	MessageCount       int         `json:"messageCount"`
	LastCursor         int         `json:"lastCursor"`
	LatestThreadID     string      `json:"latestThreadId,omitempty"`
	Usage              Usage       `json:"usage"`
	ContextInfo        ContextInfo `json:"contextInfo"`
}

// SidecarUpdate carries a partial update to merge over the current sidecar
// on commit. Nil fields are left unchanged.
type SidecarUpdate struct {
	LastMessageAt      *time.Time
	LastMessagePreview *string
	MessageCount       *int
	LatestThreadID     *string
	Model              *string
	Usage              *Usage
	ContextInfo        *ContextInfo
}

func (u SidecarUpdate) apply(sc *Sidecar) {
	if u.LastMessageAt != nil {
		sc.LastMessageAt = *u.LastMessageAt
	}
	if u.LastMessagePreview != nil {
		sc.LastMessagePreview = *u.LastMessagePreview
	}
	if u.MessageCount != nil {
		sc.MessageCount = *u.MessageCount
	}
	if u.LatestThreadID != nil {
		sc.LatestThreadID = *u.LatestThreadID
	}
	if u.Model != nil {
		sc.Model = *u.Model
	}
	if u.Usage != nil {
		sc.Usage = *u.Usage
	}
	if u.ContextInfo != nil {
		sc.ContextInfo = *u.ContextInfo
	}
}

// Preview truncates s to at most n runes worth of bytes (simple byte-cap,
// matching the teacher's preview truncation elsewhere in the codebase).
func Preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
