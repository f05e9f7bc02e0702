// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

// execEvent is one NDJSON line emitted by the exec binary's `--json`
// stdout stream (spec §4.D step 7's transcoding table).
type execEvent struct {
	Type     string        `json:"type"`
	ThreadID string        `json:"thread_id,omitempty"`
	Usage    *execUsage    `json:"usage,omitempty"`
	Item     *execItem     `json:"item,omitempty"`
}

// execItem is the nested item payload on item.started/item.completed
// events.
type execItem struct {
	ID                string `json:"id"`
	Type              string `json:"type"` // command_execution | agent_message | reasoning
	Command           string `json:"command,omitempty"`
	AggregatedOutput  string `json:"aggregated_output,omitempty"`
	ExitCode          *int   `json:"exit_code,omitempty"`
	Text              string `json:"text,omitempty"`
}

// execUsage is the token accounting carried on turn.completed.
type execUsage struct {
	InputTokens       int `json:"input_tokens"`
	CachedInputTokens int `json:"cached_input_tokens"`
	OutputTokens      int `json:"output_tokens"`
}

const (
	execEventThreadStarted  = "thread.started"
	execEventTurnCompleted  = "turn.completed"
	execEventItemStarted    = "item.started"
	execEventItemCompleted  = "item.completed"

	execItemCommandExecution = "command_execution"
	execItemAgentMessage     = "agent_message"
	execItemReasoning        = "reasoning"
)
