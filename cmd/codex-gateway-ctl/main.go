// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// codex-gateway-ctl is a command-line tool for controlling a running
// codex-gateway instance.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nwgate/codex-gateway/pkg/client"
)

var (
	version    = "0.1.0"
	apiURL     = "http://localhost:8765"
	jsonOutput = false

	apiClient *client.Client
)

func main() {
	if env := os.Getenv("CODEX_GATEWAY_API"); env != "" {
		apiURL = strings.TrimSuffix(env, "/")
	}

	var filteredArgs []string
	for _, arg := range os.Args[1:] {
		if arg == "-json" {
			jsonOutput = true
		} else {
			filteredArgs = append(filteredArgs, arg)
		}
	}

	apiClient = client.New(apiURL)

	if len(filteredArgs) < 1 {
		printUsage()
		os.Exit(1)
	}

	cmd := filteredArgs[0]
	args := filteredArgs[1:]

	var err error
	switch cmd {
	case "sessions":
		err = cmdSessions(args)
	case "start":
		err = cmdStart(args)
	case "submit":
		err = cmdSubmit(args)
	case "cancel":
		err = cmdCancel(args)
	case "events":
		err = cmdEvents(args)
	case "version", "-v", "--version":
		fmt.Printf("codex-gateway-ctl %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`codex-gateway-ctl - Control a running codex-gateway instance

Usage:
  codex-gateway-ctl [-json] <command> [arguments]

Global Flags:
  -json          Output in JSON format

Environment:
  CODEX_GATEWAY_API    Base URL of the gateway API (default: http://localhost:8765)

Commands:
  sessions [-offset N] [-limit N]   List sessions, most-recent-first
  start <cwd> [model]               Start a new session rooted at cwd
  submit <session> <content>        Submit a user message to a session
  cancel <session> [-clear-queue]   Cancel a session's active turn
  events [-n N] [-type T] [-session ID]   Show recent debug events

  version                  Show version
  help                     Show this help`)
}

func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

func cmdSessions(args []string) error {
	offset, limit := 0, 50
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-offset":
			if i+1 < len(args) {
				i++
				offset, _ = strconv.Atoi(args[i])
			}
		case "-limit":
			if i+1 < len(args) {
				i++
				limit, _ = strconv.Atoi(args[i])
			}
		}
	}

	ctx := context.Background()
	page, err := apiClient.Sessions.List(ctx, offset, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(page)
		return nil
	}

	fmt.Printf("%-38s %-8s %-30s %-10s %s\n", "ID", "ACTIVE", "CWD", "MODEL", "MESSAGES")
	fmt.Println(strings.Repeat("-", 100))
	for _, s := range page.Sessions {
		active := ""
		if s.IsActive {
			active = "*"
		}
		cwd := s.Cwd
		if len(cwd) > 30 {
			cwd = cwd[:27] + "..."
		}
		fmt.Printf("%-38s %-8s %-30s %-10s %d\n", s.ID, active, cwd, s.Model, s.MessageCount)
	}
	if page.HasMore {
		fmt.Printf("\n(%d of %d; more available)\n", len(page.Sessions), page.Total)
	}

	return nil
}

func cmdStart(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: codex-gateway-ctl start <cwd> [model]")
	}

	cwd := args[0]
	model := ""
	if len(args) > 1 {
		model = args[1]
	}

	ctx := context.Background()
	sess, err := apiClient.Sessions.Start(ctx, cwd, model)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(sess)
		return nil
	}

	fmt.Printf("Started session %s (cwd: %s, ready: %v)\n", sess.SessionID, sess.Cwd, sess.Ready)
	return nil
}

func cmdSubmit(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: codex-gateway-ctl submit <session> <content>")
	}

	ctx := context.Background()
	sessionID := args[0]
	content := strings.Join(args[1:], " ")

	result, err := apiClient.Sessions.SubmitMessage(ctx, sessionID, content, "")
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(result)
		return nil
	}

	fmt.Printf("Submitted (messageId: %s)\n", result.MessageID)
	return nil
}

func cmdCancel(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: codex-gateway-ctl cancel <session> [-clear-queue]")
	}

	sessionID := args[0]
	clearQueue := false
	for _, a := range args[1:] {
		if a == "-clear-queue" {
			clearQueue = true
		}
	}

	ctx := context.Background()
	result, err := apiClient.Sessions.Cancel(ctx, sessionID, clearQueue)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(result)
		return nil
	}

	fmt.Printf("cancelled: %v, running: %v, queue cleared: %v\n", result.Cancelled, result.Running, result.ClearedQueue)
	return nil
}

func cmdEvents(args []string) error {
	opts := &client.ListOptions{Limit: 50}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-n":
			if i+1 < len(args) {
				i++
				n, err := strconv.Atoi(args[i])
				if err == nil && n > 0 {
					opts.Limit = n
				}
			}
		case "-type":
			if i+1 < len(args) {
				i++
				opts.Type = args[i]
			}
		case "-session":
			if i+1 < len(args) {
				i++
				opts.Session = args[i]
			}
		}
	}

	ctx := context.Background()
	events, err := apiClient.Events.List(ctx, opts)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(events)
		return nil
	}

	fmt.Printf("%-25s %-25s %-38s %s\n", "TIME", "TYPE", "SESSION", "PAYLOAD")
	fmt.Println(strings.Repeat("-", 110))
	for _, evt := range events {
		parts := make([]string, 0, len(evt.Payload))
		for k, v := range evt.Payload {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
		fmt.Printf("%-25s %-25s %-38s %s\n",
			evt.Timestamp.Format("2006-01-02 15:04:05"),
			evt.Type,
			evt.SessionID,
			strings.Join(parts, " "),
		)
	}

	return nil
}
