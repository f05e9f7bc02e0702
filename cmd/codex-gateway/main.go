// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/nwgate/codex-gateway/internal/app"
	"github.com/nwgate/codex-gateway/internal/config"
)

var version = "0.1.0"

func main() {
	// Check for subcommands before flag parsing.
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	var (
		configPath  string
		host        string
		port        int
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "HTTP server host (overrides config)")
	flag.IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.Parse()

	if showVersion {
		fmt.Printf("codex-gateway %s\n", version)
		os.Exit(0)
	}

	if configPath == "" {
		loader := config.NewLoader()
		found, err := loader.FindConfig()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		configPath = found
	}

	log.Printf("Using config: %s", configPath)

	application, err := app.New(app.Options{
		ConfigPath: configPath,
		Host:       host,
		Port:       port,
		Version:    version,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	ctx := context.Background()
	if err := application.Run(ctx); err != nil {
		log.Fatalf("App error: %v", err)
	}
}

// runInit handles the "codex-gateway init" command.
func runInit() error {
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	showHelp := initFlags.Bool("help", false, "Show help for init command")
	initFlags.BoolVar(showHelp, "h", false, "Show help for init command")
	initFlags.Parse(os.Args[2:])

	if *showHelp {
		fmt.Println(`Usage: codex-gateway init [options]

Create a new codex-gateway.hjson configuration file in the current
directory.

This command walks you through setting up a gateway configuration with
interactive prompts. The generated file is fully commented to help you
understand and customize all available options.

Options:
  -h, -help    Show this help message

Examples:
  codex-gateway init              Create config with interactive prompts

After running init:
  1. Review and edit codex-gateway.hjson as needed
  2. Run: ./codex-gateway
  3. Point a client at http://localhost:8765`)
		return nil
	}

	configFile := "codex-gateway.hjson"

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", configFile)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("codex-gateway Configuration Setup")
	fmt.Println("==================================")
	fmt.Println()
	fmt.Println("This will create a codex-gateway.hjson configuration file in the current directory.")
	fmt.Println("Press Enter to accept defaults shown in [brackets].")
	fmt.Println()

	port := promptInt(reader, "Server port", 8765)
	execBin := prompt(reader, "Exec binary (path or name on PATH)", "codex")
	approvalPolicy := prompt(reader, "Approval policy (untrusted/on-failure/on-request/never)", "on-request")
	sandboxMode := prompt(reader, "Sandbox mode (read-only/workspace-write/danger-full-access)", "workspace-write")
	defaultModel := prompt(reader, "Default model", "gpt-5.2-codex")
	stateDir := prompt(reader, "State directory (journal + sidecars)", "./data")

	configContent := generateConfig(port, execBin, approvalPolicy, sandboxMode, defaultModel, stateDir)

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Println()
	fmt.Printf("Created %s\n", configFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit codex-gateway.hjson as needed")
	fmt.Println("  2. Run: ./codex-gateway")
	fmt.Printf("  3. Point a client at http://localhost:%d\n", port)
	fmt.Println()

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

func promptInt(reader *bufio.Reader, question string, defaultVal int) int {
	raw := prompt(reader, question, strconv.Itoa(defaultVal))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return n
}

func generateConfig(port int, execBin, approvalPolicy, sandboxMode, defaultModel, stateDir string) string {
	var sb strings.Builder

	sb.WriteString(`{
  // =============================================================================
  // codex-gateway Configuration
  // =============================================================================
  //
  // This is an HJSON file (JSON with comments and relaxed syntax).

  version: "1"

  // Working directory PTY sessions are spawned in. Exec sessions always
  // take the cwd given when they are started.
  workdir: "."

`)
	fmt.Fprintf(&sb, "  // Exec binary and the flags forwarded to every turn.\n")
	fmt.Fprintf(&sb, "  exec_bin: %q\n", execBin)
	fmt.Fprintf(&sb, "  approval_policy: %q\n", approvalPolicy)
	fmt.Fprintf(&sb, "  sandbox_mode: %q\n", sandboxMode)
	fmt.Fprintf(&sb, "  default_model: %q\n", defaultModel)
	sb.WriteString(`  model_choices: [
`)
	fmt.Fprintf(&sb, "    %q\n", defaultModel)
	sb.WriteString(`  ]

  // PTY registry tuning (spec §4.B).
  session_ttl_ms: 14400000       // 4h
  idle_timeout_ms: 1800000       // 30m
  history_limit: 200000          // bytes of scrollback kept per session

  // SSE tailer tuning (spec §4.C).
  heartbeat_interval_ms: 15000
  tailer_idle_timeout_ms: 60000

`)
	fmt.Fprintf(&sb, "  // Where session journals and sidecars are written.\n  state_dir: %q\n\n", stateDir)
	sb.WriteString(`  server: {
`)
	fmt.Fprintf(&sb, "    host: \"0.0.0.0\"\n    port: %d\n", port)
	sb.WriteString(`  }

  logging: {
    level: "info"
  }
}
`)

	return sb.String()
}
