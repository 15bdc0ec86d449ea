package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spinyfin/mono/internal/acp"
	"github.com/spinyfin/mono/internal/config"
	"github.com/spinyfin/mono/internal/logger"
	"github.com/spinyfin/mono/internal/registry"
)

var promptText string

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Connect to a single adapter and send one or more prompts from this terminal",
	Long: `Connect to the configured adapter directly, without a frontend
socket. With --text, send one prompt and exit. Without it, read
prompts from stdin, one per line, until EOF.`,
	RunE: runPromptCmd,
}

func init() {
	promptCmd.Flags().StringVar(&promptText, "text", "", "prompt text to send; omit for an interactive loop over stdin")
}

func runPromptCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	if l, err := logger.New(cfg.LogPath); err == nil {
		defer l.Close()
	}

	if err := cfg.Preflight(); err != nil {
		return err
	}

	reg := registry.New(cfg)
	agentID, err := reg.CreateAgent(cfg.Cwd)
	if err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}
	defer reg.Remove(agentID)

	fmt.Printf("Connected to adapter. Agent: %s\n", agentID)

	if promptText != "" {
		return sendPrompt(reg, agentID, promptText)
	}

	fmt.Println("Enter a prompt (Ctrl-D to exit):")
	fmt.Print("> ")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			if err := sendPrompt(reg, agentID, line); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
		}
		fmt.Print("> ")
	}
	fmt.Println()
	return scanner.Err()
}

func sendPrompt(reg *registry.Registry, agentID, text string) error {
	onEvent := func(ev acp.AdapterEvent) {
		switch ev.Kind {
		case acp.EventAgentMessageChunk:
			fmt.Print(ev.Text)
			os.Stdout.Sync()
		case acp.EventToolCall, acp.EventToolCallUpdate:
			status := ev.Status
			if status == "" {
				status = "started"
			}
			fmt.Fprintf(os.Stderr, "\n[tool] %s (%s)\n", ev.Title, status)
		case acp.EventPermissionRequest:
			fmt.Fprintf(os.Stderr, "\n[permission requested] %s (id=%s) - use a frontend to respond\n", ev.Title, ev.PermissionID)
		}
	}

	stopReason, err := reg.PromptStreaming(context.Background(), agentID, text, onEvent)
	if err != nil {
		return err
	}
	fmt.Printf("\n[done: %s]\n", stopReason)
	return nil
}
