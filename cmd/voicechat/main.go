// Command voicechat is a terminal client for a realtime voice/chat session.
//
//	voicechat          start the chat UI
//	voicechat schema   print the JSON schema of every protocol envelope
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-session/core/protocol"
	"github.com/koscakluka/ema-session/internal/config"
	"github.com/koscakluka/ema-session/internal/telemetry"
)

const serviceName = "voicechat"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "schema" {
		if err := printSchemas(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "voicechat schema: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "voicechat fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	shutdown, err := telemetry.Setup(ctx, serviceName, telemetry.Options{
		Endpoint: cfg.Telemetry.Endpoint,
		Enabled:  cfg.Telemetry.Enabled,
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	p := tea.NewProgram(newModel(app.modelDeps()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

type schemaEntry struct {
	Type   protocol.MessageType `json:"type"`
	Schema any                  `json:"schema"`
}

func printSchemas(w io.Writer) error {
	schemas := protocol.Schemas()
	entries := make([]schemaEntry, 0, len(schemas))
	for messageType, schema := range schemas {
		entries = append(entries, schemaEntry{Type: messageType, Schema: schema})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Type < entries[j].Type })

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}
