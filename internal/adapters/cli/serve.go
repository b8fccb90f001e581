package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kirillkom/docqa/internal/core/domain"
)

func newEventsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Follow document indexed events",
		Long:  `Prints every documents.indexed event until interrupted. Requires NATS_URL.`,
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string, services *Services) error {
			if services.Events == nil {
				return errors.New("events are disabled: set NATS_URL")
			}
			return services.Events.SubscribeDocumentIndexed(cmd.Context(), func(_ context.Context, event domain.DocumentIndexed) error {
				cmd.Printf("%s %s (%s) chunks=%d\n",
					event.IndexedAt.Format("2006-01-02T15:04:05Z07:00"),
					event.DocumentID,
					event.Filename,
					event.ChunkCount,
				)
				return nil
			})
		}),
	}
}

func newMCPCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		Long: `Runs the Model Context Protocol server on stdin/stdout so that
assistants can call the list_documents and ask tools.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(_ *cobra.Command, _ []string, services *Services) error {
			if services.MCP == nil {
				return errors.New("mcp server not configured")
			}
			if err := server.ServeStdio(services.MCP); err != nil {
				return fmt.Errorf("serve mcp: %w", err)
			}
			return nil
		}),
	}
}
