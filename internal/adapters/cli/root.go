// Package cli is the operator command line for ingesting documents and
// asking questions without going through HTTP.
package cli

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

// EventSource streams index events. Implemented by the NATS publisher.
type EventSource interface {
	SubscribeDocumentIndexed(ctx context.Context, handler func(context.Context, domain.DocumentIndexed) error) error
}

type Services struct {
	Ingestor ports.DocumentIngestor
	Answerer ports.QuestionAnswerer
	Reader   ports.DocumentReader
	Events   EventSource
	MCP      *server.MCPServer
	Close    func()
}

// Loader builds services on first use so that --help works without any
// backing infrastructure.
type Loader func(ctx context.Context) (*Services, error)

type app struct {
	load     Loader
	services *Services
}

func (a *app) get(ctx context.Context) (*Services, error) {
	if a.services != nil {
		return a.services, nil
	}
	if a.load == nil {
		return nil, errors.New("services not configured")
	}
	services, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	a.services = services
	return services, nil
}

func (a *app) close() {
	if a.services != nil && a.services.Close != nil {
		a.services.Close()
	}
	a.services = nil
}

// run loads services for fn and releases them when fn returns, whether or
// not it failed.
func (a *app) run(fn func(cmd *cobra.Command, args []string, services *Services) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		services, err := a.get(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd, args, services)
	}
}

func NewRootCommand(load Loader) *cobra.Command {
	a := &app{load: load}

	root := &cobra.Command{
		Use:   "docqa",
		Short: "Ask questions about your PDF documents",
		Long: `docqa indexes PDF documents one index per document and answers
questions from the documents you select, citing document and page.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newIngestCommand(a),
		newAskCommand(a),
		newDocumentsCommand(a),
		newShowCommand(a),
		newEventsCommand(a),
		newMCPCommand(a),
	)
	return root
}
