package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kirillkom/docqa/internal/adapters/cli"
	mcpadapter "github.com/kirillkom/docqa/internal/adapters/mcp"
	"github.com/kirillkom/docqa/internal/bootstrap"
	"github.com/kirillkom/docqa/internal/config"
	"github.com/kirillkom/docqa/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	// stdout belongs to command output and the MCP stdio transport.
	slog.SetDefault(logging.NewTextLogger(os.Stderr, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(func(ctx context.Context) (*cli.Services, error) {
		app, err := bootstrap.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		services := &cli.Services{
			Ingestor: app.IngestUC,
			Answerer: app.QueryUC,
			Reader:   app.IngestUC,
			MCP:      mcpadapter.New(app.QueryUC, app.IngestUC).MCPServer(),
			Close:    app.Close,
		}
		if app.Events != nil {
			services.Events = app.Events
		}
		return services, nil
	})
	root.SetOut(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
