package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	errNoQuestion  = errors.New("no question provided")
	errNoDocuments = errors.New("no documents selected: pass --doc at least once")
)

func newAskCommand(a *app) *cobra.Command {
	var (
		documentIDs []string
		asJSON      bool
	)

	ask := a.run(func(cmd *cobra.Command, args []string, services *Services) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		answer, err := services.Answerer.Ask(cmd.Context(), question, documentIDs)
		if err != nil {
			return fmt.Errorf("ask: %w", err)
		}

		if asJSON {
			return printJSON(cmd, answer)
		}

		cmd.Println(answer.Text)
		if len(answer.Sources) > 0 {
			cmd.Println()
			cmd.Println("Sources:")
			for i, src := range answer.Sources {
				cmd.Printf("  [%d] %s, page %d (%.3f)\n", i+1, src.Source, src.Chunk.PageNumber, src.Score)
			}
		}
		if len(answer.FollowUpQuestions) > 0 {
			cmd.Println()
			cmd.Println("Follow-up questions:")
			for _, q := range answer.FollowUpQuestions {
				cmd.Printf("  - %s\n", q)
			}
		}
		return nil
	})

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about selected documents",
		Long: `Retrieves the most relevant passages from the selected documents
and answers with [Source: id, Page: n] citations and follow-up questions.`,
		Example: `  docqa ask --doc report_pdf --doc notes_pdf "What changed in Q3?"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(strings.Join(args, " ")) == "" {
				return errNoQuestion
			}
			if len(documentIDs) == 0 {
				return errNoDocuments
			}
			return ask(cmd, args)
		},
	}
	cmd.Flags().StringSliceVarP(&documentIDs, "doc", "d", nil, "document id to search (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
