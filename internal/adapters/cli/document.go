package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newIngestCommand(a *app) *cobra.Command {
	ingest := a.run(func(cmd *cobra.Command, args []string, services *Services) error {
		for _, path := range args {
			name := filepath.Base(path)
			id, err := services.Ingestor.IngestFile(cmd.Context(), name, path)
			if err != nil {
				return fmt.Errorf("error processing %s: %w", name, err)
			}
			cmd.Printf("Ingested %s as %s\n", name, id)
		}
		cmd.Printf("Successfully ingested %d documents.\n", len(args))
		return nil
	})

	return &cobra.Command{
		Use:   "ingest [file.pdf...]",
		Short: "Index PDF files",
		Long: `Extracts, chunks and embeds each PDF and replaces the index stored
under the id derived from its file name.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if !strings.HasSuffix(path, ".pdf") {
					return fmt.Errorf("invalid file type: %s", filepath.Base(path))
				}
			}
			return ingest(cmd, args)
		},
	}
}

func newDocumentsCommand(a *app) *cobra.Command {
	var asJSON, long bool

	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"ls"},
		Short:   "List indexed documents",
		Long: `Lists the ids of indexed documents. With --long every document is
shown with its file name, page and chunk counts and indexing time.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string, services *Services) error {
			if long {
				records, err := services.Reader.DescribeDocuments(cmd.Context())
				if err != nil {
					return fmt.Errorf("describe documents: %w", err)
				}
				if asJSON {
					return printJSON(cmd, records)
				}
				if len(records) == 0 {
					cmd.Println("No documents indexed.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tFILENAME\tPAGES\tCHUNKS\tINDEXED")
				for _, r := range records {
					filename := r.Filename
					if filename == "" {
						filename = "-"
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.ID, filename, r.PageCount, r.ChunkCount, r.IndexedAt.Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			}

			ids, err := services.Reader.ListDocuments(cmd.Context())
			if err != nil {
				return fmt.Errorf("list documents: %w", err)
			}
			if asJSON {
				return printJSON(cmd, ids)
			}
			if len(ids) == 0 {
				cmd.Println("No documents indexed.")
				return nil
			}
			for _, id := range ids {
				cmd.Println(id)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show catalog details")
	return cmd
}

func newShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [document-id]",
		Short: "Show the catalog record of a document",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, services *Services) error {
			record, err := services.Reader.GetDocument(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get document: %w", err)
			}
			return printJSON(cmd, record)
		}),
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
