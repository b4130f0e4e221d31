package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/quotes-crawler/internal/loader"
	"github.com/JakeFAU/quotes-crawler/internal/store"
)

type loadResult struct {
	Report loader.Report `json:"report"`
	Totals store.Totals  `json:"totals"`
}

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load the corpus files into the store",
		Long: `Reads the quotes and authors corpus files and writes them into the store:
authors first in one transaction, then quotes, tags and their links in a
second. A missing or malformed corpus file aborts before anything is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			l, err := a.Loader(cmd.Context())
			if err != nil {
				return err
			}
			cfg := a.Config()
			report, err := l.LoadFiles(cmd.Context(), cfg.Corpus.QuotesFile, cfg.Corpus.AuthorsFile)
			if err != nil {
				return err
			}
			engine, err := a.Engine(cmd.Context())
			if err != nil {
				return err
			}
			totals, err := engine.Totals(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), loadResult{Report: report, Totals: totals})
		},
	}
}
