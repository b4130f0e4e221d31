package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCrawlCmd(ov *overrides) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl listing pages and author profiles into the corpus files",
		Long: `Walks the listing pages from page 1 until an empty page, a fetch failure or
the page ceiling, resolves each distinct author's profile and writes the
quotes and resolved authors as JSON corpus files. The store is not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			p, err := a.Pipeline(cmd.Context(), false)
			if err != nil {
				return err
			}
			summary, err := p.Crawl(cmd.Context())
			if err != nil {
				return err
			}
			a.Logger().Info("crawl command finished",
				zap.String("session_id", summary.SessionID),
				zap.Int("quotes", summary.Quotes))
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	addCrawlFlags(cmd, ov)
	return cmd
}

func addCrawlFlags(cmd *cobra.Command, ov *overrides) {
	cmd.Flags().IntVar(&ov.maxPages, "max-pages", 0, "stop after this many listing pages (0 = no limit)")
	cmd.Flags().BoolVar(&ov.renderJS, "render-js", false, "crawl the JavaScript-rendered listing pages with headless Chrome")
}
