package cmd

import (
	"github.com/spf13/cobra"
)

func newRunCmd(ov *overrides) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl, write the corpus and load it in one go",
		Long: `Runs crawl followed by load. When a Pub/Sub topic is configured, a JSON
summary of the run is published once the load has committed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			p, err := a.Pipeline(cmd.Context(), true)
			if err != nil {
				return err
			}
			summary, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	addCrawlFlags(cmd, ov)
	return cmd
}
