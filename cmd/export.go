package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole store as one JSON document",
		Long: `Writes every quote, every author, per-author quote counts and the most
used tags, stamped with the export time, to a single JSON file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			engine, err := a.Engine(cmd.Context())
			if err != nil {
				return err
			}
			path := out
			if path == "" {
				path = a.Config().Export.Path
			}
			snap, err := engine.WriteSnapshot(cmd.Context(), path)
			if err != nil {
				return err
			}
			a.Logger().Info("export written",
				zap.String("path", path),
				zap.Int("quotes", len(snap.Quotes)),
				zap.Int("authors", len(snap.Authors)))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %d quotes and %d authors to %s\n",
				len(snap.Quotes), len(snap.Authors), path)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default export.path)")
	return cmd
}
