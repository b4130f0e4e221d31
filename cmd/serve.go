package cmd

import (
	"github.com/spf13/cobra"
)

func newServeCmd(ov *overrides) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the loaded quotes over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return a.Serve(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&ov.port, "port", 0, "listen port (default server.port)")
	return cmd
}
