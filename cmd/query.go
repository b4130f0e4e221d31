package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/quotes-crawler/internal/query"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the loaded quotes",
	}
	cmd.AddCommand(
		queryCmd("quotes", "List every quote with its author and tags", cobra.NoArgs,
			func(ctx context.Context, e *query.Engine, _ []string) (any, error) { return e.ListQuotes(ctx) }),
		queryCmd("authors", "List every author ordered by name", cobra.NoArgs,
			func(ctx context.Context, e *query.Engine, _ []string) (any, error) { return e.ListAuthors(ctx) }),
		queryCmd("by-author <substring>", "Quotes whose author name contains the substring", cobra.MinimumNArgs(1),
			func(ctx context.Context, e *query.Engine, args []string) (any, error) {
				return e.SearchByAuthor(ctx, strings.Join(args, " "))
			}),
		queryCmd("by-tag <substring>", "Quotes carrying a tag that contains the substring", cobra.ExactArgs(1),
			func(ctx context.Context, e *query.Engine, args []string) (any, error) {
				return e.SearchByTag(ctx, args[0])
			}),
		queryCmd("author-counts", "Number of quotes per author", cobra.NoArgs,
			func(ctx context.Context, e *query.Engine, _ []string) (any, error) { return e.QuoteCountsByAuthor(ctx) }),
		newTopTagsCmd(),
		queryCmd("totals", "Row counts of authors, quotes and tags", cobra.NoArgs,
			func(ctx context.Context, e *query.Engine, _ []string) (any, error) { return e.Totals(ctx) }),
	)
	return cmd
}

type queryFunc func(ctx context.Context, e *query.Engine, args []string) (any, error)

func queryCmd(use, short string, args cobra.PositionalArgs, fn queryFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, fn)
		},
	}
}

func newTopTagsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top-tags",
		Short: "Most used tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, func(ctx context.Context, e *query.Engine, _ []string) (any, error) {
				return e.TopTags(ctx, limit)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", query.DefaultTopTags, "number of tags to show")
	return cmd
}

func runQuery(cmd *cobra.Command, args []string, fn queryFunc) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	engine, err := a.Engine(cmd.Context())
	if err != nil {
		return err
	}
	out, err := fn(cmd.Context(), engine, args)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}
