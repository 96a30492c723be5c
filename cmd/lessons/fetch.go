package main

import (
	"github.com/pavelpascari/fetchstate/pkg/catalog"
	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
	"github.com/pavelpascari/fetchstate/pkg/forms"
	"github.com/spf13/cobra"
)

// fetchCommand runs the descriptor built from the arguments through a
// controller and prints the settled state.
func fetchCommand[T any](a *app, use, short string, args cobra.PositionalArgs, build func(args []string) fetchstate.Descriptor[T]) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			transport, err := a.transport(nil)
			if err != nil {
				return err
			}

			c := fetchstate.NewController[T](transport, fetchstate.WithLogger(a.logger))
			defer c.Close()

			return settle(a, c.Do(cmd.Context(), build(args)))
		},
	}
}

func newFilmsCommand(a *app) *cobra.Command {
	return fetchCommand(a, "films", "List the films catalog", cobra.NoArgs, func([]string) fetchstate.Descriptor[[]catalog.Film] {
		return catalog.Films()
	})
}

func newMoviesCommand(a *app) *cobra.Command {
	return fetchCommand(a, "movies", "List the stored movies", cobra.NoArgs, func([]string) fetchstate.Descriptor[[]catalog.Movie] {
		return catalog.Movies()
	})
}

func newTasksCommand(a *app) *cobra.Command {
	return fetchCommand(a, "tasks", "List the stored tasks", cobra.NoArgs, func([]string) fetchstate.Descriptor[[]catalog.Task] {
		return catalog.Tasks()
	})
}

func newQuotesCommand(a *app) *cobra.Command {
	return fetchCommand(a, "quotes", "List the stored quotes", cobra.NoArgs, func([]string) fetchstate.Descriptor[[]catalog.Quote] {
		return catalog.AllQuotes()
	})
}

func newQuoteCommand(a *app) *cobra.Command {
	return fetchCommand(a, "quote <id>", "Show one quote", cobra.ExactArgs(1), func(args []string) fetchstate.Descriptor[catalog.Quote] {
		return catalog.SingleQuote(args[0])
	})
}

func newCommentsCommand(a *app) *cobra.Command {
	return fetchCommand(a, "comments <quote-id>", "List the comments of a quote", cobra.ExactArgs(1), func(args []string) fetchstate.Descriptor[[]catalog.Comment] {
		return catalog.AllComments(args[0])
	})
}

func newAddQuoteCommand(a *app) *cobra.Command {
	var form forms.NewQuote

	cmd := fetchCommand(a, "add-quote", "Store a quote and print its key", cobra.NoArgs, func([]string) fetchstate.Descriptor[string] {
		return catalog.AddQuote(form.Author, form.Text)
	})
	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := a.check(form); err != nil {
			return err
		}
		return run(cmd, args)
	}

	cmd.Flags().StringVar(&form.Author, "author", "", "Author of the quote")
	cmd.Flags().StringVar(&form.Text, "text", "", "Text of the quote")

	return cmd
}
