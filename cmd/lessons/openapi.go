package main

import (
	"github.com/pavelpascari/fetchstate/pkg/mockapi"
	"github.com/pavelpascari/fetchstate/pkg/openapi"
	"github.com/spf13/cobra"
)

func newOpenAPICommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print the API description of the lesson backend",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			srv := mockapi.New(mockapi.WithLogger(a.logger), mockapi.WithInfo(openapi.Info{
				Title:       "Lessons API",
				Version:     "1.0.0",
				Description: "In-memory backend of the films, database and accounts lessons",
			}))

			spec, err := srv.OpenAPI()
			if err != nil {
				return err
			}

			g := openapi.NewGenerator(&openapi.Config{})
			var data []byte
			if format == "json" {
				data, err = g.GenerateJSON(spec)
			} else {
				data, err = g.GenerateYAML(spec)
			}
			if err != nil {
				return err
			}

			_, err = a.out.Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")

	return cmd
}
