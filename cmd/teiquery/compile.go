package main

import (
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

type compiledQuery struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

func newCompileCmd(a *app) *cobra.Command {
	var count bool

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the SQL a request compiles to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			qc, params, err := a.parse()
			if err != nil {
				return err
			}

			c, err := a.compiler()
			if err != nil {
				return err
			}

			query, err := c.Compile(qc, params)
			if err != nil {
				return err
			}

			out := compiledQuery{}
			if count {
				out.SQL, out.Args, err = c.RenderCount(qc, query)
			} else {
				out.SQL, out.Args, err = c.Render(qc, query, params.Paging)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")

			return enc.Encode(out)
		},
	}

	cmd.Flags().BoolVar(&count, "count", false, "print the count query instead")

	return cmd
}
