package main

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vench/teianalytics"
)

// maxPages bounds --all so that a runaway query stops.
const maxPages = 1000

func newRunCmd(a *app) *cobra.Command {
	var (
		all   bool
		total bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a request and print the resulting grid as JSON",
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

			db, err := a.open()
			if err != nil {
				return err
			}
			defer db.Close()

			repo := teianalytics.NewSQLRepository(db, c, teianalytics.LoggerSQLRepositoryOption(a.logger))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var grid *teianalytics.Grid
			if all {
				grid, err = allPages(ctx, repo, qc, params)
			} else {
				grid, err = repo.Grid(ctx, qc, params)
			}
			if err != nil {
				return err
			}

			if total {
				n, err := repo.Total(ctx, qc, params)
				if err != nil {
					return err
				}
				grid.Pager.Total = n
			}

			a.logger.Info("query done", zap.Int("rows", len(grid.Rows)), zap.Uint64("total", grid.Pager.Total))

			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")

			return enc.Encode(grid)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "fetch every page starting at --page")
	cmd.Flags().BoolVar(&total, "total", false, "count the matching tracked entities")

	return cmd
}

// allPages reads pages until one comes back short and unions them.
func allPages(
	ctx context.Context, repo teianalytics.ReadRepository, qc *teianalytics.QueryContext, params *teianalytics.QueryParams,
) (*teianalytics.Grid, error) {
	if params.Paging.PageSize <= 0 {
		return nil, fmt.Errorf("--all needs a page size")
	}

	grids := make([]*teianalytics.Grid, 0)
	paged := *params
	for i := 0; i < maxPages; i++ {
		grid, err := repo.Grid(ctx, qc, &paged)
		if err != nil {
			return nil, err
		}
		grids = append(grids, grid)

		if len(grid.Rows) < paged.Paging.PageSize {
			break
		}
		paged.Paging.Page++
	}

	return teianalytics.UnionGrids(grids...), nil
}
