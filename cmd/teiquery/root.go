package main

import (
	"database/sql"
	"fmt"
	"io"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/ClickHouse/clickhouse-go"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vench/teianalytics"
	"github.com/vench/teianalytics/config"
)

// app is the state shared by the subcommands once flags are parsed.
type app struct {
	v      *viper.Viper
	out    io.Writer
	cfg    *config.Config
	logger *zap.Logger
	req    *teianalytics.Request
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{
		v:   config.New(),
		out: out,
		req: &teianalytics.Request{},
	}

	rootCmd := &cobra.Command{
		Use:   "teiquery",
		Short: "Compile tracked entity analytics requests into SQL",
		Long: `teiquery resolves a tracked entity analytics request against a metadata
catalog and prints the SQL it compiles to, or runs it against the analytics tables.

Examples:
  teiquery compile --tet nEenWmSyUEp --dimension 'w75KJ2mc4zz:EQ:John'
  teiquery run --tet nEenWmSyUEp --dimension 'IpHINAT79UW[-1].A03MvHHogjR.UXz7xuGCEhU:GT:3000' --all`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("db-driver", "", "database driver: sqlite3|clickhouse|pgx")
	flags.String("dsn", "", "database data source name")
	flags.String("metadata", "", "metadata catalog file")
	flags.String("log-level", "", "log level: debug|info|warn|error")

	for flag, key := range map[string]string{
		"db-driver": "DATABASE_DRIVER",
		"dsn":       "DATABASE_DSN",
		"metadata":  "METADATA_FILE",
		"log-level": "LOG_LEVEL",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	bindRequestFlags(flags, a.req)

	rootCmd.AddCommand(newCompileCmd(a))
	rootCmd.AddCommand(newRunCmd(a))

	return rootCmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	a.logger = logger

	a.req.PageSize = cfg.PageSize(a.req.PageSize)

	return nil
}

// parse loads the catalog and resolves the request flags.
func (a *app) parse() (*teianalytics.QueryContext, *teianalytics.QueryParams, error) {
	catalog, err := teianalytics.LoadCatalogFile(a.cfg.MetadataFile)
	if err != nil {
		return nil, nil, err
	}

	qc, params, err := teianalytics.NewRequestParser(catalog).Parse(a.req)
	if err != nil {
		return nil, nil, err
	}
	qc.Placeholder = placeholderFor(a.cfg.DatabaseDriver)
	qc.ImplicitLikeEscape = a.cfg.DatabaseDriver == "clickhouse"

	return qc, params, nil
}

func (a *app) compiler() (*teianalytics.Compiler, error) {
	return teianalytics.NewCompiler(teianalytics.WithLogger(a.logger))
}

func (a *app) open() (*sql.DB, error) {
	db, err := sql.Open(a.cfg.DatabaseDriver, a.cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", a.cfg.DatabaseDriver, err)
	}

	return db, nil
}

func placeholderFor(driver string) sq.PlaceholderFormat {
	if driver == "pgx" {
		return sq.Dollar
	}

	return sq.Question
}
