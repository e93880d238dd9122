package teianalytics

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// ReadRepository common read interface.
type ReadRepository interface {
	// Grid returns one page of tracked entity rows.
	Grid(ctx context.Context, qc *QueryContext, params *QueryParams) (*Grid, error)
	// Total returns the number of tracked entities matching the query conditions.
	Total(ctx context.Context, qc *QueryContext, params *QueryParams) (uint64, error)
}

// SQLRepository sql implementation of ReadRepository.
type SQLRepository struct {
	conn     *sql.DB
	compiler *Compiler
	logger   *zap.Logger
}

// SQLRepositoryOption configures a SQLRepository.
type SQLRepositoryOption func(r *SQLRepository)

// LoggerSQLRepositoryOption sets the logger of the repository.
func LoggerSQLRepositoryOption(logger *zap.Logger) SQLRepositoryOption {
	return func(r *SQLRepository) {
		r.logger = logger
	}
}

// NewSQLRepository returns new instance of SQLRepository.
func NewSQLRepository(connection *sql.DB, compiler *Compiler, opts ...SQLRepositoryOption) *SQLRepository {
	r := &SQLRepository{
		conn:     connection,
		compiler: compiler,
		logger:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	_, err := r.conn.ExecContext(ctx, `SELECT 1`)
	return err
}

func (r *SQLRepository) Grid(ctx context.Context, qc *QueryContext, params *QueryParams) (*Grid, error) {
	compiled, err := r.compiler.Compile(qc, params)
	if err != nil {
		return nil, err
	}

	query, args, err := r.compiler.Render(qc, compiled, params.Paging)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to exec query", zap.Error(err), zap.String("query", query))
		return nil, fmt.Errorf("failed to exec query: %w, query: %s, params: %v", err, query, args)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	if len(columns) != len(compiled.SelectFields) {
		return nil, fmt.Errorf("query returned %d columns, expected %d", len(columns), len(compiled.SelectFields))
	}

	grid := NewGrid(compiled.SelectFields, params.Paging)
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		grid.AddRow(values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return grid, nil
}

func (r *SQLRepository) Total(ctx context.Context, qc *QueryContext, params *QueryParams) (uint64, error) {
	compiled, err := r.compiler.Compile(qc, params)
	if err != nil {
		return 0, err
	}

	query, args, err := r.compiler.RenderCount(qc, compiled)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := r.conn.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		r.logger.Error("failed to exec count query", zap.Error(err), zap.String("query", query))
		return 0, fmt.Errorf("failed to exec query: %w, query: %s, params: %v", err, query, args)
	}

	if total < 0 {
		return 0, nil
	}

	return uint64(total), nil
}
