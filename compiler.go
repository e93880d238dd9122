package teianalytics

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

const countColumn = "total"

// Compiler turns query params into SQL. It holds no per-request state and is
// safe for concurrent use.
type Compiler struct {
	logger   *zap.Logger
	builders []QueryBuilder
	registry *Registry
}

// CompilerOption configures a Compiler.
type CompilerOption func(c *Compiler)

// WithLogger sets the logger used for routing and rendering debug output.
func WithLogger(logger *zap.Logger) CompilerOption {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// WithBuilders replaces the default builders.
func WithBuilders(builders ...QueryBuilder) CompilerOption {
	return func(c *Compiler) {
		c.builders = builders
	}
}

// NewCompiler returns a compiler over the default builders unless WithBuilders is given.
func NewCompiler(opts ...CompilerOption) (*Compiler, error) {
	c := &Compiler{
		logger:   zap.NewNop(),
		builders: DefaultBuilders(),
	}

	for _, opt := range opts {
		opt(c)
	}

	registry, err := NewRegistry(c.builders...)
	if err != nil {
		return nil, err
	}
	c.registry = registry

	return c, nil
}

// Compile routes params through the builders. Dimension params are used as
// headers when params carry none.
func (c *Compiler) Compile(qc *QueryContext, params *QueryParams) (*RenderableSQLQuery, error) {
	if qc == nil || params == nil {
		return nil, fmt.Errorf("%w: missing query context or params", ErrIllegalQuery)
	}

	if err := validateQuery(qc, params); err != nil {
		return nil, err
	}

	headers := params.Headers
	if len(headers) == 0 {
		for _, d := range params.Dimensions {
			if d.Dimension.Type == DimensionParamTypeDimension {
				headers = append(headers, d)
			}
		}
	}

	query, err := c.registry.Build(qc, headers, params.Dimensions, params.Sorting)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("compiled query",
		zap.String("trackedEntityType", qc.TrackedEntityType),
		zap.Int("fields", len(query.SelectFields)),
		zap.Int("conditions", len(query.GroupableConditions)),
		zap.Int("orders", len(query.OrderClauses)),
	)

	return query, nil
}

// validateQuery rejects identifiers that cannot be used as SQL names.
func validateQuery(qc *QueryContext, params *QueryParams) error {
	if !isValidIdentifier(qc.TrackedEntityType) {
		return fmt.Errorf("%w: invalid tracked entity type %q", ErrIllegalQuery, qc.TrackedEntityType)
	}

	check := func(d *DimensionIdentifier[*DimensionParam]) error {
		if d == nil || d.Dimension == nil {
			return fmt.Errorf("%w: empty dimension", ErrIllegalQuery)
		}
		for _, element := range []ElementWithOffset[string]{d.Program, d.ProgramStage} {
			if uid, ok := element.Element(); ok && !isValidIdentifier(uid) {
				return fmt.Errorf("%w: invalid uid %q", ErrIllegalQuery, uid)
			}
		}
		if !isValidIdentifier(d.Dimension.UID()) {
			return fmt.Errorf("%w: invalid uid %q", ErrIllegalQuery, d.Dimension.UID())
		}
		return nil
	}

	for _, list := range [][]*DimensionIdentifier[*DimensionParam]{params.Headers, params.Dimensions} {
		for _, d := range list {
			if err := check(d); err != nil {
				return err
			}
		}
	}

	for _, s := range params.Sorting {
		if s == nil {
			return fmt.Errorf("%w: empty sorting param", ErrIllegalQuery)
		}
		if err := check(s.OrderBy); err != nil {
			return err
		}
	}

	return nil
}

// Render builds the paged select over the tracked entity table.
func (c *Compiler) Render(qc *QueryContext, query *RenderableSQLQuery, paging Paging) (string, []any, error) {
	sb := sq.Select().
		PlaceholderFormat(placeholder(qc)).
		From(teiTable(qc.TrackedEntityType) + " AS " + teiAlias)

	for _, field := range query.SelectFields {
		sb = sb.Column(field)
	}

	if where := query.WhereClause(); where != nil {
		sb = sb.Where(where)
	}

	for _, order := range query.OrderBy() {
		sb = sb.OrderByClause(order)
	}

	if limit := paging.limit(); limit > 0 {
		sb = sb.Limit(limit)
		if offset := paging.offset(); offset > 0 {
			sb = sb.Offset(offset)
		}
	}

	return c.toSQL(sb)
}

// RenderCount builds the count of tracked entities matching the query conditions.
func (c *Compiler) RenderCount(qc *QueryContext, query *RenderableSQLQuery) (string, []any, error) {
	sb := sq.Select("count(*) AS " + countColumn).
		PlaceholderFormat(placeholder(qc)).
		From(teiTable(qc.TrackedEntityType) + " AS " + teiAlias)

	if where := query.WhereClause(); where != nil {
		sb = sb.Where(where)
	}

	return c.toSQL(sb)
}

func (c *Compiler) toSQL(sb sq.SelectBuilder) (string, []any, error) {
	query, args, err := sb.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to render query: %w", err)
	}

	c.logger.Debug("rendered query", zap.String("sql", query), zap.Any("args", args))

	return query, args, nil
}

func placeholder(qc *QueryContext) sq.PlaceholderFormat {
	if qc.Placeholder == nil {
		return sq.Question
	}

	return qc.Placeholder
}
