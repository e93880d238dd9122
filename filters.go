package teianalytics

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
)

// ErrIllegalQuery is returned for requests that are well formed but cannot be answered.
var ErrIllegalQuery = errors.New("illegal query")

// likeEscaper escapes the LIKE wildcards of a user operand with backslash.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// itemsCondition ANDs the conditions of all items of p on column.
// It returns nil when p does not restrict anything.
func itemsCondition(qc *QueryContext, column string, p *DimensionParam) (Renderable, error) {
	conds := make(sq.And, 0, len(p.Items))
	for _, item := range p.Items {
		cond, err := itemCondition(qc, column, p.ValueType(), item)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", p.UID(), err)
		}
		if cond != nil {
			conds = append(conds, cond)
		}
	}

	switch len(conds) {
	case 0:
		return nil, nil
	case 1:
		return conds[0], nil
	}

	return conds, nil
}

func itemCondition(qc *QueryContext, column string, vt ValueType, item *DimensionParamItem) (Renderable, error) {
	values := slices.DeleteFunc(slices.Clone(item.Values), func(v string) bool { return v == "" })
	if len(values) == 0 {
		return nil, nil
	}

	switch item.Operator {
	case "":
		return inCondition(column, vt, values, false)
	case OpIn:
		return inCondition(column, vt, values, false)
	case OpNotIn:
		return inCondition(column, vt, values, true)
	}

	or := make(sq.Or, 0, len(values))
	for _, v := range values {
		cond, err := operatorCondition(qc, column, vt, item.Operator, v)
		if err != nil {
			return nil, err
		}
		or = append(or, cond)
	}

	if len(or) == 1 {
		return or[0], nil
	}

	return or, nil
}

func inCondition(column string, vt ValueType, values []string, negate bool) (Renderable, error) {
	withNull := slices.Contains(values, NullValue)
	values = slices.DeleteFunc(values, func(v string) bool { return v == NullValue })

	operands := make([]any, 0, len(values))
	for _, v := range values {
		operand, err := typedOperand(vt, v)
		if err != nil {
			return nil, err
		}
		operands = append(operands, operand)
	}

	if negate {
		switch {
		case len(operands) == 0:
			return sq.NotEq{column: nil}, nil
		case withNull:
			return sq.And{sq.NotEq{column: operands}, sq.NotEq{column: nil}}, nil
		}
		// rows without value are not equal to any of the operands
		return sq.Or{sq.NotEq{column: operands}, sq.Eq{column: nil}}, nil
	}

	switch {
	case len(operands) == 0:
		return sq.Eq{column: nil}, nil
	case withNull:
		return sq.Or{sq.Eq{column: operands}, sq.Eq{column: nil}}, nil
	case len(operands) == 1:
		return sq.Eq{column: operands[0]}, nil
	}

	return sq.Eq{column: operands}, nil
}

func operatorCondition(qc *QueryContext, column string, vt ValueType, op QueryOperator, value string) (Renderable, error) {
	if value == NullValue {
		switch op {
		case OpEq, OpIEq:
			return sq.Eq{column: nil}, nil
		case OpNotEq:
			return sq.NotEq{column: nil}, nil
		}

		return nil, fmt.Errorf("%w: operator %s does not accept %s", ErrIllegalQuery, op, NullValue)
	}

	switch op {
	case OpIEq:
		return sq.Expr("lower("+column+") = ?", strings.ToLower(value)), nil
	case OpLike:
		return likeCondition(qc, column, "LIKE", "%"+likeEscaper.Replace(value)+"%"), nil
	case OpNLike:
		return likeCondition(qc, column, "NOT LIKE", "%"+likeEscaper.Replace(value)+"%"), nil
	case OpILike:
		return likeCondition(qc, "lower("+column+")", "LIKE", "%"+likeEscaper.Replace(strings.ToLower(value))+"%"), nil
	case OpNILike:
		return likeCondition(qc, "lower("+column+")", "NOT LIKE", "%"+likeEscaper.Replace(strings.ToLower(value))+"%"), nil
	case OpSw:
		return likeCondition(qc, column, "LIKE", likeEscaper.Replace(value)+"%"), nil
	case OpEw:
		return likeCondition(qc, column, "LIKE", "%"+likeEscaper.Replace(value)), nil
	}

	operand, err := typedOperand(vt, value)
	if err != nil {
		return nil, err
	}

	switch op {
	case OpEq:
		return sq.Eq{column: operand}, nil
	case OpNotEq:
		return sq.Or{sq.NotEq{column: operand}, sq.Eq{column: nil}}, nil
	case OpGt:
		return sq.Gt{column: operand}, nil
	case OpGtOrEq:
		return sq.GtOrEq{column: operand}, nil
	case OpLt:
		return sq.Lt{column: operand}, nil
	case OpLtOrEq:
		return sq.LtOrEq{column: operand}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
}

// likeCondition matches expr against a pattern whose operand is escaped
// with likeEscaper.
func likeCondition(qc *QueryContext, expr, op, pattern string) Renderable {
	sql := expr + " " + op + " ?"
	if qc == nil || !qc.ImplicitLikeEscape {
		sql += ` ESCAPE '\'`
	}

	return sq.Expr(sql, pattern)
}

// typedOperand binds numeric values as numbers and everything else as text.
func typedOperand(vt ValueType, value string) (any, error) {
	if !vt.IsNumeric() {
		return value, nil
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a number", ErrIllegalQuery, value)
	}

	return d.InexactFloat64(), nil
}
