package teianalytics

import (
	"errors"
	"fmt"
	"strings"
)

// QueryOperator is the comparison applied by a filter item.
type QueryOperator string

const (
	OpEq     QueryOperator = "EQ"
	OpIEq    QueryOperator = "IEQ"
	OpNotEq  QueryOperator = "NEQ"
	OpGt     QueryOperator = "GT"
	OpGtOrEq QueryOperator = "GE"
	OpLt     QueryOperator = "LT"
	OpLtOrEq QueryOperator = "LE"
	OpLike   QueryOperator = "LIKE"
	OpNLike  QueryOperator = "NLIKE"
	OpILike  QueryOperator = "ILIKE"
	OpNILike QueryOperator = "NILIKE"
	OpSw     QueryOperator = "SW"
	OpEw     QueryOperator = "EW"
	OpIn     QueryOperator = "IN"
	OpNotIn  QueryOperator = "NIN"

	// NullValue is the operand standing for "no value".
	NullValue = "NV"
)

// ErrUnknownOperator is returned for an operator token that is not a QueryOperator.
var ErrUnknownOperator = errors.New("unknown query operator")

var operatorAliases = map[string]QueryOperator{
	"EQ":     OpEq,
	"IEQ":    OpIEq,
	"NEQ":    OpNotEq,
	"NE":     OpNotEq,
	"!EQ":    OpNotEq,
	"GT":     OpGt,
	"GE":     OpGtOrEq,
	"LT":     OpLt,
	"LE":     OpLtOrEq,
	"LIKE":   OpLike,
	"NLIKE":  OpNLike,
	"ILIKE":  OpILike,
	"NILIKE": OpNILike,
	"SW":     OpSw,
	"EW":     OpEw,
	"IN":     OpIn,
	"NIN":    OpNotIn,
	"!IN":    OpNotIn,
}

// ParseQueryOperator parses an operator token case-insensitively.
func ParseQueryOperator(token string) (QueryOperator, error) {
	if op, ok := operatorAliases[strings.ToUpper(strings.TrimSpace(token))]; ok {
		return op, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownOperator, token)
}

// IsList reports whether the operator takes a ';' separated operand list.
func (o QueryOperator) IsList() bool {
	return o == OpIn || o == OpNotIn
}
