package backend

import (
	"fmt"
	"strings"

	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
)

// Placeholder renders the Nth (1-indexed) bind parameter for a SQL dialect:
// "?" for SQLite/MySQL, "$N" for Postgres.
type Placeholder func(argIndex int) string

func QuestionPlaceholder(_ int) string          { return "?" }
func DollarPlaceholder(argIndex int) string     { return fmt.Sprintf("$%d", argIndex) }
func DoubleQuoteIdent(name string) string       { return `"` + strings.ReplaceAll(name, `"`, `""`) + `"` }
func BacktickIdent(name string) string          { return "`" + strings.ReplaceAll(name, "`", "``") + "`" }

var opSymbol = map[Operator]string{
	OpEq: "=", OpNe: "!=", OpGt: ">", OpGte: ">=", OpLt: "<", OpLte: "<=",
}

// ValueEncoder converts a query condition's ValueDomain argument into the
// driver-native representation for field, applying the same FieldType-aware
// coercion rules as the backend's own marshal.go encodeValue.
type ValueEncoder func(field string, v value.Value) (any, error)

// JSONContainsBuilder renders a JsonContains condition into dialect-specific
// SQL, or is nil for backends that must reject the operator outright.
type JSONContainsBuilder func(field string, v value.Value, argIdx int) (clause string, args []any, err error)

// RegexOperator is the dialect's text-match-by-pattern keyword/operator:
// "REGEXP" for MySQL, "~" for Postgres. An empty string (what the SQLite
// adapter passes) makes a Regex condition fail with UnsupportedOperator.
type RegexOperator = string

// BuildWhereClause renders conditions into a SQL WHERE body (without the
// leading "WHERE" keyword) plus the positional argument list, shared by the
// SQLite, MySQL, and Postgres adapters since their condition semantics are
// otherwise identical.
func BuildWhereClause(
	conditions []QueryCondition,
	ph Placeholder,
	startIdx int,
	quote func(string) string,
	regexOp RegexOperator,
	encode ValueEncoder,
	jsonContains JSONContainsBuilder,
) (string, []any, error) {
	if len(conditions) == 0 {
		return "", nil, nil
	}

	var clauses []string
	var args []any
	idx := startIdx

	for _, c := range conditions {
		col := quote(c.Field)

		switch c.Operator {
		case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
			driverVal, err := encode(c.Field, c.Value)
			if err != nil {
				return "", nil, err
			}
			lhs, rhs := col, ph(idx)
			if c.CaseInsensitive {
				lhs = fmt.Sprintf("LOWER(%s)", col)
				rhs = fmt.Sprintf("LOWER(%s)", ph(idx))
			}
			clauses = append(clauses, fmt.Sprintf("%s %s %s", lhs, opSymbol[c.Operator], rhs))
			args = append(args, driverVal)
			idx++

		case OpIn, OpNotIn:
			arr, ok := c.Value.AsArray()
			if !ok {
				return "", nil, odmerr.New(odmerr.KindInvalidValue, "In/NotIn requires an Array value").WithField(c.Field)
			}
			placeholders := make([]string, len(arr))
			for i, v := range arr {
				driverVal, err := encode(c.Field, v)
				if err != nil {
					return "", nil, err
				}
				placeholders[i] = ph(idx)
				args = append(args, driverVal)
				idx++
			}
			kw := "IN"
			if c.Operator == OpNotIn {
				kw = "NOT IN"
			}
			if len(placeholders) == 0 {
				// An empty IN-list matches nothing; an empty NOT IN
				// list matches every row.
				if c.Operator == OpIn {
					clauses = append(clauses, "1 = 0")
				} else {
					clauses = append(clauses, "1 = 1")
				}
				continue
			}
			clauses = append(clauses, fmt.Sprintf("%s %s (%s)", col, kw, strings.Join(placeholders, ", ")))

		case OpContains, OpStartsWith, OpEndsWith:
			s, ok := c.Value.AsString()
			if !ok {
				return "", nil, odmerr.New(odmerr.KindInvalidValue, "string match operators require a String value").WithField(c.Field)
			}
			pattern := escapeLike(s)
			switch c.Operator {
			case OpContains:
				pattern = "%" + pattern + "%"
			case OpStartsWith:
				pattern = pattern + "%"
			case OpEndsWith:
				pattern = "%" + pattern
			}
			lhs := col
			if c.CaseInsensitive {
				lhs = fmt.Sprintf("LOWER(%s)", col)
				pattern = strings.ToLower(pattern)
			}
			clauses = append(clauses, fmt.Sprintf("%s LIKE %s ESCAPE '\\'", lhs, ph(idx)))
			args = append(args, pattern)
			idx++

		case OpRegex:
			if regexOp == "" {
				return "", nil, odmerr.New(odmerr.KindUnsupportedOperator, "Regex is not supported by this backend").WithField(c.Field)
			}
			s, _ := c.Value.AsString()
			clauses = append(clauses, fmt.Sprintf("%s %s %s", col, regexOp, ph(idx)))
			args = append(args, s)
			idx++

		case OpIsNull:
			clauses = append(clauses, fmt.Sprintf("%s IS NULL", col))

		case OpIsNotNull, OpExists:
			clauses = append(clauses, fmt.Sprintf("%s IS NOT NULL", col))

		case OpJsonContains:
			if jsonContains == nil {
				return "", nil, odmerr.New(odmerr.KindUnsupportedOperator, "JsonContains is not supported by this backend").WithField(c.Field)
			}
			clause, jargs, err := jsonContains(c.Field, c.Value, idx)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, clause)
			args = append(args, jargs...)
			idx += len(jargs)

		default:
			return "", nil, odmerr.New(odmerr.KindUnsupportedOperator, "unknown operator").WithField(c.Field)
		}
	}

	return strings.Join(clauses, " AND "), args, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// BuildOrderBy renders FindOptions.Sort into an "ORDER BY ..." fragment
// (including the keyword), or "" if Sort is empty.
func BuildOrderBy(sort []SortField, quote func(string) string) string {
	if len(sort) == 0 {
		return ""
	}
	parts := make([]string, len(sort))
	for i, s := range sort {
		dir := "ASC"
		if s.Direction == SortDescending {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", quote(s.Field), dir)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
