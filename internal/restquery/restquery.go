// Package restquery parses and builds the PostgREST-style query strings used
// by the /rest/v1 row store: `col=op.value` filters, `order=col.desc`, and
// `limit`. The server turns a parsed Query into a SQL WHERE/ORDER BY fragment
// against a column allow-list; the HTTP client uses the same types to encode
// requests, so both sides agree on the format.
package restquery

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Op is a comparison operator.
type Op string

const (
	Eq  Op = "eq"
	Neq Op = "neq"
	Gt  Op = "gt"
	Gte Op = "gte"
	Lt  Op = "lt"
	Lte Op = "lte"
	Is  Op = "is" // value must be "null"
)

var sqlOps = map[Op]string{
	Eq: "=", Neq: "<>", Gt: ">", Gte: ">=", Lt: "<", Lte: "<=",
}

// reserved query parameters that are not column filters.
var reserved = map[string]bool{
	"select": true, "order": true, "limit": true, "offset": true, "on_conflict": true,
}

// Filter is a single column predicate.
type Filter struct {
	Column string
	Op     Op
	Value  string
}

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Query is the parsed form of a row store query string.
type Query struct {
	Filters []Filter
	Order   []Order
	Limit   int // 0 means unlimited
}

// Parse reads filters, order and limit from v. Unknown operators and
// malformed terms are errors; column names are checked later by Where and
// OrderBy against the table's allow-list.
func Parse(v url.Values) (Query, error) {
	var q Query

	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if reserved[key] {
			continue
		}
		for _, raw := range v[key] {
			op, value, ok := strings.Cut(raw, ".")
			if !ok {
				return Query{}, fmt.Errorf("filter %q: expected op.value", key)
			}
			f := Filter{Column: key, Op: Op(op), Value: value}
			if f.Op == Is {
				if value != "null" {
					return Query{}, fmt.Errorf("filter %q: is only supports null", key)
				}
			} else if _, known := sqlOps[f.Op]; !known {
				return Query{}, fmt.Errorf("filter %q: unknown operator %q", key, op)
			}
			q.Filters = append(q.Filters, f)
		}
	}

	if raw := v.Get("order"); raw != "" {
		for _, term := range strings.Split(raw, ",") {
			col, dir, _ := strings.Cut(strings.TrimSpace(term), ".")
			o := Order{Column: col}
			switch dir {
			case "", "asc":
			case "desc":
				o.Desc = true
			default:
				return Query{}, fmt.Errorf("order %q: direction must be asc or desc", term)
			}
			q.Order = append(q.Order, o)
		}
	}

	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Query{}, fmt.Errorf("limit %q: must be a non-negative integer", raw)
		}
		q.Limit = n
	}

	return q, nil
}

// Encode renders q back into query-string form.
func (q Query) Encode() url.Values {
	v := url.Values{}
	for _, f := range q.Filters {
		v.Add(f.Column, string(f.Op)+"."+f.Value)
	}
	if len(q.Order) > 0 {
		terms := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			terms[i] = o.Column + "." + dir
		}
		v.Set("order", strings.Join(terms, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// Value returns the value of the first eq filter on column.
func (q Query) Value(column string) (string, bool) {
	for _, f := range q.Filters {
		if f.Column == column && f.Op == Eq {
			return f.Value, true
		}
	}
	return "", false
}

// Columns maps API column names to SQL expressions for one table.
type Columns map[string]string

// Where builds a WHERE body (without the keyword) joining every filter with
// AND. It returns "1=1" for an empty filter list so callers can always
// append further conditions.
func (cols Columns) Where(filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "1=1", nil, nil
	}
	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		expr, ok := cols[f.Column]
		if !ok {
			return "", nil, fmt.Errorf("unknown column %q", f.Column)
		}
		if f.Op == Is {
			parts = append(parts, expr+" IS NULL")
			continue
		}
		parts = append(parts, expr+" "+sqlOps[f.Op]+" ?")
		args = append(args, f.Value)
	}
	return strings.Join(parts, " AND "), args, nil
}

// OrderBy builds an ORDER BY body, or fallback when order is empty.
func (cols Columns) OrderBy(order []Order, fallback string) (string, error) {
	if len(order) == 0 {
		return fallback, nil
	}
	parts := make([]string, 0, len(order))
	for _, o := range order {
		expr, ok := cols[o.Column]
		if !ok {
			return "", fmt.Errorf("unknown order column %q", o.Column)
		}
		if o.Desc {
			expr += " DESC"
		} else {
			expr += " ASC"
		}
		parts = append(parts, expr)
	}
	return strings.Join(parts, ", "), nil
}
