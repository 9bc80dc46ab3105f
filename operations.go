package firebird

import (
	"context"
	"strings"
	"sync"
)

// runExecuteQuery issues one raw query per input item. All rewrites happen
// up front, in input order, so an unknown placeholder aborts the run before
// a single statement reaches the server; only then do the per-item queries
// go out concurrently.
//
// The declared parameter names are read once, from item 0, while the query
// text is read per item: hosts may resolve a different template for every
// item but keep a single parameter declaration for the whole run.
func (n *Node) runExecuteQuery(ctx context.Context, conn Conn, inv Invocation) ([]Record, error) {
	rawNames, err := inv.Params.String(ParamQueryParams, 0)
	if err != nil {
		return nil, err
	}
	declared := SplitList(rawNames)
	projected := Project(inv.Items, declared)

	queries := make([]RewrittenQuery, len(inv.Items))
	for i := range inv.Items {
		template, err := inv.Params.String(ParamQuery, i)
		if err != nil {
			return nil, err
		}
		rq, err := Rewrite(template, declared, projected[i])
		if err != nil {
			return nil, err
		}
		queries[i] = rq
		n.log.Debug("rewrote query", "item", i, "sql", rq.SQL, "args", len(rq.Args))
	}

	n.log.Debug("executing queries", "items", len(inv.Items), "params", declared)

	outcomes := make([]*QueryOutcome, len(inv.Items))
	errs := make([]error, len(inv.Items))

	var wg sync.WaitGroup
	for i := range queries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rq := queries[i]
			if len(rq.Args) == 0 {
				// Nothing was substituted: hand the template over untouched.
				outcomes[i], errs[i] = conn.Query(ctx, rq.Raw)
				return
			}
			outcomes[i], errs[i] = conn.Query(ctx, rq.SQL, rq.Args...)
		}(i)
	}
	wg.Wait()

	if err := firstError(errs); err != nil {
		return nil, err
	}

	// Flatten in input order: result rows concatenate, a rowless outcome
	// contributes an empty placeholder record.
	out := make([]Record, 0, len(inv.Items))
	for _, oc := range outcomes {
		if oc.Rows != nil {
			out = append(out, oc.Rows...)
			continue
		}
		out = append(out, Record{})
	}
	return out, nil
}

// runInsert writes all items in one multi-row INSERT: each item projects
// onto the declared column list and contributes one VALUES tuple, with the
// flattened projections as the argument list.
func (n *Node) runInsert(ctx context.Context, conn Conn, inv Invocation) ([]Record, error) {
	table, err := inv.Params.String(ParamTable, 0)
	if err != nil {
		return nil, err
	}
	rawColumns, err := inv.Params.String(ParamColumns, 0)
	if err != nil {
		return nil, err
	}
	columns := SplitList(rawColumns)

	if len(inv.Items) == 0 {
		return []Record{}, nil
	}

	projected := Project(inv.Items, columns)
	args := make([]any, 0, len(projected)*len(columns))
	for i := range projected {
		args = append(args, projected[i].values...)
	}

	sqlText := buildInsertSQL(table, columns, len(projected))
	n.log.Debug("inserting items", "table", table, "rows", len(projected), "sql", sqlText)

	oc, err := conn.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	return []Record{{"rowsAffected": oc.RowsAffected}}, nil
}

// runUpdate rewrites each item's key-matched row with one statement per
// item, issued concurrently and reported back in input order.
func (n *Node) runUpdate(ctx context.Context, conn Conn, inv Invocation) ([]Record, error) {
	table, err := inv.Params.String(ParamTable, 0)
	if err != nil {
		return nil, err
	}
	updateKey, err := inv.Params.String(ParamUpdateKey, 0)
	if err != nil {
		return nil, err
	}
	rawColumns, err := inv.Params.String(ParamColumns, 0)
	if err != nil {
		return nil, err
	}

	// The key column must be part of the SET list so its projected value
	// exists for the WHERE binding; when the host leaves it out of the
	// column list the key is written redundantly to itself.
	columns := ensureUpdateKey(SplitList(rawColumns), updateKey)
	projected := Project(inv.Items, columns)
	sqlText := buildUpdateSQL(table, columns, updateKey)

	n.log.Debug("updating items", "table", table, "key", updateKey, "rows", len(projected), "sql", sqlText)

	outcomes := make([]*QueryOutcome, len(inv.Items))
	errs := make([]error, len(inv.Items))

	var wg sync.WaitGroup
	for i := range projected {
		// SET values in column order, then the key value again for WHERE.
		args := append([]any(nil), projected[i].values...)
		keyVal, _ := projected[i].Value(updateKey)
		args = append(args, keyVal)

		wg.Add(1)
		go func(i int, args []any) {
			defer wg.Done()
			outcomes[i], errs[i] = conn.Query(ctx, sqlText, args...)
		}(i, args)
	}
	wg.Wait()

	if err := firstError(errs); err != nil {
		return nil, err
	}

	out := make([]Record, len(outcomes))
	for i, oc := range outcomes {
		out[i] = Record{"rowsAffected": oc.RowsAffected}
	}
	return out, nil
}

// --------------------------------
// Statement rendering
// --------------------------------

// buildInsertSQL renders a multi-row insert:
//
//	INSERT INTO t(id,name) VALUES (?,?),(?,?);
func buildInsertSQL(table string, columns []string, rowCount int) string {
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	tuple := "(" + strings.Join(placeholders, ",") + ")"

	tuples := make([]string, rowCount)
	for i := range tuples {
		tuples[i] = tuple
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteByte('(')
	b.WriteString(strings.Join(columns, ","))
	b.WriteString(") VALUES ")
	b.WriteString(strings.Join(tuples, ","))
	b.WriteByte(';')
	return b.String()
}

// buildUpdateSQL renders a keyed update:
//
//	UPDATE t SET id = ?,name = ? WHERE id = ?;
func buildUpdateSQL(table string, columns []string, key string) string {
	sets := make([]string, len(columns))
	for i, col := range columns {
		sets[i] = col + " = ?"
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(table)
	b.WriteString(" SET ")
	b.WriteString(strings.Join(sets, ","))
	b.WriteString(" WHERE ")
	b.WriteString(key)
	b.WriteString(" = ?;")
	return b.String()
}

// ensureUpdateKey prepends key when it is not already a declared column.
func ensureUpdateKey(columns []string, key string) []string {
	if containsName(columns, key) {
		return columns
	}
	return append([]string{key}, columns...)
}

// firstError returns the first non-nil error in input order.
func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
