package firebird

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/nakagami/firebirdsql" // registers the "firebirdsql" driver
)

// QueryOutcome is what one driver call produces: result rows for statements
// that return them, or a DML summary with Rows left nil. Collapsing both
// shapes into one type keeps the operation layer free of per-statement result
// branching.
type QueryOutcome struct {
	Rows         []Record
	RowsAffected int64
}

// Conn is one live attachment to a Firebird server, scoped to a single node
// run and closed when that run ends.
type Conn interface {
	// Query executes sqlText with optional positional arguments and returns
	// a non-nil outcome on success. A call with no arguments and a call with
	// an empty argument list behave identically. Implementations must
	// tolerate concurrent calls: one run issues per-item queries in parallel.
	Query(ctx context.Context, sqlText string, args ...any) (*QueryOutcome, error)
	// Close releases the attachment.
	Close() error
}

// Connector acquires connections from credential bags. The node takes one by
// injection, so hosts and tests substitute drivers without touching package
// state.
type Connector interface {
	Connect(ctx context.Context, creds *Credentials) (Conn, error)
}

// SQLConnector is the database/sql-backed Connector over the pure-Go
// firebirdsql driver.
type SQLConnector struct {
	// DriverName selects the registered database/sql driver and exists so
	// tests can point the connector at a mock registration. Empty means
	// "firebirdsql".
	DriverName string
}

// Connect opens one handle for the bag and verifies it with a ping, so a
// bad credential fails the run up front instead of on the first item.
func (c *SQLConnector) Connect(ctx context.Context, creds *Credentials) (Conn, error) {
	if creds == nil {
		return nil, ErrNoCredentials
	}
	if err := creds.validate(); err != nil {
		return nil, err
	}

	name := c.DriverName
	if name == "" {
		name = "firebirdsql"
	}
	db, err := sql.Open(name, creds.DSN())
	if err != nil {
		return nil, fmt.Errorf("firebird: opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("firebird: pinging database: %w", err)
	}
	return &SQLConn{db: db}, nil
}

// SQLConn adapts *sql.DB to the Conn capability. The handle pools underneath,
// which is what lets one run's per-item queries proceed in parallel.
type SQLConn struct {
	db *sql.DB
}

// Query routes sqlText through QueryContext when it yields a result set and
// through ExecContext otherwise, normalizing both into a QueryOutcome.
func (c *SQLConn) Query(ctx context.Context, sqlText string, args ...any) (*QueryOutcome, error) {
	if returnsRows(sqlText) {
		rows, err := c.db.QueryContext(ctx, sqlText, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		recs, err := scanRecords(rows)
		if err != nil {
			return nil, err
		}
		return &QueryOutcome{Rows: recs}, nil
	}

	res, err := c.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// Driver cannot say; report zero rather than failing the statement.
		affected = 0
	}
	return &QueryOutcome{RowsAffected: affected}, nil
}

// Close releases the underlying handle.
func (c *SQLConn) Close() error {
	return c.db.Close()
}

// returnsRows reports whether sqlText is expected to produce a result set.
// Firebird yields rows for SELECT, WITH ... SELECT, and EXECUTE BLOCK ...
// RETURNS; everything else goes through Exec.
func returnsRows(sqlText string) bool {
	s := strings.ToUpper(strings.TrimSpace(sqlText))
	switch {
	case strings.HasPrefix(s, "SELECT"), strings.HasPrefix(s, "WITH"):
		return true
	case strings.HasPrefix(s, "EXECUTE BLOCK") && strings.Contains(s, "RETURNS"):
		return true
	}
	return false
}

// scanRecords reads every row into a Record. The slice is non-nil even for
// zero rows: an empty result set is still a result set, distinct from a DML
// outcome.
func scanRecords(rows *sql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []Record{}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(Record, len(cols))
		for i, col := range cols {
			rec[col] = normalizeValue(values[i])
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// normalizeValue keeps scanned values JSON-friendly; drivers hand text
// columns back as []byte.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
