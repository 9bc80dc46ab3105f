package firebird

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// Operation selects which of the node's database operations a run performs.
type Operation string

const (
	// OperationExecuteQuery runs a raw parameterized query per input item.
	OperationExecuteQuery Operation = "executeQuery"
	// OperationInsert writes all input items with one multi-row INSERT.
	OperationInsert Operation = "insert"
	// OperationUpdate rewrites one row per input item, matched by a key column.
	OperationUpdate Operation = "update"
)

// Host parameter names, exactly as workflow hosts store them on the node.
const (
	ParamQuery       = "query"
	ParamQueryParams = "queryParams"
	ParamTable       = "table"
	ParamColumns     = "columns"
	ParamUpdateKey   = "updateKey"
)

var (
	ErrNoCredentials        = errors.New("firebird: no credentials supplied")
	ErrUnknownParam         = errors.New("firebird: unknown query parameter")
	ErrUnsupportedOperation = errors.New("firebird: unsupported operation")
)

// ParameterSource supplies the node's textual parameters the way hosts store
// them: addressed by name and resolved against an item index, because hosts
// may interpolate a different value per item.
type ParameterSource interface {
	// String returns the value of the named parameter resolved for the given
	// item index. Sources that do not vary per item return the same value
	// for every index.
	String(name string, itemIndex int) (string, error)
}

// StaticParams is a map-backed ParameterSource returning the same value for
// every item index. Missing names resolve to "".
type StaticParams map[string]string

// String implements ParameterSource.
func (p StaticParams) String(name string, _ int) (string, error) {
	return p[name], nil
}

// Invocation carries everything one node run needs from the host.
type Invocation struct {
	Operation   Operation
	Items       []Record
	Params      ParameterSource
	Credentials CredentialSource

	// ContinueOnFail turns a failed run into a single {"error": message}
	// output record instead of an error, so the surrounding workflow keeps
	// moving.
	ContinueOnFail bool
}

// Options tweaks Node construction.
type Options struct {
	// Logger receives node diagnostics. If nil, a stderr logger at the
	// default level is used.
	Logger *log.Logger
}

// Node executes Firebird operations on behalf of a workflow host. A single
// Node is safe for concurrent use; every Run acquires its own connection and
// releases it when the run ends.
type Node struct {
	connector Connector
	log       *log.Logger
}

// NewNode returns a Node that acquires connections from the given connector.
// The connector is injected rather than read from package state, so hosts
// and tests can substitute any driver implementation.
func NewNode(connector Connector, opts ...Options) *Node {
	n := &Node{connector: connector}
	if len(opts) > 0 && opts[0].Logger != nil {
		n.log = opts[0].Logger
	} else {
		n.log = log.New(os.Stderr)
	}
	return n
}

// ParseOperation validates a host-supplied operation name.
func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OperationExecuteQuery, OperationInsert, OperationUpdate:
		return Operation(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedOperation, s)
}

// Run executes one invocation and returns the output items. With
// Invocation.ContinueOnFail set, any failure collapses into a single
// {"error": message} record and a nil error.
func (n *Node) Run(ctx context.Context, inv Invocation) ([]Record, error) {
	out, err := n.run(ctx, inv)
	if err != nil {
		if inv.ContinueOnFail {
			n.log.Warn("operation failed, continuing", "operation", inv.Operation, "err", err)
			return []Record{{"error": err.Error()}}, nil
		}
		return nil, err
	}
	return out, nil
}

// run validates the invocation, scopes a connection to it, and dispatches.
func (n *Node) run(ctx context.Context, inv Invocation) ([]Record, error) {
	if _, err := ParseOperation(string(inv.Operation)); err != nil {
		return nil, err
	}
	if inv.Params == nil {
		inv.Params = StaticParams{}
	}
	if inv.Credentials == nil {
		return nil, ErrNoCredentials
	}
	creds, err := inv.Credentials.FirebirdCredentials()
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, ErrNoCredentials
	}

	conn, err := n.connector.Connect(ctx, creds)
	if err != nil {
		return nil, err
	}
	defer n.closeConn(conn)

	n.log.Debug("running operation", "operation", inv.Operation, "items", len(inv.Items))

	switch inv.Operation {
	case OperationExecuteQuery:
		return n.runExecuteQuery(ctx, conn, inv)
	case OperationInsert:
		return n.runInsert(ctx, conn, inv)
	default:
		return n.runUpdate(ctx, conn, inv)
	}
}

// closeConn releases the run's connection. A close failure is logged and
// swallowed: it must never mask the run's own result.
func (n *Node) closeConn(conn Conn) {
	if err := conn.Close(); err != nil {
		n.log.Error("closing connection", "err", err)
	}
}
