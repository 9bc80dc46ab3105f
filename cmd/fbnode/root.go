package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/gandaldf/firebird"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// runnerFlags is the CLI surface of `fbnode run`.
type runnerFlags struct {
	operation      string
	query          string
	queryParams    string
	table          string
	columns        string
	updateKey      string
	input          string
	envFile        string
	continueOnFail bool
}

// newLogger builds the process logger. DEBUG=1 switches on debug output with
// caller reporting.
func newLogger() *log.Logger {
	if os.Getenv("DEBUG") == "1" {
		logger := log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			Prefix:          "fbnode",
		})
		logger.SetLevel(log.DebugLevel)
		return logger
	}
	logger := log.New(os.Stderr)
	logger.SetLevel(log.InfoLevel)
	return logger
}

// newRootCmd wires the fbnode command tree. The filesystem and connector are
// injected so tests can drive the whole tree against fakes.
func newRootCmd(fs afero.Fs, connector firebird.Connector) *cobra.Command {
	root := &cobra.Command{
		Use:           "fbnode",
		Short:         "Run Firebird workflow-node operations from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(fs, connector))
	root.AddCommand(newTestCmd(connector))
	return root
}

// newRunCmd creates the 'run' subcommand: one node operation over a JSON
// array of input items.
func newRunCmd(fs afero.Fs, connector firebird.Connector) *cobra.Command {
	var flags runnerFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one operation against the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOperation(cmd, fs, connector, flags)
		},
	}
	cmd.Flags().StringVar(&flags.operation, "operation", string(firebird.OperationExecuteQuery), "operation to run: executeQuery, insert or update")
	cmd.Flags().StringVar(&flags.query, "query", "", "SQL template for executeQuery, with :name placeholders")
	cmd.Flags().StringVar(&flags.queryParams, "query-params", "", "comma-separated placeholder names declared for the query")
	cmd.Flags().StringVar(&flags.table, "table", "", "target table for insert and update")
	cmd.Flags().StringVar(&flags.columns, "columns", "", "comma-separated column list for insert and update")
	cmd.Flags().StringVar(&flags.updateKey, "update-key", "id", "key column matched by update")
	cmd.Flags().StringVar(&flags.input, "input", "", "path to a JSON array of input items (default: stdin)")
	cmd.Flags().StringVar(&flags.envFile, "env-file", "", "env file providing FIREBIRD_* credentials")
	cmd.Flags().BoolVar(&flags.continueOnFail, "continue-on-fail", false, "emit an error item instead of failing the run")
	return cmd
}

// newTestCmd creates the 'test' subcommand: the credential check hosts run
// before saving a connection.
func newTestCmd(connector firebird.Connector) *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Verify the configured credentials by connecting once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("loading env file %s: %w", envFile, err)
				}
			}
			creds, err := firebird.CredentialsFromEnv()
			if err != nil {
				return err
			}
			conn, err := connector.Connect(cmd.Context(), creds)
			if err != nil {
				return err
			}
			if err := conn.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "connection ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "env file providing FIREBIRD_* credentials")
	return cmd
}

// runOperation assembles the invocation from flags, environment and input
// items, runs it, and renders the output items as JSON.
func runOperation(cmd *cobra.Command, fs afero.Fs, connector firebird.Connector, flags runnerFlags) error {
	logger := newLogger()

	op, err := firebird.ParseOperation(flags.operation)
	if err != nil {
		return err
	}

	if flags.envFile != "" {
		if err := godotenv.Load(flags.envFile); err != nil {
			return fmt.Errorf("loading env file %s: %w", flags.envFile, err)
		}
	}

	items, err := readItems(fs, flags.input, cmd.InOrStdin())
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger.Info("starting run", "run_id", runID, "operation", op, "items", len(items))

	node := firebird.NewNode(connector, firebird.Options{Logger: logger})
	out, err := node.Run(cmd.Context(), firebird.Invocation{
		Operation: op,
		Items:     items,
		Params: firebird.StaticParams{
			firebird.ParamQuery:       flags.query,
			firebird.ParamQueryParams: flags.queryParams,
			firebird.ParamTable:       flags.table,
			firebird.ParamColumns:     flags.columns,
			firebird.ParamUpdateKey:   flags.updateKey,
		},
		Credentials:    envCredentials{},
		ContinueOnFail: flags.continueOnFail,
	})
	if err != nil {
		return err
	}

	logger.Info("run finished", "run_id", runID, "outputs", len(out))
	return writeItems(cmd.OutOrStdout(), out)
}

// envCredentials sources the bag from the process environment, after any
// env-file was loaded into it.
type envCredentials struct{}

func (envCredentials) FirebirdCredentials() (*firebird.Credentials, error) {
	return firebird.CredentialsFromEnv()
}

// readItems decodes the JSON input items from a file or, with no path, from
// the given reader. Empty input means an empty run, not an error.
func readItems(fs afero.Fs, path string, stdin io.Reader) ([]firebird.Record, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = afero.ReadFile(fs, path)
	} else {
		data, err = io.ReadAll(stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("reading input items: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []firebird.Record{}, nil
	}

	var items []firebird.Record
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding input items: %w", err)
	}
	return items, nil
}

// writeItems renders the output items as an indented JSON array.
func writeItems(w io.Writer, items []firebird.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}
