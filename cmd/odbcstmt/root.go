package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	odbc "github.com/slingdata-io/odbcstmt"
)

// app carries the resolved configuration shared by every subcommand.
type app struct {
	v      *viper.Viper
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "odbcstmt",
		Short: "Run statements against an ODBC data source",
		Long: `odbcstmt prepares and runs SQL through the system ODBC driver manager.

Every flag can also be set from the environment with the ODBCSTMT_ prefix,
for example ODBCSTMT_CONN_STRING, or from the file named by --config.

Examples:
  odbcstmt query --conn-string "DSN=mydsn;UID=user;PWD=password" "SELECT * FROM t"
  odbcstmt exec "INSERT INTO docs (id, body) VALUES (?, ?)" 1 --lob-file body.txt
  odbcstmt fetch "SELECT id FROM t ORDER BY id" --orientation absolute --offset 3`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Flag errors have been reported by now.
			cmd.SilenceUsage = true
			return a.load()
		},
	}
	addGlobalFlags(root.PersistentFlags())
	if err := a.v.BindPFlags(root.PersistentFlags()); err != nil {
		panic(err)
	}

	root.AddCommand(newQueryCommand(a))
	root.AddCommand(newExecCommand(a))
	root.AddCommand(newFetchCommand(a))

	root.SetErrPrefix("odbcstmt:")
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.String("conn-string", "", "ODBC connection string")
	fs.Bool("assume-utf8", false, "transcode wide-character columns and parameters to and from UTF-8")
	fs.String("log-level", "warn", "log level: debug, info, warn or error")
	fs.String("config", "", "optional config file (yaml, json or toml)")
}

// load resolves configuration from flags, the environment and the optional
// config file, in that order of precedence.
func (a *app) load() error {
	a.v.SetEnvPrefix("ODBCSTMT")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString("log-level"))); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// open returns a pool over a single connector built from the configuration.
func (a *app) open() (*sqlx.DB, error) {
	dsn := a.v.GetString("conn-string")
	if dsn == "" {
		return nil, errors.New("a connection string is required (--conn-string or ODBCSTMT_CONN_STRING)")
	}

	connector, err := odbc.NewConnector(dsn,
		odbc.WithConnectorAssumeUTF8(a.v.GetBool("assume-utf8")),
		odbc.WithConnectorLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting: %w", err)
	}
	a.logger.Debug("odbcstmt: connected")
	return sqlx.NewDb(db, "odbc"), nil
}

// stringArgs turns positional arguments into statement arguments.
func stringArgs(args []string) []any {
	out := make([]any, len(args))
	for i, s := range args {
		out[i] = s
	}
	return out
}

// formatValue renders a scanned column value for display.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("0x%X", x)
	default:
		return fmt.Sprint(x)
	}
}
