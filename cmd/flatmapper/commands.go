package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/davecgh/go-spew/spew"
	"github.com/go-andiamo/flatmapper"
	"github.com/go-andiamo/flatmapper/neo4jrows"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"io"
	"os"
	"strings"
)

const (
	formatJSON = "json"
	formatDump = "dump"

	driverPostgres = "postgres"
	driverMySQL    = "mysql"
	driverNeo4j    = "neo4j"
)

// Command errors.
var (
	ErrNoSchema          = errors.New("no schema specified (use --schema or " + configFileName + ")")
	ErrNoRoot            = errors.New("no root type specified (use --root or " + configFileName + ")")
	ErrNoDriver          = errors.New("no driver specified (use --driver, FLATMAPPER_DRIVER or " + configFileName + ")")
	ErrNoDSN             = errors.New("no connection DSN specified (use --dsn, FLATMAPPER_DSN or " + configFileName + ")")
	ErrNoQuery           = errors.New("no query specified (use --sql)")
	ErrUnsupportedDriver = errors.New("unsupported driver")
	ErrUnknownFormat     = errors.New("unknown output format")
)

func planCommand() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Print the mapping plan for the root type",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			plan, err := s.mapper.Plan(s.root)
			if err != nil {
				return err
			}
			return s.write(plan)
		},
	}
}

func mapCommand() *cli.Command {
	return &cli.Command{
		Name:      "map",
		Usage:     "Hydrate rows read from a JSON array of objects",
		ArgsUsage: "[rows.json|-]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "maximum number of rows to read (0 for no limit)",
			},
		},
		Action: runMap,
	}
}

func runMap(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()
	in := cmd.Root().Reader
	if in == nil {
		in = os.Stdin
	}
	if name := cmd.Args().First(); name != "" && name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer func() {
			_ = f.Close()
		}()
		in = f
	}
	rows, err := readRows(in)
	if err != nil {
		return err
	}
	result, err := s.mapper.Map(ctx, s.root, rows, limitOption(cmd))
	if err != nil {
		return err
	}
	return s.writeCollection(result)
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "Run a SQL (postgres, mysql) or Cypher (neo4j) query and hydrate the results",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "driver",
				Aliases: []string{"d"},
				Usage:   "database driver (postgres, mysql or neo4j)",
				Sources: cli.EnvVars("FLATMAPPER_DRIVER"),
			},
			&cli.StringFlag{
				Name:    "dsn",
				Usage:   "database connection DSN (or URI for neo4j)",
				Sources: cli.EnvVars("FLATMAPPER_DSN"),
			},
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "neo4j username",
				Sources: cli.EnvVars("FLATMAPPER_USER"),
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "neo4j password",
				Sources: cli.EnvVars("FLATMAPPER_PASS"),
			},
			&cli.StringFlag{
				Name:  "sql",
				Usage: "query text",
			},
			&cli.StringSliceFlag{
				Name:  "arg",
				Usage: "query arg (positional for SQL, name=value for neo4j)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "maximum number of rows to read (0 for no limit)",
			},
		},
		Action: runQuery,
	}
}

func runQuery(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()
	driver := firstNonEmpty(cmd.String("driver"), s.cfg.Driver)
	dsn := firstNonEmpty(cmd.String("dsn"), s.cfg.DSN)
	query := cmd.String("sql")
	switch {
	case driver == "":
		return ErrNoDriver
	case dsn == "":
		return ErrNoDSN
	case query == "":
		return ErrNoQuery
	}
	args := cmd.StringSlice("arg")
	var result *flatmapper.Collection
	switch driver {
	case driverPostgres, driverMySQL:
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return err
		}
		defer func() {
			_ = db.Close()
		}()
		qargs := make([]any, len(args))
		for i, a := range args {
			qargs[i] = a
		}
		result, err = s.mapper.Query(ctx, db, s.root, query, qargs, limitOption(cmd))
		if err != nil {
			return err
		}
	case driverNeo4j:
		result, err = s.queryNeo4j(ctx, cmd, dsn, query, args)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
	return s.writeCollection(result)
}

func (s *session) queryNeo4j(ctx context.Context, cmd *cli.Command, uri string, query string, args []string) (*flatmapper.Collection, error) {
	auth := neo4j.NoAuth()
	if username := firstNonEmpty(cmd.String("username"), s.cfg.Username); username != "" {
		auth = neo4j.BasicAuth(username, firstNonEmpty(cmd.String("password"), s.cfg.Password), "")
	}
	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to create driver: %w", err)
	}
	defer func() {
		_ = driver.Close(ctx)
	}()
	params, err := namedParams(args)
	if err != nil {
		return nil, err
	}
	rows, err := neo4jrows.ExecuteQuery(ctx, driver, query, params)
	if err != nil {
		return nil, err
	}
	return s.mapper.Hydrate(ctx, s.root, rows, limitOption(cmd))
}

// session is the state shared by every command - resolved from flags, environment and config file
type session struct {
	cfg    *config
	logger *zap.Logger
	mapper flatmapper.Mapper
	root   string
	format string
	out    io.Writer
}

func newSession(cmd *cli.Command) (*session, error) {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	schema := firstNonEmpty(cmd.String("schema"), cfg.Schema)
	if schema == "" {
		return nil, ErrNoSchema
	}
	root := firstNonEmpty(cmd.String("root"), cfg.Root)
	if root == "" {
		return nil, ErrNoRoot
	}
	format := firstNonEmpty(cmd.String("format"), cfg.Format, formatJSON)
	if format != formatJSON && format != formatDump {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	validate := cfg.Validate == nil || *cfg.Validate
	if cmd.Bool("no-validate") {
		validate = false
	}
	logger, err := newLogger(cmd.Bool("verbose"))
	if err != nil {
		return nil, err
	}
	registry := flatmapper.MustNewRegistry()
	if err = registry.LoadYAMLFile(schema); err != nil {
		return nil, err
	}
	logger.Debug("loaded schema", zap.String("path", schema), zap.Strings("types", registry.Names()))
	mapper, err := flatmapper.NewMapper(registry, flatmapper.ValidateMapping(validate), logger)
	if err != nil {
		return nil, err
	}
	out := cmd.Root().Writer
	if out == nil {
		out = os.Stdout
	}
	return &session{
		cfg:    cfg,
		logger: logger,
		mapper: mapper,
		root:   root,
		format: format,
		out:    out,
	}, nil
}

func (s *session) close() {
	_ = s.logger.Sync()
}

func (s *session) write(v any) error {
	if s.format == formatDump {
		spew.Fdump(s.out, v)
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.out, string(data))
	return err
}

func (s *session) writeCollection(c *flatmapper.Collection) error {
	if s.format == formatDump {
		return s.write(c.Values())
	}
	return s.write(c)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

// readRows reads a JSON array of row objects - numbers are kept as json.Number
func readRows(r io.Reader) ([]flatmapper.Row, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rows []flatmapper.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return rows, nil
}

func namedParams(args []string) (map[string]any, error) {
	params := make(map[string]any, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid neo4j arg %q (expected name=value)", a)
		}
		params[k] = v
	}
	return params, nil
}

func limitOption(cmd *cli.Command) any {
	if limit := int(cmd.Int("limit")); limit > 0 {
		return flatmapper.RowLimit(limit)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
