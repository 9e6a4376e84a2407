package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/johndauphine/litekeep/internal/config"
	"github.com/johndauphine/litekeep/internal/csvcodec"
	"github.com/johndauphine/litekeep/internal/db"
	"github.com/johndauphine/litekeep/internal/dump"
	"github.com/johndauphine/litekeep/internal/exitcodes"
	"github.com/johndauphine/litekeep/internal/logging"
	"github.com/johndauphine/litekeep/internal/migrate"
	"github.com/johndauphine/litekeep/internal/progress"
	"github.com/johndauphine/litekeep/internal/transfer"
	"github.com/urfave/cli/v2"
)

var version = "dev"

const defaultConfigPath = "litekeep.yaml"

func main() {
	app := &cli.App{
		Name:    "litekeep",
		Usage:   "Dump, restore and CSV round-trips for SQLite databases",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   defaultConfigPath,
				Usage:   "Path to configuration file",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Database name (file <data-dir>/<name>.sqlite3)",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Directory holding database files",
			},
			&cli.BoolFlag{
				Name:  "memory",
				Usage: "Use a private in-memory database",
			},
			&cli.BoolFlag{
				Name:  "no-migrations",
				Usage: "Do not run migrations when opening the database",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format: text or json",
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Usage: "Log verbosity level (debug, info, warn, error)",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			level, err := logging.ParseLevel(cfg.Logging.Level)
			if err != nil {
				return err
			}
			logging.SetLevel(level)
			logging.SetFormat(cfg.Logging.Format)

			c.App.Metadata["config"] = cfg
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "dump",
				Usage:  "Write the database (or one table) as an SQL script",
				Action: dumpDatabase,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "table",
						Usage: "Dump only this table",
					},
					&cli.BoolFlag{
						Name:  "compat",
						Usage: "Wrap the script in PRAGMA foreign_keys/BEGIN/COMMIT",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file (default stdout)",
					},
				},
			},
			{
				Name:   "restore",
				Usage:  "Replace the database contents with an SQL script",
				Action: restoreDatabase,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "in",
						Aliases:  []string{"i"},
						Usage:    "Script to restore ('-' for stdin)",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "compat",
						Usage: "Replay the script as-is; it carries its own transaction",
					},
				},
			},
			{
				Name:   "export-csv",
				Usage:  "Write a table as CSV",
				Action: exportCSV,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "table",
						Usage:    "Table to export",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "quote-all",
						Usage: "Quote every field",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file (default stdout)",
					},
				},
			},
			{
				Name:   "import-csv",
				Usage:  "Insert the rows of a CSV file into a table",
				Action: importCSV,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "table",
						Usage:    "Target table",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "in",
						Aliases:  []string{"i"},
						Usage:    "CSV file ('-' for stdin)",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "empty-as-null",
						Usage: "Insert NULL for empty fields",
					},
				},
			},
			{
				Name:   "migrate",
				Usage:  "Apply pending migrations from a manifest",
				Action: runMigrations,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "Migration manifest (default migrations.file from config)",
					},
					&cli.BoolFlag{
						Name:  "status",
						Usage: "Show the current version and pending migrations without applying them",
					},
				},
			},
			{
				Name:      "exec",
				Usage:     "Run SQL statements in one transaction and print result rows as CSV",
				ArgsUsage: "SQL",
				Action:    execSQL,
			},
			{
				Name:   "tables",
				Usage:  "List tables, views, indexes and triggers",
				Action: listObjects,
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration",
				Action: showConfig,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		code := exitcodes.FromError(err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logging.Debug("exit code %d (%s)", code, exitcodes.Description(code))
		os.Exit(code)
	}
}

// loadConfig reads the config file (when given or present in the working
// directory) and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")
	var cfg *config.Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) && !c.IsSet("config") {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, exitcodes.NewExitError(fmt.Errorf("failed to load config: %w", err), exitcodes.ConfigError)
		}
		cfg = loaded
	}

	if c.IsSet("db") {
		cfg.Database.Name = c.String("db")
	}
	if c.IsSet("data-dir") {
		cfg.Database.DataDir = c.String("data-dir")
	}
	if c.Bool("memory") {
		cfg.Database.InMemory = true
	}
	if c.Bool("no-migrations") {
		cfg.SetMigrationsActive(false)
		cfg.Migrations.File = ""
	}
	if c.IsSet("verbosity") {
		cfg.Logging.Level = c.String("verbosity")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, exitcodes.NewExitError(fmt.Errorf("invalid configuration: %w", err), exitcodes.ConfigError)
	}
	return cfg, nil
}

func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata["config"].(*config.Config)
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted.")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// openDatabase opens the configured database, running migrations (the
// migrations table plus the configured manifest, if any) when active.
func openDatabase(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	for _, w := range cfg.StorageWarnings() {
		fmt.Fprint(os.Stderr, w)
	}

	opts := db.Options{
		DataDir:  cfg.Database.DataDir,
		InMemory: cfg.Database.InMemory,
		Debug:    cfg.Database.Debug,
	}
	if cfg.MigrationsActive() {
		runner := migrate.NewRunner()
		if cfg.Migrations.File != "" {
			ms, err := migrate.LoadFile(cfg.Migrations.File)
			if err != nil {
				return nil, err
			}
			runner.Add(ms...)
		}
		opts.Migrator = runner
	}

	d, err := db.Open(ctx, cfg.Database.Name, opts)
	if err != nil {
		return nil, err
	}
	logging.Debug("using %s", d)
	return d, nil
}

func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(data), nil
}

func writeOutput(path, content string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(os.Stdout, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	logging.Info("Wrote %s (%s)", path, humanize.Bytes(uint64(len(content))))
	return nil
}

func dumpDatabase(c *cli.Context) error {
	cfg := configFrom(c)
	ctx, cancel := signalContext()
	defer cancel()

	d, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	compat := cfg.Dump.CompatibilityMode
	if c.IsSet("compat") {
		compat = c.Bool("compat")
	}
	script, err := dump.Dump(ctx, d, dump.Options{
		CompatibilityMode: compat,
		Table:             c.String("table"),
	})
	if err != nil {
		return err
	}
	return writeOutput(c.String("out"), script)
}

func restoreDatabase(c *cli.Context) error {
	cfg := configFrom(c)
	ctx, cancel := signalContext()
	defer cancel()

	script, err := readInput(c.String("in"))
	if err != nil {
		return err
	}

	d, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	compat := cfg.Dump.CompatibilityMode
	if c.IsSet("compat") {
		compat = c.Bool("compat")
	}

	bar := progress.New("Restoring", os.Stderr, cfg.Logging.Format)
	err = dump.Restore(ctx, d, script, dump.RestoreOptions{
		CompatibilityMode: compat,
		OnStatement:       bar.Update,
	})
	bar.Finish()
	if err != nil {
		return err
	}
	logging.Info("Restored %s", d)
	return nil
}

func exportCSV(c *cli.Context) error {
	cfg := configFrom(c)
	ctx, cancel := signalContext()
	defer cancel()

	d, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	quoteAll := cfg.CSV.QuoteAllFields
	if c.IsSet("quote-all") {
		quoteAll = c.Bool("quote-all")
	}
	text, err := transfer.ExportTableCSV(ctx, d, c.String("table"), csvcodec.Options{QuoteAllFields: quoteAll})
	if err != nil {
		return err
	}
	return writeOutput(c.String("out"), text)
}

func importCSV(c *cli.Context) error {
	cfg := configFrom(c)
	ctx, cancel := signalContext()
	defer cancel()

	text, err := readInput(c.String("in"))
	if err != nil {
		return err
	}

	d, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	emptyAsNull := cfg.CSV.EmptyAsNull
	if c.IsSet("empty-as-null") {
		emptyAsNull = c.Bool("empty-as-null")
	}

	table := c.String("table")
	start := time.Now()
	bar := progress.New("Importing "+table, os.Stderr, cfg.Logging.Format)
	n, err := transfer.ImportTableCSV(ctx, d, table, text, transfer.ImportOptions{
		EmptyAsNull: emptyAsNull,
		OnRow:       bar.Update,
	})
	bar.Finish()
	if err != nil {
		return err
	}
	logging.Info("Imported %s", transfer.Stats{Table: table, Rows: n, Duration: time.Since(start)})
	return nil
}

func runMigrations(c *cli.Context) error {
	cfg := configFrom(c)
	ctx, cancel := signalContext()
	defer cancel()

	file := cfg.Migrations.File
	if c.IsSet("file") {
		file = c.String("file")
	}
	if file == "" {
		return exitcodes.NewExitError(fmt.Errorf("no migration manifest: pass --file or set migrations.file"), exitcodes.ConfigError)
	}
	ms, err := migrate.LoadFile(file)
	if err != nil {
		return err
	}

	// Open without the automatic runner so this command reports what it applied.
	cfg.SetMigrationsActive(false)
	cfg.Migrations.File = ""
	d, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	runner := migrate.NewRunner(ms...)
	if c.Bool("status") {
		current, err := migrate.Current(ctx, d)
		if err != nil {
			return err
		}
		pending, err := runner.Pending(ctx, d)
		if err != nil {
			return err
		}
		fmt.Printf("Current version: %d\n", current)
		for _, m := range pending {
			fmt.Printf("Pending: %d %s\n", m.Version, m.Description)
		}
		return nil
	}

	applied, err := runner.Run(ctx, d)
	for _, v := range applied {
		fmt.Printf("Applied migration %d\n", v)
	}
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Println("Already up to date")
	}
	return nil
}

func execSQL(c *cli.Context) error {
	cfg := configFrom(c)
	ctx, cancel := signalContext()
	defer cancel()

	script := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(script) == "" {
		return exitcodes.NewExitError(fmt.Errorf("exec requires SQL"), exitcodes.ConfigError)
	}

	d, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	var out strings.Builder
	err = d.Transaction(ctx, func(tx *db.DB) error {
		for _, stmt := range dump.SplitStatements(script) {
			rows, err := tx.Query(ctx, stmt)
			if err != nil {
				return err
			}
			if len(rows.Columns) > 0 {
				out.WriteString(csvcodec.Encode(rows.Columns, rows.Data, csvcodec.Options{QuoteAllFields: cfg.CSV.QuoteAllFields}))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return writeOutput("", out.String())
}

func listObjects(c *cli.Context) error {
	cfg := configFrom(c)
	ctx, cancel := signalContext()
	defer cancel()

	d, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	objects, err := dump.Catalog(ctx, d)
	if err != nil {
		return err
	}
	for _, o := range objects {
		if o.Type == "table" || o.Type == "view" {
			fmt.Printf("%-8s %s\n", o.Type, o.Name)
		} else {
			fmt.Printf("%-8s %s (on %s)\n", o.Type, o.Name, o.TableName)
		}
	}
	return nil
}

func showConfig(c *cli.Context) error {
	out, err := configFrom(c).YAML()
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
