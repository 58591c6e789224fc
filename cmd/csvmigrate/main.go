// Command csvmigrate bulk-loads partitioned, headerless CSV extracts into
// database tables.
//
//	csvmigrate [--flags] ['["orders","customers"]']
//
// The optional argument is a JSON array of table names; without it every
// table in <src-path>/schemas.json is migrated. Every table is truncated and
// reloaded from <src-path>/<table>/part-* in chunks, at most four tables at a
// time. A summary is printed at the end; the exit code is 0 even when tables
// failed unless --strict is given.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"csvmigrate/internal/config"
	"csvmigrate/internal/datasource/file"
	"csvmigrate/internal/metrics"
	"csvmigrate/internal/metrics/datadog"
	"csvmigrate/internal/metrics/prompush"
	"csvmigrate/internal/migrate"
	"csvmigrate/internal/parser/csv"
	"csvmigrate/internal/schema"
	"csvmigrate/internal/storage"
	"csvmigrate/internal/transformer"

	// register all backends with the storage factory.
	// config picks one but every driver is built in.
	_ "csvmigrate/internal/storage/all"
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fatalf("load .env: %v", err)
	}
	log.SetOutput(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Getenv)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	os.Exit(2)
}

// options are the flags that only make sense on the command line.
type options struct {
	validate   bool
	strict     bool
	progress   bool
	verbose    bool
	tablesFile string
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	var (
		cfg  *config.Config
		opts options
	)
	cmd := &cobra.Command{
		Use:   "csvmigrate [TABLES_JSON]",
		Short: "Load partitioned CSV extracts into database tables",
		Long: `csvmigrate truncates each target table and reloads it from
<src-path>/<table>/part-* using the column names in <src-path>/schemas.json.

TABLES_JSON is an optional JSON array of table names, e.g. '["orders"]'.
Without it every catalog table is migrated.

Every flag can be set through the environment; see the flag help for the
variable names. A .env file in the working directory is read at startup.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), *cfg, opts, args)
		},
	}

	fs := cmd.Flags()
	cfg = config.Bind(fs, getenv)
	fs.BoolVar(&opts.validate, "validate", false, "Validate the configuration and exit")
	fs.BoolVar(&opts.strict, "strict", false, "Exit 1 when any table failed")
	fs.BoolVar(&opts.progress, "progress", false, "Show a progress bar over tables on stderr")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logs")
	fs.StringVar(&opts.tablesFile, "tables-file", "", "File with one table name per line; '#' starts a comment")
	return cmd
}

func run(ctx context.Context, stdout, stderr io.Writer, cfg config.Config, opts options, args []string) error {
	// Validate configuration.
	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return &exitError{code: 1, err: errors.New("configuration is invalid")}
	}
	if opts.validate {
		fmt.Fprintln(stdout, "configuration is valid")
		return nil
	}

	tables, err := requestedTables(args, opts.tablesFile)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	catalog, err := schema.Load(filepath.Join(cfg.SrcPath, schema.DescriptorFile))
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	rules := transformer.DefaultRules()
	if cfg.FixupsFile != "" {
		extra, err := transformer.LoadRules(cfg.FixupsFile)
		if err != nil {
			return &exitError{code: 1, err: err}
		}
		rules = rules.Merge(extra)
	}

	flush := setupMetrics(cfg, opts.verbose)
	defer flush()

	reader := csv.DefaultOptions()
	reader.BatchSize = cfg.BatchSize
	reader.Comma = cfg.CommaRune()
	reader.InferTypes = cfg.InferTypes
	reader.LazyQuotes = cfg.LazyQuotes
	reader.TrimSpace = cfg.TrimSpace

	d := &migrate.Dispatcher{
		Catalog:    catalog,
		SourceRoot: cfg.SrcPath,
		Storage:    storage.Config{Kind: cfg.DBDriver, DSN: cfg.ConnString()},
		Reader:     reader,
		Rules:      rules,
		Job:        cfg.Job,
		Workers:    cfg.EffectiveWorkers(),
	}
	if opts.progress {
		n := len(tables)
		if n == 0 {
			n = len(catalog.Tables())
		}
		bar := newProgress(stderr, n)
		d.OnResult = func(r migrate.Result) {
			bar.Describe(r.Table)
			_ = bar.Add(1)
		}
		defer func() { _ = bar.Finish() }()
	}

	if opts.verbose {
		log.Printf("migrate: src=%s driver=%s workers=%d batch=%d",
			cfg.SrcPath, cfg.DBDriver, cfg.EffectiveWorkers(), cfg.BatchSize)
	}

	start := time.Now()
	sum, runErr := d.Run(ctx, tables)
	if _, err := sum.WriteTo(stdout); err != nil {
		return err
	}
	if opts.verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}

	switch {
	case runErr != nil:
		return &exitError{code: 1, err: runErr}
	case opts.strict && !sum.OK():
		return &exitError{code: 1, err: fmt.Errorf("%d of %d tables failed: %v", sum.Failed, len(sum.Results), sum.FailedTables())}
	}
	return nil
}

// requestedTables merges the JSON array argument with the tables file. Both
// empty means every catalog table.
func requestedTables(args []string, tablesFile string) ([]string, error) {
	var tables []string
	if len(args) == 1 {
		if err := json.Unmarshal([]byte(args[0]), &tables); err != nil {
			return nil, fmt.Errorf("TABLES_JSON must be a JSON array of table names: %w", err)
		}
	}
	if tablesFile != "" {
		more, err := file.ReadList(tablesFile)
		if err != nil {
			return nil, fmt.Errorf("read tables file: %w", err)
		}
		tables = append(tables, more...)
	}
	return tables, nil
}

// setupMetrics installs the configured metrics backend and returns the
// function that flushes it. Backend errors leave the nop backend in place.
func setupMetrics(cfg config.Config, verbose bool) func() {
	nop := func() {}
	switch cfg.MetricsBackend {
	case config.MetricsPushgateway:
		b, err := prompush.NewBackend(cfg.Job, cfg.PushgatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return nop
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", cfg.PushgatewayURL, cfg.MetricsBackend, cfg.Job)
		metrics.SetBackend(b)

	case config.MetricsDatadog:
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       cfg.DDAgentAddr,
			Namespace:  "csvmigrate.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return nop
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", cfg.DDAgentAddr, cfg.MetricsBackend, cfg.Job)
		metrics.SetBackend(b)

	default:
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", cfg.MetricsBackend)
		}
		return nop
	}

	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func newProgress(w io.Writer, tables int) *progressbar.ProgressBar {
	return progressbar.NewOptions(tables,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("tables"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
