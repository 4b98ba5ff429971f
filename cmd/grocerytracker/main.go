package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/grocerytracker/internal/backup"
	"github.com/dukerupert/grocerytracker/internal/config"
	"github.com/dukerupert/grocerytracker/internal/logging"
	"github.com/dukerupert/grocerytracker/internal/server"
	"github.com/dukerupert/grocerytracker/internal/store"
	"github.com/dukerupert/grocerytracker/internal/tracker"
	"golang.org/x/sync/errgroup"
)

const usage = `Usage: grocerytracker [-db path] <command> [flags]

Commands:
  serve      run the HTTP API
  add        record a purchase
  list       list purchases
  history    show the purchases of one item
  summary    per-item price statistics
  overview   whole-collection totals
  delete     delete a purchase by id
  export     write purchases as CSV
  report     print a price report
  chart      render a chart as PNG
  backup     take an encrypted backup
  backups    list local backups
  restore    restore the database from a backup
`

// usageError marks bad command-line input; it exits with status 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()

	global := flag.NewFlagSet("grocerytracker", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	global.StringVar(&cfg.DBPath, "db", cfg.DBPath, "database file")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	a := &app{cfg: cfg, logger: logger, stdout: stdout, stderr: stderr}

	cmd, rest := global.Arg(0), global.Args()[1:]
	commands := map[string]func([]string) error{
		"serve":    a.serve,
		"add":      a.add,
		"list":     a.list,
		"history":  a.history,
		"summary":  a.summary,
		"overview": a.overview,
		"delete":   a.delete,
		"export":   a.export,
		"report":   a.report,
		"chart":    a.chart,
		"backup":   a.backup,
		"backups":  a.backups,
		"restore":  a.restore,
	}
	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	err := fn(rest)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.As(err, new(*usageError)), store.IsValidation(err):
		fmt.Fprintln(stderr, "error:", err)
		return 2
	default:
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
}

// flags returns a flag set that reports parse failures as usage errors.
func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return &usageError{msg: err.Error()}
	}
	return nil
}

// withTracker opens the database for the duration of fn.
func (a *app) withTracker(fn func(*tracker.Tracker) error) error {
	t, err := tracker.Open(a.cfg.DBPath, a.logger)
	if err != nil {
		return err
	}
	defer t.Close()
	return fn(t)
}

func (a *app) backupManager(db *sql.DB) *backup.Manager {
	cfg := backup.Config{Dir: a.cfg.BackupDir, S3: a.cfg.S3}
	return backup.NewManager(cfg, db, a.logger.With("component", "backup"))
}

func (a *app) serve(args []string) error {
	fs := a.flags("serve")
	port := fs.String("port", a.cfg.Port, "listen port")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	return a.withTracker(func(t *tracker.Tracker) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mgr := a.backupManager(t.DB())
		srv := server.New(t, mgr, server.Options{
			BackupPassphrase: a.cfg.BackupPassphrase,
			WriteLimit:       a.cfg.WriteLimit,
		}, a.logger)
		g, gctx := errgroup.WithContext(ctx)
		if a.cfg.BackupInterval > 0 {
			mgr.Start(gctx, a.cfg.BackupInterval, a.cfg.BackupPassphrase, a.cfg.BackupKeep)
		}

		httpServer := &http.Server{
			Addr:         ":" + *port,
			Handler:      srv.Router(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		g.Go(func() error {
			srv.Limiter().Sweep(gctx)
			return nil
		})
		g.Go(func() error {
			a.logger.Info("grocery tracker listening", "addr", "http://localhost:"+*port, "db", t.Path())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		})
		return g.Wait()
	})
}
