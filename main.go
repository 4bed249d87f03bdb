package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"coworking-dbms/backup"
	"coworking-dbms/config"
	"coworking-dbms/coworking"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app bundles everything a command needs once configuration is resolved.
type app struct {
	cfg     config.App
	backend coworking.Backend
	log     *logrus.Entry
	session string
	oplog   *coworking.FileOperationLog
	mgr     *coworking.Manager
	closers []func() error
}

type flags struct {
	dataDir  string
	backend  string
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	// After the first interrupt, restore default handling so a second one
	// kills the process.
	go func() {
		<-ctx.Done()
		stop()
	}()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:           "flexdesk",
		Short:         "Co-working space record store (members, workspaces, bookings, payments)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer a.close()
			return a.runMenu(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	root.PersistentFlags().StringVar(&f.dataDir, "data-dir", "", "directory holding the data files (overrides FLEXDESK_DATA_DIR)")
	root.PersistentFlags().StringVar(&f.backend, "backend", "", "csv, sqlite or postgres (overrides FLEXDESK_BACKEND)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "diagnostics level (overrides FLEXDESK_LOG_LEVEL)")

	root.AddCommand(newDemoCmd(&f), newExportCmd(&f), newBackupCmd(&f), newStatsCmd(&f))
	return root
}

// ---------------------------------------------------------------------------
// Wiring
// ---------------------------------------------------------------------------

func loadConfig(f flags) (config.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if f.dataDir != "" {
		cfg.DataDir = f.dataDir
	}
	if f.backend != "" {
		cfg.Backend = f.backend
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return cfg, nil
}

func inDataDir(cfg config.App, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cfg.DataDir, p)
}

func newApp(ctx context.Context, f flags) (*app, error) {
	cfg, err := loadConfig(f)
	if err != nil {
		return nil, err
	}
	log, session, err := coworking.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	a := &app{cfg: cfg, log: log, session: session}

	a.oplog, err = coworking.OpenOperationLog(inDataDir(cfg, cfg.LogFile))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.oplog.Close)

	reg := prometheus.NewRegistry()
	metrics, err := coworking.NewMetrics(reg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	if cfg.MetricsAddr != "" {
		a.serveMetrics(reg)
	}

	db := coworking.NewDatabase(
		coworking.WithOperationLog(a.oplog),
		coworking.WithMetrics(metrics),
		coworking.WithIndexBuckets(cfg.IndexBuckets),
	)
	a.backend, err = coworking.ParseBackend(cfg.Backend)
	if err != nil {
		a.close()
		return nil, err
	}
	gw, err := a.openGateway(ctx, a.backend)
	if err != nil {
		a.close()
		return nil, err
	}
	a.mgr = coworking.NewManager(db, gw, log)

	if cfg.S3Bucket != "" {
		if err := a.enableBackup(ctx, a.backend); err != nil {
			log.WithError(err).Warn("backup disabled")
		}
	}
	return a, nil
}

func (a *app) openGateway(ctx context.Context, b coworking.Backend) (coworking.Gateway, error) {
	switch b {
	case coworking.BackendSQLite:
		gw, err := coworking.OpenSQLite(inDataDir(a.cfg, a.cfg.SQLitePath), a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gw.Close)
		return gw, nil
	case coworking.BackendPostgres:
		gw, err := coworking.OpenPostgres(ctx, a.cfg.PostgresDSN, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gw.Close)
		return gw, nil
	default:
		return coworking.NewCSVGateway(a.cfg.DataDir, a.log), nil
	}
}

func (a *app) newUploader(ctx context.Context) (*backup.S3Uploader, error) {
	return backup.New(ctx, backup.Config{
		Region:    a.cfg.S3Region,
		Bucket:    a.cfg.S3Bucket,
		Prefix:    a.cfg.S3Prefix,
		Endpoint:  a.cfg.S3Endpoint,
		PathStyle: a.cfg.S3PathStyle,
	}, a.session, a.log)
}

// backupFiles names what a backup copies for the active backend.
func (a *app) backupFiles(b coworking.Backend) (dir string, files []string, ok bool) {
	switch b {
	case coworking.BackendCSV:
		return a.cfg.DataDir, coworking.DataFiles, true
	case coworking.BackendSQLite:
		p := inDataDir(a.cfg, a.cfg.SQLitePath)
		return filepath.Dir(p), []string{filepath.Base(p)}, true
	}
	return "", nil, false
}

func (a *app) enableBackup(ctx context.Context, b coworking.Backend) error {
	dir, files, ok := a.backupFiles(b)
	if !ok {
		return fmt.Errorf("backend %s has no local files to back up", b)
	}
	up, err := a.newUploader(ctx)
	if err != nil {
		return err
	}
	a.mgr.OnSave(func(ctx context.Context) error {
		_, err := up.Upload(ctx, dir, files)
		return err
	})
	return nil
}

func (a *app) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Warn("metrics listener stopped")
		}
	}()
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	a.log.WithField("addr", a.cfg.MetricsAddr).Info("serving metrics")
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Debug("close")
		}
	}
	a.closers = nil
}

// ---------------------------------------------------------------------------
// Subcommands
// ---------------------------------------------------------------------------

func newDemoCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the reader/writer lock demonstration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*f)
			if err != nil {
				return err
			}
			demo := &coworking.LockDemo{
				DB:      coworking.NewDatabase(),
				Hold:    cfg.DemoHold,
				Stagger: cfg.DemoStagger,
				Out:     cmd.OutOrStdout(),
			}
			_, err = demo.Run(cmd.Context())
			return err
		},
	}
}

func newExportCmd(f *flags) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the CSV data files into a SQLite or Postgres snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ff := *f
			ff.backend = string(coworking.BackendCSV)
			a, err := newApp(cmd.Context(), ff)
			if err != nil {
				return err
			}
			defer a.close()

			target, err := coworking.ParseBackend(to)
			if err != nil {
				return err
			}
			if target == coworking.BackendCSV {
				return fmt.Errorf("export target must be sqlite or postgres")
			}
			if err := a.mgr.LoadData(cmd.Context()); err != nil {
				return err
			}
			gw, err := a.openGateway(cmd.Context(), target)
			if err != nil {
				return err
			}
			if err := gw.Save(cmd.Context(), a.mgr.DB()); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			c := a.mgr.DB().Counts()
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d members, %d workspaces, %d bookings, %d payments to %s.\n",
				c.Members, c.Workspaces, c.Bookings, c.Payments, target)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", string(coworking.BackendSQLite), "sqlite or postgres")
	return cmd
}

func newBackupCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Upload the current data files to S3",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *f)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.S3Bucket == "" {
				return fmt.Errorf("FLEXDESK_S3_BUCKET is not set")
			}
			dir, files, ok := a.backupFiles(a.backend)
			if !ok {
				return fmt.Errorf("backend %s has no local files to back up", a.backend)
			}
			up, err := a.newUploader(cmd.Context())
			if err != nil {
				return err
			}
			keys, err := up.Upload(cmd.Context(), dir, files)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded s3://%s/%s\n", a.cfg.S3Bucket, k)
			}
			return err
		},
	}
}

func newStatsCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Load the data and print record counts and next ids",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *f)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.mgr.LoadData(cmd.Context()); err != nil {
				return err
			}
			db := a.mgr.DB()
			c, n := db.Counts(), db.NextIDs()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-12s %-8s %s\n", "Entity", "Records", "Next ID")
			fmt.Fprintf(out, "%-12s %-8d %d\n", "members", c.Members, n.Member)
			fmt.Fprintf(out, "%-12s %-8d %d\n", "workspaces", c.Workspaces, n.Workspace)
			fmt.Fprintf(out, "%-12s %-8d %d\n", "bookings", c.Bookings, n.Booking)
			fmt.Fprintf(out, "%-12s %-8d %d\n", "payments", c.Payments, n.Payment)
			fmt.Fprintf(out, "indexed members: %d\n", db.IndexedMembers())
			return nil
		},
	}
}
