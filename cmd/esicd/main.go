// Command esicd runs the e-SIC records-request service and its maintenance
// tasks.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/tbourn/esic-backend/internal/config"
	"github.com/tbourn/esic-backend/internal/domain"
	httpapi "github.com/tbourn/esic-backend/internal/http"
	"github.com/tbourn/esic-backend/internal/notify"
	"github.com/tbourn/esic-backend/internal/observability"
	"github.com/tbourn/esic-backend/internal/repo"
	"github.com/tbourn/esic-backend/internal/services"
	"github.com/tbourn/esic-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const purgeInterval = time.Hour

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "esicd",
	Short: "e-SIC records-request service",
	Long: `esicd receives access-to-information requests from citizens, tracks
their statutory deadlines, and records responses and appeals.

Commands:
- serve: run the HTTP API.
- migrate: create or update the database schema.
- stats: print the transparency statistics.
- purge: delete expired idempotency keys.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := sysutil.LoadDotEnv(viper.GetString("env-file")); err != nil {
			return err
		}
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c
		sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ESICD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("env-file", rootCmd.PersistentFlags().Lookup("env-file"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(purgeCmd())
}

// openDB opens the configured database and brings the schema up to date.
func openDB() (*gorm.DB, func(), error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return db, closeDB, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, cfg.Lifecycle, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, closeDB, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB()
	if cfg.OTEL.Enabled {
		if err := repo.UseTracing(db); err != nil {
			return fmt.Errorf("gorm tracing: %w", err)
		}
	}

	n, closeNotifier, err := notify.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer closeNotifier()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg, n)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeLoop(ctx, db, purgeInterval)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("base_path", cfg.APIBasePath).
			Bool("nats", cfg.NATS.URL != "").
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

// purgeLoop deletes expired idempotency keys every interval until ctx ends.
func purgeLoop(ctx context.Context, db *gorm.DB, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency keys")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("purged idempotency keys")
			}
		}
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, closeDB, err := openDB()
			if err != nil {
				return err
			}
			closeDB()
			log.Info().Str("db", cfg.DBPath).Msg("schema up to date")
			return nil
		},
	}
}

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired idempotency keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()
			n, err := repo.PurgeIdempotency(cmd.Context(), db, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d expired keys\n", n)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print transparency statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			reg := services.NewRequestRegistry(db, cfg.Lifecycle, nil)
			st, err := services.NewStatisticsAggregator(reg).Get(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printStats(st)
			return nil
		},
	}
}

func printStats(st *services.Statistics) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRow(table.Row{"Total requests", st.Total})
	tw.AppendRow(table.Row{"Response rate", fmt.Sprintf("%.1f%%", st.ResponseRate*100)})
	tw.AppendRow(table.Row{"Near deadline", st.NearDeadlineCount})
	tw.AppendRow(table.Row{"Overdue", st.OverdueCount})
	tw.AppendRow(table.Row{"Open appeals", st.OpenAppeals})
	tw.Render()

	statuses := make([]string, 0, len(st.CountByStatus))
	for s := range st.CountByStatus {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	bt := table.NewWriter()
	bt.SetOutputMirror(os.Stdout)
	bt.AppendHeader(table.Row{"Status", "Requests"})
	for _, s := range statuses {
		bt.AppendRow(table.Row{s, st.CountByStatus[domain.Status(s)]})
	}
	bt.Render()

	if len(st.ResponsesByKind) == 0 {
		return
	}
	kinds := make([]string, 0, len(st.ResponsesByKind))
	for k := range st.ResponsesByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	kt := table.NewWriter()
	kt.SetOutputMirror(os.Stdout)
	kt.AppendHeader(table.Row{"Response kind", "Count"})
	for _, k := range kinds {
		kt.AppendRow(table.Row{k, st.ResponsesByKind[domain.ResponseKind(k)]})
	}
	kt.Render()
}
