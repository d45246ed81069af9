package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/medletter/internal/config"
	"github.com/ehr/medletter/internal/consultation"
	"github.com/ehr/medletter/internal/letter/aggregate"
	"github.com/ehr/medletter/internal/letter/pipeline"
	"github.com/ehr/medletter/internal/letter/render"
	"github.com/ehr/medletter/internal/platform/archive"
	"github.com/ehr/medletter/internal/platform/db"
	"github.com/ehr/medletter/internal/platform/middleware"
	"github.com/ehr/medletter/internal/platform/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "letter-server",
		Short: "Medical letter (Anexa 43) generation server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the letter API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the letter of a consultation to a PDF file",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("consultation")
			dir, _ := cmd.Flags().GetString("data-dir")
			out, _ := cmd.Flags().GetString("out")

			consultationID, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("invalid --consultation %q: %w", id, err)
			}
			svc, err := offlineService(dir, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			doc, err := svc.PDF(cmd.Context(), consultationID)
			if err != nil {
				return err
			}
			if out == "" {
				out = doc.FileName
			}
			if err := os.WriteFile(out, doc.Content, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", out, len(doc.Content))
			return nil
		},
	}
	cmd.Flags().String("consultation", "", "Consultation id")
	cmd.Flags().String("data-dir", "./data", "Directory of consultation bundles")
	cmd.Flags().String("out", "", "Output PDF path (defaults to the letter file name)")
	_ = cmd.MarkFlagRequired("consultation")
	return cmd
}

func previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render one page of a consultation letter to a PNG file",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("consultation")
			dir, _ := cmd.Flags().GetString("data-dir")
			page, _ := cmd.Flags().GetInt("page")
			width, _ := cmd.Flags().GetInt("width")
			out, _ := cmd.Flags().GetString("out")

			consultationID, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("invalid --consultation %q: %w", id, err)
			}
			svc, err := offlineService(dir, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			img, err := svc.PagePreview(cmd.Context(), consultationID, page, width)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, img, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote page %d to %s\n", page, out)
			return nil
		},
	}
	cmd.Flags().String("consultation", "", "Consultation id")
	cmd.Flags().String("data-dir", "./data", "Directory of consultation bundles")
	cmd.Flags().Int("page", 1, "Page number (1-based)")
	cmd.Flags().Int("width", pipeline.DefaultPreviewWidth, "Image width in pixels")
	cmd.Flags().String("out", "page.png", "Output PNG path")
	_ = cmd.MarkFlagRequired("consultation")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run read-model migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func connect(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

// renderStyle is the default A4 style with the configured fonts.
func renderStyle(cfg *config.Config) render.RenderStyle {
	style := render.DefaultStyle()
	style.FontFile = cfg.RenderFontFile
	style.BoldFontFile = cfg.RenderBoldFontFile
	style.ItalicFontFile = cfg.RenderItalicFontFile
	return style
}

func memorySources(s *consultation.MemoryStore) aggregate.Sources {
	return aggregate.Sources{
		Consultations:  s.Consultations(),
		Labs:           s.Labs(),
		Investigations: s.Investigations(),
	}
}

func pgSources(pool *pgxpool.Pool) aggregate.Sources {
	return aggregate.Sources{
		Consultations:  consultation.NewConsultationRepoPG(pool),
		Labs:           consultation.NewLabRepoPG(pool),
		Investigations: consultation.NewInvestigationRepoPG(pool),
	}
}

// offlineService builds a pipeline over the bundles in dir without archiving.
func offlineService(dir string, logOut io.Writer) (*pipeline.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, logOut)

	store, err := consultation.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("consultations", store.Len()).Str("dir", dir).Msg("loaded consultation bundles")

	agg := aggregate.New(memorySources(store), cfg.Clinic(), logger, aggregate.WithFetchTimeout(cfg.FetchTimeout))
	return pipeline.NewService(agg, render.New(renderStyle(cfg)), nil, logger), nil
}

// openArchive returns the configured letter archive, nil when disabled.
func openArchive(ctx context.Context, cfg *config.Config) (archive.Store, error) {
	switch cfg.ArchiveBackend {
	case config.ArchiveNone:
		return nil, nil
	case config.ArchiveMinio:
		client, err := archive.NewMinioClient(archive.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, err
		}
		store := archive.NewMinioStore(client, cfg.MinioBucket)
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return archive.NewMemoryStore(), nil
	}
}

// newServer wires the middleware chain, the health and metrics endpoints and
// the letter routes. pool is nil when consultations come from DATA_DIR.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *pipeline.Service, pool *pgxpool.Pool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	tp := telemetry.New()
	svc.Instrument(tp)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(tp.MetricsMiddleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost},
		AllowHeaders:  []string{"Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Disposition", middleware.RequestIDHeader},
	}))

	// Health check and metrics
	e.GET("/health", db.HealthHandler(pool))
	e.GET("/metrics", tp.PrometheusHandler())

	apiV1 := e.Group("/api/v1")
	pipeline.NewHandler(svc).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	// Consultation source
	var (
		src  aggregate.Sources
		pool *pgxpool.Pool
	)
	if cfg.UsesDatabase() {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		src = pgSources(pool)
		logger.Info().Msg("connected to database")
	} else {
		store, err := consultation.LoadDir(cfg.DataDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load consultation bundles")
		}
		src = memorySources(store)
		logger.Info().Str("dir", cfg.DataDir).Int("consultations", store.Len()).Msg("serving consultations from files")
	}

	// Archive
	store, err := openArchive(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open letter archive")
	}
	logger.Info().Str("backend", cfg.ArchiveBackend).Msg("letter archive ready")

	agg := aggregate.New(src, cfg.Clinic(), logger, aggregate.WithFetchTimeout(cfg.FetchTimeout))
	svc := pipeline.NewService(agg, render.New(renderStyle(cfg)), store, logger)
	e := newServer(cfg, logger, svc, pool)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
