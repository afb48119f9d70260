package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/betty-pap/BookTracker-app-backend/internal/catalog"
	"github.com/betty-pap/BookTracker-app-backend/internal/config"
	"github.com/betty-pap/BookTracker-app-backend/internal/database"
	"github.com/betty-pap/BookTracker-app-backend/internal/handlers"
	"github.com/betty-pap/BookTracker-app-backend/internal/repositories"
	"github.com/betty-pap/BookTracker-app-backend/internal/scheduler"
	"github.com/betty-pap/BookTracker-app-backend/internal/services"
	"github.com/betty-pap/BookTracker-app-backend/internal/tasks"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "booktracker",
		Short: "BookTracker API server",
		Long: `BookTracker keeps your reading shelves (to be read, reading, finished),
tracks page progress and reading sessions, and searches Open Library.
Configuration is read from the environment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(config.NewConfig())
		},
	}

	rootCmd.AddCommand(serveCmd(), migrateCmd(), enrichCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(config.NewConfig())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewConfig()
			db, err := database.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.Migrate(db); err != nil {
				return err
			}
			log.Printf("[INFO] Migrate: schema is up to date (%s)", cfg.Database.Driver)
			return nil
		},
	}
}

func enrichCmd() *cobra.Command {
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Fill in unknown page counts from Open Library and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewConfig()
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			svc := newBookService(cfg, db, nil)
			ctx := cmd.Context()

			books, err := svc.ListMissingPageCount(ctx)
			if err != nil {
				return fmt.Errorf("list books missing a page count: %w", err)
			}

			enriched, failed := 0, 0
			for i, book := range books {
				if i > 0 && delay > 0 {
					time.Sleep(delay)
				}
				updated, err := svc.EnrichPageCount(ctx, book.ExternalID)
				if err != nil {
					failed++
					continue
				}
				if updated.TotalPages > 0 {
					enriched++
				}
			}
			fmt.Printf("Checked %d books: %d enriched, %d failed\n", len(books), enriched, failed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&delay, "delay", 500*time.Millisecond, "pause between Open Library requests")
	return cmd
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			database.Close(db)
			return nil, err
		}
	}
	return db, nil
}

func newBookService(cfg *config.Config, db *gorm.DB, enqueuer services.PageCountEnqueuer) services.BookService {
	catalogClient := catalog.NewClient(cfg.OpenLibrary.BaseURL, cfg.OpenLibrary.CoversURL, cfg.OpenLibrary.Timeout)
	return services.NewBookService(db, repositories.NewBookRepository(db), catalogClient, enqueuer)
}

// taskConfig starts from the queue defaults and applies configured overrides.
func taskConfig(cfg config.Tasks) tasks.Config {
	tc := tasks.DefaultConfig()
	if cfg.Workers > 0 {
		tc.Workers = cfg.Workers
	}
	if cfg.ReleaseAfter > 0 {
		tc.ReleaseAfter = cfg.ReleaseAfter
	}
	if cfg.CleanupInterval > 0 {
		tc.CleanupInterval = cfg.CleanupInterval
	}
	return tc
}

// background owns the task queue and the scheduler. stop tears them down in
// order (scheduler, workers, task database, context) and only once, whichever
// way serve returns.
type background struct {
	cancel    context.CancelFunc
	scheduler *scheduler.EnrichmentScheduler
	tasks     *tasks.Client
	timeout   time.Duration

	once sync.Once
}

func (b *background) stop() {
	b.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		if b.scheduler != nil {
			b.scheduler.Stop()
		}
		if b.tasks != nil {
			b.tasks.Stop(ctx)
			if err := b.tasks.Close(); err != nil {
				log.Printf("[WARN] Serve: closing task database: %v", err)
			}
		}
		if b.cancel != nil {
			b.cancel()
		}
	})
}

func serve(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx, cancel := context.WithCancel(context.Background())
	bg := &background{cancel: cancel, timeout: cfg.Global.ShutdownTimeout}
	defer bg.stop()

	var svc services.BookService
	if cfg.Tasks.Enabled {
		bg.tasks, err = tasks.NewClient(cfg.Tasks.DBPath, taskConfig(cfg.Tasks))
		if err != nil {
			return err
		}

		svc = newBookService(cfg, db, bg.tasks)
		bg.tasks.Register(tasks.NewEnrichPageCountQueue(svc))
		bg.tasks.Start(ctx)

		bg.scheduler = scheduler.NewEnrichmentScheduler(svc, bg.tasks, cfg.Tasks.EnrichSchedule)
		if err := bg.scheduler.Start(ctx); err != nil {
			return err
		}
	} else {
		svc = newBookService(cfg, db, nil)
		log.Printf("[INFO] Serve: background tasks disabled")
	}

	router := gin.Default()
	router.Use(handlers.CORSMiddleware(cfg.HTTP.AllowedOrigins))
	handlers.RegisterRoutes(router, svc)
	handlers.RegisterHealth(router, db)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s (%s)", cfg.HTTP.Addr, cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}
	log.Printf("Shutting down, waiting up to %v", cfg.Global.ShutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Global.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	bg.stop()

	log.Println("Server exiting")
	return nil
}
