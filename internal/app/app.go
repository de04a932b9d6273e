// Package app initializes and runs the main application service.
// It configures logging, storage, sessions, and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/apetrenko/hublink/internal/auth"
	"github.com/apetrenko/hublink/internal/config"
	"github.com/apetrenko/hublink/internal/db/jsondb"
	"github.com/apetrenko/hublink/internal/db/memorystorage"
	"github.com/apetrenko/hublink/internal/db/postgresdb"
	"github.com/apetrenko/hublink/internal/db/storage"
	"github.com/apetrenko/hublink/internal/ipchecker"
	"github.com/apetrenko/hublink/internal/logger"
	"github.com/apetrenko/hublink/internal/models"
	"github.com/apetrenko/hublink/internal/router"
	"github.com/apetrenko/hublink/internal/session"
	"github.com/apetrenko/hublink/internal/sessionsweeper"
	"github.com/apetrenko/hublink/internal/web"
)

// App encapsulates the configuration, HTTP handler, storage backend,
// and the background session sweeper needed to run the gateway.
type App struct {
	cfg         *config.Config
	db          storage.Storage
	sweeper     *sessionsweeper.Sweeper
	stopSweeper context.CancelFunc
	httpHandler http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - seeding the URL directory when a seed file is configured
// - setting up the session manager and the background session sweeper
// - setting up the router and middleware
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	if app.cfg.URLSeedFile != "" {
		if err := seedURLDirectory(context.Background(), app.db, app.cfg.URLSeedFile); err != nil {
			return nil, err
		}
	}

	authCookieSigningSecretKey, err := base64.URLEncoding.DecodeString(app.cfg.AuthCookieSigningSecretKey)
	if err != nil {
		return nil, err
	}

	sessions := session.New(
		app.db,
		app.cfg.AuthCookieName,
		authCookieSigningSecretKey,
		app.cfg.SessionTTL,
		app.cfg.IsProduction(),
	)

	app.sweeper = sessionsweeper.New(app.db, app.cfg.SessionSweepInterval)
	sweeperRunCtx, stopSweeper := context.WithCancel(context.Background())
	app.stopSweeper = stopSweeper

	app.sweeper.Run(sweeperRunCtx)
	app.sweeper.ListenErrors(func(err error) {
		logger.Log.Debugln("Error passed from the `app.sweeper.ListenErrors()`:", zap.Error(err))
	})

	ipCheck, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	views, err := web.NewViews()
	if err != nil {
		return nil, err
	}

	staticHandler, err := web.StaticHandler()
	if err != nil {
		return nil, err
	}

	app.httpHandler = router.New(
		app.db,
		auth.New(app.db, app.cfg.FixedPasswordHash),
		sessions,
		views,
		ipCheck,
		staticHandler,
	)

	return app, nil
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Saving database and exiting...")
		a.stopSweeper()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.db.Close()

	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}

// seedURLDirectory loads the URL directory from a JSON seed file. Seeding is
// the only write path for URLEntry records; the HTTP surface never creates
// or mutates them.
func seedURLDirectory(ctx context.Context, db storage.Storage, seedFile string) error {
	data, err := os.ReadFile(seedFile)
	if err != nil {
		return fmt.Errorf("reading URL seed file: %w", err)
	}

	var seedEntries []models.URLSeedEntry
	if err := json.Unmarshal(data, &seedEntries); err != nil {
		return fmt.Errorf("parsing URL seed file: %w", err)
	}

	validate := validator.New()
	entries := map[int]string{}
	for _, entry := range seedEntries {
		if err := validate.Struct(entry); err != nil {
			return fmt.Errorf("invalid URL seed entry: %w", err)
		}
		entries[entry.Index] = entry.URL
	}

	if err := db.SaveURLEntries(ctx, entries, nil); err != nil {
		return fmt.Errorf("saving URL seed entries: %w", err)
	}

	logger.Log.Infof("seeded %d URL directory entries", len(entries))

	return nil
}
