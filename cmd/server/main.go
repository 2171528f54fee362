/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (file, then environment), apply flag overrides
  2. Initialize SQLite store
  3. Build engine, roster source and reconcile gate
  4. Start the time-based approval scheduler
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Configuration file (default: config.yml, skipped when missing)
  -port    HTTP server port, overrides app.port
  -db      SQLite database path, overrides database.path
           Use ":memory:" for in-memory database

ENVIRONMENT:
  APP_PORT, LOG_LEVEL, DB_PATH, SCHEDULER_ENABLED, SCHEDULER_INTERVAL,
  ROSTER_URL, ROSTER_TOKEN, ROSTER_TIMEOUT (see config/config.go)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/roster"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "configuration file")
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	var files []string
	if *configPath != "" {
		files = append(files, *configPath)
	}
	conf, err := config.Load(files...)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if *port != 0 {
		conf.App.Port = *port
	}
	if *dbPath != "" {
		conf.Database.Path = *dbPath
	}

	if level, err := log.ParseLevel(conf.App.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("log_level", conf.App.LogLevel).Warn("unknown log level, keeping info")
	}

	store, err := sqlite.New(conf.Database.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	engine := leave.NewEngine(store)

	var src roster.Source
	if conf.Roster.URL != "" {
		src = roster.NewHTTPSource(conf.Roster.URL, conf.Roster.Token, conf.Roster.Timeout)
		log.WithField("roster_url", conf.Roster.URL).Info("employee roster enabled")
	}
	handler := api.NewHandler(engine, leave.NewGate(engine, src))

	scheduler := api.NewApprovalScheduler(engine)
	scheduler.Enabled = conf.SchedulerEnabled()
	if conf.Scheduler.Interval > 0 {
		scheduler.CheckInterval = conf.Scheduler.Interval
	}
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", conf.App.ListenAddr, conf.App.Port),
		Handler:      api.NewRouter(handler, conf.App.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).WithField("db", conf.Database.Path).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.Info("server stopped")
}
