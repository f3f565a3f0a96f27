package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	consoleHandler "github.com/connectbox/console/internal/controller/http/console"
	sessionSqlite "github.com/connectbox/console/internal/repositories/session/sqlite"
	"github.com/connectbox/console/internal/session"
	"github.com/connectbox/console/pkg/common/apiclient"
	"github.com/connectbox/console/pkg/common/config"
	"github.com/connectbox/console/pkg/common/keys"
	"github.com/connectbox/console/pkg/common/logger"
)

const purgeEvery = 15 * time.Minute

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logger.Error("load config: %v", err)
		os.Exit(1)
	}
	logger.Initialize(cfg.LogLevel)
	if cfg.RollbarToken != "" {
		host, _ := os.Hostname()
		logger.EnableRollbar(cfg.RollbarToken, cfg.Env, host)
	}
	defer logger.Flush()
	logger.Info("starting console (env=%s, appliance=%s)", cfg.Env, cfg.ApplianceURL)

	signer, err := keys.Load(cfg.PrivateKeyPEM, cfg.KeyID)
	if err != nil {
		logger.Error("init keys: %v", err)
		os.Exit(1)
	}

	store, err := sessionSqlite.NewSQLiteRepo(cfg.SessionDBPath)
	if err != nil {
		logger.Error("init session repo: %v", err)
		os.Exit(1)
	}

	api := apiclient.New(cfg.ApplianceURL, apiclient.WithTimeout(cfg.ApplianceTimeout))
	secure := cfg.Env == "production"
	sessions := session.NewManager(api, store, signer, cfg.SessionTTL, session.WithSecureCookie(secure))
	h := consoleHandler.NewHandler(sessions)

	router := chi.NewRouter()
	const maxBodySize = 2_100_000
	router.Use(middleware.RequestSize(maxBodySize))
	router.Use(middleware.Recoverer)
	router.Use(consoleHandler.SecurityHeaders)
	if cfg.CSRFKey != "" {
		router.Use(consoleHandler.CSRF([]byte(cfg.CSRFKey), secure))
	} else {
		logger.Warn("CSRF_KEY not set, unsafe requests rely on the SameSite session cookie only")
	}
	router.Mount("/admin/console", h.Router())

	addr := ":" + cfg.Port
	server := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen: %v", err)
		}
	}()

	purgeCtx, stopPurge := context.WithCancel(context.Background())
	go purgeSessions(purgeCtx, sessions)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down...")
	stopPurge()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown: %v", err)
	}
	store.Disconnect()
	logger.Info("server stopped")
}

func purgeSessions(ctx context.Context, sessions *session.Manager) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := sessions.Purge(ctx)
			if err != nil {
				logger.Warn("purge sessions: %v", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged %d expired sessions", n)
			}
		}
	}
}
