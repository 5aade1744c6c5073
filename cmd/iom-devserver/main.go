package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-iom/internal/config"
	"github.com/goliatone/go-iom/internal/devserver"
	"github.com/goliatone/go-iom/internal/logging"
)

func main() {
	envFile := flag.String("env", "", "optional .env file")
	addr := flag.String("addr", "", "listen address (overrides ITSM_DEV_ADDR)")
	templates := flag.String("templates", "", "directory of extra template files to serve")
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.LoadDevServer(files...)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger := logging.Component(logging.New(cfg.LogLevel, cfg.LogFormat, nil).WithField("app", "iom-devserver"), "devserver")
	if logger.Logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := devserver.NewStore()
	if err := devserver.Seed(ctx, store, logger); err != nil {
		log.Fatalf("Failed to seed store: %v", err)
	}
	if *templates != "" {
		extra, err := devserver.LoadTemplates(ctx, os.DirFS(*templates), ".", logger)
		if err != nil {
			log.Fatalf("Failed to load templates: %v", err)
		}
		for _, tpl := range extra {
			store.AddTemplate(tpl)
		}
	}

	server := devserver.New(store,
		devserver.WithLogger(logger),
		devserver.WithSecret(cfg.JWTSecret),
		devserver.WithTokenTTL(cfg.TokenTTLDuration()),
	)

	fmt.Printf("ITSM_API_URL=http://localhost%s/api/\n", cfg.Addr)
	for _, user := range store.Users() {
		token, err := server.Token(user.ID)
		if err != nil {
			log.Fatalf("Failed to issue token for %s: %v", user.Username, err)
		}
		fmt.Printf("%-6s ITSM_API_TOKEN=%s\n", user.Username, token)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("shutdown failed")
		}
	}()

	logger.WithField("addr", cfg.Addr).Info("dev server listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}
