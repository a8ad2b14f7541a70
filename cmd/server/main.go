package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/sanjeevkumarraob/pdf-text-service/internal/api"
	"github.com/sanjeevkumarraob/pdf-text-service/internal/auth"
	"github.com/sanjeevkumarraob/pdf-text-service/internal/config"
	"github.com/sanjeevkumarraob/pdf-text-service/internal/document"
	"github.com/sanjeevkumarraob/pdf-text-service/internal/document/extractor"
	"github.com/sanjeevkumarraob/pdf-text-service/internal/session"
	"github.com/sanjeevkumarraob/pdf-text-service/pkg/recordstore"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "pdf-text-service: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadFromFiles(configPath)
	if err != nil {
		return err
	}

	logger := config.NewLogger(os.Stdout, cfg.Logging)
	if cfg.Auth.UsesDevSecrets() {
		logger.Warn("using development auth secrets; set PDFTEXT_JWT_SECRET and PDFTEXT_SESSION_SECRET for production")
	}
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("record store ready", "driver", cfg.Storage.Driver, "path", cfg.Storage.Path)

	parser := extractor.NewPDFParser(extractor.Options{
		LineBreaks:        extractor.LineBreakMode(cfg.Extraction.LineBreaks),
		GeometryTolerance: cfg.Extraction.GeometryTolerance,
		WordGap:           cfg.Extraction.WordGap,
		RepairXref:        cfg.Extraction.RepairXref,
		Logger:            logger.With("component", "extractor"),
	})
	docProcessor := document.NewProcessor(parser, document.Limits{
		MaxSizeBytes:      cfg.Upload.MaxSizeBytes,
		AcceptedExtension: cfg.Upload.AcceptedExtension,
		AcceptedMediaType: cfg.Upload.AcceptedMediaType,
	}, logger.With("component", "processor"))

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDurationValue())
	sessOpts := session.Options{
		MaxAge: int(cfg.Auth.TokenDurationValue().Seconds()),
		Secure: cfg.Auth.CookieSecure,
	}
	sessionManager := session.NewSessionManager(logger, session.NewStore(cfg.Auth.SessionSecret, sessOpts), sessOpts)
	authenticator := api.NewAuthenticator(jwtManager, sessionManager, logger)

	handler := api.NewHandler(docProcessor, store, authenticator, logger.With("component", "api"), cfg.Upload.ReadChunkSize)
	router := api.NewRouter(handler, cfg, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(cfg config.StorageConfig) (recordstore.Store, error) {
	switch cfg.Driver {
	case "memory":
		return recordstore.NewMemoryStore(), nil
	case "sqlite":
		store, err := recordstore.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
