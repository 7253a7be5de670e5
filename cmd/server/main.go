// Command fk-server starts the face authentication HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/and161185/face-keeper/internal/config"
	"github.com/and161185/face-keeper/internal/encoder"
	"github.com/and161185/face-keeper/internal/logging"
	"github.com/and161185/face-keeper/internal/migrate"
	"github.com/and161185/face-keeper/internal/repository"
	"github.com/and161185/face-keeper/internal/repository/jsonfile"
	"github.com/and161185/face-keeper/internal/repository/postgres"
	"github.com/and161185/face-keeper/internal/repository/rediskv"
	httpserver "github.com/and161185/face-keeper/internal/server/http"
	"github.com/and161185/face-keeper/internal/service"
	"github.com/and161185/face-keeper/internal/store"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, opens the user store and the encoder, and serves HTTP.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.StoreBackend),
		zap.String("encoder", cfg.EncoderTransport),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	doc, closeDoc, err := openDocument(startCtx, cfg, logger)
	if err != nil {
		logger.Fatal("open user store", zap.Error(err))
	}
	defer closeDoc()

	users := store.New(doc, cfg.EmbeddingDim, logger)
	if err := users.Load(startCtx); err != nil {
		logger.Fatal("load users", zap.Error(err))
	}

	enc, closeEnc, err := openEncoder(cfg, logger)
	if err != nil {
		logger.Fatal("open encoder", zap.Error(err))
	}
	defer closeEnc()

	authSvc := service.NewAuthService(users, encoder.NewPool(enc, cfg.EncoderWorkers, logger), service.Options{
		Threshold: cfg.Threshold,
		SignKey:   []byte(cfg.JWTKey),
		AccessTTL: cfg.AccessTTL,
	}, logger)

	gin.SetMode(gin.ReleaseMode)
	api := httpserver.New(authSvc, users, httpserver.Options{
		Name:         "Face Authentication API",
		SignKey:      []byte(cfg.JWTKey),
		MaxBodyBytes: cfg.MaxBodyBytes,
	}, logger)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("listening", zap.String("addr", cfg.Addr), zap.Int("users", users.Len()))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// openDocument selects the persistence backend. The returned func releases it.
func openDocument(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.DocumentStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		if err := migrate.Up(ctx, cfg.DatabaseDSN, logger); err != nil {
			return nil, nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		return postgres.NewUserDocument(db), db.Close, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		return rediskv.New(rediskv.NewClient(client), cfg.RedisKey, logger), func() { _ = client.Close() }, nil

	default:
		return jsonfile.New(cfg.StorePath), func() {}, nil
	}
}

// openEncoder connects to the face encoder sidecar.
func openEncoder(cfg *config.Config, logger *zap.Logger) (encoder.FaceEncoder, func(), error) {
	if cfg.EncoderTransport == config.TransportGRPC {
		client, conn, err := encoder.DialGRPC(cfg.EncoderURL, cfg.EncoderModel, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, closer(conn, logger), nil
	}
	return encoder.NewHTTPClient(cfg.EncoderURL, cfg.EncoderModel, cfg.EncoderTimeout), func() {}, nil
}

func closer(c io.Closer, logger *zap.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Warn("close", zap.Error(err))
		}
	}
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := signalCh
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
