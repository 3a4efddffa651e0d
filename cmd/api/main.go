package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nkrypt-xyz/nkstore/internal/auth"
	"github.com/nkrypt-xyz/nkstore/internal/blob"
	"github.com/nkrypt-xyz/nkstore/internal/blobstore"
	"github.com/nkrypt-xyz/nkstore/internal/bucket"
	"github.com/nkrypt-xyz/nkstore/internal/config"
	"github.com/nkrypt-xyz/nkstore/internal/directory"
	"github.com/nkrypt-xyz/nkstore/internal/file"
	"github.com/nkrypt-xyz/nkstore/internal/logger"
	"github.com/nkrypt-xyz/nkstore/internal/server"
	"github.com/nkrypt-xyz/nkstore/internal/storage"
)

const adminUserName = "admin"

func main() {
	_ = godotenv.Load()

	log, err := logger.Init()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	store, err := blobstore.New(cfg.BlobStorage.Dir)
	if err != nil {
		return err
	}

	authRepo := auth.NewRepository(pool)
	bucketRepo := bucket.NewRepository(pool)
	directoryRepo := directory.NewRepository(pool)
	fileRepo := file.NewRepository(pool)
	blobRepo := blob.NewRepository(pool)

	gate := bucket.NewGate(bucketRepo)
	authService := auth.NewService(authRepo, cfg.Auth)
	blobService := blob.NewService(blobRepo, store, fileRepo, gate, cfg.BlobStorage, log)
	directoryService := directory.NewService(directoryRepo, gate, fileRepo, blobService)
	fileService := file.NewService(fileRepo, gate, directoryService, blobService)
	bucketService := bucket.NewService(bucketRepo, directoryService, blobService)

	if err := authService.EnsureAdminUser(ctx, adminUserName); err != nil {
		return err
	}

	sweeper := blob.NewSweeper(blobService, cfg.BlobStorage.SweepInterval, log)
	go sweeper.Run(ctx)

	router := server.NewRouter(server.Dependencies{
		Config:           cfg,
		Pool:             pool,
		BlobStore:        store,
		AuthService:      authService,
		BucketService:    bucketService,
		DirectoryService: directoryService,
		FileService:      fileService,
		BlobService:      blobService,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
