package server

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkrypt-xyz/nkstore/internal/auth"
	"github.com/nkrypt-xyz/nkstore/internal/blob"
	"github.com/nkrypt-xyz/nkstore/internal/blobstore"
	"github.com/nkrypt-xyz/nkstore/internal/bucket"
	"github.com/nkrypt-xyz/nkstore/internal/config"
	"github.com/nkrypt-xyz/nkstore/internal/directory"
	"github.com/nkrypt-xyz/nkstore/internal/file"
	"github.com/nkrypt-xyz/nkstore/internal/metrics"
)

// Dependencies carries every service the router mounts. All wiring happens
// in main; the router only arranges routes and middleware.
type Dependencies struct {
	Config    config.Config
	Pool      *pgxpool.Pool
	BlobStore *blobstore.Store

	AuthService      *auth.Service
	BucketService    *bucket.Service
	DirectoryService *directory.Service
	FileService      *file.Service
	BlobService      *blob.Service
}

// NewRouter assembles the HTTP surface. Health and the Prometheus scrape
// endpoint are open; login is the only open endpoint under /api; everything
// else requires a valid API key.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	registerHealthRoutes(router, deps.Pool, deps.BlobStore)
	router.GET(deps.Config.Metrics.PrometheusPath, metrics.Handler())

	api := router.Group("/api")
	auth.RegisterPublicRoutes(api, deps.AuthService)

	protected := api.Group("")
	protected.Use(auth.Middleware(deps.AuthService))

	auth.RegisterRoutes(protected, deps.AuthService)
	bucket.RegisterRoutes(protected, deps.BucketService)
	directory.RegisterRoutes(protected, deps.DirectoryService)
	file.RegisterRoutes(protected, deps.FileService)
	blob.RegisterRoutes(protected, deps.BlobService)
	metrics.RegisterRoutes(protected, deps.Pool, deps.BlobStore)

	return router
}
