package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

const queryTimeout = 5 * time.Second

// diskUsager reports capacity of the volume holding blob bytes.
type diskUsager interface {
	Usage() (total uint64, used uint64, err error)
}

// Summary is the operator-facing snapshot served by get-summary.
type Summary struct {
	DiskTotalBytes uint64 `json:"diskTotalBytes"`
	DiskUsedBytes  uint64 `json:"diskUsedBytes"`
	UserCount      int64  `json:"userCount"`
	BucketCount    int64  `json:"bucketCount"`
	FileCount      int64  `json:"fileCount"`
	BlobCount      int64  `json:"blobCount"`
}

// RegisterRoutes mounts the summary endpoint onto the authenticated group.
func RegisterRoutes(group *gin.RouterGroup, pool *pgxpool.Pool, disk diskUsager) {
	handler := &summaryHandler{pool: pool, disk: disk}
	group.GET("/metrics/get-summary", handler.getSummary)
}

type summaryHandler struct {
	pool *pgxpool.Pool
	disk diskUsager
}

func (h *summaryHandler) getSummary(c *gin.Context) {
	summary, err := h.collect(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *summaryHandler) collect(ctx context.Context) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s Summary

	total, used, err := h.disk.Usage()
	if err != nil {
		return Summary{}, fmt.Errorf("disk usage: %w", err)
	}
	s.DiskTotalBytes = total
	s.DiskUsedBytes = used

	err = h.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM buckets),
			(SELECT count(*) FROM files),
			(SELECT count(*) FROM blobs)`,
	).Scan(&s.UserCount, &s.BucketCount, &s.FileCount, &s.BlobCount)
	if err != nil {
		return Summary{}, fmt.Errorf("record counts: %w", err)
	}
	return s, nil
}
