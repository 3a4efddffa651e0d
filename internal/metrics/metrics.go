package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BlobBytesWritten counts content bytes accepted by the write pipeline.
	BlobBytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nkstore_blob_bytes_written_total",
		Help: "Content bytes accepted by blob writes.",
	})

	// BlobBytesRead counts content bytes served by the read path.
	BlobBytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nkstore_blob_bytes_read_total",
		Help: "Content bytes served by blob reads.",
	})

	// BlobWriteErrors counts uploads that ended in an erroneous blob.
	BlobWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nkstore_blob_write_errors_total",
		Help: "Blob uploads that failed and were marked erroneous.",
	})

	// BlobsSwept counts blob records removed by the garbage sweeper.
	BlobsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nkstore_blobs_swept_total",
		Help: "Blob records removed by the garbage sweeper.",
	})
)

// Handler exposes the Prometheus scrape endpoint as a gin handler.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
