package blob

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nkrypt-xyz/nkstore/internal/auth"
	"github.com/nkrypt-xyz/nkstore/internal/file"
	"github.com/nkrypt-xyz/nkstore/internal/metrics"
)

// CryptoMetaHeaderName carries the client-side encryption envelope. The
// server stores and echoes it without ever parsing the contents.
const CryptoMetaHeaderName = "nk-crypto-meta"

// nullBlobID is what clients send in the blob id slot to start a new blob.
const nullBlobID = "null"

// RegisterRoutes mounts blob endpoints onto the authenticated group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/blob/write/:bucketId/:fileId", handler.write)
	group.POST("/blob/write-quantized/:bucketId/:fileId/:blobId/:offset/:shouldEnd", handler.writeQuantized)
	group.GET("/blob/read/:bucketId/:fileId", handler.read)
}

type httpHandler struct {
	service *Service
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func (h *httpHandler) write(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		return
	}
	bucketID, ok := parseIDParam(c, "bucketId")
	if !ok {
		return
	}
	fileID, ok := parseIDParam(c, "fileId")
	if !ok {
		return
	}

	result, err := h.service.Write(c.Request.Context(), principal.UserID, bucketID, fileID,
		c.GetHeader(CryptoMetaHeaderName), c.Request.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) writeQuantized(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		return
	}
	bucketID, ok := parseIDParam(c, "bucketId")
	if !ok {
		return
	}
	fileID, ok := parseIDParam(c, "fileId")
	if !ok {
		return
	}

	var blobID *uuid.UUID
	if raw := c.Param("blobId"); raw != nullBlobID {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid blobId"})
			return
		}
		blobID = &parsed
	}

	offset, err := strconv.ParseInt(c.Param("offset"), 10, 64)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}
	shouldEnd, err := strconv.ParseBool(c.Param("shouldEnd"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid shouldEnd"})
		return
	}

	result, err := h.service.WriteChunk(c.Request.Context(), principal.UserID, bucketID, fileID,
		blobID, offset, shouldEnd, c.GetHeader(CryptoMetaHeaderName), c.Request.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) read(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		return
	}
	bucketID, ok := parseIDParam(c, "bucketId")
	if !ok {
		return
	}
	fileID, ok := parseIDParam(c, "fileId")
	if !ok {
		return
	}

	result, err := h.service.Read(c.Request.Context(), principal.UserID, bucketID, fileID)
	if err != nil {
		writeError(c, err)
		return
	}
	defer result.Content.Close()

	metrics.BlobBytesRead.Add(float64(result.Size))
	c.Header("Access-Control-Expose-Headers", CryptoMetaHeaderName)
	c.Header(CryptoMetaHeaderName, result.Blob.CryptoHeader)
	c.DataFromReader(http.StatusOK, result.Size, "application/octet-stream", result.Content, nil)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrBlobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no blob content found"})
	case errors.Is(err, ErrOffsetMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset does not match stored size"})
	case errors.Is(err, ErrSizeLimitExceeded):
		c.JSON(http.StatusBadRequest, gin.H{"error": "blob size limit exceeded"})
	case errors.Is(err, ErrCryptoHeaderInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": CryptoMetaHeaderName + " header missing or too large"})
	default:
		file.WriteError(c, err)
	}
}
