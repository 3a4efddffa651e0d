package directory

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nkrypt-xyz/nkstore/internal/auth"
	"github.com/nkrypt-xyz/nkstore/internal/bucket"
)

// RegisterRoutes mounts directory endpoints onto the authenticated group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/directory/create", handler.create)
	group.POST("/directory/get", handler.get)
	group.POST("/directory/rename", handler.rename)
	group.POST("/directory/move", handler.move)
	group.POST("/directory/set-metadata", handler.setMetaData)
	group.POST("/directory/set-encrypted-metadata", handler.setEncryptedMetaData)
	group.POST("/directory/delete", handler.remove)
}

type httpHandler struct {
	service *Service
}

type createRequest struct {
	BucketID          uuid.UUID      `json:"bucketId" binding:"required"`
	ParentDirectoryID uuid.UUID      `json:"parentDirectoryId" binding:"required"`
	Name              string         `json:"name" binding:"required"`
	MetaData          map[string]any `json:"metaData"`
	EncryptedMetaData string         `json:"encryptedMetaData"`
}

func (h *httpHandler) create(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.Create(c.Request.Context(), principal.UserID, req.BucketID, req.ParentDirectoryID, req.Name, req.EncryptedMetaData, req.MetaData)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"directoryId": created.ID})
}

type getRequest struct {
	BucketID    uuid.UUID `json:"bucketId" binding:"required"`
	DirectoryID uuid.UUID `json:"directoryId" binding:"required"`
}

func (h *httpHandler) get(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		return
	}

	var req getRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := h.service.Get(c.Request.Context(), principal.UserID, req.BucketID, req.DirectoryID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

type renameRequest struct {
	BucketID    uuid.UUID `json:"bucketId" binding:"required"`
	DirectoryID uuid.UUID `json:"directoryId" binding:"required"`
	Name        string    `json:"name" binding:"required"`
}

func (h *httpHandler) rename(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		return
	}

	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Rename(c.Request.Context(), principal.UserID, req.BucketID, req.DirectoryID, req.Name); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type moveRequest struct {
	BucketID             uuid.UUID `json:"bucketId" binding:"required"`
	DirectoryID          uuid.UUID `json:"directoryId" binding:"required"`
	NewParentDirectoryID uuid.UUID `json:"newParentDirectoryId" binding:"required"`
}

func (h *httpHandler) move(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		return
	}

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Move(c.Request.Context(), principal.UserID, req.BucketID, req.DirectoryID, req.NewParentDirectoryID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setMetaDataRequest struct {
	BucketID    uuid.UUID      `json:"bucketId" binding:"required"`
	DirectoryID uuid.UUID      `json:"directoryId" binding:"required"`
	MetaData    map[string]any `json:"metaData" binding:"required"`
}

func (h *httpHandler) setMetaData(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		return
	}

	var req setMetaDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SetMetaData(c.Request.Context(), principal.UserID, req.BucketID, req.DirectoryID, req.MetaData); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setEncryptedMetaDataRequest struct {
	BucketID          uuid.UUID `json:"bucketId" binding:"required"`
	DirectoryID       uuid.UUID `json:"directoryId" binding:"required"`
	EncryptedMetaData string    `json:"encryptedMetaData" binding:"required"`
}

func (h *httpHandler) setEncryptedMetaData(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		return
	}

	var req setEncryptedMetaDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SetEncryptedMetaData(c.Request.Context(), principal.UserID, req.BucketID, req.DirectoryID, req.EncryptedMetaData); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type deleteRequest struct {
	BucketID    uuid.UUID `json:"bucketId" binding:"required"`
	DirectoryID uuid.UUID `json:"directoryId" binding:"required"`
}

func (h *httpHandler) remove(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		return
	}

	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Delete(c.Request.Context(), principal.UserID, req.BucketID, req.DirectoryID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrDirectoryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "directory not found"})
	case errors.Is(err, ErrDirectoryNotInBucket):
		c.JSON(http.StatusNotFound, gin.H{"error": "directory does not belong to this bucket"})
	case errors.Is(err, ErrNameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "a file or directory with that name already exists here"})
	case errors.Is(err, ErrCircularMove):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot move a directory into its own subtree"})
	case errors.Is(err, ErrRootDirectory):
		c.JSON(http.StatusBadRequest, gin.H{"error": "the root directory cannot be moved or deleted"})
	default:
		bucket.WriteError(c, err)
	}
}
