package file

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nkrypt-xyz/nkstore/internal/auth"
	"github.com/nkrypt-xyz/nkstore/internal/bucket"
)

// RegisterRoutes mounts file endpoints onto the authenticated group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/file/create", handler.create)
	group.POST("/file/get", handler.get)
	group.POST("/file/rename", handler.rename)
	group.POST("/file/move", handler.move)
	group.POST("/file/set-metadata", handler.setMetaData)
	group.POST("/file/set-encrypted-metadata", handler.setEncryptedMetaData)
	group.POST("/file/delete", handler.remove)
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
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"fileId": created.ID})
}

type getRequest struct {
	BucketID uuid.UUID `json:"bucketId" binding:"required"`
	FileID   uuid.UUID `json:"fileId" binding:"required"`
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

	f, err := h.service.Get(c.Request.Context(), principal.UserID, req.BucketID, req.FileID)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": f})
}

type renameRequest struct {
	BucketID uuid.UUID `json:"bucketId" binding:"required"`
	FileID   uuid.UUID `json:"fileId" binding:"required"`
	Name     string    `json:"name" binding:"required"`
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

	if err := h.service.Rename(c.Request.Context(), principal.UserID, req.BucketID, req.FileID, req.Name); err != nil {
		WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type moveRequest struct {
	BucketID             uuid.UUID `json:"bucketId" binding:"required"`
	FileID               uuid.UUID `json:"fileId" binding:"required"`
	NewParentDirectoryID uuid.UUID `json:"newParentDirectoryId" binding:"required"`
	NewName              string    `json:"newName"`
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

	if err := h.service.Move(c.Request.Context(), principal.UserID, req.BucketID, req.FileID, req.NewParentDirectoryID, req.NewName); err != nil {
		WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setMetaDataRequest struct {
	BucketID uuid.UUID      `json:"bucketId" binding:"required"`
	FileID   uuid.UUID      `json:"fileId" binding:"required"`
	MetaData map[string]any `json:"metaData" binding:"required"`
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

	if err := h.service.SetMetaData(c.Request.Context(), principal.UserID, req.BucketID, req.FileID, req.MetaData); err != nil {
		WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setEncryptedMetaDataRequest struct {
	BucketID          uuid.UUID `json:"bucketId" binding:"required"`
	FileID            uuid.UUID `json:"fileId" binding:"required"`
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

	if err := h.service.SetEncryptedMetaData(c.Request.Context(), principal.UserID, req.BucketID, req.FileID, req.EncryptedMetaData); err != nil {
		WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type deleteRequest struct {
	BucketID uuid.UUID `json:"bucketId" binding:"required"`
	FileID   uuid.UUID `json:"fileId" binding:"required"`
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

	if err := h.service.Delete(c.Request.Context(), principal.UserID, req.BucketID, req.FileID); err != nil {
		WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// WriteError translates file errors to HTTP responses, deferring to the
// bucket translation for gate failures.
func WriteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
	case errors.Is(err, ErrFileNotInBucket):
		c.JSON(http.StatusNotFound, gin.H{"error": "file does not belong to this bucket"})
	case errors.Is(err, ErrNameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "a file or directory with that name already exists here"})
	case errors.Is(err, ErrParentDirectoryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "parent directory not found in this bucket"})
	default:
		bucket.WriteError(c, err)
	}
}
