package bucket

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nkrypt-xyz/nkstore/internal/auth"
)

// RegisterRoutes mounts bucket endpoints onto the authenticated group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/bucket/create", handler.create)
	group.GET("/bucket/list", handler.list)
	group.POST("/bucket/rename", handler.rename)
	group.POST("/bucket/set-metadata", handler.setMetaData)
	group.POST("/bucket/set-authorization", handler.setAuthorization)
	group.POST("/bucket/destroy", handler.destroy)
}

type httpHandler struct {
	service *Service
}

type createRequest struct {
	Name      string         `json:"name" binding:"required"`
	CryptSpec string         `json:"cryptSpec" binding:"required"`
	CryptData string         `json:"cryptData" binding:"required"`
	MetaData  map[string]any `json:"metaData"`
}

func (h *httpHandler) create(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		return
	}

	if !principal.User.HasGlobalPermission(auth.PermCreateBucket) {
		c.JSON(http.StatusForbidden, gin.H{"error": "this action requires the CREATE_BUCKET permission"})
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Create(c.Request.Context(), principal.UserID, req.Name, req.CryptSpec, req.CryptData, req.MetaData)
	if err != nil {
		if errors.Is(err, ErrBucketNameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "a bucket with that name already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create bucket"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"bucketId":        result.Bucket.ID,
		"rootDirectoryId": result.RootDirectoryID,
	})
}

func (h *httpHandler) list(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		return
	}

	buckets, err := h.service.List(c.Request.Context(), principal.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list buckets"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"buckets": buckets})
}

type renameRequest struct {
	BucketID uuid.UUID `json:"bucketId" binding:"required"`
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

	if err := h.service.Rename(c.Request.Context(), principal.UserID, req.BucketID, req.Name); err != nil {
		WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setMetaDataRequest struct {
	BucketID uuid.UUID      `json:"bucketId" binding:"required"`
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

	if err := h.service.SetMetaData(c.Request.Context(), principal.UserID, req.BucketID, req.MetaData); err != nil {
		WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setAuthorizationRequest struct {
	BucketID       uuid.UUID       `json:"bucketId" binding:"required"`
	Authorizations []Authorization `json:"bucketAuthorizations" binding:"required"`
}

func (h *httpHandler) setAuthorization(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		return
	}

	var req setAuthorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SetAuthorizations(c.Request.Context(), principal.UserID, req.BucketID, req.Authorizations); err != nil {
		WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type destroyRequest struct {
	BucketID uuid.UUID `json:"bucketId" binding:"required"`
}

func (h *httpHandler) destroy(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		return
	}

	var req destroyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Destroy(c.Request.Context(), principal.UserID, req.BucketID); err != nil {
		WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// WriteError translates bucket errors to HTTP responses. Shared with the
// packages whose handlers go through the bucket permission gate.
func WriteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrBucketNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
	case errors.Is(err, ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not authorized to access this bucket"})
	case errors.Is(err, ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient bucket permission"})
	case errors.Is(err, ErrBucketNameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "a bucket with that name already exists"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
	}
}
