package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RegisterPublicRoutes mounts the endpoints reachable without a session.
func RegisterPublicRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/user/login", handler.login)
}

// RegisterRoutes mounts the authenticated user and admin endpoints.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/user/assert", handler.assert)
	group.POST("/user/logout", handler.logout)
	group.POST("/user/logout-all-sessions", handler.logoutAllSessions)
	group.GET("/user/list-all-sessions", handler.listAllSessions)
	group.GET("/user/list", handler.listUsers)
	group.POST("/user/find", handler.findUser)
	group.POST("/user/update-profile", handler.updateProfile)
	group.POST("/user/update-password", handler.updatePassword)

	group.POST("/admin/iam/add-user", handler.addUser)
	group.POST("/admin/iam/set-banning-status", handler.setBanningStatus)
	group.POST("/admin/iam/set-global-permissions", handler.setGlobalPermissions)
	group.POST("/admin/iam/overwrite-user-password", handler.overwriteUserPassword)
}

type httpHandler struct {
	service *Service
}

type loginRequest struct {
	UserName string `json:"userName" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *httpHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.UserName, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserBanned):
			c.JSON(http.StatusForbidden, gin.H{"error": "you are currently banned from logging in"})
		case errors.Is(err, ErrIncorrectPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log in"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"apiKey":    result.APIKey,
		"user":      result.User,
		"sessionId": result.Session.ID,
	})
}

func (h *httpHandler) assert(c *gin.Context) {
	principal, ok := RequirePrincipal(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": principal.User, "sessionId": principal.SessionID})
}

func (h *httpHandler) logout(c *gin.Context) {
	principal, ok := RequirePrincipal(c)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.service.Logout(c.Request.Context(), principal.SessionID, req.Message); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log out"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) logoutAllSessions(c *gin.Context) {
	principal, ok := RequirePrincipal(c)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.service.LogoutAllSessions(c.Request.Context(), principal.UserID, req.Message); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log out sessions"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) listAllSessions(c *gin.Context) {
	principal, ok := RequirePrincipal(c)
	if !ok {
		return
	}

	sessions, err := h.service.ListSessions(c.Request.Context(), principal.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *httpHandler) listUsers(c *gin.Context) {
	if _, ok := RequirePrincipal(c); !ok {
		return
	}

	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *httpHandler) findUser(c *gin.Context) {
	if _, ok := RequirePrincipal(c); !ok {
		return
	}

	var req struct {
		UserName string `json:"userName" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.FindUser(c.Request.Context(), req.UserName)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to find user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *httpHandler) updateProfile(c *gin.Context) {
	principal, ok := RequirePrincipal(c)
	if !ok {
		return
	}

	var req struct {
		DisplayName string `json:"displayName" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.UpdateProfile(c.Request.Context(), principal.UserID, req.DisplayName); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) updatePassword(c *gin.Context) {
	principal, ok := RequirePrincipal(c)
	if !ok {
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.UpdatePassword(c.Request.Context(), principal.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, ErrIncorrectPassword) {
			c.JSON(http.StatusForbidden, gin.H{"error": "current password is incorrect"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update password"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) addUser(c *gin.Context) {
	principal, ok := RequirePrincipal(c)
	if !ok {
		return
	}

	var req struct {
		UserName    string `json:"userName" binding:"required"`
		DisplayName string `json:"displayName" binding:"required"`
		Password    string `json:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.CreateUser(c.Request.Context(), principal.User, req.UserName, req.DisplayName, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrGlobalPermissionDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient global permission"})
		case errors.Is(err, ErrUserNameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "user name already taken"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add user"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (h *httpHandler) setBanningStatus(c *gin.Context) {
	principal, ok := RequirePrincipal(c)
	if !ok {
		return
	}

	var req struct {
		UserID   uuid.UUID `json:"userId" binding:"required"`
		IsBanned *bool     `json:"isBanned" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SetBanningStatus(c.Request.Context(), principal.User, req.UserID, *req.IsBanned); err != nil {
		writeAdminError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) setGlobalPermissions(c *gin.Context) {
	principal, ok := RequirePrincipal(c)
	if !ok {
		return
	}

	var req struct {
		UserID            uuid.UUID       `json:"userId" binding:"required"`
		GlobalPermissions map[string]bool `json:"globalPermissions" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SetGlobalPermissions(c.Request.Context(), principal.User, req.UserID, req.GlobalPermissions); err != nil {
		writeAdminError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) overwriteUserPassword(c *gin.Context) {
	principal, ok := RequirePrincipal(c)
	if !ok {
		return
	}

	var req struct {
		UserID      uuid.UUID `json:"userId" binding:"required"`
		NewPassword string    `json:"newPassword" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.OverwritePassword(c.Request.Context(), principal.User, req.UserID, req.NewPassword); err != nil {
		writeAdminError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeAdminError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrGlobalPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient global permission"})
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
	}
}
