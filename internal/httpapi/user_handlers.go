package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
	"github.com/ahinestrog/onlinebookstore/internal/user"
)

type loginRequest struct {
	UserName string `json:"userName" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, apperr.New(apperr.NotFound, "%q not found", c.Param("id")))
		return 0, false
	}
	return id, true
}

// POST /api/users/register
func (h *handlers) register(c *gin.Context) {
	var req user.Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.Users.Register(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Location", "/api/users/"+strconv.FormatInt(u.ID, 10))
	c.JSON(http.StatusCreated, u)
}

// POST /api/users/login
func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	id, err := h.Users.Authenticate(ctx, req.UserName, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	token, claims, err := h.Auth.Tokens().Issue(id, req.UserName)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time.UTC()})
}

// POST /api/users/logout
func (h *handlers) logout(c *gin.Context) {
	if p := principal(c); p != nil {
		h.Auth.Tokens().Revoke(p.Claims)
	}
	c.String(http.StatusOK, "Logout successful")
}

// GET /api/users
func (h *handlers) listUsers(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// PUT /api/users/:id
func (h *handlers) updateUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req user.Profile
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.Users.Update(c.Request.Context(), userID(c), id, req); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/users/:id
func (h *handlers) deleteUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Users.Delete(c.Request.Context(), userID(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
