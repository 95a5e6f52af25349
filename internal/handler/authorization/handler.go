package authorization

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ativasaude/guia-api/internal/handler"
	"github.com/ativasaude/guia-api/internal/model"
	"github.com/ativasaude/guia-api/internal/service/authorization"
)

type Handler struct {
	service *authorization.Service
}

func NewHandler(service *authorization.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auths := r.Group("/authorizations")
	{
		auths.POST("", h.Bind)
		auths.GET("/:id", h.Get)
		auths.POST("/:id/approve", h.Approve)
		auths.POST("/:id/deny", h.Deny)
		auths.POST("/:id/revoke", h.Revoke)
	}
}

func (h *Handler) Bind(c *gin.Context) {
	var req model.BindAuthorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	auth, err := h.service.Bind(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(auth))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid authorization ID"))
		return
	}

	auth, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(auth))
}

type approveRequest struct {
	ExecutingProviderID *uuid.UUID `json:"executing_provider_id"`
}

func (h *Handler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid authorization ID"))
		return
	}

	var req approveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
			return
		}
	}

	auth, err := h.service.Approve(c.Request.Context(), id, req.ExecutingProviderID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(auth))
}

func (h *Handler) Deny(c *gin.Context) {
	h.close(c, h.service.Deny)
}

func (h *Handler) Revoke(c *gin.Context) {
	h.close(c, h.service.Revoke)
}

func (h *Handler) close(c *gin.Context, fn func(ctx context.Context, id uuid.UUID, req *model.RevokeAuthorizationRequest) (*model.Authorization, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid authorization ID"))
		return
	}

	var req model.RevokeAuthorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	auth, err := fn(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(auth))
}
