package guide

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ativasaude/guia-api/internal/handler"
	"github.com/ativasaude/guia-api/internal/model"
	"github.com/ativasaude/guia-api/internal/service/guide"
	"github.com/ativasaude/guia-api/internal/service/material"
)

type Handler struct {
	guides    *guide.Service
	materials *material.Service
}

func NewHandler(guides *guide.Service, materials *material.Service) *Handler {
	return &Handler{guides: guides, materials: materials}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	guides := r.Group("/guides")
	{
		guides.POST("", h.CreateGuide)
		guides.GET("", h.ListGuides)
		guides.GET("/:id", h.GetGuide)
		guides.POST("/:id/authorize", h.AuthorizeGuide)
		guides.POST("/:id/procedures", h.AddProcedure)
		guides.POST("/:id/procedures/:procedureId/execute", h.ExecuteProcedure)
	}

	procedures := r.Group("/procedures")
	{
		procedures.POST("/:id/materials", h.AddMaterial)
		procedures.GET("/:id/materials", h.ListMaterials)
	}

	materials := r.Group("/materials")
	{
		materials.GET("/:id", h.GetMaterial)
		materials.POST("/:id/authorize", h.AuthorizeMaterial)
		materials.POST("/:id/consume", h.ConsumeMaterial)
		materials.POST("/:id/deny", h.DenyMaterial)
	}
}

func (h *Handler) CreateGuide(c *gin.Context) {
	var req model.CreateGuideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	g, err := h.guides.CreateGuide(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(g))
}

func (h *Handler) GetGuide(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid guide ID"))
		return
	}

	g, err := h.guides.GetGuide(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(g))
}

func (h *Handler) ListGuides(c *gin.Context) {
	filters := &model.GuideFilters{
		Status: model.GuideStatus(c.Query("status")),
	}
	if v := c.Query("beneficiary_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid beneficiary ID"))
			return
		}
		filters.BeneficiaryID = id
	}
	if v := c.Query("requested_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid requested_from timestamp"))
			return
		}
		filters.RequestedFrom = t
	}
	if v := c.Query("requested_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid requested_to timestamp"))
			return
		}
		filters.RequestedTo = t
	}
	bindPagination(c, &filters.Pagination)

	guides, err := h.guides.ListGuides(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(guides))
}

func (h *Handler) AuthorizeGuide(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid guide ID"))
		return
	}

	g, err := h.guides.Authorize(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(g))
}

func (h *Handler) AddProcedure(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid guide ID"))
		return
	}

	var req model.AddProcedureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	p, err := h.guides.AddProcedure(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(p))
}

func (h *Handler) ExecuteProcedure(c *gin.Context) {
	guideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid guide ID"))
		return
	}
	procedureID, err := uuid.Parse(c.Param("procedureId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid procedure ID"))
		return
	}

	var req model.ExecuteProcedureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	g, err := h.guides.Execute(c.Request.Context(), guideID, procedureID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(g))
}

func (h *Handler) AddMaterial(c *gin.Context) {
	procedureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid procedure ID"))
		return
	}

	var req model.AddMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	m, err := h.materials.AddMaterial(c.Request.Context(), procedureID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(m))
}

func (h *Handler) ListMaterials(c *gin.Context) {
	procedureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid procedure ID"))
		return
	}

	materials, err := h.materials.ListByProcedure(c.Request.Context(), procedureID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(materials))
}

func (h *Handler) GetMaterial(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid material ID"))
		return
	}

	m, err := h.materials.GetMaterial(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(m))
}

func (h *Handler) AuthorizeMaterial(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid material ID"))
		return
	}

	var req model.AuthorizeMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	m, err := h.materials.Authorize(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(m))
}

func (h *Handler) ConsumeMaterial(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid material ID"))
		return
	}

	var req model.ConsumeMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	m, err := h.materials.Consume(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(m))
}

func (h *Handler) DenyMaterial(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid material ID"))
		return
	}

	var req model.DenyMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	m, err := h.materials.Deny(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(m))
}

func bindPagination(c *gin.Context, p *model.Pagination) {
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 {
		p.PageSize = v
	}
}
